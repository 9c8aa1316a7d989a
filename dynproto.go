// Package dynproto is the facade over the rest of the module: a small set of
// top-level entry points (register a descriptor, create a message by name,
// marshal/unmarshal binary or JSON) for callers who don't need the
// lower-level package split. It adds no behavior of its own; every method
// here delegates straight to protodesc, protoregistry, dynamicpb,
// wireformat, protojson, and known.
package dynproto

import (
	"github.com/protoval/dynproto/internal/errors"
	"github.com/protoval/dynproto/known"
	"github.com/protoval/dynproto/protojson"
	"github.com/protoval/dynproto/reflect/protodesc"
	"github.com/protoval/dynproto/reflect/protoreflect"
	"github.com/protoval/dynproto/reflect/protoregistry"
	"github.com/protoval/dynproto/types/dynamicpb"
	"github.com/protoval/dynproto/wireformat"
)

// NewRegistry constructs an empty type registry. It is a thin rename of
// protoregistry.NewRegistry so callers working only through the facade don't
// need a second import for the one type they construct directly.
func NewRegistry() *protoregistry.Registry {
	return protoregistry.NewRegistry()
}

// RegisterFileDescriptorSetBytes parses a serialized
// google.protobuf.FileDescriptorSet (as produced by
// `protoc --descriptor_set_out`) and registers every file it contains into
// reg, resolving dependency order both within the set and against files reg
// already holds. Registration is atomic: either every file in the set ends
// up registered, or reg is left exactly as it was.
func RegisterFileDescriptorSetBytes(reg *protoregistry.Registry, b []byte) error {
	files, err := protodesc.NewFileSetFromBytes(b)
	if err != nil {
		return err
	}
	return registerResolvingAgainst(reg, files)
}

// RegisterFileDescriptorProtoBytes parses a single serialized
// FileDescriptorProto and registers it into reg. Every path it declares as a
// dependency must already be registered in reg; for a batch of
// interdependent files use RegisterFileDescriptorSetBytes instead.
func RegisterFileDescriptorProtoBytes(reg *protoregistry.Registry, b []byte) error {
	deps := map[string]*protoreflect.FileDescriptor{}
	reg.RangeFiles(func(f *protoreflect.FileDescriptor) bool {
		deps[f.Name] = f
		return true
	})
	f, err := protodesc.NewFileFromBytes(b, deps)
	if err != nil {
		return err
	}
	return reg.RegisterFile(f)
}

// registerResolvingAgainst registers files (converted but not yet known to
// reg) atomically, tolerating dependencies that are already present in reg
// itself rather than only within the batch.
func registerResolvingAgainst(reg *protoregistry.Registry, files map[string]*protoreflect.FileDescriptor) error {
	toRegister := map[string]*protoreflect.FileDescriptor{}
	for path, f := range files {
		if _, already := reg.FindFileByPath(path); already {
			continue
		}
		toRegister[path] = f
	}
	return reg.RegisterFileSet(toRegister)
}

// RegisterWellKnownTypes registers the built-in google.protobuf.* descriptors
// (Timestamp, Duration, Empty, FieldMask, Struct, Value, ListValue, Any, and
// the nine wrapper types such as Int64Value and StringValue) into reg, so that NewMessageByName and the JSON codec's Any support can find
// them without the caller having to supply their own copies of
// well-known.proto's bytes.
func RegisterWellKnownTypes(reg *protoregistry.Registry) error {
	return known.RegisterWellKnownTypes(reg)
}

// NewMessage constructs an empty dynamic message bound to desc.
func NewMessage(desc *protoreflect.MessageDescriptor) *dynamicpb.Message {
	return dynamicpb.New(desc)
}

// NewMessageByName looks up full_name in reg and constructs an empty dynamic
// message bound to its descriptor, failing with UnknownType if no message by
// that name is registered.
func NewMessageByName(reg *protoregistry.Registry, fullName protoreflect.FullName) (*dynamicpb.Message, error) {
	desc, ok := reg.FindMessage(fullName)
	if !ok {
		return nil, errors.New(errors.UnknownType, "no message registered with full name %q", fullName)
	}
	return dynamicpb.New(desc), nil
}

// Marshal serializes msg to its canonical binary wire form.
func Marshal(msg *dynamicpb.Message) ([]byte, error) {
	return wireformat.Marshal(msg)
}

// Unmarshal decodes b into a fresh dynamic message described by desc.
func Unmarshal(b []byte, desc *protoreflect.MessageDescriptor) (*dynamicpb.Message, error) {
	return wireformat.Unmarshal(b, desc)
}

// UnmarshalByName looks up full_name in reg and unmarshals b into a fresh
// message of that type.
func UnmarshalByName(reg *protoregistry.Registry, fullName protoreflect.FullName, b []byte) (*dynamicpb.Message, error) {
	desc, ok := reg.FindMessage(fullName)
	if !ok {
		return nil, errors.New(errors.UnknownType, "no message registered with full name %q", fullName)
	}
	return wireformat.Unmarshal(b, desc)
}

// MarshalJSON renders msg as canonical proto3 JSON, with well-known-type
// handlers and Any's type_url resolution wired against reg.
func MarshalJSON(reg *protoregistry.Registry, msg *dynamicpb.Message) ([]byte, error) {
	return jsonMarshalOptions(reg).Marshal(msg)
}

// UnmarshalJSON parses proto3 JSON into a fresh message of desc's type, with
// well-known-type handlers and Any's type_url resolution wired against reg.
func UnmarshalJSON(reg *protoregistry.Registry, data []byte, desc *protoreflect.MessageDescriptor) (*dynamicpb.Message, error) {
	return jsonUnmarshalOptions(reg).Unmarshal(data, desc)
}

// UnmarshalJSONByName looks up full_name in reg and parses data into a fresh
// message of that type.
func UnmarshalJSONByName(reg *protoregistry.Registry, fullName protoreflect.FullName, data []byte) (*dynamicpb.Message, error) {
	desc, ok := reg.FindMessage(fullName)
	if !ok {
		return nil, errors.New(errors.UnknownType, "no message registered with full name %q", fullName)
	}
	return jsonUnmarshalOptions(reg).Unmarshal(data, desc)
}

func jsonMarshalOptions(reg *protoregistry.Registry) protojson.MarshalOptions {
	return known.MarshalOptions(reg)
}

func jsonUnmarshalOptions(reg *protoregistry.Registry) protojson.UnmarshalOptions {
	return known.UnmarshalOptions(reg)
}
