// Package bridge converts between statically compiled protobuf messages
// (types generated by protoc-gen-go and linked into the caller's binary) and
// dynamic messages, by round-tripping the wire bytes between them.
// Instantiating a generated Go type from nothing but a descriptor is
// impossible without code generation, so the wire bytes are the only honest
// hand-off point between the two worlds.
package bridge

import (
	goproto "google.golang.org/protobuf/proto"

	"github.com/protoval/dynproto/internal/errors"
	"github.com/protoval/dynproto/reflect/protoreflect"
	"github.com/protoval/dynproto/types/dynamicpb"
	"github.com/protoval/dynproto/wireformat"
)

// StaticToDynamic serializes static to bytes using its own generated
// Marshal logic, then unmarshals those bytes into a fresh dynamic message
// bound to desc. It fails with TypeMismatch if static's own descriptor full
// name disagrees with desc's.
//
// Unknown fields on the static side survive this trip only if static's own
// runtime preserved them when it produced the bytes; dynamicpb.Message
// always preserves whatever arrives in the bytes.
func StaticToDynamic(static goproto.Message, desc *protoreflect.MessageDescriptor) (*dynamicpb.Message, error) {
	if err := checkFullNameMatch(static, desc); err != nil {
		return nil, err
	}
	b, err := goproto.Marshal(static)
	if err != nil {
		return nil, errors.New(errors.TypeMismatch, "marshaling static message %s: %v", desc.FullName, err)
	}
	return wireformat.Unmarshal(b, desc)
}

// StaticToDynamicOptions behaves like StaticToDynamic but lets the caller
// tune the dynamic-side unmarshal (size/depth limits, unknown field
// handling) via opts.
func StaticToDynamicOptions(static goproto.Message, desc *protoreflect.MessageDescriptor, opts wireformat.UnmarshalOptions) (*dynamicpb.Message, error) {
	if err := checkFullNameMatch(static, desc); err != nil {
		return nil, err
	}
	b, err := goproto.Marshal(static)
	if err != nil {
		return nil, errors.New(errors.TypeMismatch, "marshaling static message %s: %v", desc.FullName, err)
	}
	return opts.Unmarshal(b, desc)
}

// DynamicToStatic marshals dyn to bytes and unmarshals them into static,
// which the caller must have already allocated as the zero value of the
// matching generated type. It fails with TypeMismatch if the two sides
// disagree on full name.
func DynamicToStatic(dyn *dynamicpb.Message, static goproto.Message) error {
	if err := checkFullNameMatch(static, dyn.Descriptor()); err != nil {
		return err
	}
	b, err := wireformat.Marshal(dyn)
	if err != nil {
		return errors.New(errors.TypeMismatch, "marshaling dynamic message %s: %v", dyn.Descriptor().FullName, err)
	}
	if err := goproto.Unmarshal(b, static); err != nil {
		return errors.New(errors.TypeMismatch, "unmarshaling into static message %s: %v", dyn.Descriptor().FullName, err)
	}
	return nil
}

func checkFullNameMatch(static goproto.Message, desc *protoreflect.MessageDescriptor) error {
	staticName := string(static.ProtoReflect().Descriptor().FullName())
	if staticName != string(desc.FullName) {
		return errors.New(errors.TypeMismatch, "static message %s does not match dynamic descriptor %s", staticName, desc.FullName)
	}
	return nil
}
