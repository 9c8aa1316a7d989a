// Package known implements the well-known google.protobuf.* type handlers:
// bidirectional converters between a canonical Go host representation and a
// dynamic message of the corresponding full_name, plus the JSON textual
// forms the proto3 JSON mapping delegates to for these types, including the
// wrapper family from google/protobuf/wrappers.proto.
//
// Every handler is parameterized by an explicit *protoregistry.Registry
// rather than a package-level singleton; which registry resolves an Any's
// type_url is the caller's choice.
package known

import (
	"github.com/protoval/dynproto/reflect/protoreflect"
	"github.com/protoval/dynproto/reflect/protoregistry"
)

func mustField(m *protoreflect.MessageDescriptor, f *protoreflect.FieldDescriptor) *protoreflect.FieldDescriptor {
	if err := m.AddField(f); err != nil {
		panic("known: invalid built-in descriptor: " + err.Error())
	}
	return f
}

func scalarField(name protoreflect.Name, num int32, kind protoreflect.Kind) *protoreflect.FieldDescriptor {
	return protoreflect.NewFieldDescriptor(name, num, kind, protoreflect.Singular)
}

func repeatedField(name protoreflect.Name, num int32, kind protoreflect.Kind) *protoreflect.FieldDescriptor {
	return protoreflect.NewFieldDescriptor(name, num, kind, protoreflect.Repeated)
}

// TimestampDescriptor returns the descriptor for google.protobuf.Timestamp.
func TimestampDescriptor() *protoreflect.MessageDescriptor {
	m := protoreflect.NewMessageDescriptor("Timestamp", "google.protobuf.Timestamp", "google/protobuf/timestamp.proto", "")
	mustField(m, scalarField("seconds", 1, protoreflect.Int64Kind))
	mustField(m, scalarField("nanos", 2, protoreflect.Int32Kind))
	return m
}

// DurationDescriptor returns the descriptor for google.protobuf.Duration.
func DurationDescriptor() *protoreflect.MessageDescriptor {
	m := protoreflect.NewMessageDescriptor("Duration", "google.protobuf.Duration", "google/protobuf/duration.proto", "")
	mustField(m, scalarField("seconds", 1, protoreflect.Int64Kind))
	mustField(m, scalarField("nanos", 2, protoreflect.Int32Kind))
	return m
}

// EmptyDescriptor returns the descriptor for google.protobuf.Empty.
func EmptyDescriptor() *protoreflect.MessageDescriptor {
	return protoreflect.NewMessageDescriptor("Empty", "google.protobuf.Empty", "google/protobuf/empty.proto", "")
}

// FieldMaskDescriptor returns the descriptor for google.protobuf.FieldMask.
func FieldMaskDescriptor() *protoreflect.MessageDescriptor {
	m := protoreflect.NewMessageDescriptor("FieldMask", "google.protobuf.FieldMask", "google/protobuf/field_mask.proto", "")
	mustField(m, repeatedField("paths", 1, protoreflect.StringKind))
	return m
}

// AnyDescriptor returns the descriptor for google.protobuf.Any.
func AnyDescriptor() *protoreflect.MessageDescriptor {
	m := protoreflect.NewMessageDescriptor("Any", "google.protobuf.Any", "google/protobuf/any.proto", "")
	mustField(m, scalarField("type_url", 1, protoreflect.StringKind))
	mustField(m, scalarField("value", 2, protoreflect.BytesKind))
	return m
}

// NullValueDescriptor returns the descriptor for google.protobuf.NullValue,
// a single-value enum used as Value's null variant.
func NullValueDescriptor() *protoreflect.EnumDescriptor {
	e := protoreflect.NewEnumDescriptor("NullValue", "google.protobuf.NullValue", "google/protobuf/struct.proto", "")
	if err := e.AddValue(&protoreflect.EnumValue{Name: "NULL_VALUE", Number: 0}); err != nil {
		panic("known: invalid built-in enum: " + err.Error())
	}
	return e
}

// StructDescriptor, ValueDescriptor, and ListValueDescriptor are built
// together because they are mutually referential: Struct's fields map has
// Value elements, Value has a struct_value field of type Struct and a
// list_value field of type ListValue, and ListValue's values are repeated
// Value.
func StructDescriptor() *protoreflect.MessageDescriptor {
	s, _, _ := structFamily()
	return s
}

func ValueDescriptor() *protoreflect.MessageDescriptor {
	_, v, _ := structFamily()
	return v
}

func ListValueDescriptor() *protoreflect.MessageDescriptor {
	_, _, l := structFamily()
	return l
}

func structFamily() (*protoreflect.MessageDescriptor, *protoreflect.MessageDescriptor, *protoreflect.MessageDescriptor) {
	nullEnum := NullValueDescriptor()

	value := protoreflect.NewMessageDescriptor("Value", "google.protobuf.Value", "google/protobuf/struct.proto", "")
	structMsg := protoreflect.NewMessageDescriptor("Struct", "google.protobuf.Struct", "google/protobuf/struct.proto", "")
	listValue := protoreflect.NewMessageDescriptor("ListValue", "google.protobuf.ListValue", "google/protobuf/struct.proto", "")

	entry := protoreflect.NewMessageDescriptor("FieldsEntry", "google.protobuf.Struct.FieldsEntry", "google/protobuf/struct.proto", "google.protobuf.Struct")
	entry.MarkMapEntry()
	key := mustField(entry, scalarField("key", 1, protoreflect.StringKind))
	val := protoreflect.NewFieldDescriptor("value", 2, protoreflect.MessageKind, protoreflect.Singular)
	val.TypeName = value.FullName
	val.MessageType = value
	mustField(entry, val)
	structMsg.AddNestedMessage(entry)
	fieldsField := protoreflect.NewFieldDescriptor("fields", 1, protoreflect.MessageKind, protoreflect.Repeated)
	fieldsField.TypeName = entry.FullName
	fieldsField.MessageType = entry
	fieldsField.IsMap = true
	fieldsField.MapEntry = &protoreflect.MapFieldInfo{Key: key, Value: val}
	mustField(structMsg, fieldsField)

	nullFd := protoreflect.NewFieldDescriptor("null_value", 1, protoreflect.EnumKind, protoreflect.Singular)
	nullFd.TypeName = nullEnum.FullName
	nullFd.EnumType = nullEnum
	nullFd.OneofIndex = 0
	mustField(value, nullFd)
	mustField(value, withOneof(scalarField("number_value", 2, protoreflect.DoubleKind)))
	mustField(value, withOneof(scalarField("string_value", 3, protoreflect.StringKind)))
	mustField(value, withOneof(scalarField("bool_value", 4, protoreflect.BoolKind)))
	structFd := protoreflect.NewFieldDescriptor("struct_value", 5, protoreflect.MessageKind, protoreflect.Singular)
	structFd.TypeName = structMsg.FullName
	structFd.MessageType = structMsg
	structFd.OneofIndex = 0
	mustField(value, structFd)
	listFd := protoreflect.NewFieldDescriptor("list_value", 6, protoreflect.MessageKind, protoreflect.Singular)
	listFd.TypeName = listValue.FullName
	listFd.MessageType = listValue
	listFd.OneofIndex = 0
	mustField(value, listFd)
	value.Oneofs = []string{"kind"}

	valuesFd := protoreflect.NewFieldDescriptor("values", 1, protoreflect.MessageKind, protoreflect.Repeated)
	valuesFd.TypeName = value.FullName
	valuesFd.MessageType = value
	mustField(listValue, valuesFd)

	return structMsg, value, listValue
}

func withOneof(f *protoreflect.FieldDescriptor) *protoreflect.FieldDescriptor {
	f.OneofIndex = 0
	return f
}

// wrapperKinds lists the nine scalar wrapper types of
// google/protobuf/wrappers.proto, each a single-field message wrapping one
// scalar to give it explicit presence.
var wrapperKinds = []struct {
	name protoreflect.Name
	kind protoreflect.Kind
}{
	{"DoubleValue", protoreflect.DoubleKind},
	{"FloatValue", protoreflect.FloatKind},
	{"Int64Value", protoreflect.Int64Kind},
	{"UInt64Value", protoreflect.Uint64Kind},
	{"Int32Value", protoreflect.Int32Kind},
	{"UInt32Value", protoreflect.Uint32Kind},
	{"BoolValue", protoreflect.BoolKind},
	{"StringValue", protoreflect.StringKind},
	{"BytesValue", protoreflect.BytesKind},
}

// WrapperDescriptor returns the descriptor for google.protobuf.<Name>Value,
// or (nil, false) if name does not name one of the nine wrapper types.
func WrapperDescriptor(name protoreflect.Name) (*protoreflect.MessageDescriptor, bool) {
	for _, wk := range wrapperKinds {
		if wk.name == name {
			m := protoreflect.NewMessageDescriptor(wk.name, protoreflect.FullName("google.protobuf.")+protoreflect.FullName(wk.name), "google/protobuf/wrappers.proto", "")
			mustField(m, scalarField("value", 1, wk.kind))
			return m, true
		}
	}
	return nil, false
}

// RegisterWellKnownTypes registers every well-known type's FileDescriptor
// (synthesized here rather than parsed, since no .proto source is ever
// parsed by this module) into reg, so that registry-mediated lookups (in
// particular Any's type_url resolution) succeed for these types without the
// caller needing to redeclare them.
func RegisterWellKnownTypes(reg *protoregistry.Registry) error {
	timestampFile := protoreflect.NewFileDescriptor("google/protobuf/timestamp.proto", "google.protobuf", protoreflect.Proto3)
	timestampFile.AddMessage(TimestampDescriptor())
	if err := reg.RegisterFile(timestampFile); err != nil {
		return err
	}

	durationFile := protoreflect.NewFileDescriptor("google/protobuf/duration.proto", "google.protobuf", protoreflect.Proto3)
	durationFile.AddMessage(DurationDescriptor())
	if err := reg.RegisterFile(durationFile); err != nil {
		return err
	}

	emptyFile := protoreflect.NewFileDescriptor("google/protobuf/empty.proto", "google.protobuf", protoreflect.Proto3)
	emptyFile.AddMessage(EmptyDescriptor())
	if err := reg.RegisterFile(emptyFile); err != nil {
		return err
	}

	maskFile := protoreflect.NewFileDescriptor("google/protobuf/field_mask.proto", "google.protobuf", protoreflect.Proto3)
	maskFile.AddMessage(FieldMaskDescriptor())
	if err := reg.RegisterFile(maskFile); err != nil {
		return err
	}

	anyFile := protoreflect.NewFileDescriptor("google/protobuf/any.proto", "google.protobuf", protoreflect.Proto3)
	anyFile.AddMessage(AnyDescriptor())
	if err := reg.RegisterFile(anyFile); err != nil {
		return err
	}

	structMsg, value, listValue := structFamily()
	structFile := protoreflect.NewFileDescriptor("google/protobuf/struct.proto", "google.protobuf", protoreflect.Proto3)
	structFile.AddEnum(NullValueDescriptor())
	structFile.AddMessage(structMsg)
	structFile.AddMessage(value)
	structFile.AddMessage(listValue)
	if err := reg.RegisterFile(structFile); err != nil {
		return err
	}

	wrappersFile := protoreflect.NewFileDescriptor("google/protobuf/wrappers.proto", "google.protobuf", protoreflect.Proto3)
	for _, wk := range wrapperKinds {
		wd, _ := WrapperDescriptor(wk.name)
		wrappersFile.AddMessage(wd)
	}
	return reg.RegisterFile(wrappersFile)
}
