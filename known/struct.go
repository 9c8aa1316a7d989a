package known

import (
	"github.com/protoval/dynproto/protojson"
	"github.com/protoval/dynproto/reflect/protoreflect"
	"github.com/protoval/dynproto/types/dynamicpb"
)

// ValueKind tags which variant a Value holds, mirroring
// google.protobuf.Value's kind oneof.
type ValueKind int

const (
	NullValueKind ValueKind = iota
	NumberValueKind
	StringValueKind
	BoolValueKind
	StructValueKind
	ListValueKind
)

// Value is the host representation of google.protobuf.Value: a
// dynamically-typed JSON-compatible scalar, object, or array.
type Value struct {
	Kind   ValueKind
	Number float64
	Str    string
	Bool   bool
	Struct Struct
	List   ListValue
}

// Struct is the host representation of google.protobuf.Struct: an
// unordered, JSON-object-like collection of named values. Go's map
// iteration order is already unspecified, matching the absence of an
// ordering guarantee on Struct itself.
type Struct map[string]Value

// ListValue is the host representation of google.protobuf.ListValue.
type ListValue []Value

func NullValue() Value             { return Value{Kind: NullValueKind} }
func NumberValue(n float64) Value  { return Value{Kind: NumberValueKind, Number: n} }
func StringValueOf(s string) Value { return Value{Kind: StringValueKind, Str: s} }
func BoolValueOf(b bool) Value     { return Value{Kind: BoolValueKind, Bool: b} }
func StructValueOf(s Struct) Value { return Value{Kind: StructValueKind, Struct: s} }
func ListValueOf(l ListValue) Value { return Value{Kind: ListValueKind, List: l} }

// NewValueMessage builds a dynamic google.protobuf.Value message from v.
func NewValueMessage(v Value) (*dynamicpb.Message, error) {
	desc := ValueDescriptor()
	m := dynamicpb.New(desc)
	switch v.Kind {
	case NullValueKind:
		ed, _ := desc.FieldByName("null_value")
		if err := m.Set("null_value", protoreflect.Enum(protoreflect.EnumValueRef{Number: 0, Name: "NULL_VALUE", Descriptor: ed.EnumType})); err != nil {
			return nil, err
		}
	case NumberValueKind:
		if err := m.Set("number_value", protoreflect.Double(v.Number)); err != nil {
			return nil, err
		}
	case StringValueKind:
		if err := m.Set("string_value", protoreflect.String(v.Str)); err != nil {
			return nil, err
		}
	case BoolValueKind:
		if err := m.Set("bool_value", protoreflect.Bool(v.Bool)); err != nil {
			return nil, err
		}
	case StructValueKind:
		sm, err := NewStructMessage(v.Struct)
		if err != nil {
			return nil, err
		}
		if err := m.Set("struct_value", protoreflect.Message(sm)); err != nil {
			return nil, err
		}
	case ListValueKind:
		lm, err := NewListValueMessage(v.List)
		if err != nil {
			return nil, err
		}
		if err := m.Set("list_value", protoreflect.Message(lm)); err != nil {
			return nil, err
		}
	default:
		return nil, errValidationf("unknown Value kind %d", v.Kind)
	}
	return m, nil
}

// ValueFromMessage reads a dynamic google.protobuf.Value message back into
// its host representation.
func ValueFromMessage(m *dynamicpb.Message) (Value, error) {
	if has, _ := m.Has("null_value"); has {
		return NullValue(), nil
	}
	if has, _ := m.Has("number_value"); has {
		v, _, _ := m.Get("number_value")
		n, _ := v.AsDouble()
		return NumberValue(n), nil
	}
	if has, _ := m.Has("string_value"); has {
		v, _, _ := m.Get("string_value")
		s, _ := v.AsString()
		return StringValueOf(s), nil
	}
	if has, _ := m.Has("bool_value"); has {
		v, _, _ := m.Get("bool_value")
		b, _ := v.AsBool()
		return BoolValueOf(b), nil
	}
	if has, _ := m.Has("struct_value"); has {
		v, _, _ := m.Get("struct_value")
		msg, _ := v.AsMessage()
		dm, ok := msg.(*dynamicpb.Message)
		if !ok {
			return Value{}, errValidationf("struct_value: unsupported message implementation")
		}
		s, err := StructFromMessage(dm)
		if err != nil {
			return Value{}, err
		}
		return StructValueOf(s), nil
	}
	if has, _ := m.Has("list_value"); has {
		v, _, _ := m.Get("list_value")
		msg, _ := v.AsMessage()
		dm, ok := msg.(*dynamicpb.Message)
		if !ok {
			return Value{}, errValidationf("list_value: unsupported message implementation")
		}
		l, err := ListValueFromMessage(dm)
		if err != nil {
			return Value{}, err
		}
		return ListValueOf(l), nil
	}
	return NullValue(), nil // no oneof member set: defaults to null, per struct.proto
}

// NewStructMessage builds a dynamic google.protobuf.Struct message from s.
func NewStructMessage(s Struct) (*dynamicpb.Message, error) {
	desc := StructDescriptor()
	m := dynamicpb.New(desc)
	fieldsFd, _ := desc.FieldByName("fields")
	for k, v := range s {
		vm, err := NewValueMessage(v)
		if err != nil {
			return nil, err
		}
		if err := m.SetMapEntry(fieldsFd, protoreflect.String(k), protoreflect.Message(vm)); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// StructFromMessage reads a dynamic google.protobuf.Struct message back into
// its host representation.
func StructFromMessage(m *dynamicpb.Message) (Struct, error) {
	v, err := m.GetOrDefault("fields")
	if err != nil {
		return nil, err
	}
	entries, _ := v.AsMap()
	out := make(Struct, len(entries))
	for _, e := range entries {
		k, _ := e.Key.AsString()
		msg, _ := e.Value.AsMessage()
		dm, ok := msg.(*dynamicpb.Message)
		if !ok {
			return nil, errValidationf("struct field %q: unsupported message implementation", k)
		}
		val, err := ValueFromMessage(dm)
		if err != nil {
			return nil, err
		}
		out[k] = val
	}
	return out, nil
}

// NewListValueMessage builds a dynamic google.protobuf.ListValue message.
func NewListValueMessage(l ListValue) (*dynamicpb.Message, error) {
	desc := ListValueDescriptor()
	m := dynamicpb.New(desc)
	for _, v := range l {
		vm, err := NewValueMessage(v)
		if err != nil {
			return nil, err
		}
		if err := m.AppendToRepeated("values", protoreflect.Message(vm)); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ListValueFromMessage reads a dynamic google.protobuf.ListValue message back
// into its host representation.
func ListValueFromMessage(m *dynamicpb.Message) (ListValue, error) {
	v, err := m.GetOrDefault("values")
	if err != nil {
		return nil, err
	}
	elems, _ := v.AsRepeated()
	out := make(ListValue, 0, len(elems))
	for _, e := range elems {
		msg, _ := e.AsMessage()
		dm, ok := msg.(*dynamicpb.Message)
		if !ok {
			return nil, errValidationf("list_value element: unsupported message implementation")
		}
		val, err := ValueFromMessage(dm)
		if err != nil {
			return nil, err
		}
		out = append(out, val)
	}
	return out, nil
}

type valueHandler struct{}

func (valueHandler) MarshalJSON(m *dynamicpb.Message, _ protojson.MarshalOptions) ([]byte, error) {
	v, err := ValueFromMessage(m)
	if err != nil {
		return nil, err
	}
	return marshalValueJSON(v)
}

func marshalValueJSON(v Value) ([]byte, error) {
	switch v.Kind {
	case NullValueKind:
		return []byte("null"), nil
	case NumberValueKind:
		return []byte(formatFloatJSON(v.Number)), nil
	case StringValueKind:
		return marshalJSONString(v.Str), nil
	case BoolValueKind:
		if v.Bool {
			return []byte("true"), nil
		}
		return []byte("false"), nil
	case StructValueKind:
		return marshalStructJSON(v.Struct)
	case ListValueKind:
		return marshalListValueJSON(v.List)
	default:
		return nil, errValidationf("unknown Value kind %d", v.Kind)
	}
}

func (valueHandler) UnmarshalJSON(data []byte, m *dynamicpb.Message, _ protojson.UnmarshalOptions) error {
	v, err := unmarshalValueJSON(data)
	if err != nil {
		return err
	}
	vm, err := NewValueMessage(v)
	if err != nil {
		return err
	}
	return m.Merge(vm)
}

type structHandler struct{}

func (structHandler) MarshalJSON(m *dynamicpb.Message, _ protojson.MarshalOptions) ([]byte, error) {
	s, err := StructFromMessage(m)
	if err != nil {
		return nil, err
	}
	return marshalStructJSON(s)
}

func (structHandler) UnmarshalJSON(data []byte, m *dynamicpb.Message, _ protojson.UnmarshalOptions) error {
	s, err := unmarshalStructJSON(data)
	if err != nil {
		return err
	}
	sm, err := NewStructMessage(s)
	if err != nil {
		return err
	}
	return m.Merge(sm)
}

type listValueHandler struct{}

func (listValueHandler) MarshalJSON(m *dynamicpb.Message, _ protojson.MarshalOptions) ([]byte, error) {
	l, err := ListValueFromMessage(m)
	if err != nil {
		return nil, err
	}
	return marshalListValueJSON(l)
}

func (listValueHandler) UnmarshalJSON(data []byte, m *dynamicpb.Message, _ protojson.UnmarshalOptions) error {
	l, err := unmarshalListValueJSON(data)
	if err != nil {
		return err
	}
	lm, err := NewListValueMessage(l)
	if err != nil {
		return err
	}
	return m.Merge(lm)
}
