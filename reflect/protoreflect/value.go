package protoreflect

import (
	"fmt"
	"strconv"
	"unicode/utf8"

	"github.com/protoval/dynproto/internal/errors"
)

// ValueKind tags the variant held by a ProtoValue. It is distinct from Kind:
// Kind describes a field's declared wire type, ValueKind describes what a
// particular value actually holds (and additionally distinguishes Repeated
// and Map, which have no Kind of their own).
type ValueKind int8

const (
	InvalidValue ValueKind = iota
	DoubleValue
	FloatValue
	Int32Value
	Int64Value
	Uint32Value
	Uint64Value
	Sint32Value
	Sint64Value
	Fixed32Value
	Fixed64Value
	Sfixed32Value
	Sfixed64Value
	BoolValue
	StringValue
	BytesValue
	EnumValueKind
	MessageValue
	RepeatedValue
	MapValue
)

// EnumValueRef is the payload of an EnumValueKind ProtoValue: the wire
// number plus, when resolvable, the symbolic name and owning descriptor.
// Unknown numeric values (not declared on the enum) are represented with
// Name == "" and Descriptor == nil, per the forward-compatibility
// requirement that unknown enum numbers are preserved, not rejected.
type EnumValueRef struct {
	Number     int32
	Name       Name
	Descriptor *EnumDescriptor
}

// DynamicMessageValue is the minimal interface a nested message value must
// satisfy to be stored inside a ProtoValue. types/dynamicpb.Message is the
// concrete implementation; the interface lives here (rather than requiring
// an import of types/dynamicpb) to avoid an import cycle, since dynamicpb
// itself must depend on ProtoValue.
type DynamicMessageValue interface {
	Descriptor() *MessageDescriptor
}

// ProtoValue is a tagged sum representing every possible field value: every
// scalar kind, an enum reference, a nested message, a homogeneous repeated
// list, or a map from scalar keys to values.
//
// A Repeated ProtoValue's elements always share a ValueKind, and a Map
// ProtoValue's keys always share a scalar ValueKind; both invariants are
// checked by IsValidFor (the constructors below do not verify them).
type ProtoValue struct {
	kind  ValueKind
	num   uint64  // bool/int32/int64/uint32/uint64/sint32/sint64/fixed*/sfixed* bit pattern, or enum number
	f64   float64 // double/float
	str   string
	bytes []byte
	enum  EnumValueRef
	msg   DynamicMessageValue
	list  []ProtoValue
	mp    []MapEntry
}

// MapEntry is a single key/value pair of a Map ProtoValue. Map is
// represented as an ordered slice rather than a Go map because ProtoValue's
// key variants (e.g. []byte-backed strings are fine, but structured keys
// are not comparable in general) and because deterministic re-marshaling
// requires a stable iteration order regardless of map representation.
type MapEntry struct {
	Key   ProtoValue
	Value ProtoValue
}

// Kind reports which variant this value holds.
func (v ProtoValue) Kind() ValueKind { return v.kind }

// IsValid reports whether v holds any variant at all (the zero ProtoValue is
// invalid).
func (v ProtoValue) IsValid() bool { return v.kind != InvalidValue }

func Double(f float64) ProtoValue   { return ProtoValue{kind: DoubleValue, f64: f} }
func Float(f float32) ProtoValue    { return ProtoValue{kind: FloatValue, f64: float64(f)} }
func Int32(i int32) ProtoValue      { return ProtoValue{kind: Int32Value, num: uint64(uint32(i))} }
func Int64(i int64) ProtoValue      { return ProtoValue{kind: Int64Value, num: uint64(i)} }
func UInt32(u uint32) ProtoValue    { return ProtoValue{kind: Uint32Value, num: uint64(u)} }
func UInt64(u uint64) ProtoValue    { return ProtoValue{kind: Uint64Value, num: u} }
func SInt32(i int32) ProtoValue     { return ProtoValue{kind: Sint32Value, num: uint64(uint32(i))} }
func SInt64(i int64) ProtoValue     { return ProtoValue{kind: Sint64Value, num: uint64(i)} }
func Fixed32(u uint32) ProtoValue   { return ProtoValue{kind: Fixed32Value, num: uint64(u)} }
func Fixed64(u uint64) ProtoValue   { return ProtoValue{kind: Fixed64Value, num: u} }
func SFixed32(i int32) ProtoValue   { return ProtoValue{kind: Sfixed32Value, num: uint64(uint32(i))} }
func SFixed64(i int64) ProtoValue   { return ProtoValue{kind: Sfixed64Value, num: uint64(i)} }
func Bool(b bool) ProtoValue {
	var n uint64
	if b {
		n = 1
	}
	return ProtoValue{kind: BoolValue, num: n}
}
func String(s string) ProtoValue { return ProtoValue{kind: StringValue, str: s} }
func Bytes(b []byte) ProtoValue  { return ProtoValue{kind: BytesValue, bytes: b} }

// Enum constructs an enum ProtoValue. name/desc may be zero/nil for unknown
// numeric values encountered during decoding.
func Enum(ref EnumValueRef) ProtoValue {
	return ProtoValue{kind: EnumValueKind, enum: ref, num: uint64(uint32(ref.Number))}
}

// Message wraps a nested dynamic message as a ProtoValue.
func Message(m DynamicMessageValue) ProtoValue {
	return ProtoValue{kind: MessageValue, msg: m}
}

// RepeatedList constructs a Repeated ProtoValue from a slice of elements, all
// of which must share a ValueKind (not itself verified here; see
// IsValidFor).
func RepeatedList(elems []ProtoValue) ProtoValue {
	return ProtoValue{kind: RepeatedValue, list: elems}
}

// Map constructs a Map ProtoValue from an ordered slice of entries.
func Map(entries []MapEntry) ProtoValue {
	return ProtoValue{kind: MapValue, mp: entries}
}

// AsDouble returns (value, true) iff v holds a DoubleValue.
func (v ProtoValue) AsDouble() (float64, bool) {
	if v.kind != DoubleValue {
		return 0, false
	}
	return v.f64, true
}

// AsFloat returns (value, true) iff v holds a FloatValue.
func (v ProtoValue) AsFloat() (float32, bool) {
	if v.kind != FloatValue {
		return 0, false
	}
	return float32(v.f64), true
}

// AsInt32 returns (value, true) iff v holds an Int32Value, Sint32Value or
// Sfixed32Value.
func (v ProtoValue) AsInt32() (int32, bool) {
	switch v.kind {
	case Int32Value, Sint32Value, Sfixed32Value:
		return int32(uint32(v.num)), true
	}
	return 0, false
}

// AsInt64 returns (value, true) iff v holds an Int64Value, Sint64Value or
// Sfixed64Value.
func (v ProtoValue) AsInt64() (int64, bool) {
	switch v.kind {
	case Int64Value, Sint64Value, Sfixed64Value:
		return int64(v.num), true
	}
	return 0, false
}

// AsUint32 returns (value, true) iff v holds a Uint32Value or Fixed32Value.
func (v ProtoValue) AsUint32() (uint32, bool) {
	switch v.kind {
	case Uint32Value, Fixed32Value:
		return uint32(v.num), true
	}
	return 0, false
}

// AsUint64 returns (value, true) iff v holds a Uint64Value or Fixed64Value.
func (v ProtoValue) AsUint64() (uint64, bool) {
	switch v.kind {
	case Uint64Value, Fixed64Value:
		return v.num, true
	}
	return 0, false
}

// AsBool returns (value, true) iff v holds a BoolValue.
func (v ProtoValue) AsBool() (bool, bool) {
	if v.kind != BoolValue {
		return false, false
	}
	return v.num != 0, true
}

// AsString returns (value, true) iff v holds a StringValue.
func (v ProtoValue) AsString() (string, bool) {
	if v.kind != StringValue {
		return "", false
	}
	return v.str, true
}

// AsBytes returns (value, true) iff v holds a BytesValue.
func (v ProtoValue) AsBytes() ([]byte, bool) {
	if v.kind != BytesValue {
		return nil, false
	}
	return v.bytes, true
}

// AsEnum returns (value, true) iff v holds an EnumValueKind.
func (v ProtoValue) AsEnum() (EnumValueRef, bool) {
	if v.kind != EnumValueKind {
		return EnumValueRef{}, false
	}
	return v.enum, true
}

// AsMessage returns (value, true) iff v holds a MessageValue.
func (v ProtoValue) AsMessage() (DynamicMessageValue, bool) {
	if v.kind != MessageValue {
		return nil, false
	}
	return v.msg, true
}

// AsRepeated returns (value, true) iff v holds a RepeatedValue.
func (v ProtoValue) AsRepeated() ([]ProtoValue, bool) {
	if v.kind != RepeatedValue {
		return nil, false
	}
	return v.list, true
}

// AsMap returns (value, true) iff v holds a MapValue.
func (v ProtoValue) AsMap() ([]MapEntry, bool) {
	if v.kind != MapValue {
		return nil, false
	}
	return v.mp, true
}

// RawBits returns the raw unsigned bit pattern backing an integer/bool/enum
// value, for use by the wire codec which needs the bit pattern regardless of
// signedness semantics already applied by As*.
func (v ProtoValue) RawBits() uint64 { return v.num }

// Convert attempts to coerce v to the given target value kind: numeric
// widening/narrowing is two's-complement truncation, string<->number uses
// decimal parse/format, and bytes<->string uses UTF-8 validation. Unlike the As* accessors, this
// never returns the original value unchanged when kinds already match only
// incidentally; callers who want "reinterpret, don't convert" should use the
// As* accessors instead.
func Convert(v ProtoValue, target ValueKind) (ProtoValue, error) {
	if v.kind == target {
		return v, nil
	}
	switch target {
	case StringValue:
		if v.kind == BytesValue && !utf8.Valid(v.bytes) {
			return ProtoValue{}, errors.New(errors.InvalidUtf8, "cannot convert bytes to string: not valid UTF-8")
		}
		return String(valueToString(v)), nil
	case BytesValue:
		s, ok := v.AsString()
		if !ok {
			return ProtoValue{}, errors.New(errors.TypeMismatch, "cannot convert %v to bytes", v.kind)
		}
		return Bytes([]byte(s)), nil
	case DoubleValue, FloatValue:
		f, err := valueToFloat(v)
		if err != nil {
			return ProtoValue{}, err
		}
		if target == FloatValue {
			return Float(float32(f)), nil
		}
		return Double(f), nil
	case Int32Value, Sint32Value, Sfixed32Value:
		i, err := valueToInt64(v)
		if err != nil {
			return ProtoValue{}, err
		}
		return ProtoValue{kind: target, num: uint64(uint32(int32(i)))}, nil
	case Int64Value, Sint64Value, Sfixed64Value:
		i, err := valueToInt64(v)
		if err != nil {
			return ProtoValue{}, err
		}
		return ProtoValue{kind: target, num: uint64(i)}, nil
	case Uint32Value, Fixed32Value:
		i, err := valueToInt64(v)
		if err != nil {
			return ProtoValue{}, err
		}
		return ProtoValue{kind: target, num: uint64(uint32(i))}, nil
	case Uint64Value, Fixed64Value:
		i, err := valueToInt64(v)
		if err != nil {
			return ProtoValue{}, err
		}
		return ProtoValue{kind: target, num: uint64(i)}, nil
	case BoolValue:
		i, err := valueToInt64(v)
		if err != nil {
			return ProtoValue{}, err
		}
		return Bool(i != 0), nil
	default:
		return ProtoValue{}, errors.New(errors.TypeMismatch, "unsupported conversion target %v", target)
	}
}

func valueToString(v ProtoValue) string {
	switch v.kind {
	case StringValue:
		return v.str
	case BytesValue:
		return string(v.bytes)
	case BoolValue:
		return strconv.FormatBool(v.num != 0)
	case DoubleValue, FloatValue:
		return strconv.FormatFloat(v.f64, 'g', -1, 64)
	case Int32Value, Sint32Value, Sfixed32Value:
		i, _ := v.AsInt32()
		return strconv.FormatInt(int64(i), 10)
	case Int64Value, Sint64Value, Sfixed64Value:
		i, _ := v.AsInt64()
		return strconv.FormatInt(i, 10)
	case Uint32Value, Fixed32Value, Uint64Value, Fixed64Value:
		return strconv.FormatUint(v.num, 10)
	default:
		return fmt.Sprintf("%v", v.num)
	}
}

func valueToFloat(v ProtoValue) (float64, error) {
	switch v.kind {
	case DoubleValue, FloatValue:
		return v.f64, nil
	case StringValue:
		f, err := strconv.ParseFloat(v.str, 64)
		if err != nil {
			return 0, errors.New(errors.TypeMismatch, "cannot parse %q as number", v.str)
		}
		return f, nil
	case Int32Value, Int64Value, Sint32Value, Sint64Value, Sfixed32Value, Sfixed64Value:
		i, _ := valueToInt64(v)
		return float64(i), nil
	case Uint32Value, Uint64Value, Fixed32Value, Fixed64Value:
		return float64(v.num), nil
	default:
		return 0, errors.New(errors.TypeMismatch, "cannot convert %v to a number", v.kind)
	}
}

func valueToInt64(v ProtoValue) (int64, error) {
	switch v.kind {
	case Int32Value, Sint32Value, Sfixed32Value, Int64Value, Sint64Value, Sfixed64Value:
		i, _ := v.AsInt64()
		if v.kind == Int32Value || v.kind == Sint32Value || v.kind == Sfixed32Value {
			i32, _ := v.AsInt32()
			return int64(i32), nil
		}
		return i, nil
	case Uint32Value, Fixed32Value, Uint64Value, Fixed64Value:
		return int64(v.num), nil
	case BoolValue:
		return int64(v.num), nil
	case StringValue:
		i, err := strconv.ParseInt(v.str, 10, 64)
		if err != nil {
			return 0, errors.New(errors.TypeMismatch, "cannot parse %q as integer", v.str)
		}
		return i, nil
	case DoubleValue, FloatValue:
		return int64(v.f64), nil
	default:
		return 0, errors.New(errors.TypeMismatch, "cannot convert %v to an integer", v.kind)
	}
}

// ValueKindForFieldKind maps a descriptor Kind to the ValueKind a
// conforming singular ProtoValue must hold.
func ValueKindForFieldKind(k Kind) ValueKind {
	switch k {
	case DoubleKind:
		return DoubleValue
	case FloatKind:
		return FloatValue
	case Int32Kind:
		return Int32Value
	case Int64Kind:
		return Int64Value
	case Uint32Kind:
		return Uint32Value
	case Uint64Kind:
		return Uint64Value
	case Sint32Kind:
		return Sint32Value
	case Sint64Kind:
		return Sint64Value
	case Fixed32Kind:
		return Fixed32Value
	case Fixed64Kind:
		return Fixed64Value
	case Sfixed32Kind:
		return Sfixed32Value
	case Sfixed64Kind:
		return Sfixed64Value
	case BoolKind:
		return BoolValue
	case StringKind:
		return StringValue
	case BytesKind:
		return BytesValue
	case EnumKind:
		return EnumValueKind
	case MessageKind, GroupKind:
		return MessageValue
	default:
		return InvalidValue
	}
}

// IsValidFor reports whether v is a legal value for field f: singular
// values must match the field's kind; repeated values must be Repeated with
// every element matching; map values must be Map with keys and values
// matching the map_entry's key/value kinds; message values must reference a
// descriptor whose full name equals the field's type_name.
func IsValidFor(f *FieldDescriptor, v ProtoValue) bool {
	switch {
	case f.IsMap:
		entries, ok := v.AsMap()
		if !ok {
			return false
		}
		for _, e := range entries {
			if !isValidSingular(f.MapEntry.Key, e.Key) || !isValidSingular(f.MapEntry.Value, e.Value) {
				return false
			}
		}
		return true
	case f.IsRepeated():
		elems, ok := v.AsRepeated()
		if !ok {
			return false
		}
		for _, e := range elems {
			if !isValidSingular(f, e) {
				return false
			}
		}
		return true
	default:
		return isValidSingular(f, v)
	}
}

func isValidSingular(f *FieldDescriptor, v ProtoValue) bool {
	want := ValueKindForFieldKind(f.Kind)
	if want == InvalidValue {
		return false
	}
	if v.kind != want {
		return false
	}
	if want == MessageValue {
		m, ok := v.AsMessage()
		if !ok || m == nil {
			return false
		}
		return m.Descriptor().FullName == f.TypeName
	}
	return true
}
