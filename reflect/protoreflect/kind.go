package protoreflect

// Kind is the wire kind of a field, i.e. the proto3 scalar/message/enum/group
// type it holds. Numeric values follow the same layout as
// google.protobuf.FieldDescriptorProto.Type so that conversion to and from
// descriptorpb is a direct cast.
type Kind int32

const (
	UnknownKind Kind = 0
	DoubleKind  Kind = 1
	FloatKind   Kind = 2
	Int64Kind   Kind = 3
	Uint64Kind  Kind = 4
	Int32Kind   Kind = 5
	Fixed64Kind Kind = 6
	Fixed32Kind Kind = 7
	BoolKind    Kind = 8
	StringKind  Kind = 9
	GroupKind   Kind = 10
	MessageKind Kind = 11
	BytesKind   Kind = 12
	Uint32Kind  Kind = 13
	EnumKind    Kind = 14
	Sfixed32Kind Kind = 15
	Sfixed64Kind Kind = 16
	Sint32Kind  Kind = 17
	Sint64Kind  Kind = 18
)

func (k Kind) String() string {
	switch k {
	case DoubleKind:
		return "double"
	case FloatKind:
		return "float"
	case Int64Kind:
		return "int64"
	case Uint64Kind:
		return "uint64"
	case Int32Kind:
		return "int32"
	case Fixed64Kind:
		return "fixed64"
	case Fixed32Kind:
		return "fixed32"
	case BoolKind:
		return "bool"
	case StringKind:
		return "string"
	case GroupKind:
		return "group"
	case MessageKind:
		return "message"
	case BytesKind:
		return "bytes"
	case Uint32Kind:
		return "uint32"
	case EnumKind:
		return "enum"
	case Sfixed32Kind:
		return "sfixed32"
	case Sfixed64Kind:
		return "sfixed64"
	case Sint32Kind:
		return "sint32"
	case Sint64Kind:
		return "sint64"
	default:
		return "unknown"
	}
}

// IsScalar reports whether k is neither a message, group, nor enum kind.
func (k Kind) IsScalar() bool {
	switch k {
	case MessageKind, GroupKind, EnumKind:
		return false
	default:
		return k != UnknownKind
	}
}

// IsNumeric reports whether k is a scalar numeric kind (i.e. excludes bool,
// string, and bytes in addition to message/group/enum).
func (k Kind) IsNumeric() bool {
	switch k {
	case DoubleKind, FloatKind, Int64Kind, Uint64Kind, Int32Kind, Fixed64Kind,
		Fixed32Kind, Uint32Kind, Sfixed32Kind, Sfixed64Kind, Sint32Kind, Sint64Kind:
		return true
	default:
		return false
	}
}

// IsValidMapKeyKind reports whether k may serve as a map key kind: any
// integer or bool or string kind, but never float, double, bytes, message,
// or enum.
func (k Kind) IsValidMapKeyKind() bool {
	switch k {
	case Int32Kind, Int64Kind, Uint32Kind, Uint64Kind, Sint32Kind, Sint64Kind,
		Fixed32Kind, Fixed64Kind, Sfixed32Kind, Sfixed64Kind, BoolKind, StringKind:
		return true
	default:
		return false
	}
}

// IsPackable reports whether a repeated field of this kind may use the
// packed wire encoding.
func (k Kind) IsPackable() bool {
	switch k {
	case StringKind, BytesKind, MessageKind, GroupKind:
		return false
	default:
		return k != UnknownKind
	}
}
