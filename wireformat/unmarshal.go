package wireformat

import (
	"github.com/protoval/dynproto/internal/errors"
	"github.com/protoval/dynproto/internal/wire"
	"github.com/protoval/dynproto/reflect/protoreflect"
	"github.com/protoval/dynproto/types/dynamicpb"
)

// UnmarshalOptions controls the behavior of Unmarshal.
type UnmarshalOptions struct {
	// MaxDepth bounds nested-message recursion. Zero means DefaultMaxDepth.
	MaxDepth int
	// MaxSize bounds the total number of bytes Unmarshal will read across the
	// whole message tree. Zero means DefaultMaxSize.
	MaxSize int
	// DiscardUnknown drops unrecognized fields instead of preserving them in
	// the message's unknown-field buffer.
	DiscardUnknown bool
}

// Unmarshal decodes b into a fresh dynamic message described by desc.
func (o UnmarshalOptions) Unmarshal(b []byte, desc *protoreflect.MessageDescriptor) (*dynamicpb.Message, error) {
	if o.MaxSize == 0 {
		o.MaxSize = DefaultMaxSize
	}
	if o.MaxDepth == 0 {
		o.MaxDepth = DefaultMaxDepth
	}
	if len(b) > o.MaxSize {
		return nil, errors.New(errors.MessageTooLarge, "message of %d bytes exceeds limit of %d", len(b), o.MaxSize)
	}
	msg := dynamicpb.New(desc)
	if err := o.unmarshalInto(b, msg, 0); err != nil {
		return nil, err
	}
	return msg, nil
}

// Unmarshal is a convenience wrapper around UnmarshalOptions{}.Unmarshal.
func Unmarshal(b []byte, desc *protoreflect.MessageDescriptor) (*dynamicpb.Message, error) {
	return UnmarshalOptions{}.Unmarshal(b, desc)
}

func (o UnmarshalOptions) unmarshalInto(b []byte, msg *dynamicpb.Message, depth int) error {
	if depth > o.MaxDepth {
		return errors.New(errors.RecursionLimitExceeded, "message nesting exceeds %d levels", o.MaxDepth)
	}
	desc := msg.Descriptor()
	for len(b) > 0 {
		num, typ, tn, err := wire.ConsumeTag(b)
		if err != nil {
			return err
		}
		tag := wire.EncodeTag(num, typ)
		rest := b[tn:]

		fd, ok := desc.FieldByNumber(int32(num))
		if !ok || fd.Kind == protoreflect.GroupKind {
			// Unrecognized field, or a group field, which is handled at the
			// byte level only: skip the wire value and preserve the raw bytes
			// for round-trip.
			vn, err := wire.ConsumeFieldValue(num, typ, rest)
			if err != nil {
				return err
			}
			if !o.DiscardUnknown {
				msg.AppendUnknownField(tag, append([]byte(nil), rest[:vn]...))
			}
			b = rest[vn:]
			continue
		}

		consumed, err := o.consumeField(rest, fd, typ, msg, depth)
		if err != nil {
			return err
		}
		b = rest[consumed:]
	}
	return nil
}

// consumeField decodes one wire-level occurrence of fd (which may be a
// packed or unpacked element of a repeated field, a map entry, or a scalar)
// and applies it to msg, returning the number of bytes consumed from b.
func (o UnmarshalOptions) consumeField(b []byte, fd *protoreflect.FieldDescriptor, typ wire.Type, msg *dynamicpb.Message, depth int) (int, error) {
	switch {
	case fd.IsMap:
		return o.consumeMapEntry(b, fd, typ, msg, depth)
	case fd.IsRepeated():
		return o.consumeRepeatedElement(b, fd, typ, msg, depth)
	default:
		v, n, err := o.consumeScalar(b, fd, typ, depth)
		if err != nil {
			return 0, err
		}
		if err := msg.Set(fd, v); err != nil {
			return 0, err
		}
		return n, nil
	}
}

func (o UnmarshalOptions) consumeRepeatedElement(b []byte, fd *protoreflect.FieldDescriptor, typ wire.Type, msg *dynamicpb.Message, depth int) (int, error) {
	if typ == wire.BytesType && fd.Kind.IsPackable() && expectedWireType(fd.Kind) != wire.BytesType {
		payload, n, err := wire.ConsumeBytes(b)
		if err != nil {
			return 0, err
		}
		for len(payload) > 0 {
			v, vn, err := consumeScalarBare(payload, fd.Kind)
			if err != nil {
				return 0, err
			}
			if err := msg.AppendToRepeated(fd, v); err != nil {
				return 0, err
			}
			payload = payload[vn:]
		}
		return n, nil
	}
	v, n, err := o.consumeScalar(b, fd, typ, depth)
	if err != nil {
		return 0, err
	}
	if err := msg.AppendToRepeated(fd, v); err != nil {
		return 0, err
	}
	return n, nil
}

func (o UnmarshalOptions) consumeMapEntry(b []byte, fd *protoreflect.FieldDescriptor, typ wire.Type, msg *dynamicpb.Message, depth int) (int, error) {
	if typ != wire.BytesType {
		return 0, errors.WithField(errors.WireTypeMismatch, string(fd.Name), "map field entries must be length-delimited")
	}
	payload, n, err := wire.ConsumeBytes(b)
	if err != nil {
		return 0, err
	}
	entryDesc := entryMessageDescriptor(fd)
	entryMsg := dynamicpb.New(entryDesc)
	if err := o.unmarshalInto(payload, entryMsg, depth+1); err != nil {
		return 0, err
	}
	key, err := entryMsg.GetOrDefault(fd.MapEntry.Key)
	if err != nil {
		return 0, err
	}
	value, err := entryMsg.GetOrDefault(fd.MapEntry.Value)
	if err != nil {
		return 0, err
	}
	if err := msg.SetMapEntry(fd, key, value); err != nil {
		return 0, err
	}
	return n, nil
}

// consumeScalar decodes one singular field occurrence, including nested
// messages. The observed typ must be the wire type fd's kind is encoded with
// (length-delimited for messages); any other wire type is rejected with
// WireTypeMismatch. Packed repeated payloads are decoded by
// consumeRepeatedElement and never reach here.
func (o UnmarshalOptions) consumeScalar(b []byte, fd *protoreflect.FieldDescriptor, typ wire.Type, depth int) (protoreflect.ProtoValue, int, error) {
	if fd.Kind == protoreflect.MessageKind {
		if typ != wire.BytesType {
			return protoreflect.ProtoValue{}, 0, errors.WithField(errors.WireTypeMismatch, string(fd.Name), "message field requires length-delimited wire type, got %d", typ)
		}
		payload, n, err := wire.ConsumeBytes(b)
		if err != nil {
			return protoreflect.ProtoValue{}, 0, err
		}
		nested := dynamicpb.New(fieldMessageDescriptor(fd))
		if err := o.unmarshalInto(payload, nested, depth+1); err != nil {
			return protoreflect.ProtoValue{}, 0, err
		}
		return protoreflect.Message(nested), n, nil
	}
	want := expectedWireType(fd.Kind)
	if typ != want {
		return protoreflect.ProtoValue{}, 0, errors.WithField(errors.WireTypeMismatch, string(fd.Name), "field kind %v requires wire type %d, got %d", fd.Kind, want, typ)
	}
	v, n, err := consumeScalarBare(b, fd.Kind)
	if err != nil {
		return protoreflect.ProtoValue{}, 0, err
	}
	if fd.Kind == protoreflect.EnumKind {
		ref, _ := v.AsEnum()
		if ed := fd.EnumType; ed != nil {
			if val, ok := ed.ByNumber(ref.Number); ok {
				ref.Name = val.Name
				ref.Descriptor = ed
				v = protoreflect.Enum(ref)
			}
		}
	}
	return v, n, nil
}

// fieldMessageDescriptor recovers the MessageDescriptor a message-kind field
// refers to, resolved ahead of time by protodesc.resolveMessageFieldTypes.
func fieldMessageDescriptor(fd *protoreflect.FieldDescriptor) *protoreflect.MessageDescriptor {
	return fd.MessageType
}

func expectedWireType(k protoreflect.Kind) wire.Type {
	switch k {
	case protoreflect.Fixed32Kind, protoreflect.Sfixed32Kind, protoreflect.FloatKind:
		return wire.Fixed32Type
	case protoreflect.Fixed64Kind, protoreflect.Sfixed64Kind, protoreflect.DoubleKind:
		return wire.Fixed64Type
	case protoreflect.StringKind, protoreflect.BytesKind, protoreflect.MessageKind:
		return wire.BytesType
	default:
		return wire.VarintType
	}
}

func consumeScalarBare(b []byte, k protoreflect.Kind) (protoreflect.ProtoValue, int, error) {
	switch k {
	case protoreflect.DoubleKind:
		bits, n, err := wire.ConsumeFixed64(b)
		if err != nil {
			return protoreflect.ProtoValue{}, 0, err
		}
		return protoreflect.Double(bitsToDouble(bits)), n, nil
	case protoreflect.FloatKind:
		bits, n, err := wire.ConsumeFixed32(b)
		if err != nil {
			return protoreflect.ProtoValue{}, 0, err
		}
		return protoreflect.Float(bitsToFloat(bits)), n, nil
	case protoreflect.Int32Kind:
		v, n, err := wire.ConsumeVarintErr(b)
		if err != nil {
			return protoreflect.ProtoValue{}, 0, err
		}
		return protoreflect.Int32(int32(uint32(v))), n, nil
	case protoreflect.Int64Kind:
		v, n, err := wire.ConsumeVarintErr(b)
		if err != nil {
			return protoreflect.ProtoValue{}, 0, err
		}
		return protoreflect.Int64(int64(v)), n, nil
	case protoreflect.Uint32Kind:
		v, n, err := wire.ConsumeVarintErr(b)
		if err != nil {
			return protoreflect.ProtoValue{}, 0, err
		}
		return protoreflect.UInt32(uint32(v)), n, nil
	case protoreflect.Uint64Kind:
		v, n, err := wire.ConsumeVarintErr(b)
		if err != nil {
			return protoreflect.ProtoValue{}, 0, err
		}
		return protoreflect.UInt64(v), n, nil
	case protoreflect.Sint32Kind:
		v, n, err := wire.ConsumeVarintErr(b)
		if err != nil {
			return protoreflect.ProtoValue{}, 0, err
		}
		return protoreflect.SInt32(wire.DecodeZigZag32(uint32(v))), n, nil
	case protoreflect.Sint64Kind:
		v, n, err := wire.ConsumeVarintErr(b)
		if err != nil {
			return protoreflect.ProtoValue{}, 0, err
		}
		return protoreflect.SInt64(wire.DecodeZigZag64(v)), n, nil
	case protoreflect.Fixed32Kind:
		v, n, err := wire.ConsumeFixed32(b)
		if err != nil {
			return protoreflect.ProtoValue{}, 0, err
		}
		return protoreflect.Fixed32(v), n, nil
	case protoreflect.Fixed64Kind:
		v, n, err := wire.ConsumeFixed64(b)
		if err != nil {
			return protoreflect.ProtoValue{}, 0, err
		}
		return protoreflect.Fixed64(v), n, nil
	case protoreflect.Sfixed32Kind:
		v, n, err := wire.ConsumeFixed32(b)
		if err != nil {
			return protoreflect.ProtoValue{}, 0, err
		}
		return protoreflect.SFixed32(int32(v)), n, nil
	case protoreflect.Sfixed64Kind:
		v, n, err := wire.ConsumeFixed64(b)
		if err != nil {
			return protoreflect.ProtoValue{}, 0, err
		}
		return protoreflect.SFixed64(int64(v)), n, nil
	case protoreflect.BoolKind:
		v, n, err := wire.ConsumeVarintErr(b)
		if err != nil {
			return protoreflect.ProtoValue{}, 0, err
		}
		return protoreflect.Bool(v != 0), n, nil
	case protoreflect.StringKind:
		raw, n, err := wire.ConsumeBytes(b)
		if err != nil {
			return protoreflect.ProtoValue{}, 0, err
		}
		if !wire.ValidUTF8(raw) {
			return protoreflect.ProtoValue{}, 0, errors.New(errors.InvalidUtf8, "string field is not valid UTF-8")
		}
		return protoreflect.String(string(raw)), n, nil
	case protoreflect.BytesKind:
		raw, n, err := wire.ConsumeBytes(b)
		if err != nil {
			return protoreflect.ProtoValue{}, 0, err
		}
		return protoreflect.Bytes(append([]byte(nil), raw...)), n, nil
	case protoreflect.EnumKind:
		v, n, err := wire.ConsumeVarintErr(b)
		if err != nil {
			return protoreflect.ProtoValue{}, 0, err
		}
		return protoreflect.Enum(protoreflect.EnumValueRef{Number: int32(uint32(v))}), n, nil
	default:
		return protoreflect.ProtoValue{}, 0, errors.New(errors.Descriptor, "unsupported scalar kind %v", k)
	}
}
