// Package wireformat implements the canonical protobuf binary wire codec on
// top of dynamic messages: MarshalOptions.Marshal produces bytes, and
// UnmarshalOptions.Unmarshal consumes them back into a *dynamicpb.Message,
// given only a MessageDescriptor.
package wireformat

import (
	"github.com/protoval/dynproto/internal/errors"
	"github.com/protoval/dynproto/internal/wire"
	"github.com/protoval/dynproto/reflect/protoreflect"
	"github.com/protoval/dynproto/types/dynamicpb"
)

// DefaultMaxDepth bounds nested-message recursion, guarding against a
// maliciously deep input exhausting the goroutine stack.
const DefaultMaxDepth = 100

// DefaultMaxSize bounds the total size of a message accepted by Unmarshal.
const DefaultMaxSize = 50 << 20 // 50 MiB

// MarshalOptions controls the behavior of Marshal.
type MarshalOptions struct {
	// Deterministic forces map fields to be emitted in ascending key order.
	// The codec sorts maps by key unconditionally, so this field exists for
	// API parity with proto.MarshalOptions and is otherwise a no-op.
	Deterministic bool
}

// Marshal serializes msg to its canonical binary wire form: fields in
// ascending field-number order, map entries in ascending key order, followed
// by any preserved unknown fields in their original order.
func (o MarshalOptions) Marshal(msg *dynamicpb.Message) ([]byte, error) {
	return o.append(nil, msg, 0)
}

// Marshal is a convenience wrapper around MarshalOptions{}.Marshal.
func Marshal(msg *dynamicpb.Message) ([]byte, error) {
	return MarshalOptions{}.Marshal(msg)
}

func (o MarshalOptions) append(b []byte, msg *dynamicpb.Message, depth int) ([]byte, error) {
	if depth > DefaultMaxDepth {
		return nil, errors.New(errors.RecursionLimitExceeded, "message nesting exceeds %d levels", DefaultMaxDepth)
	}
	var err error
	msg.Range(func(fd *protoreflect.FieldDescriptor, v protoreflect.ProtoValue) bool {
		switch {
		case fd.IsMap:
			b, err = o.appendMap(b, fd, v, depth)
		case fd.IsRepeated():
			b, err = o.appendRepeated(b, fd, v, depth)
		default:
			b, err = o.appendSingular(b, wire.Number(fd.Number), fd, v, depth)
		}
		return err == nil
	})
	if err != nil {
		return nil, err
	}
	for _, u := range msg.UnknownFields() {
		b = wire.AppendVarint(b, u.Tag)
		b = append(b, u.Bytes...)
	}
	return b, nil
}

func (o MarshalOptions) appendRepeated(b []byte, fd *protoreflect.FieldDescriptor, v protoreflect.ProtoValue, depth int) ([]byte, error) {
	elems, _ := v.AsRepeated()
	if len(elems) == 0 {
		return b, nil
	}
	num := wire.Number(fd.Number)
	if fd.Kind.IsPackable() && !explicitlyUnpacked(fd) {
		var packed []byte
		var err error
		for _, e := range elems {
			packed, err = appendScalarBare(packed, fd.Kind, e)
			if err != nil {
				return nil, err
			}
		}
		b = wire.AppendTag(b, num, wire.BytesType)
		b = wire.AppendBytes(b, packed)
		return b, nil
	}
	var err error
	for _, e := range elems {
		b, err = o.appendSingular(b, num, fd, e, depth)
		if err != nil {
			return nil, err
		}
	}
	return b, nil
}

// explicitlyUnpacked reports whether the field carries `[packed = false]`,
// which forces one tagged occurrence per element even for packable kinds.
func explicitlyUnpacked(fd *protoreflect.FieldDescriptor) bool {
	packed, ok := fd.Options["packed"].(bool)
	return ok && !packed
}

func (o MarshalOptions) appendMap(b []byte, fd *protoreflect.FieldDescriptor, v protoreflect.ProtoValue, depth int) ([]byte, error) {
	entries, _ := v.AsMap()
	entries = sortedMapEntries(entries)
	num := wire.Number(fd.Number)
	for _, e := range entries {
		entryMsg := dynamicpb.New(entryMessageDescriptor(fd))
		if err := entryMsg.Set(fd.MapEntry.Key, e.Key); err != nil {
			return nil, err
		}
		if err := entryMsg.Set(fd.MapEntry.Value, e.Value); err != nil {
			return nil, err
		}
		entryBytes, err := o.append(nil, entryMsg, depth+1)
		if err != nil {
			return nil, err
		}
		b = wire.AppendTag(b, num, wire.BytesType)
		b = wire.AppendBytes(b, entryBytes)
	}
	return b, nil
}

// entryMessageDescriptor returns the synthetic map-entry MessageDescriptor
// (fields 1=key, 2=value) a map field's key/value FieldDescriptors were
// carved from, so that the entry can be marshaled through the ordinary
// message path. It builds nothing. protodesc already owns the real map-entry descriptor via
// fd.MapEntry.Key.ContainingMessage(); this just recovers it.
func entryMessageDescriptor(fd *protoreflect.FieldDescriptor) *protoreflect.MessageDescriptor {
	return fd.MapEntry.Key.ContainingMessage()
}

func sortedMapEntries(entries []protoreflect.MapEntry) []protoreflect.MapEntry {
	out := append([]protoreflect.MapEntry(nil), entries...)
	sortEntries(out)
	return out
}

func sortEntries(entries []protoreflect.MapEntry) {
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0 && mapKeyLess(entries[j], entries[j-1]); j-- {
			entries[j], entries[j-1] = entries[j-1], entries[j]
		}
	}
}

func mapKeyLess(a, b protoreflect.MapEntry) bool {
	if s, ok := a.Key.AsString(); ok {
		sb, _ := b.Key.AsString()
		return s < sb
	}
	if bl, ok := a.Key.AsBool(); ok {
		bb, _ := b.Key.AsBool()
		return !bl && bb
	}
	return a.Key.RawBits() < b.Key.RawBits()
}

func (o MarshalOptions) appendSingular(b []byte, num wire.Number, fd *protoreflect.FieldDescriptor, v protoreflect.ProtoValue, depth int) ([]byte, error) {
	switch fd.Kind {
	case protoreflect.MessageKind:
		msg, ok := v.AsMessage()
		if !ok {
			return nil, errors.WithField(errors.TypeMismatch, string(fd.Name), "message field holds non-message value")
		}
		dm, ok := msg.(*dynamicpb.Message)
		if !ok {
			return nil, errors.WithField(errors.TypeMismatch, string(fd.Name), "unsupported message implementation")
		}
		inner, err := o.append(nil, dm, depth+1)
		if err != nil {
			return nil, err
		}
		b = wire.AppendTag(b, num, wire.BytesType)
		b = wire.AppendBytes(b, inner)
		return b, nil
	case protoreflect.GroupKind:
		return nil, errors.WithField(errors.Descriptor, string(fd.Name), "group fields cannot be marshaled, only skipped on decode")
	default:
		typ := wireTypeForKind(fd.Kind)
		b = wire.AppendTag(b, num, typ)
		return appendScalarBare(b, fd.Kind, v)
	}
}

func wireTypeForKind(k protoreflect.Kind) wire.Type {
	switch k {
	case protoreflect.Fixed32Kind, protoreflect.Sfixed32Kind, protoreflect.FloatKind:
		return wire.Fixed32Type
	case protoreflect.Fixed64Kind, protoreflect.Sfixed64Kind, protoreflect.DoubleKind:
		return wire.Fixed64Type
	case protoreflect.StringKind, protoreflect.BytesKind:
		return wire.BytesType
	default:
		return wire.VarintType
	}
}

func appendScalarBare(b []byte, k protoreflect.Kind, v protoreflect.ProtoValue) ([]byte, error) {
	switch k {
	case protoreflect.DoubleKind:
		f, _ := v.AsDouble()
		return wire.AppendFixed64(b, doubleBits(f)), nil
	case protoreflect.FloatKind:
		f, _ := v.AsFloat()
		return wire.AppendFixed32(b, floatBits(f)), nil
	case protoreflect.Int32Kind:
		// Negative int32 values are sign-extended to 64 bits on the wire, so
		// -1 occupies the full 10 varint bytes, matching every conforming
		// encoder.
		i, _ := v.AsInt32()
		return wire.AppendVarint(b, uint64(int64(i))), nil
	case protoreflect.Int64Kind, protoreflect.Uint32Kind, protoreflect.Uint64Kind:
		return wire.AppendVarint(b, v.RawBits()), nil
	case protoreflect.Sint32Kind:
		i, _ := v.AsInt32()
		return wire.AppendVarint(b, uint64(wire.EncodeZigZag32(i))), nil
	case protoreflect.Sint64Kind:
		i, _ := v.AsInt64()
		return wire.AppendVarint(b, wire.EncodeZigZag64(i)), nil
	case protoreflect.Fixed32Kind, protoreflect.Sfixed32Kind:
		return wire.AppendFixed32(b, uint32(v.RawBits())), nil
	case protoreflect.Fixed64Kind, protoreflect.Sfixed64Kind:
		return wire.AppendFixed64(b, v.RawBits()), nil
	case protoreflect.BoolKind:
		return wire.AppendVarint(b, v.RawBits()), nil
	case protoreflect.StringKind:
		s, _ := v.AsString()
		if !wire.ValidUTF8([]byte(s)) {
			return nil, errors.New(errors.InvalidUtf8, "string field is not valid UTF-8")
		}
		return wire.AppendBytes(b, []byte(s)), nil
	case protoreflect.BytesKind:
		by, _ := v.AsBytes()
		return wire.AppendBytes(b, by), nil
	case protoreflect.EnumKind:
		// Enum numbers are int32 on the wire and sign-extend like int32.
		ref, _ := v.AsEnum()
		return wire.AppendVarint(b, uint64(int64(ref.Number))), nil
	default:
		return nil, errors.New(errors.Descriptor, "unsupported scalar kind %v", k)
	}
}
