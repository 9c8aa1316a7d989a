package protojson

import (
	"encoding/base64"
	"strconv"

	"github.com/protoval/dynproto/internal/errors"
	"github.com/protoval/dynproto/reflect/protoreflect"
	"github.com/protoval/dynproto/types/dynamicpb"
)

// Unmarshal parses JSON text data into a fresh dynamic message of desc.
func (o UnmarshalOptions) Unmarshal(data []byte, desc *protoreflect.MessageDescriptor) (*dynamicpb.Message, error) {
	v, err := parseJSON(data)
	if err != nil {
		return nil, err
	}
	msg := dynamicpb.New(desc)
	if err := o.readMessage(v, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// Unmarshal is a convenience wrapper around UnmarshalOptions{}.Unmarshal.
func Unmarshal(data []byte, desc *protoreflect.MessageDescriptor) (*dynamicpb.Message, error) {
	return UnmarshalOptions{}.Unmarshal(data, desc)
}

func (o UnmarshalOptions) readMessage(v jsonValue, msg *dynamicpb.Message) error {
	desc := msg.Descriptor()
	if h, ok := o.handlerFor(desc.FullName); ok {
		return h.UnmarshalJSON(reencode(v), msg, o)
	}
	if v.kind != jsonObject {
		return errors.New(errors.Validation, "expected JSON object for message %s", desc.FullName)
	}
	for _, f := range v.fields {
		fd, ok := desc.FieldByName(protoreflect.Name(f.key))
		if !ok {
			fd, ok = fieldByJSONName(desc, f.key)
		}
		if !ok {
			if o.IgnoreUnknownFields {
				continue
			}
			return errors.WithField(errors.FieldNotFound, f.key, "no such field on message %s", desc.FullName)
		}
		if err := o.readValue(f.val, fd, msg); err != nil {
			return err
		}
	}
	return nil
}

func fieldByJSONName(desc *protoreflect.MessageDescriptor, name string) (*protoreflect.FieldDescriptor, bool) {
	for _, fd := range desc.Fields() {
		if fd.JSONName == name {
			return fd, true
		}
	}
	return nil, false
}

func (o UnmarshalOptions) readValue(v jsonValue, fd *protoreflect.FieldDescriptor, msg *dynamicpb.Message) error {
	if v.kind == jsonNull {
		return nil // null clears/skips the field, matching proto3 JSON semantics
	}
	switch {
	case fd.IsMap:
		return o.readMap(v, fd, msg)
	case fd.IsRepeated():
		return o.readRepeated(v, fd, msg)
	default:
		val, err := o.readScalar(v, fd)
		if err != nil {
			return err
		}
		return msg.Set(fd, val)
	}
}

func (o UnmarshalOptions) readRepeated(v jsonValue, fd *protoreflect.FieldDescriptor, msg *dynamicpb.Message) error {
	if v.kind != jsonArray {
		return errors.WithField(errors.Validation, string(fd.Name), "expected JSON array")
	}
	for _, e := range v.arr {
		val, err := o.readScalar(e, fd)
		if err != nil {
			return err
		}
		if err := msg.AppendToRepeated(fd, val); err != nil {
			return err
		}
	}
	return nil
}

func (o UnmarshalOptions) readMap(v jsonValue, fd *protoreflect.FieldDescriptor, msg *dynamicpb.Message) error {
	if v.kind != jsonObject {
		return errors.WithField(errors.Validation, string(fd.Name), "expected JSON object for map field")
	}
	for _, f := range v.fields {
		key, err := stringToMapKey(f.key, fd.MapEntry.Key.Kind)
		if err != nil {
			return err
		}
		val, err := o.readScalar(f.val, fd.MapEntry.Value)
		if err != nil {
			return err
		}
		if err := msg.SetMapEntry(fd, key, val); err != nil {
			return err
		}
	}
	return nil
}

func stringToMapKey(s string, kind protoreflect.Kind) (protoreflect.ProtoValue, error) {
	switch kind {
	case protoreflect.StringKind:
		return protoreflect.String(s), nil
	case protoreflect.BoolKind:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return protoreflect.ProtoValue{}, errors.New(errors.Validation, "invalid bool map key %q", s)
		}
		return protoreflect.Bool(b), nil
	case protoreflect.Int32Kind, protoreflect.Sint32Kind, protoreflect.Sfixed32Kind:
		i, err := strconv.ParseInt(s, 10, 32)
		if err != nil {
			return protoreflect.ProtoValue{}, errors.New(errors.Validation, "invalid integer map key %q", s)
		}
		return protoreflect.Int32(int32(i)), nil
	case protoreflect.Int64Kind, protoreflect.Sint64Kind, protoreflect.Sfixed64Kind:
		i, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return protoreflect.ProtoValue{}, errors.New(errors.Validation, "invalid integer map key %q", s)
		}
		return protoreflect.Int64(i), nil
	case protoreflect.Uint32Kind, protoreflect.Fixed32Kind:
		u, err := strconv.ParseUint(s, 10, 32)
		if err != nil {
			return protoreflect.ProtoValue{}, errors.New(errors.Validation, "invalid integer map key %q", s)
		}
		return protoreflect.UInt32(uint32(u)), nil
	case protoreflect.Uint64Kind, protoreflect.Fixed64Kind:
		u, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return protoreflect.ProtoValue{}, errors.New(errors.Validation, "invalid integer map key %q", s)
		}
		return protoreflect.UInt64(u), nil
	default:
		return protoreflect.ProtoValue{}, errors.New(errors.Descriptor, "invalid map key kind %v", kind)
	}
}

func (o UnmarshalOptions) readScalar(v jsonValue, fd *protoreflect.FieldDescriptor) (protoreflect.ProtoValue, error) {
	switch fd.Kind {
	case protoreflect.DoubleKind:
		f, err := jsonNumberOrString(v)
		if err != nil {
			return protoreflect.ProtoValue{}, err
		}
		return protoreflect.Double(f), nil
	case protoreflect.FloatKind:
		f, err := jsonNumberOrString(v)
		if err != nil {
			return protoreflect.ProtoValue{}, err
		}
		return protoreflect.Float(float32(f)), nil
	case protoreflect.Int32Kind, protoreflect.Sint32Kind, protoreflect.Sfixed32Kind:
		i, err := jsonInt(v)
		if err != nil {
			return protoreflect.ProtoValue{}, err
		}
		return protoreflect.Int32(int32(i)), nil
	case protoreflect.Uint32Kind, protoreflect.Fixed32Kind:
		i, err := jsonUint(v)
		if err != nil {
			return protoreflect.ProtoValue{}, err
		}
		return protoreflect.UInt32(uint32(i)), nil
	case protoreflect.Int64Kind, protoreflect.Sint64Kind, protoreflect.Sfixed64Kind:
		i, err := jsonInt(v)
		if err != nil {
			return protoreflect.ProtoValue{}, err
		}
		return protoreflect.Int64(i), nil
	case protoreflect.Uint64Kind, protoreflect.Fixed64Kind:
		i, err := jsonUint(v)
		if err != nil {
			return protoreflect.ProtoValue{}, err
		}
		return protoreflect.UInt64(i), nil
	case protoreflect.BoolKind:
		if v.kind != jsonBool {
			return protoreflect.ProtoValue{}, errors.New(errors.Validation, "expected JSON bool")
		}
		return protoreflect.Bool(v.b), nil
	case protoreflect.StringKind:
		if v.kind != jsonString {
			return protoreflect.ProtoValue{}, errors.New(errors.Validation, "expected JSON string")
		}
		return protoreflect.String(v.str), nil
	case protoreflect.BytesKind:
		if v.kind != jsonString {
			return protoreflect.ProtoValue{}, errors.New(errors.Validation, "expected JSON string for bytes field")
		}
		raw, err := base64.StdEncoding.DecodeString(v.str)
		if err != nil {
			return protoreflect.ProtoValue{}, errors.New(errors.Validation, "invalid base64: %v", err)
		}
		return protoreflect.Bytes(raw), nil
	case protoreflect.EnumKind:
		return o.readEnum(v, fd)
	case protoreflect.MessageKind:
		nested := dynamicpb.New(fd.MessageType)
		if err := o.readMessage(v, nested); err != nil {
			return protoreflect.ProtoValue{}, err
		}
		return protoreflect.Message(nested), nil
	default:
		return protoreflect.ProtoValue{}, errors.WithField(errors.Descriptor, string(fd.Name), "unsupported kind %v for JSON decoding", fd.Kind)
	}
}

func (o UnmarshalOptions) readEnum(v jsonValue, fd *protoreflect.FieldDescriptor) (protoreflect.ProtoValue, error) {
	switch v.kind {
	case jsonString:
		if fd.EnumType != nil {
			if val, ok := fd.EnumType.ByName(protoreflect.Name(v.str)); ok {
				return protoreflect.Enum(protoreflect.EnumValueRef{Number: val.Number, Name: val.Name, Descriptor: fd.EnumType}), nil
			}
		}
		return protoreflect.ProtoValue{}, errors.WithField(errors.Validation, string(fd.Name), "unknown enum name %q", v.str)
	case jsonNumber:
		i, err := strconv.ParseInt(v.num, 10, 32)
		if err != nil {
			return protoreflect.ProtoValue{}, errors.New(errors.Validation, "invalid enum number %q", v.num)
		}
		ref := protoreflect.EnumValueRef{Number: int32(i)}
		if fd.EnumType != nil {
			if val, ok := fd.EnumType.ByNumber(int32(i)); ok {
				ref.Name = val.Name
				ref.Descriptor = fd.EnumType
			}
		}
		return protoreflect.Enum(ref), nil
	default:
		return protoreflect.ProtoValue{}, errors.WithField(errors.Validation, string(fd.Name), "expected JSON string or number for enum")
	}
}

func jsonNumberOrString(v jsonValue) (float64, error) {
	switch v.kind {
	case jsonNumber:
		return strconv.ParseFloat(v.num, 64)
	case jsonString:
		return strconv.ParseFloat(v.str, 64)
	default:
		return 0, errors.New(errors.Validation, "expected JSON number or numeric string")
	}
}

func jsonInt(v jsonValue) (int64, error) {
	switch v.kind {
	case jsonNumber:
		return strconv.ParseInt(v.num, 10, 64)
	case jsonString:
		return strconv.ParseInt(v.str, 10, 64)
	default:
		return 0, errors.New(errors.Validation, "expected JSON number or numeric string")
	}
}

func jsonUint(v jsonValue) (uint64, error) {
	switch v.kind {
	case jsonNumber:
		return strconv.ParseUint(v.num, 10, 64)
	case jsonString:
		return strconv.ParseUint(v.str, 10, 64)
	default:
		return 0, errors.New(errors.Validation, "expected JSON number or numeric string")
	}
}

// reencode re-serializes a parsed jsonValue back to compact text, used when
// handing a sub-tree off to a well-known-type handler that expects raw JSON
// bytes rather than the internal parse tree.
func reencode(v jsonValue) []byte {
	w := newWriter("")
	writeJSONValue(w, v)
	return w.buf
}

func writeJSONValue(w *writer, v jsonValue) {
	switch v.kind {
	case jsonNull:
		w.writeNull()
	case jsonBool:
		w.writeBool(v.b)
	case jsonNumber:
		w.writeRawNumber(v.num)
	case jsonString:
		w.writeString(v.str)
	case jsonArray:
		aw := w.beginArray()
		for _, e := range v.arr {
			el := e
			aw.element(func(w *writer) { writeJSONValue(w, el) })
		}
		aw.end()
	case jsonObject:
		ow := w.beginObject()
		for _, f := range v.fields {
			fv := f.val
			ow.field(f.key, func(w *writer) { writeJSONValue(w, fv) })
		}
		ow.end()
	}
}
