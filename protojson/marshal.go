package protojson

import (
	"encoding/base64"
	"math"
	"strconv"

	"github.com/protoval/dynproto/internal/errors"
	"github.com/protoval/dynproto/reflect/protoreflect"
	"github.com/protoval/dynproto/types/dynamicpb"
)

// Marshal renders msg as canonical proto3 JSON text.
func (o MarshalOptions) Marshal(msg *dynamicpb.Message) ([]byte, error) {
	w := newWriter(o.Indent)
	if err := o.writeMessage(w, msg); err != nil {
		return nil, err
	}
	return w.buf, nil
}

// Marshal is a convenience wrapper around MarshalOptions{}.Marshal.
func Marshal(msg *dynamicpb.Message) ([]byte, error) {
	return MarshalOptions{}.Marshal(msg)
}

func (o MarshalOptions) writeMessage(w *writer, msg *dynamicpb.Message) error {
	desc := msg.Descriptor()
	if h, ok := o.handlerFor(desc.FullName); ok {
		raw, err := h.MarshalJSON(msg, o)
		if err != nil {
			return err
		}
		w.writeRaw(string(raw))
		return nil
	}

	ow := w.beginObject()
	var werr error
	for _, fd := range desc.Fields() {
		v, has, err := msg.Get(fd)
		if err != nil {
			return err
		}
		if !has {
			if !o.EmitUnpopulated {
				continue
			}
			gv, err := msg.GetOrDefault(fd)
			if err != nil {
				return err
			}
			v = gv
		}
		name := fd.JSONName
		if o.UseProtoNames {
			name = string(fd.Name)
		}
		ow.field(name, func(w *writer) {
			if werr != nil {
				return
			}
			werr = o.writeValue(w, fd, v)
		})
		if werr != nil {
			return werr
		}
	}
	ow.end()
	return nil
}

func (o MarshalOptions) writeValue(w *writer, fd *protoreflect.FieldDescriptor, v protoreflect.ProtoValue) error {
	switch {
	case fd.IsMap:
		return o.writeMap(w, fd, v)
	case fd.IsRepeated():
		return o.writeRepeated(w, fd, v)
	default:
		return o.writeScalar(w, fd, v)
	}
}

func (o MarshalOptions) writeRepeated(w *writer, fd *protoreflect.FieldDescriptor, v protoreflect.ProtoValue) error {
	elems, _ := v.AsRepeated()
	aw := w.beginArray()
	var werr error
	for _, e := range elems {
		aw.element(func(w *writer) {
			if werr != nil {
				return
			}
			werr = o.writeScalar(w, fd, e)
		})
		if werr != nil {
			return werr
		}
	}
	aw.end()
	return nil
}

func (o MarshalOptions) writeMap(w *writer, fd *protoreflect.FieldDescriptor, v protoreflect.ProtoValue) error {
	entries, _ := v.AsMap()
	ow := w.beginObject()
	var werr error
	for _, e := range entries {
		key := mapKeyToJSONName(e.Key)
		ow.field(key, func(w *writer) {
			if werr != nil {
				return
			}
			werr = o.writeScalar(w, fd.MapEntry.Value, e.Value)
		})
		if werr != nil {
			return werr
		}
	}
	ow.end()
	return nil
}

func mapKeyToJSONName(v protoreflect.ProtoValue) string {
	if s, ok := v.AsString(); ok {
		return s
	}
	if b, ok := v.AsBool(); ok {
		return strconv.FormatBool(b)
	}
	if i, ok := v.AsInt32(); ok {
		return strconv.FormatInt(int64(i), 10)
	}
	if i, ok := v.AsInt64(); ok {
		return strconv.FormatInt(i, 10)
	}
	if u, ok := v.AsUint32(); ok {
		return strconv.FormatUint(uint64(u), 10)
	}
	if u, ok := v.AsUint64(); ok {
		return strconv.FormatUint(u, 10)
	}
	return ""
}

func (o MarshalOptions) writeScalar(w *writer, fd *protoreflect.FieldDescriptor, v protoreflect.ProtoValue) error {
	switch fd.Kind {
	case protoreflect.DoubleKind:
		f, _ := v.AsDouble()
		writeFloat(w, f, 64)
	case protoreflect.FloatKind:
		f, _ := v.AsFloat()
		writeFloat(w, float64(f), 32)
	case protoreflect.Int32Kind, protoreflect.Sint32Kind, protoreflect.Sfixed32Kind:
		i, _ := v.AsInt32()
		w.writeRawNumber(strconv.FormatInt(int64(i), 10))
	case protoreflect.Uint32Kind, protoreflect.Fixed32Kind:
		u, _ := v.AsUint32()
		w.writeRawNumber(strconv.FormatUint(uint64(u), 10))
	case protoreflect.Int64Kind, protoreflect.Sint64Kind, protoreflect.Sfixed64Kind:
		i, _ := v.AsInt64()
		w.writeString(formatInt64AsString(i))
	case protoreflect.Uint64Kind, protoreflect.Fixed64Kind:
		u, _ := v.AsUint64()
		w.writeString(formatUint64AsString(u))
	case protoreflect.BoolKind:
		b, _ := v.AsBool()
		w.writeBool(b)
	case protoreflect.StringKind:
		s, _ := v.AsString()
		w.writeString(s)
	case protoreflect.BytesKind:
		b, _ := v.AsBytes()
		w.writeString(base64.StdEncoding.EncodeToString(b))
	case protoreflect.EnumKind:
		ref, _ := v.AsEnum()
		if ref.Name != "" {
			w.writeString(string(ref.Name))
		} else {
			w.writeRawNumber(strconv.FormatInt(int64(ref.Number), 10))
		}
	case protoreflect.MessageKind:
		msg, ok := v.AsMessage()
		if !ok {
			w.writeNull()
			return nil
		}
		dm, ok := msg.(*dynamicpb.Message)
		if !ok {
			return errors.WithField(errors.TypeMismatch, string(fd.Name), "unsupported message implementation")
		}
		return o.writeMessage(w, dm)
	default:
		return errors.WithField(errors.Descriptor, string(fd.Name), "unsupported kind %v for JSON encoding", fd.Kind)
	}
	return nil
}

// writeFloat renders a float/double value. bitSize must be 32 for float
// fields so that a value widened from float32 formats at its own precision
// ("0.1", not "0.10000000149011612"). Non-finite values have no JSON number
// form; proto3 JSON spells them as the quoted strings "NaN", "Infinity",
// and "-Infinity".
func writeFloat(w *writer, f float64, bitSize int) {
	switch {
	case math.IsNaN(f):
		w.writeString("NaN")
	case math.IsInf(f, 1):
		w.writeString("Infinity")
	case math.IsInf(f, -1):
		w.writeString("-Infinity")
	default:
		w.writeRawNumber(strconv.FormatFloat(f, 'g', -1, bitSize))
	}
}
