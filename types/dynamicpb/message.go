// Package dynamicpb provides the runtime message container: a DynamicMessage
// maps field numbers to ProtoValues according to a MessageDescriptor,
// without requiring compiled Go struct types for the schema.
//
// Operations on a single *Message are not safe for concurrent use: a caller
// that shares one across goroutines must serialize access itself. Descriptors, once built, are immutable and may be shared freely
// across any number of messages and goroutines.
package dynamicpb

import (
	"sort"

	"github.com/protoval/dynproto/internal/errors"
	"github.com/protoval/dynproto/reflect/protoreflect"
)

// RawUnknownField is one raw, undecoded field exactly as it appeared on the
// wire: its tag (field number + wire type) and the encoded value bytes.
type RawUnknownField struct {
	Tag   uint64
	Bytes []byte
}

// Message is a dynamically constructed protocol buffer message: a
// descriptor reference, a map from field number to value, a presence set,
// and a buffer of unknown fields preserved for round-trip fidelity.
type Message struct {
	desc    *protoreflect.MessageDescriptor
	values  map[int32]protoreflect.ProtoValue
	present map[int32]bool
	unknown []RawUnknownField
}

// New constructs an empty message bound to desc. The descriptor is shared,
// never copied; desc must outlive every Message built from it.
func New(desc *protoreflect.MessageDescriptor) *Message {
	return &Message{
		desc:    desc,
		values:  map[int32]protoreflect.ProtoValue{},
		present: map[int32]bool{},
	}
}

// Descriptor returns the message's descriptor.
func (m *Message) Descriptor() *protoreflect.MessageDescriptor { return m.desc }

func (m *Message) resolveField(field interface{}) (*protoreflect.FieldDescriptor, error) {
	switch f := field.(type) {
	case *protoreflect.FieldDescriptor:
		if f.ContainingMessage() != m.desc {
			return nil, errors.WithField(errors.FieldNotFound, string(f.Name), "field does not belong to message %s", m.desc.FullName)
		}
		return f, nil
	case string:
		fd, ok := m.desc.FieldByName(protoreflect.Name(f))
		if !ok {
			return nil, errors.WithField(errors.FieldNotFound, f, "no such field on message %s", m.desc.FullName)
		}
		return fd, nil
	case int32:
		fd, ok := m.desc.FieldByNumber(f)
		if !ok {
			return nil, errors.New(errors.FieldNotFound, "no field numbered %d on message %s", f, m.desc.FullName)
		}
		return fd, nil
	default:
		return nil, errors.New(errors.FieldNotFound, "invalid field selector %T", field)
	}
}

// Set stores value for the named/numbered/descriptor-identified field,
// validating it against the field's kind first. Setting a field that
// belongs to a oneof clears any other field of that oneof.
func (m *Message) Set(field interface{}, value protoreflect.ProtoValue) error {
	fd, err := m.resolveField(field)
	if err != nil {
		return err
	}
	if !protoreflect.IsValidFor(fd, value) {
		return errors.WithField(errors.TypeMismatch, string(fd.Name), "value of kind %v is not valid for field kind %v", value.Kind(), fd.Kind)
	}
	if fd.InOneof() {
		m.clearOneofSiblings(fd)
	}
	m.values[fd.Number] = value
	m.present[fd.Number] = true
	return nil
}

func (m *Message) clearOneofSiblings(fd *protoreflect.FieldDescriptor) {
	for _, other := range m.desc.Fields() {
		if other.OneofIndex == fd.OneofIndex && other.Number != fd.Number {
			delete(m.values, other.Number)
			delete(m.present, other.Number)
		}
	}
}

// Get returns the value for a field if explicitly set, or (zero, false)
// otherwise. Use GetOrDefault to additionally receive the proto3 zero value
// for an unset field.
func (m *Message) Get(field interface{}) (protoreflect.ProtoValue, bool, error) {
	fd, err := m.resolveField(field)
	if err != nil {
		return protoreflect.ProtoValue{}, false, err
	}
	v, ok := m.values[fd.Number]
	return v, ok, nil
}

// GetOrDefault returns the set value, or the proto3 default for the field's
// kind if unset (empty list/map for repeated/map fields, zero scalar
// otherwise, nil for message fields).
func (m *Message) GetOrDefault(field interface{}) (protoreflect.ProtoValue, error) {
	fd, err := m.resolveField(field)
	if err != nil {
		return protoreflect.ProtoValue{}, err
	}
	if v, ok := m.values[fd.Number]; ok {
		return v, nil
	}
	return defaultValue(fd), nil
}

func defaultValue(fd *protoreflect.FieldDescriptor) protoreflect.ProtoValue {
	switch {
	case fd.IsMap:
		return protoreflect.Map(nil)
	case fd.IsRepeated():
		return protoreflect.RepeatedList(nil)
	}
	if fd.Default != nil {
		return *fd.Default
	}
	switch fd.Kind {
	case protoreflect.DoubleKind:
		return protoreflect.Double(0)
	case protoreflect.FloatKind:
		return protoreflect.Float(0)
	case protoreflect.Int32Kind:
		return protoreflect.Int32(0)
	case protoreflect.Int64Kind:
		return protoreflect.Int64(0)
	case protoreflect.Uint32Kind:
		return protoreflect.UInt32(0)
	case protoreflect.Uint64Kind:
		return protoreflect.UInt64(0)
	case protoreflect.Sint32Kind:
		return protoreflect.SInt32(0)
	case protoreflect.Sint64Kind:
		return protoreflect.SInt64(0)
	case protoreflect.Fixed32Kind:
		return protoreflect.Fixed32(0)
	case protoreflect.Fixed64Kind:
		return protoreflect.Fixed64(0)
	case protoreflect.Sfixed32Kind:
		return protoreflect.SFixed32(0)
	case protoreflect.Sfixed64Kind:
		return protoreflect.SFixed64(0)
	case protoreflect.BoolKind:
		return protoreflect.Bool(false)
	case protoreflect.StringKind:
		return protoreflect.String("")
	case protoreflect.BytesKind:
		return protoreflect.Bytes(nil)
	case protoreflect.EnumKind:
		return protoreflect.Enum(protoreflect.EnumValueRef{Number: 0})
	default:
		return protoreflect.ProtoValue{}
	}
}

// Has reports whether field was explicitly set.
func (m *Message) Has(field interface{}) (bool, error) {
	fd, err := m.resolveField(field)
	if err != nil {
		return false, err
	}
	return m.present[fd.Number], nil
}

// Clear removes a field's value and presence. Clearing a oneof member
// clears the entire oneof; since only one member can ever be present at a
// time, that is the same as clearing just the named field.
func (m *Message) Clear(field interface{}) error {
	fd, err := m.resolveField(field)
	if err != nil {
		return err
	}
	delete(m.values, fd.Number)
	delete(m.present, fd.Number)
	return nil
}

// AppendToRepeated appends elem to a repeated (non-map) field, validating
// elem against the field's element kind.
func (m *Message) AppendToRepeated(field interface{}, elem protoreflect.ProtoValue) error {
	fd, err := m.resolveField(field)
	if err != nil {
		return err
	}
	if !fd.IsRepeated() {
		return errors.WithField(errors.TypeMismatch, string(fd.Name), "field is not repeated")
	}
	current, _ := m.values[fd.Number].AsRepeated()
	next := append(append([]protoreflect.ProtoValue(nil), current...), elem)
	nv := protoreflect.RepeatedList(next)
	if !protoreflect.IsValidFor(fd, nv) {
		return errors.WithField(errors.TypeMismatch, string(fd.Name), "element of kind %v is not valid for field kind %v", elem.Kind(), fd.Kind)
	}
	m.values[fd.Number] = nv
	m.present[fd.Number] = true
	return nil
}

// SetMapEntry inserts or overwrites a single map entry, validating key and
// value against the field's map_entry kinds.
func (m *Message) SetMapEntry(field interface{}, key, value protoreflect.ProtoValue) error {
	fd, err := m.resolveField(field)
	if err != nil {
		return err
	}
	if !fd.IsMap {
		return errors.WithField(errors.TypeMismatch, string(fd.Name), "field is not a map")
	}
	current, _ := m.values[fd.Number].AsMap()
	next := make([]protoreflect.MapEntry, 0, len(current)+1)
	replaced := false
	for _, e := range current {
		if mapKeyEqual(e.Key, key) {
			next = append(next, protoreflect.MapEntry{Key: key, Value: value})
			replaced = true
			continue
		}
		next = append(next, e)
	}
	if !replaced {
		next = append(next, protoreflect.MapEntry{Key: key, Value: value})
	}
	nv := protoreflect.Map(next)
	if !protoreflect.IsValidFor(fd, nv) {
		return errors.WithField(errors.TypeMismatch, string(fd.Name), "entry is not valid for map field")
	}
	m.values[fd.Number] = nv
	m.present[fd.Number] = true
	return nil
}

// RemoveMapEntry deletes the entry for key, if any.
func (m *Message) RemoveMapEntry(field interface{}, key protoreflect.ProtoValue) error {
	fd, err := m.resolveField(field)
	if err != nil {
		return err
	}
	if !fd.IsMap {
		return errors.WithField(errors.TypeMismatch, string(fd.Name), "field is not a map")
	}
	current, _ := m.values[fd.Number].AsMap()
	next := make([]protoreflect.MapEntry, 0, len(current))
	for _, e := range current {
		if mapKeyEqual(e.Key, key) {
			continue
		}
		next = append(next, e)
	}
	m.values[fd.Number] = protoreflect.Map(next)
	m.present[fd.Number] = true
	return nil
}

func mapKeyEqual(a, b protoreflect.ProtoValue) bool {
	if a.Kind() != b.Kind() {
		return false
	}
	if s, ok := a.AsString(); ok {
		bs, _ := b.AsString()
		return s == bs
	}
	if bl, ok := a.AsBool(); ok {
		bb, _ := b.AsBool()
		return bl == bb
	}
	return a.RawBits() == b.RawBits()
}

// UnknownFields returns the preserved raw buffer, in the order fields were
// encountered (or appended).
func (m *Message) UnknownFields() []RawUnknownField { return m.unknown }

// SetUnknownFields replaces the unknown-field buffer wholesale; used by the
// binary codec while decoding.
func (m *Message) SetUnknownFields(fields []RawUnknownField) { m.unknown = fields }

// AppendUnknownField appends one raw unknown field to the buffer.
func (m *Message) AppendUnknownField(tag uint64, raw []byte) {
	m.unknown = append(m.unknown, RawUnknownField{Tag: tag, Bytes: raw})
}

// IsValid runs the field-validity predicate over every explicitly set field.
func (m *Message) IsValid() bool {
	for num, v := range m.values {
		if !m.present[num] {
			continue
		}
		fd, ok := m.desc.FieldByNumber(num)
		if !ok {
			return false
		}
		if !protoreflect.IsValidFor(fd, v) {
			return false
		}
	}
	return true
}

// Range iterates over every explicitly set field in ascending field-number
// order. Returning false from f stops iteration early.
func (m *Message) Range(f func(fd *protoreflect.FieldDescriptor, v protoreflect.ProtoValue) bool) {
	nums := make([]int32, 0, len(m.present))
	for num := range m.present {
		nums = append(nums, num)
	}
	sort.Slice(nums, func(i, j int) bool { return nums[i] < nums[j] })
	for _, num := range nums {
		fd, ok := m.desc.FieldByNumber(num)
		if !ok {
			continue
		}
		if !f(fd, m.values[num]) {
			return
		}
	}
}

// Clone returns a deep-enough copy of m: its own presence set, value map,
// and unknown-field buffer, safe to mutate independently of the original.
// Nested dynamic messages are cloned recursively; scalar/repeated/map
// values, being immutable ProtoValues, are shared by reference.
func (m *Message) Clone() *Message {
	out := New(m.desc)
	for num, v := range m.values {
		out.values[num] = cloneValue(v)
	}
	for num, p := range m.present {
		out.present[num] = p
	}
	out.unknown = append([]RawUnknownField(nil), m.unknown...)
	return out
}

func cloneValue(v protoreflect.ProtoValue) protoreflect.ProtoValue {
	if nested, ok := v.AsMessage(); ok {
		if dm, ok := nested.(*Message); ok {
			return protoreflect.Message(dm.Clone())
		}
	}
	return v
}

// Merge copies every explicitly set field of src into m, following standard
// proto merge semantics: scalars and messages are overwritten (messages
// merged recursively), repeated fields are concatenated, and map fields are
// overlaid key by key.
func (m *Message) Merge(src *Message) error {
	if src.desc.FullName != m.desc.FullName {
		return errors.New(errors.TypeMismatch, "cannot merge %s into %s", src.desc.FullName, m.desc.FullName)
	}
	var err error
	src.Range(func(sfd *protoreflect.FieldDescriptor, v protoreflect.ProtoValue) bool {
		fd, ok := m.desc.FieldByNumber(sfd.Number)
		if !ok {
			err = errors.New(errors.FieldNotFound, "no field numbered %d on message %s", sfd.Number, m.desc.FullName)
			return false
		}
		switch {
		case fd.IsMap:
			entries, _ := v.AsMap()
			for _, e := range entries {
				if e2 := m.SetMapEntry(fd, e.Key, e.Value); e2 != nil {
					err = e2
					return false
				}
			}
		case fd.IsRepeated():
			elems, _ := v.AsRepeated()
			for _, e := range elems {
				if e2 := m.AppendToRepeated(fd, e); e2 != nil {
					err = e2
					return false
				}
			}
		case fd.Kind == protoreflect.MessageKind || fd.Kind == protoreflect.GroupKind:
			existing, has, _ := m.Get(fd)
			srcMsg, _ := v.AsMessage()
			srcDM, ok := srcMsg.(*Message)
			if has && ok {
				if existingMsg, ok2 := existing.AsMessage(); ok2 {
					if existingDM, ok3 := existingMsg.(*Message); ok3 {
						if e2 := existingDM.Merge(srcDM); e2 != nil {
							err = e2
							return false
						}
						return true
					}
				}
			}
			if e2 := m.Set(fd, protoreflect.Message(srcDM.Clone())); e2 != nil {
				err = e2
				return false
			}
		default:
			if e2 := m.Set(fd, v); e2 != nil {
				err = e2
				return false
			}
		}
		return true
	})
	return err
}
