package wireformat_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/protoval/dynproto/reflect/protoreflect"
	"github.com/protoval/dynproto/types/dynamicpb"
	"github.com/protoval/dynproto/wireformat"
)

func mustField(t *testing.T, m *protoreflect.MessageDescriptor, f *protoreflect.FieldDescriptor) {
	t.Helper()
	if err := m.AddField(f); err != nil {
		t.Fatalf("AddField(%s): %v", f.Name, err)
	}
}

func personDescriptor(t *testing.T) *protoreflect.MessageDescriptor {
	t.Helper()
	m := protoreflect.NewMessageDescriptor("Person", "example.Person", "person.proto", "")
	mustField(t, m, protoreflect.NewFieldDescriptor("id", 1, protoreflect.Int32Kind, protoreflect.Singular))
	mustField(t, m, protoreflect.NewFieldDescriptor("name", 2, protoreflect.StringKind, protoreflect.Singular))
	mustField(t, m, protoreflect.NewFieldDescriptor("active", 3, protoreflect.BoolKind, protoreflect.Singular))
	return m
}

// TestPrimitiveRoundTripFixture pins the exact wire bytes for
// {id: 123, name: "John Doe", active: true}.
func TestPrimitiveRoundTripFixture(t *testing.T) {
	desc := personDescriptor(t)
	msg := dynamicpb.New(desc)
	must(t, msg.Set("id", protoreflect.Int32(123)))
	must(t, msg.Set("name", protoreflect.String("John Doe")))
	must(t, msg.Set("active", protoreflect.Bool(true)))

	got, err := wireformat.Marshal(msg)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := []byte{0x08, 0x7B, 0x12, 0x08, 'J', 'o', 'h', 'n', ' ', 'D', 'o', 'e', 0x18, 0x01}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Marshal bytes mismatch (-want +got):\n%s", diff)
	}

	back, err := wireformat.Unmarshal(got, desc)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	id, _, _ := back.Get("id")
	name, _, _ := back.Get("name")
	active, _, _ := back.Get("active")
	if v, _ := id.AsInt32(); v != 123 {
		t.Errorf("id = %d, want 123", v)
	}
	if v, _ := name.AsString(); v != "John Doe" {
		t.Errorf("name = %q, want John Doe", v)
	}
	if v, _ := active.AsBool(); !v {
		t.Errorf("active = %v, want true", v)
	}
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func repeatedDescriptor(t *testing.T) *protoreflect.MessageDescriptor {
	t.Helper()
	m := protoreflect.NewMessageDescriptor("Values", "example.Values", "values.proto", "")
	mustField(t, m, protoreflect.NewFieldDescriptor("values", 1, protoreflect.Int32Kind, protoreflect.Repeated))
	return m
}

func TestPackedRepeatedFixture(t *testing.T) {
	desc := repeatedDescriptor(t)
	msg := dynamicpb.New(desc)
	for _, v := range []int32{1, 2, 300} {
		must(t, msg.AppendToRepeated("values", protoreflect.Int32(v)))
	}
	got, err := wireformat.Marshal(msg)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := []byte{0x0A, 0x04, 0x01, 0x02, 0xAC, 0x02}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Marshal bytes mismatch (-want +got):\n%s", diff)
	}
}

// TestUnpackedRepeatedAccepted verifies that an unpacked encoding of the same
// repeated field (one tag+value per element) is accepted on decode even
// though Marshal produces the packed form for this field.
func TestUnpackedRepeatedAccepted(t *testing.T) {
	desc := repeatedDescriptor(t)
	unpacked := []byte{0x08, 0x01, 0x08, 0x02, 0x08, 0xAC, 0x02}
	msg, err := wireformat.Unmarshal(unpacked, desc)
	if err != nil {
		t.Fatalf("Unmarshal unpacked form: %v", err)
	}
	v, _, _ := msg.Get("values")
	elems, _ := v.AsRepeated()
	var got []int32
	for _, e := range elems {
		i, _ := e.AsInt32()
		got = append(got, i)
	}
	if diff := cmp.Diff([]int32{1, 2, 300}, got); diff != "" {
		t.Fatalf("unpacked decode mismatch (-want +got):\n%s", diff)
	}
}

func mapDescriptor(t *testing.T) (*protoreflect.MessageDescriptor, *protoreflect.FieldDescriptor) {
	t.Helper()
	entry := protoreflect.NewMessageDescriptor("TagsEntry", "example.Tagged.TagsEntry", "tagged.proto", "example.Tagged")
	entry.MarkMapEntry()
	key := protoreflect.NewFieldDescriptor("key", 1, protoreflect.StringKind, protoreflect.Singular)
	val := protoreflect.NewFieldDescriptor("value", 2, protoreflect.Int32Kind, protoreflect.Singular)
	mustField(t, entry, key)
	mustField(t, entry, val)

	m := protoreflect.NewMessageDescriptor("Tagged", "example.Tagged", "tagged.proto", "")
	m.AddNestedMessage(entry)
	mf := protoreflect.NewFieldDescriptor("tags", 1, protoreflect.MessageKind, protoreflect.Repeated)
	mf.TypeName = entry.FullName
	mf.MessageType = entry
	mf.IsMap = true
	mf.MapEntry = &protoreflect.MapFieldInfo{Key: key, Value: val}
	mustField(t, m, mf)
	return m, mf
}

func TestMapEncodingIsKeySortedAndOrderIndependent(t *testing.T) {
	desc, _ := mapDescriptor(t)

	build := func(order []string) []byte {
		msg := dynamicpb.New(desc)
		for _, k := range order {
			must(t, msg.SetMapEntry("tags", protoreflect.String(k), protoreflect.Int32(int32(len(k)))))
		}
		b, err := wireformat.Marshal(msg)
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		return b
	}

	a := build([]string{"zeta", "alpha", "mid"})
	b := build([]string{"mid", "zeta", "alpha"})
	if diff := cmp.Diff(a, b); diff != "" {
		t.Fatalf("map marshal is not permutation-independent (-a +b):\n%s", diff)
	}
}

// TestUnknownFieldPreservation decodes a message containing a field unknown
// to an older descriptor, then re-marshals it, and expects the unknown bytes
// to survive byte-for-byte.
func TestUnknownFieldPreservation(t *testing.T) {
	v1 := protoreflect.NewMessageDescriptor("Person", "example.Person", "person.proto", "")
	mustField(t, v1, protoreflect.NewFieldDescriptor("id", 1, protoreflect.Int32Kind, protoreflect.Singular))

	v2 := protoreflect.NewMessageDescriptor("Person", "example.Person", "person.proto", "")
	mustField(t, v2, protoreflect.NewFieldDescriptor("id", 1, protoreflect.Int32Kind, protoreflect.Singular))
	mustField(t, v2, protoreflect.NewFieldDescriptor("nickname", 2, protoreflect.StringKind, protoreflect.Singular))

	full := dynamicpb.New(v2)
	must(t, full.Set("id", protoreflect.Int32(5)))
	must(t, full.Set("nickname", protoreflect.String("Lee")))
	encoded, err := wireformat.Marshal(full)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	decodedOld, err := wireformat.Unmarshal(encoded, v1)
	if err != nil {
		t.Fatalf("Unmarshal against v1: %v", err)
	}
	if len(decodedOld.UnknownFields()) != 1 {
		t.Fatalf("expected 1 unknown field, got %d", len(decodedOld.UnknownFields()))
	}

	reEncoded, err := wireformat.Marshal(decodedOld)
	if err != nil {
		t.Fatalf("re-Marshal: %v", err)
	}
	if diff := cmp.Diff(encoded, reEncoded); diff != "" {
		t.Fatalf("unknown field did not round-trip byte-for-byte (-want +got):\n%s", diff)
	}
}

func TestWireTypeMismatchRejected(t *testing.T) {
	desc := personDescriptor(t)
	// id (field 1) declared int32/varint; encode it as fixed32 instead.
	bad := []byte{0x0D, 0x01, 0x00, 0x00, 0x00}
	if _, err := wireformat.Unmarshal(bad, desc); err == nil {
		t.Fatalf("expected WireTypeMismatch error")
	}
}

func TestMessageTooLargeRejected(t *testing.T) {
	desc := personDescriptor(t)
	big := make([]byte, 10)
	_, err := wireformat.UnmarshalOptions{MaxSize: 5}.Unmarshal(big, desc)
	if err == nil {
		t.Fatalf("expected MessageTooLarge error")
	}
}

// TestMarshalInvalidUtf8Rejected checks that, like Unmarshal, Marshal
// validates string fields and fails rather than emitting malformed UTF-8
// onto the wire.
func TestMarshalInvalidUtf8Rejected(t *testing.T) {
	desc := personDescriptor(t)
	msg := dynamicpb.New(desc)
	must(t, msg.Set("name", protoreflect.String(string([]byte{0xFF}))))
	if _, err := wireformat.Marshal(msg); err == nil {
		t.Fatalf("expected InvalidUtf8 error")
	}
}

// TestNegativeInt32SignExtended pins the canonical encoding of a negative
// int32: sign-extended to 64 bits, occupying the full 10 varint bytes.
func TestNegativeInt32SignExtended(t *testing.T) {
	desc := personDescriptor(t)
	msg := dynamicpb.New(desc)
	must(t, msg.Set("id", protoreflect.Int32(-1)))
	got, err := wireformat.Marshal(msg)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := []byte{0x08, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0x01}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("negative int32 encoding mismatch (-want +got):\n%s", diff)
	}

	back, err := wireformat.Unmarshal(got, desc)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	v, _, _ := back.Get("id")
	if i, _ := v.AsInt32(); i != -1 {
		t.Fatalf("round-tripped id = %d, want -1", i)
	}
}

func TestSint32UsesZigZag(t *testing.T) {
	m := protoreflect.NewMessageDescriptor("Delta", "example.Delta", "delta.proto", "")
	mustField(t, m, protoreflect.NewFieldDescriptor("d", 1, protoreflect.Sint32Kind, protoreflect.Singular))

	msg := dynamicpb.New(m)
	must(t, msg.Set("d", protoreflect.SInt32(-1)))
	got, err := wireformat.Marshal(msg)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	// ZigZag(-1) = 1, so the whole field is two bytes.
	want := []byte{0x08, 0x01}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("sint32 encoding mismatch (-want +got):\n%s", diff)
	}
}

// TestMixedPackedAndUnpackedConcatenate verifies that a stream interleaving
// packed and unpacked encodings of the same repeated field decodes into one
// ordered list.
func TestMixedPackedAndUnpackedConcatenate(t *testing.T) {
	desc := repeatedDescriptor(t)
	// unpacked 1, then packed [2, 3], then unpacked 4.
	stream := []byte{
		0x08, 0x01,
		0x0A, 0x02, 0x02, 0x03,
		0x08, 0x04,
	}
	msg, err := wireformat.Unmarshal(stream, desc)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	v, _, _ := msg.Get("values")
	elems, _ := v.AsRepeated()
	var got []int32
	for _, e := range elems {
		i, _ := e.AsInt32()
		got = append(got, i)
	}
	if diff := cmp.Diff([]int32{1, 2, 3, 4}, got); diff != "" {
		t.Fatalf("mixed encoding decode mismatch (-want +got):\n%s", diff)
	}
}

func TestExplicitlyUnpackedOptionHonored(t *testing.T) {
	m := protoreflect.NewMessageDescriptor("Values", "example.Values", "values.proto", "")
	fd := protoreflect.NewFieldDescriptor("values", 1, protoreflect.Int32Kind, protoreflect.Repeated)
	fd.Options["packed"] = false
	mustField(t, m, fd)

	msg := dynamicpb.New(m)
	for _, v := range []int32{1, 2} {
		must(t, msg.AppendToRepeated("values", protoreflect.Int32(v)))
	}
	got, err := wireformat.Marshal(msg)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := []byte{0x08, 0x01, 0x08, 0x02}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unpacked emission mismatch (-want +got):\n%s", diff)
	}
}

func nestedDescriptor(t *testing.T) *protoreflect.MessageDescriptor {
	t.Helper()
	m := protoreflect.NewMessageDescriptor("Node", "example.Node", "node.proto", "")
	child := protoreflect.NewFieldDescriptor("child", 1, protoreflect.MessageKind, protoreflect.Singular)
	child.TypeName = m.FullName
	child.MessageType = m
	mustField(t, m, child)
	return m
}

// nestBytes wraps an empty message `levels` times: each level is one
// length-delimited field-1 envelope around the previous.
func nestBytes(levels int) []byte {
	var b []byte
	for i := 0; i < levels; i++ {
		b = appendVarlen([]byte{0x0A}, b)
	}
	return b
}

func appendVarlen(b, inner []byte) []byte {
	n := len(inner)
	for n >= 0x80 {
		b = append(b, byte(n)|0x80)
		n >>= 7
	}
	b = append(b, byte(n))
	return append(b, inner...)
}

func TestRecursionLimit(t *testing.T) {
	desc := nestedDescriptor(t)
	if _, err := wireformat.Unmarshal(nestBytes(100), desc); err != nil {
		t.Fatalf("100 levels of nesting rejected: %v", err)
	}
	if _, err := wireformat.Unmarshal(nestBytes(101), desc); err == nil {
		t.Fatal("expected RecursionLimitExceeded at 101 levels")
	}
}

// TestGroupFieldSkippedAndPreserved feeds a declared group field on the wire
// and expects it to be skipped at the byte level but preserved for
// round-trip, like an unknown field.
func TestGroupFieldSkippedAndPreserved(t *testing.T) {
	m := protoreflect.NewMessageDescriptor("Legacy", "example.Legacy", "legacy.proto", "")
	grp := protoreflect.NewFieldDescriptor("grp", 2, protoreflect.GroupKind, protoreflect.Singular)
	grp.TypeName = "example.Legacy.Grp"
	grp.MessageType = protoreflect.NewMessageDescriptor("Grp", "example.Legacy.Grp", "legacy.proto", "example.Legacy")
	mustField(t, m, grp)
	mustField(t, m, protoreflect.NewFieldDescriptor("id", 1, protoreflect.Int32Kind, protoreflect.Singular))

	// field 1 = 9, then group field 2: start-group, inner field 3 varint 7, end-group.
	stream := []byte{
		0x08, 0x09,
		0x13, 0x18, 0x07, 0x14,
	}
	msg, err := wireformat.Unmarshal(stream, m)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	v, _, _ := msg.Get("id")
	if i, _ := v.AsInt32(); i != 9 {
		t.Errorf("id = %d, want 9", i)
	}
	if len(msg.UnknownFields()) != 1 {
		t.Fatalf("group bytes not preserved: %d unknown fields", len(msg.UnknownFields()))
	}

	out, err := wireformat.Marshal(msg)
	if err != nil {
		t.Fatalf("re-Marshal: %v", err)
	}
	if diff := cmp.Diff(stream, out); diff != "" {
		t.Fatalf("group did not round-trip byte-for-byte (-want +got):\n%s", diff)
	}
}

// TestEndGroupWithoutStartRejected covers the InvalidTag path for a stray
// end-group wire type at the top level.
func TestEndGroupWithoutStartRejected(t *testing.T) {
	desc := personDescriptor(t)
	stray := []byte{0x24} // field 4, wire type 4 (end-group)
	if _, err := wireformat.Unmarshal(stray, desc); err == nil {
		t.Fatal("expected InvalidTag for end-group without start-group")
	}
}

func TestEmptyStringEncodesAsTagPlusZeroLength(t *testing.T) {
	desc := personDescriptor(t)
	msg := dynamicpb.New(desc)
	must(t, msg.Set("name", protoreflect.String("")))
	got, err := wireformat.Marshal(msg)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := []byte{0x12, 0x00}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("empty string encoding mismatch (-want +got):\n%s", diff)
	}
}

// TestSchemaEvolutionRecoversUnknownField decodes bytes carrying a field the
// old schema does not know, re-marshals them, and decodes the result under
// the newer schema that does: the once-unknown field must surface with its
// original value.
func TestSchemaEvolutionRecoversUnknownField(t *testing.T) {
	v1 := protoreflect.NewMessageDescriptor("V", "example.V", "v.proto", "")
	mustField(t, v1, protoreflect.NewFieldDescriptor("a", 1, protoreflect.Int32Kind, protoreflect.Singular))

	v2 := protoreflect.NewMessageDescriptor("V", "example.V", "v.proto", "")
	mustField(t, v2, protoreflect.NewFieldDescriptor("a", 1, protoreflect.Int32Kind, protoreflect.Singular))
	mustField(t, v2, protoreflect.NewFieldDescriptor("b", 2, protoreflect.Int32Kind, protoreflect.Singular))

	wire := []byte{0x08, 0x2A, 0x10, 0x63} // a=42, b=99 (unknown to v1)
	old, err := wireformat.Unmarshal(wire, v1)
	if err != nil {
		t.Fatalf("Unmarshal v1: %v", err)
	}
	reEncoded, err := wireformat.Marshal(old)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	next, err := wireformat.Unmarshal(reEncoded, v2)
	if err != nil {
		t.Fatalf("Unmarshal v2: %v", err)
	}
	av, _, _ := next.Get("a")
	bv, _, _ := next.Get("b")
	if a, _ := av.AsInt32(); a != 42 {
		t.Errorf("a = %d, want 42", a)
	}
	if b, _ := bv.AsInt32(); b != 99 {
		t.Errorf("b = %d, want 99", b)
	}
}
