package protoreflect_test

import (
	"math"
	"testing"

	"github.com/protoval/dynproto/reflect/protoreflect"
)

func TestAccessorsRejectVariantMismatch(t *testing.T) {
	v := protoreflect.String("hello")
	if _, ok := v.AsInt32(); ok {
		t.Error("AsInt32 on a string value reported ok")
	}
	if _, ok := v.AsBool(); ok {
		t.Error("AsBool on a string value reported ok")
	}
	if s, ok := v.AsString(); !ok || s != "hello" {
		t.Errorf("AsString = (%q, %v), want (hello, true)", s, ok)
	}
}

func TestZeroValueIsInvalid(t *testing.T) {
	var v protoreflect.ProtoValue
	if v.IsValid() {
		t.Error("zero ProtoValue reports valid")
	}
	if protoreflect.Int32(0).Kind() != protoreflect.Int32Value {
		t.Error("Int32(0) lost its kind")
	}
}

func TestNegativeIntegerBitPatterns(t *testing.T) {
	v := protoreflect.Int32(math.MinInt32)
	if got, _ := v.AsInt32(); got != math.MinInt32 {
		t.Errorf("AsInt32 = %d, want MinInt32", got)
	}
	v = protoreflect.Int64(-1)
	if got, _ := v.AsInt64(); got != -1 {
		t.Errorf("AsInt64 = %d, want -1", got)
	}
	v = protoreflect.SFixed64(math.MinInt64)
	if got, _ := v.AsInt64(); got != math.MinInt64 {
		t.Errorf("AsInt64 on sfixed64 = %d, want MinInt64", got)
	}
}

func TestConvertNumericTruncation(t *testing.T) {
	// 0x1_0000_0001 truncates to 1 as int32, two's-complement style.
	v, err := protoreflect.Convert(protoreflect.Int64(1<<32|1), protoreflect.Int32Value)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if got, _ := v.AsInt32(); got != 1 {
		t.Errorf("truncated value = %d, want 1", got)
	}
}

func TestConvertStringNumber(t *testing.T) {
	v, err := protoreflect.Convert(protoreflect.String("-42"), protoreflect.Int64Value)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if got, _ := v.AsInt64(); got != -42 {
		t.Errorf("parsed = %d, want -42", got)
	}

	v, err = protoreflect.Convert(protoreflect.Int32(7), protoreflect.StringValue)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if got, _ := v.AsString(); got != "7" {
		t.Errorf("formatted = %q, want 7", got)
	}

	if _, err := protoreflect.Convert(protoreflect.String("seven"), protoreflect.Int64Value); err == nil {
		t.Error("expected parse failure converting non-numeric string")
	}
}

func TestConvertBytesString(t *testing.T) {
	v, err := protoreflect.Convert(protoreflect.Bytes([]byte("ok")), protoreflect.StringValue)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if got, _ := v.AsString(); got != "ok" {
		t.Errorf("converted = %q, want ok", got)
	}
}

func mustAddField(t *testing.T, m *protoreflect.MessageDescriptor, f *protoreflect.FieldDescriptor) *protoreflect.FieldDescriptor {
	t.Helper()
	if err := m.AddField(f); err != nil {
		t.Fatalf("AddField(%s): %v", f.Name, err)
	}
	return f
}

func TestIsValidForSingular(t *testing.T) {
	m := protoreflect.NewMessageDescriptor("T", "x.T", "x.proto", "")
	fd := mustAddField(t, m, protoreflect.NewFieldDescriptor("n", 1, protoreflect.Int32Kind, protoreflect.Singular))

	if !protoreflect.IsValidFor(fd, protoreflect.Int32(5)) {
		t.Error("matching kind rejected")
	}
	if protoreflect.IsValidFor(fd, protoreflect.Int64(5)) {
		t.Error("int64 accepted for int32 field")
	}
	if protoreflect.IsValidFor(fd, protoreflect.RepeatedList(nil)) {
		t.Error("repeated value accepted for singular field")
	}
}

func TestIsValidForRepeated(t *testing.T) {
	m := protoreflect.NewMessageDescriptor("T", "x.T", "x.proto", "")
	fd := mustAddField(t, m, protoreflect.NewFieldDescriptor("ns", 1, protoreflect.Int32Kind, protoreflect.Repeated))

	good := protoreflect.RepeatedList([]protoreflect.ProtoValue{protoreflect.Int32(1), protoreflect.Int32(2)})
	if !protoreflect.IsValidFor(fd, good) {
		t.Error("homogeneous repeated rejected")
	}
	mixed := protoreflect.RepeatedList([]protoreflect.ProtoValue{protoreflect.Int32(1), protoreflect.String("x")})
	if protoreflect.IsValidFor(fd, mixed) {
		t.Error("heterogeneous repeated accepted")
	}
}

func TestToCamelCase(t *testing.T) {
	cases := map[string]string{
		"foo_bar":     "fooBar",
		"foo":         "foo",
		"foo_bar_baz": "fooBarBaz",
		"foo_1bar":    "foo1bar",
	}
	for in, want := range cases {
		if got := protoreflect.ToCamelCase(in); got != want {
			t.Errorf("ToCamelCase(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFullNameHelpers(t *testing.T) {
	n := protoreflect.FullName("a.b.C")
	if n.Parent() != "a.b" {
		t.Errorf("Parent = %q", n.Parent())
	}
	if n.Name() != "C" {
		t.Errorf("Name = %q", n.Name())
	}
	if n.AppendName("D") != "a.b.C.D" {
		t.Errorf("AppendName = %q", n.AppendName("D"))
	}
	if protoreflect.FullName("").AppendName("X") != "X" {
		t.Error("AppendName on empty root should not prepend a dot")
	}
}
