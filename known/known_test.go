package known_test

import (
	"testing"

	"github.com/protoval/dynproto/known"
	"github.com/protoval/dynproto/reflect/protoreflect"
	"github.com/protoval/dynproto/reflect/protoregistry"
	"github.com/protoval/dynproto/types/dynamicpb"
)

func newRegistry(t *testing.T) *protoregistry.Registry {
	t.Helper()
	reg := protoregistry.NewRegistry()
	if err := known.RegisterWellKnownTypes(reg); err != nil {
		t.Fatalf("RegisterWellKnownTypes: %v", err)
	}
	return reg
}

func TestTimestampJSONRoundTrip(t *testing.T) {
	reg := newRegistry(t)
	ts := known.Timestamp{Seconds: 63072020, Nanos: 21000000}
	m, err := known.NewTimestampMessage(ts)
	if err != nil {
		t.Fatalf("NewTimestampMessage: %v", err)
	}
	out, err := known.MarshalOptions(reg).Marshal(m)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	const want = `"1972-01-01T00:00:20.021Z"`
	if string(out) != want {
		t.Fatalf("got %s, want %s", out, want)
	}

	got, err := known.UnmarshalOptions(reg).Unmarshal(out, known.TimestampDescriptor())
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	back, err := known.TimestampFromMessage(got)
	if err != nil {
		t.Fatalf("TimestampFromMessage: %v", err)
	}
	if back != ts {
		t.Fatalf("round trip mismatch: got %+v, want %+v", back, ts)
	}
}

func TestTimestampNoFractionOmitsFractionalPart(t *testing.T) {
	reg := newRegistry(t)
	m, err := known.NewTimestampMessage(known.Timestamp{Seconds: 1})
	if err != nil {
		t.Fatal(err)
	}
	out, err := known.MarshalOptions(reg).Marshal(m)
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != `"1970-01-01T00:00:01Z"` {
		t.Fatalf("got %s", out)
	}
}

func TestDurationJSONRoundTrip(t *testing.T) {
	reg := newRegistry(t)
	cases := []struct {
		d    known.Duration
		want string
	}{
		{known.Duration{Seconds: 3, Nanos: 1000}, `"3.000001s"`},
		{known.Duration{Seconds: -3}, `"-3s"`},
		{known.Duration{Seconds: 0, Nanos: -1}, `"-0.000000001s"`},
	}
	for _, c := range cases {
		m, err := known.NewDurationMessage(c.d)
		if err != nil {
			t.Fatalf("NewDurationMessage(%+v): %v", c.d, err)
		}
		out, err := known.MarshalOptions(reg).Marshal(m)
		if err != nil {
			t.Fatalf("Marshal(%+v): %v", c.d, err)
		}
		if string(out) != c.want {
			t.Fatalf("Marshal(%+v) = %s, want %s", c.d, out, c.want)
		}
		back, err := known.UnmarshalOptions(reg).Unmarshal(out, known.DurationDescriptor())
		if err != nil {
			t.Fatalf("Unmarshal(%s): %v", out, err)
		}
		gotD, err := known.DurationFromMessage(back)
		if err != nil {
			t.Fatal(err)
		}
		if gotD != c.d {
			t.Fatalf("round trip mismatch: got %+v, want %+v", gotD, c.d)
		}
	}
}

func TestDurationSignMismatchRejected(t *testing.T) {
	if err := (known.Duration{Seconds: 1, Nanos: -1}).Validate(); err == nil {
		t.Fatal("expected error for mismatched-sign duration")
	}
}

func TestEmptyJSON(t *testing.T) {
	reg := newRegistry(t)
	m := known.NewEmptyMessage()
	out, err := known.MarshalOptions(reg).Marshal(m)
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != "{}" {
		t.Fatalf("got %s", out)
	}
}

func TestFieldMaskJSON(t *testing.T) {
	reg := newRegistry(t)
	fm := known.FieldMask{Paths: []string{"user.display_name", "photo"}}
	m, err := known.NewFieldMaskMessage(fm)
	if err != nil {
		t.Fatal(err)
	}
	out, err := known.MarshalOptions(reg).Marshal(m)
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != `"user.displayName,photo"` {
		t.Fatalf("got %s", out)
	}
	back, err := known.UnmarshalOptions(reg).Unmarshal(out, known.FieldMaskDescriptor())
	if err != nil {
		t.Fatal(err)
	}
	gotFm, err := known.FieldMaskFromMessage(back)
	if err != nil {
		t.Fatal(err)
	}
	if len(gotFm.Paths) != 2 || gotFm.Paths[0] != "user.display_name" || gotFm.Paths[1] != "photo" {
		t.Fatalf("got %+v", gotFm)
	}
}

func TestWrapperJSONIsUnwrapped(t *testing.T) {
	reg := newRegistry(t)
	m, err := known.NewWrapperMessage("Int32Value", protoreflect.Int32(42))
	if err != nil {
		t.Fatal(err)
	}
	out, err := known.MarshalOptions(reg).Marshal(m)
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != "42" {
		t.Fatalf("got %s", out)
	}
	back, err := known.UnmarshalOptions(reg).Unmarshal([]byte("42"), mustWrapperDesc(t, "Int32Value"))
	if err != nil {
		t.Fatal(err)
	}
	v, err := known.WrapperValue(back)
	if err != nil {
		t.Fatal(err)
	}
	if n, _ := v.AsInt32(); n != 42 {
		t.Fatalf("got %d", n)
	}
}

func mustWrapperDesc(t *testing.T, name protoreflect.Name) *protoreflect.MessageDescriptor {
	t.Helper()
	d, ok := known.WrapperDescriptor(name)
	if !ok {
		t.Fatalf("no such wrapper %s", name)
	}
	return d
}

func TestStructValueListValueRoundTrip(t *testing.T) {
	reg := newRegistry(t)
	s := known.Struct{
		"name":   known.StringValueOf("ada"),
		"age":    known.NumberValue(36),
		"admin":  known.BoolValueOf(true),
		"absent": known.NullValue(),
		"tags":   known.ListValueOf(known.ListValue{known.StringValueOf("x"), known.StringValueOf("y")}),
		"nested": known.StructValueOf(known.Struct{"k": known.NumberValue(1)}),
	}
	m, err := known.NewStructMessage(s)
	if err != nil {
		t.Fatal(err)
	}
	out, err := known.MarshalOptions(reg).Marshal(m)
	if err != nil {
		t.Fatal(err)
	}
	back, err := known.UnmarshalOptions(reg).Unmarshal(out, known.StructDescriptor())
	if err != nil {
		t.Fatalf("Unmarshal(%s): %v", out, err)
	}
	gotS, err := known.StructFromMessage(back)
	if err != nil {
		t.Fatal(err)
	}
	if len(gotS) != len(s) {
		t.Fatalf("got %d fields, want %d", len(gotS), len(s))
	}
	if v := gotS["name"]; v.Kind != known.StringValueKind || v.Str != "ada" {
		t.Fatalf("name = %+v", v)
	}
	if v := gotS["admin"]; v.Kind != known.BoolValueKind || !v.Bool {
		t.Fatalf("admin = %+v", v)
	}
	if v := gotS["absent"]; v.Kind != known.NullValueKind {
		t.Fatalf("absent = %+v", v)
	}
	if v := gotS["tags"]; v.Kind != known.ListValueKind || len(v.List) != 2 {
		t.Fatalf("tags = %+v", v)
	}
}

func TestAnyPackUnpackWireBytes(t *testing.T) {
	reg := newRegistry(t)
	ts, err := known.NewTimestampMessage(known.Timestamp{Seconds: 100})
	if err != nil {
		t.Fatal(err)
	}
	a, err := known.Pack(ts, "")
	if err != nil {
		t.Fatal(err)
	}
	if a.TypeURL != known.DefaultTypeURLPrefix+"/google.protobuf.Timestamp" {
		t.Fatalf("got type_url %s", a.TypeURL)
	}
	back, err := known.Unpack(a, reg)
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	gotTs, err := known.TimestampFromMessage(back)
	if err != nil {
		t.Fatal(err)
	}
	if gotTs.Seconds != 100 {
		t.Fatalf("got %+v", gotTs)
	}
}

func TestAnyJSONOfOrdinaryMessageFlattensFields(t *testing.T) {
	reg := newRegistry(t)
	msgDesc := protoreflect.NewMessageDescriptor("Widget", "example.Widget", "widget.proto", "")
	if err := msgDesc.AddField(protoreflect.NewFieldDescriptor("label", 1, protoreflect.StringKind, protoreflect.Singular)); err != nil {
		t.Fatal(err)
	}
	f := protoreflect.NewFileDescriptor("widget.proto", "example", protoreflect.Proto3)
	f.AddMessage(msgDesc)
	if err := reg.RegisterFile(f); err != nil {
		t.Fatal(err)
	}

	widget := dynamicpb.New(msgDesc)
	if err := widget.Set("label", protoreflect.String("lamp")); err != nil {
		t.Fatal(err)
	}
	anyVal, err := known.Pack(widget, "")
	if err != nil {
		t.Fatal(err)
	}
	anyMsg, err := known.NewAnyMessage(anyVal)
	if err != nil {
		t.Fatal(err)
	}

	out, err := known.MarshalOptions(reg).Marshal(anyMsg)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	got := string(out)
	if got != `{"@type":"type.googleapis.com/example.Widget","label":"lamp"}` {
		t.Fatalf("got %s", got)
	}

	back, err := known.UnmarshalOptions(reg).Unmarshal(out, known.AnyDescriptor())
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	backAny, err := known.AnyFromMessage(back)
	if err != nil {
		t.Fatal(err)
	}
	unpacked, err := known.Unpack(backAny, reg)
	if err != nil {
		t.Fatal(err)
	}
	label, _, err := unpacked.Get("label")
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := label.AsString(); v != "lamp" {
		t.Fatalf("label = %q", v)
	}
}

func TestAnyJSONOfWellKnownPayloadNestsUnderValue(t *testing.T) {
	reg := newRegistry(t)
	dur, err := known.NewDurationMessage(known.Duration{Seconds: 5})
	if err != nil {
		t.Fatal(err)
	}
	a, err := known.Pack(dur, "")
	if err != nil {
		t.Fatal(err)
	}
	anyMsg, err := known.NewAnyMessage(a)
	if err != nil {
		t.Fatal(err)
	}
	out, err := known.MarshalOptions(reg).Marshal(anyMsg)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"@type":"type.googleapis.com/google.protobuf.Duration","value":"5s"}`
	if string(out) != want {
		t.Fatalf("got %s, want %s", out, want)
	}
}
