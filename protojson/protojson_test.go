package protojson_test

import (
	"math"
	"testing"

	"github.com/protoval/dynproto/protojson"
	"github.com/protoval/dynproto/reflect/protoreflect"
	"github.com/protoval/dynproto/types/dynamicpb"
)

func mustField(t *testing.T, m *protoreflect.MessageDescriptor, f *protoreflect.FieldDescriptor) {
	t.Helper()
	if err := m.AddField(f); err != nil {
		t.Fatalf("AddField(%s): %v", f.Name, err)
	}
}

func colorEnum(t *testing.T) *protoreflect.EnumDescriptor {
	t.Helper()
	e := protoreflect.NewEnumDescriptor("Color", "example.Color", "color.proto", "")
	if err := e.AddValue(&protoreflect.EnumValue{Name: "RED", Number: 0}); err != nil {
		t.Fatal(err)
	}
	if err := e.AddValue(&protoreflect.EnumValue{Name: "BLUE", Number: 1}); err != nil {
		t.Fatal(err)
	}
	return e
}

func widgetDescriptor(t *testing.T) *protoreflect.MessageDescriptor {
	t.Helper()
	m := protoreflect.NewMessageDescriptor("Widget", "example.Widget", "widget.proto", "")
	mustField(t, m, protoreflect.NewFieldDescriptor("id", 1, protoreflect.Int64Kind, protoreflect.Singular))
	mustField(t, m, protoreflect.NewFieldDescriptor("label", 2, protoreflect.StringKind, protoreflect.Singular))
	payload := protoreflect.NewFieldDescriptor("payload", 3, protoreflect.BytesKind, protoreflect.Singular)
	mustField(t, m, payload)
	colorFd := protoreflect.NewFieldDescriptor("color", 4, protoreflect.EnumKind, protoreflect.Singular)
	colorFd.TypeName = "example.Color"
	colorFd.EnumType = colorEnum(t)
	mustField(t, m, colorFd)
	return m
}

func TestMarshalInt64AsString(t *testing.T) {
	desc := widgetDescriptor(t)
	msg := dynamicpb.New(desc)
	if err := msg.Set("id", protoreflect.Int64(9007199254740993)); err != nil {
		t.Fatal(err)
	}
	out, err := protojson.Marshal(msg)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	got := string(out)
	if got != `{"id":"9007199254740993"}` {
		t.Fatalf("got %s", got)
	}
}

func TestMarshalBytesBase64(t *testing.T) {
	desc := widgetDescriptor(t)
	msg := dynamicpb.New(desc)
	if err := msg.Set("payload", protoreflect.Bytes([]byte("hi"))); err != nil {
		t.Fatal(err)
	}
	out, err := protojson.Marshal(msg)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(out) != `{"payload":"aGk="}` {
		t.Fatalf("got %s", out)
	}
}

func TestMarshalEnumSymbolic(t *testing.T) {
	desc := widgetDescriptor(t)
	msg := dynamicpb.New(desc)
	ed := colorEnum(t)
	val, _ := ed.ByNumber(1)
	if err := msg.Set("color", protoreflect.Enum(protoreflect.EnumValueRef{Number: 1, Name: val.Name, Descriptor: ed})); err != nil {
		t.Fatal(err)
	}
	out, err := protojson.Marshal(msg)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(out) != `{"color":"BLUE"}` {
		t.Fatalf("got %s", out)
	}
}

func TestUnmarshalRoundTrip(t *testing.T) {
	desc := widgetDescriptor(t)
	in := `{"id":"42","label":"lamp","payload":"aGk=","color":"BLUE"}`
	msg, err := protojson.Unmarshal([]byte(in), desc)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	id, _, _ := msg.Get("id")
	if v, _ := id.AsInt64(); v != 42 {
		t.Errorf("id = %d, want 42", v)
	}
	label, _, _ := msg.Get("label")
	if v, _ := label.AsString(); v != "lamp" {
		t.Errorf("label = %q", v)
	}
	payload, _, _ := msg.Get("payload")
	if v, _ := payload.AsBytes(); string(v) != "hi" {
		t.Errorf("payload = %q", v)
	}
	color, _, _ := msg.Get("color")
	ref, _ := color.AsEnum()
	if ref.Number != 1 {
		t.Errorf("color number = %d, want 1", ref.Number)
	}

	out, err := protojson.Marshal(msg)
	if err != nil {
		t.Fatalf("re-Marshal: %v", err)
	}
	if string(out) != `{"id":"42","label":"lamp","payload":"aGk=","color":"BLUE"}` {
		t.Fatalf("round trip mismatch: %s", out)
	}
}

func TestUnmarshalUnknownFieldRejectedByDefault(t *testing.T) {
	desc := widgetDescriptor(t)
	_, err := protojson.Unmarshal([]byte(`{"bogus":1}`), desc)
	if err == nil {
		t.Fatalf("expected error for unknown field")
	}
}

func TestUnmarshalUnknownFieldIgnored(t *testing.T) {
	desc := widgetDescriptor(t)
	opts := protojson.UnmarshalOptions{IgnoreUnknownFields: true}
	msg, err := opts.Unmarshal([]byte(`{"bogus":1,"label":"x"}`), desc)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	label, _, _ := msg.Get("label")
	if v, _ := label.AsString(); v != "x" {
		t.Errorf("label = %q", v)
	}
}

func TestDefaultValueOmittedUnlessRequested(t *testing.T) {
	desc := widgetDescriptor(t)
	msg := dynamicpb.New(desc)
	out, err := protojson.Marshal(msg)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(out) != `{}` {
		t.Fatalf("expected empty object for all-default message, got %s", out)
	}

	withDefaults, err := protojson.MarshalOptions{EmitUnpopulated: true}.Marshal(msg)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(withDefaults) == "{}" {
		t.Fatalf("expected populated defaults, got %s", withDefaults)
	}
}

func floatDescriptor(t *testing.T) *protoreflect.MessageDescriptor {
	t.Helper()
	m := protoreflect.NewMessageDescriptor("Point", "example.Point", "point.proto", "")
	mustField(t, m, protoreflect.NewFieldDescriptor("x", 1, protoreflect.FloatKind, protoreflect.Singular))
	mustField(t, m, protoreflect.NewFieldDescriptor("y", 2, protoreflect.DoubleKind, protoreflect.Singular))
	return m
}

// TestMarshalFloatUsesSinglePrecision pins that a float32 value formats at
// its own precision rather than the widened float64's ("0.1", not
// "0.10000000149011612").
func TestMarshalFloatUsesSinglePrecision(t *testing.T) {
	desc := floatDescriptor(t)
	msg := dynamicpb.New(desc)
	if err := msg.Set("x", protoreflect.Float(0.1)); err != nil {
		t.Fatal(err)
	}
	out, err := protojson.Marshal(msg)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(out) != `{"x":0.1}` {
		t.Fatalf("got %s, want {\"x\":0.1}", out)
	}
}

// TestMarshalNonFiniteAsQuotedStrings checks the proto3 JSON spellings for
// values that have no JSON number form.
func TestMarshalNonFiniteAsQuotedStrings(t *testing.T) {
	desc := floatDescriptor(t)

	cases := []struct {
		name  string
		value float64
		want  string
	}{
		{"nan", math.NaN(), `{"y":"NaN"}`},
		{"inf", math.Inf(1), `{"y":"Infinity"}`},
		{"neg_inf", math.Inf(-1), `{"y":"-Infinity"}`},
	}
	for _, tc := range cases {
		msg := dynamicpb.New(desc)
		if err := msg.Set("y", protoreflect.Double(tc.value)); err != nil {
			t.Fatal(err)
		}
		out, err := protojson.Marshal(msg)
		if err != nil {
			t.Fatalf("%s: Marshal: %v", tc.name, err)
		}
		if string(out) != tc.want {
			t.Errorf("%s: got %s, want %s", tc.name, out, tc.want)
		}
	}
}

// TestUnmarshalNonFiniteStrings checks the parse direction accepts the
// quoted spellings back.
func TestUnmarshalNonFiniteStrings(t *testing.T) {
	desc := floatDescriptor(t)
	msg, err := protojson.Unmarshal([]byte(`{"y":"Infinity","x":"NaN"}`), desc)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	y, _, _ := msg.Get("y")
	if f, _ := y.AsDouble(); !math.IsInf(f, 1) {
		t.Errorf("y = %v, want +Inf", f)
	}
	x, _, _ := msg.Get("x")
	if f, _ := x.AsFloat(); !math.IsNaN(float64(f)) {
		t.Errorf("x = %v, want NaN", f)
	}
}
