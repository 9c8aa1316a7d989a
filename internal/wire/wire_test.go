package wire

import (
	"bytes"
	"math"
	"testing"
)

func TestVarintRoundTrip(t *testing.T) {
	cases := []uint64{0, 1, 127, 128, 1<<31 - 1, 1 << 31, 1<<63 - 1, math.MaxUint64}
	for _, v := range cases {
		b := AppendVarint(nil, v)
		got, n := ConsumeVarint(b)
		if n != len(b) || got != v {
			t.Errorf("varint round-trip %d: got (%d, %d), want (%d, %d)", v, got, n, v, len(b))
		}
	}
}

func TestMalformedVarint(t *testing.T) {
	b := bytes.Repeat([]byte{0x80}, 10)
	_, n := ConsumeVarint(b)
	if n != -2 {
		t.Fatalf("expected malformed varint, got n=%d", n)
	}
}

func TestTruncatedVarint(t *testing.T) {
	_, n := ConsumeVarint([]byte{0x80})
	if n != -1 {
		t.Fatalf("expected truncated varint, got n=%d", n)
	}
}

func TestZigZag32(t *testing.T) {
	if got := EncodeZigZag32(math.MinInt32); got != math.MaxUint32 {
		t.Fatalf("EncodeZigZag32(MinInt32) = %d, want %d", got, uint32(math.MaxUint32))
	}
	for _, v := range []int32{0, -1, 1, math.MinInt32, math.MaxInt32} {
		if got := DecodeZigZag32(EncodeZigZag32(v)); got != v {
			t.Errorf("zigzag32 round-trip %d: got %d", v, got)
		}
	}
}

func TestZigZag64(t *testing.T) {
	if got := EncodeZigZag64(math.MinInt64); got != math.MaxUint64 {
		t.Fatalf("EncodeZigZag64(MinInt64) = %d, want %d", got, uint64(math.MaxUint64))
	}
	for _, v := range []int64{0, -1, 1, math.MinInt64, math.MaxInt64} {
		if got := DecodeZigZag64(EncodeZigZag64(v)); got != v {
			t.Errorf("zigzag64 round-trip %d: got %d", v, got)
		}
	}
}

func TestTagRoundTrip(t *testing.T) {
	num, typ := Number(42), BytesType
	tag := EncodeTag(num, typ)
	gotNum, gotTyp := DecodeTag(tag)
	if gotNum != num || gotTyp != typ {
		t.Fatalf("tag round-trip: got (%d, %d), want (%d, %d)", gotNum, gotTyp, num, typ)
	}
}

func TestConsumeFieldValueGroupSkip(t *testing.T) {
	// field 5 start-group containing field 1 varint=7, then matching end-group.
	var b []byte
	b = AppendTag(b, 1, VarintType)
	b = AppendVarint(b, 7)
	b = AppendTag(b, 5, EndGroupType)
	n, err := ConsumeFieldValue(5, StartGroupType, b)
	if err != nil {
		t.Fatal(err)
	}
	if n != len(b) {
		t.Fatalf("consumed %d, want %d", n, len(b))
	}
}

func TestInvalidUTF8(t *testing.T) {
	if ValidUTF8([]byte{0xFF}) {
		t.Fatal("expected invalid UTF-8")
	}
	if !ValidUTF8([]byte("")) {
		t.Fatal("empty string should be valid UTF-8")
	}
}
