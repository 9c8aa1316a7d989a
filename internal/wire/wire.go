// Package wire implements the low-level encode/decode operations of the
// protobuf wire format: varints, ZigZag, tags, fixed-width little-endian
// integers, and UTF-8 validation. It has no knowledge of descriptors or
// messages; the binary codec in wireformat builds on top of it.
package wire

import (
	"encoding/binary"
	"unicode/utf8"

	"github.com/protoval/dynproto/internal/errors"
)

// Number is a protobuf field number.
type Number int32

// Type is a protobuf wire type.
type Type int8

const (
	VarintType     Type = 0
	Fixed64Type    Type = 1
	BytesType      Type = 2
	StartGroupType Type = 3
	EndGroupType   Type = 4
	Fixed32Type    Type = 5
)

// MaxVarintLen64 is the maximum number of bytes a 64-bit varint may occupy.
const MaxVarintLen64 = 10

// EncodeTag combines a field number and wire type into a tag.
func EncodeTag(num Number, typ Type) uint64 {
	return uint64(num)<<3 | uint64(typ&7)
}

// DecodeTag splits a tag into its field number and wire type.
func DecodeTag(tag uint64) (Number, Type) {
	return Number(tag >> 3), Type(tag & 7)
}

// AppendVarint appends v to b as a base-128 varint.
func AppendVarint(b []byte, v uint64) []byte {
	switch {
	case v < 1<<7:
		return append(b, byte(v))
	case v < 1<<14:
		return append(b, byte(v|0x80), byte(v>>7))
	}
	for v >= 0x80 {
		b = append(b, byte(v)|0x80)
		v >>= 7
	}
	return append(b, byte(v))
}

// AppendTag appends the tag for (num, typ) to b.
func AppendTag(b []byte, num Number, typ Type) []byte {
	return AppendVarint(b, EncodeTag(num, typ))
}

// ConsumeVarint parses a varint from the front of b, returning the decoded
// value and the number of bytes consumed, or a negative n on error.
func ConsumeVarint(b []byte) (v uint64, n int) {
	var y uint64
	if len(b) == 0 {
		return 0, -1
	}
	if b[0] < 0x80 {
		return uint64(b[0]), 1
	}
	for shift := uint(0); shift < 64; shift += 7 {
		if n >= len(b) {
			return 0, -1 // truncated
		}
		c := b[n]
		n++
		y |= uint64(c&0x7f) << shift
		if c < 0x80 {
			return y, n
		}
	}
	return 0, -2 // malformed: more than 10 bytes
}

// ConsumeVarintErr is like ConsumeVarint but returns a typed *errors.Error.
func ConsumeVarintErr(b []byte) (v uint64, n int, err error) {
	v, n = ConsumeVarint(b)
	switch {
	case n == -1:
		return 0, 0, errors.New(errors.TruncatedMessage, "truncated varint")
	case n == -2:
		return 0, 0, errors.New(errors.MalformedVarint, "varint exceeds 10 bytes")
	}
	return v, n, nil
}

// ConsumeTag parses a tag from the front of b.
func ConsumeTag(b []byte) (num Number, typ Type, n int, err error) {
	v, n, err := ConsumeVarintErr(b)
	if err != nil {
		return 0, 0, 0, err
	}
	num, typ = DecodeTag(v)
	if num <= 0 {
		return 0, 0, 0, errors.New(errors.InvalidTag, "invalid field number %d", num)
	}
	return num, typ, n, nil
}

// SizeVarint reports the number of bytes AppendVarint would produce for v.
func SizeVarint(v uint64) int {
	n := 1
	for v >= 0x80 {
		v >>= 7
		n++
	}
	return n
}

// SizeTag reports the number of bytes the tag for field num occupies; the
// wire type does not affect the size.
func SizeTag(num Number) int {
	return SizeVarint(EncodeTag(num, 0))
}

// EncodeZigZag32 maps a signed 32-bit integer to an unsigned value such that
// numbers with small magnitude (regardless of sign) have a small encoded
// varint.
func EncodeZigZag32(v int32) uint32 {
	return uint32(v<<1) ^ uint32(v>>31)
}

// DecodeZigZag32 is the inverse of EncodeZigZag32.
func DecodeZigZag32(v uint32) int32 {
	return int32(v>>1) ^ -int32(v&1)
}

// EncodeZigZag64 maps a signed 64-bit integer to an unsigned value, as
// EncodeZigZag32 but for 64-bit operands.
func EncodeZigZag64(v int64) uint64 {
	return uint64(v<<1) ^ uint64(v>>63)
}

// DecodeZigZag64 is the inverse of EncodeZigZag64.
func DecodeZigZag64(v uint64) int64 {
	return int64(v>>1) ^ -int64(v&1)
}

// AppendFixed32 appends v to b as 4 little-endian bytes.
func AppendFixed32(b []byte, v uint32) []byte {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	return append(b, buf[:]...)
}

// ConsumeFixed32 parses a 4-byte little-endian value from the front of b.
func ConsumeFixed32(b []byte) (v uint32, n int, err error) {
	if len(b) < 4 {
		return 0, 0, errors.New(errors.TruncatedMessage, "truncated fixed32")
	}
	return binary.LittleEndian.Uint32(b), 4, nil
}

// AppendFixed64 appends v to b as 8 little-endian bytes.
func AppendFixed64(b []byte, v uint64) []byte {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	return append(b, buf[:]...)
}

// ConsumeFixed64 parses an 8-byte little-endian value from the front of b.
func ConsumeFixed64(b []byte) (v uint64, n int, err error) {
	if len(b) < 8 {
		return 0, 0, errors.New(errors.TruncatedMessage, "truncated fixed64")
	}
	return binary.LittleEndian.Uint64(b), 8, nil
}

// AppendBytes appends v to b as a length-delimited field: a varint length
// prefix followed by the raw bytes.
func AppendBytes(b []byte, v []byte) []byte {
	b = AppendVarint(b, uint64(len(v)))
	return append(b, v...)
}

// ConsumeBytes parses a length-delimited field from the front of b, returning
// the inner bytes (aliasing b) and the total number of bytes consumed
// (prefix + payload).
func ConsumeBytes(b []byte) (v []byte, n int, err error) {
	length, ln, err := ConsumeVarintErr(b)
	if err != nil {
		return nil, 0, err
	}
	if ln+int(length) < ln || ln+int(length) > len(b) {
		return nil, 0, errors.New(errors.TruncatedMessage, "truncated length-delimited field")
	}
	return b[ln : ln+int(length)], ln + int(length), nil
}

// ConsumeFieldValue skips over the value portion (not the tag) of a field
// encoded with the given wire type, returning the number of bytes consumed.
// For StartGroupType it recursively skips to the matching EndGroupType.
func ConsumeFieldValue(num Number, typ Type, b []byte) (n int, err error) {
	switch typ {
	case VarintType:
		_, n, err := ConsumeVarintErr(b)
		return n, err
	case Fixed32Type:
		_, n, err := ConsumeFixed32(b)
		return n, err
	case Fixed64Type:
		_, n, err := ConsumeFixed64(b)
		return n, err
	case BytesType:
		_, n, err := ConsumeBytes(b)
		return n, err
	case StartGroupType:
		return consumeGroup(num, b)
	case EndGroupType:
		return 0, errors.New(errors.InvalidTag, "end-group without matching start-group")
	default:
		return 0, errors.New(errors.InvalidTag, "invalid wire type %d", typ)
	}
}

func consumeGroup(num Number, b []byte) (n int, err error) {
	start := len(b)
	for {
		if len(b) == 0 {
			return 0, errors.New(errors.TruncatedMessage, "truncated group")
		}
		gotNum, gotTyp, tn, err := ConsumeTag(b)
		if err != nil {
			return 0, err
		}
		b = b[tn:]
		if gotTyp == EndGroupType {
			if gotNum != num {
				return 0, errors.New(errors.InvalidTag, "mismatched end-group for field %d", num)
			}
			return start - len(b), nil
		}
		vn, err := ConsumeFieldValue(gotNum, gotTyp, b)
		if err != nil {
			return 0, err
		}
		b = b[vn:]
	}
}

// ValidUTF8 reports whether b is entirely valid UTF-8.
func ValidUTF8(b []byte) bool {
	return utf8.Valid(b)
}
