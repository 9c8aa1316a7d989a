package known

import (
	"unicode/utf16"
	"unicode/utf8"

	"github.com/protoval/dynproto/internal/errors"
	"github.com/protoval/dynproto/protojson"
	"github.com/protoval/dynproto/reflect/protoreflect"
	"github.com/protoval/dynproto/types/dynamicpb"
)

// marshalSingleField renders the JSON form of one field's value in
// isolation (no surrounding object), by marshaling msg as an ordinary
// (non-well-known) ``{"<name>": ...}`` object via protojson and stripping
// the wrapper text back off. This lets a single-field well-known type (the
// Wrappers family) reuse protojson's own scalar formatting instead of
// duplicating its rules here.
func marshalSingleField(msg *dynamicpb.Message, fieldName string) ([]byte, error) {
	// EmitUnpopulated guarantees the field appears even when it holds its
	// zero value, since a standalone scalar JSON form is never just "".
	out, err := protojson.MarshalOptions{EmitUnpopulated: true}.Marshal(msg)
	if err != nil {
		return nil, err
	}
	prefix := `{"` + fieldName + `":`
	if len(out) < len(prefix)+1 || string(out[:len(prefix)]) != prefix || out[len(out)-1] != '}' {
		return nil, errValidationf("unexpected JSON shape marshaling %s: %s", fieldName, out)
	}
	return out[len(prefix) : len(out)-1], nil
}

// unmarshalSingleField parses data as the JSON form of a single field's
// value and sets it on msg, by wrapping data into a synthetic
// ``{"<name>": <data>}`` object and delegating to protojson.
func unmarshalSingleField(data []byte, desc *protoreflect.MessageDescriptor, fieldName string) (*dynamicpb.Message, error) {
	wrapped := append([]byte(`{"`+fieldName+`":`), data...)
	wrapped = append(wrapped, '}')
	return protojson.Unmarshal(wrapped, desc)
}

// unquoteJSONString decodes a single JSON string literal (the handlers only
// ever receive the reencoded bytes of one JSON value, never a containing
// object) into *out. This duplicates the handful of escape rules JSON
// defines (protojson's own scanner is unexported) rather than reaching for
// strconv.Unquote, whose escape table is Go's, not JSON's (it rejects the
// legal JSON escape "\/").
func unquoteJSONString(data []byte, out *string) error {
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return errors.New(errors.Validation, "expected JSON string, got %q", data)
	}
	body := data[1 : len(data)-1]
	var b []byte
	for i := 0; i < len(body); {
		c := body[i]
		if c != '\\' {
			r, size := utf8.DecodeRune(body[i:])
			b = utf8.AppendRune(b, r)
			i += size
			continue
		}
		if i+1 >= len(body) {
			return errors.New(errors.Validation, "truncated escape in JSON string")
		}
		switch body[i+1] {
		case '"':
			b = append(b, '"')
		case '\\':
			b = append(b, '\\')
		case '/':
			b = append(b, '/')
		case 'b':
			b = append(b, '\b')
		case 'f':
			b = append(b, '\f')
		case 'n':
			b = append(b, '\n')
		case 'r':
			b = append(b, '\r')
		case 't':
			b = append(b, '\t')
		case 'u':
			if i+6 > len(body) {
				return errors.New(errors.Validation, "truncated unicode escape")
			}
			r1, err := hex4(body[i+2 : i+6])
			if err != nil {
				return err
			}
			i += 6
			if utf16.IsSurrogate(rune(r1)) && i+6 <= len(body) && body[i] == '\\' && body[i+1] == 'u' {
				r2, err := hex4(body[i+2 : i+6])
				if err == nil {
					if dec := utf16.DecodeRune(rune(r1), rune(r2)); dec != utf8.RuneError {
						b = utf8.AppendRune(b, dec)
						i += 6
						continue
					}
				}
			}
			b = utf8.AppendRune(b, rune(r1))
			continue
		default:
			return errors.New(errors.Validation, "invalid escape \\%c", body[i+1])
		}
		i += 2
	}
	*out = string(b)
	return nil
}

func hex4(s []byte) (uint16, error) {
	var v uint16
	for _, c := range s {
		v <<= 4
		switch {
		case c >= '0' && c <= '9':
			v |= uint16(c - '0')
		case c >= 'a' && c <= 'f':
			v |= uint16(c-'a') + 10
		case c >= 'A' && c <= 'F':
			v |= uint16(c-'A') + 10
		default:
			return 0, errors.New(errors.Validation, "invalid hex digit %q", c)
		}
	}
	return v, nil
}

func errValidationf(format string, args ...interface{}) error {
	return errors.New(errors.Validation, format, args...)
}
