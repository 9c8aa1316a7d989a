package protojson

import (
	"strconv"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/protoval/dynproto/internal/errors"
)

// jsonValue is a minimal, order-preserving parse tree. Numbers are kept as
// their original literal text (num) so that int64-family fields parsed
// from a bare JSON number (rather than the canonical string form) do not lose
// precision by round-tripping through float64.
type jsonKind int8

const (
	jsonNull jsonKind = iota
	jsonBool
	jsonNumber
	jsonString
	jsonArray
	jsonObject
)

type jsonValue struct {
	kind   jsonKind
	b      bool
	num    string
	str    string
	arr    []jsonValue
	fields []jsonField // object, in source order
}

type jsonField struct {
	key string
	val jsonValue
}

func (v jsonValue) object() map[string]jsonValue {
	if v.kind != jsonObject {
		return nil
	}
	m := make(map[string]jsonValue, len(v.fields))
	for _, f := range v.fields {
		m[f.key] = f.val
	}
	return m
}

// scanner is a recursive-descent JSON parser over a byte slice.
type scanner struct {
	b   []byte
	pos int
}

func parseJSON(b []byte) (jsonValue, error) {
	s := &scanner{b: b}
	s.skipSpace()
	v, err := s.parseValue()
	if err != nil {
		return jsonValue{}, err
	}
	s.skipSpace()
	if s.pos != len(s.b) {
		return jsonValue{}, errors.New(errors.Validation, "trailing data after JSON value at offset %d", s.pos)
	}
	return v, nil
}

func (s *scanner) skipSpace() {
	for s.pos < len(s.b) {
		switch s.b[s.pos] {
		case ' ', '\t', '\n', '\r':
			s.pos++
		default:
			return
		}
	}
}

func (s *scanner) peek() (byte, bool) {
	if s.pos >= len(s.b) {
		return 0, false
	}
	return s.b[s.pos], true
}

func (s *scanner) parseValue() (jsonValue, error) {
	c, ok := s.peek()
	if !ok {
		return jsonValue{}, errors.New(errors.Validation, "unexpected end of JSON input")
	}
	switch {
	case c == '{':
		return s.parseObject()
	case c == '[':
		return s.parseArray()
	case c == '"':
		str, err := s.parseString()
		if err != nil {
			return jsonValue{}, err
		}
		return jsonValue{kind: jsonString, str: str}, nil
	case c == 't':
		return s.parseLiteral("true", jsonValue{kind: jsonBool, b: true})
	case c == 'f':
		return s.parseLiteral("false", jsonValue{kind: jsonBool, b: false})
	case c == 'n':
		return s.parseLiteral("null", jsonValue{kind: jsonNull})
	case c == '-' || (c >= '0' && c <= '9'):
		return s.parseNumber()
	default:
		return jsonValue{}, errors.New(errors.Validation, "unexpected character %q at offset %d", c, s.pos)
	}
}

func (s *scanner) parseLiteral(lit string, v jsonValue) (jsonValue, error) {
	if s.pos+len(lit) > len(s.b) || string(s.b[s.pos:s.pos+len(lit)]) != lit {
		return jsonValue{}, errors.New(errors.Validation, "invalid literal at offset %d", s.pos)
	}
	s.pos += len(lit)
	return v, nil
}

func (s *scanner) parseNumber() (jsonValue, error) {
	start := s.pos
	if s.b[s.pos] == '-' {
		s.pos++
	}
	for s.pos < len(s.b) && isDigit(s.b[s.pos]) {
		s.pos++
	}
	if s.pos < len(s.b) && s.b[s.pos] == '.' {
		s.pos++
		for s.pos < len(s.b) && isDigit(s.b[s.pos]) {
			s.pos++
		}
	}
	if s.pos < len(s.b) && (s.b[s.pos] == 'e' || s.b[s.pos] == 'E') {
		s.pos++
		if s.pos < len(s.b) && (s.b[s.pos] == '+' || s.b[s.pos] == '-') {
			s.pos++
		}
		for s.pos < len(s.b) && isDigit(s.b[s.pos]) {
			s.pos++
		}
	}
	if s.pos == start {
		return jsonValue{}, errors.New(errors.Validation, "invalid number at offset %d", start)
	}
	return jsonValue{kind: jsonNumber, num: string(s.b[start:s.pos])}, nil
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func (s *scanner) parseString() (string, error) {
	if s.b[s.pos] != '"' {
		return "", errors.New(errors.Validation, "expected string at offset %d", s.pos)
	}
	s.pos++
	var out []byte
	for {
		if s.pos >= len(s.b) {
			return "", errors.New(errors.Validation, "unterminated string")
		}
		c := s.b[s.pos]
		if c == '"' {
			s.pos++
			return string(out), nil
		}
		if c == '\\' {
			s.pos++
			if s.pos >= len(s.b) {
				return "", errors.New(errors.Validation, "unterminated escape")
			}
			esc := s.b[s.pos]
			switch esc {
			case '"', '\\', '/':
				out = append(out, esc)
				s.pos++
			case 'b':
				out = append(out, '\b')
				s.pos++
			case 'f':
				out = append(out, '\f')
				s.pos++
			case 'n':
				out = append(out, '\n')
				s.pos++
			case 'r':
				out = append(out, '\r')
				s.pos++
			case 't':
				out = append(out, '\t')
				s.pos++
			case 'u':
				r, err := s.parseUnicodeEscape()
				if err != nil {
					return "", err
				}
				var buf [utf8.UTFMax]byte
				n := utf8.EncodeRune(buf[:], r)
				out = append(out, buf[:n]...)
			default:
				return "", errors.New(errors.Validation, "invalid escape \\%c", esc)
			}
			continue
		}
		out = append(out, c)
		s.pos++
	}
}

func (s *scanner) parseUnicodeEscape() (rune, error) {
	s.pos++ // consume 'u'
	hi, err := s.hex4()
	if err != nil {
		return 0, err
	}
	if utf16.IsSurrogate(rune(hi)) {
		if s.pos+1 < len(s.b) && s.b[s.pos] == '\\' && s.b[s.pos+1] == 'u' {
			s.pos += 2
			lo, err := s.hex4()
			if err != nil {
				return 0, err
			}
			r := utf16.DecodeRune(rune(hi), rune(lo))
			if r != utf8.RuneError {
				return r, nil
			}
		}
		return utf8.RuneError, nil
	}
	return rune(hi), nil
}

func (s *scanner) hex4() (uint16, error) {
	if s.pos+4 > len(s.b) {
		return 0, errors.New(errors.Validation, "truncated unicode escape")
	}
	v, err := strconv.ParseUint(string(s.b[s.pos:s.pos+4]), 16, 32)
	if err != nil {
		return 0, errors.New(errors.Validation, "invalid unicode escape")
	}
	s.pos += 4
	return uint16(v), nil
}

func (s *scanner) parseArray() (jsonValue, error) {
	s.pos++ // '['
	var arr []jsonValue
	s.skipSpace()
	if c, ok := s.peek(); ok && c == ']' {
		s.pos++
		return jsonValue{kind: jsonArray, arr: arr}, nil
	}
	for {
		s.skipSpace()
		v, err := s.parseValue()
		if err != nil {
			return jsonValue{}, err
		}
		arr = append(arr, v)
		s.skipSpace()
		c, ok := s.peek()
		if !ok {
			return jsonValue{}, errors.New(errors.Validation, "unterminated array")
		}
		if c == ',' {
			s.pos++
			continue
		}
		if c == ']' {
			s.pos++
			return jsonValue{kind: jsonArray, arr: arr}, nil
		}
		return jsonValue{}, errors.New(errors.Validation, "expected ',' or ']' at offset %d", s.pos)
	}
}

func (s *scanner) parseObject() (jsonValue, error) {
	s.pos++ // '{'
	var fields []jsonField
	s.skipSpace()
	if c, ok := s.peek(); ok && c == '}' {
		s.pos++
		return jsonValue{kind: jsonObject, fields: fields}, nil
	}
	for {
		s.skipSpace()
		key, err := s.parseString()
		if err != nil {
			return jsonValue{}, err
		}
		s.skipSpace()
		if c, ok := s.peek(); !ok || c != ':' {
			return jsonValue{}, errors.New(errors.Validation, "expected ':' at offset %d", s.pos)
		}
		s.pos++
		s.skipSpace()
		v, err := s.parseValue()
		if err != nil {
			return jsonValue{}, err
		}
		fields = append(fields, jsonField{key: key, val: v})
		s.skipSpace()
		c, ok := s.peek()
		if !ok {
			return jsonValue{}, errors.New(errors.Validation, "unterminated object")
		}
		if c == ',' {
			s.pos++
			continue
		}
		if c == '}' {
			s.pos++
			return jsonValue{kind: jsonObject, fields: fields}, nil
		}
		return jsonValue{}, errors.New(errors.Validation, "expected ',' or '}' at offset %d", s.pos)
	}
}
