package known

import (
	"strconv"
	"strings"
	"time"

	"github.com/protoval/dynproto/protojson"
	"github.com/protoval/dynproto/reflect/protoreflect"
	"github.com/protoval/dynproto/types/dynamicpb"
)

// Duration is the host representation of google.protobuf.Duration: a signed,
// fixed-length span of time.
type Duration struct {
	Seconds int64
	Nanos   int32
}

// DurationFromTimeDuration converts a time.Duration to its Duration form.
func DurationFromTimeDuration(d time.Duration) Duration {
	sec := int64(d / time.Second)
	nanos := int32(d % time.Second)
	return Duration{Seconds: sec, Nanos: nanos}
}

// AsTimeDuration converts d back to a time.Duration.
func (d Duration) AsTimeDuration() time.Duration {
	return time.Duration(d.Seconds)*time.Second + time.Duration(d.Nanos)
}

// Validate enforces duration.proto's sign invariant: Seconds and Nanos must
// be both non-negative, both non-positive, or one of them zero — they may
// never disagree in sign.
func (d Duration) Validate() error {
	if d.Nanos < -999999999 || d.Nanos > 999999999 {
		return errValidationf("duration nanos %d out of range [-999999999, 999999999]", d.Nanos)
	}
	if (d.Seconds > 0 && d.Nanos < 0) || (d.Seconds < 0 && d.Nanos > 0) {
		return errValidationf("duration seconds (%d) and nanos (%d) must share a sign", d.Seconds, d.Nanos)
	}
	return nil
}

// NewDurationMessage builds a dynamic google.protobuf.Duration message from d.
func NewDurationMessage(d Duration) (*dynamicpb.Message, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	m := dynamicpb.New(DurationDescriptor())
	if err := m.Set("seconds", protoreflect.Int64(d.Seconds)); err != nil {
		return nil, err
	}
	if err := m.Set("nanos", protoreflect.Int32(d.Nanos)); err != nil {
		return nil, err
	}
	return m, nil
}

// DurationFromMessage reads a dynamic google.protobuf.Duration message back
// into its host representation.
func DurationFromMessage(m *dynamicpb.Message) (Duration, error) {
	secV, err := m.GetOrDefault("seconds")
	if err != nil {
		return Duration{}, err
	}
	nanosV, err := m.GetOrDefault("nanos")
	if err != nil {
		return Duration{}, err
	}
	sec, _ := secV.AsInt64()
	nanos, _ := nanosV.AsInt32()
	return Duration{Seconds: sec, Nanos: nanos}, nil
}

type durationHandler struct{}

// MarshalJSON renders the duration in the canonical "<seconds>.<nanos>s"
// generalized decimal form, e.g. "3.000001s" or "-3s".
func (durationHandler) MarshalJSON(m *dynamicpb.Message, _ protojson.MarshalOptions) ([]byte, error) {
	d, err := DurationFromMessage(m)
	if err != nil {
		return nil, err
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	neg := d.Seconds < 0 || d.Nanos < 0
	sec, nanos := d.Seconds, d.Nanos
	if neg {
		sec, nanos = -sec, -nanos
	}
	var sb strings.Builder
	if neg {
		sb.WriteByte('-')
	}
	sb.WriteString(strconv.FormatInt(sec, 10))
	if nanos != 0 {
		frac := fractionalDigits(nanos)
		sb.WriteByte('.')
		sb.WriteString(frac)
	}
	sb.WriteByte('s')
	return []byte(`"` + sb.String() + `"`), nil
}

func fractionalDigits(nanos int32) string {
	s := strconv.FormatInt(int64(nanos), 10)
	for len(s) < 9 {
		s = "0" + s
	}
	switch {
	case nanos%1000000 == 0:
		return s[:3]
	case nanos%1000 == 0:
		return s[:6]
	default:
		return s
	}
}

func (durationHandler) UnmarshalJSON(data []byte, m *dynamicpb.Message, _ protojson.UnmarshalOptions) error {
	var s string
	if err := unquoteJSONString(data, &s); err != nil {
		return errValidationf("invalid duration JSON: %v", err)
	}
	if !strings.HasSuffix(s, "s") {
		return errValidationf("duration %q missing trailing 's'", s)
	}
	body := s[:len(s)-1]
	neg := strings.HasPrefix(body, "-")
	if neg {
		body = body[1:]
	}
	secPart, nanoPart, hasFrac := strings.Cut(body, ".")
	sec, err := strconv.ParseInt(secPart, 10, 64)
	if err != nil {
		return errValidationf("invalid duration seconds in %q", s)
	}
	var nanos int32
	if hasFrac {
		for len(nanoPart) < 9 {
			nanoPart += "0"
		}
		nanoPart = nanoPart[:9]
		n, err := strconv.ParseInt(nanoPart, 10, 32)
		if err != nil {
			return errValidationf("invalid duration fraction in %q", s)
		}
		nanos = int32(n)
	}
	if neg {
		sec, nanos = -sec, -nanos
	}
	d := Duration{Seconds: sec, Nanos: nanos}
	if err := d.Validate(); err != nil {
		return err
	}
	if err := m.Set("seconds", protoreflect.Int64(d.Seconds)); err != nil {
		return err
	}
	return m.Set("nanos", protoreflect.Int32(d.Nanos))
}
