package known

import (
	"time"

	"github.com/protoval/dynproto/internal/errors"
	"github.com/protoval/dynproto/protojson"
	"github.com/protoval/dynproto/reflect/protoreflect"
	"github.com/protoval/dynproto/types/dynamicpb"
)

// Timestamp is the host representation of google.protobuf.Timestamp: a point
// in time independent of any time zone, expressed as seconds plus
// fractional-second nanoseconds since the Unix epoch.
type Timestamp struct {
	Seconds int64
	Nanos   int32
}

// TimestampFromTime converts a time.Time to its Timestamp representation.
func TimestampFromTime(t time.Time) Timestamp {
	return Timestamp{Seconds: t.Unix(), Nanos: int32(t.Nanosecond())}
}

// AsTime converts ts back to a time.Time in UTC.
func (ts Timestamp) AsTime() time.Time {
	return time.Unix(ts.Seconds, int64(ts.Nanos)).UTC()
}

// Validate enforces the timestamp.proto invariant that nanos lies in
// [0, 999999999]; unlike Duration, Timestamp's nanos is never negative
// because seconds alone carries the sign of the time point.
func (ts Timestamp) Validate() error {
	if ts.Nanos < 0 || ts.Nanos > 999999999 {
		return errors.New(errors.Validation, "timestamp nanos %d out of range [0, 999999999]", ts.Nanos)
	}
	return nil
}

// NewTimestampMessage builds a dynamic google.protobuf.Timestamp message from ts.
func NewTimestampMessage(ts Timestamp) (*dynamicpb.Message, error) {
	if err := ts.Validate(); err != nil {
		return nil, err
	}
	m := dynamicpb.New(TimestampDescriptor())
	if err := m.Set("seconds", protoreflect.Int64(ts.Seconds)); err != nil {
		return nil, err
	}
	if err := m.Set("nanos", protoreflect.Int32(ts.Nanos)); err != nil {
		return nil, err
	}
	return m, nil
}

// TimestampFromMessage reads a dynamic google.protobuf.Timestamp message back
// into its host representation.
func TimestampFromMessage(m *dynamicpb.Message) (Timestamp, error) {
	secV, err := m.GetOrDefault("seconds")
	if err != nil {
		return Timestamp{}, err
	}
	nanosV, err := m.GetOrDefault("nanos")
	if err != nil {
		return Timestamp{}, err
	}
	sec, _ := secV.AsInt64()
	nanos, _ := nanosV.AsInt32()
	return Timestamp{Seconds: sec, Nanos: nanos}, nil
}

type timestampHandler struct{}

// MarshalJSON renders the timestamp as the RFC 3339 form the proto3 JSON
// mapping requires, e.g. "1972-01-01T00:00:20.021Z".
func (timestampHandler) MarshalJSON(m *dynamicpb.Message, _ protojson.MarshalOptions) ([]byte, error) {
	ts, err := TimestampFromMessage(m)
	if err != nil {
		return nil, err
	}
	if err := ts.Validate(); err != nil {
		return nil, err
	}
	s := ts.AsTime().Format("2006-01-02T15:04:05.000000000Z")
	s = trimTrailingZerosBeforeZ(s)
	return []byte(`"` + s + `"`), nil
}

// trimTrailingZerosBeforeZ collapses a fixed 9-digit fractional part down to
// the shortest form that round-trips (3, 6, or 9 digits, or none at all),
// matching the canonical proto3 JSON timestamp rendering.
func trimTrailingZerosBeforeZ(s string) string {
	dot := -1
	for i := 0; i < len(s); i++ {
		if s[i] == '.' {
			dot = i
			break
		}
	}
	if dot < 0 {
		return s
	}
	z := len(s) - 1 // index of trailing 'Z'
	frac := s[dot+1 : z]
	for len(frac) > 0 && frac[len(frac)-1] == '0' {
		frac = frac[:len(frac)-1]
	}
	switch {
	case len(frac) == 0:
		return s[:dot] + "Z"
	case len(frac) <= 3:
		for len(frac) < 3 {
			frac += "0"
		}
	case len(frac) <= 6:
		for len(frac) < 6 {
			frac += "0"
		}
	default:
		for len(frac) < 9 {
			frac += "0"
		}
	}
	return s[:dot] + "." + frac + "Z"
}

func (timestampHandler) UnmarshalJSON(data []byte, m *dynamicpb.Message, _ protojson.UnmarshalOptions) error {
	var s string
	if err := unquoteJSONString(data, &s); err != nil {
		return errors.New(errors.Validation, "invalid timestamp JSON: %v", err)
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return errors.New(errors.Validation, "invalid RFC 3339 timestamp %q: %v", s, err)
	}
	ts := TimestampFromTime(t)
	if err := m.Set("seconds", protoreflect.Int64(ts.Seconds)); err != nil {
		return err
	}
	return m.Set("nanos", protoreflect.Int32(ts.Nanos))
}
