package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// JSONTime wraps time.Time to accept the timestamp shapes field devices
// actually send: RFC3339 with or without fractional seconds, and the bare
// "2006-01-02T15:04:05" form some gateways emit without a zone.
type JSONTime time.Time

var jsonTimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
}

func (jt *JSONTime) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	for _, layout := range jsonTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			*jt = JSONTime(t)
			return nil
		}
	}
	return fmt.Errorf("JSONTime.UnmarshalJSON: cannot parse %q", s)
}

// MarshalJSON always emits RFC3339.
func (jt JSONTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Time(jt).Format(time.RFC3339))
}

func (jt JSONTime) Value() (driver.Value, error) {
	return time.Time(jt), nil
}

func (jt *JSONTime) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*jt = JSONTime(time.Time{})
	case time.Time:
		*jt = JSONTime(v)
	case []byte:
		t, err := time.Parse(time.RFC3339Nano, string(v))
		if err != nil {
			return fmt.Errorf("JSONTime.Scan: parse %q: %w", string(v), err)
		}
		*jt = JSONTime(t)
	case string:
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return fmt.Errorf("JSONTime.Scan: parse %q: %w", v, err)
		}
		*jt = JSONTime(t)
	default:
		return fmt.Errorf("JSONTime.Scan: unsupported type %T", src)
	}
	return nil
}

// Time returns the wrapped time.Time.
func (jt JSONTime) Time() time.Time {
	return time.Time(jt)
}
