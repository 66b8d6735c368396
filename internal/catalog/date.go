package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// Layouts accepted from the upstream services. Naive timestamps are read as UTC.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	dateLayout,
}

// Date is an optional calendar date or timestamp.
type Date struct {
	Time  time.Time
	Valid bool
}

// NewDate wraps t as a valid Date.
func NewDate(t time.Time) Date {
	return Date{Time: t, Valid: true}
}

// ParseDate reads any of the accepted layouts. An empty string yields an invalid Date.
func ParseDate(value string) (Date, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return Date{}, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return NewDate(t), nil
		}
	}
	return Date{}, fmt.Errorf("unrecognized date %q", value)
}

// MustDate parses a YYYY-MM-DD literal and panics on failure. Intended for tests and constants.
func MustDate(value string) Date {
	d, err := ParseDate(value)
	if err != nil || !d.Valid {
		panic(fmt.Sprintf("catalog: bad date %q", value))
	}
	return d
}

func (d *Date) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*d = Date{}
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	parsed, err := ParseDate(raw)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	if !d.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

// String renders dates without a clock component as YYYY-MM-DD and everything else as RFC3339.
func (d Date) String() string {
	if !d.Valid {
		return ""
	}
	t := d.Time
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Format(dateLayout)
	}
	return t.Format(time.RFC3339)
}

// Ptr returns the time or nil when unset.
func (d Date) Ptr() *time.Time {
	if !d.Valid {
		return nil
	}
	t := d.Time
	return &t
}

// Before orders dates with unset values first.
func (d Date) Before(other Date) bool {
	switch {
	case !d.Valid && !other.Valid:
		return false
	case !d.Valid:
		return true
	case !other.Valid:
		return false
	}
	return d.Time.Before(other.Time)
}

// Flag decodes booleans sent as true/false, 0/1 or their string forms.
type Flag bool

func (f *Flag) UnmarshalJSON(data []byte) error {
	switch strings.Trim(strings.ToLower(strings.TrimSpace(string(data))), `"`) {
	case "true", "1":
		*f = true
	case "false", "0", "", "null":
		*f = false
	default:
		return fmt.Errorf("invalid flag %s", data)
	}
	return nil
}
