package models

import (
	"encoding/json"
	"fmt"
)

// ClockTime is a wall-clock time of day without a date. Source files carry
// transaction times in a separate column (or not at all), so the zero value
// means "no time recorded" rather than midnight.
type ClockTime struct {
	Hour   int
	Minute int
	Second int
	Valid  bool
}

// NewClockTime creates a valid ClockTime.
func NewClockTime(hour, minute, second int) ClockTime {
	return ClockTime{Hour: hour, Minute: minute, Second: second, Valid: true}
}

// AtOrAfter reports whether the time is at or after hour:minute:00.
// An unset time never satisfies the comparison.
func (c ClockTime) AtOrAfter(hour, minute int) bool {
	if !c.Valid {
		return false
	}
	if c.Hour != hour {
		return c.Hour > hour
	}
	return c.Minute >= minute
}

// String formats the time as HH:MM:SS, or an empty string when unset.
func (c ClockTime) String() string {
	if !c.Valid {
		return ""
	}
	return fmt.Sprintf("%02d:%02d:%02d", c.Hour, c.Minute, c.Second)
}

// MarshalJSON encodes the time as "HH:MM:SS" or null when unset.
func (c ClockTime) MarshalJSON() ([]byte, error) {
	if !c.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(c.String())
}

// UnmarshalJSON decodes "HH:MM:SS" (or null / empty string for unset).
func (c *ClockTime) UnmarshalJSON(data []byte) error {
	var raw *string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil || *raw == "" {
		*c = ClockTime{}
		return nil
	}

	parsed, err := ParseClockTime(*raw)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
