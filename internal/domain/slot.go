package domain

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const DateLayout = "2006-01-02"

const minutesPerDay = 24 * 60

var (
	ErrInvalidClockTime = errors.New("invalid clock time")
	ErrInvalidSlot      = errors.New("start must be before end")
)

// ClockTime is a wall-clock time of day in minutes since midnight. 24:00 is
// accepted so a slot can run to the end of the day.
type ClockTime int

func NewClockTime(hour, minute int) (ClockTime, error) {
	if hour < 0 || minute < 0 || minute > 59 || hour > 24 || (hour == 24 && minute != 0) {
		return 0, ErrInvalidClockTime
	}
	return ClockTime(hour*60 + minute), nil
}

// ParseClockTime accepts "HH:MM" and "HH:MM:SS" (seconds must be zero).
func ParseClockTime(s string) (ClockTime, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, ErrInvalidClockTime
	}
	nums := make([]int, len(parts))
	for i, p := range parts {
		if len(p) != 2 {
			return 0, ErrInvalidClockTime
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			return 0, ErrInvalidClockTime
		}
		nums[i] = n
	}
	if len(nums) == 3 && nums[2] != 0 {
		return 0, ErrInvalidClockTime
	}
	return NewClockTime(nums[0], nums[1])
}

func (c ClockTime) Hour() int   { return int(c) / 60 }
func (c ClockTime) Minute() int { return int(c) % 60 }

func (c ClockTime) Valid() bool {
	return c >= 0 && c <= minutesPerDay
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute())
}

func (c ClockTime) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, ErrInvalidClockTime
	}
	return []byte(c.String()), nil
}

func (c *ClockTime) UnmarshalText(b []byte) error {
	v, err := ParseClockTime(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

func (c ClockTime) Value() (driver.Value, error) {
	return int64(c), nil
}

func (c *ClockTime) Scan(src any) error {
	switch v := src.(type) {
	case int64:
		*c = ClockTime(v)
	case int32:
		*c = ClockTime(v)
	case []byte:
		n, err := strconv.Atoi(string(v))
		if err != nil {
			return err
		}
		*c = ClockTime(n)
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*c = ClockTime(n)
	default:
		return fmt.Errorf("clock time: unsupported scan type %T", src)
	}
	return nil
}

// ParseDate parses a calendar date in DateLayout.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, strings.TrimSpace(s))
}

// DateOf truncates t to its calendar date at midnight UTC. Both parties share
// one canonical calendar, so the wall-clock date of t is kept as is.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Slot is a calendar date plus the half-open interval [Start, End).
type Slot struct {
	Date  time.Time
	Start ClockTime
	End   ClockTime
}

func NewSlot(date time.Time, start, end ClockTime) (Slot, error) {
	if !start.Valid() || !end.Valid() || start == minutesPerDay {
		return Slot{}, ErrInvalidClockTime
	}
	if start >= end {
		return Slot{}, ErrInvalidSlot
	}
	return Slot{Date: DateOf(date), Start: start, End: end}, nil
}

// Overlaps reports whether [s1,e1) and [s2,e2) intersect. Touching endpoints
// do not overlap.
func Overlaps(s1, e1, s2, e2 ClockTime) bool {
	return s1 < e2 && s2 < e1
}

func (s Slot) Overlaps(o Slot) bool {
	return s.Date.Equal(o.Date) && Overlaps(s.Start, s.End, o.Start, o.End)
}

func (s Slot) String() string {
	return s.Date.Format(DateLayout) + " " + s.Start.String() + "-" + s.End.String()
}
