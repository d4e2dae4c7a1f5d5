package appointment

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

const (
	DateLayout    = "2006-01-02"
	secondsPerDay = 24 * 60 * 60
)

var (
	ErrInvalidDate = errors.New("invalid date, expected YYYY-MM-DD")
	ErrInvalidTime = errors.New("invalid time, expected HH:MM or HH:MM:SS")
)

// TimeOfDay is a wall-clock time expressed as seconds since local midnight.
type TimeOfDay int

func NewTimeOfDay(hour, minute, second int) TimeOfDay {
	return TimeOfDay(hour*3600 + minute*60 + second)
}

func ParseTimeOfDay(s string) (TimeOfDay, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return NewTimeOfDay(t.Hour(), t.Minute(), t.Second()), nil
		}
	}
	return 0, ErrInvalidTime
}

func (t TimeOfDay) Hour() int   { return int(t) / 3600 }
func (t TimeOfDay) Minute() int { return int(t) % 3600 / 60 }
func (t TimeOfDay) Second() int { return int(t) % 60 }

// Add moves the clock forward by d. The result is not wrapped past midnight.
func (t TimeOfDay) Add(d time.Duration) TimeOfDay {
	return t + TimeOfDay(d/time.Second)
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour(), t.Minute(), t.Second())
}

func (t TimeOfDay) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *TimeOfDay) UnmarshalText(b []byte) error {
	v, err := ParseTimeOfDay(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// On places the clock on the given calendar date.
func (t TimeOfDay) On(date time.Time) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
}

func (t TimeOfDay) pgTime() pgtype.Time {
	return pgtype.Time{Microseconds: int64(t) * 1_000_000, Valid: true}
}

func timeOfDayFromPg(v pgtype.Time) TimeOfDay {
	return TimeOfDay(v.Microseconds/1_000_000) % secondsPerDay
}

// ParseDate parses a calendar date into midnight UTC.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return d, nil
}

// TruncateDate drops the clock and location of t, keeping its calendar date.
func TruncateDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// DayOfWeek numbers the weekday with Monday as 0 and Sunday as 6.
func DayOfWeek(date time.Time) int {
	return (int(date.Weekday()) + 6) % 7
}

func DayName(date time.Time) string {
	return date.Weekday().String()
}
