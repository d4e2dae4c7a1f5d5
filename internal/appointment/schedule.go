package appointment

import (
	"errors"
	"time"
)

var (
	ErrInvalidDayOfWeek = errors.New("day_of_week must be between 0 (Monday) and 6 (Sunday)")
	ErrInvalidWindow    = errors.New("start_time must be before end_time")
	ErrInvalidSlotWidth = errors.New("slot_duration_minutes must be positive")
)

const DefaultSlotMinutes = 60

// EnumerateGrid returns the slot start times of an entry: from StartTime in
// steps of SlotMinutes, keeping only slots that end on or before EndTime.
func EnumerateGrid(e ScheduleEntry) []TimeOfDay {
	if e.SlotMinutes <= 0 || e.StartTime >= e.EndTime {
		return nil
	}

	width := e.SlotWidth()
	var slots []TimeOfDay
	for cursor := e.StartTime; cursor.Add(width) <= e.EndTime; cursor = cursor.Add(width) {
		slots = append(slots, cursor)
	}
	return slots
}

// Contains reports whether t falls inside the half-open window [start, end).
func (e ScheduleEntry) Contains(t TimeOfDay) bool {
	return t >= e.StartTime && t < e.EndTime
}

func (e ScheduleEntry) Validate() error {
	if e.DayOfWeek < 0 || e.DayOfWeek > 6 {
		return ErrInvalidDayOfWeek
	}
	if e.StartTime >= e.EndTime {
		return ErrInvalidWindow
	}
	if e.SlotMinutes <= 0 {
		return ErrInvalidSlotWidth
	}
	return nil
}

// SchedulePatch carries the optional fields of a schedule update.
type SchedulePatch struct {
	DayOfWeek   *int
	StartTime   *TimeOfDay
	EndTime     *TimeOfDay
	SlotMinutes *int
	Active      *bool
}

func (p SchedulePatch) apply(e ScheduleEntry) ScheduleEntry {
	if p.DayOfWeek != nil {
		e.DayOfWeek = *p.DayOfWeek
	}
	if p.StartTime != nil {
		e.StartTime = *p.StartTime
	}
	if p.EndTime != nil {
		e.EndTime = *p.EndTime
	}
	if p.SlotMinutes != nil {
		e.SlotMinutes = *p.SlotMinutes
	}
	if p.Active != nil {
		e.Active = *p.Active
	}
	e.UpdatedAt = time.Now()
	return e
}
