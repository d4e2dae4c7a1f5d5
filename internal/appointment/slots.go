package appointment

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"
)

var (
	ErrNoScheduleConfigured = errors.New("doctor has no schedule configured for this day")
	ErrOutOfWindow          = errors.New("time is outside the doctor's working hours")
	ErrSlotTaken            = errors.New("slot already has a live appointment")
	ErrSlotBlocked          = errors.New("slot is blocked")
)

// ComputeAvailability derives the free slots of a doctor on a date from the
// schedule grid minus live appointments and active blocks. It never writes.
func ComputeAvailability(ctx context.Context, store Store, doctorID int64, date time.Time) (*Availability, error) {
	if _, err := store.GetDoctorByID(ctx, doctorID); err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load doctor: %w", err)
	}

	date = TruncateDate(date)
	result := &Availability{
		Date:           date,
		DayName:        DayName(date),
		AvailableSlots: []TimeOfDay{},
	}

	entry, err := store.GetActiveSchedule(ctx, doctorID, DayOfWeek(date))
	if err != nil {
		if errors.Is(err, ErrScheduleNotFound) {
			result.Message = fmt.Sprintf("El doctor no tiene horario configurado para %s", result.DayName)
			return result, nil
		}
		return nil, fmt.Errorf("load schedule: %w", err)
	}

	grid := EnumerateGrid(*entry)

	occupied, err := store.ListOccupiedTimes(ctx, doctorID, date)
	if err != nil {
		return nil, fmt.Errorf("list occupied times: %w", err)
	}
	blocked, err := store.ListBlockedTimes(ctx, doctorID, date)
	if err != nil {
		return nil, fmt.Errorf("list blocked times: %w", err)
	}

	occupiedSet := toSet(occupied)
	blockedSet := toSet(blocked)

	for _, slot := range grid {
		if _, taken := occupiedSet[slot]; taken {
			continue
		}
		if _, isBlocked := blockedSet[slot]; isBlocked {
			continue
		}
		result.AvailableSlots = append(result.AvailableSlots, slot)
	}

	result.TotalSlots = len(grid)
	result.AvailableCount = len(result.AvailableSlots)
	// Counts are the sizes of the sets, including entries off the grid.
	result.OccupiedCount = len(occupiedSet)
	result.BlockedCount = len(blockedSet)

	return result, nil
}

// ValidateBooking checks that (doctor, date, t) can take a new live
// appointment. excludeID skips the appointment being rescheduled.
// Checks run in order: schedule, window, conflict, block.
func ValidateBooking(ctx context.Context, store Store, doctorID int64, date time.Time, t TimeOfDay, excludeID *int64) error {
	date = TruncateDate(date)

	entry, err := store.GetActiveSchedule(ctx, doctorID, DayOfWeek(date))
	if err != nil {
		if errors.Is(err, ErrScheduleNotFound) {
			return fmt.Errorf("%w: %s", ErrNoScheduleConfigured, DayName(date))
		}
		return fmt.Errorf("load schedule: %w", err)
	}

	if !entry.Contains(t) {
		return fmt.Errorf("%w: %s is outside %s-%s", ErrOutOfWindow, t, entry.StartTime, entry.EndTime)
	}

	taken, err := store.HasLiveAppointment(ctx, doctorID, date, t, excludeID)
	if err != nil {
		return fmt.Errorf("check conflict: %w", err)
	}
	if taken {
		return ErrSlotTaken
	}

	block, err := store.GetActiveBlock(ctx, doctorID, date, t)
	if err != nil && !errors.Is(err, ErrBlockNotFound) {
		return fmt.Errorf("check block: %w", err)
	}
	if block != nil {
		if block.Reason != "" {
			return fmt.Errorf("%w: %s", ErrSlotBlocked, block.Reason)
		}
		return ErrSlotBlocked
	}

	return nil
}

func toSet(times []TimeOfDay) map[TimeOfDay]struct{} {
	set := make(map[TimeOfDay]struct{}, len(times))
	for _, t := range times {
		set[t] = struct{}{}
	}
	return set
}

func sortTimes(times []TimeOfDay) {
	sort.Slice(times, func(i, j int) bool { return times[i] < times[j] })
}
