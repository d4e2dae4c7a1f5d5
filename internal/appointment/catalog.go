package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var ErrScheduleConflict = errors.New("doctor already has an active schedule for this day")

// CreateSchedule adds a weekday window for a doctor.
func (s *Service) CreateSchedule(ctx context.Context, e ScheduleEntry) (*ScheduleEntry, error) {
	if e.SlotMinutes == 0 {
		e.SlotMinutes = DefaultSlotMinutes
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}

	if _, err := s.repo.GetDoctorByID(ctx, e.DoctorID); err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load doctor: %w", err)
	}

	created, err := s.repo.CreateSchedule(ctx, e)
	if err != nil {
		if errors.Is(err, ErrDuplicateSchedule) {
			return nil, ErrScheduleConflict
		}
		return nil, fmt.Errorf("create schedule: %w", err)
	}

	s.log.Info().
		Int64("schedule_id", created.ID).
		Int64("doctor_id", created.DoctorID).
		Int("day_of_week", created.DayOfWeek).
		Msg("schedule created")

	return created, nil
}

func (s *Service) UpdateSchedule(ctx context.Context, id int64, patch SchedulePatch) (*ScheduleEntry, error) {
	current, err := s.repo.GetScheduleByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrScheduleNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load schedule: %w", err)
	}

	next := patch.apply(*current)
	if err := next.Validate(); err != nil {
		return nil, err
	}

	updated, err := s.repo.UpdateSchedule(ctx, next)
	if err != nil {
		if errors.Is(err, ErrDuplicateSchedule) {
			return nil, ErrScheduleConflict
		}
		return nil, fmt.Errorf("update schedule: %w", err)
	}
	return updated, nil
}

// DeactivateSchedule retires an entry. Entries are never hard-deleted.
func (s *Service) DeactivateSchedule(ctx context.Context, id int64) (*ScheduleEntry, error) {
	inactive := false
	return s.UpdateSchedule(ctx, id, SchedulePatch{Active: &inactive})
}

func (s *Service) GetSchedule(ctx context.Context, id int64) (*ScheduleEntry, error) {
	return s.repo.GetScheduleByID(ctx, id)
}

func (s *Service) ListSchedules(ctx context.Context, f ScheduleFilter) ([]ScheduleEntry, error) {
	entries, err := s.repo.ListSchedules(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	return entries, nil
}

// SchedulesByDoctor returns the active weekly schedule of a doctor.
func (s *Service) SchedulesByDoctor(ctx context.Context, doctorID int64) ([]ScheduleEntry, error) {
	if _, err := s.repo.GetDoctorByID(ctx, doctorID); err != nil {
		return nil, err
	}
	return s.ListSchedules(ctx, ScheduleFilter{DoctorID: &doctorID, ActiveOnly: true})
}

// CreateBlock withholds one slot from booking. It does not consult the
// schedule or the ledger. Blocking an already blocked slot returns the
// existing block with created=false.
func (s *Service) CreateBlock(ctx context.Context, b Block) (block *Block, created bool, err error) {
	if _, err := s.repo.GetDoctorByID(ctx, b.DoctorID); err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			return nil, false, err
		}
		return nil, false, fmt.Errorf("load doctor: %w", err)
	}

	b.Date = TruncateDate(b.Date)
	b.Active = true

	existing, err := s.repo.GetActiveBlock(ctx, b.DoctorID, b.Date, b.Time)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, ErrBlockNotFound) {
		return nil, false, fmt.Errorf("check existing block: %w", err)
	}

	block, err = s.repo.CreateBlock(ctx, b)
	if err != nil {
		if errors.Is(err, ErrDuplicateBlock) {
			existing, getErr := s.repo.GetActiveBlock(ctx, b.DoctorID, b.Date, b.Time)
			if getErr != nil {
				return nil, false, fmt.Errorf("load concurrent block: %w", getErr)
			}
			return existing, false, nil
		}
		return nil, false, fmt.Errorf("create block: %w", err)
	}

	s.log.Info().
		Int64("block_id", block.ID).
		Int64("doctor_id", block.DoctorID).
		Str("date", FormatDate(block.Date)).
		Str("time", block.Time.String()).
		Msg("slot blocked")

	return block, true, nil
}

func (s *Service) GetBlock(ctx context.Context, id int64) (*Block, error) {
	return s.repo.GetBlockByID(ctx, id)
}

func (s *Service) ListBlocks(ctx context.Context, f BlockFilter) ([]Block, error) {
	if f.Date != nil {
		d := TruncateDate(*f.Date)
		f.Date = &d
	}
	blocks, err := s.repo.ListBlocks(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list blocks: %w", err)
	}
	return blocks, nil
}

// DeactivateBlock frees a blocked slot. The row is kept for audit.
func (s *Service) DeactivateBlock(ctx context.Context, id int64) (*Block, error) {
	block, err := s.repo.DeactivateBlock(ctx, id)
	if err != nil {
		if errors.Is(err, ErrBlockNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("deactivate block: %w", err)
	}
	return block, nil
}

// dateRange normalises an optional inclusive date range.
func dateRange(from, to *time.Time) (*time.Time, *time.Time) {
	if from != nil {
		f := TruncateDate(*from)
		from = &f
	}
	if to != nil {
		t := TruncateDate(*to)
		to = &t
	}
	return from, to
}
