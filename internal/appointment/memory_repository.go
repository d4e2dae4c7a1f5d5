package appointment

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository keeps everything in process memory. It enforces the same
// uniqueness rules as the Postgres schema and serialises WithinTx callers, so
// the service behaves the same against it. Writes are not rolled back when a
// transaction function fails.
type MemoryRepository struct {
	txMu sync.Mutex
	mu   sync.RWMutex

	nextID int64

	patients     map[int64]Patient
	doctors      map[int64]Doctor
	bindings     map[int64]DoctorSpecialty
	schedules    map[int64]ScheduleEntry
	blocks       map[int64]Block
	appointments map[int64]Appointment
	events       []EventLog
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		patients:     make(map[int64]Patient),
		doctors:      make(map[int64]Doctor),
		bindings:     make(map[int64]DoctorSpecialty),
		schedules:    make(map[int64]ScheduleEntry),
		blocks:       make(map[int64]Block),
		appointments: make(map[int64]Appointment),
	}
}

func (m *MemoryRepository) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	return fn(ctx, m)
}

func (m *MemoryRepository) id() int64 {
	m.nextID++
	return m.nextID
}

// PutPatient stores p, assigning an id when it has none.
func (m *MemoryRepository) PutPatient(p Patient) Patient {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == 0 {
		p.ID = m.id()
	}
	if p.UUID == uuid.Nil {
		p.UUID = uuid.New()
	}
	m.patients[p.ID] = p
	return p
}

func (m *MemoryRepository) PutDoctor(d Doctor) Doctor {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d.ID == 0 {
		d.ID = m.id()
	}
	if d.UUID == uuid.Nil {
		d.UUID = uuid.New()
	}
	m.doctors[d.ID] = d
	return d
}

func (m *MemoryRepository) PutDoctorSpecialty(ds DoctorSpecialty) DoctorSpecialty {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ds.ID == 0 {
		ds.ID = m.id()
	}
	m.bindings[ds.ID] = ds
	return ds
}

// Events returns a copy of the audit rows written so far.
func (m *MemoryRepository) Events() []EventLog {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]EventLog(nil), m.events...)
}

func (m *MemoryRepository) GetPatientByID(_ context.Context, id int64) (*Patient, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	return &p, nil
}

func (m *MemoryRepository) GetDoctorByID(_ context.Context, id int64) (*Doctor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.doctors[id]
	if !ok {
		return nil, ErrDoctorNotFound
	}
	return &d, nil
}

func (m *MemoryRepository) GetDoctorByUserID(_ context.Context, userID int64) (*Doctor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, d := range m.doctors {
		if d.UserID != nil && *d.UserID == userID {
			return &d, nil
		}
	}
	return nil, ErrDoctorNotFound
}

func (m *MemoryRepository) GetDoctorSpecialty(_ context.Context, id int64) (*DoctorSpecialty, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ds, ok := m.bindings[id]
	if !ok {
		return nil, ErrDoctorSpecialtyNotFound
	}
	return &ds, nil
}

func (m *MemoryRepository) ListDoctorSpecialties(_ context.Context, doctorID int64) ([]DoctorSpecialty, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := []DoctorSpecialty{}
	for _, ds := range m.bindings {
		if ds.DoctorID == doctorID {
			result = append(result, ds)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// Schedule catalog

func (m *MemoryRepository) GetActiveSchedule(_ context.Context, doctorID int64, dayOfWeek int) (*ScheduleEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range m.schedules {
		if e.DoctorID == doctorID && e.DayOfWeek == dayOfWeek && e.Active {
			return &e, nil
		}
	}
	return nil, ErrScheduleNotFound
}

func (m *MemoryRepository) GetScheduleByID(_ context.Context, id int64) (*ScheduleEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.schedules[id]
	if !ok {
		return nil, ErrScheduleNotFound
	}
	return &e, nil
}

func (m *MemoryRepository) ListSchedules(_ context.Context, f ScheduleFilter) ([]ScheduleEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := []ScheduleEntry{}
	for _, e := range m.schedules {
		if f.DoctorID != nil && e.DoctorID != *f.DoctorID {
			continue
		}
		if f.ActiveOnly && !e.Active {
			continue
		}
		result = append(result, e)
	}
	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if a.DoctorID != b.DoctorID {
			return a.DoctorID < b.DoctorID
		}
		if a.DayOfWeek != b.DayOfWeek {
			return a.DayOfWeek < b.DayOfWeek
		}
		return a.StartTime < b.StartTime
	})
	return result, nil
}

func (m *MemoryRepository) scheduleClashes(e ScheduleEntry) bool {
	for _, other := range m.schedules {
		if other.ID == e.ID || other.DoctorID != e.DoctorID || other.DayOfWeek != e.DayOfWeek {
			continue
		}
		if other.StartTime == e.StartTime || (other.Active && e.Active) {
			return true
		}
	}
	return false
}

func (m *MemoryRepository) CreateSchedule(_ context.Context, e ScheduleEntry) (*ScheduleEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.scheduleClashes(e) {
		return nil, ErrDuplicateSchedule
	}
	now := time.Now()
	e.ID = m.id()
	e.CreatedAt, e.UpdatedAt = now, now
	m.schedules[e.ID] = e
	return &e, nil
}

func (m *MemoryRepository) UpdateSchedule(_ context.Context, e ScheduleEntry) (*ScheduleEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.schedules[e.ID]
	if !ok {
		return nil, ErrScheduleNotFound
	}
	if m.scheduleClashes(e) {
		return nil, ErrDuplicateSchedule
	}
	e.CreatedAt = current.CreatedAt
	e.UpdatedAt = time.Now()
	m.schedules[e.ID] = e
	return &e, nil
}

// Block registry

func (m *MemoryRepository) ListBlockedTimes(_ context.Context, doctorID int64, date time.Time) ([]TimeOfDay, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []TimeOfDay
	for _, b := range m.blocks {
		if b.Active && b.DoctorID == doctorID && b.Date.Equal(date) {
			result = append(result, b.Time)
		}
	}
	sortTimes(result)
	return result, nil
}

func (m *MemoryRepository) GetBlockByID(_ context.Context, id int64) (*Block, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.blocks[id]
	if !ok {
		return nil, ErrBlockNotFound
	}
	return &b, nil
}

func (m *MemoryRepository) activeBlock(doctorID int64, date time.Time, t TimeOfDay) (Block, bool) {
	for _, b := range m.blocks {
		if b.Active && b.DoctorID == doctorID && b.Date.Equal(date) && b.Time == t {
			return b, true
		}
	}
	return Block{}, false
}

func (m *MemoryRepository) GetActiveBlock(_ context.Context, doctorID int64, date time.Time, t TimeOfDay) (*Block, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.activeBlock(doctorID, date, t)
	if !ok {
		return nil, ErrBlockNotFound
	}
	return &b, nil
}

func (m *MemoryRepository) ListBlocks(_ context.Context, f BlockFilter) ([]Block, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := []Block{}
	for _, b := range m.blocks {
		if f.DoctorID != nil && b.DoctorID != *f.DoctorID {
			continue
		}
		if f.Date != nil && !b.Date.Equal(*f.Date) {
			continue
		}
		if f.ActiveOnly && !b.Active {
			continue
		}
		result = append(result, b)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].Date.Equal(result[j].Date) {
			return result[i].Date.After(result[j].Date)
		}
		return result[i].Time < result[j].Time
	})
	return result, nil
}

func (m *MemoryRepository) CreateBlock(_ context.Context, b Block) (*Block, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.activeBlock(b.DoctorID, b.Date, b.Time); exists {
		return nil, ErrDuplicateBlock
	}
	now := time.Now()
	b.ID = m.id()
	b.Active = true
	b.CreatedAt, b.UpdatedAt = now, now
	m.blocks[b.ID] = b
	return &b, nil
}

func (m *MemoryRepository) DeactivateBlock(_ context.Context, id int64) (*Block, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.blocks[id]
	if !ok {
		return nil, ErrBlockNotFound
	}
	b.Active = false
	b.UpdatedAt = time.Now()
	m.blocks[id] = b
	return &b, nil
}

// Appointment ledger

func (m *MemoryRepository) ListOccupiedTimes(_ context.Context, doctorID int64, date time.Time) ([]TimeOfDay, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []TimeOfDay
	for _, a := range m.appointments {
		if a.Status.Live() && a.DoctorID == doctorID && a.Date.Equal(date) {
			result = append(result, a.Time)
		}
	}
	sortTimes(result)
	return result, nil
}

func (m *MemoryRepository) liveHolder(doctorID int64, date time.Time, t TimeOfDay, excludeID int64) bool {
	for _, a := range m.appointments {
		if a.ID != excludeID && a.Status.Live() && a.DoctorID == doctorID && a.Date.Equal(date) && a.Time == t {
			return true
		}
	}
	return false
}

func (m *MemoryRepository) HasLiveAppointment(_ context.Context, doctorID int64, date time.Time, t TimeOfDay, excludeID *int64) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var exclude int64
	if excludeID != nil {
		exclude = *excludeID
	}
	return m.liveHolder(doctorID, date, t, exclude), nil
}

func (m *MemoryRepository) CreateAppointment(_ context.Context, a Appointment) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.Status.Live() && m.liveHolder(a.DoctorID, a.Date, a.Time, 0) {
		return nil, ErrLiveSlotTaken
	}
	now := time.Now()
	a.ID = m.id()
	a.CreatedAt, a.UpdatedAt = now, now
	m.appointments[a.ID] = a
	return &a, nil
}

func (m *MemoryRepository) GetAppointmentByID(_ context.Context, id int64) (*Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return &a, nil
}

func (m *MemoryRepository) GetAppointmentByUUID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.appointments {
		if a.UUID == id {
			return &a, nil
		}
	}
	return nil, ErrAppointmentNotFound
}

func (m *MemoryRepository) detail(a Appointment) AppointmentDetail {
	d := AppointmentDetail{Appointment: a}
	if p, ok := m.patients[a.PatientID]; ok {
		d.PatientName = p.FullName()
		d.PatientEmail = p.Email
		d.PatientPhone = p.Phone
	}
	if doc, ok := m.doctors[a.DoctorID]; ok {
		d.DoctorName = doc.FullName()
	}
	if ds, ok := m.bindings[a.DoctorSpecialtyID]; ok {
		d.SpecialtyName = ds.SpecialtyName
	}
	return d
}

func (m *MemoryRepository) GetAppointmentDetail(_ context.Context, id int64) (*AppointmentDetail, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	d := m.detail(a)
	return &d, nil
}

func (m *MemoryRepository) ListAppointments(_ context.Context, f AppointmentFilter) ([]AppointmentDetail, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := []AppointmentDetail{}
	for _, a := range m.appointments {
		switch {
		case f.PatientID != nil && a.PatientID != *f.PatientID,
			f.DoctorID != nil && a.DoctorID != *f.DoctorID,
			f.Date != nil && !a.Date.Equal(*f.Date),
			f.Status != nil && a.Status != *f.Status,
			f.From != nil && a.Date.Before(*f.From),
			f.To != nil && a.Date.After(*f.To):
			continue
		}
		result = append(result, m.detail(a))
	}
	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if a.Time != b.Time {
			return a.Time < b.Time
		}
		return a.ID < b.ID
	})

	if f.Limit > 0 {
		if f.Offset >= len(result) {
			return []AppointmentDetail{}, nil
		}
		end := f.Offset + f.Limit
		if end > len(result) {
			end = len(result)
		}
		result = result[f.Offset:end]
	}
	return result, nil
}

func (m *MemoryRepository) UpdateAppointmentStatus(_ context.Context, id int64, from, to AppointmentStatus) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appointments[id]
	if !ok || a.Status != from {
		return nil, ErrAppointmentNotFound
	}
	if !from.Live() && to.Live() && m.liveHolder(a.DoctorID, a.Date, a.Time, a.ID) {
		return nil, ErrLiveSlotTaken
	}
	a.Status = to
	a.UpdatedAt = time.Now()
	m.appointments[id] = a
	return &a, nil
}

func (m *MemoryRepository) UpdateAppointment(_ context.Context, a Appointment) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.appointments[a.ID]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	if current.Status.Live() && m.liveHolder(a.DoctorID, a.Date, a.Time, a.ID) {
		return nil, ErrLiveSlotTaken
	}
	current.DoctorSpecialtyID = a.DoctorSpecialtyID
	current.DoctorID = a.DoctorID
	current.Date = a.Date
	current.Time = a.Time
	current.DurationMinutes = a.DurationMinutes
	current.Notes = a.Notes
	current.UpdatedAt = time.Now()
	m.appointments[a.ID] = current
	return &current, nil
}

func (m *MemoryRepository) DeleteAppointment(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.appointments[id]; !ok {
		return ErrAppointmentNotFound
	}
	delete(m.appointments, id)
	return nil
}

func (m *MemoryRepository) InsertEvent(_ context.Context, ev EventLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev.ID = int64(len(m.events) + 1)
	m.events = append(m.events, ev)
	return nil
}

var _ Repository = (*MemoryRepository)(nil)
