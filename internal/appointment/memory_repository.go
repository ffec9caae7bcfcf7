package appointment

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/bedimand/atendimento-acessivel/internal/catalog"
	"github.com/bedimand/atendimento-acessivel/internal/triage"
)

// InMemoryRepository keeps the ledger in process memory. It backs tests and
// offline tooling.
type InMemoryRepository struct {
	mu sync.RWMutex

	nextPatient int64
	nextBooking int64
	nextEvent   int64

	patients map[int64]Patient
	triage   map[int64]triage.Record
	bookings map[int64]Booking
	events   []EventLog

	capacity map[string]int
	quotas   map[string]map[catalog.ResourceKind]int

	now func() time.Time
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		patients: make(map[int64]Patient),
		triage:   make(map[int64]triage.Record),
		bookings: make(map[int64]Booking),
		capacity: make(map[string]int),
		quotas:   make(map[string]map[catalog.ResourceKind]int),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the clock used for creation timestamps.
func (r *InMemoryRepository) WithClock(now func() time.Time) *InMemoryRepository {
	r.now = now
	return r
}

// SetSlotOverrides stores what LoadSlotOverrides returns.
func (r *InMemoryRepository) SetSlotOverrides(capacity map[string]int, quotas map[string]map[catalog.ResourceKind]int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.capacity = capacity
	r.quotas = quotas
}

// Events returns a copy of the event log.
func (r *InMemoryRepository) Events() []EventLog {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]EventLog(nil), r.events...)
}

// Triage returns the triage record stored for a patient.
func (r *InMemoryRepository) Triage(patientID int64) (triage.Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.triage[patientID]
	return t, ok
}

func (r *InMemoryRepository) appendEvent(eventType string, bookingID int64) {
	r.nextEvent++
	id := bookingID
	r.events = append(r.events, EventLog{
		ID:        r.nextEvent,
		EventType: eventType,
		BookingID: &id,
		CreatedAt: r.now(),
	})
}

func (r *InMemoryRepository) CreateBooking(ctx context.Context, nb NewBooking) (*Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextPatient++
	p := nb.Patient
	p.ID = r.nextPatient
	p.Accessibility = append([]catalog.ResourceKind(nil), p.Accessibility...)
	r.patients[p.ID] = p

	if nb.Triage != nil {
		r.triage[p.ID] = *nb.Triage
	}

	warnings := make(map[string]string, len(nb.Warnings))
	for k, v := range nb.Warnings {
		warnings[k] = v
	}

	r.nextBooking++
	b := Booking{
		ID:           r.nextBooking,
		PatientID:    p.ID,
		Date:         p.Date,
		Slot:         nb.Slot,
		Practitioner: nb.Practitioner,
		Warnings:     warnings,
		CreatedAt:    r.now(),
	}
	r.bookings[b.ID] = b
	r.appendEvent(EventBookingCreated, b.ID)

	return &b, nil
}

func (r *InMemoryRepository) DeleteBooking(ctx context.Context, id int64) (*CancelledBooking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.bookings[id]
	if !ok {
		return nil, ErrBookingNotFound
	}
	delete(r.bookings, id)
	r.appendEvent(EventBookingCancelled, id)

	return &CancelledBooking{
		BookingID:    b.ID,
		PatientID:    b.PatientID,
		Date:         b.Date,
		Slot:         b.Slot,
		Practitioner: b.Practitioner,
		Specialty:    r.patients[b.PatientID].Specialty,
	}, nil
}

func (r *InMemoryRepository) ListBookings(ctx context.Context, f BookingFilter) ([]BookingDetail, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := []BookingDetail{}
	for _, b := range r.bookings {
		if f.Date != "" && b.Date != f.Date {
			continue
		}
		if f.Slot != "" && b.Slot != f.Slot {
			continue
		}
		p := r.patients[b.PatientID]
		result = append(result, BookingDetail{
			Booking:       b,
			Specialty:     p.Specialty,
			Period:        p.Period,
			Modality:      p.Modality,
			Urgency:       p.Urgency,
			Accessibility: append([]catalog.ResourceKind{}, p.Accessibility...),
		})
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})

	return result, nil
}

func (r *InMemoryRepository) GetPatient(ctx context.Context, id int64) (*Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	p.Accessibility = append([]catalog.ResourceKind{}, p.Accessibility...)
	return &p, nil
}

func (r *InMemoryRepository) CountBookings(ctx context.Context, date, slot string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, b := range r.bookings {
		if b.Date == date && b.Slot == slot {
			n++
		}
	}
	return n, nil
}

func (r *InMemoryRepository) CountResourceUsage(ctx context.Context, date, slot string) (map[catalog.ResourceKind]int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	used := map[catalog.ResourceKind]int{}
	for _, b := range r.bookings {
		if b.Date != date || b.Slot != slot {
			continue
		}
		for _, kind := range r.patients[b.PatientID].Accessibility {
			used[kind]++
		}
	}
	return used, nil
}

func (r *InMemoryRepository) CountPractitionerBookings(ctx context.Context, practitioner, date, slot string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, b := range r.bookings {
		if b.Practitioner == practitioner && b.Date == date && b.Slot == slot {
			n++
		}
	}
	return n, nil
}

func (r *InMemoryRepository) LoadSlotOverrides(ctx context.Context) (map[string]int, map[string]map[catalog.ResourceKind]int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	capacity := make(map[string]int, len(r.capacity))
	for slot, n := range r.capacity {
		capacity[slot] = n
	}
	quotas := make(map[string]map[catalog.ResourceKind]int, len(r.quotas))
	for slot, kinds := range r.quotas {
		quotas[slot] = make(map[catalog.ResourceKind]int, len(kinds))
		for kind, n := range kinds {
			quotas[slot][kind] = n
		}
	}
	return capacity, quotas, nil
}

var _ Repository = (*InMemoryRepository)(nil)
var _ Repository = (*PgRepository)(nil)
