package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/bedimand/atendimento-acessivel/internal/catalog"
	"github.com/bedimand/atendimento-acessivel/internal/metrics"
	redisclient "github.com/bedimand/atendimento-acessivel/internal/redis"
	"github.com/bedimand/atendimento-acessivel/internal/triage"
)

const DefaultUrgency = 2

var (
	ErrInvalidRequest  = errors.New("invalid booking request")
	ErrSlotBeingBooked = errors.New("slot is currently being booked, please retry")
)

// LedgerObserver is told after every committed ledger write.
type LedgerObserver interface {
	LedgerChanged(ctx context.Context) error
}

type ServiceDeps struct {
	Repo     Repository
	Catalog  *catalog.Catalog
	Locker   redisclient.Locker
	Observer LedgerObserver
	Metrics  *metrics.Metrics
	Logger   *zap.Logger
}

type Service struct {
	repo     Repository
	avail    *Availability
	locker   redisclient.Locker
	observer LedgerObserver
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

func NewService(deps ServiceDeps) *Service {
	if deps.Repo == nil || deps.Catalog == nil {
		panic("appointment: repository and catalog required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:     deps.Repo,
		avail:    NewAvailability(deps.Catalog, deps.Repo),
		locker:   deps.Locker,
		observer: deps.Observer,
		metrics:  deps.Metrics,
		logger:   logger,
	}
}

func (s *Service) Availability() *Availability {
	return s.avail
}

func (s *Service) Catalog() *catalog.Catalog {
	return s.avail.Catalog()
}

// BookRequest is a direct booking as received from a caller. Tokens are
// validated against the catalog by Book.
type BookRequest struct {
	Specialty     string
	Date          string
	Slot          string
	Modality      string
	Urgency       *int
	Accessibility []string
	Practitioner  string
	Triage        *triage.Record
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}

func (s *Service) normalize(req BookRequest) (NewBooking, error) {
	c := s.Catalog()

	specialty := strings.ToLower(strings.TrimSpace(req.Specialty))
	if !c.HasSpecialty(specialty) {
		return NewBooking{}, invalid("unknown specialty %q", req.Specialty)
	}

	date, err := CanonicalDate(req.Date)
	if err != nil {
		return NewBooking{}, invalid("%v", err)
	}

	slot, ok := c.Slot(strings.TrimSpace(req.Slot))
	if !ok {
		return NewBooking{}, invalid("unknown slot %q", req.Slot)
	}

	modality := catalog.ModalityInPerson
	if strings.TrimSpace(req.Modality) != "" {
		m, ok := catalog.ParseModality(req.Modality)
		if !ok {
			return NewBooking{}, invalid("unknown consultation type %q", req.Modality)
		}
		modality = m
	}

	practitioner := strings.TrimSpace(req.Practitioner)
	if _, ok := c.Practitioner(practitioner); !ok {
		return NewBooking{}, invalid("unknown practitioner %q", req.Practitioner)
	}

	seen := map[catalog.ResourceKind]bool{}
	kinds := []catalog.ResourceKind{}
	for _, raw := range req.Accessibility {
		kind, ok := catalog.ParseResourceKind(raw)
		if !ok {
			return NewBooking{}, invalid("unknown accessibility resource %q", raw)
		}
		if !seen[kind] {
			seen[kind] = true
			kinds = append(kinds, kind)
		}
	}

	urgency := DefaultUrgency
	switch {
	case req.Urgency != nil:
		urgency = *req.Urgency
	case req.Triage != nil:
		urgency = triage.Score(*req.Triage)
	}

	return NewBooking{
		Patient: Patient{
			Date:          date,
			Specialty:     specialty,
			Period:        slot.Period,
			Modality:      modality,
			Urgency:       triage.ClampUrgency(urgency),
			Accessibility: kinds,
		},
		Triage:       req.Triage,
		Slot:         slot.Label,
		Practitioner: practitioner,
	}, nil
}

// warnings lists the soft constraints the booking violates. None of them
// block the booking.
func (s *Service) warnings(ctx context.Context, nb NewBooking) (map[string]string, error) {
	date, slot := nb.Patient.Date, nb.Slot
	out := map[string]string{}

	if s.Catalog().IsPeak(slot) {
		out["slot"] = "Peak slot; additional waiting time is possible."
	}

	if len(nb.Patient.Accessibility) > 0 {
		left, err := s.avail.RemainingResources(ctx, date, slot)
		if err != nil {
			return nil, err
		}
		var missing []string
		for _, kind := range nb.Patient.Accessibility {
			if left[kind] <= 0 {
				missing = append(missing, string(kind))
			}
		}
		if len(missing) > 0 {
			out["resources"] = "Limited resources for: " + strings.Join(missing, ", ")
		}
	}

	capacity, err := s.avail.RemainingCapacity(ctx, date, slot)
	if err != nil {
		return nil, err
	}
	if capacity <= 0 {
		out["capacity"] = fmt.Sprintf("Slot %s on %s is already full.", slot, date)
	}

	free, err := s.avail.PractitionerFree(ctx, nb.Practitioner, date, slot)
	if err != nil {
		return nil, err
	}
	if !free {
		out["practitioner"] = fmt.Sprintf("%s already has an appointment in this slot.", nb.Practitioner)
	}

	return out, nil
}

func (s *Service) withSlotLock(ctx context.Context, date, slot string, fn func(ctx context.Context) error) error {
	if s.locker == nil {
		return fn(ctx)
	}
	return s.locker.WithSlotLock(ctx, date, slot, fn)
}

func (s *Service) ledgerChanged(ctx context.Context) {
	if s.observer == nil {
		return
	}
	if err := s.observer.LedgerChanged(ctx); err != nil {
		s.logger.Warn("ledger change notification failed", zap.Error(err))
	}
}

// Book records a patient and its booking. Capacity, resource and
// practitioner limits only produce warnings.
func (s *Service) Book(ctx context.Context, req BookRequest) (*Booking, error) {
	nb, err := s.normalize(req)
	if err != nil {
		return nil, err
	}

	var created *Booking
	err = s.withSlotLock(ctx, nb.Patient.Date, nb.Slot, func(lockCtx context.Context) error {
		warnings, err := s.warnings(lockCtx, nb)
		if err != nil {
			return err
		}
		nb.Warnings = warnings

		b, err := s.repo.CreateBooking(lockCtx, nb)
		if err != nil {
			return fmt.Errorf("create booking: %w", err)
		}
		created = b
		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotBeingBooked
		}
		return nil, err
	}

	s.ledgerChanged(ctx)
	s.metrics.ObserveBooking(len(created.Warnings) > 0)
	s.logger.Info("booking created",
		zap.Int64("booking_id", created.ID),
		zap.Int64("patient_id", created.PatientID),
		zap.String("date", created.Date),
		zap.String("slot", created.Slot),
		zap.String("practitioner", created.Practitioner),
		zap.Int("warnings", len(created.Warnings)),
	)

	return created, nil
}

type CancelResult struct {
	Cancelled bool   `json:"cancelled"`
	Reason    string `json:"reason,omitempty"`
	*CancelledBooking
}

// Cancel deletes a booking. Unknown ids are reported, not returned as errors.
func (s *Service) Cancel(ctx context.Context, bookingID int64) (*CancelResult, error) {
	c, err := s.repo.DeleteBooking(ctx, bookingID)
	if err != nil {
		if errors.Is(err, ErrBookingNotFound) {
			s.metrics.ObserveCancellation(false)
			return &CancelResult{
				Cancelled: false,
				Reason:    fmt.Sprintf("booking %d not found", bookingID),
			}, nil
		}
		return nil, fmt.Errorf("cancel booking: %w", err)
	}

	s.ledgerChanged(ctx)
	s.metrics.ObserveCancellation(true)
	s.logger.Info("booking cancelled",
		zap.Int64("booking_id", c.BookingID),
		zap.String("date", c.Date),
		zap.String("slot", c.Slot),
	)

	return &CancelResult{Cancelled: true, CancelledBooking: c}, nil
}

// ListBookings returns live bookings, newest first. Empty date or slot match
// everything.
func (s *Service) ListBookings(ctx context.Context, date, slot string) ([]BookingDetail, error) {
	f := BookingFilter{Slot: strings.TrimSpace(slot)}
	if strings.TrimSpace(date) != "" {
		d, err := CanonicalDate(date)
		if err != nil {
			return nil, invalid("%v", err)
		}
		f.Date = d
	}

	bookings, err := s.repo.ListBookings(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	return bookings, nil
}

// PatientRequirements returns ErrPatientNotFound for unknown ids.
func (s *Service) PatientRequirements(ctx context.Context, patientID int64) (*Patient, error) {
	p, err := s.repo.GetPatient(ctx, patientID)
	if err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load patient: %w", err)
	}
	return p, nil
}
