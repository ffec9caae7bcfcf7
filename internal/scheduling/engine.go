// Package scheduling exposes the engine's operation surface: single patient
// searches, direct bookings, batch optimization and ledger accessors.
package scheduling

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/bedimand/atendimento-acessivel/internal/appointment"
	"github.com/bedimand/atendimento-acessivel/internal/catalog"
	"github.com/bedimand/atendimento-acessivel/internal/metrics"
	"github.com/bedimand/atendimento-acessivel/internal/optimizer"
	"github.com/bedimand/atendimento-acessivel/internal/triage"
)

const (
	DefaultDaysAhead     = 7
	AlternativeDaysAhead = 14
	MaxSnapshotDays      = 30
)

var ErrInvalidQuery = errors.New("invalid query")

// ResultCache stores encoded optimizer results by request fingerprint and
// ledger version. Load reports the version it read; a result computed after a
// miss is stored under that version so a concurrent ledger write orphans it.
type ResultCache interface {
	Load(ctx context.Context, fingerprint string) ([]byte, int64, bool, error)
	Store(ctx context.Context, version int64, fingerprint string, data []byte) error
}

type Options struct {
	DaysAhead int
	Optimizer optimizer.Options
	Location  *time.Location
}

func DefaultEngineOptions() Options {
	return Options{
		DaysAhead: DefaultDaysAhead,
		Optimizer: optimizer.DefaultOptions(),
		Location:  time.UTC,
	}
}

type Deps struct {
	Service *appointment.Service
	Cache   ResultCache
	Metrics *metrics.Metrics
	Logger  *zap.Logger
	Options Options
	Now     func() time.Time
}

type Engine struct {
	svc     *appointment.Service
	avail   *appointment.Availability
	finder  *Finder
	cache   ResultCache
	metrics *metrics.Metrics
	logger  *zap.Logger
	opts    Options
	now     func() time.Time
}

func NewEngine(deps Deps) *Engine {
	if deps.Service == nil {
		panic("scheduling: booking service required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	opts := deps.Options
	if opts.DaysAhead <= 0 {
		opts.DaysAhead = DefaultDaysAhead
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}

	avail := deps.Service.Availability()
	return &Engine{
		svc:     deps.Service,
		avail:   avail,
		finder:  NewFinder(avail),
		cache:   deps.Cache,
		metrics: deps.Metrics,
		logger:  logger,
		opts:    opts,
		now:     now,
	}
}

func (e *Engine) Catalog() *catalog.Catalog {
	return e.avail.Catalog()
}

func (e *Engine) today() time.Time {
	return appointment.Today(e.now(), e.opts.Location)
}

// startDate falls back to today for empty or unparsable input.
func (e *Engine) startDate(raw string) time.Time {
	if strings.TrimSpace(raw) != "" {
		if t, err := appointment.ParseDate(raw); err == nil {
			return t
		}
	}
	return e.today()
}

func (e *Engine) query(req SearchRequest, defaultDays int) (SlotQuery, string) {
	c := e.Catalog()

	specialty := strings.ToLower(strings.TrimSpace(req.Specialty))
	if !c.HasSpecialty(specialty) {
		return SlotQuery{}, fmt.Sprintf("Unknown specialty %q.", req.Specialty)
	}

	modality := catalog.ModalityInPerson
	if strings.TrimSpace(req.Modality) != "" {
		m, ok := catalog.ParseModality(req.Modality)
		if !ok {
			return SlotQuery{}, fmt.Sprintf("Unknown consultation type %q.", req.Modality)
		}
		modality = m
	}

	kinds, reason := parseKinds(req.Accessibility)
	if reason != "" {
		return SlotQuery{}, reason
	}

	preferred := strings.TrimSpace(req.PreferredSlot)
	if !c.HasSlot(preferred) {
		preferred = c.SlotLabels()[0]
	}

	days := defaultDays
	if req.DaysAhead != nil && *req.DaysAhead > 0 {
		days = *req.DaysAhead
	}

	return SlotQuery{
		Specialty:     specialty,
		Modality:      modality,
		Accessibility: kinds,
		Start:         e.startDate(req.StartDate),
		PreferredSlot: preferred,
		DaysAhead:     days,
	}, ""
}

func parseKinds(raw []string) ([]catalog.ResourceKind, string) {
	kinds := []catalog.ResourceKind{}
	seen := map[catalog.ResourceKind]bool{}
	for _, token := range raw {
		kind, ok := catalog.ParseResourceKind(token)
		if !ok {
			return nil, fmt.Sprintf("Unknown accessibility resource %q.", token)
		}
		if !seen[kind] {
			seen[kind] = true
			kinds = append(kinds, kind)
		}
	}
	return kinds, ""
}

func (e *Engine) search(ctx context.Context, q SlotQuery) (SlotResult, error) {
	match, err := e.finder.FindNextSlot(ctx, q)
	if err != nil {
		return SlotResult{}, fmt.Errorf("find next slot: %w", err)
	}
	e.metrics.ObserveSearch(match != nil)
	if match == nil {
		return SlotResult{
			Available: false,
			Reason:    "No slot with the required resources in the coming days.",
		}, nil
	}
	return SlotResult{
		Available:    true,
		Date:         match.Date,
		Slot:         match.Slot,
		Practitioner: match.Practitioner,
		Notes:        "Slot found taking accessibility resources into account.",
	}, nil
}

func (e *Engine) ListAvailableSlots(ctx context.Context, req SearchRequest) (*SlotResult, error) {
	q, reason := e.query(req, e.opts.DaysAhead)
	if reason != "" {
		return &SlotResult{Available: false, Reason: reason}, nil
	}
	res, err := e.search(ctx, q)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// SuggestAlternativeSlot searches a longer horizon and says whether the
// preferred slot could be kept.
func (e *Engine) SuggestAlternativeSlot(ctx context.Context, req SearchRequest) (*SlotResult, error) {
	q, reason := e.query(req, AlternativeDaysAhead)
	if reason != "" {
		return &SlotResult{Available: false, Reason: reason}, nil
	}
	res, err := e.search(ctx, q)
	if err != nil {
		return nil, err
	}
	if !res.Available {
		return &res, nil
	}
	if res.Slot == q.PreferredSlot {
		res.Strategy = "Preference kept, a slot with compatible resources was available."
	} else {
		res.Strategy = fmt.Sprintf("Placed in %s due to resource availability.", res.Slot)
	}
	return &res, nil
}

// PlanAppointment runs a regular search and, when it fails, an alternative
// search over at least two weeks.
func (e *Engine) PlanAppointment(ctx context.Context, req PlanRequest) (*PlanResult, error) {
	days := e.opts.DaysAhead
	if req.DaysAhead != nil && *req.DaysAhead > 0 {
		days = *req.DaysAhead
	}
	start := appointment.FormatDate(e.startDate(req.PreferredDate))

	search := SearchRequest{
		Specialty:     req.Specialty,
		Modality:      req.Modality,
		Accessibility: req.Accessibility,
		PreferredSlot: req.PreferredSlot,
		StartDate:     start,
		DaysAhead:     &days,
	}

	modality := req.Modality
	if strings.TrimSpace(modality) == "" {
		modality = string(catalog.ModalityInPerson)
	}
	out := &PlanResult{
		Request: PlanRequestEcho{
			Specialty:     req.Specialty,
			Modality:      modality,
			Accessibility: append([]string{}, req.Accessibility...),
			PreferredSlot: req.PreferredSlot,
			PreferredDate: start,
			DaysAhead:     days,
		},
	}

	first, err := e.ListAvailableSlots(ctx, search)
	if err != nil {
		return nil, err
	}
	out.Result = *first
	if first.Available {
		return out, nil
	}

	altDays := max(days, AlternativeDaysAhead)
	search.DaysAhead = &altDays
	alt, err := e.SuggestAlternativeSlot(ctx, search)
	if err != nil {
		return nil, err
	}
	out.Alternative = alt
	return out, nil
}

func (e *Engine) BookAppointment(ctx context.Context, req BookingRequest) (*BookingResult, error) {
	b, err := e.svc.Book(ctx, appointment.BookRequest{
		Specialty:     req.Specialty,
		Date:          req.Date,
		Slot:          req.Slot,
		Modality:      req.Modality,
		Urgency:       req.Urgency,
		Accessibility: req.Accessibility,
		Practitioner:  req.Practitioner,
		Triage:        req.Triage,
	})
	if err != nil {
		if errors.Is(err, appointment.ErrInvalidRequest) {
			return &BookingResult{Booked: false, Reason: err.Error()}, nil
		}
		return nil, err
	}
	return &BookingResult{Booked: true, Booking: b}, nil
}

func (e *Engine) CancelBooking(ctx context.Context, bookingID int64) (*appointment.CancelResult, error) {
	return e.svc.Cancel(ctx, bookingID)
}

// AvailabilitySnapshot covers today plus days-1 following days, clamped
// to [1,30] days.
func (e *Engine) AvailabilitySnapshot(ctx context.Context, days int) ([]SnapshotEntry, error) {
	days = min(max(days, 1), MaxSnapshotDays)
	today := e.today()

	out := []SnapshotEntry{}
	for offset := 0; offset < days; offset++ {
		date := appointment.FormatDate(today.AddDate(0, 0, offset))
		for _, slot := range e.Catalog().SlotLabels() {
			capacity, err := e.avail.RemainingCapacity(ctx, date, slot)
			if err != nil {
				return nil, err
			}
			resources, err := e.avail.RemainingResources(ctx, date, slot)
			if err != nil {
				return nil, err
			}
			out = append(out, SnapshotEntry{
				Date:         date,
				Slot:         slot,
				CapacityLeft: capacity,
				Resources:    resources,
			})
		}
	}
	return out, nil
}

func (e *Engine) dateSlot(date, slot string) (string, string, error) {
	d, err := appointment.CanonicalDate(date)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}
	slot = strings.TrimSpace(slot)
	if !e.Catalog().HasSlot(slot) {
		return "", "", fmt.Errorf("%w: unknown slot %q", ErrInvalidQuery, slot)
	}
	return d, slot, nil
}

func (e *Engine) CheckCapacity(ctx context.Context, date, slot string) (*CapacityStatus, error) {
	d, s, err := e.dateSlot(date, slot)
	if err != nil {
		return nil, err
	}
	capacity, err := e.avail.RemainingCapacity(ctx, d, s)
	if err != nil {
		return nil, err
	}
	return &CapacityStatus{Date: d, Slot: s, CapacityLeft: capacity}, nil
}

func (e *Engine) DoctorStatus(ctx context.Context, name, date, slot string) (*PractitionerStatus, error) {
	d, s, err := e.dateSlot(date, slot)
	if err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if _, ok := e.Catalog().Practitioner(name); !ok {
		return nil, fmt.Errorf("%w: unknown practitioner %q", ErrInvalidQuery, name)
	}
	free, err := e.avail.PractitionerFree(ctx, name, d, s)
	if err != nil {
		return nil, err
	}
	return &PractitionerStatus{Practitioner: name, Date: d, Slot: s, Available: free}, nil
}

func (e *Engine) ResourceStatus(ctx context.Context, date, slot string) (*ResourceStatus, error) {
	d, s, err := e.dateSlot(date, slot)
	if err != nil {
		return nil, err
	}
	resources, err := e.avail.RemainingResources(ctx, d, s)
	if err != nil {
		return nil, err
	}
	return &ResourceStatus{Date: d, Slot: s, Resources: resources}, nil
}

func (e *Engine) ListBookings(ctx context.Context, date, slot string) (*BookingList, error) {
	bookings, err := e.svc.ListBookings(ctx, date, slot)
	if err != nil {
		if errors.Is(err, appointment.ErrInvalidRequest) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
		}
		return nil, err
	}
	return &BookingList{Bookings: bookings}, nil
}

func (e *Engine) PatientRequirements(ctx context.Context, patientID int64) (*PatientRequirements, error) {
	p, err := e.svc.PatientRequirements(ctx, patientID)
	if err != nil {
		if errors.Is(err, appointment.ErrPatientNotFound) {
			return &PatientRequirements{Found: false, Reason: fmt.Sprintf("patient %d not found", patientID)}, nil
		}
		return nil, err
	}
	return &PatientRequirements{Found: true, Patient: p}, nil
}

func (e *Engine) TriageScore(rec triage.Record) TriageResult {
	return TriageResult{Level: triage.Score(rec)}
}
