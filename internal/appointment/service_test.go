package appointment

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bedimand/atendimento-acessivel/internal/catalog"
	"github.com/bedimand/atendimento-acessivel/internal/metrics"
	redisclient "github.com/bedimand/atendimento-acessivel/internal/redis"
	"github.com/bedimand/atendimento-acessivel/internal/triage"
)

type countingObserver struct {
	calls int
}

func (o *countingObserver) LedgerChanged(ctx context.Context) error {
	o.calls++
	return nil
}

type busyLocker struct{}

func (busyLocker) WithSlotLock(ctx context.Context, date, slot string, fn func(ctx context.Context) error) error {
	return redisclient.ErrLockNotAcquired
}

func newTestService(t *testing.T) (*Service, *InMemoryRepository, *countingObserver) {
	t.Helper()
	repo := NewInMemoryRepository()
	obs := &countingObserver{}
	svc := NewService(ServiceDeps{
		Repo:     repo,
		Catalog:  catalog.Default(),
		Observer: obs,
		Metrics:  metrics.New(prometheus.NewRegistry()),
	})
	return svc, repo, obs
}

func intPtr(v int) *int { return &v }

func TestBookAttachesPeakAndResourceWarnings(t *testing.T) {
	svc, _, obs := newTestService(t)
	ctx := context.Background()

	first, err := svc.Book(ctx, BookRequest{
		Specialty:     "cardiology",
		Date:          "2025-03-10",
		Slot:          "09-11",
		Modality:      "in-person",
		Accessibility: []string{"braille"},
		Practitioner:  "Dr. Carla",
	})
	require.NoError(t, err)
	assert.Contains(t, first.Warnings, "slot")
	assert.NotContains(t, first.Warnings, "resources")

	left, err := svc.Availability().RemainingResources(ctx, "2025-03-10", "09-11")
	require.NoError(t, err)
	assert.Equal(t, 0, left[catalog.ResourceBraille])

	second, err := svc.Book(ctx, BookRequest{
		Specialty:     "cardiology",
		Date:          "10/03/2025",
		Slot:          "09-11",
		Accessibility: []string{"braille", "braille"},
		Practitioner:  "Dr. Carla",
	})
	require.NoError(t, err)
	assert.Equal(t, "Limited resources for: braille", second.Warnings["resources"])
	assert.Contains(t, second.Warnings, "practitioner")
	assert.Equal(t, "2025-03-10", second.Date)

	left, err = svc.Availability().RemainingResources(ctx, "2025-03-10", "09-11")
	require.NoError(t, err)
	assert.Equal(t, -1, left[catalog.ResourceBraille])
	assert.Equal(t, 2, obs.calls)
}

func TestBookUrgencyDefaults(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	base := BookRequest{Specialty: "nutrition", Date: "2025-03-10", Slot: "11-13", Practitioner: "Dr. Elisa"}

	b, err := svc.Book(ctx, base)
	require.NoError(t, err)
	p, err := svc.PatientRequirements(ctx, b.PatientID)
	require.NoError(t, err)
	assert.Equal(t, DefaultUrgency, p.Urgency)
	assert.Equal(t, catalog.PeriodMorning, p.Period)
	assert.Equal(t, catalog.ModalityInPerson, p.Modality)

	withTriage := base
	withTriage.Triage = &triage.Record{SystolicBP: 85, HeartRate: 80, SpO2: 98}
	b, err = svc.Book(ctx, withTriage)
	require.NoError(t, err)
	p, err = svc.PatientRequirements(ctx, b.PatientID)
	require.NoError(t, err)
	assert.Equal(t, 5, p.Urgency)
	rec, ok := repo.Triage(b.PatientID)
	require.True(t, ok)
	assert.Equal(t, 85, rec.SystolicBP)

	clamped := base
	clamped.Urgency = intPtr(12)
	b, err = svc.Book(ctx, clamped)
	require.NoError(t, err)
	p, err = svc.PatientRequirements(ctx, b.PatientID)
	require.NoError(t, err)
	assert.Equal(t, 5, p.Urgency)
}

func TestBookRejectsUnknownTokens(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  BookRequest
	}{
		{"specialty", BookRequest{Specialty: "astrology", Date: "2025-03-10", Slot: "09-11", Practitioner: "Dr. Carla"}},
		{"slot", BookRequest{Specialty: "cardiology", Date: "2025-03-10", Slot: "23-01", Practitioner: "Dr. Carla"}},
		{"date", BookRequest{Specialty: "cardiology", Date: "tomorrow", Slot: "09-11", Practitioner: "Dr. Carla"}},
		{"modality", BookRequest{Specialty: "cardiology", Date: "2025-03-10", Slot: "09-11", Modality: "telepathy", Practitioner: "Dr. Carla"}},
		{"practitioner", BookRequest{Specialty: "cardiology", Date: "2025-03-10", Slot: "09-11", Practitioner: "Dr. Nobody"}},
		{"resource", BookRequest{Specialty: "cardiology", Date: "2025-03-10", Slot: "09-11", Practitioner: "Dr. Carla", Accessibility: []string{"teleport"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Book(ctx, tt.req)
			require.ErrorIs(t, err, ErrInvalidRequest)
		})
	}
}

func TestBookMapsLockContention(t *testing.T) {
	svc := NewService(ServiceDeps{
		Repo:    NewInMemoryRepository(),
		Catalog: catalog.Default(),
		Locker:  busyLocker{},
	})

	_, err := svc.Book(context.Background(), BookRequest{
		Specialty: "cardiology", Date: "2025-03-10", Slot: "09-11", Practitioner: "Dr. Carla",
	})
	require.ErrorIs(t, err, ErrSlotBeingBooked)
}

func TestCancelRestoresOneUnitAndIsIdempotent(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()
	avail := svc.Availability()

	b, err := svc.Book(ctx, BookRequest{
		Specialty:     "psychiatry",
		Date:          "2025-03-11",
		Slot:          "13-15",
		Accessibility: []string{"mobility", "sign_language"},
		Practitioner:  "Dr. Ana",
	})
	require.NoError(t, err)

	capBefore, err := avail.RemainingCapacity(ctx, "2025-03-11", "13-15")
	require.NoError(t, err)
	resBefore, err := avail.RemainingResources(ctx, "2025-03-11", "13-15")
	require.NoError(t, err)

	res, err := svc.Cancel(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, res.Cancelled)
	assert.Equal(t, "psychiatry", res.Specialty)

	capAfter, err := avail.RemainingCapacity(ctx, "2025-03-11", "13-15")
	require.NoError(t, err)
	resAfter, err := avail.RemainingResources(ctx, "2025-03-11", "13-15")
	require.NoError(t, err)

	assert.Equal(t, capBefore+1, capAfter)
	assert.Equal(t, resBefore[catalog.ResourceMobility]+1, resAfter[catalog.ResourceMobility])
	assert.Equal(t, resBefore[catalog.ResourceSignLanguage]+1, resAfter[catalog.ResourceSignLanguage])
	assert.Equal(t, resBefore[catalog.ResourceBraille], resAfter[catalog.ResourceBraille])

	again, err := svc.Cancel(ctx, b.ID)
	require.NoError(t, err)
	assert.False(t, again.Cancelled)
	assert.NotEmpty(t, again.Reason)

	missing, err := svc.Cancel(ctx, 4242)
	require.NoError(t, err)
	assert.False(t, missing.Cancelled)

	events := repo.Events()
	require.Len(t, events, 2)
	assert.Equal(t, EventBookingCreated, events[0].EventType)
	assert.Equal(t, EventBookingCancelled, events[1].EventType)
}

func TestResourceConservation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	c := svc.Catalog()

	requests := [][]string{
		{"braille"},
		{"braille", "cognitive"},
		{},
		{"sign_language", "mobility", "cognitive"},
		{"cognitive"},
	}
	for _, acc := range requests {
		_, err := svc.Book(ctx, BookRequest{
			Specialty: "dermatology", Date: "2025-04-01", Slot: "15-17", Practitioner: "Dr. Gabriela", Accessibility: acc,
		})
		require.NoError(t, err)
	}

	requested := map[catalog.ResourceKind]int{}
	for _, acc := range requests {
		for _, kind := range acc {
			requested[catalog.ResourceKind(kind)]++
		}
	}

	left, err := svc.Availability().RemainingResources(ctx, "2025-04-01", "15-17")
	require.NoError(t, err)
	for kind, quota := range c.Quota("15-17") {
		assert.Equal(t, quota-requested[kind], left[kind], string(kind))
	}

	capacity, err := svc.Availability().RemainingCapacity(ctx, "2025-04-01", "15-17")
	require.NoError(t, err)
	assert.Equal(t, c.Capacity("15-17")-len(requests), capacity)
}

func TestListBookingsNewestFirst(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	for _, slot := range []string{"09-11", "13-15", "09-11"} {
		_, err := svc.Book(ctx, BookRequest{Specialty: "cardiology", Date: "2025-03-12", Slot: slot, Practitioner: "Dr. Carla"})
		require.NoError(t, err)
	}

	all, err := svc.ListBookings(ctx, "", "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, int64(3), all[0].ID)

	filtered, err := svc.ListBookings(ctx, "2025-03-12", "09-11")
	require.NoError(t, err)
	require.Len(t, filtered, 2)
	assert.Equal(t, "cardiology", filtered[0].Specialty)
}

func TestPatientRequirementsNotFound(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.PatientRequirements(context.Background(), 77)
	assert.True(t, errors.Is(err, ErrPatientNotFound))
}
