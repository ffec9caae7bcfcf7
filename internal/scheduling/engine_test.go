package scheduling

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bedimand/atendimento-acessivel/internal/appointment"
	"github.com/bedimand/atendimento-acessivel/internal/catalog"
	redisclient "github.com/bedimand/atendimento-acessivel/internal/redis"
	"github.com/bedimand/atendimento-acessivel/internal/triage"
)

var monday = time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)

func intPtr(v int) *int { return &v }

func newTestEngine(t *testing.T) (*Engine, *appointment.Service) {
	t.Helper()
	svc := appointment.NewService(appointment.ServiceDeps{
		Repo:    appointment.NewInMemoryRepository(),
		Catalog: catalog.Default(),
	})
	return NewEngine(Deps{
		Service: svc,
		Options: DefaultEngineOptions(),
		Now:     func() time.Time { return monday },
	}), svc
}

func newCachedEngine(t *testing.T) (*Engine, *appointment.Service) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := redisclient.NewResultCache(client, time.Minute)

	svc := appointment.NewService(appointment.ServiceDeps{
		Repo:     appointment.NewInMemoryRepository(),
		Catalog:  catalog.Default(),
		Observer: cache,
	})
	return NewEngine(Deps{
		Service: svc,
		Cache:   cache,
		Options: DefaultEngineOptions(),
		Now:     func() time.Time { return monday },
	}), svc
}

func TestListAvailableSlotsPrefersRequestedSlot(t *testing.T) {
	e, _ := newTestEngine(t)

	res, err := e.ListAvailableSlots(context.Background(), SearchRequest{
		Specialty:     "cardiology",
		Modality:      "in-person",
		PreferredSlot: "09-11",
		StartDate:     "2025-03-10",
	})
	require.NoError(t, err)
	assert.True(t, res.Available)
	assert.Equal(t, "2025-03-10", res.Date)
	assert.Equal(t, "09-11", res.Slot)
	assert.Equal(t, "Dr. Carla", res.Practitioner)
}

func TestFinderSkipsExhaustedResource(t *testing.T) {
	e, svc := newTestEngine(t)
	ctx := context.Background()

	_, err := svc.Book(ctx, appointment.BookRequest{
		Specialty:     "general practice",
		Date:          "2025-03-10",
		Slot:          "09-11",
		Accessibility: []string{"braille"},
		Practitioner:  "Dr. Carlos Mendes",
	})
	require.NoError(t, err)

	status, err := e.ResourceStatus(ctx, "2025-03-10", "09-11")
	require.NoError(t, err)
	assert.Equal(t, 0, status.Resources[catalog.ResourceBraille])

	res, err := e.ListAvailableSlots(ctx, SearchRequest{
		Specialty:     "cardiology",
		Accessibility: []string{"braille"},
		PreferredSlot: "09-11",
		StartDate:     "2025-03-10",
	})
	require.NoError(t, err)
	require.True(t, res.Available)
	assert.Equal(t, "2025-03-10", res.Date)
	assert.Equal(t, "13-15", res.Slot)
	assert.Equal(t, "Dr. Carla", res.Practitioner)

	// without braille the preferred slot is still open
	res, err = e.ListAvailableSlots(ctx, SearchRequest{
		Specialty:     "cardiology",
		PreferredSlot: "09-11",
		StartDate:     "2025-03-10",
	})
	require.NoError(t, err)
	assert.Equal(t, "09-11", res.Slot)
}

func TestFinderMovesToNextPractitionerAndDay(t *testing.T) {
	e, svc := newTestEngine(t)
	ctx := context.Background()

	for _, slot := range []string{"13-15", "15-17", "17-19"} {
		for _, doc := range []string{"Dr. Carla", "Dr. Felipe"} {
			_, err := svc.Book(ctx, appointment.BookRequest{Specialty: "cardiology", Date: "2025-03-10", Slot: slot, Practitioner: doc})
			require.NoError(t, err)
		}
	}
	_, err := svc.Book(ctx, appointment.BookRequest{Specialty: "cardiology", Date: "2025-03-10", Slot: "09-11", Practitioner: "Dr. Carla"})
	require.NoError(t, err)

	res, err := e.ListAvailableSlots(ctx, SearchRequest{Specialty: "cardiology", PreferredSlot: "13-15", StartDate: "2025-03-10"})
	require.NoError(t, err)
	require.True(t, res.Available)
	assert.Equal(t, "2025-03-11", res.Date)
	assert.Equal(t, "13-15", res.Slot)
	assert.Equal(t, "Dr. Carla", res.Practitioner)

	status, err := e.DoctorStatus(ctx, "Dr. Felipe", "2025-03-10", "15-17")
	require.NoError(t, err)
	assert.False(t, status.Available)
}

func TestListAvailableSlotsReportsValidationFailures(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	res, err := e.ListAvailableSlots(ctx, SearchRequest{Specialty: "astrology"})
	require.NoError(t, err)
	assert.False(t, res.Available)
	assert.Contains(t, res.Reason, "astrology")

	res, err = e.ListAvailableSlots(ctx, SearchRequest{Specialty: "cardiology", Accessibility: []string{"jetpack"}})
	require.NoError(t, err)
	assert.False(t, res.Available)
}

func TestSuggestAlternativeSlotStrategy(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	kept, err := e.SuggestAlternativeSlot(ctx, SearchRequest{Specialty: "cardiology", PreferredSlot: "09-11"})
	require.NoError(t, err)
	require.True(t, kept.Available)
	assert.Equal(t, "2025-03-10", kept.Date)
	assert.Contains(t, kept.Strategy, "Preference kept")

	moved, err := e.SuggestAlternativeSlot(ctx, SearchRequest{Specialty: "cardiology", PreferredSlot: "07-09"})
	require.NoError(t, err)
	require.True(t, moved.Available)
	assert.Equal(t, "09-11", moved.Slot)
	assert.Contains(t, moved.Strategy, "09-11")
}

func TestPlanAppointmentFallsBackToAlternative(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	ok, err := e.PlanAppointment(ctx, PlanRequest{Specialty: "nutrition", Modality: "online"})
	require.NoError(t, err)
	assert.True(t, ok.Result.Available)
	assert.Nil(t, ok.Alternative)
	assert.Equal(t, "2025-03-10", ok.Request.PreferredDate)
	assert.Equal(t, DefaultDaysAhead, ok.Request.DaysAhead)

	// no cardiologist consults online
	failed, err := e.PlanAppointment(ctx, PlanRequest{Specialty: "cardiology", Modality: "online", DaysAhead: intPtr(3)})
	require.NoError(t, err)
	assert.False(t, failed.Result.Available)
	require.NotNil(t, failed.Alternative)
	assert.False(t, failed.Alternative.Available)
	assert.Equal(t, 3, failed.Request.DaysAhead)
}

func TestBookAppointmentValidationIsReported(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	res, err := e.BookAppointment(ctx, BookingRequest{Specialty: "cardiology", Date: "2025-03-10", Slot: "25-27", Practitioner: "Dr. Carla"})
	require.NoError(t, err)
	assert.False(t, res.Booked)
	assert.NotEmpty(t, res.Reason)

	res, err = e.BookAppointment(ctx, BookingRequest{
		Specialty: "cardiology", Date: "2025-03-10", Slot: "09-11", Practitioner: "Dr. Carla",
		Triage: &triage.Record{Dyspnea: true},
	})
	require.NoError(t, err)
	assert.True(t, res.Booked)
	assert.Contains(t, res.Warnings, "slot")

	req, err := e.PatientRequirements(ctx, res.PatientID)
	require.NoError(t, err)
	assert.True(t, req.Found)
	assert.Equal(t, 2, req.Urgency)

	missing, err := e.PatientRequirements(ctx, 999)
	require.NoError(t, err)
	assert.False(t, missing.Found)
}

func TestCheckCapacityGoesNegativeOnOverbooking(t *testing.T) {
	e, svc := newTestEngine(t)
	ctx := context.Background()

	c := e.Catalog()
	for i := 0; i < c.Capacity("07-09")+1; i++ {
		_, err := svc.Book(ctx, appointment.BookRequest{Specialty: "psychiatry", Date: "2025-03-12", Slot: "07-09", Practitioner: "Dr. Ana"})
		require.NoError(t, err)
	}

	status, err := e.CheckCapacity(ctx, "12/03/2025", "07-09")
	require.NoError(t, err)
	assert.Equal(t, -1, status.CapacityLeft)
	assert.Equal(t, "2025-03-12", status.Date)

	_, err = e.CheckCapacity(ctx, "2025-03-12", "nope")
	require.ErrorIs(t, err, ErrInvalidQuery)
	_, err = e.DoctorStatus(ctx, "Dr. Who", "2025-03-12", "07-09")
	require.ErrorIs(t, err, ErrInvalidQuery)
}

func TestAvailabilitySnapshotClampsDays(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	slots := len(e.Catalog().SlotLabels())

	one, err := e.AvailabilitySnapshot(ctx, 0)
	require.NoError(t, err)
	require.Len(t, one, slots)
	assert.Equal(t, "2025-03-10", one[0].Date)
	assert.Equal(t, e.Catalog().Capacity(one[0].Slot), one[0].CapacityLeft)

	many, err := e.AvailabilitySnapshot(ctx, 90)
	require.NoError(t, err)
	assert.Len(t, many, MaxSnapshotDays*slots)
	assert.Equal(t, "2025-04-08", many[len(many)-1].Date)
}

func TestListBookingsThroughEngine(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := e.BookAppointment(ctx, BookingRequest{Specialty: "dentistry", Date: "2025-03-10", Slot: "07-09", Practitioner: "Dr. Laura"})
	require.NoError(t, err)

	list, err := e.ListBookings(ctx, "2025-03-10", "")
	require.NoError(t, err)
	assert.Len(t, list.Bookings, 1)

	_, err = e.ListBookings(ctx, "someday", "")
	require.ErrorIs(t, err, ErrInvalidQuery)
}

func TestTriageScore(t *testing.T) {
	e, _ := newTestEngine(t)
	assert.Equal(t, 5, e.TriageScore(triage.Record{SystolicBP: 85, HeartRate: 80, SpO2: 98, Temperature: 36.6}).Level)
	assert.Equal(t, 1, e.TriageScore(triage.Record{}).Level)
}

func TestDoctorAndResourceStatusFollowBookings(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	before, err := e.ResourceStatus(ctx, "2025-03-11", "09-11")
	require.NoError(t, err)

	free, err := e.DoctorStatus(ctx, "Dr. Carla", "2025-03-11", "09-11")
	require.NoError(t, err)
	assert.True(t, free.Available)

	res, err := e.BookAppointment(ctx, BookingRequest{
		Specialty:     "cardiology",
		Date:          "2025-03-11",
		Slot:          "09-11",
		Accessibility: []string{"sign_language"},
		Practitioner:  "Dr. Carla",
	})
	require.NoError(t, err)
	require.True(t, res.Booked)

	busy, err := e.DoctorStatus(ctx, "Dr. Carla", "2025-03-11", "09-11")
	require.NoError(t, err)
	assert.False(t, busy.Available)

	after, err := e.ResourceStatus(ctx, "2025-03-11", "09-11")
	require.NoError(t, err)
	assert.Equal(t, before.Resources[catalog.ResourceSignLanguage]-1, after.Resources[catalog.ResourceSignLanguage])
	assert.Equal(t, before.Resources[catalog.ResourceBraille], after.Resources[catalog.ResourceBraille])

	p, err := e.PatientRequirements(ctx, res.PatientID)
	require.NoError(t, err)
	require.True(t, p.Found)
	assert.Equal(t, []catalog.ResourceKind{catalog.ResourceSignLanguage}, p.Patient.Accessibility)
	assert.Equal(t, catalog.PeriodMorning, p.Patient.Period)
	assert.Equal(t, appointment.DefaultUrgency, p.Patient.Urgency)

	missing, err := e.PatientRequirements(ctx, 9999)
	require.NoError(t, err)
	assert.False(t, missing.Found)
	assert.NotEmpty(t, missing.Reason)
}

// bookingDuringRun commits a ledger write right after each cache lookup,
// while the optimizer is still computing.
type bookingDuringRun struct {
	*redisclient.ResultCache
}

func (c bookingDuringRun) Load(ctx context.Context, fingerprint string) ([]byte, int64, bool, error) {
	data, version, ok, err := c.ResultCache.Load(ctx, fingerprint)
	if err == nil && !ok {
		err = c.ResultCache.LedgerChanged(ctx)
	}
	return data, version, ok, err
}

func TestOptimizeScheduleDoesNotCacheAcrossLedgerChange(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := redisclient.NewResultCache(client, time.Minute)

	svc := appointment.NewService(appointment.ServiceDeps{
		Repo:    appointment.NewInMemoryRepository(),
		Catalog: catalog.Default(),
	})
	racing := NewEngine(Deps{
		Service: svc,
		Cache:   bookingDuringRun{cache},
		Options: DefaultEngineOptions(),
		Now:     func() time.Time { return monday },
	})
	plain := NewEngine(Deps{
		Service: svc,
		Cache:   cache,
		Options: DefaultEngineOptions(),
		Now:     func() time.Time { return monday },
	})

	ctx := context.Background()
	req := OptimizeRequest{
		Patients:      []BatchPatient{{Specialty: "cardiology", PreferredSlot: "09-11"}},
		Date:          "2025-03-10",
		MaxIterations: intPtr(10),
		Restarts:      intPtr(1),
	}

	first, err := racing.OptimizeSchedule(ctx, req)
	require.NoError(t, err)
	require.True(t, first.Optimized)
	assert.False(t, first.Cached)

	second, err := plain.OptimizeSchedule(ctx, req)
	require.NoError(t, err)
	assert.False(t, second.Cached)

	third, err := plain.OptimizeSchedule(ctx, req)
	require.NoError(t, err)
	assert.True(t, third.Cached)
}

func TestFinderSkipsPractitionerHeldByDirectBooking(t *testing.T) {
	e, svc := newTestEngine(t)
	ctx := context.Background()

	// Dr. Carla is the first cardiologist working 09-11
	for i := 0; i < 2; i++ {
		b, err := svc.Book(ctx, appointment.BookRequest{Specialty: "cardiology", Date: "2025-03-10", Slot: "09-11", Practitioner: "Dr. Carla"})
		require.NoError(t, err)
		if i == 1 {
			assert.Contains(t, b.Warnings, "practitioner")
		}
	}

	status, err := e.DoctorStatus(ctx, "Dr. Carla", "2025-03-10", "09-11")
	require.NoError(t, err)
	assert.False(t, status.Available)

	res, err := e.ListAvailableSlots(ctx, SearchRequest{
		Specialty:     "cardiology",
		PreferredSlot: "09-11",
		StartDate:     "2025-03-10",
	})
	require.NoError(t, err)
	require.True(t, res.Available)
	assert.False(t, res.Date == "2025-03-10" && res.Slot == "09-11" && res.Practitioner == "Dr. Carla")

	list, err := e.ListBookings(ctx, "2025-03-10", "09-11")
	require.NoError(t, err)
	assert.Len(t, list.Bookings, 2)
}
