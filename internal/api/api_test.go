package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bedimand/atendimento-acessivel/internal/appointment"
	"github.com/bedimand/atendimento-acessivel/internal/catalog"
	redisclient "github.com/bedimand/atendimento-acessivel/internal/redis"
	"github.com/bedimand/atendimento-acessivel/internal/scheduling"
)

var monday = time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)

type stubPinger struct{ err error }

func (p stubPinger) Ping(ctx context.Context) error { return p.err }

type busyLocker struct{}

func (busyLocker) WithSlotLock(ctx context.Context, date, slot string, fn func(ctx context.Context) error) error {
	return redisclient.ErrLockNotAcquired
}

func newTestRouter(t *testing.T, locker redisclient.Locker) http.Handler {
	t.Helper()
	svc := appointment.NewService(appointment.ServiceDeps{
		Repo:    appointment.NewInMemoryRepository(),
		Catalog: catalog.Default(),
		Locker:  locker,
	})
	engine := scheduling.NewEngine(scheduling.Deps{
		Service: svc,
		Options: scheduling.DefaultEngineOptions(),
		Now:     func() time.Time { return monday },
	})
	return NewRouter(RouterConfig{
		Engine:   engine,
		Postgres: stubPinger{},
		Env:      "test",
		Version:  "dev",
	})
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestLiveness(t *testing.T) {
	h := newTestRouter(t, nil)

	rec := do(t, h, http.MethodGet, "/health/live", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	var resp LivenessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "dev", resp.Version)
}

func TestRequestIDIsPropagated(t *testing.T) {
	h := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
}

func TestReadiness(t *testing.T) {
	tests := []struct {
		name     string
		postgres Pinger
		redis    Pinger
		code     int
		status   string
	}{
		{"all up", stubPinger{}, stubPinger{}, http.StatusOK, "ok"},
		{"redis disabled", stubPinger{}, nil, http.StatusOK, "ok"},
		{"redis down", stubPinger{}, stubPinger{err: errors.New("refused")}, http.StatusOK, "degraded"},
		{"postgres down", stubPinger{err: errors.New("refused")}, stubPinger{}, http.StatusServiceUnavailable, "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(tt.postgres, tt.redis, "test", "dev")
			rec := httptest.NewRecorder()
			h.Readiness(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

			require.Equal(t, tt.code, rec.Code)
			var resp ReadinessResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.status, resp.Status)
		})
	}
}

func TestBookListCancelRoundTrip(t *testing.T) {
	h := newTestRouter(t, nil)

	rec := do(t, h, http.MethodPost, "/tools/book_appointment", scheduling.BookingRequest{
		Specialty:     "cardiology",
		Date:          "2025-03-10",
		Slot:          "09-11",
		Accessibility: []string{"braille"},
		Practitioner:  "Dr. Carla",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var booked scheduling.BookingResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &booked))
	require.True(t, booked.Booked)
	require.NotNil(t, booked.Booking)
	assert.Equal(t, "Dr. Carla", booked.Practitioner)

	rec = do(t, h, http.MethodPost, "/tools/list_bookings", ListBookingsRequest{Date: "2025-03-10"})
	require.Equal(t, http.StatusOK, rec.Code)
	var list scheduling.BookingList
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Bookings, 1)
	assert.Equal(t, []catalog.ResourceKind{catalog.ResourceBraille}, list.Bookings[0].Accessibility)

	rec = do(t, h, http.MethodPost, "/tools/cancel_booking", CancelBookingRequest{BookingID: booked.ID})
	require.Equal(t, http.StatusOK, rec.Code)
	var cancelled appointment.CancelResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cancelled))
	assert.True(t, cancelled.Cancelled)

	rec = do(t, h, http.MethodPost, "/tools/cancel_booking", CancelBookingRequest{BookingID: booked.ID})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cancelled))
	assert.False(t, cancelled.Cancelled)
	assert.NotEmpty(t, cancelled.Reason)
}

func TestBookValidationFailureIsNotAnError(t *testing.T) {
	h := newTestRouter(t, nil)

	rec := do(t, h, http.MethodPost, "/tools/book_appointment", scheduling.BookingRequest{
		Specialty:    "cardiology",
		Date:         "2025-03-10",
		Slot:         "25-27",
		Practitioner: "Dr. Carla",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var res scheduling.BookingResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.False(t, res.Booked)
	assert.NotEmpty(t, res.Reason)
}

func TestBookSlotContention(t *testing.T) {
	h := newTestRouter(t, busyLocker{})

	rec := do(t, h, http.MethodPost, "/tools/book_appointment", scheduling.BookingRequest{
		Specialty:    "cardiology",
		Date:         "2025-03-10",
		Slot:         "09-11",
		Practitioner: "Dr. Carla",
	})
	require.Equal(t, http.StatusConflict, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "slot_being_booked", resp.Error)
}

func TestListAvailableSlots(t *testing.T) {
	h := newTestRouter(t, nil)

	rec := do(t, h, http.MethodPost, "/tools/list_available_slots", scheduling.SearchRequest{
		Specialty:     "cardiology",
		Modality:      "in-person",
		PreferredSlot: "09-11",
		StartDate:     "2025-03-10",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var res scheduling.SlotResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.True(t, res.Available)
	assert.Equal(t, "2025-03-10", res.Date)
	assert.Equal(t, "09-11", res.Slot)
	assert.Equal(t, "Dr. Carla", res.Practitioner)
}

func TestCheckCapacityRejectsUnknownSlot(t *testing.T) {
	h := newTestRouter(t, nil)

	rec := do(t, h, http.MethodPost, "/tools/check_capacity", SlotStatusRequest{Date: "2025-03-10", Slot: "nope"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "invalid_query", resp.Error)
}

func TestMalformedBody(t *testing.T) {
	h := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/tools/optimize_schedule", bytes.NewBufferString("{"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTriageScoreRedFlag(t *testing.T) {
	h := newTestRouter(t, nil)

	rec := do(t, h, http.MethodPost, "/tools/triage_score", map[string]any{"sbp": 85})
	require.Equal(t, http.StatusOK, rec.Code)

	var res scheduling.TriageResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, 5, res.Level)
}

func TestAvailabilityClampsDays(t *testing.T) {
	h := newTestRouter(t, nil)

	rec := do(t, h, http.MethodGet, "/availability?days_ahead=90", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp AvailabilityResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, scheduling.MaxSnapshotDays, resp.DaysAhead)
	assert.Len(t, resp.Slots, scheduling.MaxSnapshotDays*len(catalog.Default().SlotLabels()))

	rec = do(t, h, http.MethodGet, "/availability?days_ahead=soon", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOptimizeScheduleRejectsEmptyBatch(t *testing.T) {
	h := newTestRouter(t, nil)

	rec := do(t, h, http.MethodPost, "/tools/optimize_schedule", scheduling.OptimizeRequest{})
	require.Equal(t, http.StatusOK, rec.Code)

	var res scheduling.OptimizeResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.False(t, res.Optimized)
	assert.Equal(t, "No patients provided.", res.Reason)
}

func TestTriageScoreAcceptsIntegerFlags(t *testing.T) {
	h := newTestRouter(t, nil)

	rec := do(t, h, http.MethodPost, "/tools/triage_score", map[string]any{"chest_pain": 1, "spo2": 92})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res scheduling.TriageResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, 5, res.Level)
}
