package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/bedimand/atendimento-acessivel/internal/appointment"
	redisclient "github.com/bedimand/atendimento-acessivel/internal/redis"
	"github.com/bedimand/atendimento-acessivel/internal/scheduling"
	"github.com/bedimand/atendimento-acessivel/internal/triage"
)

type handlers struct {
	engine *scheduling.Engine
	logger *zap.Logger
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return false
	}
	return true
}

func (h *handlers) listAvailableSlots(w http.ResponseWriter, r *http.Request) {
	var req scheduling.SearchRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.engine.ListAvailableSlots(r.Context(), req)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handlers) suggestAlternativeSlot(w http.ResponseWriter, r *http.Request) {
	var req scheduling.SearchRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.engine.SuggestAlternativeSlot(r.Context(), req)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handlers) planAppointment(w http.ResponseWriter, r *http.Request) {
	var req scheduling.PlanRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.engine.PlanAppointment(r.Context(), req)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handlers) bookAppointment(w http.ResponseWriter, r *http.Request) {
	var req scheduling.BookingRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.engine.BookAppointment(r.Context(), req)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	status := http.StatusCreated
	if !res.Booked {
		status = http.StatusOK
	}
	writeJSON(w, status, res)
}

func (h *handlers) cancelBooking(w http.ResponseWriter, r *http.Request) {
	var req CancelBookingRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.engine.CancelBooking(r.Context(), req.BookingID)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handlers) optimizeSchedule(w http.ResponseWriter, r *http.Request) {
	var req scheduling.OptimizeRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.engine.OptimizeSchedule(r.Context(), req)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handlers) checkCapacity(w http.ResponseWriter, r *http.Request) {
	var req SlotStatusRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.engine.CheckCapacity(r.Context(), req.Date, req.Slot)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handlers) doctorStatus(w http.ResponseWriter, r *http.Request) {
	var req DoctorStatusRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.engine.DoctorStatus(r.Context(), req.Practitioner, req.Date, req.Slot)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handlers) resourceStatus(w http.ResponseWriter, r *http.Request) {
	var req SlotStatusRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.engine.ResourceStatus(r.Context(), req.Date, req.Slot)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handlers) listBookings(w http.ResponseWriter, r *http.Request) {
	var req ListBookingsRequest
	if r.ContentLength != 0 && !decode(w, r, &req) {
		return
	}
	res, err := h.engine.ListBookings(r.Context(), req.Date, req.Slot)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handlers) patientRequirements(w http.ResponseWriter, r *http.Request) {
	var req PatientRequirementsRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.engine.PatientRequirements(r.Context(), req.PatientID)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handlers) triageScore(w http.ResponseWriter, r *http.Request) {
	var rec triage.Record
	if !decode(w, r, &rec) {
		return
	}
	writeJSON(w, http.StatusOK, h.engine.TriageScore(rec))
}

func (h *handlers) availability(w http.ResponseWriter, r *http.Request) {
	days := scheduling.DefaultDaysAhead
	if raw := r.URL.Query().Get("days_ahead"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_days_ahead", "days_ahead must be an integer")
			return
		}
		days = n
	}
	days = min(max(days, 1), scheduling.MaxSnapshotDays)

	entries, err := h.engine.AvailabilitySnapshot(r.Context(), days)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, AvailabilityResponse{DaysAhead: days, Slots: entries})
}

func (h *handlers) handleError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, scheduling.ErrInvalidQuery):
		writeError(w, http.StatusBadRequest, "invalid_query", err.Error())
	case errors.Is(err, appointment.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, appointment.ErrSlotBeingBooked),
		errors.Is(err, redisclient.ErrLockNotAcquired):
		writeError(w, http.StatusConflict, "slot_being_booked", "slot is currently being booked, please retry shortly")
	default:
		h.logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", GetRequestID(r.Context())),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}
