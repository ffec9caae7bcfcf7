package api

import "github.com/bedimand/atendimento-acessivel/internal/scheduling"

type CancelBookingRequest struct {
	BookingID int64 `json:"booking_id"`
}

type SlotStatusRequest struct {
	Date string `json:"date"`
	Slot string `json:"slot"`
}

type DoctorStatusRequest struct {
	Practitioner string `json:"doctor_name"`
	Date         string `json:"date"`
	Slot         string `json:"slot"`
}

type ListBookingsRequest struct {
	Date string `json:"date,omitempty"`
	Slot string `json:"slot,omitempty"`
}

type PatientRequirementsRequest struct {
	PatientID int64 `json:"patient_id"`
}

type AvailabilityResponse struct {
	DaysAhead int                        `json:"days_ahead"`
	Slots     []scheduling.SnapshotEntry `json:"slots"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
