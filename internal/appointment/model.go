package appointment

import (
	"time"

	"github.com/bedimand/atendimento-acessivel/internal/catalog"
	"github.com/bedimand/atendimento-acessivel/internal/triage"
)

const (
	EventBookingCreated   = "BOOKING_CREATED"
	EventBookingCancelled = "BOOKING_CANCELLED"
)

// Patient is created together with its booking and carries the request the
// booking was made for.
type Patient struct {
	ID            int64                  `json:"id"`
	Date          string                 `json:"date"`
	Specialty     string                 `json:"specialty"`
	Period        catalog.Period         `json:"period"`
	Modality      catalog.Modality       `json:"consultation_type"`
	Urgency       int                    `json:"urgency"`
	Accessibility []catalog.ResourceKind `json:"accessibility"`
}

type Booking struct {
	ID           int64             `json:"booking_id"`
	PatientID    int64             `json:"patient_id"`
	Date         string            `json:"date"`
	Slot         string            `json:"slot"`
	Practitioner string            `json:"doctor_name"`
	Warnings     map[string]string `json:"warnings"`
	CreatedAt    time.Time         `json:"created_at"`
}

// BookingDetail is a booking joined with the patient it belongs to.
type BookingDetail struct {
	Booking
	Specialty     string                 `json:"specialty"`
	Period        catalog.Period         `json:"period"`
	Modality      catalog.Modality       `json:"consultation_type"`
	Urgency       int                    `json:"urgency"`
	Accessibility []catalog.ResourceKind `json:"accessibility"`
}

// NewBooking is everything the ledger writes in one transaction.
type NewBooking struct {
	Patient      Patient
	Triage       *triage.Record
	Slot         string
	Practitioner string
	Warnings     map[string]string
}

type CancelledBooking struct {
	BookingID    int64  `json:"booking_id"`
	PatientID    int64  `json:"patient_id"`
	Date         string `json:"date"`
	Slot         string `json:"slot"`
	Practitioner string `json:"doctor_name"`
	Specialty    string `json:"specialty"`
}

// BookingFilter narrows ListBookings. Empty fields match everything.
type BookingFilter struct {
	Date string
	Slot string
}

type EventLog struct {
	ID        int64
	EventType string
	BookingID *int64
	Payload   []byte
	CreatedAt time.Time
}
