package scheduling

import (
	"github.com/bedimand/atendimento-acessivel/internal/appointment"
	"github.com/bedimand/atendimento-acessivel/internal/catalog"
	"github.com/bedimand/atendimento-acessivel/internal/optimizer"
	"github.com/bedimand/atendimento-acessivel/internal/triage"
)

// Requests

type SearchRequest struct {
	Specialty     string   `json:"specialty"`
	Modality      string   `json:"consultation_type,omitempty"`
	Accessibility []string `json:"accessibility,omitempty"`
	PreferredSlot string   `json:"preferred_slot,omitempty"`
	StartDate     string   `json:"start_date,omitempty"`
	DaysAhead     *int     `json:"days_ahead,omitempty"`
}

type PlanRequest struct {
	Specialty     string   `json:"specialty"`
	Modality      string   `json:"consultation_type,omitempty"`
	Accessibility []string `json:"accessibility,omitempty"`
	PreferredSlot string   `json:"preferred_slot,omitempty"`
	PreferredDate string   `json:"preferred_date,omitempty"`
	DaysAhead     *int     `json:"days_ahead,omitempty"`
}

type BookingRequest struct {
	Specialty     string         `json:"specialty"`
	Date          string         `json:"date"`
	Slot          string         `json:"slot"`
	Modality      string         `json:"consultation_type,omitempty"`
	Urgency       *int           `json:"urgency,omitempty"`
	Accessibility []string       `json:"accessibility,omitempty"`
	Practitioner  string         `json:"doctor_name"`
	Triage        *triage.Record `json:"triage,omitempty"`
}

type BatchPatient struct {
	PatientID       *int64   `json:"patient_id,omitempty"`
	Label           string   `json:"label,omitempty"`
	Name            string   `json:"name,omitempty"`
	Specialty       string   `json:"specialty"`
	Modality        string   `json:"consultation_type,omitempty"`
	PreferredSlot   string   `json:"preferred_slot,omitempty"`
	PreferredPeriod string   `json:"preferred_period,omitempty"`
	Urgency         *int     `json:"urgency,omitempty"`
	Accessibility   []string `json:"accessibility,omitempty"`
}

type OptimizeRequest struct {
	Patients      []BatchPatient `json:"patients"`
	Slots         []string       `json:"slots,omitempty"`
	Date          string         `json:"date,omitempty"`
	MaxIterations *int           `json:"max_iterations,omitempty"`
	Restarts      *int           `json:"restarts,omitempty"`
	Seed          *int64         `json:"seed,omitempty"`
	// Randomize drops the seed and makes the run irreproducible.
	Randomize bool `json:"randomize,omitempty"`
}

// Results

type SlotResult struct {
	Available    bool   `json:"available"`
	Date         string `json:"date,omitempty"`
	Slot         string `json:"slot,omitempty"`
	Practitioner string `json:"doctor_name,omitempty"`
	Notes        string `json:"notes,omitempty"`
	Strategy     string `json:"strategy,omitempty"`
	Reason       string `json:"reason,omitempty"`
}

type PlanRequestEcho struct {
	Specialty     string   `json:"specialty"`
	Modality      string   `json:"consultation_type"`
	Accessibility []string `json:"accessibility"`
	PreferredSlot string   `json:"preferred_slot"`
	PreferredDate string   `json:"preferred_date"`
	DaysAhead     int      `json:"days_ahead"`
}

type PlanResult struct {
	Request     PlanRequestEcho `json:"request"`
	Result      SlotResult      `json:"result"`
	Alternative *SlotResult     `json:"alternative"`
}

type BookingResult struct {
	Booked bool   `json:"booked"`
	Reason string `json:"reason,omitempty"`
	*appointment.Booking
}

type AssignmentResult struct {
	optimizer.Placement
	PatientID *int64 `json:"patient_id"`
	Label     string `json:"label,omitempty"`
}

type OptimizeParameters struct {
	Slots         []string `json:"slots"`
	Date          string   `json:"date,omitempty"`
	MaxIterations int      `json:"max_iterations"`
	Restarts      int      `json:"restarts"`
	Seed          *int64   `json:"seed"`
}

type OptimizeResult struct {
	Optimized     bool                                    `json:"optimized"`
	Reason        string                                  `json:"reason,omitempty"`
	Cost          float64                                 `json:"cost"`
	Assignments   []AssignmentResult                      `json:"assignments,omitempty"`
	CapacityLeft  map[string]int                          `json:"capacity_left,omitempty"`
	ResourcesLeft map[string]map[catalog.ResourceKind]int `json:"resources_left,omitempty"`
	Parameters    *OptimizeParameters                     `json:"parameters,omitempty"`
	Cached        bool                                    `json:"cached,omitempty"`
}

type SnapshotEntry struct {
	Date         string                       `json:"date"`
	Slot         string                       `json:"slot"`
	CapacityLeft int                          `json:"capacity_left"`
	Resources    map[catalog.ResourceKind]int `json:"resources"`
}

type CapacityStatus struct {
	Date         string `json:"date"`
	Slot         string `json:"slot"`
	CapacityLeft int    `json:"capacity_left"`
}

type PractitionerStatus struct {
	Practitioner string `json:"doctor_name"`
	Date         string `json:"date"`
	Slot         string `json:"slot"`
	Available    bool   `json:"available"`
}

type ResourceStatus struct {
	Date      string                       `json:"date"`
	Slot      string                       `json:"slot"`
	Resources map[catalog.ResourceKind]int `json:"resources"`
}

type BookingList struct {
	Bookings []appointment.BookingDetail `json:"bookings"`
}

type PatientRequirements struct {
	Found  bool   `json:"found"`
	Reason string `json:"reason,omitempty"`
	*appointment.Patient
}

type TriageResult struct {
	Level int `json:"triage_level"`
}
