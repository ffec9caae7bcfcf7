package appointment

import (
	"context"
	"errors"

	"github.com/bedimand/atendimento-acessivel/internal/catalog"
)

var (
	ErrPatientNotFound = errors.New("patient not found")
	ErrBookingNotFound = errors.New("booking not found")
)

// Repository contains all ledger interactions needed by the engine.
// Dates are calendar days in DateLayout.
type Repository interface {
	// Writes, each executed as one transaction
	CreateBooking(ctx context.Context, nb NewBooking) (*Booking, error)
	DeleteBooking(ctx context.Context, id int64) (*CancelledBooking, error)

	// Listing and lookups
	ListBookings(ctx context.Context, f BookingFilter) ([]BookingDetail, error)
	GetPatient(ctx context.Context, id int64) (*Patient, error)

	// Aggregates the availability ledger is derived from
	CountBookings(ctx context.Context, date, slot string) (int, error)
	CountResourceUsage(ctx context.Context, date, slot string) (map[catalog.ResourceKind]int, error)
	CountPractitionerBookings(ctx context.Context, practitioner, date, slot string) (int, error)

	// Per deployment catalog overrides
	LoadSlotOverrides(ctx context.Context) (map[string]int, map[string]map[catalog.ResourceKind]int, error)
}
