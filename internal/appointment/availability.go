package appointment

import (
	"context"
	"fmt"

	"github.com/bedimand/atendimento-acessivel/internal/catalog"
)

// Availability derives what is left at a (date, slot) by subtracting live
// bookings from the catalog. Nothing is stored; every call reads the ledger.
type Availability struct {
	catalog *catalog.Catalog
	repo    Repository
}

func NewAvailability(c *catalog.Catalog, repo Repository) *Availability {
	return &Availability{catalog: c, repo: repo}
}

func (a *Availability) Catalog() *catalog.Catalog {
	return a.catalog
}

// RemainingCapacity may be negative when direct bookings overbooked the slot.
func (a *Availability) RemainingCapacity(ctx context.Context, date, slot string) (int, error) {
	used, err := a.repo.CountBookings(ctx, date, slot)
	if err != nil {
		return 0, fmt.Errorf("remaining capacity %s %s: %w", date, slot, err)
	}
	return a.catalog.Capacity(slot) - used, nil
}

// RemainingResources returns quota minus usage for every resource kind.
func (a *Availability) RemainingResources(ctx context.Context, date, slot string) (map[catalog.ResourceKind]int, error) {
	used, err := a.repo.CountResourceUsage(ctx, date, slot)
	if err != nil {
		return nil, fmt.Errorf("remaining resources %s %s: %w", date, slot, err)
	}
	remaining := a.catalog.Quota(slot)
	for kind := range remaining {
		remaining[kind] -= used[kind]
	}
	return remaining, nil
}

func (a *Availability) PractitionerFree(ctx context.Context, name, date, slot string) (bool, error) {
	n, err := a.repo.CountPractitionerBookings(ctx, name, date, slot)
	if err != nil {
		return false, fmt.Errorf("practitioner status %s: %w", name, err)
	}
	return n == 0, nil
}

func (a *Availability) EligiblePractitioners(specialty, slot string, modality catalog.Modality) []catalog.Practitioner {
	return a.catalog.EligiblePractitioners(specialty, slot, modality)
}
