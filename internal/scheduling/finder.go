package scheduling

import (
	"context"
	"time"

	"github.com/bedimand/atendimento-acessivel/internal/appointment"
	"github.com/bedimand/atendimento-acessivel/internal/catalog"
)

// SlotQuery is a normalized single patient search.
type SlotQuery struct {
	Specialty     string
	Modality      catalog.Modality
	Accessibility []catalog.ResourceKind
	Start         time.Time
	PreferredSlot string
	DaysAhead     int
}

type SlotMatch struct {
	Date         string
	Slot         string
	Practitioner string
}

// Finder walks dates from the start day and, per date, the preferred slot
// followed by the other slots in catalog order. The first slot with
// capacity, every requested resource and a free eligible practitioner wins.
type Finder struct {
	avail *appointment.Availability
}

func NewFinder(avail *appointment.Availability) *Finder {
	return &Finder{avail: avail}
}

func (f *Finder) slotOrder(preferred string) []string {
	labels := f.avail.Catalog().SlotLabels()
	order := make([]string, 0, len(labels)+1)
	order = append(order, preferred)
	for _, label := range labels {
		if label != preferred {
			order = append(order, label)
		}
	}
	return order
}

// FindNextSlot returns nil when nothing within the horizon fits.
func (f *Finder) FindNextSlot(ctx context.Context, q SlotQuery) (*SlotMatch, error) {
	order := f.slotOrder(q.PreferredSlot)

	for delta := 0; delta <= q.DaysAhead; delta++ {
		date := appointment.FormatDate(q.Start.AddDate(0, 0, delta))

		for _, slot := range order {
			capacity, err := f.avail.RemainingCapacity(ctx, date, slot)
			if err != nil {
				return nil, err
			}
			if capacity <= 0 {
				continue
			}

			if len(q.Accessibility) > 0 {
				left, err := f.avail.RemainingResources(ctx, date, slot)
				if err != nil {
					return nil, err
				}
				if !allAvailable(left, q.Accessibility) {
					continue
				}
			}

			for _, doc := range f.avail.EligiblePractitioners(q.Specialty, slot, q.Modality) {
				free, err := f.avail.PractitionerFree(ctx, doc.Name, date, slot)
				if err != nil {
					return nil, err
				}
				if free {
					return &SlotMatch{Date: date, Slot: slot, Practitioner: doc.Name}, nil
				}
			}
		}
	}

	return nil, nil
}

func allAvailable(left map[catalog.ResourceKind]int, kinds []catalog.ResourceKind) bool {
	for _, kind := range kinds {
		if left[kind] <= 0 {
			return false
		}
	}
	return true
}
