// Package optimizer searches for a low conflict joint assignment of a batch
// of patients to (slot, practitioner) pairs using randomized hill climbing
// with independent restarts.
package optimizer

import (
	"errors"

	"github.com/bedimand/atendimento-acessivel/internal/catalog"
)

const (
	DefaultMaxIterations = 200
	DefaultRestarts      = 10
	DefaultSeed          = 42
)

var (
	ErrNoPatients      = errors.New("no patients to optimize")
	ErrNoSlots         = errors.New("no candidate slots")
	ErrNoPractitioners = errors.New("catalog has no practitioners")
)

// Weights of the cost function. Overbooking also prices a practitioner
// holding two patients in one slot.
type Weights struct {
	Overbooking  float64
	Specialty    float64
	Resource     float64
	Period       float64
	Availability float64
	Online       float64
	Urgency      float64
}

func DefaultWeights() Weights {
	return Weights{
		Overbooking:  1000,
		Specialty:    100,
		Resource:     100,
		Period:       100,
		Availability: 200,
		Online:       40,
		Urgency:      50,
	}
}

// Patient is a normalized pending request.
type Patient struct {
	Specialty     string
	Modality      catalog.Modality
	Period        catalog.Period
	Urgency       int
	Accessibility []catalog.ResourceKind
}

// Problem is everything a run depends on. Capacity and Resources are the
// per slot baselines the batch is placed on top of; slots missing from them
// fall back to the catalog totals.
type Problem struct {
	Catalog   *catalog.Catalog
	Patients  []Patient
	Slots     []string
	Capacity  map[string]int
	Resources map[string]map[catalog.ResourceKind]int
	Weights   Weights
}

// Assignment is one patient's coordinates in a solution: an index into the
// candidate slots and an index into the practitioner directory.
type Assignment struct {
	Slot         int
	Practitioner int
}

type Solution []Assignment

func (s Solution) clone() Solution {
	return append(Solution(nil), s...)
}

// prepared holds the lookups shared by every restart. It is read-only once
// built, so restarts may run concurrently.
type prepared struct {
	patients      []Patient
	slots         []string
	periods       []catalog.Period
	practitioners []catalog.Practitioner
	capacity      []int
	resources     []map[catalog.ResourceKind]int
	weights       Weights

	periodSlots      [][]int
	qualified        [][]int
	qualifiedWorking [][][]int
	allPractitioners []int
}

func prepare(p Problem) (*prepared, error) {
	if len(p.Patients) == 0 {
		return nil, ErrNoPatients
	}
	if len(p.Slots) == 0 {
		return nil, ErrNoSlots
	}
	practitioners := p.Catalog.Practitioners()
	if len(practitioners) == 0 {
		return nil, ErrNoPractitioners
	}

	pp := &prepared{
		patients:      p.Patients,
		slots:         append([]string(nil), p.Slots...),
		practitioners: practitioners,
		weights:       p.Weights,
	}

	for _, slot := range pp.slots {
		period, _ := p.Catalog.PeriodOf(slot)
		pp.periods = append(pp.periods, period)

		limit, ok := p.Capacity[slot]
		if !ok {
			limit = p.Catalog.Capacity(slot)
		}
		pp.capacity = append(pp.capacity, limit)

		pool := p.Catalog.Quota(slot)
		if base, ok := p.Resources[slot]; ok {
			for kind, n := range base {
				pool[kind] = n
			}
		}
		pp.resources = append(pp.resources, pool)
	}

	for i := range practitioners {
		pp.allPractitioners = append(pp.allPractitioners, i)
	}

	for _, patient := range pp.patients {
		var inPeriod []int
		for i, period := range pp.periods {
			if period == patient.Period {
				inPeriod = append(inPeriod, i)
			}
		}
		pp.periodSlots = append(pp.periodSlots, inPeriod)

		var qualified []int
		working := make([][]int, len(pp.slots))
		for d, doc := range practitioners {
			if !doc.Serves(patient.Specialty) {
				continue
			}
			qualified = append(qualified, d)
			for s, slot := range pp.slots {
				if doc.Works(slot) {
					working[s] = append(working[s], d)
				}
			}
		}
		pp.qualified = append(pp.qualified, qualified)
		pp.qualifiedWorking = append(pp.qualifiedWorking, working)
	}

	return pp, nil
}

// slotChoices are the slots a patient's slot coordinate is drawn from.
func (pp *prepared) slotChoices(patient int) []int {
	if choices := pp.periodSlots[patient]; len(choices) > 0 {
		return choices
	}
	all := make([]int, len(pp.slots))
	for i := range all {
		all[i] = i
	}
	return all
}

// practitionerChoices narrows from qualified and working the slot, to
// qualified only, to the whole directory.
func (pp *prepared) practitionerChoices(patient, slot int) []int {
	if choices := pp.qualifiedWorking[patient][slot]; len(choices) > 0 {
		return choices
	}
	if choices := pp.qualified[patient]; len(choices) > 0 {
		return choices
	}
	return pp.allPractitioners
}
