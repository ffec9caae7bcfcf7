package optimizer

import (
	"fmt"

	"github.com/bedimand/atendimento-acessivel/internal/catalog"
)

// Warning keys attached to a placement. Resource warnings use the resource
// kind itself as key.
const (
	WarnPractitionerAvailability = "practitioner_availability"
	WarnPractitionerConflict     = "practitioner_conflict"
	WarnSpecialty                = "specialty"
	WarnModality                 = "modality"
	WarnCapacity                 = "capacity"
	WarnPeriod                   = "period"

	ResourceAvailable   = "available"
	ResourceUnavailable = "unavailable"
)

// Evaluation is the cost of a solution together with the state it implies.
type Evaluation struct {
	Cost      float64
	Warnings  []map[string]string
	Capacity  []int
	Resources []map[catalog.ResourceKind]int
}

type practitionerSlot struct {
	practitioner int
	slot         int
}

// evaluate recomputes every tally from scratch.
func (pp *prepared) evaluate(sol Solution) Evaluation {
	w := pp.weights
	cost := 0.0
	slotUsage := make([]int, len(pp.slots))
	doctorUsage := make(map[practitionerSlot]int, len(sol))
	warnings := make([]map[string]string, len(pp.patients))

	resources := make([]map[catalog.ResourceKind]int, len(pp.resources))
	for i, pool := range pp.resources {
		resources[i] = make(map[catalog.ResourceKind]int, len(pool))
		for kind, n := range pool {
			resources[i][kind] = n
		}
	}

	for i, patient := range pp.patients {
		a := sol[i]
		slot := pp.slots[a.Slot]
		doc := pp.practitioners[a.Practitioner]
		warn := map[string]string{}

		if !doc.Serves(patient.Specialty) {
			cost += w.Specialty
			warn[WarnSpecialty] = fmt.Sprintf("%s does not serve %s.", doc.Name, patient.Specialty)
		}
		if patient.Modality == catalog.ModalityOnline && !doc.Online {
			cost += w.Online
			warn[WarnModality] = fmt.Sprintf("%s does not offer online consultations.", doc.Name)
		}
		if !doc.Works(slot) {
			cost += w.Availability
			warn[WarnPractitionerAvailability] = "Practitioner unavailable in the suggested slot."
		}

		slotUsage[a.Slot]++
		if slotUsage[a.Slot] > pp.capacity[a.Slot] {
			cost += w.Overbooking
			warn[WarnCapacity] = fmt.Sprintf("Slot %s is over capacity.", slot)
		}

		pool := resources[a.Slot]
		for _, kind := range patient.Accessibility {
			if pool[kind] > 0 {
				pool[kind]--
				warn[string(kind)] = ResourceAvailable
			} else {
				cost += w.Resource
				warn[string(kind)] = ResourceUnavailable
			}
		}

		if pp.periods[a.Slot] != patient.Period {
			cost += w.Period
			warn[WarnPeriod] = fmt.Sprintf("Slot %s is outside the preferred %s period.", slot, patient.Period)
		}

		key := practitionerSlot{practitioner: a.Practitioner, slot: a.Slot}
		doctorUsage[key]++
		if doctorUsage[key] > 1 {
			cost += w.Overbooking
			warn[WarnPractitionerConflict] = fmt.Sprintf("%s already has an appointment in this slot.", doc.Name)
		}

		cost -= float64(patient.Urgency) * (w.Urgency / 5)
		warnings[i] = warn
	}

	capacity := make([]int, len(pp.slots))
	for i, limit := range pp.capacity {
		capacity[i] = max(0, limit-slotUsage[i])
	}

	return Evaluation{
		Cost:      cost,
		Warnings:  warnings,
		Capacity:  capacity,
		Resources: resources,
	}
}
