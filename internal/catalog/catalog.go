package catalog

import (
	"errors"
	"fmt"
	"strings"
)

type Period string

const (
	PeriodMorning   Period = "morning"
	PeriodAfternoon Period = "afternoon"
	PeriodEvening   Period = "evening"
)

type Modality string

const (
	ModalityOnline   Modality = "online"
	ModalityInPerson Modality = "in-person"
)

type ResourceKind string

const (
	ResourceSignLanguage ResourceKind = "sign_language"
	ResourceBraille      ResourceKind = "braille"
	ResourceMobility     ResourceKind = "mobility"
	ResourceCognitive    ResourceKind = "cognitive"
)

var (
	ErrNoSlots         = errors.New("catalog has no slots")
	ErrDuplicateSlot   = errors.New("duplicate slot label")
	ErrUnknownSlot     = errors.New("unknown slot")
	ErrInvalidPeriod   = errors.New("invalid period")
	ErrDuplicateDoctor = errors.New("duplicate practitioner name")
)

// ResourceKinds returns every accessibility resource kind in declaration order.
func ResourceKinds() []ResourceKind {
	return []ResourceKind{ResourceSignLanguage, ResourceBraille, ResourceMobility, ResourceCognitive}
}

func ParseModality(raw string) (Modality, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "online":
		return ModalityOnline, true
	case "in-person", "in_person", "inperson":
		return ModalityInPerson, true
	default:
		return "", false
	}
}

func ParsePeriod(raw string) (Period, bool) {
	p := Period(strings.ToLower(strings.TrimSpace(raw)))
	switch p {
	case PeriodMorning, PeriodAfternoon, PeriodEvening:
		return p, true
	default:
		return "", false
	}
}

func ParseResourceKind(raw string) (ResourceKind, bool) {
	k := ResourceKind(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range ResourceKinds() {
		if k == known {
			return k, true
		}
	}
	return "", false
}

// Slot is a fixed interval of the working day.
type Slot struct {
	Label  string
	Period Period
	Peak   bool
}

type Practitioner struct {
	Name        string
	Specialties []string
	Online      bool
	Slots       []string
}

func (p Practitioner) Serves(specialty string) bool {
	for _, s := range p.Specialties {
		if s == specialty {
			return true
		}
	}
	return false
}

func (p Practitioner) Works(slot string) bool {
	for _, s := range p.Slots {
		if s == slot {
			return true
		}
	}
	return false
}

func (p Practitioner) clone() Practitioner {
	p.Specialties = append([]string(nil), p.Specialties...)
	p.Slots = append([]string(nil), p.Slots...)
	return p
}

// Definition is the raw material a Catalog is built from.
type Definition struct {
	Specialties   []string
	Slots         []Slot
	Capacity      map[string]int
	Quotas        map[string]map[ResourceKind]int
	Practitioners []Practitioner
}

// Catalog is the immutable reference data of a deployment: slots, capacity,
// accessibility quotas and the practitioner directory. It is safe for
// concurrent use because nothing mutates it after New.
type Catalog struct {
	specialties   []string
	slots         []Slot
	slotIndex     map[string]int
	capacity      map[string]int
	quotas        map[string]map[ResourceKind]int
	practitioners []Practitioner
	byName        map[string]int
}

func New(def Definition) (*Catalog, error) {
	if len(def.Slots) == 0 {
		return nil, ErrNoSlots
	}

	c := &Catalog{
		specialties: make([]string, 0, len(def.Specialties)),
		slots:       make([]Slot, 0, len(def.Slots)),
		slotIndex:   make(map[string]int, len(def.Slots)),
		capacity:    make(map[string]int, len(def.Slots)),
		quotas:      make(map[string]map[ResourceKind]int, len(def.Slots)),
		byName:      make(map[string]int, len(def.Practitioners)),
	}

	for _, s := range def.Specialties {
		c.specialties = append(c.specialties, strings.ToLower(strings.TrimSpace(s)))
	}

	for _, s := range def.Slots {
		if _, dup := c.slotIndex[s.Label]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateSlot, s.Label)
		}
		if _, ok := ParsePeriod(string(s.Period)); !ok {
			return nil, fmt.Errorf("%w: %q for slot %s", ErrInvalidPeriod, s.Period, s.Label)
		}
		c.slotIndex[s.Label] = len(c.slots)
		c.slots = append(c.slots, s)
		c.capacity[s.Label] = def.Capacity[s.Label]

		quota := make(map[ResourceKind]int, len(ResourceKinds()))
		for _, kind := range ResourceKinds() {
			quota[kind] = def.Quotas[s.Label][kind]
		}
		c.quotas[s.Label] = quota
	}

	for _, p := range def.Practitioners {
		if _, dup := c.byName[p.Name]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateDoctor, p.Name)
		}
		for _, slot := range p.Slots {
			if _, ok := c.slotIndex[slot]; !ok {
				return nil, fmt.Errorf("practitioner %s: %w %s", p.Name, ErrUnknownSlot, slot)
			}
		}
		c.byName[p.Name] = len(c.practitioners)
		c.practitioners = append(c.practitioners, p.clone())
	}

	return c, nil
}

// WithOverrides returns a copy of the catalog with per-slot capacity and
// resource quotas replaced by the given values. Unknown slots are ignored.
func (c *Catalog) WithOverrides(capacity map[string]int, quotas map[string]map[ResourceKind]int) *Catalog {
	out := &Catalog{
		specialties:   c.specialties,
		slots:         c.slots,
		slotIndex:     c.slotIndex,
		practitioners: c.practitioners,
		byName:        c.byName,
		capacity:      make(map[string]int, len(c.capacity)),
		quotas:        make(map[string]map[ResourceKind]int, len(c.quotas)),
	}

	for slot, total := range c.capacity {
		if v, ok := capacity[slot]; ok {
			total = v
		}
		out.capacity[slot] = total
	}

	for slot, quota := range c.quotas {
		merged := make(map[ResourceKind]int, len(quota))
		for kind, n := range quota {
			if v, ok := quotas[slot][kind]; ok {
				n = v
			}
			merged[kind] = n
		}
		out.quotas[slot] = merged
	}

	return out
}

func (c *Catalog) Specialties() []string {
	return append([]string(nil), c.specialties...)
}

func (c *Catalog) HasSpecialty(specialty string) bool {
	for _, s := range c.specialties {
		if s == specialty {
			return true
		}
	}
	return false
}

// Slots returns the slots in declaration order.
func (c *Catalog) Slots() []Slot {
	return append([]Slot(nil), c.slots...)
}

func (c *Catalog) SlotLabels() []string {
	labels := make([]string, len(c.slots))
	for i, s := range c.slots {
		labels[i] = s.Label
	}
	return labels
}

func (c *Catalog) Slot(label string) (Slot, bool) {
	i, ok := c.slotIndex[label]
	if !ok {
		return Slot{}, false
	}
	return c.slots[i], true
}

func (c *Catalog) HasSlot(label string) bool {
	_, ok := c.slotIndex[label]
	return ok
}

func (c *Catalog) PeriodOf(label string) (Period, bool) {
	s, ok := c.Slot(label)
	return s.Period, ok
}

func (c *Catalog) IsPeak(label string) bool {
	s, ok := c.Slot(label)
	return ok && s.Peak
}

// SlotsInPeriod returns the labels of the slots in period p, in declaration order.
func (c *Catalog) SlotsInPeriod(p Period) []string {
	var labels []string
	for _, s := range c.slots {
		if s.Period == p {
			labels = append(labels, s.Label)
		}
	}
	return labels
}

// Capacity is the total number of bookings a slot accepts per date.
func (c *Catalog) Capacity(label string) int {
	return c.capacity[label]
}

// Quota returns the resource quotas of a slot. Every kind is present; unknown
// slots yield zero quotas.
func (c *Catalog) Quota(label string) map[ResourceKind]int {
	out := make(map[ResourceKind]int, len(ResourceKinds()))
	for _, kind := range ResourceKinds() {
		out[kind] = c.quotas[label][kind]
	}
	return out
}

// Practitioners returns the directory in declaration order.
func (c *Catalog) Practitioners() []Practitioner {
	out := make([]Practitioner, len(c.practitioners))
	for i, p := range c.practitioners {
		out[i] = p.clone()
	}
	return out
}

func (c *Catalog) Practitioner(name string) (Practitioner, bool) {
	i, ok := c.byName[name]
	if !ok {
		return Practitioner{}, false
	}
	return c.practitioners[i].clone(), true
}

// EligiblePractitioners lists, in declaration order, the practitioners that
// serve specialty, work slot and, for online consultations, are online capable.
func (c *Catalog) EligiblePractitioners(specialty, slot string, modality Modality) []Practitioner {
	var out []Practitioner
	for _, p := range c.practitioners {
		if !p.Serves(specialty) || !p.Works(slot) {
			continue
		}
		if modality == ModalityOnline && !p.Online {
			continue
		}
		out = append(out, p.clone())
	}
	return out
}
