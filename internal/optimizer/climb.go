package optimizer

import (
	"math"
	"math/rand/v2"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/bedimand/atendimento-acessivel/internal/catalog"
)

type Options struct {
	MaxIterations int
	Restarts      int
	// Seed is the base seed; restart i uses Seed+i. Nil draws from an
	// unseeded source and gives up reproducibility.
	Seed *int64
}

// DefaultOptions returns the reference run parameters.
func DefaultOptions() Options {
	seed := int64(DefaultSeed)
	return Options{
		MaxIterations: DefaultMaxIterations,
		Restarts:      DefaultRestarts,
		Seed:          &seed,
	}
}

// Placement is the decoded assignment of one patient.
type Placement struct {
	PatientIndex int               `json:"patient_index"`
	Specialty    string            `json:"specialty"`
	Modality     catalog.Modality  `json:"consultation_type"`
	Slot         string            `json:"slot"`
	Period       catalog.Period    `json:"period"`
	Practitioner string            `json:"doctor_name"`
	Urgency      int               `json:"urgency"`
	Warnings     map[string]string `json:"warnings"`
}

type Result struct {
	Solution      Solution
	Cost          float64
	Restart       int
	Placements    []Placement
	CapacityLeft  map[string]int
	ResourcesLeft map[string]map[catalog.ResourceKind]int
}

func newRand(seed *int64) *rand.Rand {
	if seed == nil {
		return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	s := uint64(*seed)
	return rand.New(rand.NewPCG(s, s))
}

func pick(rng *rand.Rand, choices []int) int {
	return choices[rng.IntN(len(choices))]
}

func (pp *prepared) initial(rng *rand.Rand) Solution {
	sol := make(Solution, len(pp.patients))
	for i := range pp.patients {
		slot := pick(rng, pp.slotChoices(i))
		sol[i] = Assignment{Slot: slot, Practitioner: pick(rng, pp.practitionerChoices(i, slot))}
	}
	return sol
}

// neighbor re-rolls one coordinate of one patient.
func (pp *prepared) neighbor(sol Solution, rng *rand.Rand) Solution {
	next := sol.clone()
	coord := rng.IntN(2 * len(next))
	i := coord / 2
	a := &next[i]

	if coord%2 == 0 {
		a.Slot = pick(rng, pp.slotChoices(i))
		doc := pp.practitioners[a.Practitioner]
		if !doc.Serves(pp.patients[i].Specialty) || !doc.Works(pp.slots[a.Slot]) {
			if choices := pp.qualifiedWorking[i][a.Slot]; len(choices) > 0 {
				a.Practitioner = pick(rng, choices)
			}
		}
		return next
	}

	a.Practitioner = pick(rng, pp.practitionerChoices(i, a.Slot))
	return next
}

type climbResult struct {
	solution Solution
	eval     Evaluation
}

// climb is one restart. It only accepts strictly better neighbors.
func (pp *prepared) climb(seed *int64, iterations int) climbResult {
	rng := newRand(seed)
	current := pp.initial(rng)
	best := pp.evaluate(current)

	for n := 0; n < max(1, iterations); n++ {
		candidate := pp.neighbor(current, rng)
		eval := pp.evaluate(candidate)
		if eval.Cost < best.Cost {
			current, best = candidate, eval
		}
	}

	return climbResult{solution: current, eval: best}
}

// Climb runs a single restart with the given seed.
func Climb(p Problem, seed *int64, iterations int) (*Result, error) {
	pp, err := prepare(p)
	if err != nil {
		return nil, err
	}
	return pp.decode(pp.climb(seed, iterations), 0), nil
}

// Run performs independent restarts in parallel and keeps the cheapest
// solution. Ties go to the lowest restart index, so the outcome does not
// depend on scheduling.
func Run(p Problem, opts Options) (*Result, error) {
	pp, err := prepare(p)
	if err != nil {
		return nil, err
	}

	restarts := max(1, opts.Restarts)
	results := make([]climbResult, restarts)

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := 0; i < restarts; i++ {
		var seed *int64
		if opts.Seed != nil {
			s := *opts.Seed + int64(i)
			seed = &s
		}
		g.Go(func() error {
			results[i] = pp.climb(seed, opts.MaxIterations)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	winner := 0
	bestCost := math.Inf(1)
	for i, r := range results {
		if r.eval.Cost < bestCost {
			winner, bestCost = i, r.eval.Cost
		}
	}

	return pp.decode(results[winner], winner), nil
}

func (pp *prepared) decode(r climbResult, restart int) *Result {
	res := &Result{
		Solution:      r.solution,
		Cost:          r.eval.Cost,
		Restart:       restart,
		CapacityLeft:  make(map[string]int, len(pp.slots)),
		ResourcesLeft: make(map[string]map[catalog.ResourceKind]int, len(pp.slots)),
	}

	for i, slot := range pp.slots {
		res.CapacityLeft[slot] = r.eval.Capacity[i]
		res.ResourcesLeft[slot] = r.eval.Resources[i]
	}

	for i, patient := range pp.patients {
		a := r.solution[i]
		res.Placements = append(res.Placements, Placement{
			PatientIndex: i,
			Specialty:    patient.Specialty,
			Modality:     patient.Modality,
			Slot:         pp.slots[a.Slot],
			Period:       pp.periods[a.Slot],
			Practitioner: pp.practitioners[a.Practitioner].Name,
			Urgency:      patient.Urgency,
			Warnings:     r.eval.Warnings[i],
		})
	}

	return res
}
