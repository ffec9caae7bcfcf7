package scheduling

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/bedimand/atendimento-acessivel/internal/appointment"
	"github.com/bedimand/atendimento-acessivel/internal/catalog"
	"github.com/bedimand/atendimento-acessivel/internal/optimizer"
	"github.com/bedimand/atendimento-acessivel/internal/triage"
)

type batchMeta struct {
	PatientID *int64
	Label     string
}

// candidateSlots keeps known slots, deduplicated, in request order. An empty
// result means every catalog slot.
func candidateSlots(c *catalog.Catalog, requested []string) []string {
	seen := map[string]bool{}
	var slots []string
	for _, raw := range requested {
		slot := strings.TrimSpace(raw)
		if c.HasSlot(slot) && !seen[slot] {
			seen[slot] = true
			slots = append(slots, slot)
		}
	}
	if len(slots) == 0 {
		return c.SlotLabels()
	}
	return slots
}

func normalizeBatch(c *catalog.Catalog, reqs []BatchPatient, slots []string) ([]optimizer.Patient, []batchMeta, error) {
	candidates := map[string]bool{}
	for _, s := range slots {
		candidates[s] = true
	}

	patients := make([]optimizer.Patient, 0, len(reqs))
	meta := make([]batchMeta, 0, len(reqs))
	for i, req := range reqs {
		specialty := strings.ToLower(strings.TrimSpace(req.Specialty))
		if specialty == "" {
			return nil, nil, fmt.Errorf("patient %d must provide a specialty", i)
		}
		if !c.HasSpecialty(specialty) {
			return nil, nil, fmt.Errorf("patient %d: unknown specialty %q", i, req.Specialty)
		}

		modality, ok := catalog.ParseModality(req.Modality)
		if !ok {
			modality = catalog.ModalityInPerson
		}

		preferred := strings.TrimSpace(req.PreferredSlot)
		if preferred != "" && !candidates[preferred] {
			preferred = slots[0]
		}

		period, ok := catalog.ParsePeriod(req.PreferredPeriod)
		if !ok {
			period = catalog.PeriodMorning
			if req.PreferredPeriod == "" && preferred != "" {
				period, _ = c.PeriodOf(preferred)
			}
		}

		urgency := 1
		if req.Urgency != nil {
			urgency = *req.Urgency
		}

		var kinds []catalog.ResourceKind
		for _, token := range req.Accessibility {
			if kind, ok := catalog.ParseResourceKind(token); ok {
				kinds = append(kinds, kind)
			}
		}

		label := req.Label
		if label == "" {
			label = req.Name
		}

		patients = append(patients, optimizer.Patient{
			Specialty:     specialty,
			Modality:      modality,
			Period:        period,
			Urgency:       triage.ClampUrgency(urgency),
			Accessibility: kinds,
		})
		meta = append(meta, batchMeta{PatientID: req.PatientID, Label: label})
	}
	return patients, meta, nil
}

// baselines are the ledger remainders for date, or the catalog totals when
// no date is given.
func (e *Engine) baselines(ctx context.Context, date string, slots []string) (map[string]int, map[string]map[catalog.ResourceKind]int, error) {
	c := e.Catalog()
	capacity := make(map[string]int, len(slots))
	resources := make(map[string]map[catalog.ResourceKind]int, len(slots))

	for _, slot := range slots {
		if date == "" {
			capacity[slot] = c.Capacity(slot)
			resources[slot] = c.Quota(slot)
			continue
		}
		left, err := e.avail.RemainingCapacity(ctx, date, slot)
		if err != nil {
			return nil, nil, err
		}
		capacity[slot] = max(0, left)
		pool, err := e.avail.RemainingResources(ctx, date, slot)
		if err != nil {
			return nil, nil, err
		}
		resources[slot] = pool
	}
	return capacity, resources, nil
}

func (e *Engine) runOptions(req OptimizeRequest) optimizer.Options {
	opts := e.opts.Optimizer
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = optimizer.DefaultMaxIterations
	}
	if opts.Restarts <= 0 {
		opts.Restarts = optimizer.DefaultRestarts
	}
	if req.MaxIterations != nil {
		opts.MaxIterations = max(1, *req.MaxIterations)
	}
	if req.Restarts != nil {
		opts.Restarts = max(1, *req.Restarts)
	}
	if req.Seed != nil {
		s := *req.Seed
		opts.Seed = &s
	}
	if req.Randomize {
		opts.Seed = nil
	}
	return opts
}

type fingerprintInput struct {
	Patients   []optimizer.Patient `json:"patients"`
	Meta       []batchMeta         `json:"meta"`
	Slots      []string            `json:"slots"`
	Date       string              `json:"date"`
	Iterations int                 `json:"iterations"`
	Restarts   int                 `json:"restarts"`
	Seed       int64               `json:"seed"`
	Weights    optimizer.Weights   `json:"weights"`
}

func fingerprint(in fingerprintInput) (string, error) {
	data, err := json.Marshal(in)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// OptimizeSchedule assigns a batch of patients to slots and practitioners.
// The result is a projection; nothing is booked.
func (e *Engine) OptimizeSchedule(ctx context.Context, req OptimizeRequest) (*OptimizeResult, error) {
	if len(req.Patients) == 0 {
		e.metrics.ObserveOptimizer("rejected", 0, 0)
		return &OptimizeResult{Optimized: false, Reason: "No patients provided."}, nil
	}

	c := e.Catalog()
	slots := candidateSlots(c, req.Slots)
	patients, meta, err := normalizeBatch(c, req.Patients, slots)
	if err != nil {
		e.metrics.ObserveOptimizer("rejected", 0, 0)
		return &OptimizeResult{Optimized: false, Reason: err.Error()}, nil
	}

	date := ""
	if strings.TrimSpace(req.Date) != "" {
		date, err = appointment.CanonicalDate(req.Date)
		if err != nil {
			e.metrics.ObserveOptimizer("rejected", 0, 0)
			return &OptimizeResult{Optimized: false, Reason: err.Error()}, nil
		}
	}

	opts := e.runOptions(req)
	weights := optimizer.DefaultWeights()

	var (
		key     string
		version int64
	)
	if opts.Seed != nil && e.cache != nil {
		key, err = fingerprint(fingerprintInput{
			Patients:   patients,
			Meta:       meta,
			Slots:      slots,
			Date:       date,
			Iterations: opts.MaxIterations,
			Restarts:   opts.Restarts,
			Seed:       *opts.Seed,
			Weights:    weights,
		})
		if err != nil {
			return nil, fmt.Errorf("fingerprint request: %w", err)
		}
		cached, v, ok := e.loadCached(ctx, key)
		if cached != nil {
			e.metrics.ObserveOptimizer("cached", 0, cached.Cost)
			return cached, nil
		}
		if !ok {
			key = ""
		}
		version = v
	}

	capacity, resources, err := e.baselines(ctx, date, slots)
	if err != nil {
		return nil, fmt.Errorf("load baselines: %w", err)
	}

	started := time.Now()
	res, err := optimizer.Run(optimizer.Problem{
		Catalog:   c,
		Patients:  patients,
		Slots:     slots,
		Capacity:  capacity,
		Resources: resources,
		Weights:   weights,
	}, opts)
	if err != nil {
		if errors.Is(err, optimizer.ErrNoPatients) || errors.Is(err, optimizer.ErrNoSlots) || errors.Is(err, optimizer.ErrNoPractitioners) {
			e.metrics.ObserveOptimizer("rejected", 0, 0)
			return &OptimizeResult{Optimized: false, Reason: err.Error()}, nil
		}
		return nil, fmt.Errorf("optimize: %w", err)
	}
	elapsed := time.Since(started)

	out := &OptimizeResult{
		Optimized:     true,
		Cost:          res.Cost,
		CapacityLeft:  res.CapacityLeft,
		ResourcesLeft: res.ResourcesLeft,
		Parameters: &OptimizeParameters{
			Slots:         slots,
			Date:          date,
			MaxIterations: opts.MaxIterations,
			Restarts:      opts.Restarts,
			Seed:          opts.Seed,
		},
	}
	for i, pl := range res.Placements {
		out.Assignments = append(out.Assignments, AssignmentResult{
			Placement: pl,
			PatientID: meta[i].PatientID,
			Label:     meta[i].Label,
		})
	}

	e.metrics.ObserveOptimizer("optimized", elapsed.Seconds(), res.Cost)
	e.logger.Info("batch optimized",
		zap.Int("patients", len(patients)),
		zap.Int("slots", len(slots)),
		zap.Int("restarts", opts.Restarts),
		zap.Int("winning_restart", res.Restart),
		zap.Float64("cost", res.Cost),
		zap.Duration("elapsed", elapsed),
	)

	if key != "" {
		e.storeCached(ctx, version, key, out)
	}
	return out, nil
}

// loadCached returns the cached result on a hit. On a miss it returns the
// ledger version the result must be stored under; ok is false when the cache
// could not be read and the run should not be stored. Cache failures never
// fail a run.
func (e *Engine) loadCached(ctx context.Context, key string) (res *OptimizeResult, version int64, ok bool) {
	data, version, hit, err := e.cache.Load(ctx, key)
	if err != nil {
		e.logger.Warn("optimizer cache load failed", zap.Error(err))
		return nil, 0, false
	}
	if !hit {
		return nil, version, true
	}
	var out OptimizeResult
	if err := json.Unmarshal(data, &out); err != nil {
		e.logger.Warn("optimizer cache entry is corrupt", zap.String("key", key), zap.Error(err))
		return nil, version, true
	}
	out.Cached = true
	return &out, version, true
}

func (e *Engine) storeCached(ctx context.Context, version int64, key string, res *OptimizeResult) {
	data, err := json.Marshal(res)
	if err != nil {
		e.logger.Warn("encode optimizer result", zap.Error(err))
		return
	}
	if err := e.cache.Store(ctx, version, key, data); err != nil {
		e.logger.Warn("optimizer cache store failed", zap.Error(err))
	}
}
