package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"go.uber.org/zap"

	"github.com/bedimand/atendimento-acessivel/internal/app"
	"github.com/bedimand/atendimento-acessivel/internal/catalog"
	"github.com/bedimand/atendimento-acessivel/internal/scheduling"
)

type SimConfig struct {
	APIBaseURL    string
	Duration      time.Duration
	Workers       int
	BookingRatio  float64
	CancelRatio   float64
	OptimizeRatio float64
	ReadRatio     float64
}

// BookingPool tracks booking ids created during the run.
type BookingPool struct {
	mu  sync.Mutex
	ids []int64
}

func (bp *BookingPool) Add(id int64) {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	bp.ids = append(bp.ids, id)
}

// Take removes a random id so each booking is cancelled at most once.
func (bp *BookingPool) Take(faker *gofakeit.Faker) (int64, bool) {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	if len(bp.ids) == 0 {
		return 0, false
	}
	idx := faker.Number(0, len(bp.ids)-1)
	id := bp.ids[idx]
	bp.ids[idx] = bp.ids[len(bp.ids)-1]
	bp.ids = bp.ids[:len(bp.ids)-1]
	return id, true
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, success bool, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	if success {
		atomic.AddInt64(&om.Success, 1)
	} else if conflict {
		atomic.AddInt64(&om.Conflict, 1)
	} else {
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, p50, p95, max time.Duration) {
	om.mu.Lock()
	latencies := append([]time.Duration(nil), om.Latencies...)
	om.mu.Unlock()

	if len(latencies) == 0 {
		return 0, 0, 0, 0
	}
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}
	return sum / time.Duration(len(latencies)),
		latencies[len(latencies)*50/100],
		latencies[min(len(latencies)*95/100, len(latencies)-1)],
		latencies[len(latencies)-1]
}

type Metrics struct {
	Search   OperationMetrics
	Booking  OperationMetrics
	Cancel   OperationMetrics
	Optimize OperationMetrics
	Read     OperationMetrics
}

type Simulator struct {
	config   SimConfig
	catalog  *catalog.Catalog
	bookings BookingPool
	client   *http.Client
	metrics  Metrics
	logger   *zap.Logger
}

func main() {
	logger := app.NewLogger(getEnv("APP_ENV", "dev"), getEnv("LOG_LEVEL", "info"))
	defer func() { _ = logger.Sync() }()

	cfg := loadConfig()
	if err := validateConfig(cfg); err != nil {
		logger.Fatal("invalid config", zap.Error(err))
	}

	logger.Info("simulator starting",
		zap.String("api", cfg.APIBaseURL),
		zap.Duration("duration", cfg.Duration),
		zap.Int("workers", cfg.Workers),
		zap.Float64("booking", cfg.BookingRatio),
		zap.Float64("cancel", cfg.CancelRatio),
		zap.Float64("optimize", cfg.OptimizeRatio),
		zap.Float64("read", cfg.ReadRatio),
	)

	sim := &Simulator{
		config:  cfg,
		catalog: catalog.Default(),
		client:  &http.Client{Timeout: 10 * time.Second},
		logger:  logger,
	}

	sim.Run()
	sim.PrintReport()
}

func loadConfig() SimConfig {
	cfg := SimConfig{
		APIBaseURL:    getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:      getDuration("SIM_DURATION", 30*time.Second),
		Workers:       getInt("SIM_WORKERS", 10),
		BookingRatio:  getFloat("SIM_BOOKING_RATIO", 0.4),
		CancelRatio:   getFloat("SIM_CANCEL_RATIO", 0.15),
		OptimizeRatio: getFloat("SIM_OPTIMIZE_RATIO", 0.1),
		ReadRatio:     getFloat("SIM_READ_RATIO", 0.35),
	}

	total := cfg.BookingRatio + cfg.CancelRatio + cfg.OptimizeRatio + cfg.ReadRatio
	if total > 0 {
		cfg.BookingRatio /= total
		cfg.CancelRatio /= total
		cfg.OptimizeRatio /= total
		cfg.ReadRatio /= total
	}
	return cfg
}

func validateConfig(cfg SimConfig) error {
	if cfg.Workers <= 0 {
		return errors.New("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return errors.New("SIM_DURATION must be > 0")
	}
	return nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	s.logger.Info("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	faker := gofakeit.New(uint64(time.Now().UnixNano()) + uint64(workerID))

	for ctx.Err() == nil {
		r := faker.Float64()
		switch {
		case r < s.config.BookingRatio:
			s.doBooking(ctx, faker)
		case r < s.config.BookingRatio+s.config.CancelRatio:
			s.doCancel(ctx, faker)
		case r < s.config.BookingRatio+s.config.CancelRatio+s.config.OptimizeRatio:
			s.doOptimize(ctx, faker)
		default:
			s.doRead(ctx, faker)
		}
	}
}

// post sends body as JSON and decodes the response into out when non-nil.
func (s *Simulator) post(ctx context.Context, path string, body, out any) (int, time.Duration, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.APIBaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return 0, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	return s.do(req, out)
}

func (s *Simulator) do(req *http.Request, out any) (int, time.Duration, error) {
	start := time.Now()
	resp, err := s.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		return 0, latency, err
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, latency, err
		}
	}
	return resp.StatusCode, latency, nil
}

func (s *Simulator) randomNeeds(faker *gofakeit.Faker) []string {
	var kinds []string
	for _, kind := range catalog.ResourceKinds() {
		if faker.Number(1, 100) <= 20 {
			kinds = append(kinds, string(kind))
		}
	}
	return kinds
}

func (s *Simulator) randomSpecialty(faker *gofakeit.Faker) string {
	specialties := s.catalog.Specialties()
	return specialties[faker.Number(0, len(specialties)-1)]
}

func (s *Simulator) randomSlot(faker *gofakeit.Faker) string {
	slots := s.catalog.SlotLabels()
	return slots[faker.Number(0, len(slots)-1)]
}

// doBooking searches for a slot and books the match.
func (s *Simulator) doBooking(ctx context.Context, faker *gofakeit.Faker) {
	search := scheduling.SearchRequest{
		Specialty:     s.randomSpecialty(faker),
		Modality:      faker.RandomString([]string{"in-person", "online"}),
		Accessibility: s.randomNeeds(faker),
		PreferredSlot: s.randomSlot(faker),
	}

	var found scheduling.SlotResult
	status, latency, err := s.post(ctx, "/tools/list_available_slots", search, &found)
	s.metrics.Search.Record(latency, err == nil && status == http.StatusOK, false)
	if err != nil || !found.Available {
		return
	}

	urgency := faker.Number(1, 5)
	var booked scheduling.BookingResult
	status, latency, err = s.post(ctx, "/tools/book_appointment", scheduling.BookingRequest{
		Specialty:     search.Specialty,
		Date:          found.Date,
		Slot:          found.Slot,
		Modality:      search.Modality,
		Urgency:       &urgency,
		Accessibility: search.Accessibility,
		Practitioner:  found.Practitioner,
	}, &booked)

	success := err == nil && status == http.StatusCreated && booked.Booked
	s.metrics.Booking.Record(latency, success, status == http.StatusConflict)
	if success && booked.Booking != nil {
		s.bookings.Add(booked.ID)
	}
}

func (s *Simulator) doCancel(ctx context.Context, faker *gofakeit.Faker) {
	id, ok := s.bookings.Take(faker)
	if !ok {
		return
	}

	var res struct {
		Cancelled bool `json:"cancelled"`
	}
	status, latency, err := s.post(ctx, "/tools/cancel_booking", map[string]int64{"booking_id": id}, &res)
	s.metrics.Cancel.Record(latency, err == nil && status == http.StatusOK && res.Cancelled, false)
}

func (s *Simulator) doOptimize(ctx context.Context, faker *gofakeit.Faker) {
	n := faker.Number(2, 8)
	req := scheduling.OptimizeRequest{}
	for i := 0; i < n; i++ {
		urgency := faker.Number(1, 5)
		req.Patients = append(req.Patients, scheduling.BatchPatient{
			Name:          faker.Name(),
			Specialty:     s.randomSpecialty(faker),
			Modality:      faker.RandomString([]string{"in-person", "online"}),
			PreferredSlot: s.randomSlot(faker),
			Urgency:       &urgency,
			Accessibility: s.randomNeeds(faker),
		})
	}

	var res scheduling.OptimizeResult
	status, latency, err := s.post(ctx, "/tools/optimize_schedule", req, &res)
	s.metrics.Optimize.Record(latency, err == nil && status == http.StatusOK && res.Optimized, false)
}

func (s *Simulator) doRead(ctx context.Context, faker *gofakeit.Faker) {
	var (
		status  int
		latency time.Duration
		err     error
	)
	if faker.Bool() {
		var req *http.Request
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, s.config.APIBaseURL+"/availability?days_ahead=7", nil)
		if err != nil {
			return
		}
		status, latency, err = s.do(req, nil)
	} else {
		status, latency, err = s.post(ctx, "/tools/list_bookings", map[string]string{}, nil)
	}
	s.metrics.Read.Record(latency, err == nil && status == http.StatusOK, false)
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Println()

	printOperationReport("Search", &s.metrics.Search)
	printOperationReport("Booking", &s.metrics.Booking)
	printOperationReport("Cancel", &s.metrics.Cancel)
	printOperationReport("Optimize", &s.metrics.Optimize)
	printOperationReport("Read", &s.metrics.Read)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)

	avg, p50, p95, max := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, float64(failed)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s p50=%s p95=%s max=%s\n",
		avg.Round(time.Millisecond), p50.Round(time.Millisecond),
		p95.Round(time.Millisecond), max.Round(time.Millisecond))
	fmt.Println()
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
