package main

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"go.uber.org/zap"

	"github.com/bedimand/atendimento-acessivel/internal/app"
	"github.com/bedimand/atendimento-acessivel/internal/appointment"
	"github.com/bedimand/atendimento-acessivel/internal/catalog"
	"github.com/bedimand/atendimento-acessivel/internal/config"
	"github.com/bedimand/atendimento-acessivel/internal/db"
	"github.com/bedimand/atendimento-acessivel/internal/triage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("config load error: " + err.Error())
	}

	logger := app.NewLogger(cfg.Env, cfg.LogLevel)
	defer func() { _ = logger.Sync() }()
	logger.Info("seed starting")

	count := 120
	if v := os.Getenv("SEED_BOOKINGS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			logger.Fatal("invalid SEED_BOOKINGS", zap.String("value", v))
		}
		count = n
	}

	ctx := context.Background()

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	pool, err := db.ConnectPostgres(connectCtx, cfg.PostgresDSN, db.PoolConfig{})
	cancel()
	if err != nil {
		logger.Fatal("connect postgres", zap.Error(err))
	}
	defer pool.Close()

	repo := appointment.NewPgRepository(pool)
	cat, err := app.LoadCatalog(ctx, repo, catalog.Default(), logger)
	if err != nil {
		logger.Fatal("load catalog", zap.Error(err))
	}

	svc := appointment.NewService(appointment.ServiceDeps{
		Repo:    repo,
		Catalog: cat,
		Logger:  logger.Named("booking"),
	})

	loc, err := time.LoadLocation(cfg.SearchTimeZone)
	if err != nil {
		logger.Fatal("load time zone", zap.Error(err))
	}

	if err := seedBookings(ctx, svc, cat, gofakeit.New(0), appointment.Today(time.Now(), loc), count, logger); err != nil {
		logger.Fatal("seed bookings", zap.Error(err))
	}

	logger.Info("seed complete")
}

func seedBookings(ctx context.Context, svc *appointment.Service, cat *catalog.Catalog, faker *gofakeit.Faker, today time.Time, count int, logger *zap.Logger) error {
	logger.Info("seeding bookings", zap.Int("count", count))

	practitioners := cat.Practitioners()
	warned := 0

	for i := 0; i < count; i++ {
		req := fakeRequest(faker, practitioners, today)

		b, err := svc.Book(ctx, req)
		if err != nil {
			return err
		}
		if len(b.Warnings) > 0 {
			warned++
		}

		if (i+1)%50 == 0 {
			logger.Info("bookings seeded", zap.Int("done", i+1), zap.Int("total", count))
		}
	}

	logger.Info("bookings seeded", zap.Int("total", count), zap.Int("with_warnings", warned))
	return nil
}

func fakeRequest(faker *gofakeit.Faker, practitioners []catalog.Practitioner, today time.Time) appointment.BookRequest {
	p := practitioners[faker.Number(0, len(practitioners)-1)]

	modality := string(catalog.ModalityInPerson)
	if p.Online && faker.Bool() {
		modality = string(catalog.ModalityOnline)
	}

	var kinds []string
	for _, kind := range catalog.ResourceKinds() {
		if faker.Number(1, 100) <= 15 {
			kinds = append(kinds, string(kind))
		}
	}

	req := appointment.BookRequest{
		Specialty:     p.Specialties[faker.Number(0, len(p.Specialties)-1)],
		Date:          appointment.FormatDate(today.AddDate(0, 0, faker.Number(0, 13))),
		Slot:          p.Slots[faker.Number(0, len(p.Slots)-1)],
		Modality:      modality,
		Accessibility: kinds,
		Practitioner:  p.Name,
	}

	if faker.Number(1, 100) <= 70 {
		req.Triage = fakeTriage(faker)
	}
	return req
}

func fakeTriage(faker *gofakeit.Faker) *triage.Record {
	rec := &triage.Record{
		Age:           faker.Number(1, 95),
		Sex:           faker.RandomString([]string{"female", "male"}),
		Pain:          faker.Number(0, 10),
		Temperature:   faker.Float64Range(35.5, 40.0),
		HeartRate:     faker.Number(55, 125),
		RespRate:      faker.Number(12, 28),
		SpO2:          faker.Number(88, 100),
		SystolicBP:    faker.Number(85, 150),
		Bleeding:      faker.RandomString([]string{triage.BleedingNone, triage.BleedingNone, triage.BleedingModerate}),
		Consciousness: triage.ConsciousnessAlert,
		Dyspnea:       faker.Number(1, 100) <= 10,
		Dehydration:   faker.Number(1, 100) <= 10,
		Comorbidities: faker.Number(0, 3),
		OnsetHours:    faker.Number(1, 96),
	}
	if rec.Sex == "female" && faker.Number(1, 100) <= 10 {
		rec.PregnancyWeeks = faker.Number(8, 40)
	}
	return rec
}
