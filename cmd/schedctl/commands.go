package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bedimand/atendimento-acessivel/internal/app"
	"github.com/bedimand/atendimento-acessivel/internal/appointment"
	"github.com/bedimand/atendimento-acessivel/internal/catalog"
	"github.com/bedimand/atendimento-acessivel/internal/config"
	"github.com/bedimand/atendimento-acessivel/internal/db"
	"github.com/bedimand/atendimento-acessivel/internal/scheduling"
	"github.com/bedimand/atendimento-acessivel/internal/triage"
)

// readInput decodes JSON from the --file flag, or stdin when it is "-".
func readInput(cmd *cobra.Command, dst any) error {
	path, _ := cmd.Flags().GetString("file")

	var r io.Reader = cmd.InOrStdin()
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		r = f
	}

	if err := json.NewDecoder(r).Decode(dst); err != nil {
		return fmt.Errorf("decode input: %w", err)
	}
	return nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func triageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "triage",
		Short: "Score a triage record read as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			var rec triage.Record
			if err := readInput(cmd, &rec); err != nil {
				return err
			}
			return printJSON(cmd, scheduling.TriageResult{Level: triage.Score(rec)})
		},
	}
	cmd.Flags().StringP("file", "f", "-", "input file, - for stdin")
	return cmd
}

// optimizeCmd runs a batch against catalog baselines with an empty
// in-memory ledger.
func optimizeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "optimize",
		Short: "Optimize a batch of patients read as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			var req scheduling.OptimizeRequest
			if err := readInput(cmd, &req); err != nil {
				return err
			}

			flags := cmd.Flags()
			if flags.Changed("seed") {
				seed, _ := flags.GetInt64("seed")
				req.Seed = &seed
			}
			if flags.Changed("restarts") {
				n, _ := flags.GetInt("restarts")
				req.Restarts = &n
			}
			if flags.Changed("iterations") {
				n, _ := flags.GetInt("iterations")
				req.MaxIterations = &n
			}
			req.Date = ""

			svc := appointment.NewService(appointment.ServiceDeps{
				Repo:    appointment.NewInMemoryRepository(),
				Catalog: catalog.Default(),
			})
			engine := scheduling.NewEngine(scheduling.Deps{
				Service: svc,
				Options: scheduling.DefaultEngineOptions(),
			})

			res, err := engine.OptimizeSchedule(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		},
	}
	cmd.Flags().StringP("file", "f", "-", "input file, - for stdin")
	cmd.Flags().Int64("seed", 0, "base seed, overrides the request")
	cmd.Flags().Int("restarts", 0, "number of restarts, overrides the request")
	cmd.Flags().Int("iterations", 0, "iterations per restart, overrides the request")
	return cmd
}

type slotView struct {
	Label    string                       `json:"label"`
	Period   catalog.Period               `json:"period"`
	Peak     bool                         `json:"peak"`
	Capacity int                          `json:"capacity"`
	Quota    map[catalog.ResourceKind]int `json:"resources"`
}

type practitionerView struct {
	Name        string   `json:"name"`
	Specialties []string `json:"specialties"`
	Online      bool     `json:"online"`
	Slots       []string `json:"slots"`
}

type catalogView struct {
	Specialties   []string           `json:"specialties"`
	Slots         []slotView         `json:"slots"`
	Practitioners []practitionerView `json:"practitioners"`
}

func catalogCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "catalog",
		Short: "Print the built-in slot and practitioner catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := catalog.Default()

			view := catalogView{Specialties: c.Specialties()}
			for _, s := range c.Slots() {
				view.Slots = append(view.Slots, slotView{
					Label:    s.Label,
					Period:   s.Period,
					Peak:     s.Peak,
					Capacity: c.Capacity(s.Label),
					Quota:    c.Quota(s.Label),
				})
			}
			for _, p := range c.Practitioners() {
				view.Practitioners = append(view.Practitioners, practitionerView{
					Name:        p.Name,
					Specialties: p.Specialties,
					Online:      p.Online,
					Slots:       p.Slots,
				})
			}
			return printJSON(cmd, view)
		},
	}
}

func withMigrator(cmd *cobra.Command, fn func(ctx context.Context, m *app.Migrator, logger *zap.Logger) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := app.NewLogger(cfg.Env, cfg.LogLevel)
	defer func() { _ = logger.Sync() }()

	ctx := cmd.Context()
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	pool, err := db.ConnectPostgres(connectCtx, cfg.PostgresDSN, db.PoolConfig{MaxConns: 2})
	cancel()
	if err != nil {
		return err
	}
	defer pool.Close()

	migrator, err := app.NewMigrator(pool, db.Migrations, db.MigrationsDir, logger)
	if err != nil {
		return err
	}
	defer migrator.Close()

	return fn(ctx, migrator, logger)
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the ledger schema",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, func(ctx context.Context, m *app.Migrator, _ *zap.Logger) error {
				return m.Up(ctx)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, func(ctx context.Context, m *app.Migrator, logger *zap.Logger) error {
				if err := m.Down(ctx); err != nil {
					return err
				}
				logger.Info("migration rolled back")
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, func(ctx context.Context, m *app.Migrator, _ *zap.Logger) error {
				v, err := m.Version(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), v)
				return nil
			})
		},
	})

	return cmd
}
