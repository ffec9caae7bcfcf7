package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bedimand/atendimento-acessivel/internal/catalog"
	"github.com/bedimand/atendimento-acessivel/internal/triage"
)

// pgxDB is the subset of pgxpool.Pool the repository needs.
type pgxDB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PgRepository struct {
	db pgxDB
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	if pool == nil {
		panic("appointment: pgx pool required")
	}
	return &PgRepository{db: pool}
}

// NewPgRepositoryWithDB allows injecting a mock database for tests.
func NewPgRepositoryWithDB(db pgxDB) *PgRepository {
	return &PgRepository{db: db}
}

// Helpers

func nullInt(v int) *int {
	if v == 0 {
		return nil
	}
	return &v
}

func nullFloat(v float64) *float64 {
	if v == 0 {
		return nil
	}
	return &v
}

func nullString(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func splitKinds(csv string) []catalog.ResourceKind {
	kinds := []catalog.ResourceKind{}
	for _, part := range strings.Split(csv, ",") {
		if part = strings.TrimSpace(part); part != "" {
			kinds = append(kinds, catalog.ResourceKind(part))
		}
	}
	return kinds
}

func insertEvent(ctx context.Context, tx pgx.Tx, eventType string, bookingID int64, payload map[string]any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO event_logs (event_type, booking_id, payload)
		VALUES ($1, $2, $3)
	`, eventType, bookingID, data)
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}
	return nil
}

func insertTriage(ctx context.Context, tx pgx.Tx, patientID int64, t triage.Record) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO triage (patient_id, age, sex, pain, temperature, heart_rate, resp_rate, spo2, systolic_bp,
		                    bleeding, consciousness, chest_pain, dyspnea, dehydration, comorbidities,
		                    pregnancy_weeks, onset_hours, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`,
		patientID,
		nullInt(t.Age),
		nullString(t.Sex),
		nullInt(t.Pain),
		nullFloat(t.Temperature),
		nullInt(t.HeartRate),
		nullInt(t.RespRate),
		nullInt(t.SpO2),
		nullInt(t.SystolicBP),
		nullString(t.Bleeding),
		nullString(t.Consciousness),
		t.ChestPain,
		t.Dyspnea,
		t.Dehydration,
		nullInt(t.Comorbidities),
		nullInt(t.PregnancyWeeks),
		nullInt(t.OnsetHours),
		nullString(t.Notes),
	)
	if err != nil {
		return fmt.Errorf("insert triage: %w", err)
	}
	return nil
}

// Interface methods

func (r *PgRepository) CreateBooking(ctx context.Context, nb NewBooking) (*Booking, error) {
	warnings := nb.Warnings
	if warnings == nil {
		warnings = map[string]string{}
	}
	warningsJSON, err := json.Marshal(warnings)
	if err != nil {
		return nil, fmt.Errorf("marshal warnings: %w", err)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	p := nb.Patient
	var patientID int64
	err = tx.QueryRow(ctx, `
		INSERT INTO patients (appointment_date, specialty, period, modality, urgency)
		VALUES ($1::date, $2, $3, $4, $5)
		RETURNING id
	`, p.Date, p.Specialty, string(p.Period), string(p.Modality), p.Urgency).Scan(&patientID)
	if err != nil {
		return nil, fmt.Errorf("insert patient: %w", err)
	}

	for _, kind := range p.Accessibility {
		_, err := tx.Exec(ctx, `
			INSERT INTO patient_accessibility (patient_id, kind)
			VALUES ($1, $2)
		`, patientID, string(kind))
		if err != nil {
			return nil, fmt.Errorf("insert accessibility request: %w", err)
		}
	}

	if nb.Triage != nil {
		if err := insertTriage(ctx, tx, patientID, *nb.Triage); err != nil {
			return nil, err
		}
	}

	b := Booking{
		PatientID:    patientID,
		Date:         p.Date,
		Slot:         nb.Slot,
		Practitioner: nb.Practitioner,
		Warnings:     warnings,
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO bookings (patient_id, appointment_date, slot, practitioner, warnings)
		VALUES ($1, $2::date, $3, $4, $5)
		RETURNING id, created_at
	`, patientID, p.Date, nb.Slot, nb.Practitioner, warningsJSON).Scan(&b.ID, &b.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert booking: %w", err)
	}

	err = insertEvent(ctx, tx, EventBookingCreated, b.ID, map[string]any{
		"patient_id":   patientID,
		"date":         p.Date,
		"slot":         nb.Slot,
		"practitioner": nb.Practitioner,
		"warnings":     warnings,
	})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit booking: %w", err)
	}

	return &b, nil
}

func (r *PgRepository) DeleteBooking(ctx context.Context, id int64) (*CancelledBooking, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var c CancelledBooking
	err = tx.QueryRow(ctx, `
		SELECT b.id, b.patient_id, b.appointment_date::text, b.slot, b.practitioner, p.specialty
		FROM bookings b
		JOIN patients p ON p.id = b.patient_id
		WHERE b.id = $1
		FOR UPDATE OF b
	`, id).Scan(&c.BookingID, &c.PatientID, &c.Date, &c.Slot, &c.Practitioner, &c.Specialty)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, fmt.Errorf("load booking: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM bookings WHERE id = $1`, id); err != nil {
		return nil, fmt.Errorf("delete booking: %w", err)
	}

	err = insertEvent(ctx, tx, EventBookingCancelled, c.BookingID, map[string]any{
		"patient_id":   c.PatientID,
		"date":         c.Date,
		"slot":         c.Slot,
		"practitioner": c.Practitioner,
	})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit cancellation: %w", err)
	}

	return &c, nil
}

func (r *PgRepository) ListBookings(ctx context.Context, f BookingFilter) ([]BookingDetail, error) {
	query := `
		SELECT b.id, b.patient_id, b.appointment_date::text, b.slot, b.practitioner, b.warnings, b.created_at,
		       p.specialty, p.period, p.modality, p.urgency,
		       COALESCE(string_agg(pa.kind, ',' ORDER BY pa.kind), '') AS kinds
		FROM bookings b
		JOIN patients p ON p.id = b.patient_id
		LEFT JOIN patient_accessibility pa ON pa.patient_id = p.id
		WHERE 1=1`
	var args []any
	if f.Date != "" {
		args = append(args, f.Date)
		query += fmt.Sprintf(" AND b.appointment_date = $%d::date", len(args))
	}
	if f.Slot != "" {
		args = append(args, f.Slot)
		query += fmt.Sprintf(" AND b.slot = $%d", len(args))
	}
	query += `
		GROUP BY b.id, p.id
		ORDER BY b.created_at DESC, b.id DESC`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	defer rows.Close()

	result := []BookingDetail{}
	for rows.Next() {
		var (
			d        BookingDetail
			warnings []byte
			period   string
			modality string
			kinds    string
		)
		err := rows.Scan(
			&d.ID,
			&d.PatientID,
			&d.Date,
			&d.Slot,
			&d.Practitioner,
			&warnings,
			&d.CreatedAt,
			&d.Specialty,
			&period,
			&modality,
			&d.Urgency,
			&kinds,
		)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		d.Warnings = map[string]string{}
		if len(warnings) > 0 {
			if err := json.Unmarshal(warnings, &d.Warnings); err != nil {
				return nil, fmt.Errorf("decode warnings of booking %d: %w", d.ID, err)
			}
		}
		d.Period = catalog.Period(period)
		d.Modality = catalog.Modality(modality)
		d.Accessibility = splitKinds(kinds)
		result = append(result, d)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) GetPatient(ctx context.Context, id int64) (*Patient, error) {
	var (
		p        Patient
		period   string
		modality string
		kinds    string
	)
	err := r.db.QueryRow(ctx, `
		SELECT p.id, p.appointment_date::text, p.specialty, p.period, p.modality, p.urgency,
		       COALESCE(string_agg(pa.kind, ',' ORDER BY pa.kind), '') AS kinds
		FROM patients p
		LEFT JOIN patient_accessibility pa ON pa.patient_id = p.id
		WHERE p.id = $1
		GROUP BY p.id
	`, id).Scan(&p.ID, &p.Date, &p.Specialty, &period, &modality, &p.Urgency, &kinds)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, fmt.Errorf("load patient: %w", err)
	}

	p.Period = catalog.Period(period)
	p.Modality = catalog.Modality(modality)
	p.Accessibility = splitKinds(kinds)
	return &p, nil
}

func (r *PgRepository) CountBookings(ctx context.Context, date, slot string) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM bookings WHERE appointment_date = $1::date AND slot = $2
	`, date, slot).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count bookings: %w", err)
	}
	return n, nil
}

func (r *PgRepository) CountResourceUsage(ctx context.Context, date, slot string) (map[catalog.ResourceKind]int, error) {
	rows, err := r.db.Query(ctx, `
		SELECT pa.kind, COUNT(*)
		FROM bookings b
		JOIN patient_accessibility pa ON pa.patient_id = b.patient_id
		WHERE b.appointment_date = $1::date AND b.slot = $2
		GROUP BY pa.kind
	`, date, slot)
	if err != nil {
		return nil, fmt.Errorf("count resource usage: %w", err)
	}
	defer rows.Close()

	used := map[catalog.ResourceKind]int{}
	for rows.Next() {
		var (
			kind string
			n    int
		)
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, fmt.Errorf("scan resource usage: %w", err)
		}
		used[catalog.ResourceKind(kind)] = n
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return used, nil
}

func (r *PgRepository) CountPractitionerBookings(ctx context.Context, practitioner, date, slot string) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM bookings WHERE practitioner = $1 AND appointment_date = $2::date AND slot = $3
	`, practitioner, date, slot).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count practitioner bookings: %w", err)
	}
	return n, nil
}

func (r *PgRepository) LoadSlotOverrides(ctx context.Context) (map[string]int, map[string]map[catalog.ResourceKind]int, error) {
	capacity := map[string]int{}
	rows, err := r.db.Query(ctx, `SELECT slot, capacity FROM slot_capacity`)
	if err != nil {
		return nil, nil, fmt.Errorf("load capacity overrides: %w", err)
	}
	for rows.Next() {
		var (
			slot string
			n    int
		)
		if err := rows.Scan(&slot, &n); err != nil {
			rows.Close()
			return nil, nil, fmt.Errorf("scan capacity override: %w", err)
		}
		capacity[slot] = n
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	quotas := map[string]map[catalog.ResourceKind]int{}
	rows, err = r.db.Query(ctx, `SELECT slot, kind, quota FROM slot_resources`)
	if err != nil {
		return nil, nil, fmt.Errorf("load resource quotas: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			slot, kind string
			n          int
		)
		if err := rows.Scan(&slot, &kind, &n); err != nil {
			return nil, nil, fmt.Errorf("scan resource quota: %w", err)
		}
		if quotas[slot] == nil {
			quotas[slot] = map[catalog.ResourceKind]int{}
		}
		quotas[slot][catalog.ResourceKind(kind)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	return capacity, quotas, nil
}
