// Package store persists health records in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/raphaelgruber/healthrag-go/internal/models"
)

var (
	// ErrDuplicateInput is returned when a record with the same input hash exists.
	ErrDuplicateInput = errors.New("duplicate input hash")

	// ErrNotFound is returned when no record matches.
	ErrNotFound = errors.New("record not found")
)

const schema = `
CREATE TABLE IF NOT EXISTS health_records (
	id                     TEXT PRIMARY KEY,
	trace_id               TEXT NOT NULL,
	pipeline_version       TEXT NOT NULL,
	intake_json            TEXT NOT NULL,
	structured_output_json TEXT NOT NULL,
	report_json            TEXT NOT NULL,
	report_text            TEXT NOT NULL,
	safety_audit_json      TEXT NOT NULL,
	input_hash             TEXT NOT NULL UNIQUE,
	created_at             TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_health_records_trace_id ON health_records(trace_id);
`

const selectColumns = `id, trace_id, pipeline_version, intake_json, structured_output_json,
	report_json, report_text, safety_audit_json, input_hash, created_at`

// SQLiteStore implements the pipeline recorder on SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// Open opens or creates the database at path and applies the schema.
// ":memory:" opens a private in-memory database.
func Open(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection keeps in-memory databases shared and serializes writes.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveRecord inserts rec. A second record with the same input hash is
// rejected with ErrDuplicateInput and the first is left untouched.
func (s *SQLiteStore) SaveRecord(ctx context.Context, rec *models.HealthRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO health_records (`+selectColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.TraceID, rec.PipelineVersion,
		string(rec.IntakeJSON), string(rec.StructuredOutputJSON), string(rec.ReportJSON),
		rec.ReportText, string(rec.SafetyAuditJSON), rec.InputHash,
		rec.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("%w: %s", ErrDuplicateInput, rec.InputHash)
		}
		return fmt.Errorf("insert health record: %w", err)
	}
	return nil
}

// GetRecord returns the record with the given id.
func (s *SQLiteStore) GetRecord(ctx context.Context, id string) (*models.HealthRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM health_records WHERE id = ?`, id)
	return scanRecord(row)
}

// GetByInputHash returns the record stored for an input hash.
func (s *SQLiteStore) GetByInputHash(ctx context.Context, hash string) (*models.HealthRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM health_records WHERE input_hash = ?`, hash)
	return scanRecord(row)
}

// ListRecords returns up to limit records, newest first.
func (s *SQLiteStore) ListRecords(ctx context.Context, limit int) ([]models.HealthRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM health_records ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list health records: %w", err)
	}
	defer rows.Close()

	var out []models.HealthRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// Count returns the number of stored records.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM health_records`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count health records: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*models.HealthRecord, error) {
	var (
		rec                                   models.HealthRecord
		intakeJSON, structured, report, audit string
		createdAt                             string
	)
	err := row.Scan(&rec.ID, &rec.TraceID, &rec.PipelineVersion,
		&intakeJSON, &structured, &report, &rec.ReportText, &audit,
		&rec.InputHash, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan health record: %w", err)
	}

	rec.IntakeJSON = []byte(intakeJSON)
	rec.StructuredOutputJSON = []byte(structured)
	rec.ReportJSON = []byte(report)
	rec.SafetyAuditJSON = []byte(audit)
	rec.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	return &rec, nil
}
