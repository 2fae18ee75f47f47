package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/raphaelgruber/healthrag-go/internal/models"
)

// recordRow is the stored shape of a health record. The JSON columns are
// stored as objects so they stay queryable.
type recordRow struct {
	ID               surrealmodels.RecordID `json:"id"`
	TraceID          string                 `json:"trace_id"`
	PipelineVersion  string                 `json:"pipeline_version"`
	Intake           map[string]any         `json:"intake_json"`
	StructuredOutput map[string]any         `json:"structured_output_json"`
	Report           map[string]any         `json:"report_json"`
	ReportText       string                 `json:"report_text"`
	SafetyAudit      map[string]any         `json:"safety_audit_json"`
	InputHash        string                 `json:"input_hash"`
	CreatedAt        time.Time              `json:"created_at"`
}

// SaveRecord stores rec. A record whose input hash is already stored fails
// with ErrDuplicateInput.
func (c *Client) SaveRecord(ctx context.Context, rec *models.HealthRecord) error {
	vars := map[string]any{
		"id":               rec.ID,
		"trace_id":         rec.TraceID,
		"pipeline_version": rec.PipelineVersion,
		"report_text":      rec.ReportText,
		"input_hash":       rec.InputHash,
		"created_at":       rec.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	for name, raw := range map[string]json.RawMessage{
		"intake":     rec.IntakeJSON,
		"structured": rec.StructuredOutputJSON,
		"report":     rec.ReportJSON,
		"audit":      rec.SafetyAuditJSON,
	} {
		obj, err := decodeObject(raw)
		if err != nil {
			return fmt.Errorf("save record: %s: %w", name, err)
		}
		vars[name] = obj
	}

	_, err := surrealdb.Query[any](ctx, c.db, `
		CREATE type::record("health_record", $id) SET
			trace_id = $trace_id,
			pipeline_version = $pipeline_version,
			intake_json = $intake,
			structured_output_json = $structured,
			report_json = $report,
			report_text = $report_text,
			safety_audit_json = $audit,
			input_hash = $input_hash,
			created_at = type::datetime($created_at)
	`, vars)
	if err != nil {
		return fmt.Errorf("save record: %w", wrapQueryError(err))
	}
	return nil
}

// GetRecord returns the record with the given id.
func (c *Client) GetRecord(ctx context.Context, id string) (*models.HealthRecord, error) {
	return c.selectOne(ctx, `SELECT * FROM type::record("health_record", $id)`, map[string]any{"id": id})
}

// GetByInputHash returns the record stored for an input hash.
func (c *Client) GetByInputHash(ctx context.Context, hash string) (*models.HealthRecord, error) {
	return c.selectOne(ctx, `SELECT * FROM health_record WHERE input_hash = $hash LIMIT 1`, map[string]any{"hash": hash})
}

// ListRecords returns up to limit records, newest first.
func (c *Client) ListRecords(ctx context.Context, limit int) ([]models.HealthRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	results, err := surrealdb.Query[[]recordRow](ctx, c.db,
		`SELECT * FROM health_record ORDER BY created_at DESC LIMIT $limit`, map[string]any{"limit": limit})
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	if results == nil || len(*results) == 0 {
		return nil, nil
	}

	rows := (*results)[0].Result
	out := make([]models.HealthRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := row.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, nil
}

// Count returns the number of stored records.
func (c *Client) Count(ctx context.Context) (int, error) {
	results, err := surrealdb.Query[[]struct {
		Count int `json:"count"`
	}](ctx, c.db, `SELECT count() AS count FROM health_record GROUP ALL`, nil)
	if err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return 0, nil
	}
	return (*results)[0].Result[0].Count, nil
}

func (c *Client) selectOne(ctx context.Context, sql string, vars map[string]any) (*models.HealthRecord, error) {
	results, err := surrealdb.Query[[]recordRow](ctx, c.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("get record: %w", err)
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, ErrNotFound
	}
	return (*results)[0].Result[0].toModel()
}

func (r recordRow) toModel() (*models.HealthRecord, error) {
	id, err := models.RecordIDString(r.ID)
	if err != nil {
		return nil, err
	}

	rec := &models.HealthRecord{
		ID:              id,
		TraceID:         r.TraceID,
		PipelineVersion: r.PipelineVersion,
		ReportText:      r.ReportText,
		InputHash:       r.InputHash,
		CreatedAt:       r.CreatedAt,
	}
	for _, col := range []struct {
		dst *json.RawMessage
		src map[string]any
	}{
		{&rec.IntakeJSON, r.Intake},
		{&rec.StructuredOutputJSON, r.StructuredOutput},
		{&rec.ReportJSON, r.Report},
		{&rec.SafetyAuditJSON, r.SafetyAudit},
	} {
		b, err := json.Marshal(col.src)
		if err != nil {
			return nil, fmt.Errorf("encode stored column: %w", err)
		}
		*col.dst = b
	}
	return rec, nil
}

func decodeObject(raw json.RawMessage) (map[string]any, error) {
	if len(raw) == 0 {
		return map[string]any{}, nil
	}
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, err
	}
	if obj == nil {
		obj = map[string]any{}
	}
	return obj, nil
}
