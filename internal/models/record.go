package models

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

// HealthRecord is the persisted audit row for one successful pipeline run.
// InputHash is unique: identical raw inputs are stored once.
type HealthRecord struct {
	ID                   string          `json:"id"`
	TraceID              string          `json:"trace_id"`
	PipelineVersion      string          `json:"pipeline_version"`
	IntakeJSON           json.RawMessage `json:"intake_json"`
	StructuredOutputJSON json.RawMessage `json:"structured_output_json"`
	ReportJSON           json.RawMessage `json:"report_json"`
	ReportText           string          `json:"report_text"`
	SafetyAuditJSON      json.RawMessage `json:"safety_audit_json"`
	InputHash            string          `json:"input_hash"`
	CreatedAt            time.Time       `json:"created_at"`
}

// InputHash returns the hex SHA-256 of raw.
func InputHash(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
