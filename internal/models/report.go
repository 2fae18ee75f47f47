package models

import "time"

// ReportSections holds the narrative body of a report.
type ReportSections struct {
	Overview         string `json:"overview"`
	SymptomAnalysis  string `json:"symptom_analysis"`
	ClinicalInsights string `json:"clinical_insights"`
	RiskSummary      string `json:"risk_summary"`
	Recommendations  string `json:"recommendations"`
}

// SafetyChecks records the outcome of the safety gate on the report.
type SafetyChecks struct {
	DiagnosticCheckPassed bool     `json:"diagnostic_check_passed"`
	PHISafe               bool     `json:"phi_safe"`
	ComplianceNotes       *string  `json:"compliance_notes,omitempty"`
	Events                []string `json:"events"`
}

// ReportMetadata supports audit and reproducibility.
type ReportMetadata struct {
	GeneratedAt   time.Time `json:"generated_at"`
	ModelVersion  string    `json:"model_version"`
	PromptVersion string    `json:"prompt_version"`
	LatencyMs     *float64  `json:"latency_ms,omitempty"`
}

// Report is the guarded, schema-valid output of the pipeline.
type Report struct {
	SourceStructID string         `json:"source_struct_id,omitempty"`
	ReportSections ReportSections `json:"report_sections"`
	InputContext   *string        `json:"input_context,omitempty"`
	SafetyChecks   SafetyChecks   `json:"safety_checks"`
	ReportMetadata ReportMetadata `json:"report_metadata"`
}
