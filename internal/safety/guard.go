// Package safety implements the deterministic content guard applied to all
// model-generated text before it reaches a caller.
package safety

import (
	"strings"
	"unicode"
)

// Severity is the aggregate risk level of a verdict: low < medium < high.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

func (s Severity) rank() int {
	switch s {
	case SeverityHigh:
		return 2
	case SeverityMedium:
		return 1
	default:
		return 0
	}
}

// MaxSeverity returns the higher of a and b.
func MaxSeverity(a, b Severity) Severity {
	if a.rank() >= b.rank() {
		return a
	}
	return b
}

// ReasonType classifies a finding.
type ReasonType string

const (
	ReasonPHI          ReasonType = "PHI"
	ReasonDiagnosis    ReasonType = "MEDICAL_DIAGNOSIS"
	ReasonPrescription ReasonType = "MEDICAL_PRESCRIPTION"
	ReasonEmergency    ReasonType = "EMERGENCY"
)

// Reason is one finding of a guard pass.
type Reason struct {
	Type   ReasonType `json:"type"`
	Detail string     `json:"detail"`
	Match  *string    `json:"match"`
}

// Result is the verdict for one text unit. MaskedText is always fully
// processed, even when Allowed is false.
type Result struct {
	Allowed    bool     `json:"allowed"`
	MaskedText string   `json:"masked_text"`
	Actions    []string `json:"actions"`
	Reasons    []Reason `json:"reasons"`
	Severity   Severity `json:"severity"`
}

// Guard runs the checks in fixed order: diagnosis, prescription, emergency,
// PHI masking of the original text, then guidance injection.
func Guard(text string) Result {
	res := Result{
		Allowed:  true,
		Actions:  []string{},
		Reasons:  []Reason{},
		Severity: SeverityLow,
	}

	if _, ok := matchAny(diagnosisRules, text); ok {
		res.Allowed = false
		res.Actions = append(res.Actions, ActionBlockDiagnosis)
		res.Reasons = append(res.Reasons, Reason{Type: ReasonDiagnosis, Detail: "Diagnostic certainty detected"})
		res.Severity = SeverityHigh
	}

	if _, ok := matchAny(prescriptionRules, text); ok {
		res.Allowed = false
		res.Actions = append(res.Actions, ActionBlockPrescription)
		res.Reasons = append(res.Reasons, Reason{Type: ReasonPrescription, Detail: "Prescription or dosing detected"})
		res.Severity = SeverityHigh
	}

	hit, emergency := matchAny(emergencyRules, text)
	if emergency {
		res.Actions = append(res.Actions, ActionEmergencyGuidance)
		res.Reasons = append(res.Reasons, Reason{Type: ReasonEmergency, Detail: "Emergency or crisis signal detected", Match: &hit})
		res.Severity = SeverityHigh
	}

	masked, phiReasons := maskPHI(text)
	if len(phiReasons) > 0 {
		res.Actions = append(res.Actions, ActionMaskPHI)
		res.Reasons = append(res.Reasons, phiReasons...)
		res.Severity = MaxSeverity(res.Severity, SeverityMedium)
	}

	if emergency {
		masked = AppendGuidance(masked, EmergencyGuidance)
	}
	res.MaskedText = masked
	return res
}

// AppendGuidance appends guidance after a blank line unless text already
// contains it.
func AppendGuidance(text, guidance string) string {
	text = strings.TrimRightFunc(text, unicode.IsSpace)
	if strings.Contains(text, guidance) {
		return text
	}
	return text + "\n\n" + guidance
}

// matchAny returns the source of the first matching pattern.
func matchAny(rs []rule, text string) (string, bool) {
	for _, r := range rs {
		if r.re.MatchString(text) {
			return r.src, true
		}
	}
	return "", false
}

// maskPHI replaces strong PHI unconditionally, then names when a context hint
// is present. Each pattern runs over the output of the previous one. Matched
// values are not retained in reasons.
func maskPHI(text string) (string, []Reason) {
	masked := text
	var reasons []Reason

	for _, p := range strongPHI {
		masked, reasons = substitute(p, masked, reasons)
	}

	lower := strings.ToLower(masked)
	for _, hint := range nameContextHints {
		if strings.Contains(lower, hint) {
			masked, reasons = substitute(weakName, masked, reasons)
			break
		}
	}
	return masked, reasons
}

func substitute(p phiRule, text string, reasons []Reason) (string, []Reason) {
	n := len(p.re.FindAllStringIndex(text, -1))
	if n == 0 {
		return text, reasons
	}
	for i := 0; i < n; i++ {
		reasons = append(reasons, Reason{Type: ReasonPHI, Detail: p.kind + " detected"})
	}
	return p.re.ReplaceAllLiteralString(text, placeholder(p.kind)), reasons
}
