package safety

import "regexp"

// Rules are the safety constraints injected into generation prompts.
var Rules = []string{
	"Do NOT provide medical diagnoses or clinical certainty.",
	"Do NOT prescribe medications, dosing, or tell users to start/stop drugs.",
	"Do NOT include PHI (names, dates, addresses, identifiers). Mask any PHI.",
	"Use general wellness / educational language only.",
	"If emergency symptoms are present, advise seeking urgent care.",
}

// EmergencyGuidance is appended to any text that carries an emergency signal.
const EmergencyGuidance = "If you are experiencing severe or rapidly worsening symptoms, or you might be in danger, " +
	"please seek urgent medical care immediately. If you are in the U.S., call 911. " +
	"If you are outside the U.S., contact your local emergency number or a trusted local crisis service."

// Action names recorded on a Result.
const (
	ActionBlockDiagnosis    = "block_diagnosis"
	ActionBlockPrescription = "block_prescription"
	ActionEmergencyGuidance = "add_emergency_guidance"
	ActionMaskPHI           = "mask_phi"
)

type rule struct {
	src string
	re  *regexp.Regexp
}

func rules(flags string, patterns ...string) []rule {
	out := make([]rule, len(patterns))
	for i, p := range patterns {
		out[i] = rule{src: p, re: regexp.MustCompile(flags + p)}
	}
	return out
}

var diagnosisRules = rules("(?i)",
	`\bdiagnos(?:e|is)\b`,
	`\byou have\b`,
	`\bits likely you\b`,
	`\byou are suffering from\b`,
	`\bconfirmed\b`,
	`\bclinically\b`,
)

var prescriptionRules = rules("(?i)",
	`\bprescrib(?:e|ed|ing)\b`,
	`\btake\s+\d+\s*(?:mg|g|mcg|ml)\b`,
	`\bstart\s+(?:taking|using)\b.*\b(medication|drug|antibiotic)\b`,
	`\bstop\s+(?:taking|using)\b.*\b(medication|drug|antidepressant|insulin)\b`,
)

var emergencyRules = rules("(?i)",
	`\bchest pain\b`,
	`\btrouble breathing\b`,
	`\bshortness of breath\b`,
	`\bfaint(?:ed|ing)?\b`,
	`\bsevere bleeding\b`,
	`\bstroke\b`,
	`\bsuicid(?:al|e)\b`,
	`\bkill myself\b`,
	`\bself harm\b`,
)

// PHI placeholder types, applied in this order.
const (
	PHISSN   = "PHI_SSN"
	PHIEmail = "PHI_EMAIL"
	PHIPhone = "PHI_PHONE"
	PHIDate  = "PHI_DATE"
	PHIZip   = "PHI_ZIP"
	PHIID    = "PHI_ID"
	PHIName  = "PHI_NAME"
)

type phiRule struct {
	kind string
	re   *regexp.Regexp
}

// Strong patterns are case-insensitive and always masked.
var strongPHI = []phiRule{
	{PHISSN, regexp.MustCompile(`(?i)\b\d{3}-\d{2}-\d{4}\b`)},
	{PHIEmail, regexp.MustCompile(`(?i)\b[A-Z0-9._%+-]+@[A-Z0-9.-]+\.[A-Z]{2,}\b`)},
	{PHIPhone, regexp.MustCompile(`(?i)\b(?:\+?\d{1,3}[-.\s]?)?(?:\(?\d{2,4}\)?[-.\s]?)?\d{3,4}[-.\s]?\d{4}\b`)},
	{PHIDate, regexp.MustCompile(`(?i)\b\d{4}-\d{2}-\d{2}\b`)},
	{PHIDate, regexp.MustCompile(`(?i)\b\d{1,2}/\d{1,2}/\d{2,4}\b`)},
	{PHIZip, regexp.MustCompile(`(?i)\b\d{5}(?:-\d{4})?\b`)},
	{PHIID, regexp.MustCompile(`(?i)\b(?:MRN|ID|Patient\s*ID|Record\s*ID)\s*[:#]?\s*[A-Z0-9-]{4,}\b`)},
}

// Weak name pattern is case-sensitive and only applied with a context hint.
var weakName = phiRule{PHIName, regexp.MustCompile(`\b[A-Z][a-z]+(?:\s[A-Z][a-z]+)+\b`)}

var nameContextHints = []string{
	"call me",
	"contact",
	"reached at",
	"has",
	"patient",
}

func placeholder(kind string) string {
	return "[" + kind + "]"
}
