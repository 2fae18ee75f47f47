package safety

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuardBlocksDiagnosisAndPrescription(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		action string
	}{
		{"diagnose", "We cannot diagnose this over chat.", ActionBlockDiagnosis},
		{"you have", "It looks like you have the flu.", ActionBlockDiagnosis},
		{"confirmed", "The infection was confirmed.", ActionBlockDiagnosis},
		{"clinically", "This is clinically significant.", ActionBlockDiagnosis},
		{"suffering", "You are suffering from anemia.", ActionBlockDiagnosis},
		{"prescribed", "Your doctor prescribed rest.", ActionBlockPrescription},
		{"dosing", "Take 200 mg twice a day.", ActionBlockPrescription},
		{"start drug", "Start taking the new medication today.", ActionBlockPrescription},
		{"stop drug", "Stop using insulin now.", ActionBlockPrescription},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Guard(tt.text)
			assert.False(t, res.Allowed)
			assert.Equal(t, SeverityHigh, res.Severity)
			assert.Contains(t, res.Actions, tt.action)
		})
	}
}

func TestGuardEmergencyAddsGuidanceOnce(t *testing.T) {
	res := Guard("I keep getting chest pain when climbing stairs.")

	assert.True(t, res.Allowed, "emergency alone does not block")
	assert.Equal(t, SeverityHigh, res.Severity)
	assert.Contains(t, res.Actions, ActionEmergencyGuidance)
	assert.Equal(t, 1, strings.Count(res.MaskedText, EmergencyGuidance))

	require.Len(t, res.Reasons, 1)
	assert.Equal(t, ReasonEmergency, res.Reasons[0].Type)
	require.NotNil(t, res.Reasons[0].Match)
	assert.Equal(t, `\bchest pain\b`, *res.Reasons[0].Match)

	again := Guard(res.MaskedText)
	assert.True(t, again.Allowed)
	assert.Equal(t, 1, strings.Count(again.MaskedText, EmergencyGuidance), "guidance must not duplicate")
}

func TestGuardMasksStrongPHI(t *testing.T) {
	tests := []struct {
		name        string
		text        string
		placeholder string
		secret      string
	}{
		{"ssn", "My SSN is 123-45-6789 for the form.", "[PHI_SSN]", "123-45-6789"},
		{"email", "Write to jane.doe@example.com later.", "[PHI_EMAIL]", "jane.doe@example.com"},
		{"phone", "Phone 555-123-4567 after noon.", "[PHI_PHONE]", "555-123-4567"},
		{"iso date", "Symptoms began 2024-01-15 at night.", "[PHI_DATE]", "2024-01-15"},
		{"slash date", "Symptoms began 1/15/24 at night.", "[PHI_DATE]", "1/15/24"},
		{"zip", "I live near 94110 downtown.", "[PHI_ZIP]", "94110"},
		{"record marker", "MRN: AB12345 on file.", "[PHI_ID]", "AB12345"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Guard(tt.text)
			assert.True(t, res.Allowed)
			assert.Contains(t, res.MaskedText, tt.placeholder)
			assert.NotContains(t, res.MaskedText, tt.secret)
			assert.Contains(t, res.Actions, ActionMaskPHI)
			assert.Equal(t, SeverityMedium, res.Severity)
			for _, r := range res.Reasons {
				assert.Equal(t, ReasonPHI, r.Type)
				assert.Nil(t, r.Match, "matched identifiers are not retained")
			}
		})
	}
}

func TestGuardNameMaskingNeedsContext(t *testing.T) {
	withHint := Guard("Patient John Smith reports a mild cough.")
	assert.Contains(t, withHint.MaskedText, "[PHI_NAME]")
	assert.NotContains(t, withHint.MaskedText, "John Smith")

	withoutHint := Guard("Blood Pressure readings were normal today.")
	assert.Equal(t, "Blood Pressure readings were normal today.", withoutHint.MaskedText)
	assert.Empty(t, withoutHint.Actions)
	assert.Equal(t, SeverityLow, withoutHint.Severity)
}

func TestGuardSeverityNeverDowngrades(t *testing.T) {
	res := Guard("You have a cold; SSN 123-45-6789.")
	assert.False(t, res.Allowed)
	assert.Equal(t, SeverityHigh, res.Severity, "PHI masking must not lower high to medium")
	assert.Equal(t, []string{ActionBlockDiagnosis, ActionMaskPHI}, res.Actions)
	assert.Contains(t, res.MaskedText, "[PHI_SSN]", "masked text is produced even when blocked")
}

func TestGuardCleanText(t *testing.T) {
	res := Guard("Rest and hydration often support recovery.")
	assert.True(t, res.Allowed)
	assert.Equal(t, SeverityLow, res.Severity)
	assert.NotNil(t, res.Actions)
	assert.NotNil(t, res.Reasons)
	assert.Equal(t, "Rest and hydration often support recovery.", res.MaskedText)
}

func TestMaxSeverity(t *testing.T) {
	assert.Equal(t, SeverityHigh, MaxSeverity(SeverityHigh, SeverityMedium))
	assert.Equal(t, SeverityMedium, MaxSeverity(SeverityLow, SeverityMedium))
	assert.Equal(t, SeverityLow, MaxSeverity(SeverityLow, SeverityLow))
}

func TestAppendGuidance(t *testing.T) {
	out := AppendGuidance("Seek help.  \n", "Call now.")
	assert.Equal(t, "Seek help.\n\nCall now.", out)
	assert.Equal(t, out, AppendGuidance(out, "Call now."))
}
