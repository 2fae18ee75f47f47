package intake

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelgruber/healthrag-go/internal/models"
)

func TestProcessLengthBounds(t *testing.T) {
	p := NewProcessor(nil)

	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{"empty", "", true},
		{"whitespace", "   \n\t ", true},
		{"too short", "tired", true},
		{"nine after trim", "  123456789  ", true},
		{"exactly ten", "1234567890", false},
		{"max", strings.Repeat("a", MaxLength), false},
		{"over max", strings.Repeat("a", MaxLength+1), true},
		{"multibyte counted in characters", strings.Repeat("é", MinLength), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := p.Process(tt.raw, Meta{})
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalid)
				assert.Nil(t, rec)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, rec)
		})
	}
}

func TestProcessConsentGate(t *testing.T) {
	p := NewProcessor(nil)
	texts := []string{
		"My name is on the form and I feel dizzy.",
		"Please call my phone, I have a fever.",
		"The patient reports a mild headache today.",
		"My DOB is listed; chest feels tight.",
	}

	for _, text := range texts {
		t.Run(text, func(t *testing.T) {
			_, err := p.Process(text, Meta{ConsentGranted: false})
			require.ErrorIs(t, err, ErrInvalid)

			rec, err := p.Process(text, Meta{ConsentGranted: true})
			require.NoError(t, err)
			assert.True(t, rec.ContainsPHI)
			assert.True(t, rec.ConsentGranted)
		})
	}
}

func TestProcessDefaultsAndIDs(t *testing.T) {
	p := NewProcessor(nil)
	fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return fixed }

	rec, err := p.Process("  Feeling chest tightness and fatigue for 3 days.  ", Meta{})
	require.NoError(t, err)

	assert.Equal(t, "Feeling chest tightness and fatigue for 3 days.", rec.RawText)
	assert.Equal(t, models.SourceWeb, rec.Source)
	assert.Equal(t, models.InputChat, rec.InputType)
	assert.False(t, rec.ContainsPHI)
	assert.Equal(t, fixed, rec.Timestamp)
	_, err = uuid.Parse(rec.InputID)
	assert.NoError(t, err)
	_, err = uuid.Parse(rec.UserID)
	assert.NoError(t, err)

	withUser, err := p.Process("Feeling tired most afternoons.", Meta{UserID: "user-42", Source: models.SourceSMS, InputType: models.InputSurvey})
	require.NoError(t, err)
	assert.Equal(t, "user-42", withUser.UserID)
	assert.Equal(t, models.SourceSMS, withUser.Source)
	assert.Equal(t, models.InputSurvey, withUser.InputType)
}

func TestProcessRejectsUnknownEnums(t *testing.T) {
	p := NewProcessor(nil)

	_, err := p.Process("Feeling tired most afternoons.", Meta{Source: "fax"})
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = p.Process("Feeling tired most afternoons.", Meta{InputType: "letter"})
	assert.ErrorIs(t, err, ErrInvalid)
}
