// Package models defines the data structures shared across pipeline stages.
package models

import "time"

// Source is the channel an input arrived through.
type Source string

const (
	SourceWeb   Source = "web"
	SourceSMS   Source = "sms"
	SourceVoice Source = "voice"
	SourceAPI   Source = "api"
	SourceEmail Source = "email"
)

// InputType is the kind of interaction that produced an input.
type InputType string

const (
	InputChat     InputType = "chat"
	InputIntake   InputType = "intake"
	InputSurvey   InputType = "survey"
	InputReferral InputType = "referral"
)

// IntakeRecord is the validated, normalized form of a raw input.
type IntakeRecord struct {
	InputID        string    `json:"input_id"`
	UserID         string    `json:"user_id"`
	RawText        string    `json:"raw_text"`
	Source         Source    `json:"source"`
	InputType      InputType `json:"input_type"`
	Timestamp      time.Time `json:"timestamp"`
	ContainsPHI    bool      `json:"contains_phi"`
	ConsentGranted bool      `json:"consent_granted"`
}
