// Package models defines the core data structures for CalmPipe.
//
// It includes the triage, episode and insight records shared across modules,
// plus the JSON envelope used by the HTTP API.
package models

import (
	"errors"
	"strings"
	"time"
)

// Validation constants for input validation
const (
	// MinIntensity is the lowest self-reported distress level.
	MinIntensity = 0
	// MaxIntensity is the highest self-reported distress level.
	MaxIntensity = 10
	// MinHelpfulRating is the lowest tool helpfulness rating.
	MinHelpfulRating = 1
	// MaxHelpfulRating is the highest tool helpfulness rating.
	MaxHelpfulRating = 5
	// MaxMessageLength bounds free-text fields accepted over the API.
	MaxMessageLength = 4096
)

// Error variables for better error handling and testability
var (
	ErrIntensityOutOfRange = errors.New("intensity must be between 0 and 10")
	ErrRatingOutOfRange    = errors.New("helpful rating must be between 1 and 5")
	ErrMessageTooLong      = errors.New("text exceeds maximum length")
	ErrEmptyWorry          = errors.New("worry text is required")
	ErrEmptyThought        = errors.New("automatic thought is required")
	ErrInvalidSafetyEvent  = errors.New("invalid safety event type")
)

// Episode is one recorded anxiety event.
type Episode struct {
	ID              string    `json:"id"`
	Timestamp       time.Time `json:"timestamp"`
	Intensity       int       `json:"intensity"`
	DurationMinutes *int      `json:"durationMinutes,omitempty"`
	Triggers        []string  `json:"triggers"`
	Symptoms        []string  `json:"symptoms"`
	ToolsUsed       []string  `json:"toolsUsed"`
	HelpfulRating   *int      `json:"helpfulRating,omitempty"`
	Notes           string    `json:"notes,omitempty"`
	CompletedFlow   string    `json:"completedFlow,omitempty"`
}

// Validate checks intensity and rating ranges.
func (e *Episode) Validate() error {
	if e.Intensity < MinIntensity || e.Intensity > MaxIntensity {
		return ErrIntensityOutOfRange
	}
	if e.HelpfulRating != nil && (*e.HelpfulRating < MinHelpfulRating || *e.HelpfulRating > MaxHelpfulRating) {
		return ErrRatingOutOfRange
	}
	if len(e.Notes) > MaxMessageLength {
		return ErrMessageTooLong
	}
	return nil
}

// SafetyEventType classifies a logged safety event.
type SafetyEventType string

const (
	SafetyEventCrisisDetected    SafetyEventType = "crisis_detected"
	SafetyEventMedicalWarning    SafetyEventType = "medical_warning"
	SafetyEventCrisisScreenShown SafetyEventType = "crisis_screen_shown"
)

// IsValidSafetyEventType checks if the given event type is supported.
func IsValidSafetyEventType(t SafetyEventType) bool {
	switch t {
	case SafetyEventCrisisDetected, SafetyEventMedicalWarning, SafetyEventCrisisScreenShown:
		return true
	default:
		return false
	}
}

// SafetyEvent is the minimal audit record of a safety-relevant moment.
// Matched keywords and user text are deliberately not part of it.
type SafetyEvent struct {
	ID          string          `json:"id"`
	Timestamp   time.Time       `json:"timestamp"`
	Type        SafetyEventType `json:"type"`
	ActionTaken string          `json:"actionTaken"`
}

// ThoughtRecord is a CBT-style thought record.
type ThoughtRecord struct {
	ID                  string    `json:"id"`
	Timestamp           time.Time `json:"timestamp"`
	Situation           string    `json:"situation"`
	AutomaticThought    string    `json:"automaticThought"`
	Emotion             string    `json:"emotion"`
	EmotionIntensity    int       `json:"emotionIntensity"`
	CognitiveDistortion string    `json:"cognitiveDistortion,omitempty"`
	BalancedThought     string    `json:"balancedThought,omitempty"`
	NewEmotionIntensity *int      `json:"newEmotionIntensity,omitempty"`
}

// Validate checks required fields and intensity ranges.
func (t *ThoughtRecord) Validate() error {
	if strings.TrimSpace(t.AutomaticThought) == "" {
		return ErrEmptyThought
	}
	if t.EmotionIntensity < MinIntensity || t.EmotionIntensity > MaxIntensity {
		return ErrIntensityOutOfRange
	}
	if t.NewEmotionIntensity != nil && (*t.NewEmotionIntensity < MinIntensity || *t.NewEmotionIntensity > MaxIntensity) {
		return ErrIntensityOutOfRange
	}
	if len(t.Situation) > MaxMessageLength || len(t.AutomaticThought) > MaxMessageLength || len(t.BalancedThought) > MaxMessageLength {
		return ErrMessageTooLong
	}
	return nil
}

// PostponedWorry is a worry parked until a scheduled worry time.
type PostponedWorry struct {
	ID           string    `json:"id"`
	Worry        string    `json:"worry"`
	CreatedAt    time.Time `json:"createdAt"`
	ScheduledFor time.Time `json:"scheduledFor"`
	Addressed    bool      `json:"addressed"`
}

// Validate checks the worry text.
func (w *PostponedWorry) Validate() error {
	if strings.TrimSpace(w.Worry) == "" {
		return ErrEmptyWorry
	}
	if len(w.Worry) > MaxMessageLength {
		return ErrMessageTooLong
	}
	return nil
}

// APIStatus represents the status of an API response.
type APIStatus string

const (
	// APIStatusOK indicates an API request completed successfully.
	APIStatusOK APIStatus = "ok"
	// APIStatusError indicates an API request failed with an error.
	APIStatusError APIStatus = "error"
	// APIStatusRecorded indicates data was successfully recorded via API.
	APIStatusRecorded APIStatus = "recorded"
)

// APIResponse represents a standard API response with a status and optional data.
type APIResponse struct {
	Status  string      `json:"status"`            // status of the API response
	Message string      `json:"message,omitempty"` // optional message for error responses or additional info
	Result  interface{} `json:"result"`            // result data, null when absent
}

// APIResponseBuilder provides a fluent interface for building API responses.
type APIResponseBuilder struct {
	response APIResponse
}

// NewAPIResponseBuilder creates a new APIResponseBuilder instance.
func NewAPIResponseBuilder() *APIResponseBuilder {
	return &APIResponseBuilder{
		response: APIResponse{},
	}
}

// WithStatus sets the status of the API response.
func (b *APIResponseBuilder) WithStatus(status APIStatus) *APIResponseBuilder {
	b.response.Status = string(status)
	return b
}

// WithMessage sets the message of the API response.
func (b *APIResponseBuilder) WithMessage(message string) *APIResponseBuilder {
	b.response.Message = message
	return b
}

// WithResult sets the result data of the API response.
func (b *APIResponseBuilder) WithResult(result interface{}) *APIResponseBuilder {
	b.response.Result = result
	return b
}

// Build constructs and returns the final APIResponse.
func (b *APIResponseBuilder) Build() APIResponse {
	return b.response
}

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusOK).
		WithResult(result).
		Build()
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusError).
		WithMessage(message).
		Build()
}

// RecordedWithResult creates a recorded API response carrying the stored record.
func RecordedWithResult(result interface{}) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusRecorded).
		WithResult(result).
		Build()
}
