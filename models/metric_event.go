package models

import (
	"time"

	"github.com/google/uuid"
)

// Label fallbacks applied when the sender omits a dimension
const (
	DefaultModelName     = "gemini-1.5-flash"
	UnknownLabel         = "unknown"
	ResponseTypeError    = "error"
	HandoffReasonError   = "error"
	HandoffReasonComplex = "complex_query"
)

// RequiredFields lists the JSON keys every event must carry, in the order a
// missing one is reported.
var RequiredFields = []string{"business_id", "response_time_ms", "tokens_used"}

// MetricEvent describes one AI interaction reported by the chat application.
//
// Required fields are pointers so that an explicit zero (tokens_used: 0) is
// distinguishable from an absent field. Their declaration order is the order
// in which missing fields are reported.
type MetricEvent struct {
	Seq       int64     `json:"-" db:"id"`
	ID        uuid.UUID `json:"-" db:"event_id"`
	CreatedAt time.Time `json:"-" db:"created_at"`

	// Required
	BusinessID     *string  `json:"business_id" db:"business_id" validate:"required,max=255"`
	ResponseTimeMs *float64 `json:"response_time_ms" db:"response_time_ms" validate:"required,gte=0"`
	TokensUsed     *int64   `json:"tokens_used" db:"tokens_used" validate:"required,gte=0"`

	// Aggregated when present
	APICostUSD            *float64 `json:"api_cost_usd,omitempty" db:"api_cost_usd" validate:"omitempty,gte=0"`
	ModelName             string   `json:"model_name,omitempty" db:"model_name" validate:"max=100"`
	IntentDetected        string   `json:"intent_detected,omitempty" db:"intent_detected" validate:"max=50"`
	ResponseType          string   `json:"response_type,omitempty" db:"response_type" validate:"max=50"`
	SuccessRate           *float64 `json:"success_rate,omitempty" db:"success_rate" validate:"omitempty,gte=0,lte=1"`
	AppointmentRequested  bool     `json:"appointment_requested,omitempty" db:"appointment_requested"`
	AppointmentBooked     bool     `json:"appointment_booked,omitempty" db:"appointment_booked"`
	HumanHandoffRequested bool     `json:"human_handoff_requested,omitempty" db:"human_handoff_requested"`

	// Persisted only
	ConversationID    string `json:"conversation_id,omitempty" db:"conversation_id" validate:"max=255"`
	SessionID         string `json:"session_id,omitempty" db:"session_id" validate:"max=255"`
	PromptTokens      *int64 `json:"prompt_tokens,omitempty" db:"prompt_tokens" validate:"omitempty,gte=0"`
	CompletionTokens  *int64 `json:"completion_tokens,omitempty" db:"completion_tokens" validate:"omitempty,gte=0"`
	UserMessageLength int    `json:"user_message_length,omitempty" db:"user_message_length" validate:"gte=0"`
	AIResponseLength  int    `json:"ai_response_length,omitempty" db:"ai_response_length" validate:"gte=0"`
}

// TableName returns the table name for the MetricEvent model
func (MetricEvent) TableName() string {
	return "ai_metrics"
}

// Stamp assigns an event ID and creation time if they are not set yet
func (e *MetricEvent) Stamp(now time.Time) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now.UTC()
	}
}

// Normalize fills omitted label dimensions so that a stored event replays
// into exactly the series it was first aggregated into.
func (e *MetricEvent) Normalize(defaultModel string) {
	e.ModelName = e.Model(defaultModel)
	e.IntentDetected = e.Intent()
	e.ResponseType = e.Response()
}

// Business returns the tenant label, "unknown" when absent
func (e *MetricEvent) Business() string {
	if e.BusinessID == nil {
		return UnknownLabel
	}
	return *e.BusinessID
}

// Model returns the model label, falling back to defaultModel
func (e *MetricEvent) Model(defaultModel string) string {
	if e.ModelName != "" {
		return e.ModelName
	}
	if defaultModel == "" {
		return DefaultModelName
	}
	return defaultModel
}

// Intent returns the intent label, "unknown" when absent
func (e *MetricEvent) Intent() string {
	if e.IntentDetected == "" {
		return UnknownLabel
	}
	return e.IntentDetected
}

// Response returns the response type label, "unknown" when absent
func (e *MetricEvent) Response() string {
	if e.ResponseType == "" {
		return UnknownLabel
	}
	return e.ResponseType
}

// HandoffReason classifies why a human handoff was requested
func (e *MetricEvent) HandoffReason() string {
	if e.ResponseType == ResponseTypeError {
		return HandoffReasonError
	}
	return HandoffReasonComplex
}

// ResponseTimeSeconds converts the reported latency for histogram observation
func (e *MetricEvent) ResponseTimeSeconds() float64 {
	if e.ResponseTimeMs == nil {
		return 0
	}
	return *e.ResponseTimeMs / 1000.0
}
