package models

import "time"

// AnalyticsPeriod is the only window the analytics endpoint reports on
const AnalyticsPeriod = "30_days"

// AnalyticsMetrics holds statistics derived for one tenant
type AnalyticsMetrics struct {
	TotalConversations        int64   `json:"total_conversations"`
	AvgResponseTimeMs         float64 `json:"avg_response_time_ms"`
	AvgTokensUsed             float64 `json:"avg_tokens_used"`
	TotalAPICostUSD           float64 `json:"total_api_cost_usd"`
	AppointmentRequests       int64   `json:"appointment_requests"`
	AppointmentsBooked        int64   `json:"appointments_booked"`
	HumanHandoffs             int64   `json:"human_handoffs"`
	AppointmentConversionRate float64 `json:"appointment_conversion_rate"`
}

// AnalyticsSummary is the per-tenant analytics response.
// Sample is true when the figures are illustrative rather than derived from stored events.
type AnalyticsSummary struct {
	BusinessID           string           `json:"business_id"`
	Period               string           `json:"period"`
	Metrics              AnalyticsMetrics `json:"metrics"`
	Sample               bool             `json:"sample"`
	Monitoring           string           `json:"monitoring"`
	PrometheusMetricsURL string           `json:"prometheus_metrics_url"`
	Timestamp            time.Time        `json:"timestamp"`
	Note                 string           `json:"note,omitempty"`
}

// EventAggregate is the raw aggregate a store computes over a tenant's events
type EventAggregate struct {
	Count               int64
	SumResponseTimeMs   float64
	SumTokensUsed       int64
	SumAPICostUSD       float64
	AppointmentRequests int64
	AppointmentsBooked  int64
	HumanHandoffs       int64
}

// ToMetrics derives averages and rates from the aggregate
func (a EventAggregate) ToMetrics() AnalyticsMetrics {
	m := AnalyticsMetrics{
		TotalConversations:  a.Count,
		TotalAPICostUSD:     a.SumAPICostUSD,
		AppointmentRequests: a.AppointmentRequests,
		AppointmentsBooked:  a.AppointmentsBooked,
		HumanHandoffs:       a.HumanHandoffs,
	}
	if a.Count > 0 {
		m.AvgResponseTimeMs = a.SumResponseTimeMs / float64(a.Count)
		m.AvgTokensUsed = float64(a.SumTokensUsed) / float64(a.Count)
	}
	if a.AppointmentRequests > 0 {
		m.AppointmentConversionRate = float64(a.AppointmentsBooked) / float64(a.AppointmentRequests)
	}
	return m
}

// SampleAnalyticsMetrics returns the illustrative figures served when no store is configured
func SampleAnalyticsMetrics() AnalyticsMetrics {
	return AnalyticsMetrics{
		TotalConversations:        150,
		AvgResponseTimeMs:         1250.5,
		AvgTokensUsed:             125.3,
		TotalAPICostUSD:           0.045,
		AppointmentRequests:       25,
		AppointmentsBooked:        18,
		HumanHandoffs:             3,
		AppointmentConversionRate: 0.72,
	}
}
