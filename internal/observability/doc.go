// Package observability owns the service's aggregation state and logging.
//
// Registry is the set of Prometheus instruments fed by metric events:
//   - ai_requests_total, ai_tokens_used_total, ai_api_cost_usd_total
//   - ai_response_time_seconds (fixed buckets)
//   - ai_success_rate (last write wins)
//   - appointments_requested_total, appointments_booked_total, human_handoffs_total
//
// It lives on a private prometheus.Registry, is built once at startup and is
// only ever reset by a restart. Counters never decrease. An optional per-family
// series cap refuses events that would create new label tuples beyond it.
package observability
