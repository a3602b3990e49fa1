package observability

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/upb/mlops-service/models"
	"go.uber.org/zap"
)

// Metric family names
const (
	MetricResponseTime          = "ai_response_time_seconds"
	MetricRequests              = "ai_requests_total"
	MetricSuccessRate           = "ai_success_rate"
	MetricTokensUsed            = "ai_tokens_used_total"
	MetricAPICost               = "ai_api_cost_usd_total"
	MetricAppointmentsRequested = "appointments_requested_total"
	MetricAppointmentsBooked    = "appointments_booked_total"
	MetricHumanHandoffs         = "human_handoffs_total"
	MetricSystemInfo            = "ai_system_info_info"
	MetricRejectedEvents        = "mlops_rejected_events_total"
)

// Rejection reasons for MetricRejectedEvents
const (
	RejectReasonValidation  = "validation"
	RejectReasonCardinality = "cardinality"
)

// ResponseTimeBuckets are the fixed histogram buckets in seconds
var ResponseTimeBuckets = []float64{0.1, 0.5, 1.0, 2.0, 5.0, 10.0}

var (
	// ErrCardinalityExceeded is returned when an event would create a label
	// tuple beyond the configured per-family series cap.
	ErrCardinalityExceeded = errors.New("metric series limit exceeded")

	// ErrNegativeValue is returned for a counter increment below zero.
	ErrNegativeValue = errors.New("counter increment must not be negative")
)

// RegistryOptions configures a Registry
type RegistryOptions struct {
	ServiceName  string
	Version      string
	DefaultModel string
	// MaxSeriesPerMetric caps distinct label tuples per family. Zero means unbounded.
	MaxSeriesPerMetric int
	// RuntimeCollectors adds Go runtime and process metrics to the exposition.
	RuntimeCollectors bool
}

// Registry is the process-wide aggregation state: a fixed set of labelled
// instruments on a private prometheus.Registry. It is created once at
// startup and never reset; all methods are safe for concurrent use.
type Registry struct {
	reg          *prometheus.Registry
	defaultModel string
	guard        *seriesGuard

	responseTime          prometheus.Histogram
	requests              *prometheus.CounterVec
	successRate           *prometheus.GaugeVec
	tokensUsed            *prometheus.CounterVec
	apiCost               *prometheus.CounterVec
	appointmentsRequested *prometheus.CounterVec
	appointmentsBooked    *prometheus.CounterVec
	humanHandoffs         *prometheus.CounterVec
	rejected              *prometheus.CounterVec
	systemInfo            *prometheus.GaugeVec
}

// NewRegistry builds and registers every instrument
func NewRegistry(opts RegistryOptions) (*Registry, error) {
	if opts.DefaultModel == "" {
		opts.DefaultModel = models.DefaultModelName
	}

	r := &Registry{
		reg:          prometheus.NewRegistry(),
		defaultModel: opts.DefaultModel,
		guard:        newSeriesGuard(opts.MaxSeriesPerMetric),

		responseTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    MetricResponseTime,
			Help:    "Time taken for AI to respond to user messages",
			Buckets: ResponseTimeBuckets,
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricRequests,
			Help: "Total number of AI requests",
		}, []string{"business_id", "response_type", "intent"}),
		successRate: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: MetricSuccessRate,
			Help: "Success rate of AI responses",
		}, []string{"business_id"}),
		tokensUsed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricTokensUsed,
			Help: "Total tokens consumed by AI",
		}, []string{"business_id", "model_name"}),
		apiCost: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricAPICost,
			Help: "Total API costs in USD",
		}, []string{"business_id", "model_name"}),
		appointmentsRequested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricAppointmentsRequested,
			Help: "Total appointment requests",
		}, []string{"business_id"}),
		appointmentsBooked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricAppointmentsBooked,
			Help: "Total appointments successfully booked",
		}, []string{"business_id"}),
		humanHandoffs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricHumanHandoffs,
			Help: "Total requests requiring human assistance",
		}, []string{"business_id", "reason"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricRejectedEvents,
			Help: "Metric events refused before aggregation",
		}, []string{"reason"}),
		systemInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: MetricSystemInfo,
			Help: "Information about the AI system",
		}, []string{"service", "version", "monitoring"}),
	}

	cs := []prometheus.Collector{
		r.responseTime, r.requests, r.successRate, r.tokensUsed, r.apiCost,
		r.appointmentsRequested, r.appointmentsBooked, r.humanHandoffs,
		r.rejected, r.systemInfo,
	}
	if opts.RuntimeCollectors {
		cs = append(cs,
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	for _, c := range cs {
		if err := r.reg.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register collector: %w", err)
		}
	}

	r.systemInfo.WithLabelValues(opts.ServiceName, opts.Version, "prometheus").Set(1)

	return r, nil
}

// DefaultModel returns the model label used when an event names none
func (r *Registry) DefaultModel() string {
	return r.defaultModel
}

// Gatherer exposes the underlying registry for exposition and tests
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// Handler serves the registry in the Prometheus text exposition format
func (r *Registry) Handler(logger *zap.Logger) http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{
		ErrorLog:      zap.NewStdLog(logger),
		ErrorHandling: promhttp.HTTPErrorOnError,
	})
}

// Apply folds one validated event into the instruments.
//
// The request counter and the latency histogram are always updated; the
// remaining instruments only when the corresponding field is present or
// flag is true. Series capacity is reserved for every label tuple the event
// touches before anything is written, so a refused event leaves no trace.
func (r *Registry) Apply(e *models.MetricEvent) error {
	if e == nil {
		return fmt.Errorf("nil metric event")
	}
	if e.TokensUsed != nil && *e.TokensUsed < 0 {
		return fmt.Errorf("tokens_used: %w", ErrNegativeValue)
	}
	if e.APICostUSD != nil && *e.APICostUSD < 0 {
		return fmt.Errorf("api_cost_usd: %w", ErrNegativeValue)
	}

	business := e.Business()
	model := e.Model(r.defaultModel)

	updates := []seriesUpdate{
		{MetricRequests, r.requests, []string{business, e.Response(), e.Intent()}, func(c prometheus.Counter) { c.Inc() }},
	}
	if e.TokensUsed != nil {
		tokens := float64(*e.TokensUsed)
		updates = append(updates, seriesUpdate{MetricTokensUsed, r.tokensUsed, []string{business, model}, func(c prometheus.Counter) { c.Add(tokens) }})
	}
	if e.APICostUSD != nil {
		cost := *e.APICostUSD
		updates = append(updates, seriesUpdate{MetricAPICost, r.apiCost, []string{business, model}, func(c prometheus.Counter) { c.Add(cost) }})
	}
	if e.AppointmentRequested {
		updates = append(updates, seriesUpdate{MetricAppointmentsRequested, r.appointmentsRequested, []string{business}, func(c prometheus.Counter) { c.Inc() }})
	}
	if e.AppointmentBooked {
		updates = append(updates, seriesUpdate{MetricAppointmentsBooked, r.appointmentsBooked, []string{business}, func(c prometheus.Counter) { c.Inc() }})
	}
	if e.HumanHandoffRequested {
		updates = append(updates, seriesUpdate{MetricHumanHandoffs, r.humanHandoffs, []string{business, e.HandoffReason()}, func(c prometheus.Counter) { c.Inc() }})
	}

	keys := make([]seriesKey, 0, len(updates)+1)
	for _, u := range updates {
		keys = append(keys, seriesKey{family: u.family, labels: u.labels})
	}
	if e.SuccessRate != nil {
		keys = append(keys, seriesKey{family: MetricSuccessRate, labels: []string{business}})
	}

	if err := r.guard.reserve(keys); err != nil {
		r.rejected.WithLabelValues(RejectReasonCardinality).Inc()
		return err
	}

	// Resolve every child first so a label error cannot leave a half-applied event
	counters := make([]prometheus.Counter, len(updates))
	for i, u := range updates {
		c, err := u.vec.GetMetricWithLabelValues(u.labels...)
		if err != nil {
			return fmt.Errorf("%s: %w", u.family, err)
		}
		counters[i] = c
	}
	var gauge prometheus.Gauge
	if e.SuccessRate != nil {
		g, err := r.successRate.GetMetricWithLabelValues(business)
		if err != nil {
			return fmt.Errorf("%s: %w", MetricSuccessRate, err)
		}
		gauge = g
	}

	if e.ResponseTimeMs != nil {
		r.responseTime.Observe(e.ResponseTimeSeconds())
	}
	for i, u := range updates {
		u.apply(counters[i])
	}
	if gauge != nil {
		gauge.Set(*e.SuccessRate)
	}

	return nil
}

// RecordRejected counts an event refused before aggregation
func (r *Registry) RecordRejected(reason string) {
	r.rejected.WithLabelValues(reason).Inc()
}

// SeriesCount reports how many label tuples the guard tracks for a family.
// It is always zero when no cap is configured.
func (r *Registry) SeriesCount(family string) int {
	return r.guard.count(family)
}

type seriesUpdate struct {
	family string
	vec    *prometheus.CounterVec
	labels []string
	apply  func(prometheus.Counter)
}

type seriesKey struct {
	family string
	labels []string
}

// seriesGuard bounds the number of distinct label tuples per family
type seriesGuard struct {
	max  int
	mu   sync.Mutex
	seen map[string]map[string]struct{}
}

func newSeriesGuard(max int) *seriesGuard {
	return &seriesGuard{
		max:  max,
		seen: make(map[string]map[string]struct{}),
	}
}

// reserve admits all keys or none
func (g *seriesGuard) reserve(keys []seriesKey) error {
	if g.max <= 0 {
		return nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	added := make(map[string][]string)
	for _, k := range keys {
		id := strings.Join(k.labels, "\xff")
		set := g.seen[k.family]
		if _, ok := set[id]; ok {
			continue
		}
		if dup(added[k.family], id) {
			continue
		}
		if len(set)+len(added[k.family]) >= g.max {
			return fmt.Errorf("%s: %w (max %d)", k.family, ErrCardinalityExceeded, g.max)
		}
		added[k.family] = append(added[k.family], id)
	}

	for family, ids := range added {
		set, ok := g.seen[family]
		if !ok {
			set = make(map[string]struct{})
			g.seen[family] = set
		}
		for _, id := range ids {
			set[id] = struct{}{}
		}
	}
	return nil
}

func (g *seriesGuard) count(family string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.seen[family])
}

func dup(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
