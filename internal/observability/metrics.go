package observability

import (
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registerOnce          sync.Once
	httpRequestsTotal     *prometheus.CounterVec
	httpLatencySeconds    *prometheus.HistogramVec
	httpErrorsTotal       *prometheus.CounterVec
	quotaDecisionsTotal   *prometheus.CounterVec
	provisionStepsTotal   *prometheus.CounterVec
	submissionsTotal      *prometheus.CounterVec
	judgeTransitionsTotal *prometheus.CounterVec
	judgeDispatchTotal    *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used by the judge API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ada_http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ada_http_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 5.0},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ada_http_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		quotaDecisionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ada_quota_decisions_total",
			Help: "Quota admission decisions grouped by outcome.",
		}, []string{"outcome"})

		provisionStepsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ada_provision_steps_total",
			Help: "Repository provisioning steps grouped by step and outcome.",
		}, []string{"step", "outcome"})

		submissionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ada_submissions_total",
			Help: "Push intake results grouped by outcome.",
		}, []string{"outcome"})

		judgeTransitionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ada_judge_transitions_total",
			Help: "Judge driven submission updates grouped by target status and outcome.",
		}, []string{"status", "outcome"})

		judgeDispatchTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ada_judge_dispatch_total",
			Help: "Judge job hand-offs grouped by transport and outcome.",
		}, []string{"transport", "outcome"})

		prometheus.MustRegister(
			httpRequestsTotal,
			httpLatencySeconds,
			httpErrorsTotal,
			quotaDecisionsTotal,
			provisionStepsTotal,
			submissionsTotal,
			judgeTransitionsTotal,
			judgeDispatchTotal,
		)
	})
}

// HTTPRequests exposes the counter for API requests.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the latency histogram for API requests.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// HTTPErrors exposes the counter for error responses.
func HTTPErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

// QuotaDecisions exposes the counter for quota admissions.
func QuotaDecisions() *prometheus.CounterVec {
	RegisterMetrics()
	return quotaDecisionsTotal
}

// ProvisionSteps exposes the counter for repository provisioning steps.
func ProvisionSteps() *prometheus.CounterVec {
	RegisterMetrics()
	return provisionStepsTotal
}

// Submissions exposes the counter for push intake results.
func Submissions() *prometheus.CounterVec {
	RegisterMetrics()
	return submissionsTotal
}

// JudgeTransitions exposes the counter for judge updates.
func JudgeTransitions() *prometheus.CounterVec {
	RegisterMetrics()
	return judgeTransitionsTotal
}

// JudgeDispatch exposes the counter for judge job hand-offs.
func JudgeDispatch() *prometheus.CounterVec {
	RegisterMetrics()
	return judgeDispatchTotal
}

// MetricsHandler exposes the Prometheus scrape endpoint via Fiber.
func MetricsHandler() fiber.Handler {
	RegisterMetrics()
	return adaptor.HTTPHandler(promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
}
