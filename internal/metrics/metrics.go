package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_server_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status_code"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_server_requests_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status_code"},
	)

	// Coupon lifecycle metrics
	couponsIssuedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "coupons_issued_total",
			Help: "Total number of coupons issued",
		},
	)

	couponRedemptionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coupon_redemptions_total",
			Help: "Total number of redemption attempts",
		},
		[]string{"result"}, // success/already_redeemed/expired/invalid_token
	)

	// Store metrics
	storeCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_calls_total",
			Help: "Total number of store operations",
		},
		[]string{"operation", "status"},
	)

	storeCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "store_call_duration_seconds",
			Help:    "Store operation duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		},
		[]string{"operation"},
	)

	// Idempotency metrics
	idempotencyHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "idempotency_hits_total",
			Help: "Total number of idempotency hits",
		},
		[]string{"type"}, // hit or miss
	)
)

// Init registers the metrics
func Init() error {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		couponsIssuedTotal,
		couponRedemptionsTotal,
		storeCallsTotal,
		storeCallDuration,
		idempotencyHitsTotal,
	)

	return nil
}

// HTTPMetricsMiddleware records HTTP metrics
func HTTPMetricsMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		duration := time.Since(start).Seconds()
		method := c.Method()
		route := c.Route().Path
		if route == "" {
			route = c.Path()
		}
		statusCode := strconv.Itoa(c.Response().StatusCode())

		httpRequestsTotal.WithLabelValues(method, route, statusCode).Inc()
		httpRequestDuration.WithLabelValues(method, route, statusCode).Observe(duration)

		return err
	}
}

// RecordCouponIssued records a successful issuance
func RecordCouponIssued() {
	couponsIssuedTotal.Inc()
}

// RecordRedemption records a redemption attempt outcome
func RecordRedemption(result string) {
	couponRedemptionsTotal.WithLabelValues(result).Inc()
}

// RecordStoreCall records a store operation
func RecordStoreCall(operation, status string, duration time.Duration) {
	storeCallsTotal.WithLabelValues(operation, status).Inc()
	storeCallDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordIdempotencyHit records idempotency cache hits/misses
func RecordIdempotencyHit(hitType string) {
	idempotencyHitsTotal.WithLabelValues(hitType).Inc()
}

// PrometheusHandler returns the Prometheus metrics handler
func PrometheusHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
