package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// CardOperations counts card mutations by operation and outcome code.
	CardOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "giftcards_card_operations_total",
			Help: "Total number of card operations by result",
		},
		[]string{"operation", "result"},
	)

	// ConflictRetries counts optimistic-lock conflicts that were retried.
	ConflictRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "giftcards_conflict_retries_total",
			Help: "Total number of card writes retried after a version conflict",
		},
		[]string{"operation"},
	)

	// LedgerEntries counts appended ledger entries by type.
	LedgerEntries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "giftcards_ledger_entries_total",
			Help: "Total number of ledger entries appended",
		},
		[]string{"type"},
	)

	// LedgerDuplicates counts ledger writes skipped because the idempotency key existed.
	LedgerDuplicates = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "giftcards_ledger_duplicates_total",
			Help: "Total number of replayed ledger entries skipped by idempotency key",
		},
	)

	// LedgerSyncFailures counts ledger replays that failed and need attention.
	LedgerSyncFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "giftcards_ledger_sync_failures_total",
			Help: "Total number of ledger synchronization failures",
		},
	)

	// BillingTransactions counts company billing records by type.
	BillingTransactions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "giftcards_billing_transactions_total",
			Help: "Total number of company billing transactions recorded",
		},
		[]string{"type"},
	)

	// Invoices counts company invoices created by invoicing runs.
	Invoices = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "giftcards_invoices_total",
			Help: "Total number of company invoices created",
		},
	)

	// Notifications counts notification deliveries by type and result.
	Notifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "giftcards_notifications_total",
			Help: "Total number of card notifications by result",
		},
		[]string{"type", "result"},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "giftcards_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "giftcards_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

// Middleware records request counts and latencies per route.
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			route := c.Path()
			if route == "" {
				route = "not_found"
			}
			status := strconv.Itoa(c.Response().Status)
			method := c.Request().Method

			httpRequestsTotal.WithLabelValues(method, route, status).Inc()
			httpRequestDuration.WithLabelValues(method, route, status).Observe(time.Since(start).Seconds())
			return nil
		}
	}
}

// Handler exposes the default registry for scraping.
func Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.Handler())
}
