package middlewares

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"

	"transaction-service/models"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transaction_service_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "transaction_service_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	transactionOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transaction_service_operations_total",
			Help: "Transaction operations by outcome",
		},
		[]string{"operation", "outcome"},
	)

	transactionTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transaction_service_transitions_total",
			Help: "Transactions left in each status by a successful operation",
		},
		[]string{"operation", "status"},
	)

	transactionTotals = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "transaction_service_transaction_total_amount",
			Help:    "Total amount of created transactions",
			Buckets: prometheus.ExponentialBuckets(10, 10, 7),
		},
		[]string{"status"},
	)

	batchItems = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transaction_service_batch_items_total",
			Help: "Transactions handled by batch operations, by outcome",
		},
		[]string{"operation", "outcome"},
	)
)

// PrometheusMiddleware records request counts and latencies per route.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		httpRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, path, status).Observe(duration)
	}
}

// outcome names the error kind an HTTP status was mapped from.
func outcome(httpStatus int) string {
	switch {
	case httpStatus < 300:
		return "success"
	case httpStatus == http.StatusNotFound:
		return models.KindNotFound.String()
	case httpStatus == http.StatusBadRequest:
		return models.KindInvalidArgument.String()
	case httpStatus == http.StatusConflict:
		return models.KindConflict.String()
	case httpStatus == http.StatusUnprocessableEntity:
		return models.KindIllegalState.String()
	default:
		return "error"
	}
}

func RecordTransactionOperation(operation string, httpStatus int) {
	transactionOperations.WithLabelValues(operation, outcome(httpStatus)).Inc()
}

// RecordTransition counts the status an operation left a transaction in,
// e.g. how many creations settled in full against how many went to
// installments.
func RecordTransition(operation string, status models.TransactionStatus) {
	transactionTransitions.WithLabelValues(operation, string(status)).Inc()
}

func RecordTransactionTotal(status models.TransactionStatus, total decimal.Decimal) {
	transactionTotals.WithLabelValues(string(status)).Observe(total.InexactFloat64())
}

// RecordBatchOutcome counts how a batch treated its ids.
func RecordBatchOutcome(operation string, transitioned, skipped, failed int) {
	batchItems.WithLabelValues(operation, "transitioned").Add(float64(transitioned))
	batchItems.WithLabelValues(operation, "skipped").Add(float64(skipped))
	batchItems.WithLabelValues(operation, "failed").Add(float64(failed))
}
