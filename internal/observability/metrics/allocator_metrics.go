package metrics

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	customerdomain "github.com/smallbiznis/panucci/internal/customer/domain"
	"gorm.io/gorm"
)

const (
	AllocationResultSuccess   = "success"
	AllocationResultExhausted = "exhausted"
	AllocationResultCanceled  = "canceled"
	AllocationResultError     = "error"
)

const (
	ReconcileTriggerReserve   = "reserve"
	ReconcileTriggerCollision = "collision"
	ReconcileTriggerManual    = "manual"
	ReconcileTriggerBoot      = "boot"
)

const (
	AllocationReasonDuplicateKey         = "duplicate_key"
	AllocationReasonTxUnsupported        = "transactions_unsupported"
	AllocationReasonDeadlineExceeded     = "deadline_exceeded"
	AllocationReasonDBLockTimeout        = "db_lock_timeout"
	AllocationReasonSerializationFailure = "serialization_failure"
	AllocationReasonDB                   = "db"
	AllocationReasonUnknown              = "unknown"
)

// AllocatorMetrics captures customer identifier issuance health.
type AllocatorMetrics struct {
	allocations     *prometheus.CounterVec
	attempts        prometheus.Histogram
	duration        *prometheus.HistogramVec
	collisions      prometheus.Counter
	fallbacks       prometheus.Counter
	reconciliations *prometheus.CounterVec
	drift           prometheus.Counter
	errors          *prometheus.CounterVec
}

var (
	allocatorMetricsOnce sync.Once
	allocatorMetrics     *AllocatorMetrics
)

// Allocator returns the singleton allocator metrics registry.
func Allocator() *AllocatorMetrics {
	return AllocatorWithConfig(Config{})
}

// AllocatorWithConfig returns the singleton allocator metrics registry using config labels.
func AllocatorWithConfig(cfg Config) *AllocatorMetrics {
	allocatorMetricsOnce.Do(func() {
		allocatorMetrics = NewAllocatorMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return allocatorMetrics
}

// ResetAllocatorMetricsForTest resets the allocator metrics singleton for tests.
func ResetAllocatorMetricsForTest() {
	allocatorMetricsOnce = sync.Once{}
	allocatorMetrics = nil
}

func NewAllocatorMetrics(registerer prometheus.Registerer, cfg Config) *AllocatorMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "panucci"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	m := &AllocatorMetrics{
		allocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "panucci_customer_allocations_total",
			Help:        "Customer identifier allocations by result.",
			ConstLabels: constLabels,
		}, []string{"result"}),
		attempts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:        "panucci_customer_allocation_attempts",
			Help:        "Attempts used per customer identifier allocation.",
			Buckets:     []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10},
			ConstLabels: constLabels,
		}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "panucci_customer_allocation_duration_seconds",
			Help:        "Customer identifier allocation latency.",
			Buckets:     []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			ConstLabels: constLabels,
		}, []string{"result"}),
		collisions: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "panucci_customer_allocation_collisions_total",
			Help:        "Uniqueness violations hit while inserting a customer.",
			ConstLabels: constLabels,
		}),
		fallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "panucci_customer_allocation_fallbacks_total",
			Help:        "Attempts executed without a transaction.",
			ConstLabels: constLabels,
		}),
		reconciliations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "panucci_customer_counter_reconciliations_total",
			Help:        "Counter reconciliations by trigger.",
			ConstLabels: constLabels,
		}, []string{"trigger"}),
		drift: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "panucci_customer_counter_drift_total",
			Help:        "Reconciliations that found the counter out of step with stored identifiers.",
			ConstLabels: constLabels,
		}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "panucci_customer_allocation_errors_total",
			Help:        "Allocation attempt errors by reason.",
			ConstLabels: constLabels,
		}, []string{"reason"}),
	}

	registerer.MustRegister(
		m.allocations,
		m.attempts,
		m.duration,
		m.collisions,
		m.fallbacks,
		m.reconciliations,
		m.drift,
		m.errors,
	)

	return m
}

// ObserveAllocation records the outcome of one Allocate call.
func (m *AllocatorMetrics) ObserveAllocation(result string, attempts int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.allocations.WithLabelValues(result).Inc()
	if attempts > 0 {
		m.attempts.Observe(float64(attempts))
	}
	m.duration.WithLabelValues(result).Observe(elapsed.Seconds())
}

func (m *AllocatorMetrics) IncCollision() {
	if m == nil {
		return
	}
	m.collisions.Inc()
	m.errors.WithLabelValues(AllocationReasonDuplicateKey).Inc()
}

func (m *AllocatorMetrics) IncFallback() {
	if m == nil {
		return
	}
	m.fallbacks.Inc()
}

// IncReconcile counts a reconciliation. previous is the counter value before
// the write; drift is recorded when it differs from max.
func (m *AllocatorMetrics) IncReconcile(trigger string, previous, max int64) {
	if m == nil {
		return
	}
	m.reconciliations.WithLabelValues(trigger).Inc()
	if previous != max {
		m.drift.Inc()
	}
}

func (m *AllocatorMetrics) IncError(err error) {
	if m == nil || err == nil {
		return
	}
	m.errors.WithLabelValues(ClassifyAllocationReason(err)).Inc()
}

// ClassifyAllocationResult maps an Allocate error to a low-cardinality result.
func ClassifyAllocationResult(err error) string {
	switch {
	case err == nil:
		return AllocationResultSuccess
	case errors.Is(err, customerdomain.ErrAllocationExhausted):
		return AllocationResultExhausted
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return AllocationResultCanceled
	default:
		return AllocationResultError
	}
}

// ClassifyAllocationReason maps allocation errors to low-cardinality reasons.
func ClassifyAllocationReason(err error) string {
	switch {
	case err == nil:
		return AllocationReasonUnknown
	case errors.Is(err, customerdomain.ErrDuplicateKey), isUniqueViolation(err):
		return AllocationReasonDuplicateKey
	case errors.Is(err, customerdomain.ErrTransactionsUnsupported):
		return AllocationReasonTxUnsupported
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return AllocationReasonDeadlineExceeded
	case hasPGCode(err, "55P03"):
		return AllocationReasonDBLockTimeout
	case hasPGCode(err, "40001"):
		return AllocationReasonSerializationFailure
	case isDBError(err):
		return AllocationReasonDB
	default:
		return AllocationReasonUnknown
	}
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return hasPGCode(err, "23505")
}

func hasPGCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	return false
}

func isDBError(err error) bool {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false
	}
	if errors.Is(err, gorm.ErrInvalidDB) ||
		errors.Is(err, gorm.ErrInvalidTransaction) ||
		errors.Is(err, gorm.ErrInvalidField) ||
		errors.Is(err, gorm.ErrInvalidData) ||
		errors.Is(err, gorm.ErrMissingWhereClause) ||
		errors.Is(err, gorm.ErrUnsupportedDriver) ||
		errors.Is(err, gorm.ErrNotImplemented) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr)
}
