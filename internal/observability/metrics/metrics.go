package metrics

import (
	"database/sql"
	"errors"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const metricPrefix = "citypay_"

// Payment outcome labels.
const (
	OutcomeCompleted    = "completed"
	OutcomeInsufficient = "insufficient_balance"
	OutcomeRejected     = "security_rejected"
	OutcomeError        = "error"
)

// Statement export result labels.
const (
	ResultSuccess = "success"
	ResultError   = "error"
)

// Snapshot is a point-in-time view of the process counters.
type Snapshot struct {
	TotalTransactions int64     `json:"totalTransactions"`
	TotalRevenue      int64     `json:"totalRevenue"`
	SystemStartTime   time.Time `json:"systemStartTime"`
	SystemActive      bool      `json:"systemActive"`
}

// Register holds process-wide payment counters. It is safe for concurrent use
// and mirrors every update into Prometheus collectors.
type Register struct {
	transactions atomic.Int64
	revenue      atomic.Int64
	active       atomic.Bool
	startTime    time.Time

	transactionsTotal prometheus.Counter
	revenueTotal      prometheus.Counter
	paymentResults    *prometheus.CounterVec
	paymentLatency    *prometheus.HistogramVec
	exportTotal       *prometheus.CounterVec
	exportLatency     *prometheus.HistogramVec
	notifyFailures    *prometheus.CounterVec
}

// New constructs a register and registers its collectors on reg.
func New(reg prometheus.Registerer, now time.Time) (*Register, error) {
	if reg == nil {
		return nil, errors.New("metrics: nil registerer")
	}
	r := &Register{startTime: now.UTC()}
	r.active.Store(true)

	r.transactionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: metricPrefix + "transactions_total",
		Help: "Total completed payment transactions",
	})
	r.revenueTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: metricPrefix + "revenue_total",
		Help: "Total revenue in whole currency units",
	})
	r.paymentResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: metricPrefix + "payment_results_total",
			Help: "Total payment attempts by payment type and outcome",
		},
		[]string{"type", "outcome"},
	)
	r.paymentLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    metricPrefix + "payment_latency_seconds",
			Help:    "Payment execution latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"type", "outcome"},
	)
	r.exportTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: metricPrefix + "statement_export_total",
			Help: "Total statement export operations by format and result",
		},
		[]string{"format", "result"},
	)
	r.exportLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    metricPrefix + "statement_export_latency_seconds",
			Help:    "Statement export latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"format", "result"},
	)
	r.notifyFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: metricPrefix + "notify_failures_total",
			Help: "Total observer failures by observer type",
		},
		[]string{"observer"},
	)
	uptime := prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "system_active",
			Help: "1 when the payment system is accepting work",
		},
		func() float64 {
			if r.active.Load() {
				return 1
			}
			return 0
		},
	)

	for _, c := range []prometheus.Collector{
		r.transactionsTotal,
		r.revenueTotal,
		r.paymentResults,
		r.paymentLatency,
		r.exportTotal,
		r.exportLatency,
		r.notifyFailures,
		uptime,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// RegisterDBStats exposes connection pool statistics for db.
func RegisterDBStats(reg prometheus.Registerer, db *sql.DB, name string) error {
	if reg == nil || db == nil {
		return nil
	}
	return reg.Register(collectors.NewDBStatsCollector(db, name))
}

// IncrementTransactionCount adds one completed transaction.
func (r *Register) IncrementTransactionCount() {
	if r == nil {
		return
	}
	r.transactions.Add(1)
	r.transactionsTotal.Inc()
}

// AddRevenue adds whole currency units to the revenue counter.
func (r *Register) AddRevenue(amount int64) {
	if r == nil || amount <= 0 {
		return
	}
	r.revenue.Add(amount)
	r.revenueTotal.Add(float64(amount))
}

// SetSystemActive toggles the system active flag.
func (r *Register) SetSystemActive(active bool) {
	if r == nil {
		return
	}
	r.active.Store(active)
}

// SystemStartTime returns the construction time.
func (r *Register) SystemStartTime() time.Time {
	if r == nil {
		return time.Time{}
	}
	return r.startTime
}

// Snapshot returns the current counters.
func (r *Register) Snapshot() Snapshot {
	if r == nil {
		return Snapshot{}
	}
	return Snapshot{
		TotalTransactions: r.transactions.Load(),
		TotalRevenue:      r.revenue.Load(),
		SystemStartTime:   r.startTime,
		SystemActive:      r.active.Load(),
	}
}

// ObservePayment records a payment attempt outcome and its latency.
func (r *Register) ObservePayment(paymentType, outcome string, duration time.Duration) {
	if r == nil {
		return
	}
	if paymentType == "" {
		paymentType = "unknown"
	}
	if outcome == "" {
		outcome = OutcomeCompleted
	}
	r.paymentResults.WithLabelValues(paymentType, outcome).Inc()
	r.paymentLatency.WithLabelValues(paymentType, outcome).Observe(duration.Seconds())
}

// ObserveStatementExport records export latency and result.
func (r *Register) ObserveStatementExport(format, result string, duration time.Duration) {
	if r == nil {
		return
	}
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = ResultSuccess
	}
	r.exportTotal.WithLabelValues(format, result).Inc()
	r.exportLatency.WithLabelValues(format, result).Observe(duration.Seconds())
}

// IncNotifyFailure counts an observer failure.
func (r *Register) IncNotifyFailure(observer string) {
	if r == nil {
		return
	}
	if observer == "" {
		observer = "unknown"
	}
	r.notifyFailures.WithLabelValues(observer).Inc()
}
