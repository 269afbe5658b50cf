package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce          sync.Once
	httpDurationHistogram *prometheus.HistogramVec
	scanCycleCounter      *prometheus.CounterVec
	depositCounter        prometheus.Counter
	sweepCounter          *prometheus.CounterVec
	reconcileCounter      *prometheus.CounterVec
	watermarkGauge        prometheus.Gauge
	workerRunCounter      *prometheus.CounterVec
)

// Init registers all Prometheus collectors.
func Init() {
	registerOnce.Do(func() {
		httpDurationHistogram = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"})

		scanCycleCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "deposit_scan_cycles_total",
			Help: "Deposit scan cycle outcomes",
		}, []string{"result"})

		depositCounter = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "deposits_credited_total",
			Help: "On-chain deposits credited to player balances",
		})

		sweepCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fund_sweeps_total",
			Help: "Fund sweep attempt outcomes",
		}, []string{"outcome"})

		reconcileCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pending_tx_reconciliations_total",
			Help: "Pending transaction reconciliation outcomes",
		}, []string{"result"})

		watermarkGauge = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scan_watermark_block",
			Help: "Highest fully scanned block number",
		})

		workerRunCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_runs_total",
			Help: "Background worker run outcomes",
		}, []string{"worker", "result"})

		prometheus.MustRegister(
			httpDurationHistogram,
			scanCycleCounter,
			depositCounter,
			sweepCounter,
			reconcileCounter,
			watermarkGauge,
			workerRunCounter,
		)
	})
}

func ObserveHTTP(method, path string, status int, duration time.Duration) {
	if httpDurationHistogram == nil {
		return
	}
	httpDurationHistogram.WithLabelValues(method, path, strconv.Itoa(status)).Observe(duration.Seconds())
}

func IncrementScanCycle(result string) {
	if scanCycleCounter == nil {
		return
	}
	scanCycleCounter.WithLabelValues(result).Inc()
}

func IncrementDepositCredited() {
	if depositCounter == nil {
		return
	}
	depositCounter.Inc()
}

func IncrementSweep(outcome string) {
	if sweepCounter == nil {
		return
	}
	sweepCounter.WithLabelValues(outcome).Inc()
}

func IncrementReconciled(result string) {
	if reconcileCounter == nil {
		return
	}
	reconcileCounter.WithLabelValues(result).Inc()
}

func SetWatermark(block uint64) {
	if watermarkGauge == nil {
		return
	}
	watermarkGauge.Set(float64(block))
}

func IncrementWorkerRun(worker, result string) {
	if workerRunCounter == nil {
		return
	}
	workerRunCounter.WithLabelValues(worker, result).Inc()
}
