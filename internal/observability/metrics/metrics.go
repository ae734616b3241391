package metrics

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "rl24_"

	resultSuccess = "success"
	resultError   = "error"
)

// Result labels for observation helpers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError
)

var (
	registerOnce sync.Once

	batchProcessTotal   *prometheus.CounterVec
	batchProcessLatency *prometheus.HistogramVec

	xmlRegenerateTotal   *prometheus.CounterVec
	xmlRegenerateLatency *prometheus.HistogramVec

	paperExportTotal   *prometheus.CounterVec
	paperExportLatency *prometheus.HistogramVec

	slipsGenerated prometheus.Counter
	slipsSkipped   *prometheus.CounterVec
)

// Init registers observability metrics and DB-backed gauges.
func Init(db *sql.DB, logger *log.Logger) {
	registerOnce.Do(func() {
		batchProcessTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "batch_process_total",
				Help: "Total batch runs by result",
			},
			[]string{"result"},
		)
		batchProcessLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "batch_process_latency_seconds",
				Help:    "Batch run latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		xmlRegenerateTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "xml_regenerate_total",
				Help: "Total XML regenerations by result",
			},
			[]string{"result"},
		)
		xmlRegenerateLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "xml_regenerate_latency_seconds",
				Help:    "XML regeneration latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		paperExportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "paper_export_total",
				Help: "Total paper summary exports by format and result",
			},
			[]string{"format", "result"},
		)
		paperExportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "paper_export_latency_seconds",
				Help:    "Paper summary export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)

		slipsGenerated = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "slips_generated_total",
				Help: "Total slips generated across batch runs",
			},
		)
		slipsSkipped = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "slips_skipped_total",
				Help: "Total skipped eligibility records by reason",
			},
			[]string{"reason"},
		)

		prometheus.MustRegister(
			batchProcessTotal, batchProcessLatency,
			xmlRegenerateTotal, xmlRegenerateLatency,
			paperExportTotal, paperExportLatency,
			slipsGenerated, slipsSkipped,
		)

		if db != nil {
			registerTransmissionGauge(db, logger)
		}
	})
}

// ObserveBatchProcess records one batch run.
func ObserveBatchProcess(result string, d time.Duration) {
	if batchProcessTotal == nil {
		return
	}
	batchProcessTotal.WithLabelValues(result).Inc()
	batchProcessLatency.WithLabelValues(result).Observe(d.Seconds())
}

// ObserveXMLRegenerate records one regeneration attempt.
func ObserveXMLRegenerate(result string, d time.Duration) {
	if xmlRegenerateTotal == nil {
		return
	}
	xmlRegenerateTotal.WithLabelValues(result).Inc()
	xmlRegenerateLatency.WithLabelValues(result).Observe(d.Seconds())
}

// ObservePaperExport records one paper summary or workbook export.
func ObservePaperExport(format, result string, d time.Duration) {
	if paperExportTotal == nil {
		return
	}
	paperExportTotal.WithLabelValues(format, result).Inc()
	paperExportLatency.WithLabelValues(format, result).Observe(d.Seconds())
}

// AddSlipsGenerated counts generated slips.
func AddSlipsGenerated(n int) {
	if slipsGenerated == nil || n <= 0 {
		return
	}
	slipsGenerated.Add(float64(n))
}

// IncSlipSkipped counts one skipped record by reason.
func IncSlipSkipped(reason string) {
	if slipsSkipped == nil {
		return
	}
	slipsSkipped.WithLabelValues(reason).Inc()
}

// registerTransmissionGauge exposes the count of transmissions stuck before
// validation as a DB-backed gauge, sampled at scrape time.
func registerTransmissionGauge(db *sql.DB, logger *log.Logger) {
	gauge := prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "transmissions_pending_validation",
			Help: "Transmissions generated but not yet validated",
		},
		func() float64 {
			var n int
			err := db.QueryRow(`
SELECT COUNT(*) FROM rl24_transmissions WHERE status = 'generated'`).Scan(&n)
			if err != nil {
				if logger != nil {
					logger.Printf("metrics: transmission gauge query: %v", err)
				}
				return 0
			}
			return float64(n)
		},
	)
	prometheus.MustRegister(gauge)
}
