// Package metrics provides Prometheus metrics for mchostdns.
//
// The binary runs as a short-lived hook, so collectors live on a private
// registry that is written out in node_exporter textfile format instead of
// being scraped.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Namespace prefixes every metric name.
const Namespace = "mchostdns"

// Registry holds all mchostdns collectors.
var Registry = prometheus.NewRegistry()

var (
	// BuildInfo exposes version information as labels with a constant value of 1.
	BuildInfo = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "build_info",
		Help:      "Build information.",
	}, []string{"version", "go_version"})

	// APIRequestsTotal counts control panel requests by operation and outcome.
	APIRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "api_requests_total",
		Help:      "Control panel requests by operation and status.",
	}, []string{"operation", "status"})

	// APIRequestDuration observes control panel request latency.
	APIRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "api_request_duration_seconds",
		Help:      "Control panel request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})

	// RecordsCreatedTotal counts TXT records created.
	RecordsCreatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "records_created_total",
		Help:      "TXT records created.",
	})

	// RecordsDeletedTotal counts TXT records deleted.
	RecordsDeletedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "records_deleted_total",
		Help:      "TXT records deleted.",
	})

	// RecordsMissingTotal counts cleanups that found no record to delete.
	RecordsMissingTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "records_missing_total",
		Help:      "Cleanups of TXT records that were already absent.",
	})

	// ZoneCacheHitsTotal counts zone id lookups served from cache.
	ZoneCacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "zone_cache_hits_total",
		Help:      "Zone id lookups served from cache.",
	})

	// ReauthenticationsTotal counts logins repeated after a lost session.
	ReauthenticationsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "reauthentications_total",
		Help:      "Logins repeated after the session was lost.",
	})

	// PropagationDuration observes how long TXT records took to become visible.
	PropagationDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "propagation_duration_seconds",
		Help:      "Time until a TXT record was visible on all nameservers.",
		Buckets:   []float64{1, 5, 10, 30, 60, 120, 300},
	})
)

func init() {
	Registry.MustRegister(
		BuildInfo,
		APIRequestsTotal,
		APIRequestDuration,
		RecordsCreatedTotal,
		RecordsDeletedTotal,
		RecordsMissingTotal,
		ZoneCacheHitsTotal,
		ReauthenticationsTotal,
		PropagationDuration,
	)
}

// SetBuildInfo records the running version.
func SetBuildInfo(version, goVersion string) {
	BuildInfo.WithLabelValues(version, goVersion).Set(1)
}

// ObserveRequest records one control panel request.
func ObserveRequest(operation string, seconds float64, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	APIRequestsTotal.WithLabelValues(operation, status).Inc()
	APIRequestDuration.WithLabelValues(operation).Observe(seconds)
}

// WriteTextfile atomically writes all metrics to path in the text exposition format.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, Registry); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}
