package services

import (
	"fmt"
	"strconv"
	"sync/atomic"

	"pkgsync/internal/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

/**
 * Counters describing what one sync run did
 * @description
 * - Registered on a private registry so tests and the CLI never collide
 *   with the default prometheus registry
 * - All methods are safe on a nil receiver, engines built without metrics
 *   simply skip accounting
 */
type SyncMetrics struct {
	registry           *prometheus.Registry
	archivesDownloaded prometheus.Counter
	archivesUploaded   prometheus.Counter
	archivesSkipped    prometheus.Counter
	hashMismatches     prometheus.Counter
	packagesExtracted  prometheus.Counter
	cacheInvalidations *prometheus.CounterVec
	requestCount       *prometheus.CounterVec
	requestDuration    *prometheus.HistogramVec

	totalRequests atomic.Int64
	errorRequests atomic.Int64
}

func NewSyncMetrics() *SyncMetrics {
	m := &SyncMetrics{
		registry: prometheus.NewRegistry(),
		archivesDownloaded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pkgsync_archives_downloaded_total",
			Help: "Archives transferred from the blob store into the tar cache",
		}),
		archivesUploaded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pkgsync_archives_uploaded_total",
			Help: "Archives published to content-addressed keys",
		}),
		archivesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pkgsync_archives_skipped_total",
			Help: "Archives already present with a matching hash",
		}),
		hashMismatches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pkgsync_hash_mismatches_total",
			Help: "Archives whose digest disagreed with the package descriptor",
		}),
		packagesExtracted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pkgsync_packages_extracted_total",
			Help: "Packages materialized into the destination tree",
		}),
		cacheInvalidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pkgsync_cache_invalidations_total",
			Help: "Untrusted descriptors that caused a destroy-and-rebuild",
		}, []string{"location"}),
		requestCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pkgsync_http_requests_total",
			Help: "Requests served by the blob mirror",
		}, []string{"path", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pkgsync_http_request_duration_seconds",
			Help:    "Duration of blob mirror requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"path"}),
	}
	m.registry.MustRegister(
		m.archivesDownloaded,
		m.archivesUploaded,
		m.archivesSkipped,
		m.hashMismatches,
		m.packagesExtracted,
		m.cacheInvalidations,
		m.requestCount,
		m.requestDuration,
	)
	return m
}

// Registry exposes the private registry for promhttp.
func (m *SyncMetrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *SyncMetrics) ArchiveDownloaded() {
	if m != nil {
		m.archivesDownloaded.Inc()
	}
}

func (m *SyncMetrics) ArchiveUploaded() {
	if m != nil {
		m.archivesUploaded.Inc()
	}
}

func (m *SyncMetrics) ArchiveSkipped() {
	if m != nil {
		m.archivesSkipped.Inc()
	}
}

func (m *SyncMetrics) HashMismatch() {
	if m != nil {
		m.hashMismatches.Inc()
	}
}

func (m *SyncMetrics) PackageExtracted() {
	if m != nil {
		m.packagesExtracted.Inc()
	}
}

// CacheInvalidated counts a discarded descriptor; location is "tar" or "dest".
func (m *SyncMetrics) CacheInvalidated(location string) {
	if m != nil {
		m.cacheInvalidations.WithLabelValues(location).Inc()
	}
}

/**
 * Record one HTTP request handled by the blob mirror
 * @param {string} path - Route pattern, "unknown" when unmatched
 * @param {int} status - Response status code
 * @param {float64} seconds - Handling time
 */
func (m *SyncMetrics) ObserveRequest(path string, status int, seconds float64) {
	if m == nil {
		return
	}
	m.requestCount.WithLabelValues(path, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(path).Observe(seconds)
	m.totalRequests.Add(1)
	if status >= 400 {
		m.errorRequests.Add(1)
	}
}

// 获取总请求数
func (m *SyncMetrics) TotalRequests() int64 {
	if m == nil {
		return 0
	}
	return m.totalRequests.Load()
}

// 获取错误请求数
func (m *SyncMetrics) ErrorRequests() int64 {
	if m == nil {
		return 0
	}
	return m.errorRequests.Load()
}

/**
 * Push the collected counters to a prometheus pushgateway
 * @param {string} pushGatewayAddr - Pushgateway URL, empty disables pushing
 * @param {string} job - Job label of the pushed group
 * @returns {error} Returns error if the push fails
 */
func (m *SyncMetrics) Push(pushGatewayAddr, job string) error {
	if m == nil || pushGatewayAddr == "" {
		return nil
	}
	logger.Debugf("Pushing metrics to %s (job %s)", pushGatewayAddr, job)
	if err := push.New(pushGatewayAddr, job).Gatherer(m.registry).Push(); err != nil {
		return fmt.Errorf("push metrics to '%s': %w", pushGatewayAddr, err)
	}
	return nil
}
