package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	registry         *prom.Registry
	submissions      prom.Counter
	lockConflicts    prom.Counter
	buildOutcomes    *prom.CounterVec
	buildDuration    prom.Histogram
	manifestRequests *prom.CounterVec
	webhookReplays   prom.Counter
	assetRequests    prom.Counter
}

// NewPrometheusRecorder constructs and registers Prometheus metrics on the
// given registry.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		registry: reg,
		submissions: prom.NewCounter(prom.CounterOpts{
			Namespace: "updraft",
			Name:      "build_submissions_total",
			Help:      "Accepted build submissions",
		}),
		lockConflicts: prom.NewCounter(prom.CounterOpts{
			Namespace: "updraft",
			Name:      "build_lock_conflicts_total",
			Help:      "Submissions rejected because a build was already in flight",
		}),
		buildOutcomes: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "updraft",
			Name:      "build_outcomes_total",
			Help:      "Build outcomes by terminal status",
		}, []string{"outcome"}),
		buildDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: "updraft",
			Name:      "build_duration_seconds",
			Help:      "Wall time from submission to terminal resolution",
			Buckets:   prom.ExponentialBuckets(1, 2, 12),
		}),
		manifestRequests: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "updraft",
			Name:      "manifest_requests_total",
			Help:      "Manifest fetches by requested platform",
		}, []string{"platform"}),
		webhookReplays: prom.NewCounter(prom.CounterOpts{
			Namespace: "updraft",
			Name:      "webhook_replays_total",
			Help:      "Webhook deliveries for builds already in a terminal state",
		}),
		assetRequests: prom.NewCounter(prom.CounterOpts{
			Namespace: "updraft",
			Name:      "asset_requests_total",
			Help:      "Asset fetches served from the blob store",
		}),
	}
	reg.MustRegister(pr.submissions, pr.lockConflicts, pr.buildOutcomes,
		pr.buildDuration, pr.manifestRequests, pr.webhookReplays, pr.assetRequests)
	return pr
}

// Registry returns the registry the recorder's collectors are registered on.
func (p *PrometheusRecorder) Registry() *prom.Registry {
	return p.registry
}

func (p *PrometheusRecorder) IncSubmission() {
	if p == nil {
		return
	}
	p.submissions.Inc()
}

func (p *PrometheusRecorder) IncLockConflict() {
	if p == nil {
		return
	}
	p.lockConflicts.Inc()
}

func (p *PrometheusRecorder) IncBuildOutcome(outcome string) {
	if p == nil {
		return
	}
	p.buildOutcomes.WithLabelValues(outcome).Inc()
}

func (p *PrometheusRecorder) ObserveBuildDuration(d time.Duration) {
	if p == nil {
		return
	}
	p.buildDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncManifestRequest(platform string) {
	if p == nil {
		return
	}
	p.manifestRequests.WithLabelValues(platform).Inc()
}

func (p *PrometheusRecorder) IncWebhookReplay() {
	if p == nil {
		return
	}
	p.webhookReplays.Inc()
}

func (p *PrometheusRecorder) IncAssetRequest() {
	if p == nil {
		return
	}
	p.assetRequests.Inc()
}
