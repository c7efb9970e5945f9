// Package metrics provides observability hooks for the build lifecycle and
// manifest serving paths. Components receive a Recorder through dependency
// injection; the default NoopRecorder keeps metrics optional with zero
// overhead.
package metrics

import "time"

// Recorder defines observability hooks for build and serving metrics.
// Implementations may forward to Prometheus, OpenTelemetry, etc.
type Recorder interface {
	IncSubmission()
	IncLockConflict()
	IncBuildOutcome(outcome string) // outcome: success|failed|timeout
	ObserveBuildDuration(d time.Duration)
	IncManifestRequest(platform string)
	IncWebhookReplay()
	IncAssetRequest()
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) IncSubmission()                   {}
func (NoopRecorder) IncLockConflict()                 {}
func (NoopRecorder) IncBuildOutcome(string)           {}
func (NoopRecorder) ObserveBuildDuration(time.Duration) {}
func (NoopRecorder) IncManifestRequest(string)        {}
func (NoopRecorder) IncWebhookReplay()                {}
func (NoopRecorder) IncAssetRequest()                 {}
