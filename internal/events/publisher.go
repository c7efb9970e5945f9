// Package events publishes build lifecycle transitions for external consumers.
package events

import (
	"time"

	"git.home.luguber.info/inful/updraft/internal/build"
)

// StatusEvent is emitted whenever a build record changes status.
type StatusEvent struct {
	BuildID    string       `json:"buildId"`
	ProjectKey string       `json:"projectKey"`
	Status     build.Status `json:"status"`
	Error      string       `json:"error,omitempty"`
	Timestamp  time.Time    `json:"timestamp"`
}

// Publisher emits build status events. Publishing is best-effort; delivery
// failures must never affect the build lifecycle itself.
type Publisher interface {
	PublishStatus(event StatusEvent)
	Close()
}

// NoopPublisher discards all events. Used when no event bus is configured.
type NoopPublisher struct{}

func (NoopPublisher) PublishStatus(StatusEvent) {}
func (NoopPublisher) Close()                    {}
