// Package executor dispatches build jobs to a pluggable build executor. The
// executor runs out-of-process and reports progress and the terminal outcome
// only through the webhook callback URL carried in the job.
package executor

import (
	"context"
)

// Job is the descriptor handed to an executor. The executor is a black box:
// it fetches the archive, performs the build, and calls back.
type Job struct {
	BuildID        string `json:"buildId"`
	ProjectKey     string `json:"projectKey"`
	ArchiveURL     string `json:"archiveUrl"`
	CallbackURL    string `json:"callbackUrl"`
	Platform       string `json:"platform"`
	RuntimeVersion string `json:"runtimeVersion"`
}

// Executor performs the actual build given a job descriptor. Variants are
// swappable implementations selected by configuration.
type Executor interface {
	// Dispatch hands the job to the executor. It returns once the job is
	// accepted; completion arrives later via the callback URL.
	Dispatch(ctx context.Context, job Job) error

	// Name identifies the executor variant for logging.
	Name() string
}
