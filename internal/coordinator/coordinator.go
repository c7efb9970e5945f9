// Package coordinator owns the build lifecycle: the single-flight lock,
// dispatch to the executor, webhook resolution, and timeout enforcement.
package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/updraft/internal/blob"
	"git.home.luguber.info/inful/updraft/internal/build"
	derrors "git.home.luguber.info/inful/updraft/internal/foundation/errors"
	"git.home.luguber.info/inful/updraft/internal/events"
	"git.home.luguber.info/inful/updraft/internal/executor"
	"git.home.luguber.info/inful/updraft/internal/logfields"
	"git.home.luguber.info/inful/updraft/internal/metrics"
	"git.home.luguber.info/inful/updraft/internal/store"
)

// DefaultBuildTimeout bounds how long a dispatched build may run without a
// terminal webhook before the coordinator forces failure.
const DefaultBuildTimeout = 15 * time.Minute

// ArchiveContentType is the content type of submitted source archives.
const ArchiveContentType = "application/gzip"

// Options configures a Coordinator.
type Options struct {
	// PublicBaseURL is the externally reachable base URL of this server,
	// used for the executor's callback and archive URLs.
	PublicBaseURL string

	// BuildTimeout overrides DefaultBuildTimeout when positive.
	BuildTimeout time.Duration
}

// Coordinator enforces single-flight build execution and correlates the
// executor's asynchronous outcome back to the build record. The dispatch and
// the resolution are independent operations correlated only by build id.
type Coordinator struct {
	store    store.Store
	blobs    blob.Store
	exec     executor.Executor
	events   events.Publisher
	recorder metrics.Recorder
	logger   *slog.Logger
	opts     Options

	mu     sync.Mutex
	timers map[string]*time.Timer
}

// New constructs a Coordinator. events and recorder may be nil.
func New(st store.Store, blobs blob.Store, exec executor.Executor, pub events.Publisher, rec metrics.Recorder, opts Options) *Coordinator {
	if pub == nil {
		pub = events.NoopPublisher{}
	}
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	if opts.BuildTimeout <= 0 {
		opts.BuildTimeout = DefaultBuildTimeout
	}
	return &Coordinator{
		store:    st,
		blobs:    blobs,
		exec:     exec,
		events:   pub,
		recorder: rec,
		logger:   slog.Default(),
		opts:     opts,
		timers:   make(map[string]*time.Timer),
	}
}

// SubmitRequest carries one build submission.
type SubmitRequest struct {
	ProjectKey     string
	Platform       build.Platform
	RuntimeVersion string
	Source         build.SourceConfig
	Archive        []byte
}

// Submit validates the request, acquires the build lock, persists the archive
// and a pending record, and dispatches the job asynchronously. It returns
// LockConflictError without queueing when a build is already in flight.
func (c *Coordinator) Submit(ctx context.Context, req SubmitRequest) (*build.Record, error) {
	// Validation strictly precedes any lock interaction.
	if err := validateSubmit(req); err != nil {
		return nil, err
	}
	platform := req.Platform
	if platform == "" {
		platform = build.PlatformAll
	}

	id := uuid.NewString()

	acquired, err := c.store.TryAcquireLock(ctx, id)
	if err != nil {
		return nil, derrors.WrapError(err, derrors.CategoryStorage, "failed to acquire build lock").Build()
	}
	if !acquired {
		c.recorder.IncLockConflict()
		holder, _, _ := c.store.LockHolder(ctx)
		return nil, derrors.LockConflictError("a build is already in flight").
			WithContext("in_flight_build_id", holder).
			Build()
	}

	// From here on a failure must hand the lock back before returning.
	rec, err := c.createPending(ctx, id, platform, req)
	if err != nil {
		if rerr := c.store.ReleaseLock(ctx); rerr != nil {
			c.logger.Error("failed to release lock after submit failure", logfields.Error(rerr))
		}
		return nil, err
	}

	c.startTimeout(id)
	go c.dispatch(id, rec)

	c.recorder.IncSubmission()
	c.publishStatus(rec, "")
	c.logger.Info("build submitted",
		logfields.BuildID(id),
		logfields.Project(rec.ProjectKey),
		logfields.Platform(string(rec.Platform)),
		logfields.Executor(c.exec.Name()))
	return rec, nil
}

func (c *Coordinator) createPending(ctx context.Context, id string, platform build.Platform, req SubmitRequest) (*build.Record, error) {
	if err := c.blobs.Put(ctx, ArchivePath(id), req.Archive); err != nil {
		return nil, derrors.WrapError(err, derrors.CategoryStorage, "failed to persist archive").Build()
	}

	now := time.Now().UTC()
	rec := &build.Record{
		ID:             id,
		ProjectKey:     req.ProjectKey,
		Status:         build.StatusPending,
		Platform:       platform,
		RuntimeVersion: req.RuntimeVersion,
		CreatedAt:      now,
		UpdatedAt:      now,
		Source:         req.Source,
	}
	if err := c.store.PutBuild(ctx, rec); err != nil {
		return nil, derrors.WrapError(err, derrors.CategoryStorage, "failed to persist build record").Build()
	}
	return rec, nil
}

// dispatch hands the job to the executor. A dispatch failure resolves the
// build as failed immediately; there is no executor to wait for.
func (c *Coordinator) dispatch(id string, rec *build.Record) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	job := executor.Job{
		BuildID:        id,
		ProjectKey:     rec.ProjectKey,
		ArchiveURL:     c.opts.PublicBaseURL + "/api/archives/" + id,
		CallbackURL:    c.opts.PublicBaseURL + "/api/webhook/builds/" + id,
		Platform:       string(rec.Platform),
		RuntimeVersion: rec.RuntimeVersion,
	}
	if err := c.exec.Dispatch(ctx, job); err != nil {
		c.logger.Error("executor dispatch failed",
			logfields.BuildID(id),
			logfields.Executor(c.exec.Name()),
			logfields.Error(err))
		rerr := c.Resolve(context.Background(), id, build.Outcome{
			Status: build.StatusFailed,
			Error:  fmt.Sprintf("executor dispatch failed: %v", err),
		})
		if rerr != nil {
			c.logger.Error("failed to resolve build after dispatch failure",
				logfields.BuildID(id), logfields.Error(rerr))
		}
	}
}

// GetBuild returns the full build record.
func (c *Coordinator) GetBuild(ctx context.Context, id string) (*build.Record, error) {
	rec, err := c.store.GetBuild(ctx, id)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, derrors.NotFoundError("unknown build").WithContext("build_id", id).Build()
		}
		return nil, derrors.WrapError(err, derrors.CategoryStorage, "failed to load build record").Build()
	}
	return rec, nil
}

// ListBuilds returns records ordered newest-created-first, optionally
// filtered by project key.
func (c *Coordinator) ListBuilds(ctx context.Context, projectKey string) ([]*build.Record, error) {
	records, err := c.store.ListBuilds(ctx, projectKey)
	if err != nil {
		return nil, derrors.WrapError(err, derrors.CategoryStorage, "failed to list build records").Build()
	}
	return records, nil
}

// ArchivePath is the blob path of a build's submitted archive.
func ArchivePath(id string) string {
	return "archives/" + id + ".tar.gz"
}

// AssetPrefix is the blob path prefix holding all of a build's output assets.
func AssetPrefix(id string) string {
	return "builds/" + id
}

// AssetPath is the blob path of a build output asset.
func AssetPath(id, key string) string {
	return AssetPrefix(id) + "/" + key
}

func validateSubmit(req SubmitRequest) error {
	if req.ProjectKey == "" {
		return derrors.ValidationError("project key is required").Build()
	}
	if req.Source.Name == "" || req.Source.Slug == "" {
		return derrors.ValidationError("source application metadata requires name and slug").
			WithContext("name", req.Source.Name).
			WithContext("slug", req.Source.Slug).
			Build()
	}
	if req.Platform != "" && !req.Platform.Valid() {
		return derrors.ValidationError("unknown platform target").
			WithContext("platform", string(req.Platform)).
			Build()
	}
	if len(req.Archive) == 0 {
		return derrors.ValidationError("archive payload is empty").Build()
	}
	return nil
}

func (c *Coordinator) publishStatus(rec *build.Record, errMsg string) {
	c.events.PublishStatus(events.StatusEvent{
		BuildID:    rec.ID,
		ProjectKey: rec.ProjectKey,
		Status:     rec.Status,
		Error:      errMsg,
		Timestamp:  time.Now().UTC(),
	})
}
