package coordinator

import (
	"context"
	"encoding/json"
	"time"

	"git.home.luguber.info/inful/updraft/internal/build"
	derrors "git.home.luguber.info/inful/updraft/internal/foundation/errors"
	"git.home.luguber.info/inful/updraft/internal/logfields"
	"git.home.luguber.info/inful/updraft/internal/manifest"
	"git.home.luguber.info/inful/updraft/internal/store"
)

// Resolve applies an executor-reported outcome to a build record. It is the
// only writer of terminal build state besides the timeout path, and both
// funnel through the store's atomic resolve. Replayed terminal deliveries are
// idempotent no-ops; intermediate phase reports advance the status forward.
func (c *Coordinator) Resolve(ctx context.Context, buildID string, outcome build.Outcome) error {
	if !outcome.Status.Valid() || outcome.Status == build.StatusPending {
		return derrors.ValidationError("unknown outcome status").
			WithContext("status", string(outcome.Status)).
			Build()
	}

	if !outcome.Status.IsTerminal() {
		return c.advancePhase(ctx, buildID, outcome.Status)
	}

	rec, err := c.store.GetBuild(ctx, buildID)
	if err != nil {
		if store.IsNotFound(err) {
			// Unknown build: the lock, if held, belongs to some other build
			// and must not be touched.
			return derrors.NotFoundError("unknown build").WithContext("build_id", buildID).Build()
		}
		return derrors.WrapError(err, derrors.CategoryStorage, "failed to load build record").Build()
	}

	res := store.Resolution{
		Status:      outcome.Status,
		Error:       outcome.Error,
		Assets:      outcome.Assets,
		CompletedAt: time.Now().UTC(),
	}
	if outcome.Status == build.StatusSuccess {
		staged := *rec
		staged.Assets = outcome.Assets
		m, err := manifest.Generate(&staged, normalizeStoredPlatform(rec.Platform), "")
		if err != nil {
			// A successful build with no servable launch bundle cannot keep
			// the success/manifest invariant; record it as a failure.
			res.Status = build.StatusFailed
			res.Error = err.Error()
			res.Assets = nil
		} else {
			raw, merr := json.Marshal(m)
			if merr != nil {
				return derrors.WrapError(merr, derrors.CategoryInternal, "failed to encode manifest").Build()
			}
			res.Manifest = raw
		}
	}

	resolved, err := c.store.ResolveBuild(ctx, buildID, res)
	if err != nil {
		if store.IsNotFound(err) {
			return derrors.NotFoundError("unknown build").WithContext("build_id", buildID).Build()
		}
		return derrors.WrapError(err, derrors.CategoryStorage, "failed to resolve build").Build()
	}
	if !resolved {
		// At-least-once delivery from the executor, or the timeout won the race.
		c.recorder.IncWebhookReplay()
		c.logger.Info("ignoring terminal outcome for already-terminal build",
			logfields.BuildID(buildID),
			logfields.Status(string(outcome.Status)))
		return nil
	}

	c.cancelTimeout(buildID)
	c.recorder.IncBuildOutcome(string(res.Status))
	c.recorder.ObserveBuildDuration(res.CompletedAt.Sub(rec.CreatedAt))

	rec.Status = res.Status
	c.publishStatus(rec, res.Error)
	c.logger.Info("build resolved",
		logfields.BuildID(buildID),
		logfields.Status(string(res.Status)),
		logfields.DurationMS(float64(res.CompletedAt.Sub(rec.CreatedAt).Milliseconds())))
	return nil
}

// advancePhase applies an intermediate phase report. Backward or stale
// transitions are ignored.
func (c *Coordinator) advancePhase(ctx context.Context, buildID string, status build.Status) error {
	advanced, err := c.store.AdvanceStatus(ctx, buildID, status)
	if err != nil {
		if store.IsNotFound(err) {
			return derrors.NotFoundError("unknown build").WithContext("build_id", buildID).Build()
		}
		return derrors.WrapError(err, derrors.CategoryStorage, "failed to advance build status").Build()
	}
	if !advanced {
		c.logger.Debug("ignoring stale phase report",
			logfields.BuildID(buildID),
			logfields.Status(string(status)))
		return nil
	}

	if rec, err := c.store.GetBuild(ctx, buildID); err == nil {
		c.publishStatus(rec, "")
	}
	c.logger.Info("build phase advanced",
		logfields.BuildID(buildID),
		logfields.Status(string(status)))
	return nil
}

// normalizeStoredPlatform picks the platform the stored manifest is generated
// for. The serving path re-normalizes per request.
func normalizeStoredPlatform(p build.Platform) build.Platform {
	if p == build.PlatformAndroid {
		return build.PlatformAndroid
	}
	return build.PlatformIOS
}
