package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/updraft/internal/build"
	derrors "git.home.luguber.info/inful/updraft/internal/foundation/errors"
	"git.home.luguber.info/inful/updraft/internal/logfields"
	"git.home.luguber.info/inful/updraft/internal/store"
)

func (c *Coordinator) afterFunc(buildID string, d time.Duration) *time.Timer {
	return time.AfterFunc(d, func() { c.timeoutBuild(buildID) })
}

// startTimeout arms the per-build timer. If it fires before a terminal
// webhook arrives the coordinator itself forces failure; this is the one path
// where the coordinator, not the resolver, performs terminal resolution.
func (c *Coordinator) startTimeout(buildID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.timers[buildID] = c.afterFunc(buildID, c.opts.BuildTimeout)
}

// RecoverInFlight re-arms timeout enforcement for builds a previous process
// left in flight. Records and the lock row are durable but timers are not;
// without this a restart mid-build whose executor never calls back would hold
// the lock forever. Each non-terminal record gets a timer for the remainder
// of its window; builds already past it are failed immediately through the
// same atomic resolve the webhook uses, so a late webhook still cannot
// double-resolve. Called once at startup, before the server accepts requests.
func (c *Coordinator) RecoverInFlight(ctx context.Context) error {
	records, err := c.store.ListBuilds(ctx, "")
	if err != nil {
		return derrors.WrapError(err, derrors.CategoryStorage, "failed to list builds for recovery").Build()
	}
	for _, rec := range records {
		if rec.Status.IsTerminal() {
			continue
		}
		remaining := c.opts.BuildTimeout - time.Since(rec.CreatedAt)
		if remaining <= 0 {
			c.logger.Warn("expiring in-flight build from previous run",
				logfields.BuildID(rec.ID),
				logfields.Status(string(rec.Status)))
			c.timeoutBuild(rec.ID)
			continue
		}
		c.mu.Lock()
		c.timers[rec.ID] = c.afterFunc(rec.ID, remaining)
		c.mu.Unlock()
		c.logger.Info("re-armed timeout for in-flight build",
			logfields.BuildID(rec.ID),
			logfields.Status(string(rec.Status)),
			slog.Duration("remaining", remaining))
	}

	// A crash between lock acquisition and record creation leaves the lock
	// held for a build no record tracks; no timer can ever free it.
	holder, held, err := c.store.LockHolder(ctx)
	if err != nil {
		return derrors.WrapError(err, derrors.CategoryStorage, "failed to inspect build lock").Build()
	}
	if held {
		if _, err := c.store.GetBuild(ctx, holder); store.IsNotFound(err) {
			c.logger.Warn("releasing build lock with no backing record", logfields.BuildID(holder))
			if err := c.store.ReleaseLock(ctx); err != nil {
				return derrors.WrapError(err, derrors.CategoryStorage, "failed to release abandoned lock").Build()
			}
		}
	}
	return nil
}

// cancelTimeout stops and forgets the timer for a resolved build.
func (c *Coordinator) cancelTimeout(buildID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if t, ok := c.timers[buildID]; ok {
		t.Stop()
		delete(c.timers, buildID)
	}
}

// timeoutBuild forces a failed resolution through the same atomic store path
// the webhook uses, so a late-arriving webhook and the timer cannot both win.
func (c *Coordinator) timeoutBuild(buildID string) {
	ctx := context.Background()

	resolved, err := c.store.ResolveBuild(ctx, buildID, store.Resolution{
		Status: build.StatusFailed,
		Error:  fmt.Sprintf("build timed out after %s without a terminal result", c.opts.BuildTimeout),
	})
	if err != nil {
		c.logger.Error("timeout resolution failed",
			logfields.BuildID(buildID),
			logfields.Error(err))
		return
	}
	if !resolved {
		// The webhook got there first.
		return
	}

	c.recorder.IncBuildOutcome("timeout")
	c.logger.Warn("build timed out", logfields.BuildID(buildID))

	if rec, err := c.store.GetBuild(ctx, buildID); err == nil {
		c.publishStatus(rec, rec.Error)
	}

	c.mu.Lock()
	delete(c.timers, buildID)
	c.mu.Unlock()
}

// Stop cancels all outstanding timers; in-flight builds are left to the
// webhook or a restart.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for id, t := range c.timers {
		t.Stop()
		delete(c.timers, id)
	}
}
