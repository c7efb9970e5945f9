package executor

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"

	"git.home.luguber.info/inful/updraft/internal/logfields"
)

// ScriptExecutor launches a local command for each build job. Intended for
// development and self-hosted single-machine setups; the script receives the
// job through UPDRAFT_* environment variables and reports back over the
// callback URL like any other executor.
type ScriptExecutor struct {
	command string
	args    []string
}

// NewScriptExecutor creates an executor that runs the given command.
func NewScriptExecutor(command string, args ...string) *ScriptExecutor {
	return &ScriptExecutor{command: command, args: args}
}

// Name identifies the executor variant.
func (e *ScriptExecutor) Name() string { return "script" }

// Dispatch starts the command and returns without waiting for it. The process
// outcome is observed only through the webhook; a non-zero exit without a
// callback is caught by the coordinator's build timeout.
func (e *ScriptExecutor) Dispatch(ctx context.Context, job Job) error {
	cmd := exec.Command(e.command, e.args...)
	cmd.Env = append(os.Environ(),
		"UPDRAFT_BUILD_ID="+job.BuildID,
		"UPDRAFT_PROJECT_KEY="+job.ProjectKey,
		"UPDRAFT_ARCHIVE_URL="+job.ArchiveURL,
		"UPDRAFT_CALLBACK_URL="+job.CallbackURL,
		"UPDRAFT_PLATFORM="+job.Platform,
		"UPDRAFT_RUNTIME_VERSION="+job.RuntimeVersion,
	)

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", e.command, err)
	}

	go func() {
		if err := cmd.Wait(); err != nil {
			slog.Warn("build script exited with error",
				logfields.BuildID(job.BuildID),
				logfields.Error(err))
		}
	}()
	return nil
}
