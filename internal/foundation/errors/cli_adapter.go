package errors

import (
	"fmt"
	"log/slog"
)

// CLIErrorAdapter handles error presentation and exit code determination for the CLI.
type CLIErrorAdapter struct {
	verbose bool
	logger  *slog.Logger
}

// NewCLIErrorAdapter creates a new CLI error adapter.
func NewCLIErrorAdapter(verbose bool, logger *slog.Logger) *CLIErrorAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CLIErrorAdapter{
		verbose: verbose,
		logger:  logger,
	}
}

// ExitCodeFor determines the appropriate exit code for an error.
func (a *CLIErrorAdapter) ExitCodeFor(err error) int {
	if err == nil {
		return 0
	}

	if c, ok := AsClassified(err); ok {
		switch c.Category() {
		case CategoryValidation:
			return 2 // Invalid usage
		case CategoryConfig:
			return 7 // Configuration error
		case CategoryLockConflict:
			return 4 // Resource busy
		case CategoryBuild, CategoryExecutor, CategoryTimeout:
			return 11 // Build error
		case CategoryStorage:
			return 8 // Storage error
		case CategoryDaemon, CategoryRuntime:
			return 12 // Runtime error
		case CategoryInternal:
			return 10 // Internal error
		default:
			return 1
		}
	}

	return 1
}

// FormatError formats an error for user-friendly display.
func (a *CLIErrorAdapter) FormatError(err error) string {
	if err == nil {
		return ""
	}

	c, ok := AsClassified(err)
	if !ok {
		return err.Error()
	}

	if a.verbose {
		return c.Error()
	}
	return fmt.Sprintf("%s: %s", c.Category(), c.Message())
}
