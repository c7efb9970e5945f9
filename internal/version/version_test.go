package version

import "testing"

func TestDefaultsPresent(t *testing.T) {
	// Unless overridden by ldflags, all three report "unknown" rather than
	// empty strings so log lines and the version command stay readable.
	for name, v := range map[string]string{
		"Version":   Version,
		"BuildTime": BuildTime,
		"GitCommit": GitCommit,
	} {
		if v == "" {
			t.Errorf("%s must never be empty", name)
		}
	}
}
