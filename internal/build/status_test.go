package build

import "testing"

func TestStatusValid(t *testing.T) {
	for _, s := range []Status{StatusPending, StatusDownloading, StatusInstalling, StatusBuilding, StatusUploading, StatusSuccess, StatusFailed} {
		if !s.Valid() {
			t.Errorf("status %q should be valid", s)
		}
	}
	if Status("queued").Valid() {
		t.Error("unknown status should be invalid")
	}
}

func TestIsTerminal(t *testing.T) {
	if !StatusSuccess.IsTerminal() || !StatusFailed.IsTerminal() {
		t.Error("success and failed are terminal")
	}
	if StatusPending.IsTerminal() || StatusUploading.IsTerminal() {
		t.Error("non-terminal statuses misreported as terminal")
	}
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusDownloading, true},
		{StatusPending, StatusSuccess, true},
		{StatusDownloading, StatusBuilding, true},
		{StatusBuilding, StatusDownloading, false},
		{StatusBuilding, StatusBuilding, false},
		{StatusUploading, StatusFailed, true},
		{StatusPending, StatusFailed, true},
		{StatusSuccess, StatusFailed, false},
		{StatusFailed, StatusSuccess, false},
		{StatusFailed, StatusDownloading, false},
		{StatusPending, Status("bogus"), false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransition(tc.to); got != tc.want {
			t.Errorf("CanTransition(%q -> %q) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestPlatformValid(t *testing.T) {
	for _, p := range []Platform{PlatformIOS, PlatformAndroid, PlatformAll} {
		if !p.Valid() {
			t.Errorf("platform %q should be valid", p)
		}
	}
	if Platform("windows").Valid() {
		t.Error("unknown platform should be invalid")
	}
}
