package build

// Status represents the lifecycle phase of a build. Phases are strictly
// forward-moving; a record never revisits an earlier phase.
type Status string

const (
	StatusPending     Status = "pending"
	StatusDownloading Status = "downloading"
	StatusInstalling  Status = "installing"
	StatusBuilding    Status = "building"
	StatusUploading   Status = "uploading"
	StatusSuccess     Status = "success"
	StatusFailed      Status = "failed"
)

// statusRank orders phases for forward-only transition checks. Terminal states
// share the highest rank so neither can replace the other.
var statusRank = map[Status]int{
	StatusPending:     0,
	StatusDownloading: 1,
	StatusInstalling:  2,
	StatusBuilding:    3,
	StatusUploading:   4,
	StatusSuccess:     5,
	StatusFailed:      5,
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	_, ok := statusRank[s]
	return ok
}

// IsTerminal reports whether s is a terminal status.
func (s Status) IsTerminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

// CanTransition reports whether a record in status s may move to next.
// Failure is reachable from any non-terminal phase.
func (s Status) CanTransition(next Status) bool {
	if !s.Valid() || !next.Valid() {
		return false
	}
	if s.IsTerminal() {
		return false
	}
	if next == StatusFailed {
		return true
	}
	return statusRank[next] > statusRank[s]
}
