package sync

// FileStatus is the terminal state of one file's sync attempt.
type FileStatus int

const (
	// StatusFailed means some step errored; other files are unaffected.
	StatusFailed FileStatus = iota
	// StatusUpToDate means the local hash matched the listing, no network.
	StatusUpToDate
	// StatusPatched means a delta was fetched, applied and persisted.
	StatusPatched
)

func (s FileStatus) String() string {
	switch s {
	case StatusUpToDate:
		return "up-to-date"
	case StatusPatched:
		return "patched"
	default:
		return "failed"
	}
}

// FileResult is the per-file summary reported at the end of a sync run.
type FileResult struct {
	Path      string
	Status    FileStatus
	OldSize   int
	NewSize   int
	PatchSize int
	Err       error
}
