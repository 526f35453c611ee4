package syncer

// Status is the final state recorded for one synced item.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusSkipped   Status = "skipped"
	StatusFailed    Status = "failed"
)

// Reporter receives progress events while a sync runs. The engine never
// prints anything itself; implementations decide how to render events.
type Reporter interface {
	// Stats announces how many files and bytes are pending before any
	// content is transferred.
	Stats(files int, totalBytes int64)
	// FileStarted fires once the server has answered and bytes are about
	// to flow. A non-zero offset means the server honored a resume from
	// that position; zero means the file is transferred from the start.
	FileStarted(path string, offset, size int64)
	// FileProgress fires after each chunk is written.
	FileProgress(path string, n int)
	// FileFinished fires once per attempted file with its final status.
	FileFinished(path string, status Status, err error)
}

// NopReporter discards all events.
type NopReporter struct{}

func (NopReporter) Stats(int, int64)                   {}
func (NopReporter) FileStarted(string, int64, int64)   {}
func (NopReporter) FileProgress(string, int)           {}
func (NopReporter) FileFinished(string, Status, error) {}
