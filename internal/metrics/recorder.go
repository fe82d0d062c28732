// Package metrics records parse, build and worker pool outcomes.
//
// Callers depend on the Recorder interface; NoopRecorder is the default and
// PrometheusRecorder exports the same events as Prometheus series.
package metrics

import "time"

// ResultLabel is the outcome label of a recorded operation.
type ResultLabel string

const (
	ResultSuccess ResultLabel = "success"
	ResultWarning ResultLabel = "warning"
	ResultFailed  ResultLabel = "failed"
)

// ResultOf maps an error and a warning count to a label.
func ResultOf(err error, warnings int) ResultLabel {
	switch {
	case err != nil:
		return ResultFailed
	case warnings > 0:
		return ResultWarning
	}
	return ResultSuccess
}

// Recorder receives pipeline events.
type Recorder interface {
	ObserveStageDuration(stage string, d time.Duration)
	IncOperation(op string, result ResultLabel)
	AddUnits(op string, n int)
	IncSectionFailure()
	IncResourcesRemoved(n int)
	IncPoolItem(pool string, result ResultLabel)
}

// NoopRecorder is a Recorder that does nothing (default when metrics are not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveStageDuration(string, time.Duration) {}
func (NoopRecorder) IncOperation(string, ResultLabel)           {}
func (NoopRecorder) AddUnits(string, int)                       {}
func (NoopRecorder) IncSectionFailure()                         {}
func (NoopRecorder) IncResourcesRemoved(int)                    {}
func (NoopRecorder) IncPoolItem(string, ResultLabel)            {}

// OrNoop returns r, or a NoopRecorder when r is nil.
func OrNoop(r Recorder) Recorder {
	if r == nil {
		return NoopRecorder{}
	}
	return r
}
