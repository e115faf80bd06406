package result

import (
	"time"

	"github.com/google/uuid"
)

// RunInfo is the identity and timing record for one harness run.
type RunInfo struct {
	UUID             uuid.UUID
	RunName          string
	StartTime        time.Time
	EndTime          time.Time
	Duration         time.Duration
	DeviceProperties map[string]string
}

func NewRunInfo(runName string) *RunInfo {
	return &RunInfo{
		UUID:    uuid.New(),
		RunName: runName,
	}
}

// RunResult is the top-level result for a run: iteration results in
// completion order plus run-scoped metrics and artifacts.
type RunResult struct {
	Info               *RunInfo
	OutputDirectory    string
	IterationResults   []*IterationResult
	Metrics            []Metric
	Artifacts          []*Artifact
	NonIterationErrors bool
}

func NewRunResult(info *RunInfo, outputDirectory string) *RunResult {
	return &RunResult{Info: info, OutputDirectory: outputDirectory}
}

func (r *RunResult) AddMetric(m Metric) {
	r.Metrics = append(r.Metrics, m)
}
