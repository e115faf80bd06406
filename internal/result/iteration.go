package result

import "time"

// Event is a timestamped free-form note attached to a result, typically an
// error message recorded by the runner's error handler.
type Event struct {
	Timestamp time.Time `yaml:"timestamp"`
	Message   string    `yaml:"message"`
}

type Metric struct {
	Name          string            `yaml:"name"`
	Value         any               `yaml:"value"`
	Units         string            `yaml:"units,omitempty"`
	LowerIsBetter bool              `yaml:"lower_is_better,omitempty"`
	Classifiers   map[string]string `yaml:"classifiers,omitempty"`
}

// IterationResult accumulates everything produced by one job: the final
// status, events recorded along the way, metrics and artifacts.
type IterationResult struct {
	SpecID          string
	Label           string
	Workload        string
	Iteration       int
	Retry           int
	Status          Status
	Events          []Event
	Metrics         []Metric
	Artifacts       []*Artifact
	OutputDirectory string
}

func NewIterationResult(specID, label, workload string) *IterationResult {
	return &IterationResult{
		SpecID:   specID,
		Label:    label,
		Workload: workload,
		Status:   StatusNotStarted,
	}
}

func (r *IterationResult) AddEvent(message string) {
	r.Events = append(r.Events, Event{Timestamp: time.Now().UTC(), Message: message})
}

func (r *IterationResult) AddMetric(m Metric) {
	r.Metrics = append(r.Metrics, m)
}

func (r *IterationResult) AddArtifact(a *Artifact) {
	r.Artifacts = append(r.Artifacts, a)
}
