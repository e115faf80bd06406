package workload

import (
	"fmt"
	"time"

	"github.com/yungbote/workload-harness/internal/execution"
	"github.com/yungbote/workload-harness/internal/result"
)

func init() {
	MustRegister("idle", newIdle)
}

// idle keeps the device session open for a fixed duration without driving
// any load. Useful for baseline measurements and smoke runs.
type idle struct {
	duration time.Duration
	started  time.Time
}

func newIdle(params map[string]any) (execution.Workload, error) {
	w := &idle{duration: 5 * time.Second}
	if raw, ok := params["duration"]; ok {
		switch v := raw.(type) {
		case string:
			d, err := time.ParseDuration(v)
			if err != nil {
				return nil, fmt.Errorf("idle: bad duration %q: %w", v, err)
			}
			w.duration = d
		case int:
			w.duration = time.Duration(v) * time.Second
		case float64:
			w.duration = time.Duration(v * float64(time.Second))
		default:
			return nil, fmt.Errorf("idle: bad duration type %T", raw)
		}
	}
	return w, nil
}

func (w *idle) Name() string { return "idle" }

func (w *idle) Validate() error {
	if w.duration <= 0 {
		return fmt.Errorf("idle: duration must be positive, got %s", w.duration)
	}
	return nil
}

func (w *idle) InitResources(ctx *execution.Context) error { return nil }
func (w *idle) Initialize(ctx *execution.Context) error    { return nil }

func (w *idle) Setup(ctx *execution.Context) error {
	w.started = time.Time{}
	return nil
}

func (w *idle) Run(ctx *execution.Context) error {
	w.started = time.Now()
	select {
	case <-time.After(w.duration):
		return nil
	case <-ctx.Ctx.Done():
		return ctx.Ctx.Err()
	}
}

func (w *idle) UpdateResult(ctx *execution.Context) error {
	ctx.AddMetric(result.Metric{
		Name:          "idle_duration",
		Value:         time.Since(w.started).Seconds(),
		Units:         "seconds",
		LowerIsBetter: false,
	})
	return nil
}

func (w *idle) Teardown(ctx *execution.Context) error { return nil }
func (w *idle) Finalize(ctx *execution.Context) error { return nil }

func (w *idle) Artifacts() []*result.Artifact { return nil }
