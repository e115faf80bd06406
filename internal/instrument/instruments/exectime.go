package instruments

import (
	"fmt"
	"time"

	"github.com/yungbote/workload-harness/internal/execution"
	"github.com/yungbote/workload-harness/internal/instrument"
	"github.com/yungbote/workload-harness/internal/result"
	"github.com/yungbote/workload-harness/internal/signals"
)

func init() {
	instrument.Register("execution_time", func(params map[string]any) (instrument.Instrument, error) {
		_ = params
		return &executionTime{}, nil
	})
}

// executionTime measures wall-clock time per iteration from the iteration
// start/end signals and records it as a metric on the current result.
type executionTime struct {
	start time.Time
}

func (t *executionTime) Name() string { return "execution_time" }

func (t *executionTime) Validate() error { return nil }

func (t *executionTime) Install(m *instrument.Manager) error {
	m.Connect(t, signals.IterationStart.Before(), func(_, payload any) error {
		t.start = time.Now()
		return nil
	})
	m.Connect(t, signals.IterationEnd.After(), func(_, payload any) error {
		ctx, ok := payload.(*execution.Context)
		if !ok {
			return fmt.Errorf("execution_time: unexpected payload %T", payload)
		}
		if t.start.IsZero() {
			return nil
		}
		ctx.AddMetric(result.Metric{
			Name:          "execution_time",
			Value:         time.Since(t.start).Seconds(),
			Units:         "seconds",
			LowerIsBetter: true,
		})
		t.start = time.Time{}
		return nil
	})
	return nil
}
