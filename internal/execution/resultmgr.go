package execution

import (
	"github.com/yungbote/workload-harness/internal/errdefs"
	"github.com/yungbote/workload-harness/internal/platform/logger"
	"github.com/yungbote/workload-harness/internal/result"
)

// ResultProcessor transforms or exports collected results. AddResult is
// invoked once per finished iteration; ProcessRunResult once at the end of
// the run.
type ResultProcessor interface {
	Name() string
	Validate() error
	Initialize(ctx *Context) error
	AddResult(res *result.IterationResult, ctx *Context) error
	ProcessRunResult(res *result.RunResult, ctx *Context) error
	Finalize(ctx *Context) error
}

// ResultManager fans results out to the installed processors. A processor
// failure in AddResult, ProcessRunResult or Finalize is logged and does not
// stop the other processors or the run. A failure in Initialize is returned
// as is and ends run startup.
type ResultManager struct {
	log        *logger.Logger
	processors []ResultProcessor
}

func NewResultManager(log *logger.Logger) *ResultManager {
	return &ResultManager{log: log}
}

func (m *ResultManager) Install(p ResultProcessor) error {
	if p == nil {
		return errdefs.New(errdefs.KindConfig, "nil result processor")
	}
	for _, existing := range m.processors {
		if existing.Name() == p.Name() {
			return errdefs.Newf(errdefs.KindConfig, "result processor already installed: %s", p.Name())
		}
	}
	m.processors = append(m.processors, p)
	return nil
}

func (m *ResultManager) Validate() error {
	for _, p := range m.processors {
		if err := p.Validate(); err != nil {
			return errdefs.Wrap(errdefs.KindConfig, err)
		}
	}
	return nil
}

func (m *ResultManager) Initialize(ctx *Context) error {
	for _, p := range m.processors {
		if err := p.Initialize(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (m *ResultManager) AddResult(res *result.IterationResult, ctx *Context) error {
	for _, p := range m.processors {
		if err := p.AddResult(res, ctx); err != nil {
			m.log.Error("result processor failed to add result", "processor", p.Name(), "error", err)
		}
	}
	return nil
}

func (m *ResultManager) ProcessRunResult(res *result.RunResult, ctx *Context) error {
	for _, p := range m.processors {
		if err := p.ProcessRunResult(res, ctx); err != nil {
			m.log.Error("result processor failed to process run result", "processor", p.Name(), "error", err)
		}
	}
	return nil
}

func (m *ResultManager) Finalize(ctx *Context) {
	for _, p := range m.processors {
		if err := p.Finalize(ctx); err != nil {
			m.log.Error("result processor failed to finalize", "processor", p.Name(), "error", err)
		}
	}
}
