package execution

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/workload-harness/internal/config"
	"github.com/yungbote/workload-harness/internal/device"
	"github.com/yungbote/workload-harness/internal/errdefs"
	"github.com/yungbote/workload-harness/internal/instrument"
	"github.com/yungbote/workload-harness/internal/platform/logger"
	"github.com/yungbote/workload-harness/internal/result"
	"github.com/yungbote/workload-harness/internal/signals"
)

/*
Executor is the front door of the execution core. It receives a finalized
configuration and already-instantiated collaborators (device, workload
specs, instruments, result processors), builds the execution context, picks
the scheduler for the configured execution order, hands control to a Runner,
and prints the run summary.

Anything before the runner loop starts is fatal: a returned error means no
iteration ran and the process should exit non-zero. Iteration failures are
not errors at this level; they are statuses in the summary.
*/
type Executor struct {
	log *logger.Logger
	bus *signals.Bus

	// Resolver, when set, is invoked during context initialization.
	Resolver ResourceResolver

	errorLogged   bool
	warningLogged bool
}

func NewExecutor(bus *signals.Bus, log *logger.Logger) *Executor {
	return &Executor{log: log.With("component", "executor"), bus: bus}
}

func (e *Executor) Execute(ctx context.Context, cfg *config.Config, dev device.Device,
	specs []*Spec, instruments []instrument.Instrument, processors []ResultProcessor) error {

	e.connectDiagnostics()

	e.log.Info("initializing run")
	exctx := NewContext(ctx, dev, cfg, e.bus, e.log)
	exctx.Resolver = e.Resolver
	if err := exctx.Initialize(); err != nil {
		return err
	}
	if err := e.writeMetaArtifacts(cfg, exctx); err != nil {
		return err
	}

	e.log.Debug("installing instrumentation")
	mgr := instrument.NewManager(e.bus, e.log)
	for _, inst := range instruments {
		if err := mgr.Install(inst); err != nil {
			return err
		}
	}
	if err := mgr.Validate(); err != nil {
		return err
	}

	e.log.Debug("installing result processors")
	results := NewResultManager(e.log)
	for _, p := range processors {
		if err := results.Install(p); err != nil {
			return err
		}
	}
	if err := results.Validate(); err != nil {
		return err
	}

	e.log.Debug("initializing workload resources")
	for _, spec := range specs {
		if err := spec.Workload.InitResources(exctx); err != nil {
			return err
		}
		if err := spec.Workload.Validate(); err != nil {
			return errdefs.Wrap(errdefs.KindConfig, err)
		}
		if err := dev.ValidateRuntimeParameters(spec.RuntimeParameters); err != nil {
			return errdefs.Wrap(errdefs.KindConfig, err)
		}
	}

	if len(cfg.FlashingConfig) > 0 {
		if !dev.Can(device.CapFlash) {
			return errdefs.Newf(errdefs.KindConfig,
				"flashing_config specified for %s device that does not support flashing", dev.Name())
		}
		e.log.Debug("flashing the device")
		if err := dev.Flash(ctx, cfg.FlashingConfig); err != nil {
			return err
		}
	}

	schedule, err := e.selectSchedule(cfg)
	if err != nil {
		return err
	}

	e.log.Info("running workloads")
	runner := NewRunner(exctx, mgr, results, schedule)
	runner.InitQueue(specs)
	if err := runner.Run(); err != nil {
		return err
	}
	e.postamble(exctx)
	return nil
}

func (e *Executor) connectDiagnostics() {
	var errSub, warnSub *signals.Subscription
	errSub = e.bus.Connect(signals.ErrorLogged, func(_, _ any) error {
		e.errorLogged = true
		e.bus.Disconnect(errSub)
		return nil
	})
	warnSub = e.bus.Connect(signals.WarningLogged, func(_, _ any) error {
		e.warningLogged = true
		e.bus.Disconnect(warnSub)
		return nil
	})
}

// writeMetaArtifacts snapshots the finalized configuration into the meta
// directory, copies the agenda next to it, and registers the snapshot as a
// run artifact. (The agenda artifact itself is pre-registered by the
// context.)
func (e *Executor) writeMetaArtifacts(cfg *config.Config, exctx *Context) error {
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	cfgPath := filepath.Join(exctx.HostWorkingDirectory, "run_config.yaml")
	if err := os.WriteFile(cfgPath, raw, 0o644); err != nil {
		return err
	}
	if cfg.AgendaPath != "" {
		agenda, err := os.ReadFile(cfg.AgendaPath)
		if err != nil {
			return errdefs.Wrap(errdefs.KindConfig, err)
		}
		dst := filepath.Join(exctx.HostWorkingDirectory, filepath.Base(cfg.AgendaPath))
		if err := os.WriteFile(dst, agenda, 0o644); err != nil {
			return err
		}
	}
	return exctx.AddArtifact("run_config", cfgPath, result.ArtifactMeta, true,
		"Finalized configuration for the run.")
}

func (e *Executor) selectSchedule(cfg *config.Config) (ScheduleFunc, error) {
	if (cfg.ExecutionOrder == "" || cfg.ExecutionOrder == config.OrderByIteration) &&
		cfg.RebootPolicy.RebootOnEachSpec() {
		e.log.Warn("each_spec reboot policy with the default by_iteration execution order " +
			"is equivalent to each_iteration policy")
	}
	seed := int64(0)
	if cfg.ExecutionOrder == config.OrderRandom {
		if cfg.RandomSeed != nil {
			seed = *cfg.RandomSeed
		} else {
			seed = time.Now().UnixNano()
		}
		e.log.Info("using random execution order", "seed", seed)
	}
	return ScheduleForOrder(cfg.ExecutionOrder, seed)
}

// postamble summarises the run to the user.
func (e *Executor) postamble(exctx *Context) {
	counts := map[result.Status]int{}
	for _, ir := range exctx.RunResult.IterationResults {
		counts[ir.Status]++
	}
	total := 0
	for _, n := range exctx.JobIterationCounts {
		total += n
	}

	e.log.Info("done")
	e.log.Info("run duration: " + formatDuration(exctx.RunInfo.Duration))
	parts := make([]string, 0, len(counts))
	for _, status := range result.StatusValues {
		if n, ok := counts[status]; ok {
			parts = append(parts, fmt.Sprintf("%d %s", n, status))
		}
	}
	e.log.Info(fmt.Sprintf("ran a total of %d iterations: %s", total, strings.Join(parts, ", ")))
	e.log.Info("results can be found in " + exctx.RunOutputDirectory)

	if e.errorLogged {
		e.log.Warn("there were errors during execution")
		e.log.Warn("please see " + exctx.Config.LogFile())
	} else if e.warningLogged {
		e.log.Warn("there were warnings during execution")
		e.log.Warn("please see " + exctx.Config.LogFile())
	}
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	m := (d % time.Hour) / time.Minute
	s := (d % time.Minute) / time.Second
	switch {
	case h > 0:
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	case m > 0:
		return fmt.Sprintf("%dm %ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}
