package execution

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yungbote/workload-harness/internal/config"
	"github.com/yungbote/workload-harness/internal/device"
	"github.com/yungbote/workload-harness/internal/instrument"
	"github.com/yungbote/workload-harness/internal/platform/logger"
	"github.com/yungbote/workload-harness/internal/result"
	"github.com/yungbote/workload-harness/internal/signals"
)

func newTestInstruments(bus *signals.Bus) *instrument.Manager {
	return instrument.NewManager(bus, logger.Nop())
}

// stubDevice records every call and fails on demand.
type stubDevice struct {
	caps          map[string]bool
	connectErr    error
	startErr      error
	bootErr       func(opts device.BootOptions) error
	responsiveErr error
	calls         []string
	screenshots   []string
}

func newStubDevice() *stubDevice {
	return &stubDevice{caps: map[string]bool{}}
}

func (d *stubDevice) record(call string) { d.calls = append(d.calls, call) }

func (d *stubDevice) count(call string) int {
	n := 0
	for _, c := range d.calls {
		if c == call {
			n++
		}
	}
	return n
}

func (d *stubDevice) Name() string { return "stub" }

func (d *stubDevice) Connect(ctx context.Context) error {
	d.record("connect")
	return d.connectErr
}

func (d *stubDevice) Disconnect(ctx context.Context) error {
	d.record("disconnect")
	return nil
}

func (d *stubDevice) Initialize(ctx context.Context) error {
	d.record("initialize")
	return nil
}

func (d *stubDevice) Start(ctx context.Context) error {
	d.record("start")
	return d.startErr
}

func (d *stubDevice) Stop(ctx context.Context) error {
	d.record("stop")
	return nil
}

func (d *stubDevice) Boot(ctx context.Context, opts device.BootOptions) error {
	if opts.Hard {
		d.record("boot-hard")
	} else {
		d.record("boot")
	}
	if d.bootErr != nil {
		return d.bootErr(opts)
	}
	return nil
}

func (d *stubDevice) Flash(ctx context.Context, params map[string]any) error {
	d.record("flash")
	return nil
}

func (d *stubDevice) Can(capability string) bool { return d.caps[capability] }

func (d *stubDevice) ValidateRuntimeParameters(params map[string]any) error { return nil }

func (d *stubDevice) SetRuntimeParameters(ctx context.Context, params map[string]any) error {
	d.record("set-runtime-parameters")
	return nil
}

func (d *stubDevice) CheckResponsive(ctx context.Context) error {
	d.record("check-responsive")
	return d.responsiveErr
}

func (d *stubDevice) CaptureScreen(ctx context.Context, path string) error {
	d.record("capture-screen")
	d.screenshots = append(d.screenshots, path)
	return nil
}

func (d *stubDevice) Info(ctx context.Context) (*device.TargetInfo, error) {
	d.record("info")
	return &device.TargetInfo{Name: "stub", OS: "testos", Arch: "testarch"}, nil
}

// stubWorkload is a workload whose hooks are injectable. Hook invocations
// are counted so tests can assert that nothing runs after an abort.
type stubWorkload struct {
	name        string
	setupFn     func(ctx *Context) error
	runFn       func(ctx *Context) error
	updateFn    func(ctx *Context) error
	teardownFn  func(ctx *Context) error
	setupCalls  int
	runCalls    int
	updateCalls int
	tdCalls     int
	artifacts   []*result.Artifact
}

func newStubWorkload(name string) *stubWorkload { return &stubWorkload{name: name} }

func (w *stubWorkload) Name() string                      { return w.name }
func (w *stubWorkload) Validate() error                   { return nil }
func (w *stubWorkload) InitResources(ctx *Context) error  { return nil }
func (w *stubWorkload) Initialize(ctx *Context) error     { return nil }

func (w *stubWorkload) Setup(ctx *Context) error {
	w.setupCalls++
	if w.setupFn != nil {
		return w.setupFn(ctx)
	}
	return nil
}

func (w *stubWorkload) Run(ctx *Context) error {
	w.runCalls++
	if w.runFn != nil {
		return w.runFn(ctx)
	}
	return nil
}

func (w *stubWorkload) UpdateResult(ctx *Context) error {
	w.updateCalls++
	if w.updateFn != nil {
		return w.updateFn(ctx)
	}
	return nil
}

func (w *stubWorkload) Teardown(ctx *Context) error {
	w.tdCalls++
	if w.teardownFn != nil {
		return w.teardownFn(ctx)
	}
	return nil
}

func (w *stubWorkload) Finalize(ctx *Context) error { return nil }

func (w *stubWorkload) Artifacts() []*result.Artifact { return w.artifacts }

func testSpec(id string, iterations int, w Workload) *Spec {
	return &Spec{
		ID:         id,
		Label:      id,
		Iterations: iterations,
		Enabled:    true,
		Workload:   w,
	}
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		RunName:         "test",
		OutputDirectory: t.TempDir(),
		RetryOnStatus:   []result.Status{},
	}
}

// trace records every lifecycle event dispatched on the bus, in order.
type trace struct {
	events []string
}

func recordTrace(bus *signals.Bus) *trace {
	tr := &trace{}
	names := []signals.Name{
		signals.RunInit, signals.RunStart, signals.RunEnd, signals.RunFin,
		signals.WorkloadSpecStart, signals.WorkloadSpecEnd,
		signals.IterationStart, signals.IterationEnd,
		signals.WorkloadSetup, signals.WorkloadExecution,
		signals.WorkloadTeardown, signals.WorkloadResultUpdate,
		signals.OverallResultsProcessing,
		signals.Flashing, signals.Boot, signals.InitialBoot,
	}
	for _, n := range names {
		for _, ev := range []signals.Event{n.Before(), n.Successful(), n.After()} {
			ev := ev
			bus.Connect(ev, func(_, _ any) error {
				tr.events = append(tr.events, string(ev))
				return nil
			})
		}
	}
	return tr
}

// containsInOrder asserts that want appears in got as a subsequence.
func (tr *trace) containsInOrder(t *testing.T, want ...string) {
	t.Helper()
	i := 0
	for _, ev := range tr.events {
		if i < len(want) && ev == want[i] {
			i++
		}
	}
	require.Equal(t, len(want), i, "missing %q from trace (matched %d):\n%v", want, i, tr.events)
}

func (tr *trace) count(ev string) int {
	n := 0
	for _, e := range tr.events {
		if e == ev {
			n++
		}
	}
	return n
}

type harness struct {
	dev    *stubDevice
	cfg    *config.Config
	bus    *signals.Bus
	exctx  *Context
	runner *Runner
	trace  *trace
	cancel context.CancelFunc
}

func newHarness(t *testing.T, cfg *config.Config, dev *stubDevice, specs ...*Spec) *harness {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	bus := signals.NewBus()
	tr := recordTrace(bus)
	exctx := NewContext(ctx, dev, cfg, bus, logger.Nop())
	require.NoError(t, exctx.Initialize())
	runner := NewRunner(exctx, newTestInstruments(bus), NewResultManager(logger.Nop()), ScheduleBySpec)
	runner.InitQueue(specs)
	return &harness{
		dev:    dev,
		cfg:    cfg,
		bus:    bus,
		exctx:  exctx,
		runner: runner,
		trace:  tr,
		cancel: cancel,
	}
}

func (h *harness) statuses() []result.Status {
	out := make([]result.Status, 0, len(h.exctx.RunResult.IterationResults))
	for _, ir := range h.exctx.RunResult.IterationResults {
		out = append(out, ir.Status)
	}
	return out
}

func requireFileExists(t *testing.T, dir, name string) {
	t.Helper()
	_, err := os.Stat(filepath.Join(dir, name))
	require.NoError(t, err, "expected %s under %s", name, dir)
}
