package app

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/joho/godotenv"

	"github.com/yungbote/workload-harness/internal/config"
	"github.com/yungbote/workload-harness/internal/device"
	"github.com/yungbote/workload-harness/internal/device/local"
	"github.com/yungbote/workload-harness/internal/errdefs"
	"github.com/yungbote/workload-harness/internal/execution"
	"github.com/yungbote/workload-harness/internal/instrument"
	_ "github.com/yungbote/workload-harness/internal/instrument/instruments"
	"github.com/yungbote/workload-harness/internal/platform/envutil"
	"github.com/yungbote/workload-harness/internal/platform/logger"
	"github.com/yungbote/workload-harness/internal/resultproc"
	"github.com/yungbote/workload-harness/internal/signals"
	"github.com/yungbote/workload-harness/internal/workload"
)

type App struct {
	Log         *logger.Logger
	Bus         *signals.Bus
	Cfg         *config.Config
	Device      device.Device
	Specs       []*execution.Spec
	Instruments []instrument.Instrument
	Processors  []execution.ResultProcessor
}

func New() (*App, error) {
	_ = godotenv.Load()

	agendaPath := envutil.Str("WH_AGENDA", "agenda.yaml")
	cfg, err := config.Load(agendaPath)
	if err != nil {
		return nil, fmt.Errorf("load agenda: %w", err)
	}
	if v := envutil.Str("WH_OUTPUT", ""); v != "" {
		cfg.OutputDirectory = v
	}
	if err := cfg.Finalize(); err != nil {
		return nil, fmt.Errorf("finalize config: %w", err)
	}

	// The run log lives inside the output directory, so the directory has
	// to exist before the logger opens its sinks.
	if err := os.MkdirAll(cfg.OutputDirectory, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	bus := signals.NewBus()
	logMode := envutil.Str("LOG_MODE", "development")
	log, err := logger.New(logMode, logger.WithBus(bus), logger.WithFile(cfg.LogFile()))
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	bus.BindLogger(log)

	dev, err := buildDevice(cfg, log)
	if err != nil {
		log.Sync()
		return nil, err
	}

	specs, err := buildSpecs(cfg)
	if err != nil {
		log.Sync()
		return nil, err
	}

	instruments, err := buildInstruments(cfg)
	if err != nil {
		log.Sync()
		return nil, err
	}

	processors, err := buildProcessors(cfg)
	if err != nil {
		log.Sync()
		return nil, err
	}

	return &App{
		Log:         log,
		Bus:         bus,
		Cfg:         cfg,
		Device:      dev,
		Specs:       specs,
		Instruments: instruments,
		Processors:  processors,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	defer a.Log.Sync()
	ex := execution.NewExecutor(a.Bus, a.Log)
	return ex.Execute(ctx, a.Cfg, a.Device, a.Specs, a.Instruments, a.Processors)
}

func buildDevice(cfg *config.Config, log *logger.Logger) (device.Device, error) {
	switch cfg.Device {
	case "", "local":
		return local.New(cfg.DeviceConfig, log), nil
	default:
		return nil, errdefs.Newf(errdefs.KindConfig, "unknown device %q", cfg.Device)
	}
}

func buildSpecs(cfg *config.Config) ([]*execution.Spec, error) {
	// A spec that does not name its own enable-set inherits every
	// configured instrument.
	defaultInstruments := make([]string, 0, len(cfg.Instrumentation))
	for name := range cfg.Instrumentation {
		defaultInstruments = append(defaultInstruments, name)
	}
	sort.Strings(defaultInstruments)

	specs := make([]*execution.Spec, 0, len(cfg.Workloads))
	for _, entry := range cfg.Workloads {
		w, err := workload.New(entry.Workload, entry.WorkloadParameters)
		if err != nil {
			return nil, errdefs.Wrap(errdefs.KindConfig, err)
		}
		instrumentation := entry.Instrumentation
		if instrumentation == nil {
			instrumentation = defaultInstruments
		}
		specs = append(specs, &execution.Spec{
			ID:                entry.ID,
			Label:             entry.Label,
			SectionID:         entry.Section,
			Iterations:        entry.Iterations,
			Enabled:           true,
			Workload:          w,
			RuntimeParameters: entry.RuntimeParameters,
			BootParameters:    entry.BootParameters,
			Flash:             entry.Flash,
			Instrumentation:   instrumentation,
		})
	}
	return specs, nil
}

func buildInstruments(cfg *config.Config) ([]instrument.Instrument, error) {
	names := make([]string, 0, len(cfg.Instrumentation))
	for name := range cfg.Instrumentation {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]instrument.Instrument, 0, len(names))
	for _, name := range names {
		inst, err := instrument.New(name, cfg.Instrumentation[name])
		if err != nil {
			return nil, errdefs.Wrap(errdefs.KindConfig, err)
		}
		out = append(out, inst)
	}
	return out, nil
}

func buildProcessors(cfg *config.Config) ([]execution.ResultProcessor, error) {
	names := make([]string, 0, len(cfg.ResultProcessors))
	for name := range cfg.ResultProcessors {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]execution.ResultProcessor, 0, len(names))
	for _, name := range names {
		p, err := resultproc.New(name, cfg.ResultProcessors[name])
		if err != nil {
			return nil, errdefs.Wrap(errdefs.KindConfig, err)
		}
		out = append(out, p)
	}
	return out, nil
}
