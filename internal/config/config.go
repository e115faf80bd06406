package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/workload-harness/internal/errdefs"
	"github.com/yungbote/workload-harness/internal/result"
)

// ExecutionOrder selects the scheduler policy used to turn workload entries
// into the flat job queue.
type ExecutionOrder string

const (
	OrderByIteration ExecutionOrder = "by_iteration"
	OrderBySpec      ExecutionOrder = "by_spec"
	OrderClassic     ExecutionOrder = "classic"
	OrderBySection   ExecutionOrder = "by_section"
	OrderRandom      ExecutionOrder = "random"
)

// WorkloadEntry is one workload stanza from the agenda.
type WorkloadEntry struct {
	ID                 string         `yaml:"id"`
	Label              string         `yaml:"label"`
	Section            string         `yaml:"section"`
	Workload           string         `yaml:"workload"`
	Iterations         int            `yaml:"iterations"`
	WorkloadParameters map[string]any `yaml:"workload_parameters"`
	RuntimeParameters  map[string]any `yaml:"runtime_parameters"`
	BootParameters     map[string]any `yaml:"boot_parameters"`
	Flash              map[string]any `yaml:"flash"`
	Instrumentation    []string       `yaml:"instrumentation"`
}

/*
Config is the finalized run configuration consumed by the execution core.

It is assembled from the agenda file plus environment overrides in the app
layer, then Finalize()d exactly once. After finalization the core treats it
as read-only; the only mutable run state lives on the execution context.
*/
type Config struct {
	RunName          string                    `yaml:"run_name"`
	ExecutionOrder   ExecutionOrder            `yaml:"execution_order"`
	RebootPolicy     RebootPolicy              `yaml:"reboot_policy"`
	RetryOnStatus    []result.Status           `yaml:"retry_on_status"`
	MaxRetries       int                       `yaml:"max_retries"`
	RandomSeed       *int64                    `yaml:"random_seed"`
	OutputDirectory  string                    `yaml:"output_directory"`
	Device           string                    `yaml:"device"`
	DeviceConfig     map[string]any            `yaml:"device_config"`
	FlashingConfig   map[string]any            `yaml:"flashing_config"`
	Instrumentation  map[string]map[string]any `yaml:"instrumentation"`
	ResultProcessors map[string]map[string]any `yaml:"result_processors"`
	Workloads        []WorkloadEntry           `yaml:"workloads"`

	// Populated by Load / the app layer, not by the agenda itself.
	AgendaPath  string   `yaml:"-"`
	ConfigPaths []string `yaml:"-"`

	finalized bool
}

// Load reads an agenda file into an unfinalized Config.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errdefs.Wrap(errdefs.KindConfig, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, errdefs.Newf(errdefs.KindConfig, "parsing %s: %v", path, err)
	}
	cfg.AgendaPath = path
	return &cfg, nil
}

// MetaDirectory is where run metadata artifacts (agenda, config snapshots)
// are written.
func (c *Config) MetaDirectory() string {
	return filepath.Join(c.OutputDirectory, "meta")
}

// LogFile is the run log path inside the output directory.
func (c *Config) LogFile() string {
	return filepath.Join(c.OutputDirectory, "run.log")
}

// Finalize applies defaults and validates. It must be called exactly once
// before the config is handed to the executor.
func (c *Config) Finalize() error {
	if c.finalized {
		return errdefs.New(errdefs.KindConfig, "configuration already finalized")
	}
	if c.RunName == "" {
		c.RunName = "run"
	}
	if c.ExecutionOrder == "" {
		c.ExecutionOrder = OrderByIteration
	}
	switch c.ExecutionOrder {
	case OrderByIteration, OrderBySpec, OrderClassic, OrderBySection, OrderRandom:
	default:
		return errdefs.Newf(errdefs.KindConfig, "unexpected execution order: %s", c.ExecutionOrder)
	}
	if c.RetryOnStatus == nil {
		c.RetryOnStatus = []result.Status{result.StatusFailed, result.StatusPartial}
	}
	for _, s := range c.RetryOnStatus {
		if _, err := result.ParseStatus(string(s)); err != nil {
			return errdefs.Newf(errdefs.KindConfig, "retry_on_status: %v", err)
		}
	}
	if c.MaxRetries < 0 {
		return errdefs.New(errdefs.KindConfig, "max_retries must be >= 0")
	}
	if c.OutputDirectory == "" {
		c.OutputDirectory = "wh_output"
	}
	abs, err := filepath.Abs(c.OutputDirectory)
	if err != nil {
		return errdefs.Wrap(errdefs.KindConfig, err)
	}
	c.OutputDirectory = abs

	if len(c.Workloads) == 0 {
		return errdefs.New(errdefs.KindConfig, "no workloads specified")
	}
	seen := map[string]bool{}
	for i := range c.Workloads {
		w := &c.Workloads[i]
		if strings.TrimSpace(w.Workload) == "" {
			return errdefs.Newf(errdefs.KindConfig, "workload entry %d: missing workload name", i+1)
		}
		if w.ID == "" {
			w.ID = fmt.Sprintf("%d", i+1)
		}
		if seen[w.ID] {
			return errdefs.Newf(errdefs.KindConfig, "duplicate workload id %q", w.ID)
		}
		seen[w.ID] = true
		if w.Label == "" {
			w.Label = w.Workload
		}
		if w.Iterations == 0 {
			w.Iterations = 1
		}
		if w.Iterations < 1 {
			return errdefs.Newf(errdefs.KindConfig, "workload %q: iterations must be >= 1", w.ID)
		}
	}
	c.finalized = true
	return nil
}

// RetryEligible reports whether a final iteration status qualifies for a
// retry under this config.
func (c *Config) RetryEligible(s result.Status) bool {
	for _, candidate := range c.RetryOnStatus {
		if candidate == s {
			return true
		}
	}
	return false
}
