package execution

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/yungbote/workload-harness/internal/config"
	"github.com/yungbote/workload-harness/internal/device"
	"github.com/yungbote/workload-harness/internal/platform/logger"
	"github.com/yungbote/workload-harness/internal/result"
	"github.com/yungbote/workload-harness/internal/signals"
)

// ResourceResolver is the hook at which workload asset resolution runs.
// Resolution itself is an external collaborator; the context only owns the
// point in the lifecycle where it is invoked.
type ResourceResolver interface {
	Load(ctx *Context) error
}

/*
Context is the shared, mutable run state: the execution contract between the
runner and all observing code. It wraps

	- the cancellation context for the run,
	- the device handle,
	- the finalized configuration,
	- the current job cursor and its output directory,
	- artifact and metric routing (iteration vs run scope).

Workloads, instruments and result processors never hold run state of their
own; they read and mutate it through this object, which is passed to every
hook and carried on every signal.
*/
type Context struct {
	Ctx    context.Context
	Device device.Device
	Config *config.Config
	Bus    *signals.Bus
	Log    *logger.Logger

	RebootPolicy config.RebootPolicy
	Resolver     ResourceResolver
	Runner       *Runner

	RunInfo   *result.RunInfo
	RunResult *result.RunResult

	RunOutputDirectory   string
	HostWorkingDirectory string
	OutputDirectory      string

	IterationArtifacts []*result.Artifact
	RunArtifacts       []*result.Artifact

	JobIterationCounts map[string]int
	Aborted            bool
	LastError          error

	currentJob *Job
}

func NewContext(ctx context.Context, dev device.Device, cfg *config.Config, bus *signals.Bus, log *logger.Logger) *Context {
	c := &Context{
		Ctx:                  ctx,
		Device:               dev,
		Config:               cfg,
		Bus:                  bus,
		Log:                  log,
		RebootPolicy:         cfg.RebootPolicy,
		RunOutputDirectory:   cfg.OutputDirectory,
		HostWorkingDirectory: cfg.MetaDirectory(),
		JobIterationCounts:   map[string]int{},
	}
	c.RunArtifacts = append(c.RunArtifacts, &result.Artifact{
		Name:        "runlog",
		Path:        "run.log",
		Kind:        result.ArtifactLog,
		Scope:       result.ScopeRun,
		Mandatory:   true,
		Description: "The log for the entire run.",
	})
	if cfg.AgendaPath != "" {
		c.RunArtifacts = append(c.RunArtifacts, &result.Artifact{
			Name:        "agenda",
			Path:        filepath.Join(c.HostWorkingDirectory, filepath.Base(cfg.AgendaPath)),
			Kind:        result.ArtifactMeta,
			Scope:       result.ScopeRun,
			Mandatory:   true,
			Description: "Agenda for this run.",
		})
	}
	for i, cfgPath := range cfg.ConfigPaths {
		name := fmt.Sprintf("config_%d", i+1)
		c.RunArtifacts = append(c.RunArtifacts, &result.Artifact{
			Name:        name,
			Path:        filepath.Join(c.HostWorkingDirectory, name+filepath.Ext(cfgPath)),
			Kind:        result.ArtifactMeta,
			Scope:       result.ScopeRun,
			Mandatory:   true,
			Description: "Config file used for the run.",
		})
	}
	return c
}

// Initialize creates the run output layout and constructs the run records.
func (c *Context) Initialize() error {
	if err := os.MkdirAll(c.RunOutputDirectory, 0o755); err != nil {
		return err
	}
	if err := os.MkdirAll(c.HostWorkingDirectory, 0o755); err != nil {
		return err
	}
	c.OutputDirectory = c.RunOutputDirectory
	c.RunInfo = result.NewRunInfo(c.Config.RunName)
	c.RunResult = result.NewRunResult(c.RunInfo, c.RunOutputDirectory)
	if c.Resolver != nil {
		if err := c.Resolver.Load(c); err != nil {
			return err
		}
	}
	return nil
}

func (c *Context) CurrentJob() *Job { return c.currentJob }

func (c *Context) CurrentSpec() *Spec {
	if c.currentJob == nil {
		return nil
	}
	return c.currentJob.Spec
}

func (c *Context) CurrentWorkload() Workload {
	if spec := c.CurrentSpec(); spec != nil {
		return spec.Workload
	}
	return nil
}

// CurrentIteration is the 1-based iteration counter of the current job's
// spec, or 0 when no job is active.
func (c *Context) CurrentIteration() int {
	if c.currentJob == nil {
		return 0
	}
	return c.JobIterationCounts[c.currentJob.Spec.ID]
}

func (c *Context) JobStatus() result.Status {
	if c.currentJob == nil {
		return ""
	}
	return c.currentJob.Result.Status
}

// NextJob advances the cursor to job: bumps the spec's iteration counter
// and, unless the run is aborted, creates the iteration output directory
// and snapshots the workload's declared artifacts.
func (c *Context) NextJob(job *Job) error {
	c.currentJob = job
	c.JobIterationCounts[job.Spec.ID]++
	if !c.Aborted {
		dirName := strings.Join([]string{job.Spec.Label, job.Spec.ID, fmt.Sprint(c.CurrentIteration())}, "_")
		c.OutputDirectory = filepath.Join(c.RunOutputDirectory, dirName)
		if err := os.MkdirAll(c.OutputDirectory, 0o755); err != nil {
			return err
		}
		c.IterationArtifacts = append([]*result.Artifact{}, job.Spec.Workload.Artifacts()...)
	}
	job.Result.Iteration = c.CurrentIteration()
	job.Result.OutputDirectory = c.OutputDirectory
	return nil
}

// EndJob clears the cursor. A job that finished ABORTED aborts the whole
// run: no further iteration will execute.
func (c *Context) EndJob() {
	if c.currentJob != nil && c.currentJob.Result.Status == result.StatusAborted {
		c.Aborted = true
	}
	c.currentJob = nil
	c.OutputDirectory = c.RunOutputDirectory
}

// AddMetric routes to the current iteration when a job is active, else to
// the run.
func (c *Context) AddMetric(m result.Metric) {
	if c.currentJob != nil {
		c.currentJob.Result.AddMetric(m)
		return
	}
	c.RunResult.AddMetric(m)
}

// AddArtifact routes to the current iteration when a job is active, else to
// the run.
func (c *Context) AddArtifact(name, path string, kind result.ArtifactKind, mandatory bool, description string) error {
	if c.currentJob == nil {
		return c.AddRunArtifact(name, path, kind, mandatory, description)
	}
	return c.AddIterationArtifact(name, path, kind, mandatory, description)
}

func (c *Context) AddRunArtifact(name, path string, kind result.ArtifactKind, mandatory bool, description string) error {
	checked, err := result.CheckArtifactPath(path, c.RunOutputDirectory)
	if err != nil {
		return err
	}
	c.RunArtifacts = append(c.RunArtifacts, &result.Artifact{
		Name:        name,
		Path:        checked,
		Kind:        kind,
		Scope:       result.ScopeRun,
		Mandatory:   mandatory,
		Description: description,
	})
	return nil
}

func (c *Context) AddIterationArtifact(name, path string, kind result.ArtifactKind, mandatory bool, description string) error {
	checked, err := result.CheckArtifactPath(path, c.OutputDirectory)
	if err != nil {
		return err
	}
	a := &result.Artifact{
		Name:        name,
		Path:        checked,
		Kind:        kind,
		Scope:       result.ScopeIteration,
		Mandatory:   mandatory,
		Description: description,
	}
	c.IterationArtifacts = append(c.IterationArtifacts, a)
	if c.currentJob != nil {
		c.currentJob.Result.AddArtifact(a)
	}
	return nil
}

// GetArtifact looks up iteration artifacts first, then run artifacts; first
// match wins.
func (c *Context) GetArtifact(name string) *result.Artifact {
	for _, a := range c.IterationArtifacts {
		if a.Name == name {
			return a
		}
	}
	for _, a := range c.RunArtifacts {
		if a.Name == name {
			return a
		}
	}
	return nil
}
