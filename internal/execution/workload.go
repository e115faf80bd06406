package execution

import (
	"fmt"

	"github.com/yungbote/workload-harness/internal/result"
)

/*
Workload is the contract every runnable workload implements. Hooks are
invoked by the runner in a fixed order and receive the execution context as
their only channel for reporting metrics, artifacts and state:

	Initialize   once per run, after the device is up
	Setup        before each iteration
	Run          the measured section of each iteration
	UpdateResult after Run, to extract metrics into the current result
	Teardown     after each iteration, always
	Finalize     once per run, during shutdown

Hooks must assume they can be re-invoked for retried iterations.
*/
type Workload interface {
	Name() string
	Validate() error
	InitResources(ctx *Context) error
	Initialize(ctx *Context) error
	Setup(ctx *Context) error
	Run(ctx *Context) error
	UpdateResult(ctx *Context) error
	Teardown(ctx *Context) error
	Finalize(ctx *Context) error
	Artifacts() []*result.Artifact
}

// Spec identifies a workload and the parameters under which it runs.
// Immutable after the executor builds it, with one exception: the runner
// sets Enabled to false to skip the spec's remaining iterations after a
// structural failure.
type Spec struct {
	ID                string
	Label             string
	SectionID         string
	Iterations        int
	Enabled           bool
	Workload          Workload
	RuntimeParameters map[string]any
	BootParameters    map[string]any
	Flash             map[string]any
	Instrumentation   []string
}

func (s *Spec) String() string {
	if s.Label != "" && s.Label != s.ID {
		return fmt.Sprintf("%s (%s)", s.Label, s.ID)
	}
	return s.ID
}
