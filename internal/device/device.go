package device

import (
	"context"
	"fmt"
	"sort"
)

// Capability names queried through Device.Can.
const (
	CapResetPower = "reset_power"
	CapFlash      = "flash"
)

type BootOptions struct {
	// Hard requests a power-cycle style reset instead of a soft reboot.
	Hard bool
	// Params are the spec's boot parameters, passed through verbatim.
	Params map[string]any
}

// TargetInfo is a static snapshot of the connected target, recorded into
// RunInfo at run start.
type TargetInfo struct {
	Name       string
	OS         string
	Arch       string
	Hostname   string
	Kernel     string
	Properties map[string]string
}

// Flatten renders the snapshot as a flat string map for result records.
func (t *TargetInfo) Flatten() map[string]string {
	out := map[string]string{
		"name":     t.Name,
		"os":       t.OS,
		"arch":     t.Arch,
		"hostname": t.Hostname,
		"kernel":   t.Kernel,
	}
	keys := make([]string, 0, len(t.Properties))
	for k := range t.Properties {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		out[k] = t.Properties[k]
	}
	return out
}

func (t *TargetInfo) String() string {
	return fmt.Sprintf("%s (%s/%s)", t.Name, t.OS, t.Arch)
}

/*
Device is the capability surface the execution core drives. Every method is
an external I/O call that may block for arbitrary time; cancellation and
timeouts are the driver's responsibility, surfaced as classified errors
(errdefs kinds device / device-not-responding / timeout).

The core never talks to hardware directly. Only the runner, and workloads
and instruments via their hooks, may issue device calls.
*/
type Device interface {
	Name() string
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	Initialize(ctx context.Context) error

	// Start/Stop bracket one iteration's device session.
	Start(ctx context.Context) error
	Stop(ctx context.Context) error

	Boot(ctx context.Context, opts BootOptions) error
	Flash(ctx context.Context, params map[string]any) error
	Can(capability string) bool

	ValidateRuntimeParameters(params map[string]any) error
	SetRuntimeParameters(ctx context.Context, params map[string]any) error

	// CheckResponsive probes the device after an error. A non-nil return
	// means the device is gone and the runner escalates to the
	// not-responding recovery path.
	CheckResponsive(ctx context.Context) error

	CaptureScreen(ctx context.Context, path string) error
	Info(ctx context.Context) (*TargetInfo, error)
}
