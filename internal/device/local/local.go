package local

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/yungbote/workload-harness/internal/device"
	"github.com/yungbote/workload-harness/internal/errdefs"
	"github.com/yungbote/workload-harness/internal/platform/logger"
)

// Device is a loopback target for development and smoke runs: every
// operation succeeds against the local host. It cannot be power-cycled or
// flashed, so the recovery paths that need those capabilities degrade
// exactly as they would for a real unprivileged target.
type Device struct {
	log       *logger.Logger
	connected bool
	params    map[string]any
}

func New(cfg map[string]any, log *logger.Logger) *Device {
	_ = cfg
	return &Device{log: log, params: map[string]any{}}
}

func (d *Device) Name() string { return "local" }

func (d *Device) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.connected = true
	return nil
}

func (d *Device) Disconnect(ctx context.Context) error {
	_ = ctx
	d.connected = false
	return nil
}

func (d *Device) Initialize(ctx context.Context) error { return ctx.Err() }
func (d *Device) Start(ctx context.Context) error      { return ctx.Err() }
func (d *Device) Stop(ctx context.Context) error       { return ctx.Err() }

func (d *Device) Boot(ctx context.Context, opts device.BootOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if opts.Hard {
		return errdefs.New(errdefs.KindDevice, "local device does not support hard reset")
	}
	d.connected = false
	return nil
}

func (d *Device) Flash(ctx context.Context, params map[string]any) error {
	_ = ctx
	_ = params
	return errdefs.New(errdefs.KindDevice, "local device does not support flashing")
}

// Can reports no optional capabilities: the local host cannot be
// power-cycled or flashed from inside itself.
func (d *Device) Can(capability string) bool {
	_ = capability
	return false
}

func (d *Device) ValidateRuntimeParameters(params map[string]any) error {
	_ = params
	return nil
}

func (d *Device) SetRuntimeParameters(ctx context.Context, params map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for k, v := range params {
		d.params[k] = v
	}
	return nil
}

func (d *Device) CheckResponsive(ctx context.Context) error {
	if !d.connected {
		return errdefs.New(errdefs.KindDeviceNotResponding, "local device is not connected")
	}
	return ctx.Err()
}

func (d *Device) CaptureScreen(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	note := fmt.Sprintf("screen capture requested at %s\n", time.Now().UTC().Format(time.RFC3339))
	return os.WriteFile(path, []byte(note), 0o644)
}

func (d *Device) Info(ctx context.Context) (*device.TargetInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	hostname, _ := os.Hostname()
	return &device.TargetInfo{
		Name:     d.Name(),
		OS:       runtime.GOOS,
		Arch:     runtime.GOARCH,
		Hostname: hostname,
		Properties: map[string]string{
			"go_version": runtime.Version(),
		},
	}, nil
}
