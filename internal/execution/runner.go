package execution

import (
	"context"
	"errors"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/yungbote/workload-harness/internal/device"
	"github.com/yungbote/workload-harness/internal/errdefs"
	"github.com/yungbote/workload-harness/internal/instrument"
	"github.com/yungbote/workload-harness/internal/platform/logger"
	"github.com/yungbote/workload-harness/internal/result"
	"github.com/yungbote/workload-harness/internal/signals"
)

// The maximum number of reboot attempts for an iteration.
const maxRebootAttempts = 3

// Wait between failed reboot attempts; retrying immediately may not give
// the device enough time to recover far enough to be rebootable.
var rebootDelay = 3 * time.Second

// RunState tracks the runner through its lifecycle.
type RunState string

const (
	StateConstructed  RunState = "constructed"
	StateQueued       RunState = "queued"
	StateInitializing RunState = "initializing"
	StateLooping      RunState = "looping"
	StateFinalizing   RunState = "finalizing"
	StateProcessing   RunState = "processing"
	StateDone         RunState = "done"
)

var errRebootAttemptFailed = errors.New("reboot attempt failed")

/*
Runner drains the job queue against the device, emitting a signal at every
lifecycle transition so instrumentation can hook into the process. It owns
the call stack end to end: jobs run strictly sequentially and signal
dispatch is synchronous.

The scheduling policy is injected as a ScheduleFunc; the runner itself never
re-orders the queue. The only queue mutation after InitQueue is pushing a
retry job at the head.
*/
type Runner struct {
	exctx       *Context
	device      device.Device
	instruments *instrument.Manager
	results     *ResultManager
	bus         *signals.Bus
	log         *logger.Logger
	schedule    ScheduleFunc

	state         RunState
	specs         []*Spec
	queue         jobQueue
	completedJobs []*Job
}

func NewRunner(exctx *Context, instruments *instrument.Manager, results *ResultManager, schedule ScheduleFunc) *Runner {
	return &Runner{
		exctx:       exctx,
		device:      exctx.Device,
		instruments: instruments,
		results:     results,
		bus:         exctx.Bus,
		log:         exctx.Log.With("component", "runner"),
		schedule:    schedule,
		state:       StateConstructed,
	}
}

func (r *Runner) State() RunState { return r.state }

// InitQueue materializes the job queue from the spec list. The queue is
// fixed before the run starts.
func (r *Runner) InitQueue(specs []*Spec) {
	r.specs = specs
	r.queue.jobs = r.schedule(specs)
	r.state = StateQueued
}

func (r *Runner) CompletedJobs() []*Job { return r.completedJobs }

func (r *Runner) currentJob() *Job { return r.queue.head() }

func (r *Runner) previousJob() *Job {
	if len(r.completedJobs) == 0 {
		return nil
	}
	return r.completedJobs[len(r.completedJobs)-1]
}

func (r *Runner) nextJob() *Job { return r.queue.second() }

// specChanged reports whether the current job starts a new contiguous run
// of same-spec iterations.
func (r *Runner) specChanged() bool {
	prev, cur := r.previousJob(), r.currentJob()
	if prev == nil && cur != nil {
		return true
	}
	if prev != nil && cur == nil {
		return true
	}
	return cur.Spec.ID != prev.Spec.ID
}

// specWillChange reports whether the current job ends such a run.
func (r *Runner) specWillChange() bool {
	cur, next := r.currentJob(), r.nextJob()
	if cur == nil && next != nil {
		return true
	}
	if cur != nil && next == nil {
		return true
	}
	return cur.Spec.ID != next.Spec.ID
}

// Run executes the whole queue. The returned error is non-nil only for
// failures during run startup; anything that happens once the loop is
// entered is absorbed into iteration results.
func (r *Runner) Run() error {
	r.send(signals.RunStart)
	if err := r.initializeRun(); err != nil {
		return err
	}

	r.state = StateLooping
	for !r.queue.empty() {
		err := r.executeNextJob()
		if err == nil {
			continue
		}
		if isInterrupt(err) {
			r.log.Info("interrupted; finalizing run (interrupt again to abort)")
			r.drainRemaining(result.StatusAborted)
			break
		}
		if errdefs.Is(err, errdefs.KindDeviceNotResponding) {
			r.log.Info("device unresponsive and recovery not possible; skipping the rest of the run")
			r.exctx.Aborted = true
			r.drainRemaining(result.StatusSkipped)
			break
		}
		// Startup of a job can only fail the two ways above; everything
		// else was already absorbed into the job's result.
	}

	r.instruments.EnableAll()
	r.state = StateFinalizing
	r.finalizeRun()
	r.state = StateProcessing
	r.processResults()
	r.results.Finalize(r.exctx)
	r.send(signals.RunEnd)
	r.state = StateDone
	return nil
}

func (r *Runner) initializeRun() error {
	r.state = StateInitializing
	r.exctx.Runner = r
	r.exctx.RunInfo.StartTime = time.Now().UTC()

	if err := r.connectToDevice(); err != nil {
		return err
	}
	r.log.Info("initializing device")
	if err := r.device.Initialize(r.exctx.Ctx); err != nil {
		return err
	}

	r.log.Info("initializing workloads")
	for _, spec := range r.specs {
		if err := spec.Workload.Initialize(r.exctx); err != nil {
			return err
		}
	}

	info, err := r.device.Info(r.exctx.Ctx)
	if err != nil {
		return err
	}
	r.exctx.RunInfo.DeviceProperties = info.Flatten()

	if err := r.results.Initialize(r.exctx); err != nil {
		return err
	}
	r.send(signals.RunInit)

	if r.instruments.CheckFailures() {
		return errdefs.New(errdefs.KindInstrument, "detected failure(s) during instrumentation initialization")
	}
	return nil
}

func (r *Runner) connectToDevice() error {
	if !r.exctx.RebootPolicy.PerformInitialBoot() {
		r.log.Info("connecting to device")
		return r.device.Connect(r.exctx.Ctx)
	}
	if err := r.device.Connect(r.exctx.Ctx); err != nil {
		if isInterrupt(err) || !errdefs.Is(err, errdefs.KindDevice) {
			return err
		}
		// Device may be offline; a hard boot is the only way in.
		if !r.device.Can(device.CapResetPower) {
			return errdefs.New(errdefs.KindDevice,
				"cannot connect to device for initial reboot; device does not support hard reset")
		}
		return r.signalWrap(signals.InitialBoot, func() error {
			if err := r.device.Boot(r.exctx.Ctx, device.BootOptions{Hard: true}); err != nil {
				return err
			}
			return r.device.Connect(r.exctx.Ctx)
		})
	}
	r.log.Info("booting device")
	return r.signalWrap(signals.InitialBoot, func() error {
		return r.rebootDevice(nil)
	})
}

// executeNextJob runs the head job through init/run/finalize. Finalization
// is unconditional. The returned error is nil unless the run as a whole
// must react (interrupt, unrecoverable device loss).
func (r *Runner) executeNextJob() error {
	job := r.currentJob()
	defer r.finalizeJob()

	if err := r.initJob(job); err != nil {
		job.Result.Status = result.StatusFailed
		job.Result.AddEvent(err.Error())
		return nil
	}
	err := r.runJob(job)
	if err == nil {
		return nil
	}
	if isInterrupt(err) {
		job.Result.Status = result.StatusAborted
		return err
	}
	job.Result.Status = result.StatusFailed
	job.Result.AddEvent(err.Error())
	if errdefs.Is(err, errdefs.KindDeviceNotResponding) {
		r.log.Info("device appears to be unresponsive")
		if r.exctx.RebootPolicy.CanReboot() && r.device.Can(device.CapResetPower) {
			r.log.Info("attempting to hard-reset the device")
			if bootErr := r.hardResetDevice(); bootErr != nil {
				return err
			}
			return nil
		}
		return err
	}
	r.log.Error("job failed", "workload", job.Spec.String(), "error", err)
	return nil
}

func (r *Runner) hardResetDevice() error {
	if err := r.device.Boot(r.exctx.Ctx, device.BootOptions{Hard: true}); err != nil {
		return err
	}
	return r.device.Connect(r.exctx.Ctx)
}

func (r *Runner) initJob(job *Job) error {
	job.Result.Status = result.StatusRunning
	return r.exctx.NextJob(job)
}

func (r *Runner) runJob(job *Job) error {
	spec := job.Spec
	if !spec.Enabled {
		r.log.Info("skipping workload", "workload", spec.String(), "iteration", r.exctx.CurrentIteration())
		job.Result.Status = result.StatusSkipped
		return nil
	}

	r.log.Info("running workload", "workload", spec.String(), "iteration", r.exctx.CurrentIteration())
	if len(spec.Flash) > 0 {
		if !r.exctx.RebootPolicy.CanReboot() {
			return errdefs.New(errdefs.KindConfig, "cannot flash as reboot policy does not permit rebooting")
		}
		if !r.device.Can(device.CapFlash) {
			return errdefs.New(errdefs.KindDevice, "device does not support flashing")
		}
		if err := r.flashDevice(spec.Flash); err != nil {
			return err
		}
	} else if len(r.completedJobs) == 0 {
		// Never reboot on the very first job of a run; the initial boot
		// already happened if one was needed.
	} else if r.exctx.RebootPolicy.RebootOnEachSpec() && r.specChanged() {
		r.log.Debug("rebooting on spec change")
		if err := r.rebootDevice(spec.BootParameters); err != nil {
			return err
		}
	} else if r.exctx.RebootPolicy.RebootOnEachIteration() {
		r.log.Debug("rebooting on iteration")
		if err := r.rebootDevice(spec.BootParameters); err != nil {
			return err
		}
	}

	r.instruments.DisableAll()
	if err := r.instruments.Enable(spec.Instrumentation); err != nil {
		return err
	}
	if err := r.device.Start(r.exctx.Ctx); err != nil {
		return err
	}

	if r.specChanged() {
		r.send(signals.WorkloadSpecStart)
	}
	r.send(signals.IterationStart)

	bodyErr := r.runJobBody(job, spec)

	if bodyErr != nil && isInterrupt(bodyErr) {
		r.send(signals.IterationEnd)
		r.send(signals.WorkloadSpecEnd)
	} else if bodyErr == nil {
		r.send(signals.IterationEnd)
		if r.specWillChange() || !spec.Enabled {
			r.send(signals.WorkloadSpecEnd)
		}
	}

	stopErr := r.device.Stop(r.exctx.Ctx)
	if bodyErr != nil {
		return bodyErr
	}
	return stopErr
}

func (r *Runner) runJobBody(job *Job, spec *Spec) error {
	setupOK, err := r.guard("Setting up device parameters", result.StatusFailed, func() error {
		return r.device.SetRuntimeParameters(r.exctx.Ctx, spec.RuntimeParameters)
	})
	if err != nil {
		return err
	}
	if !setupOK {
		r.log.Info("skipping the rest of the iterations for this spec")
		spec.Enabled = false
		return nil
	}
	_, err = r.guard("Running "+spec.Workload.Name(), result.StatusFailed, func() error {
		job.Result.Status = result.StatusRunning
		return r.runWorkloadIteration(job, spec.Workload)
	})
	return err
}

func (r *Runner) runWorkloadIteration(job *Job, w Workload) (err error) {
	r.log.Info("setting up")
	if serr := r.signalWrap(signals.WorkloadSetup, func() error {
		return w.Setup(r.exctx)
	}); serr != nil {
		// Failed setup is a structural problem; skip the spec's remaining
		// iterations.
		r.log.Info("skipping the rest of the iterations for this spec")
		job.Spec.Enabled = false
		return serr
	}

	defer func() {
		r.log.Info("tearing down")
		_, terr := r.guard("Tearing down workload", result.StatusNoncritical, func() error {
			return r.signalWrap(signals.WorkloadTeardown, func() error {
				return w.Teardown(r.exctx)
			})
		})
		if terr != nil && err == nil {
			err = terr
		}
		r.results.AddResult(job.Result, r.exctx)
	}()

	r.log.Info("executing")
	if _, gerr := r.guard("Running workload", result.StatusFailed, func() error {
		return r.signalWrap(signals.WorkloadExecution, func() error {
			return w.Run(r.exctx)
		})
	}); gerr != nil {
		return gerr
	}

	r.log.Info("processing result")
	r.emit(signals.WorkloadResultUpdate.Before())
	var updateErr error
	func() {
		defer r.emit(signals.WorkloadResultUpdate.After())
		if job.Result.Status != result.StatusFailed {
			_, updateErr = r.guard("Processing workload result", result.StatusPartial, func() error {
				if uerr := w.UpdateResult(r.exctx); uerr != nil {
					return uerr
				}
				r.emit(signals.WorkloadResultUpdate.Successful())
				return nil
			})
		}
		if job.Result.Status == result.StatusRunning {
			job.Result.Status = result.StatusOK
		}
	}()
	return updateErr
}

// finalizeJob runs unconditionally for every dequeued job: the result is
// appended in completion order, the retry policy is applied against the
// final status, and the context cursor is cleared.
func (r *Runner) finalizeJob() {
	job := r.queue.popFront()
	r.exctx.RunResult.IterationResults = append(r.exctx.RunResult.IterationResults, job.Result)
	job.Iteration = r.exctx.CurrentIteration()
	if r.exctx.Config.RetryEligible(job.Result.Status) {
		if job.Retry >= r.exctx.Config.MaxRetries {
			r.log.Error("exceeded maximum number of retries; abandoning job",
				"workload", job.Spec.String())
		} else {
			r.log.Info("retrying job", "workload", job.Spec.String(),
				"status", string(job.Result.Status), "retry", job.Retry+1)
			r.queue.pushFront(newRetryJob(job))
		}
	}
	r.completedJobs = append(r.completedJobs, job)
	r.exctx.EndJob()
}

// drainRemaining marks every queued job with status without executing it.
func (r *Runner) drainRemaining(status result.Status) {
	for !r.queue.empty() {
		job := r.currentJob()
		_ = r.exctx.NextJob(job)
		job.Result.Status = status
		r.finalizeJob()
	}
}

func (r *Runner) finalizeRun() {
	r.log.Info("finalizing workloads")
	for _, spec := range r.specs {
		if err := spec.Workload.Finalize(r.exctx); err != nil {
			r.log.Error("failed to finalize workload", "workload", spec.Workload.Name(), "error", err)
		}
	}

	r.log.Info("finalizing")
	r.send(signals.RunFin)

	if _, err := r.guard("Disconnecting from the device", result.StatusFailed, func() error {
		return r.device.Disconnect(r.exctx.Ctx)
	}); err != nil {
		r.log.Error("failed to disconnect from the device", "error", err)
	}

	info := r.exctx.RunInfo
	info.EndTime = time.Now().UTC()
	info.Duration = info.EndTime.Sub(info.StartTime)
}

func (r *Runner) processResults() {
	r.log.Info("processing overall results")
	err := r.signalWrap(signals.OverallResultsProcessing, func() error {
		if r.instruments.CheckFailures() {
			r.exctx.RunResult.NonIterationErrors = true
		}
		return r.results.ProcessRunResult(r.exctx.RunResult, r.exctx)
	})
	if err != nil {
		r.log.Error("overall result processing failed", "error", err)
	}
}

func (r *Runner) flashDevice(params map[string]any) error {
	return r.signalWrap(signals.Flashing, func() error {
		if err := r.device.Flash(r.exctx.Ctx, params); err != nil {
			return err
		}
		return r.device.Connect(r.exctx.Ctx)
	})
}

// rebootDevice attempts up to maxRebootAttempts reboots with the spec's
// boot parameters, waiting rebootDelay between attempts. Attempt failures
// go through the normal iteration error handler; exhausting the attempts
// escalates as a device-not-responding error to the job handler.
func (r *Runner) rebootDevice(bootParams map[string]any) error {
	return r.signalWrap(signals.Boot, func() error {
		attempt := 0
		op := func() error {
			attempt++
			if attempt > 1 {
				r.log.Info("retrying reboot", "attempt", attempt)
			}
			ok, err := r.guard("Rebooting device", result.StatusFailed, func() error {
				return r.device.Boot(r.exctx.Ctx, device.BootOptions{Params: bootParams})
			})
			if err != nil {
				return backoff.Permanent(err)
			}
			if !ok {
				return errRebootAttemptFailed
			}
			return nil
		}
		bo := backoff.WithContext(
			backoff.WithMaxRetries(backoff.NewConstantBackOff(rebootDelay), maxRebootAttempts-1),
			r.exctx.Ctx)
		if err := backoff.Retry(op, bo); err != nil {
			if isInterrupt(err) || errdefs.Is(err, errdefs.KindDeviceNotResponding) {
				return err
			}
			// A device that survives the responsiveness probes but cannot
			// complete a boot is still lost to the run; escalate as
			// unresponsive so the outer handler can hard-reset or drain.
			return errdefs.New(errdefs.KindDeviceNotResponding,
				"could not reboot device; max reboot attempts exceeded")
		}
		return r.device.Connect(r.exctx.Ctx)
	})
}

/*
guard runs fn under the iteration error policy.

Returns (true, nil) when fn succeeded, (false, nil) when a failure was
absorbed (status set to onErr, message appended to the result's events,
screenshot attempted), and (false, err) for errors that must propagate:
user interrupt and device-not-responding.

For classified harness errors the device is probed after the failure; a
failed probe promotes the error to device-not-responding. Unclassified
errors are recorded without touching the device.
*/
func (r *Runner) guard(action string, onErr result.Status, fn func() error) (bool, error) {
	if action != "" {
		r.log.Debug(action)
	}
	err := fn()
	if err == nil {
		return true, nil
	}
	if isInterrupt(err) || errdefs.Is(err, errdefs.KindDeviceNotResponding) {
		return false, err
	}

	if errdefs.IsKnown(err) {
		if perr := r.device.CheckResponsive(r.exctx.Ctx); perr != nil {
			return false, errdefs.Wrap(errdefs.KindDeviceNotResponding, err)
		}
	}
	r.exctx.LastError = err
	if job := r.exctx.CurrentJob(); job != nil {
		job.Result.Status = onErr
		job.Result.AddEvent(err.Error())
	}
	r.takeScreenshot("error.png")
	r.log.Error("error while "+lowerFirst(action), "error", err)
	return false, nil
}

func (r *Runner) takeScreenshot(name string) {
	dir := r.exctx.OutputDirectory
	if dir == "" {
		dir = r.exctx.RunOutputDirectory
	}
	if err := r.device.CaptureScreen(r.exctx.Ctx, filepath.Join(dir, name)); err != nil {
		// Already in an error state; a failed screenshot is unsurprising.
		r.log.Debug("failed to capture screen", "error", err)
	}
}

func (r *Runner) send(n signals.Name) {
	r.bus.Send(n, r, r.exctx)
}

func (r *Runner) emit(ev signals.Event) {
	r.bus.Emit(ev, r, r.exctx)
}

func (r *Runner) signalWrap(n signals.Name, body func() error) error {
	return r.bus.SendWithin(n, r, r.exctx, body)
}

func isInterrupt(err error) bool {
	return errors.Is(err, context.Canceled)
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	b := []byte(s)
	if b[0] >= 'A' && b[0] <= 'Z' {
		b[0] += 'a' - 'A'
	}
	return string(b)
}
