package signals

// Event is a single dispatch channel on the bus.
type Event string

// Name is a lifecycle stage. Every Name is exposed as a triple of Events:
// before-<name>, successful-<name>, after-<name>. A bodyless Send dispatches
// all three in order; SendWithin runs a body between before and successful,
// and emits successful only when the body returned nil. after is emitted on
// every exit path.
type Name string

const (
	RunInit           Name = "run-init"
	RunStart          Name = "run-start"
	RunEnd            Name = "run-end"
	RunFin            Name = "run-finalized"
	WorkloadSpecStart Name = "workload-spec-start"
	WorkloadSpecEnd   Name = "workload-spec-end"
	IterationStart    Name = "iteration-start"
	IterationEnd      Name = "iteration-end"

	WorkloadSetup        Name = "workload-setup"
	WorkloadExecution    Name = "workload-execution"
	WorkloadTeardown     Name = "workload-teardown"
	WorkloadResultUpdate Name = "workload-result-update"

	OverallResultsProcessing Name = "overall-results-processing"

	Flashing    Name = "flashing"
	Boot        Name = "boot"
	InitialBoot Name = "initial-boot"
)

func (n Name) Before() Event     { return Event("before-" + string(n)) }
func (n Name) Successful() Event { return Event("successful-" + string(n)) }
func (n Name) After() Event      { return Event("after-" + string(n)) }

// Diagnostic channels. These are single-phase: they carry no triple and are
// fired by the logging adapter, not the runner.
const (
	ErrorLogged   Event = "error-logged"
	WarningLogged Event = "warning-logged"
)
