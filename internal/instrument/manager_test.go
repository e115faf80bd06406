package instrument

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yungbote/workload-harness/internal/platform/logger"
	"github.com/yungbote/workload-harness/internal/signals"
)

type countingInstrument struct {
	name  string
	calls int
	err   error
}

func (c *countingInstrument) Name() string    { return c.name }
func (c *countingInstrument) Validate() error { return nil }

func (c *countingInstrument) Install(m *Manager) error {
	m.Connect(c, signals.IterationStart.Before(), func(_, _ any) error {
		c.calls++
		return c.err
	})
	return nil
}

func newTestManager() (*Manager, *signals.Bus) {
	bus := signals.NewBus()
	return NewManager(bus, logger.Nop()), bus
}

func TestInstallRejectsDuplicates(t *testing.T) {
	m, _ := newTestManager()
	require.NoError(t, m.Install(&countingInstrument{name: "a"}))
	err := m.Install(&countingInstrument{name: "a"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "already installed")
}

func TestInstallRejectsNilAndUnnamed(t *testing.T) {
	m, _ := newTestManager()
	require.Error(t, m.Install(nil))
	require.Error(t, m.Install(&countingInstrument{name: ""}))
}

func TestDisabledInstrumentStaysConnectedButInert(t *testing.T) {
	m, bus := newTestManager()
	inst := &countingInstrument{name: "a"}
	require.NoError(t, m.Install(inst))

	bus.Send(signals.IterationStart, nil, nil)
	require.Equal(t, 1, inst.calls)

	m.DisableAll()
	bus.Send(signals.IterationStart, nil, nil)
	require.Equal(t, 1, inst.calls, "disabled instrument must not observe signals")

	require.NoError(t, m.Enable([]string{"a"}))
	bus.Send(signals.IterationStart, nil, nil)
	require.Equal(t, 2, inst.calls)
}

func TestEnableUnknownInstrument(t *testing.T) {
	m, _ := newTestManager()
	require.NoError(t, m.Install(&countingInstrument{name: "a"}))
	err := m.Enable([]string{"a", "phantom"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown instrument")
}

func TestCheckFailuresCountsAndResets(t *testing.T) {
	m, bus := newTestManager()
	inst := &countingInstrument{name: "a", err: errors.New("broken probe")}
	require.NoError(t, m.Install(inst))

	require.False(t, m.CheckFailures())
	bus.Send(signals.IterationStart, nil, nil)
	require.True(t, m.CheckFailures())
	require.False(t, m.CheckFailures(), "check must reset the counter")
}

func TestEnableAll(t *testing.T) {
	m, bus := newTestManager()
	a := &countingInstrument{name: "a"}
	b := &countingInstrument{name: "b"}
	require.NoError(t, m.Install(a))
	require.NoError(t, m.Install(b))
	m.DisableAll()
	m.EnableAll()
	bus.Send(signals.IterationStart, nil, nil)
	require.Equal(t, 1, a.calls)
	require.Equal(t, 1, b.calls)
}
