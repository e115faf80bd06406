package instrument

import (
	"sync"

	"github.com/yungbote/workload-harness/internal/errdefs"
	"github.com/yungbote/workload-harness/internal/platform/logger"
	"github.com/yungbote/workload-harness/internal/signals"
)

/*
Instrument is an external observer that subscribes to lifecycle signals to
collect measurements. Instruments never talk to the bus directly: Install is
handed the manager, and every hook registered through Manager.Connect is
wrapped so that

	- a disabled instrument stays subscribed but inert, and
	- a hook failure is counted against the instrument and still reported
	  through the bus's normal handler-error path.
*/
type Instrument interface {
	Name() string
	Validate() error
	Install(m *Manager) error
}

type Manager struct {
	mu        sync.RWMutex
	bus       *signals.Bus
	log       *logger.Logger
	installed map[string]Instrument
	order     []string
	enabled   map[string]bool
	failures  int
}

func NewManager(bus *signals.Bus, log *logger.Logger) *Manager {
	return &Manager{
		bus:       bus,
		log:       log,
		installed: map[string]Instrument{},
		enabled:   map[string]bool{},
	}
}

// Install registers an instrument and runs its hook installation. At most
// one instrument per name; duplicates are a wiring error and fail fast.
func (m *Manager) Install(inst Instrument) error {
	if inst == nil {
		return errdefs.New(errdefs.KindInstrument, "nil instrument")
	}
	name := inst.Name()
	if name == "" {
		return errdefs.New(errdefs.KindInstrument, "instrument has empty name")
	}
	m.mu.Lock()
	if _, exists := m.installed[name]; exists {
		m.mu.Unlock()
		return errdefs.Newf(errdefs.KindInstrument, "instrument already installed: %s", name)
	}
	m.installed[name] = inst
	m.order = append(m.order, name)
	m.enabled[name] = true
	m.mu.Unlock()
	return inst.Install(m)
}

// Connect subscribes one of inst's hooks to an event. The wrapper consults
// the enabled set at dispatch time, so enable/disable between iterations
// does not touch bus subscriptions.
func (m *Manager) Connect(inst Instrument, ev signals.Event, h signals.Handler) *signals.Subscription {
	name := inst.Name()
	return m.bus.Connect(ev, func(sender, payload any) error {
		if !m.IsEnabled(name) {
			return nil
		}
		if err := h(sender, payload); err != nil {
			m.recordFailure(name, ev, err)
			return err
		}
		return nil
	})
}

func (m *Manager) Validate() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, name := range m.order {
		if err := m.installed[name].Validate(); err != nil {
			return errdefs.Wrap(errdefs.KindInstrument, err)
		}
	}
	return nil
}

// Enable turns on exactly the named instruments. Unknown names are a
// configuration error on the spec that requested them.
func (m *Manager) Enable(names []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, name := range names {
		if _, ok := m.installed[name]; !ok {
			return errdefs.Newf(errdefs.KindConfig, "unknown instrument: %s", name)
		}
	}
	for _, name := range names {
		m.enabled[name] = true
	}
	return nil
}

func (m *Manager) EnableAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, name := range m.order {
		m.enabled[name] = true
	}
}

func (m *Manager) DisableAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, name := range m.order {
		m.enabled[name] = false
	}
}

func (m *Manager) IsEnabled(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.enabled[name]
}

// CheckFailures reports whether any instrument hook failed since the last
// check, and resets the counter.
func (m *Manager) CheckFailures() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	failed := m.failures > 0
	m.failures = 0
	return failed
}

func (m *Manager) recordFailure(name string, ev signals.Event, err error) {
	m.mu.Lock()
	m.failures++
	m.mu.Unlock()
	if m.log != nil {
		m.log.Error("instrument hook failed", "instrument", name, "event", string(ev), "error", err)
	}
}
