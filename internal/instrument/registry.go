package instrument

import (
	"fmt"
	"sort"
	"sync"
)

// Factory builds an instrument from its configuration parameters.
type Factory func(params map[string]any) (Instrument, error)

var (
	regMu     sync.RWMutex
	factories = map[string]Factory{}
)

// Register binds a factory to an instrument name. Duplicate registration is
// a wiring error and panics at startup.
func Register(name string, f Factory) {
	regMu.Lock()
	defer regMu.Unlock()
	if name == "" || f == nil {
		panic("instrument: invalid registration")
	}
	if _, exists := factories[name]; exists {
		panic(fmt.Sprintf("instrument: factory already registered for %s", name))
	}
	factories[name] = f
}

// New constructs a registered instrument by name.
func New(name string, params map[string]any) (Instrument, error) {
	regMu.RLock()
	f, ok := factories[name]
	regMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown instrument %q (registered: %v)", name, Registered())
	}
	return f(params)
}

func Registered() []string {
	regMu.RLock()
	defer regMu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
