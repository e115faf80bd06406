package workload

import (
	"fmt"
	"sort"
	"sync"

	"github.com/yungbote/workload-harness/internal/execution"
)

/*
The registry is the only place where a workload name from the agenda is
bound to code. The app asks the registry for instances; the execution core
never sees names, only constructed Workload values on specs.

One-to-one binding is enforced: a duplicate registration is a wiring error
and fails fast at startup.
*/

// Factory builds a workload instance from its agenda parameters.
type Factory func(params map[string]any) (execution.Workload, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

func Register(name string, f Factory) error {
	if name == "" || f == nil {
		return fmt.Errorf("workload: invalid registration")
	}
	mu.Lock()
	defer mu.Unlock()
	if _, exists := factories[name]; exists {
		return fmt.Errorf("workload: factory already registered for %s", name)
	}
	factories[name] = f
	return nil
}

func MustRegister(name string, f Factory) {
	if err := Register(name, f); err != nil {
		panic(err)
	}
}

// New constructs a registered workload by name.
func New(name string, params map[string]any) (execution.Workload, error) {
	mu.RLock()
	f, ok := factories[name]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown workload %q (registered: %v)", name, Registered())
	}
	return f(params)
}

func Registered() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
