package resultproc

import (
	"fmt"
	"sort"
	"sync"

	"github.com/yungbote/workload-harness/internal/execution"
)

// Factory builds a result processor from its configuration parameters.
type Factory func(params map[string]any) (execution.ResultProcessor, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

func Register(name string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	if name == "" || f == nil {
		panic("resultproc: invalid registration")
	}
	if _, exists := factories[name]; exists {
		panic(fmt.Sprintf("resultproc: factory already registered for %s", name))
	}
	factories[name] = f
}

// New constructs a registered result processor by name.
func New(name string, params map[string]any) (execution.ResultProcessor, error) {
	mu.RLock()
	f, ok := factories[name]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown result processor %q (registered: %v)", name, Registered())
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
