package action

import (
	"fmt"
	"sync"
)

// entry pairs a factory with the default phase it should run at when
// the factory itself doesn't override it.
type entry struct {
	factory      Factory
	defaultPhase int
}

// Registry maps action names to the factories that build their
// handlers (spec.md §4.2). The package-level Default registry carries
// every built-in action; tests and alternative daemons can build their
// own empty Registry and register a subset.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

// Register adds a named action factory with its default phase. A
// second call for the same name replaces the first, which lets a
// daemon embedding this package override or add actions without
// forking the registry type.
func (r *Registry) Register(name string, defaultPhase int, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[name] = entry{factory: factory, defaultPhase: defaultPhase}
}

// Build invokes the named action's factory with params, returning the
// handler and the phase it should sort under (the factory's own
// override phase if non-zero, else the action's registered default).
func (r *Registry) Build(name string, params any) (Handler, int, error) {
	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return nil, 0, fmt.Errorf("action: unknown action %q", name)
	}

	handler, phase, err := e.factory(params)
	if err != nil {
		return nil, 0, fmt.Errorf("action %q: %w", name, err)
	}
	if phase == 0 {
		phase = e.defaultPhase
	}
	return handler, phase, nil
}

// Names returns the registered action names, for diagnostics and
// config validation.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for n := range r.entries {
		names = append(names, n)
	}
	return names
}

// Default is the registry populated with every action in spec.md §4.2.
// main wires it into the pipeline loader; tests can build a narrower
// Registry directly.
var Default = NewRegistry()

func init() {
	Default.Register("match", PhaseMatch, newMatch)
	Default.Register("extract", PhaseMatch, newExtract)
	Default.Register("edge", PhaseMatch, newEdge)
	Default.Register("timewindow", PhaseMatch, newTimewindow)

	Default.Register("replace", PhaseManipulate, newReplace)
	Default.Register("set", PhaseManipulate, newSet)
	Default.Register("unset", PhaseManipulate, newUnset)
	Default.Register("strptime", PhaseManipulate, newStrptime)
	Default.Register("script", PhaseManipulate, newScript)

	Default.Register("drop", PhaseDrop, newDrop)

	Default.Register("stdout", PhaseForward, newStdout)
	Default.Register("debug", PhaseForward, newDebug)
	Default.Register("call", PhaseForward, newCall)
	Default.Register("jump", PhaseForward, newJump)
	Default.Register("fork", PhaseForward, newFork)
	Default.Register("statsd", PhaseForward, newStatsdAction)
	Default.Register("rabbitmq", PhaseForward, newRabbitmqAction)
	Default.Register("elasticsearch_http", PhaseForward, newElasticsearchAction)
	Default.Register("logging", PhaseForward, newLoggingAction)
}
