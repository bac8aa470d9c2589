package adapters

import (
	"fmt"
	"sort"

	"github.com/maltesIam/cyberdemo-sub000/internal/enrich"
	"github.com/maltesIam/cyberdemo-sub000/pkg/circuit"
	"github.com/maltesIam/cyberdemo-sub000/pkg/ratelimit"
)

// ErrUnknownSource is returned when a request names a source that was never
// registered for its target kind.
type ErrUnknownSource struct {
	Name string
}

func (e *ErrUnknownSource) Error() string {
	return fmt.Sprintf("unknown source %q", e.Name)
}

// Entry bundles one source's adapter with its resilience state. Breaker and
// limiter are per-source singletons created once at registry construction;
// nothing else ever mutates them.
type Entry struct {
	Adapter  SourceAdapter
	Kind     enrich.TargetKind
	Priority int
	Breaker  *circuit.Breaker
	Limiter  *ratelimit.Limiter
}

func (e *Entry) Name() string {
	return e.Adapter.Name()
}

// Registry resolves source names to adapter entries. It is built once at
// startup and read-only afterwards.
type Registry struct {
	entries map[string]*Entry
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*Entry)}
}

func (r *Registry) Register(e *Entry) error {
	name := e.Name()
	if _, dup := r.entries[name]; dup {
		return fmt.Errorf("source %q already registered", name)
	}
	r.entries[name] = e
	return nil
}

func (r *Registry) Get(name string) (*Entry, bool) {
	e, ok := r.entries[name]
	return e, ok
}

// Resolve maps requested source names onto registry entries for the given
// kind, ordered by merge priority. An empty request selects every source
// registered for the kind; a name that does not exist for the kind is an
// ErrUnknownSource.
func (r *Registry) Resolve(kind enrich.TargetKind, requested []string) ([]*Entry, error) {
	var out []*Entry

	if len(requested) == 0 {
		for _, e := range r.entries {
			if e.Kind == kind {
				out = append(out, e)
			}
		}
	} else {
		for _, name := range requested {
			e, ok := r.entries[name]
			if !ok || e.Kind != kind {
				return nil, &ErrUnknownSource{Name: name}
			}
			out = append(out, e)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Priority < out[j].Priority })
	return out, nil
}

// Names lists the sources registered for kind in priority order.
func (r *Registry) Names(kind enrich.TargetKind) []string {
	entries, _ := r.Resolve(kind, nil)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}
