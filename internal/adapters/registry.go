package adapters

import (
	"strings"

	"github.com/rotisserie/eris"

	"github.com/lorehq/lore/internal/models"
)

// Registry maps filesystem paths to the adapter that owns them. Dispatch is
// purely path-based: content sniffing is deliberately avoided, and
// overlapping watch-root claims are rejected at construction.
type Registry struct {
	adapters []Adapter
}

// All returns every supported adapter rooted at the given home directory.
func All(home string) []Adapter {
	return []Adapter{
		NewClaudeCode(home),
		NewCodex(home),
		NewAider(home),
		NewAmp(home),
		NewCline(home),
		NewRooCode(home),
		NewKiloCode(home),
		NewContinueDev(home),
		NewGemini(home),
		NewOpenCode(home),
		NewCursor(home),
	}
}

// NewRegistry builds a registry for the enabled adapter names. An empty
// list enables every adapter. Unknown names and overlapping watch roots are
// construction errors.
func NewRegistry(home string, enabled []string) (*Registry, error) {
	available := All(home)

	var selected []Adapter
	if len(enabled) == 0 {
		selected = available
	} else {
		byName := make(map[string]Adapter, len(available))
		for _, a := range available {
			byName[a.Info().Name] = a
		}
		for _, name := range enabled {
			a, ok := byName[name]
			if !ok {
				return nil, eris.Errorf("unknown watcher: %s", name)
			}
			selected = append(selected, a)
		}
	}

	if err := checkRootOverlap(selected); err != nil {
		return nil, err
	}

	return &Registry{adapters: selected}, nil
}

// checkRootOverlap rejects two adapters whose watch roots nest inside each
// other; that would make path dispatch ambiguous.
func checkRootOverlap(adapters []Adapter) error {
	type root struct {
		adapter string
		path    string
	}
	var roots []root
	for _, a := range adapters {
		for _, r := range a.WatchRoots() {
			roots = append(roots, root{adapter: a.Info().Name, path: r})
		}
	}

	for i := 0; i < len(roots); i++ {
		for j := i + 1; j < len(roots); j++ {
			if roots[i].adapter == roots[j].adapter {
				continue
			}
			if models.PathHasPrefix(roots[i].path, roots[j].path) || models.PathHasPrefix(roots[j].path, roots[i].path) {
				return eris.Errorf(
					"adapters %s and %s claim overlapping watch roots (%s, %s)",
					roots[i].adapter, roots[j].adapter, roots[i].path, roots[j].path,
				)
			}
		}
	}
	return nil
}

// Adapters returns the registered adapters in order.
func (r *Registry) Adapters() []Adapter {
	return r.adapters
}

// Match returns the adapter owning path, or nil when no adapter claims it.
// Multiple claims are a configuration defect and are reported as an error.
func (r *Registry) Match(path string) (Adapter, error) {
	var matched Adapter
	for _, a := range r.adapters {
		if !a.Matches(path) {
			continue
		}
		if matched != nil {
			return nil, eris.Errorf(
				"path claimed by both %s and %s: %s",
				matched.Info().Name, a.Info().Name, path,
			)
		}
		matched = a
	}
	return matched, nil
}

// WatchRoots returns the union of existing watch roots across adapters.
func (r *Registry) WatchRoots() []string {
	seen := make(map[string]struct{})
	var roots []string
	for _, a := range r.adapters {
		for _, root := range a.WatchRoots() {
			if _, ok := seen[root]; ok {
				continue
			}
			seen[root] = struct{}{}
			if dirExists(root) {
				roots = append(roots, root)
			}
		}
	}
	return roots
}

// FindSources enumerates every adapter's current sources.
func (r *Registry) FindSources() (map[string]Adapter, error) {
	sources := make(map[string]Adapter)
	var errs []string
	for _, a := range r.adapters {
		paths, err := a.FindSources()
		if err != nil {
			errs = append(errs, a.Info().Name+": "+err.Error())
			continue
		}
		for _, p := range paths {
			sources[p] = a
		}
	}
	if len(errs) > 0 {
		return sources, eris.Errorf("source discovery failed for: %s", strings.Join(errs, "; "))
	}
	return sources, nil
}
