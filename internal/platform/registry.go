package platform

import (
	"fmt"
	"sort"

	"chessmate/internal/core"
)

type constructor func(s Settings, deps Deps) (Adapter, error)

var constructors = map[Name]constructor{
	Lichess:  func(s Settings, d Deps) (Adapter, error) { return NewLichess(s, d) },
	ChessCom: func(s Settings, d Deps) (Adapter, error) { return NewChessCom(s, d) },
	Offline:  func(s Settings, d Deps) (Adapter, error) { return NewOffline(s, d) },
}

// Info describes a configured platform
type Info struct {
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
}

// Registry holds the adapters instantiated from configuration
type Registry struct {
	adapters map[string]Adapter
	infos    []Info
}

// NewRegistry instantiates every enabled entry. Unknown or repeated names fail.
func NewRegistry(settings []Settings, deps Deps) (*Registry, error) {
	deps = deps.withDefaults()
	r := &Registry{adapters: make(map[string]Adapter)}
	seen := make(map[string]bool)

	for _, s := range settings {
		build, ok := constructors[Name(s.Name)]
		if !ok {
			return nil, core.Errorf(core.KindInvalidArgument, "platform registry", "unknown platform %q", s.Name)
		}
		if seen[s.Name] {
			return nil, core.Errorf(core.KindInvalidArgument, "platform registry", "platform %q configured twice", s.Name)
		}
		seen[s.Name] = true
		r.infos = append(r.infos, Info{Name: s.Name, Enabled: s.Enabled})

		if !s.Enabled {
			deps.Logger.Debug("platform disabled", "platform", s.Name)
			continue
		}

		adapter, err := build(s, deps)
		if err != nil {
			return nil, fmt.Errorf("platform %s: %w", s.Name, err)
		}
		r.adapters[s.Name] = adapter
	}

	sort.Slice(r.infos, func(i, j int) bool { return r.infos[i].Name < r.infos[j].Name })
	return r, nil
}

// Get returns an enabled adapter
func (r *Registry) Get(name string) (Adapter, error) {
	if a, ok := r.adapters[name]; ok {
		return a, nil
	}
	return nil, core.Errorf(core.KindNotFound, "platform registry", "platform %q is not registered or disabled", name)
}

func (r *Registry) Platforms() []Info {
	return append([]Info(nil), r.infos...)
}
