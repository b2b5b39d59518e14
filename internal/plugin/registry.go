package plugin

import (
	"sort"

	"github.com/nollyai/studio-server/internal/domain"
)

// Registry maps job types to plugins. It is built once at startup; adding a
// job type means registering a plugin, never branching in the scheduler.
type Registry struct {
	plugins map[domain.JobType]Plugin
}

func NewRegistry(plugins ...Plugin) *Registry {
	r := &Registry{plugins: make(map[domain.JobType]Plugin, len(plugins))}
	for _, p := range plugins {
		r.Register(p)
	}
	return r
}

// Register adds or replaces the plugin for its job type.
func (r *Registry) Register(p Plugin) {
	r.plugins[p.Type()] = p
}

// Resolve returns the plugin for a job type or ErrUnsupportedJobType.
func (r *Registry) Resolve(jobType domain.JobType) (Plugin, error) {
	p, ok := r.plugins[jobType]
	if !ok {
		return nil, domain.ErrUnsupportedJobType
	}
	return p, nil
}

// Types lists registered job types in stable order.
func (r *Registry) Types() []domain.JobType {
	types := make([]domain.JobType, 0, len(r.plugins))
	for t := range r.plugins {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}
