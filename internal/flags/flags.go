// Package flags holds feature flags read from configuration.
// Flags are read-only after initialization.
package flags

import (
	"maps"
	"slices"

	"github.com/zjrosen/authprx/internal/log"
)

const (
	// FlagRecordCache serves repeated Api lookups from an in-memory cache.
	FlagRecordCache = "record-cache"

	// FlagTracing gates span creation in the registry even when a tracer
	// provider is configured.
	FlagTracing = "registry-tracing"
)

// defaults apply to known flags the configuration does not mention.
var defaults = map[string]bool{
	FlagRecordCache: true,
	FlagTracing:     true,
}

// Registry holds feature flag state.
type Registry struct {
	flags map[string]bool
}

// New creates a Registry from configured values layered over the defaults.
// Unknown names are kept so they show up in All, but nothing reads them.
func New(configured map[string]bool) *Registry {
	flags := maps.Clone(defaults)
	maps.Copy(flags, configured)

	r := &Registry{flags: flags}
	log.Debug(log.CatConfig, "Feature flags initialized", "count", len(flags), "flags", r.All())
	for name := range configured {
		if _, known := defaults[name]; !known {
			log.Warn(log.CatConfig, "Unknown feature flag in config", "flag", name)
		}
	}
	return r
}

// Enabled reports whether the named flag is on. Unknown flags and a nil
// registry report false.
func (r *Registry) Enabled(name string) bool {
	if r == nil {
		return false
	}
	return r.flags[name]
}

// All returns a copy of every flag value.
func (r *Registry) All() map[string]bool {
	if r == nil {
		return map[string]bool{}
	}
	return maps.Clone(r.flags)
}

// Known returns the names of the flags the program reads, sorted.
func Known() []string {
	return slices.Sorted(maps.Keys(defaults))
}
