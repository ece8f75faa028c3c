// Package flow maps flow names to the ordered detectors they run.
package flow

import (
	"log/slog"
	"sort"

	"aidr-hq/bastion/pkg/config"
	"aidr-hq/bastion/pkg/detector"
	"aidr-hq/bastion/pkg/verdict"
)

// DefaultName is the flow that always exists and holds every enabled detector.
const DefaultName = "default"

// Registry resolves flow names. It is immutable once built.
type Registry struct {
	flows     map[string][]detector.Detector
	detectors *detector.Registry
}

// New builds the flow registry from configured flows.
//
// Unknown or disabled detector names are dropped with a warning; a flow that
// ends up empty is kept. The default flow is always synthesized from the
// enabled detectors in registration order and replaces a configured flow of
// the same name.
func New(detectors *detector.Registry, flows []config.FlowConfig, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "flow")

	r := &Registry{
		flows:     make(map[string][]detector.Detector, len(flows)+1),
		detectors: detectors,
	}

	for _, fc := range flows {
		if fc.Name == DefaultName {
			logger.Warn("configured flow overridden by the built-in default flow", "flow", fc.Name)
			continue
		}
		members := make([]detector.Detector, 0, len(fc.Detectors))
		for _, name := range fc.Detectors {
			d, ok := detectors.Get(name)
			switch {
			case !ok:
				logger.Warn("unknown detector dropped from flow", "flow", fc.Name, "detector", name)
			case !d.Enabled():
				logger.Warn("disabled detector dropped from flow", "flow", fc.Name, "detector", name)
			default:
				members = append(members, d)
			}
		}
		r.flows[fc.Name] = members
	}

	r.flows[DefaultName] = detectors.Enabled()
	return r
}

// Lookup returns the detectors of a flow. Unknown flows have no detectors.
func (r *Registry) Lookup(name string) []detector.Detector {
	return r.flows[name]
}

// Has reports whether a flow is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.flows[name]
	return ok
}

// Names returns the flow names, default first then alphabetical.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.flows))
	for name := range r.flows {
		if name != DefaultName {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return append([]string{DefaultName}, names...)
}

// List describes every flow, default first then alphabetical.
func (r *Registry) List() []verdict.FlowInfo {
	names := r.Names()
	out := make([]verdict.FlowInfo, 0, len(names))
	for _, name := range names {
		members := r.flows[name]
		info := verdict.FlowInfo{FlowName: name, Pipelines: make([]verdict.DetectorInfo, 0, len(members))}
		for _, d := range members {
			info.Pipelines = append(info.Pipelines, verdict.DetectorInfo{Name: d.Name(), Enabled: d.Enabled()})
		}
		out = append(out, info)
	}
	return out
}

// Detectors returns the underlying detector registry.
func (r *Registry) Detectors() *detector.Registry {
	return r.detectors
}

// EnabledCount returns the number of enabled detectors.
func (r *Registry) EnabledCount() int {
	return len(r.flows[DefaultName])
}
