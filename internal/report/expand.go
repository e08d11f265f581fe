package report

import (
	"strings"

	"github.com/herbert256/swarmgen/internal/catalog"
	"github.com/herbert256/swarmgen/internal/config"
	"github.com/herbert256/swarmgen/internal/invoke"
	"github.com/herbert256/swarmgen/internal/registry"
)

// Selection names what a report should fan out to: saved agents, swarms
// and ad-hoc "provider:model" specs, in any combination.
type Selection struct {
	AgentIDs   []string `json:"agent_ids"`
	SwarmIDs   []string `json:"swarm_ids"`
	ModelSpecs []string `json:"model_specs"`
}

// Expander turns a selection into a deduplicated list of dispatch targets.
// Expansion never fails: unknown ids and unknown providers are dropped
// silently, so a report over a partially stale selection still runs against
// whatever resolves.
type Expander struct {
	reg *registry.Registry
	cat *catalog.Catalog
	res *Resolver
}

func NewExpander(reg *registry.Registry, cat *catalog.Catalog, res *Resolver) *Expander {
	return &Expander{reg: reg, cat: cat, res: res}
}

// Expand resolves the selection into targets. Directly selected agents keep
// their own id; swarm members and ad-hoc specs share the synthetic
// "swarm:<provider>:<model>" id space, so the same pair reached through two
// swarms, or through a swarm and an ad-hoc spec, dispatches once. A swarm
// member whose agent id was also selected directly is skipped rather than
// dispatched a second time under the synthetic id.
func (e *Expander) Expand(sel Selection, override *config.Parameters) []invoke.Target {
	var targets []invoke.Target
	seen := make(map[string]bool)

	direct := make(map[string]bool)
	for _, id := range sel.AgentIDs {
		a := e.reg.GetAgent(id)
		if a == nil {
			continue
		}
		direct[id] = true
		if seen[id] {
			continue
		}
		seen[id] = true
		targets = append(targets, e.res.ResolveAgent(a, override))
	}

	for _, swarmID := range sel.SwarmIDs {
		sw := e.reg.GetSwarm(swarmID)
		if sw == nil {
			continue
		}
		memberOverride := override
		if memberOverride == nil && sw.ParamsID != "" {
			memberOverride = e.reg.GetParameterPreset(sw.ParamsID)
		}
		for _, agentID := range sw.AgentIDs {
			if direct[agentID] {
				continue
			}
			a := e.reg.GetAgent(agentID)
			if a == nil {
				continue
			}
			model := e.res.EffectiveModel(a)
			id := pairTargetID(a.Provider, model)
			if seen[id] {
				continue
			}
			seen[id] = true
			targets = append(targets, e.res.ResolvePair(id, a.Provider, model, e.pairParams(a, memberOverride)))
		}
	}

	for _, spec := range sel.ModelSpecs {
		provider, model, _ := strings.Cut(spec, ":")
		provider = strings.TrimSpace(provider)
		model = strings.TrimSpace(model)
		p, ok := e.cat.Get(provider)
		if !ok {
			continue
		}
		if model == "" {
			if model = e.reg.GetDefaultModel(provider); model == "" {
				model = p.DefaultModel
			}
		}
		id := pairTargetID(provider, model)
		if seen[id] {
			continue
		}
		seen[id] = true
		var params config.Parameters
		if override != nil {
			params = *override
		}
		targets = append(targets, e.res.ResolvePair(id, provider, model, params))
	}

	return targets
}

// pairParams resolves parameters for a swarm member: the swarm preset (or
// report override) wins over whatever the member carries itself.
func (e *Expander) pairParams(a *registry.Agent, memberOverride *config.Parameters) config.Parameters {
	if memberOverride != nil {
		return *memberOverride
	}
	return e.res.EffectiveParameters(a, nil)
}

func pairTargetID(provider, model string) string {
	return "swarm:" + provider + ":" + model
}
