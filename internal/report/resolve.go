package report

import (
	"strings"

	"github.com/herbert256/swarmgen/internal/catalog"
	"github.com/herbert256/swarmgen/internal/config"
	"github.com/herbert256/swarmgen/internal/invoke"
	"github.com/herbert256/swarmgen/internal/registry"
)

// Resolver computes effective values for dispatch targets by walking the
// override chain: agent-specific value, then configured provider default,
// then catalog default. Resolution never fails on missing optionals; a
// missing provider key resolves to "" and becomes a dispatch-time error,
// not a resolution-time one.
type Resolver struct {
	reg *registry.Registry
	cat *catalog.Catalog
}

func NewResolver(reg *registry.Registry, cat *catalog.Catalog) *Resolver {
	return &Resolver{reg: reg, cat: cat}
}

// EffectiveAPIKey returns the agent's own key when set, else the
// provider-level key.
func (r *Resolver) EffectiveAPIKey(a *registry.Agent) string {
	if strings.TrimSpace(a.APIKey) != "" {
		return a.APIKey
	}
	return r.reg.GetAPIKey(a.Provider)
}

// EffectiveModel returns the agent's own model when set, else the
// configured provider default, else the catalog default.
func (r *Resolver) EffectiveModel(a *registry.Agent) string {
	if strings.TrimSpace(a.Model) != "" {
		return a.Model
	}
	if m := r.reg.GetDefaultModel(a.Provider); m != "" {
		return m
	}
	if p, ok := r.cat.Get(a.Provider); ok {
		return p.DefaultModel
	}
	return ""
}

// EffectiveEndpointURL returns the agent's bound custom endpoint unless it
// is unset or the default sentinel, else the provider base URL.
func (r *Resolver) EffectiveEndpointURL(a *registry.Agent) string {
	if url := r.reg.GetEndpoint(a.EndpointID); url != "" {
		return url
	}
	return r.providerBaseURL(a.Provider)
}

// EffectiveParameters applies the parameter chain: a per-report override
// replaces everything when present; otherwise a referenced preset wins over
// inline parameters. Values are replaced wholesale, never merged.
func (r *Resolver) EffectiveParameters(a *registry.Agent, override *config.Parameters) config.Parameters {
	if override != nil {
		return *override
	}
	if a.ParamsID != "" {
		if preset := r.reg.GetParameterPreset(a.ParamsID); preset != nil {
			return *preset
		}
	}
	if a.Params != nil {
		return *a.Params
	}
	return config.Parameters{}
}

// ResolveAgent builds the dispatch target for a saved agent.
func (r *Resolver) ResolveAgent(a *registry.Agent, override *config.Parameters) invoke.Target {
	return invoke.Target{
		ID:          a.ID,
		DisplayName: a.Name,
		Provider:    a.Provider,
		Model:       r.EffectiveModel(a),
		APIKey:      r.EffectiveAPIKey(a),
		EndpointURL: r.EffectiveEndpointURL(a),
		Params:      r.EffectiveParameters(a, override),
	}
}

// ResolvePair builds the dispatch target for a bare provider+model pair
// (swarm member or ad-hoc spec). Pairs carry no stored key, so resolution
// falls straight through to the provider-level key and base URL.
func (r *Resolver) ResolvePair(targetID, provider, model string, params config.Parameters) invoke.Target {
	display := provider + " " + model
	if p, ok := r.cat.Get(provider); ok {
		display = p.DisplayName + " " + model
	}
	return invoke.Target{
		ID:          targetID,
		DisplayName: display,
		Provider:    provider,
		Model:       model,
		APIKey:      r.reg.GetAPIKey(provider),
		EndpointURL: r.providerBaseURL(provider),
		Params:      params,
	}
}

func (r *Resolver) providerBaseURL(provider string) string {
	if p, ok := r.cat.Get(provider); ok {
		return p.BaseURL
	}
	return ""
}
