package registry

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/herbert256/swarmgen/internal/config"
	"github.com/herbert256/swarmgen/internal/store"
	"github.com/herbert256/swarmgen/internal/vault"
)

// Agent is a resolved agent definition: a named binding of provider, model,
// credentials and parameters. The orchestrator only reads agents.
type Agent struct {
	ID         string
	Name       string
	Provider   string
	Model      string
	APIKey     string
	EndpointID string
	ParamsID   string
	Params     *config.Parameters
}

// Swarm is a named ordered group of agent ids, optionally with a parameter
// preset applied to all members.
type Swarm struct {
	ID       string
	Name     string
	AgentIDs []string
	ParamsID string
}

// Registry is the configuration surface the orchestrator reads from: agents,
// swarms, presets, endpoints and provider API keys. Definitions come from
// the config file; runtime-set provider keys live encrypted in the store.
type Registry struct {
	store *store.Store
	vault *vault.Vault
	cfg   *config.Config
}

func New(s *store.Store, v *vault.Vault, cfg *config.Config) *Registry {
	return &Registry{store: s, vault: v, cfg: cfg}
}

// Sync persists the config-declared agents and swarms into the store so the
// web API can list them, and prunes entries removed from the config.
func (r *Registry) Sync() error {
	agentIDs := make([]string, 0, len(r.cfg.Agents))
	for id, def := range r.cfg.Agents {
		agentIDs = append(agentIDs, id)

		name := def.Name
		if name == "" {
			name = id
		}
		a := &store.Agent{
			ID:         id,
			Name:       name,
			Provider:   def.Provider,
			Model:      def.Model,
			EndpointID: def.EndpointID,
			ParamsID:   def.ParamsID,
		}
		if err := r.store.SaveAgent(a); err != nil {
			return fmt.Errorf("save agent %s: %w", id, err)
		}
	}
	if err := r.store.DeleteAgentsNotIn(agentIDs); err != nil {
		return fmt.Errorf("delete stale agents: %w", err)
	}

	swarmIDs := make([]string, 0, len(r.cfg.Swarms))
	for id, def := range r.cfg.Swarms {
		swarmIDs = append(swarmIDs, id)

		name := def.Name
		if name == "" {
			name = id
		}
		sw := &store.Swarm{
			ID:       id,
			Name:     name,
			AgentIDs: def.Agents,
			ParamsID: def.ParamsID,
		}
		if err := r.store.SaveSwarm(sw); err != nil {
			return fmt.Errorf("save swarm %s: %w", id, err)
		}
	}
	if err := r.store.DeleteSwarmsNotIn(swarmIDs); err != nil {
		return fmt.Errorf("delete stale swarms: %w", err)
	}

	return nil
}

// GetAgent returns the agent definition, or nil if the id is unknown.
func (r *Registry) GetAgent(id string) *Agent {
	def, ok := r.cfg.Agents[id]
	if !ok {
		return nil
	}
	name := def.Name
	if name == "" {
		name = id
	}
	return &Agent{
		ID:         id,
		Name:       name,
		Provider:   def.Provider,
		Model:      def.Model,
		APIKey:     def.APIKey,
		EndpointID: def.EndpointID,
		ParamsID:   def.ParamsID,
		Params:     def.Params,
	}
}

// GetSwarm returns the swarm definition, or nil if the id is unknown.
func (r *Registry) GetSwarm(id string) *Swarm {
	def, ok := r.cfg.Swarms[id]
	if !ok {
		return nil
	}
	name := def.Name
	if name == "" {
		name = id
	}
	return &Swarm{
		ID:       id,
		Name:     name,
		AgentIDs: def.Agents,
		ParamsID: def.ParamsID,
	}
}

func (r *Registry) ListAgents() []Agent {
	out := make([]Agent, 0, len(r.cfg.Agents))
	for id := range r.cfg.Agents {
		out = append(out, *r.GetAgent(id))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (r *Registry) ListSwarms() []Swarm {
	out := make([]Swarm, 0, len(r.cfg.Swarms))
	for id := range r.cfg.Swarms {
		out = append(out, *r.GetSwarm(id))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// GetAPIKey returns the provider-level key: a runtime-set encrypted key
// wins over the config file key. A missing key resolves to "", never an
// error; blank keys are the dispatcher's problem.
func (r *Registry) GetAPIKey(providerID string) string {
	if r.vault != nil && r.store != nil {
		sec, err := r.store.GetSecret(providerKeySecret(providerID))
		if err != nil {
			slog.Warn("provider key lookup failed", "provider", providerID, "error", err)
		} else if sec != nil {
			plaintext, err := r.vault.Decrypt(sec.Value, sec.Nonce)
			if err != nil {
				slog.Warn("provider key decrypt failed", "provider", providerID, "error", err)
			} else {
				return string(plaintext)
			}
		}
	}

	if p, ok := r.cfg.Providers[providerID]; ok {
		return p.APIKey
	}
	return ""
}

// SetAPIKey stores a provider-level key encrypted at rest.
func (r *Registry) SetAPIKey(providerID, key string) error {
	if r.vault == nil {
		return fmt.Errorf("vault passphrase not configured")
	}
	ciphertext, nonce, err := r.vault.Encrypt([]byte(key))
	if err != nil {
		return fmt.Errorf("encrypt provider key: %w", err)
	}
	return r.store.SaveSecret(&store.Secret{
		Name:  providerKeySecret(providerID),
		Value: ciphertext,
		Nonce: nonce,
	})
}

// GetDefaultModel returns the configured default model for a provider, or
// "" when the catalog default should be used.
func (r *Registry) GetDefaultModel(providerID string) string {
	if p, ok := r.cfg.Providers[providerID]; ok {
		return p.DefaultModel
	}
	return ""
}

// GetParameterPreset returns the named preset, or nil if unknown.
func (r *Registry) GetParameterPreset(id string) *config.Parameters {
	if p, ok := r.cfg.Presets[id]; ok {
		preset := p
		return &preset
	}
	return nil
}

// GetEndpoint returns the custom endpoint URL, or "" if the id is unknown
// or the default sentinel.
func (r *Registry) GetEndpoint(endpointID string) string {
	if endpointID == "" || endpointID == config.DefaultEndpointID {
		return ""
	}
	if e, ok := r.cfg.Endpoints[endpointID]; ok {
		return e.URL
	}
	return ""
}

func providerKeySecret(providerID string) string {
	return "provider-key:" + providerID
}
