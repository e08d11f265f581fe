package catalog

import (
	"sort"

	"github.com/herbert256/swarmgen/internal/config"
)

// Capability flags a provider may support.
const (
	CapWebSearch = "web-search"
	CapCitations = "citations"
	CapJSONMode  = "json-mode"
	CapStreaming = "streaming"
)

// Provider is an immutable descriptor of one model provider. Entries are
// built at catalog load and never mutated afterwards.
type Provider struct {
	ID           string   `json:"id"`
	DisplayName  string   `json:"display_name"`
	BaseURL      string   `json:"base_url"`
	DefaultModel string   `json:"default_model"`
	Capabilities []string `json:"capabilities"`
}

func (p Provider) HasCapability(cap string) bool {
	for _, c := range p.Capabilities {
		if c == cap {
			return true
		}
	}
	return false
}

var builtin = []Provider{
	{
		ID:           "openai",
		DisplayName:  "OpenAI",
		BaseURL:      "https://api.openai.com/v1",
		DefaultModel: "gpt-4o",
		Capabilities: []string{CapJSONMode, CapStreaming, CapWebSearch},
	},
	{
		ID:           "anthropic",
		DisplayName:  "Anthropic",
		BaseURL:      "https://api.anthropic.com/v1",
		DefaultModel: "claude-sonnet-4-20250514",
		Capabilities: []string{CapJSONMode, CapStreaming},
	},
	{
		ID:           "google",
		DisplayName:  "Google Gemini",
		BaseURL:      "https://generativelanguage.googleapis.com/v1beta/openai",
		DefaultModel: "gemini-2.0-flash",
		Capabilities: []string{CapJSONMode, CapStreaming},
	},
	{
		ID:           "mistral",
		DisplayName:  "Mistral",
		BaseURL:      "https://api.mistral.ai/v1",
		DefaultModel: "mistral-large-latest",
		Capabilities: []string{CapJSONMode, CapStreaming},
	},
	{
		ID:           "perplexity",
		DisplayName:  "Perplexity",
		BaseURL:      "https://api.perplexity.ai",
		DefaultModel: "sonar",
		Capabilities: []string{CapWebSearch, CapCitations, CapStreaming},
	},
	{
		ID:           "deepseek",
		DisplayName:  "DeepSeek",
		BaseURL:      "https://api.deepseek.com/v1",
		DefaultModel: "deepseek-chat",
		Capabilities: []string{CapJSONMode, CapStreaming},
	},
	{
		ID:           "xai",
		DisplayName:  "xAI",
		BaseURL:      "https://api.x.ai/v1",
		DefaultModel: "grok-3",
		Capabilities: []string{CapJSONMode, CapStreaming, CapWebSearch},
	},
	{
		ID:           "openrouter",
		DisplayName:  "OpenRouter",
		BaseURL:      "https://openrouter.ai/api/v1",
		DefaultModel: "openrouter/auto",
		Capabilities: []string{CapJSONMode, CapStreaming},
	},
}

// Catalog is the provider registry: the builtin table merged with config
// overrides and additions.
type Catalog struct {
	providers map[string]Provider
}

func New(overrides map[string]config.Provider) *Catalog {
	c := &Catalog{providers: make(map[string]Provider, len(builtin))}
	for _, p := range builtin {
		c.providers[p.ID] = p
	}

	for id, o := range overrides {
		p, ok := c.providers[id]
		if !ok {
			p = Provider{ID: id, DisplayName: id}
		}
		if o.DisplayName != "" {
			p.DisplayName = o.DisplayName
		}
		if o.BaseURL != "" {
			p.BaseURL = o.BaseURL
		}
		if o.DefaultModel != "" {
			p.DefaultModel = o.DefaultModel
		}
		if len(o.Capabilities) > 0 {
			p.Capabilities = o.Capabilities
		}
		c.providers[id] = p
	}

	return c
}

// Get returns the provider descriptor, or false if the id is unknown.
func (c *Catalog) Get(id string) (Provider, bool) {
	p, ok := c.providers[id]
	return p, ok
}

// List returns all providers sorted by id.
func (c *Catalog) List() []Provider {
	out := make([]Provider, 0, len(c.providers))
	for _, p := range c.providers {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
