package report

import (
	"encoding/json"
	"log/slog"
	"os"
	"strings"

	"github.com/herbert256/swarmgen/internal/config"
	"github.com/herbert256/swarmgen/internal/store"
)

// Calculator estimates the dollar cost of one model invocation. Sources are
// consulted in a fixed order: the cost the API itself reported, a manually
// configured price, a cached externally fetched price table, and finally a
// built-in static table. The last rung always answers, so Cost is total.
type Calculator struct {
	manual map[string]config.Pricing
	cached map[string]config.Pricing
}

func NewCalculator(cfg config.PricingConfig) *Calculator {
	c := &Calculator{
		manual: make(map[string]config.Pricing, len(cfg.Manual)),
		cached: make(map[string]config.Pricing),
	}
	for key, p := range cfg.Manual {
		c.manual[strings.ToLower(key)] = p
	}
	if cfg.CachePath != "" {
		data, err := os.ReadFile(cfg.CachePath)
		if err != nil {
			if !os.IsNotExist(err) {
				slog.Warn("pricing cache unreadable", "path", cfg.CachePath, "error", err)
			}
			return c
		}
		cached := make(map[string]config.Pricing)
		if err := json.Unmarshal(data, &cached); err != nil {
			slog.Warn("pricing cache malformed", "path", cfg.CachePath, "error", err)
			return c
		}
		for key, p := range cached {
			c.cached[strings.ToLower(key)] = p
		}
	}
	return c
}

// Cost returns the invocation cost in dollars. Never negative; a negative
// or absurd API-reported cost is clamped rather than propagated.
func (c *Calculator) Cost(provider, model string, usage store.TokenUsage) float64 {
	if usage.APICost != nil {
		return max(*usage.APICost, 0)
	}

	key := pricingKey(provider, model)
	if p, ok := c.manual[key]; ok {
		return tokenCost(usage, p)
	}
	if p, ok := c.cached[key]; ok {
		return tokenCost(usage, p)
	}
	return tokenCost(usage, staticPricing(provider, model))
}

func pricingKey(provider, model string) string {
	return strings.ToLower(provider + "/" + model)
}

func tokenCost(usage store.TokenUsage, p config.Pricing) float64 {
	cost := float64(usage.InputTokens)/1000*p.InputPer1K +
		float64(usage.OutputTokens)/1000*p.OutputPer1K
	return max(cost, 0)
}

// staticPricing is the fallback table, keyed on model name prefixes within a
// provider. Prices are per 1K tokens and deliberately rough; the manual and
// cached tables exist to correct them.
func staticPricing(provider, model string) config.Pricing {
	model = strings.ToLower(model)
	for _, e := range staticPrices[strings.ToLower(provider)] {
		if strings.HasPrefix(model, e.prefix) {
			return e.price
		}
	}
	if ps, ok := staticPrices[strings.ToLower(provider)]; ok && len(ps) > 0 {
		return ps[len(ps)-1].price
	}
	return config.Pricing{InputPer1K: 0.001, OutputPer1K: 0.002}
}

type staticPrice struct {
	prefix string
	price  config.Pricing
}

var staticPrices = map[string][]staticPrice{
	"openai": {
		{"gpt-4o-mini", config.Pricing{InputPer1K: 0.00015, OutputPer1K: 0.0006}},
		{"gpt-4o", config.Pricing{InputPer1K: 0.0025, OutputPer1K: 0.01}},
		{"o1", config.Pricing{InputPer1K: 0.015, OutputPer1K: 0.06}},
		{"", config.Pricing{InputPer1K: 0.0025, OutputPer1K: 0.01}},
	},
	"anthropic": {
		{"claude-3-5-haiku", config.Pricing{InputPer1K: 0.0008, OutputPer1K: 0.004}},
		{"claude-3-haiku", config.Pricing{InputPer1K: 0.00025, OutputPer1K: 0.00125}},
		{"claude-3-opus", config.Pricing{InputPer1K: 0.015, OutputPer1K: 0.075}},
		{"", config.Pricing{InputPer1K: 0.003, OutputPer1K: 0.015}},
	},
	"google": {
		{"gemini-1.5-flash", config.Pricing{InputPer1K: 0.000075, OutputPer1K: 0.0003}},
		{"", config.Pricing{InputPer1K: 0.00125, OutputPer1K: 0.005}},
	},
	"mistral": {
		{"mistral-small", config.Pricing{InputPer1K: 0.0002, OutputPer1K: 0.0006}},
		{"", config.Pricing{InputPer1K: 0.002, OutputPer1K: 0.006}},
	},
	"perplexity": {
		{"", config.Pricing{InputPer1K: 0.001, OutputPer1K: 0.001}},
	},
	"deepseek": {
		{"", config.Pricing{InputPer1K: 0.00027, OutputPer1K: 0.0011}},
	},
	"xai": {
		{"", config.Pricing{InputPer1K: 0.003, OutputPer1K: 0.015}},
	},
	"openrouter": {
		{"", config.Pricing{InputPer1K: 0.001, OutputPer1K: 0.002}},
	},
}
