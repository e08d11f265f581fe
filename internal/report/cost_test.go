package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/herbert256/swarmgen/internal/config"
	"github.com/herbert256/swarmgen/internal/store"
)

func TestCostAPIReportedWins(t *testing.T) {
	c := NewCalculator(config.PricingConfig{
		Manual: map[string]config.Pricing{
			"openai/gpt-4o": {InputPer1K: 100, OutputPer1K: 100},
		},
	})
	api := 0.042
	got := c.Cost("openai", "gpt-4o", store.TokenUsage{InputTokens: 1000, APICost: &api})
	if got != 0.042 {
		t.Errorf("expected API-reported cost, got %f", got)
	}
}

func TestCostNegativeAPIReportedClamped(t *testing.T) {
	c := NewCalculator(config.PricingConfig{})
	api := -1.0
	if got := c.Cost("openai", "gpt-4o", store.TokenUsage{APICost: &api}); got != 0 {
		t.Errorf("expected clamp to zero, got %f", got)
	}
}

func TestCostManualOverride(t *testing.T) {
	c := NewCalculator(config.PricingConfig{
		Manual: map[string]config.Pricing{
			"openai/gpt-4o": {InputPer1K: 0.01, OutputPer1K: 0.02},
		},
	})
	got := c.Cost("openai", "gpt-4o", store.TokenUsage{InputTokens: 1000, OutputTokens: 500})
	want := 0.01 + 0.01
	if diff := got - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("expected %f, got %f", want, got)
	}
}

func TestCostCachedPricing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pricing.json")
	data, _ := json.Marshal(map[string]config.Pricing{
		"anthropic/claude-x": {InputPer1K: 0.004, OutputPer1K: 0.008},
	})
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	c := NewCalculator(config.PricingConfig{CachePath: path})
	got := c.Cost("anthropic", "claude-x", store.TokenUsage{InputTokens: 1000, OutputTokens: 1000})
	want := 0.004 + 0.008
	if diff := got - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("expected %f, got %f", want, got)
	}
}

func TestCostStaticFallbackAlwaysAnswers(t *testing.T) {
	c := NewCalculator(config.PricingConfig{})
	usage := store.TokenUsage{InputTokens: 1000, OutputTokens: 1000}

	for _, provider := range []string{"openai", "anthropic", "perplexity", "totally-unknown"} {
		got := c.Cost(provider, "some-model", usage)
		if got <= 0 {
			t.Errorf("provider %s: expected positive fallback cost, got %f", provider, got)
		}
	}
}

func TestCostDeterministic(t *testing.T) {
	c := NewCalculator(config.PricingConfig{})
	usage := store.TokenUsage{InputTokens: 123, OutputTokens: 456}
	first := c.Cost("openai", "gpt-4o", usage)
	for i := 0; i < 5; i++ {
		if got := c.Cost("openai", "gpt-4o", usage); got != first {
			t.Fatalf("cost changed between calls: %f vs %f", first, got)
		}
	}
}

func TestCostZeroUsage(t *testing.T) {
	c := NewCalculator(config.PricingConfig{})
	if got := c.Cost("openai", "gpt-4o", store.TokenUsage{}); got != 0 {
		t.Errorf("expected zero cost for zero usage, got %f", got)
	}
}

func TestCostMalformedCacheIgnored(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pricing.json")
	if err := os.WriteFile(path, []byte("not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	c := NewCalculator(config.PricingConfig{CachePath: path})
	got := c.Cost("openai", "gpt-4o", store.TokenUsage{InputTokens: 1000})
	if got <= 0 {
		t.Errorf("expected static fallback after malformed cache, got %f", got)
	}
}
