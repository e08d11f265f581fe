package report

import (
	"testing"

	"github.com/herbert256/swarmgen/internal/catalog"
	"github.com/herbert256/swarmgen/internal/config"
	"github.com/herbert256/swarmgen/internal/registry"
)

func testExpander(cfg *config.Config) *Expander {
	reg := registry.New(nil, nil, cfg)
	cat := catalog.New(cfg.Providers)
	return NewExpander(reg, cat, NewResolver(reg, cat))
}

func baseConfig() *config.Config {
	return &config.Config{
		Agents: map[string]config.AgentConfig{
			"alpha": {Name: "Alpha", Provider: "openai", Model: "gpt-4o", APIKey: "sk-alpha"},
			"beta":  {Name: "Beta", Provider: "anthropic", Model: "claude-3-opus"},
			"gamma": {Name: "Gamma", Provider: "openai", Model: "gpt-4o"},
		},
		Swarms: map[string]config.SwarmConfig{
			"duo": {Name: "Duo", Agents: []string{"alpha", "beta"}},
		},
	}
}

func targetIDs(e *Expander, sel Selection) []string {
	targets := e.Expand(sel, nil)
	ids := make([]string, 0, len(targets))
	for _, t := range targets {
		ids = append(ids, t.ID)
	}
	return ids
}

func TestExpandAgentsKeepOwnID(t *testing.T) {
	e := testExpander(baseConfig())
	ids := targetIDs(e, Selection{AgentIDs: []string{"alpha", "beta"}})
	if len(ids) != 2 || ids[0] != "alpha" || ids[1] != "beta" {
		t.Errorf("unexpected ids: %v", ids)
	}
}

func TestExpandDuplicateAgentSelection(t *testing.T) {
	e := testExpander(baseConfig())
	ids := targetIDs(e, Selection{AgentIDs: []string{"alpha", "alpha"}})
	if len(ids) != 1 {
		t.Errorf("expected 1 target, got %v", ids)
	}
}

func TestExpandUnknownIDsDropped(t *testing.T) {
	e := testExpander(baseConfig())
	ids := targetIDs(e, Selection{
		AgentIDs:   []string{"alpha", "ghost"},
		SwarmIDs:   []string{"nope"},
		ModelSpecs: []string{"unknownprovider:model"},
	})
	if len(ids) != 1 || ids[0] != "alpha" {
		t.Errorf("unexpected ids: %v", ids)
	}
}

func TestExpandSwarmMembersGetPairIDs(t *testing.T) {
	e := testExpander(baseConfig())
	ids := targetIDs(e, Selection{SwarmIDs: []string{"duo"}})
	if len(ids) != 2 {
		t.Fatalf("expected 2 targets, got %v", ids)
	}
	want := map[string]bool{
		"swarm:openai:gpt-4o":          true,
		"swarm:anthropic:claude-3-opus": true,
	}
	for _, id := range ids {
		if !want[id] {
			t.Errorf("unexpected target id %q", id)
		}
	}
}

func TestExpandSwarmMemberSkippedWhenAgentSelected(t *testing.T) {
	// Selecting an agent directly and a swarm containing it must yield one
	// dispatch for that agent, under its own id.
	e := testExpander(baseConfig())
	ids := targetIDs(e, Selection{AgentIDs: []string{"alpha"}, SwarmIDs: []string{"duo"}})
	if len(ids) != 2 {
		t.Fatalf("expected 2 targets, got %v", ids)
	}
	if ids[0] != "alpha" {
		t.Errorf("expected direct agent first, got %v", ids)
	}
	for _, id := range ids[1:] {
		if id == "swarm:openai:gpt-4o" {
			t.Errorf("swarm re-dispatched a directly selected agent: %v", ids)
		}
	}
}

func TestExpandSwarmDedupesEquivalentMembers(t *testing.T) {
	// alpha and gamma share provider+model, so a swarm containing both
	// dispatches the pair once.
	cfg := baseConfig()
	cfg.Swarms["twins"] = config.SwarmConfig{Name: "Twins", Agents: []string{"alpha", "gamma"}}
	e := testExpander(cfg)
	ids := targetIDs(e, Selection{SwarmIDs: []string{"twins"}})
	if len(ids) != 1 || ids[0] != "swarm:openai:gpt-4o" {
		t.Errorf("unexpected ids: %v", ids)
	}
}

func TestExpandAdHocSpecCollidesWithSwarm(t *testing.T) {
	e := testExpander(baseConfig())
	ids := targetIDs(e, Selection{
		SwarmIDs:   []string{"duo"},
		ModelSpecs: []string{"openai:gpt-4o"},
	})
	if len(ids) != 2 {
		t.Errorf("ad-hoc spec duplicated a swarm pair: %v", ids)
	}
}

func TestExpandAdHocSpecDefaultModel(t *testing.T) {
	e := testExpander(baseConfig())
	targets := e.Expand(Selection{ModelSpecs: []string{"openai"}}, nil)
	if len(targets) != 1 {
		t.Fatalf("expected 1 target, got %d", len(targets))
	}
	if targets[0].Model != "gpt-4o" {
		t.Errorf("expected catalog default model, got %q", targets[0].Model)
	}
}

func TestExpandSwarmPresetAppliesToMembers(t *testing.T) {
	temp := 0.2
	cfg := baseConfig()
	cfg.Presets = map[string]config.Parameters{
		"precise": {Temperature: &temp},
	}
	sw := cfg.Swarms["duo"]
	sw.ParamsID = "precise"
	cfg.Swarms["duo"] = sw

	e := testExpander(cfg)
	targets := e.Expand(Selection{SwarmIDs: []string{"duo"}}, nil)
	for _, tgt := range targets {
		if tgt.Params.Temperature == nil || *tgt.Params.Temperature != 0.2 {
			t.Errorf("target %s: swarm preset not applied: %+v", tgt.ID, tgt.Params)
		}
	}
}

func TestExpandOverrideBeatsSwarmPreset(t *testing.T) {
	presetTemp, overrideTemp := 0.2, 0.9
	cfg := baseConfig()
	cfg.Presets = map[string]config.Parameters{"precise": {Temperature: &presetTemp}}
	sw := cfg.Swarms["duo"]
	sw.ParamsID = "precise"
	cfg.Swarms["duo"] = sw

	e := testExpander(cfg)
	targets := e.Expand(Selection{SwarmIDs: []string{"duo"}}, &config.Parameters{Temperature: &overrideTemp})
	for _, tgt := range targets {
		if tgt.Params.Temperature == nil || *tgt.Params.Temperature != 0.9 {
			t.Errorf("target %s: override not applied: %+v", tgt.ID, tgt.Params)
		}
	}
}

func TestExpandEmptySelection(t *testing.T) {
	e := testExpander(baseConfig())
	if targets := e.Expand(Selection{}, nil); len(targets) != 0 {
		t.Errorf("expected no targets, got %d", len(targets))
	}
}
