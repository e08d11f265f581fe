package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Store     StoreConfig            `yaml:"store"`
	NATS      NATSConfig             `yaml:"nats"`
	Web       WebConfig              `yaml:"web"`
	Vault     VaultConfig            `yaml:"vault"`
	Dispatch  DispatchConfig         `yaml:"dispatch"`
	Scheduler SchedulerConfig        `yaml:"scheduler"`
	Telegram  TelegramConfig         `yaml:"telegram"`
	Pricing   PricingConfig          `yaml:"pricing"`
	Providers map[string]Provider    `yaml:"providers"`
	Endpoints map[string]Endpoint    `yaml:"endpoints"`
	Presets   map[string]Parameters  `yaml:"presets"`
	Agents    map[string]AgentConfig `yaml:"agents"`
	Swarms    map[string]SwarmConfig `yaml:"swarms"`
}

type StoreConfig struct {
	Path string `yaml:"path"`
}

type NATSConfig struct {
	Port    int    `yaml:"port"`
	DataDir string `yaml:"data_dir"`
}

type WebConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Auth    string `yaml:"auth"`
}

type VaultConfig struct {
	Passphrase string `yaml:"passphrase"`
}

type DispatchConfig struct {
	// Timeout bounds a single model invocation. Timed-out targets are
	// recorded as errors, not retried.
	Timeout time.Duration `yaml:"timeout"`
}

type SchedulerConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
}

type TelegramConfig struct {
	Token  string `yaml:"token"`
	ChatID int64  `yaml:"chat_id"`
}

type PricingConfig struct {
	// CachePath points at a JSON file of externally fetched per-1K-token
	// prices, refreshed out of band.
	CachePath string             `yaml:"cache_path"`
	Manual    map[string]Pricing `yaml:"manual"`
}

// Pricing is a per-1K-token price pair for one provider/model.
type Pricing struct {
	InputPer1K  float64 `yaml:"input_per_1k" json:"input_per_1k"`
	OutputPer1K float64 `yaml:"output_per_1k" json:"output_per_1k"`
}

// Provider overrides or extends a catalog entry.
type Provider struct {
	DisplayName  string   `yaml:"display_name"`
	BaseURL      string   `yaml:"base_url"`
	DefaultModel string   `yaml:"default_model"`
	APIKey       string   `yaml:"api_key"`
	Capabilities []string `yaml:"capabilities"`
}

type Endpoint struct {
	URL string `yaml:"url"`
}

// AgentConfig binds a provider, model, credentials and parameters under a
// name. The map key in Config.Agents is the agent id.
type AgentConfig struct {
	Name       string      `yaml:"name"`
	Provider   string      `yaml:"provider"`
	Model      string      `yaml:"model"`
	APIKey     string      `yaml:"api_key"`
	EndpointID string      `yaml:"endpoint_id"`
	ParamsID   string      `yaml:"params_id"`
	Params     *Parameters `yaml:"params"`
}

type SwarmConfig struct {
	Name     string   `yaml:"name"`
	Agents   []string `yaml:"agents"`
	ParamsID string   `yaml:"params_id"`
}

// Parameters is the request tuning value type. Every field is optional;
// nil means "use the provider default". Instances are replaced wholesale,
// never merged field by field.
type Parameters struct {
	Temperature      *float64 `yaml:"temperature" json:"temperature,omitempty"`
	MaxTokens        *int     `yaml:"max_tokens" json:"max_tokens,omitempty"`
	TopP             *float64 `yaml:"top_p" json:"top_p,omitempty"`
	TopK             *int     `yaml:"top_k" json:"top_k,omitempty"`
	FrequencyPenalty *float64 `yaml:"frequency_penalty" json:"frequency_penalty,omitempty"`
	PresencePenalty  *float64 `yaml:"presence_penalty" json:"presence_penalty,omitempty"`
	Seed             *int     `yaml:"seed" json:"seed,omitempty"`
	SystemPrompt     string   `yaml:"system_prompt" json:"system_prompt,omitempty"`
	ResponseJSON     bool     `yaml:"response_json" json:"response_json,omitempty"`
	SearchEnabled    bool     `yaml:"search_enabled" json:"search_enabled,omitempty"`
	ReturnCitations  bool     `yaml:"return_citations" json:"return_citations,omitempty"`
	SearchRecency    string   `yaml:"search_recency" json:"search_recency,omitempty"`
}

// DefaultEndpointID is the sentinel meaning "use the provider base URL".
const DefaultEndpointID = "default"

func defaults() Config {
	return Config{
		Store: StoreConfig{
			Path: "data/swarmgen.db",
		},
		NATS: NATSConfig{
			Port:    4222,
			DataDir: "data/nats",
		},
		Web: WebConfig{
			Enabled: true,
			Port:    8080,
		},
		Dispatch: DispatchConfig{
			Timeout: 7 * time.Minute,
		},
		Scheduler: SchedulerConfig{
			PollInterval: 30 * time.Second,
		},
	}
}

func Load() (*Config, error) {
	cfg := defaults()

	path := os.Getenv("SWARMGEN_CONFIG")
	if path == "" {
		path = "config/swarmgen.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// Config file not found, use defaults + env
	} else {
		// Expand environment variables in YAML
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(&cfg)

	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("SWARMGEN_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("SWARMGEN_WEB_PASSWORD"); v != "" {
		cfg.Web.Auth = v
	}
	if v := os.Getenv("SWARMGEN_WEB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Web.Port = port
		}
	}
	if v := os.Getenv("SWARMGEN_NATS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.NATS.Port = port
		}
	}
	if v := os.Getenv("SWARMGEN_VAULT_PASSPHRASE"); v != "" {
		cfg.Vault.Passphrase = v
	}
	if v := os.Getenv("SWARMGEN_TELEGRAM_TOKEN"); v != "" {
		cfg.Telegram.Token = v
	}
	if v := os.Getenv("SWARMGEN_TELEGRAM_CHAT_ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Telegram.ChatID = id
		}
	}
}
