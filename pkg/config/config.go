package config

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config holds the full configuration for the relay.
// The mapstructure tags tell Viper which YAML field maps to which struct field.
type Config struct {
	Server        ServerConfig              `mapstructure:"server"`
	Transport     TransportConfig           `mapstructure:"transport"`
	Redis         RedisConfig               `mapstructure:"redis"`
	FloodGuard    FloodGuardConfig          `mapstructure:"flood_guard"`
	ReplyCache    ReplyCacheConfig          `mapstructure:"reply_cache"`
	SweepInterval time.Duration             `mapstructure:"sweep_interval"`
	Providers     map[string]ProviderConfig `mapstructure:"providers"`
}

type ServerConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
}

// TransportConfig points at the chat-host bridge that delivers inbound
// messages to us and performs sends, typing hints and read receipts.
type TransportConfig struct {
	BridgeURL string `mapstructure:"bridge_url"`
	Token     string `mapstructure:"token"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// FloodGuardConfig throttles raw inbound messages per sender before any
// validation or quota work happens.
type FloodGuardConfig struct {
	Enabled   bool `mapstructure:"enabled"`
	PerMinute int  `mapstructure:"per_minute"`
}

type ReplyCacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	TTL     time.Duration `mapstructure:"ttl"`
}

// RateLimitConfig is one sliding-window quota policy (user or global scope).
type RateLimitConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Limit   int           `mapstructure:"limit"`
	Window  time.Duration `mapstructure:"window"`
}

// TriggerConfig decides which inbound messages a provider answers.
// Kind is "command" (!value <prompt>) or "prefix" (value<prompt>).
type TriggerConfig struct {
	Kind  string `mapstructure:"kind"`
	Value string `mapstructure:"value"`
}

// ProviderConfig is one upstream completion backend with its own
// trigger, persona and quotas.
type ProviderConfig struct {
	Endpoint                  string          `mapstructure:"endpoint"`
	APIKey                    string          `mapstructure:"api_key"`
	Model                     string          `mapstructure:"model"`
	SystemPrompt              string          `mapstructure:"system_prompt"`
	Temperature               float64         `mapstructure:"temperature"`
	TokenLimit                int             `mapstructure:"token_limit"`
	TokenLimitParam           string          `mapstructure:"token_limit_param"`
	RequestTimeout            time.Duration   `mapstructure:"request_timeout"`
	Trigger                   TriggerConfig   `mapstructure:"trigger"`
	BotPersonaName            string          `mapstructure:"bot_persona_name"`
	ReplyAsThread             bool            `mapstructure:"reply_as_thread"`
	InputCharacterLimit       int             `mapstructure:"input_character_limit"`
	EnableInputCharacterLimit bool            `mapstructure:"enable_input_character_limit"`
	UserRateLimit             RateLimitConfig `mapstructure:"user_rate_limit"`
	GlobalRateLimit           RateLimitConfig `mapstructure:"global_rate_limit"`
}

// Retention returns how long usage events must be kept: the longest
// enabled rate-limit window across all providers, never less than 24h.
func (c *Config) Retention() time.Duration {
	retention := 24 * time.Hour
	for _, p := range c.Providers {
		for _, rl := range []RateLimitConfig{p.UserRateLimit, p.GlobalRateLimit} {
			if rl.Enabled && rl.Window > retention {
				retention = rl.Window
			}
		}
	}
	return retention
}

// Validate rejects configs the relay cannot run with.
func (c *Config) Validate() error {
	if len(c.Providers) == 0 {
		return fmt.Errorf("no providers configured")
	}
	for name, p := range c.Providers {
		if p.Endpoint == "" {
			return fmt.Errorf("provider %q: endpoint is required", name)
		}
		if p.Model == "" {
			return fmt.Errorf("provider %q: model is required", name)
		}
		switch p.Trigger.Kind {
		case "command", "prefix":
		default:
			return fmt.Errorf("provider %q: trigger kind must be command or prefix, got %q", name, p.Trigger.Kind)
		}
		if p.Trigger.Value == "" {
			return fmt.Errorf("provider %q: trigger value is required", name)
		}
	}
	return nil
}

// Store wraps configuration with thread-safe access and hot-reload updates.
type Store struct {
	mu  sync.RWMutex
	cfg *Config
}

// NewStaticStore wraps a fixed config without file watching. Used by
// hosts that manage configuration themselves, and by tests.
func NewStaticStore(cfg *Config) *Store {
	s := &Store{}
	s.set(cfg)
	return s
}

func (s *Store) Get() *Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cfg == nil {
		return nil
	}
	cpy := *s.cfg
	return &cpy
}

func (s *Store) set(cfg *Config) {
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
}

// LoadAndWatch loads the config and watches for on-disk changes.
// A reload that fails validation keeps the previous config active.
func LoadAndWatch() (*Store, error) {
	v := viper.NewWithOptions(viper.KeyDelimiter("::"))
	v.AddConfigPath("./configs")
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	store := &Store{}
	if err := refresh(v, store); err != nil {
		return nil, err
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		if err := refresh(v, store); err != nil {
			log.Printf("[CONFIG] reload failed: %v", err)
		} else {
			log.Printf("[CONFIG] reloaded from %s", e.Name)
		}
	})

	return store, nil
}

// Load preserves the one-shot API: it loads once and does not watch.
func Load() (*Config, error) {
	store, err := LoadAndWatch()
	if err != nil {
		return nil, err
	}
	return store.Get(), nil
}

func refresh(v *viper.Viper, store *Store) error {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	store.set(&cfg)
	return nil
}
