// Package config loads the SDK's runtime settings from a YAML file with
// environment overrides for secrets. Components never read config
// globally: the loaded struct is passed into each constructor
// explicitly.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/voxmind/aria/buffer"
)

// Duration wraps time.Duration so YAML can express bounds as "10s" or
// "1m30s".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config contains all runtime settings for a companion agent.
type Config struct {
	Agent  AgentConfig  `yaml:"agent"`
	Memory MemoryConfig `yaml:"memory"`
	Judge  JudgeConfig  `yaml:"judge"`
	Server ServerConfig `yaml:"server"`

	// AnthropicAPIKey is taken from the ANTHROPIC_API_KEY environment
	// variable, never from the file.
	AnthropicAPIKey string `yaml:"-"`
}

// AgentConfig configures the conversation loop.
type AgentConfig struct {
	// PromptPath is the file holding the system preamble.
	PromptPath string `yaml:"prompt_path"`

	// Model is the completion model.
	Model string `yaml:"model"`

	// MaxTokens caps each reply.
	MaxTokens int64 `yaml:"max_tokens"`

	// Capacity bounds the conversational buffer.
	Capacity int `yaml:"capacity"`

	// CompletionTimeout bounds each completion call.
	CompletionTimeout Duration `yaml:"completion_timeout"`
}

// MemoryConfig configures long-term memory.
type MemoryConfig struct {
	// Path is the on-disk vector store location. Empty keeps memories
	// in process only.
	Path string `yaml:"path"`

	// Collection names the record collection.
	Collection string `yaml:"collection"`

	// RecallLimit is how many records are injected per turn.
	RecallLimit int `yaml:"recall_limit"`

	// PersistAssistant stores the full exchange instead of the user
	// utterance alone.
	PersistAssistant bool `yaml:"persist_assistant"`
}

// JudgeConfig configures the remote importance judge.
type JudgeConfig struct {
	// Model is the classification model.
	Model string `yaml:"model"`

	// MaxTokens caps the judge's response budget.
	MaxTokens int64 `yaml:"max_tokens"`

	// Timeout bounds the classification call; on expiry the local
	// heuristic decides.
	Timeout Duration `yaml:"timeout"`
}

// ServerConfig configures the websocket chat front end.
type ServerConfig struct {
	// BindAddr is the listen address.
	BindAddr string `yaml:"bind_addr"`

	// AllowAnyOrigin disables the same-origin websocket check. Leave
	// off unless the server sits behind a trusted proxy.
	AllowAnyOrigin bool `yaml:"allow_any_origin"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Agent: AgentConfig{
			PromptPath:        "prompts/companion.md",
			Model:             "claude-sonnet-4-20250514",
			MaxTokens:         1024,
			Capacity:          buffer.DefaultCapacity,
			CompletionTimeout: Duration(60 * time.Second),
		},
		Memory: MemoryConfig{
			Path:        "./my_vectors",
			Collection:  "memories",
			RecallLimit: 1,
		},
		Judge: JudgeConfig{
			Model:     "claude-3-5-haiku-latest",
			MaxTokens: 100,
			Timeout:   Duration(5 * time.Second),
		},
		Server: ServerConfig{
			BindAddr: ":8080",
		},
	}
}

// Load reads the YAML file at path, fills unset fields with defaults,
// and applies environment overrides. A missing file is not an error:
// defaults plus environment apply.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.AnthropicAPIKey = strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY"))
	if addr := strings.TrimSpace(os.Getenv("ARIA_BIND_ADDR")); addr != "" {
		cfg.Server.BindAddr = addr
	}
	if p := strings.TrimSpace(os.Getenv("ARIA_MEMORY_PATH")); p != "" {
		cfg.Memory.Path = p
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Agent.Capacity < 2 {
		return fmt.Errorf("agent.capacity must be at least 2, got %d", c.Agent.Capacity)
	}
	if c.Memory.RecallLimit < 0 {
		return fmt.Errorf("memory.recall_limit must not be negative, got %d", c.Memory.RecallLimit)
	}
	if c.Agent.CompletionTimeout <= 0 {
		return fmt.Errorf("agent.completion_timeout must be positive, got %s", c.Agent.CompletionTimeout.Std())
	}
	return nil
}

// Preamble reads the system preamble from the configured prompt file.
func (c Config) Preamble() (string, error) {
	data, err := os.ReadFile(c.Agent.PromptPath)
	if err != nil {
		return "", fmt.Errorf("read prompt: %w", err)
	}
	return string(data), nil
}
