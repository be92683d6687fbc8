package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	berrors "github.com/BerkeliumLabs/berkelium/internal/errors"
	"github.com/BerkeliumLabs/berkelium/internal/logging"
)

// Provider names the model backend.
type Provider string

const (
	ProviderAnthropic Provider = "anthropic"
	ProviderGemini    Provider = "gemini"
)

// Default model ids per provider.
const (
	DefaultAnthropicModel = "claude-sonnet-4-5-20250929"
	DefaultGeminiModel    = "gemini-2.5-flash-lite"
)

// Permission modes.
const (
	ModeAsk    = "ask"    // prompt for every write/execute/network tool
	ModeAuto   = "auto"   // approve everything
	ModeStrict = "strict" // deny everything that needs approval
)

// Grant scopes for "allow for session" decisions.
const (
	ScopeProcess = "process"
	ScopeThread  = "thread"
)

// Memory backends.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

// DefaultInstructionsFile is the project instructions file appended to the system context.
const DefaultInstructionsFile = ".berkelium/berkelium.md"

// AgentConfig controls the tool-calling loop.
type AgentConfig struct {
	MaxTurns          int  `yaml:"max_turns" toml:"max_turns"`                     // tool rounds per user turn
	ParallelReadTools bool `yaml:"parallel_read_tools" toml:"parallel_read_tools"` // run read-only batches concurrently
}

// PermissionsConfig controls the approval gate.
type PermissionsConfig struct {
	Mode       string        `yaml:"mode" toml:"mode"`
	Timeout    time.Duration `yaml:"timeout" toml:"timeout"`
	GrantScope string        `yaml:"grant_scope" toml:"grant_scope"`
}

// MemoryConfig selects the thread store.
type MemoryConfig struct {
	Backend         string        `yaml:"backend" toml:"backend"`
	Path            string        `yaml:"path" toml:"path"`
	CompressTimeout time.Duration `yaml:"compress_timeout" toml:"compress_timeout"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	MaxRetries         int           `yaml:"max_retries" toml:"max_retries"`                   // Maximum retries on retryable errors
	BaseDelay          time.Duration `yaml:"base_delay" toml:"base_delay"`                     // Base delay for exponential backoff
	MaxDelay           time.Duration `yaml:"max_delay" toml:"max_delay"`                       // Maximum delay between retries
	TokensPerMinute    int           `yaml:"tokens_per_minute" toml:"tokens_per_minute"`       // Rate limit (tokens/minute)
	EnableRateLimiting bool          `yaml:"enable_rate_limiting" toml:"enable_rate_limiting"` // Enable proactive rate limiting
}

// CommandsConfig lists directories scanned for markdown command files.
type CommandsConfig struct {
	Dirs []string `yaml:"dirs" toml:"dirs"`
}

// Config holds the application configuration
type Config struct {
	APIKey           string            `yaml:"-" toml:"-"` // From environment or --token only
	Provider         Provider          `yaml:"provider" toml:"provider"`
	Model            string            `yaml:"model" toml:"model"`
	MaxTokens        int               `yaml:"max_tokens" toml:"max_tokens"`
	InstructionsFile string            `yaml:"instructions_file" toml:"instructions_file"`
	Agent            AgentConfig       `yaml:"agent" toml:"agent"`
	Permissions      PermissionsConfig `yaml:"permissions" toml:"permissions"`
	Memory           MemoryConfig      `yaml:"memory" toml:"memory"`
	RateLimit        RateLimitConfig   `yaml:"rate_limit" toml:"rate_limit"`
	Commands         CommandsConfig    `yaml:"commands" toml:"commands"`
	Logging          logging.Config    `yaml:"logging" toml:"logging"`

	// Internal: where config was loaded from
	configPath string
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Provider:         ProviderGemini,
		MaxTokens:        8192,
		InstructionsFile: DefaultInstructionsFile,
		Agent: AgentConfig{
			MaxTurns: 20,
		},
		Permissions: PermissionsConfig{
			Mode:       ModeAsk,
			Timeout:    60 * time.Second,
			GrantScope: ScopeProcess,
		},
		Memory: MemoryConfig{
			Backend:         BackendMemory,
			Path:            ".berkelium/memory.db",
			CompressTimeout: 30 * time.Second,
		},
		RateLimit: RateLimitConfig{
			MaxRetries:         5,
			BaseDelay:          1 * time.Second,
			MaxDelay:           60 * time.Second,
			TokensPerMinute:    30000,
			EnableRateLimiting: true,
		},
		Commands: CommandsConfig{
			Dirs: []string{".berkelium/commands"},
		},
		Logging: logging.DefaultConfig(),
	}
}

// LoadOptions carries command-line overrides applied after files and env.
type LoadOptions struct {
	Path     string // explicit config file; skips the search
	Token    string
	Provider string
	Model    string
}

// Load loads configuration from files, environment, then flags
func Load(opts LoadOptions) (*Config, error) {
	cfg := DefaultConfig()

	if opts.Path != "" {
		if err := cfg.loadFromFile(opts.Path); err != nil {
			return nil, berrors.ConfigLoadFailed(opts.Path, err)
		}
		cfg.configPath = opts.Path
	} else {
		for _, path := range getConfigPaths() {
			if _, err := os.Stat(path); err != nil {
				continue
			}
			if err := cfg.loadFromFile(path); err != nil {
				return nil, berrors.ConfigLoadFailed(path, err)
			}
			cfg.configPath = path
			break
		}
	}

	if opts.Provider != "" {
		cfg.Provider = Provider(strings.ToLower(opts.Provider))
	}
	if opts.Model != "" {
		cfg.Model = opts.Model
	}
	if cfg.Model == "" {
		cfg.Model = cfg.defaultModel()
	}

	cfg.APIKey = apiKeyFromEnv(cfg.Provider)
	if opts.Token != "" {
		cfg.APIKey = opts.Token
	}

	cfg.Logging = logging.ConfigFromEnv(cfg.Logging)

	if err := cfg.Validate(); err != nil {
		return nil, berrors.ConfigLoadFailed(cfg.configPath, err)
	}
	return cfg, nil
}

// getConfigPaths returns config file paths in priority order
func getConfigPaths() []string {
	paths := []string{
		"berkelium.yaml",
		"berkelium.toml",
		filepath.Join(".berkelium", "config.yaml"),
		filepath.Join(".berkelium", "config.toml"),
	}

	// Add user config directory
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "berkelium", "config.yaml"))
	}

	return paths
}

// loadFromFile decodes YAML or TOML depending on the extension
func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		_, err = toml.Decode(string(data), c)
	default:
		err = yaml.Unmarshal(data, c)
	}
	return err
}

func apiKeyFromEnv(p Provider) string {
	if p == ProviderAnthropic {
		return os.Getenv("ANTHROPIC_API_KEY")
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		return key
	}
	return os.Getenv("GOOGLE_API_KEY")
}

func (c *Config) defaultModel() string {
	if c.Provider == ProviderAnthropic {
		return DefaultAnthropicModel
	}
	return DefaultGeminiModel
}

// Validate rejects values the runtime cannot work with
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderAnthropic, ProviderGemini:
	default:
		return fmt.Errorf("unknown provider %q", c.Provider)
	}
	switch c.Permissions.Mode {
	case ModeAsk, ModeAuto, ModeStrict:
	default:
		return fmt.Errorf("unknown permission mode %q", c.Permissions.Mode)
	}
	switch c.Permissions.GrantScope {
	case ScopeProcess, ScopeThread:
	default:
		return fmt.Errorf("unknown grant scope %q", c.Permissions.GrantScope)
	}
	switch c.Memory.Backend {
	case BackendMemory, BackendSQLite:
	default:
		return fmt.Errorf("unknown memory backend %q", c.Memory.Backend)
	}
	if c.Agent.MaxTurns <= 0 {
		return fmt.Errorf("agent.max_turns must be positive, got %d", c.Agent.MaxTurns)
	}
	if c.Permissions.Timeout <= 0 {
		return fmt.Errorf("permissions.timeout must be positive, got %s", c.Permissions.Timeout)
	}
	return nil
}

// RequireAPIKey reports a missing key for the configured provider.
func (c *Config) RequireAPIKey() error {
	if c.APIKey != "" {
		return nil
	}
	env := "GEMINI_API_KEY"
	if c.Provider == ProviderAnthropic {
		env = "ANTHROPIC_API_KEY"
	}
	return berrors.ConfigLoadFailed(c.configPath, fmt.Errorf("%s environment variable or --token is required", env))
}

// ConfigPath returns where the config was loaded from
func (c *Config) ConfigPath() string {
	return c.configPath
}
