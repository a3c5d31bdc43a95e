// This file defines the configuration structure for the application.
package config

import (
	// use Viper for loading the config.yml file.
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration settings for the application.
// It maps directly to the structure of config.yml.
type Config struct {
	Port     int `mapstructure:"port"`
	Database struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"database"`
	Log     LogConfig     `mapstructure:"log"`
	Model   ModelConfig   `mapstructure:"model"`
	Extract ExtractConfig `mapstructure:"extract"`
	Prompt  PromptConfig  `mapstructure:"prompt"`
	Sink    SinkConfig    `mapstructure:"sink"`
	Browser BrowserConfig `mapstructure:"browser"`
	Scripts struct {
		Path    string        `mapstructure:"path"`
		Watch   bool          `mapstructure:"watch"`
		Timeout time.Duration `mapstructure:"timeout"`
	} `mapstructure:"scripts"`
	History struct {
		RecentLimit int `mapstructure:"recent_limit"`
		Keep        int `mapstructure:"keep"`
	} `mapstructure:"history"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// ModelConfig selects the local model and its generation parameters.
type ModelConfig struct {
	ID          string        `mapstructure:"id"`
	BaseURL     string        `mapstructure:"base_url"`
	APIKey      string        `mapstructure:"api_key"`
	PullURL     string        `mapstructure:"pull_url"` // Ollama native API, empty disables pulling
	Temperature float64       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`
}

type ExtractConfig struct {
	MaxLength           int           `mapstructure:"max_length"`
	MinStructuredChars  int           `mapstructure:"min_structured_chars"`
	MinBlockChars       int           `mapstructure:"min_block_chars"`
	NormalizeWhitespace bool          `mapstructure:"normalize_whitespace"`
	Selectors           []string      `mapstructure:"selectors"`
	FetchTimeout        time.Duration `mapstructure:"fetch_timeout"`
}

// PromptConfig controls how extracted text becomes a user turn.
type PromptConfig struct {
	MaxChars int    `mapstructure:"max_chars"`
	MinChars int    `mapstructure:"min_chars"`
	Template string `mapstructure:"template"`
	// RevertOnError drops the pending user turn when generation fails.
	RevertOnError bool `mapstructure:"revert_on_error"`
}

type SinkConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	URL     string        `mapstructure:"url"`
	Token   string        `mapstructure:"token"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type BrowserConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	RemoteURL      string        `mapstructure:"remote_url"`
	TranscriptWait time.Duration `mapstructure:"transcript_wait"`
}

// DefaultPromptTemplate wraps page text in a summarization instruction.
// %s is replaced by the (truncated) page text.
const DefaultPromptTemplate = "Summarize the following article in approximately 200-250 words. " +
	"Focus on the main ideas and key findings, rephrasing the content concisely. " +
	"Do not copy-paste directly from the source text. " +
	"Keep it brief and to the point, aimed at a general audience:\n\n%s"

// Load reads configuration from a file named "config.yml" in the
// current directory and unmarshals it into a Config struct.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config") // name of config file (without extension)
	v.SetConfigType("yml")    // or "yaml"
	v.AddConfigPath(".")      // looking for config in the current directory

	// --- Environment Variable Overrides ---
	// e.g., PAGESUM_MODEL_ID will override the `model.id` key.
	v.SetEnvPrefix("PAGESUM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; ignore error and use defaults
		} else {
			// Config file was found but another error was produced
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// SetDefaults registers a default for every known key. AutomaticEnv only
// sees keys viper already knows about, so every key needs one.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("port", 8080)
	v.SetDefault("database.path", "./pagesum.db")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", true)

	v.SetDefault("model.id", "llama3.2:1b")
	v.SetDefault("model.base_url", "http://localhost:11434/v1")
	v.SetDefault("model.api_key", "ollama")
	v.SetDefault("model.pull_url", "http://localhost:11434")
	v.SetDefault("model.temperature", 0.7)
	v.SetDefault("model.max_tokens", 512)
	v.SetDefault("model.idle_timeout", 15*time.Minute)

	v.SetDefault("extract.max_length", 5000)
	v.SetDefault("extract.min_structured_chars", 200)
	v.SetDefault("extract.min_block_chars", 20)
	v.SetDefault("extract.normalize_whitespace", true)
	v.SetDefault("extract.selectors", []string{})
	v.SetDefault("extract.fetch_timeout", 30*time.Second)

	v.SetDefault("prompt.max_chars", 4000)
	v.SetDefault("prompt.min_chars", 50)
	v.SetDefault("prompt.template", DefaultPromptTemplate)
	v.SetDefault("prompt.revert_on_error", true)

	v.SetDefault("sink.enabled", false)
	v.SetDefault("sink.url", "http://localhost:8080/add")
	v.SetDefault("sink.token", "")
	v.SetDefault("sink.timeout", 5*time.Second)

	v.SetDefault("browser.enabled", false)
	v.SetDefault("browser.remote_url", "")
	v.SetDefault("browser.transcript_wait", time.Second)

	v.SetDefault("scripts.path", "./scripts")
	v.SetDefault("scripts.watch", true)
	v.SetDefault("scripts.timeout", 5*time.Second)

	v.SetDefault("history.recent_limit", 5)
	v.SetDefault("history.keep", 500)
}

// Defaults returns a Config populated only with default values.
func Defaults() *Config {
	v := viper.New()
	SetDefaults(v)
	var cfg Config
	// Unmarshal of pure defaults cannot fail.
	_ = v.Unmarshal(&cfg)
	return &cfg
}
