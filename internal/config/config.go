// Package config loads the gateway's YAML configuration file and applies
// environment variable overrides for secrets.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config mirrors the on-disk YAML structure, one struct per section.
type Config struct {
	Station      Station      `yaml:"station"`
	Direwolf     Direwolf     `yaml:"direwolf"`
	Telnet       Telnet       `yaml:"telnet"`
	Radio        Radio        `yaml:"radio"`
	Claude       Claude       `yaml:"claude"`
	Search       Search       `yaml:"search"`
	Pota         Pota         `yaml:"pota"`
	DXCluster    DXCluster    `yaml:"dx_cluster"`
	BandCond     BandCond     `yaml:"band_conditions"`
	RateLimits   RateLimits   `yaml:"rate_limits"`
	Logging      Logging      `yaml:"logging"`
	Database     Database     `yaml:"database"`
	Sessions     Sessions     `yaml:"sessions"`
	FileTransfer FileTransfer `yaml:"file_transfer"`

	// Populated from environment, never from YAML.
	AnthropicAPIKey string `yaml:"-"`
	QRZAPIKey       string `yaml:"-"`
	QRZUsername     string `yaml:"-"`
	QRZPassword     string `yaml:"-"`
}

type Station struct {
	Callsign       string `yaml:"callsign"`
	Description    string `yaml:"description"`
	WelcomeMessage string `yaml:"welcome_message"`
}

type Direwolf struct {
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	Timeout int    `yaml:"timeout"`
}

type Telnet struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

type Radio struct {
	Enabled bool   `yaml:"enabled"`
	Model   string `yaml:"model"`
	Device  string `yaml:"device"`
	Baud    int    `yaml:"baud"`
}

type Claude struct {
	Model        string  `yaml:"model"`
	MaxTokens    int     `yaml:"max_tokens"`
	Temperature  float64 `yaml:"temperature"`
	SystemPrompt string  `yaml:"system_prompt"`
}

type Search struct {
	Enabled    bool `yaml:"enabled"`
	MaxResults int  `yaml:"max_results"`
}

type Pota struct {
	Enabled  bool `yaml:"enabled"`
	MaxSpots int  `yaml:"max_spots"`
}

type DXCluster struct {
	Enabled  bool `yaml:"enabled"`
	MaxSpots int  `yaml:"max_spots"`
}

type BandCond struct {
	Enabled bool `yaml:"enabled"`
}

type RateLimits struct {
	Enabled          bool `yaml:"enabled"`
	QueriesPerHour   int  `yaml:"queries_per_hour"`
	QueriesPerDay    int  `yaml:"queries_per_day"`
	MaxResponseChars int  `yaml:"max_response_chars"`
}

type Logging struct {
	LogDir string `yaml:"log_dir"`
	Format string `yaml:"format"`
	Level  string `yaml:"level"`
}

type Database struct {
	Path string `yaml:"path"`
}

type Sessions struct {
	Timeout            int `yaml:"timeout"`
	MaxContextMessages int `yaml:"max_context_messages"`
}

type FileTransfer struct {
	MaxSize int64 `yaml:"max_size"`
}

func defaults() Config {
	return Config{
		Station: Station{
			Callsign:       "N0CALL-10",
			Description:    "Packet radio AI gateway",
			WelcomeMessage: "Welcome!",
		},
		Direwolf: Direwolf{Host: "localhost", Port: 8001, Timeout: 30},
		Telnet:   Telnet{Enabled: false, Host: "localhost", Port: 8023},
		Radio:    Radio{Enabled: true, Model: "FTX-1", Device: "/dev/ttyUSB0", Baud: 4800},
		Claude: Claude{
			Model:       "claude-3-5-sonnet-20241022",
			MaxTokens:   500,
			Temperature: 0.7,
			SystemPrompt: "You are an AI assistant accessible via amateur radio packet radio. " +
				"Keep responses concise and clear as they will be transmitted over radio.",
		},
		Search:     Search{Enabled: false, MaxResults: 5},
		Pota:       Pota{Enabled: false, MaxSpots: 10},
		DXCluster:  DXCluster{Enabled: false, MaxSpots: 10},
		BandCond:   BandCond{Enabled: true},
		RateLimits: RateLimits{Enabled: true, QueriesPerHour: 10, QueriesPerDay: 50, MaxResponseChars: 1024},
		Logging:    Logging{LogDir: "logs", Format: "json", Level: "INFO"},
		Database:   Database{Path: "data/gateway.db"},
		Sessions:   Sessions{Timeout: 1800, MaxContextMessages: 20},
		FileTransfer: FileTransfer{
			MaxSize: 10 * 1024 * 1024,
		},
	}
}

// Load reads the YAML config at path, falling back to built-in defaults for
// any unset field, then applies environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.AnthropicAPIKey = os.Getenv("ANTHROPIC_API_KEY")
	cfg.QRZAPIKey = os.Getenv("QRZ_API_KEY")
	cfg.QRZUsername = os.Getenv("QRZ_USERNAME")
	cfg.QRZPassword = os.Getenv("QRZ_PASSWORD")

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}

	return &cfg, nil
}

// Path resolves the config file location: explicit flag value, then
// CONFIG_PATH, then the default.
func Path(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return "config/config.yaml"
}

// QRZEnabled reports whether QRZ lookup credentials are configured.
func (c *Config) QRZEnabled() bool {
	return c.QRZAPIKey != "" || (c.QRZUsername != "" && c.QRZPassword != "")
}
