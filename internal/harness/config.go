package harness

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config describes how to launch the fixture and where to reach it.
type Config struct {
	Command      string        `yaml:"command"`
	Args         []string      `yaml:"args"`
	Env          []string      `yaml:"env"`
	Dir          string        `yaml:"dir"`
	ReadyPattern string        `yaml:"ready_pattern"`
	MaxLines     int           `yaml:"max_lines"`
	Timeout      time.Duration `yaml:"timeout"`
	StopTimeout  time.Duration `yaml:"stop_timeout"`
	BaseURL      string        `yaml:"base_url"`
	CAFile       string        `yaml:"ca_file"`
	Concurrency  int           `yaml:"concurrency"`
}

const DefaultConfigTemplate = `# fixture server launch
command: fixture-server
args: ["serve", "--host", "0.0.0.0", "--port", "8443", "--ssl-keyfile", "key.pem", "--ssl-certfile", "cert.pem"]
ready_pattern: "Application startup complete."
max_lines: 5
timeout: 5s
stop_timeout: 5s
base_url: "https://localhost:8443"
# PEM bundle trusted on top of the OS store (the fixture certificate)
ca_file: "cert.pem"
concurrency: 4
`

// DefaultConfig mirrors DefaultConfigTemplate.
func DefaultConfig() Config {
	return Config{
		Command:      "fixture-server",
		Args:         []string{"serve", "--host", "0.0.0.0", "--port", "8443", "--ssl-keyfile", "key.pem", "--ssl-certfile", "cert.pem"},
		ReadyPattern: "Application startup complete.",
		MaxLines:     5,
		Timeout:      5 * time.Second,
		StopTimeout:  5 * time.Second,
		BaseURL:      "https://localhost:8443",
		CAFile:       "cert.pem",
		Concurrency:  4,
	}
}

// LoadConfig reads path over DefaultConfig. Missing keys keep their defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects configs that cannot start or reach a server.
func (c Config) Validate() error {
	if c.Command == "" {
		return fmt.Errorf("config: command is required")
	}
	if c.ReadyPattern == "" {
		return fmt.Errorf("config: ready_pattern is required")
	}
	if c.MaxLines <= 0 {
		return fmt.Errorf("config: max_lines must be positive")
	}
	if c.Timeout <= 0 || c.StopTimeout <= 0 {
		return fmt.Errorf("config: timeouts must be positive")
	}
	if c.BaseURL == "" {
		return fmt.Errorf("config: base_url is required")
	}
	return nil
}

// Options converts the launch part of c.
func (c Config) Options() Options {
	return Options{
		Command:      c.Command,
		Args:         c.Args,
		Env:          c.Env,
		Dir:          c.Dir,
		ReadyPattern: c.ReadyPattern,
		MaxLines:     c.MaxLines,
		Timeout:      c.Timeout,
		StopTimeout:  c.StopTimeout,
	}
}
