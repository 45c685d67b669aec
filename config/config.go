package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Logging LoggingConfig `mapstructure:"logging"`
	Queue   QueueConfig   `mapstructure:"queue"`
	Worker  WorkerConfig  `mapstructure:"worker"`
	Sandbox SandboxConfig `mapstructure:"sandbox"`
}

// ServerConfig holds the presentation surfaces configuration
type ServerConfig struct {
	HTTPAddr           string   `mapstructure:"http_addr"`
	MCPTransport       string   `mapstructure:"mcp_transport"`
	CORSOrigins        []string `mapstructure:"cors_origins"`
	ShutdownTimeoutSec int      `mapstructure:"shutdown_timeout_sec"`
}

// LoggingConfig holds logger configuration
type LoggingConfig struct {
	Mode  string `mapstructure:"mode"`
	Level string `mapstructure:"level"`
}

// QueueConfig holds job queue configuration
type QueueConfig struct {
	Backend          string      `mapstructure:"backend"`
	TTLSec           int         `mapstructure:"ttl_sec"`
	SweepIntervalSec int         `mapstructure:"sweep_interval_sec"`
	PollTimeoutSec   int         `mapstructure:"poll_timeout_sec"`
	Redis            RedisConfig `mapstructure:"redis"`
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// WorkerConfig holds orchestrator pool configuration
type WorkerConfig struct {
	Concurrency int `mapstructure:"concurrency"`
}

// SandboxConfig holds sandbox configuration
type SandboxConfig struct {
	Backend            string   `mapstructure:"backend"`
	EnableLocalBackend bool     `mapstructure:"enable_local_backend"`
	Image              string   `mapstructure:"image"`
	RunnerCommand      []string `mapstructure:"runner_command"`
	RunnerPath         string   `mapstructure:"runner_path"`
	RunnerEnv          []string `mapstructure:"runner_env"`
	CPUs               float64  `mapstructure:"cpus"`
	MemoryMB           int      `mapstructure:"memory_mb"`
	PidsLimit          int      `mapstructure:"pids_limit"`
	ScratchMB          int      `mapstructure:"scratch_mb"`
	User               string   `mapstructure:"user"`
	MaxOutputKB        int      `mapstructure:"max_output_kb"`
	KillGraceSec       int      `mapstructure:"kill_grace_sec"`
}

// New loads the configuration from ./config.yaml or ./config/config.yaml
func New() (*Config, error) {
	return Load("")
}

// Load reads configuration from path (or the default search paths when
// empty), environment variables prefixed with NETDEMO_, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("NETDEMO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// If config file not found, continue with defaults
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation error: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.http_addr", ":8000")
	v.SetDefault("server.mcp_transport", "http")
	v.SetDefault("server.cors_origins", []string{"http://localhost:3000", "http://localhost:3001"})
	v.SetDefault("server.shutdown_timeout_sec", 10)

	v.SetDefault("logging.mode", "production")
	v.SetDefault("logging.level", "info")

	v.SetDefault("queue.backend", "memory")
	v.SetDefault("queue.ttl_sec", 3600)
	v.SetDefault("queue.sweep_interval_sec", 60)
	v.SetDefault("queue.poll_timeout_sec", 1)
	v.SetDefault("queue.redis.addr", "localhost:6379")
	v.SetDefault("queue.redis.password", "")
	v.SetDefault("queue.redis.db", 0)
	v.SetDefault("queue.redis.key_prefix", "netdemo:")

	v.SetDefault("worker.concurrency", 4)

	v.SetDefault("sandbox.backend", "docker")
	v.SetDefault("sandbox.enable_local_backend", false)
	v.SetDefault("sandbox.image", "networking-demo-worker:latest")
	v.SetDefault("sandbox.runner_command", []string{"/usr/local/bin/demo-runner"})
	v.SetDefault("sandbox.runner_path", "demo-runner")
	v.SetDefault("sandbox.cpus", 1.0)
	v.SetDefault("sandbox.memory_mb", 512)
	v.SetDefault("sandbox.pids_limit", 100)
	v.SetDefault("sandbox.scratch_mb", 100)
	v.SetDefault("sandbox.user", "65534:65534")
	v.SetDefault("sandbox.max_output_kb", 1024)
	v.SetDefault("sandbox.kill_grace_sec", 2)
}

// validate ensures the configuration is valid
//
//nolint:gocyclo // Flat list of independent checks
func (c *Config) validate() error {
	switch c.Server.MCPTransport {
	case "stdio", "http", "none":
	default:
		return fmt.Errorf("invalid server.mcp_transport: %s, must be 'stdio', 'http' or 'none'", c.Server.MCPTransport)
	}

	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr must not be empty")
	}

	if c.Queue.Backend != "memory" && c.Queue.Backend != "redis" {
		return fmt.Errorf("unsupported queue.backend: %s", c.Queue.Backend)
	}

	if c.Queue.TTLSec <= 0 {
		return fmt.Errorf("queue.ttl_sec must be positive, got: %d", c.Queue.TTLSec)
	}

	if c.Queue.PollTimeoutSec <= 0 {
		return fmt.Errorf("queue.poll_timeout_sec must be positive, got: %d", c.Queue.PollTimeoutSec)
	}

	if c.Queue.Backend == "redis" && c.Queue.Redis.Addr == "" {
		return fmt.Errorf("queue.redis.addr is required for the redis backend")
	}

	if c.Worker.Concurrency <= 0 {
		return fmt.Errorf("worker.concurrency must be positive, got: %d", c.Worker.Concurrency)
	}

	if c.Sandbox.CPUs <= 0 {
		return fmt.Errorf("sandbox.cpus must be positive, got: %g", c.Sandbox.CPUs)
	}

	if c.Sandbox.MemoryMB <= 0 {
		return fmt.Errorf("sandbox.memory_mb must be positive, got: %d", c.Sandbox.MemoryMB)
	}

	if c.Sandbox.PidsLimit <= 0 {
		return fmt.Errorf("sandbox.pids_limit must be positive, got: %d", c.Sandbox.PidsLimit)
	}

	if c.Sandbox.ScratchMB <= 0 {
		return fmt.Errorf("sandbox.scratch_mb must be positive, got: %d", c.Sandbox.ScratchMB)
	}

	if c.Sandbox.MaxOutputKB <= 0 {
		return fmt.Errorf("sandbox.max_output_kb must be positive, got: %d", c.Sandbox.MaxOutputKB)
	}

	if c.Sandbox.KillGraceSec < 0 {
		return fmt.Errorf("sandbox.kill_grace_sec must not be negative, got: %d", c.Sandbox.KillGraceSec)
	}

	if c.Sandbox.User == "" || c.Sandbox.User == "root" || strings.HasPrefix(c.Sandbox.User, "0:") || c.Sandbox.User == "0" {
		return fmt.Errorf("sandbox.user must be a non-root identity, got: %q", c.Sandbox.User)
	}

	supportedBackends := map[string]bool{
		"docker": true,
		"podman": true,
		"local":  c.Sandbox.EnableLocalBackend, // local only enabled if specifically allowed
	}

	if !supportedBackends[c.Sandbox.Backend] {
		return fmt.Errorf("unsupported sandbox.backend: %s", c.Sandbox.Backend)
	}

	if c.Sandbox.Backend == "local" && c.Sandbox.RunnerPath == "" {
		return fmt.Errorf("sandbox.runner_path is required for the local backend")
	}

	if c.Sandbox.Backend != "local" && (c.Sandbox.Image == "" || len(c.Sandbox.RunnerCommand) == 0) {
		return fmt.Errorf("sandbox.image and sandbox.runner_command are required for the %s backend", c.Sandbox.Backend)
	}

	return nil
}

// GetQueueTTL returns the job retention window
func (c *Config) GetQueueTTL() time.Duration {
	return time.Duration(c.Queue.TTLSec) * time.Second
}

// GetSweepInterval returns how often expired jobs are purged from memory
func (c *Config) GetSweepInterval() time.Duration {
	return time.Duration(c.Queue.SweepIntervalSec) * time.Second
}

// GetPollTimeout returns how long a blocked dequeue waits before re-checking
func (c *Config) GetPollTimeout() time.Duration {
	return time.Duration(c.Queue.PollTimeoutSec) * time.Second
}

// GetKillGrace returns how long to wait for output pipes after a kill
func (c *Config) GetKillGrace() time.Duration {
	return time.Duration(c.Sandbox.KillGraceSec) * time.Second
}

// GetShutdownTimeout returns the graceful shutdown budget
func (c *Config) GetShutdownTimeout() time.Duration {
	return time.Duration(c.Server.ShutdownTimeoutSec) * time.Second
}

// GetMaxOutputBytes returns the largest runner output accepted
func (c *Config) GetMaxOutputBytes() int {
	return c.Sandbox.MaxOutputKB * 1024
}
