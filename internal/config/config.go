// File: internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	Device  DeviceConfig  `mapstructure:"device" yaml:"device"`
	Engine  EngineConfig  `mapstructure:"engine" yaml:"engine"`
	LLM     LLMConfig     `mapstructure:"llm" yaml:"llm"`
	Archive ArchiveConfig `mapstructure:"archive" yaml:"archive"`
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// DeviceConfig describes how to reach the emulator over ADB.
type DeviceConfig struct {
	ADBPath        string        `mapstructure:"adb_path" yaml:"adb_path"`
	Serial         string        `mapstructure:"serial" yaml:"serial"`
	CommandTimeout time.Duration `mapstructure:"command_timeout" yaml:"command_timeout"`
	InstallTimeout time.Duration `mapstructure:"install_timeout" yaml:"install_timeout"`
	LogcatLines    int           `mapstructure:"logcat_lines" yaml:"logcat_lines"`
	// CommandsPerSecond paces synthetic input so back-to-back gestures do not
	// flood the bridge.
	CommandsPerSecond float64 `mapstructure:"commands_per_second" yaml:"commands_per_second"`
	ArtifactDir       string  `mapstructure:"artifact_dir" yaml:"artifact_dir"`
}

// EngineConfig tunes the task orchestration loop.
type EngineConfig struct {
	MaxSteps       int           `mapstructure:"max_steps" yaml:"max_steps"`
	TimeBudget     time.Duration `mapstructure:"time_budget" yaml:"time_budget"`
	CaptureTimeout time.Duration `mapstructure:"capture_timeout" yaml:"capture_timeout"`
	ActionTimeout  time.Duration `mapstructure:"action_timeout" yaml:"action_timeout"`
	CaptureRetries int           `mapstructure:"capture_retries" yaml:"capture_retries"`
	StallThreshold int           `mapstructure:"stall_threshold" yaml:"stall_threshold"`
	CrashScan      bool          `mapstructure:"crash_scan" yaml:"crash_scan"`
}

// LLMConfig configures the reasoning backend.
type LLMConfig struct {
	Provider    string        `mapstructure:"provider" yaml:"provider"`
	Model       string        `mapstructure:"model" yaml:"model"`
	APIKey      string        `mapstructure:"api_key" yaml:"-"`
	Endpoint    string        `mapstructure:"endpoint" yaml:"endpoint"`
	APITimeout  time.Duration `mapstructure:"api_timeout" yaml:"api_timeout"`
	Temperature float64       `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens" yaml:"max_tokens"`
}

// ArchiveConfig locates the session/report archive database.
type ArchiveConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// ServerConfig configures the tool dispatch HTTP server.
type ServerConfig struct {
	ListenAddr      string        `mapstructure:"listen_addr" yaml:"listen_addr"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "bluestacksmcp")
	v.SetDefault("logger.log_file", "bluestacksmcp.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Device --
	v.SetDefault("device.adb_path", "adb")
	v.SetDefault("device.serial", "emulator-5554")
	v.SetDefault("device.command_timeout", "30s")
	v.SetDefault("device.install_timeout", "120s")
	v.SetDefault("device.logcat_lines", 1000)
	v.SetDefault("device.commands_per_second", 10.0)
	v.SetDefault("device.artifact_dir", "artifacts")

	// -- Engine --
	v.SetDefault("engine.max_steps", 40)
	v.SetDefault("engine.time_budget", "5m")
	v.SetDefault("engine.capture_timeout", "5s")
	v.SetDefault("engine.action_timeout", "10s")
	v.SetDefault("engine.capture_retries", 3)
	v.SetDefault("engine.stall_threshold", 3)
	v.SetDefault("engine.crash_scan", true)

	// -- LLM --
	v.SetDefault("llm.provider", "gemini")
	v.SetDefault("llm.model", "gemini-2.5-flash")
	v.SetDefault("llm.api_timeout", "60s")
	v.SetDefault("llm.temperature", 0.2)
	v.SetDefault("llm.max_tokens", 4096)

	// -- Archive --
	v.SetDefault("archive.path", "sessions.db")

	// -- Server --
	v.SetDefault("server.listen_addr", "127.0.0.1:8089")
	v.SetDefault("server.request_timeout", "15m")
	v.SetDefault("server.shutdown_timeout", "30s")
}

// NewConfigFromViper creates a validated configuration from a viper instance.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	// Sensitive values come from the environment, never the config file.
	v.BindEnv("llm.api_key", "BLUESTACKS_LLM_API_KEY", "GEMINI_API_KEY")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// NewDefaultConfig returns a configuration populated with default values only.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.Device.ADBPath == "" {
		return fmt.Errorf("device.adb_path must not be empty")
	}
	if c.Engine.MaxSteps <= 0 {
		return fmt.Errorf("engine.max_steps must be a positive integer")
	}
	if c.Engine.TimeBudget <= 0 {
		return fmt.Errorf("engine.time_budget must be a positive duration")
	}
	if c.Engine.CaptureRetries < 0 {
		return fmt.Errorf("engine.capture_retries must not be negative")
	}
	if c.Engine.StallThreshold < 2 {
		return fmt.Errorf("engine.stall_threshold must be at least 2")
	}
	if c.Device.CommandsPerSecond <= 0 {
		return fmt.Errorf("device.commands_per_second must be positive")
	}
	return nil
}
