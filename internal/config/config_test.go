// File: internal/config/config_test.go
package config

import (
	"bytes"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -- Constructor and Defaults Tests --

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	// Verify a few key defaults to ensure the mechanism works.
	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "adb", cfg.Device.ADBPath)
	assert.Equal(t, "emulator-5554", cfg.Device.Serial)
	assert.Equal(t, 40, cfg.Engine.MaxSteps)
	assert.Equal(t, 5*time.Minute, cfg.Engine.TimeBudget)
	assert.Equal(t, 5*time.Second, cfg.Engine.CaptureTimeout)
	assert.Equal(t, 10*time.Second, cfg.Engine.ActionTimeout)
	assert.Equal(t, 3, cfg.Engine.CaptureRetries)
	assert.Equal(t, 3, cfg.Engine.StallThreshold)
	assert.Equal(t, "gemini", cfg.LLM.Provider)
	assert.Equal(t, "127.0.0.1:8089", cfg.Server.ListenAddr)
	assert.Equal(t, "sessions.db", cfg.Archive.Path)
}

// -- Validation Logic Tests --

func TestConfigValidation(t *testing.T) {
	cfg := NewDefaultConfig()
	assert.NoError(t, cfg.Validate(), "a default config should validate")

	t.Run("missing adb path", func(t *testing.T) {
		bad := *cfg
		bad.Device.ADBPath = ""
		err := bad.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "device.adb_path")
	})

	t.Run("non positive max steps", func(t *testing.T) {
		bad := *cfg
		bad.Engine.MaxSteps = 0
		err := bad.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "engine.max_steps")
	})

	t.Run("non positive time budget", func(t *testing.T) {
		bad := *cfg
		bad.Engine.TimeBudget = 0
		err := bad.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "engine.time_budget")
	})

	t.Run("stall threshold too small", func(t *testing.T) {
		bad := *cfg
		bad.Engine.StallThreshold = 1
		err := bad.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "engine.stall_threshold")
	})
}

// -- File Loading Tests --

func TestNewConfigFromViper(t *testing.T) {
	yamlConfig := []byte(`
logger:
  level: debug
  format: json
device:
  serial: emulator-5556
  command_timeout: 45s
engine:
  max_steps: 15
  time_budget: 2m
llm:
  model: gemini-2.5-pro
`)

	v := viper.New()
	SetDefaults(v)
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(bytes.NewBuffer(yamlConfig)))

	cfg, err := NewConfigFromViper(v)
	require.NoError(t, err)

	// Overridden values.
	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.Equal(t, "json", cfg.Logger.Format)
	assert.Equal(t, "emulator-5556", cfg.Device.Serial)
	assert.Equal(t, 45*time.Second, cfg.Device.CommandTimeout)
	assert.Equal(t, 15, cfg.Engine.MaxSteps)
	assert.Equal(t, 2*time.Minute, cfg.Engine.TimeBudget)
	assert.Equal(t, "gemini-2.5-pro", cfg.LLM.Model)

	// Defaults still intact where not overridden.
	assert.Equal(t, "adb", cfg.Device.ADBPath)
	assert.Equal(t, 3, cfg.Engine.CaptureRetries)
}

func TestNewConfigFromViperRejectsInvalid(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("engine.max_steps", -5)

	_, err := NewConfigFromViper(v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}
