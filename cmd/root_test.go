package cmd

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vatsal-bst/bluestacksmcp/internal/config"
)

func TestInitializeConfigDefaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	require.NoError(t, initializeConfig())

	cfg, err := config.NewConfigFromViper(viper.GetViper())
	require.NoError(t, err)
	assert.Equal(t, "adb", cfg.Device.ADBPath)
	assert.Equal(t, 40, cfg.Engine.MaxSteps)
}

func TestInitializeConfigEnvOverride(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Setenv("BLUESTACKS_DEVICE_SERIAL", "emulator-5560")

	require.NoError(t, initializeConfig())

	cfg, err := config.NewConfigFromViper(viper.GetViper())
	require.NoError(t, err)
	assert.Equal(t, "emulator-5560", cfg.Device.Serial)
}

func TestSubcommandsRegistered(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["serve"])
	assert.True(t, names["task"])
}
