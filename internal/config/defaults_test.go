package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_PassesValidation(t *testing.T) {
	require.NoError(t, validateConfig(DefaultConfig()))
}

func TestDefaultConfig_FieldsMatchConstants(t *testing.T) {
	cfg := DefaultConfig()
	require.Equal(t, DefaultMaxSlots, cfg.Server.MaxSlots)
	require.Equal(t, DefaultQueueCapacity, cfg.Queue.Capacity)
	require.Equal(t, DefaultStorageRoot, cfg.Workspace.StorageRoot)
	require.Equal(t, DefaultContainerCPULimit, cfg.Container.CPULimit)
	require.Equal(t, DefaultHarnessMode, cfg.Harness.DefaultMode)
	require.Equal(t, DefaultLogLevel, cfg.LogLevel)
}
