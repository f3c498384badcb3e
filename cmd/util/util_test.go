package util

import (
	"strings"
	"testing"
	"time"

	"github.com/ValentinKolb/ftlsim/lib/ftl"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapString(t *testing.T) {
	text := "(placement) Where GC moves data of a handle: initial (shared GC unit of the group) or persistent (the handle's own unit)"
	wrapped := WrapString(text)
	for _, line := range strings.Split(wrapped, "\n") {
		assert.LessOrEqual(t, len(line), Wrap)
	}
	assert.Equal(t, strings.Fields(text), strings.Fields(wrapped))
}

func bindDeviceFlags(t *testing.T) *cobra.Command {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)

	cmd := &cobra.Command{Use: "test"}
	SetupDeviceFlags(cmd)
	require.NoError(t, viper.BindPFlags(cmd.PersistentFlags()))
	return cmd
}

func TestGetDeviceConfig_Defaults(t *testing.T) {
	bindDeviceFlags(t)

	cfg, err := GetDeviceConfig()
	require.NoError(t, err)

	def := ftl.DefaultConfig()
	assert.True(t, strings.HasPrefix(cfg.Name, "ftl-"))
	cfg.Name = def.Name
	assert.Equal(t, def, cfg)
}

func TestGetDeviceConfig_Overrides(t *testing.T) {
	cmd := bindDeviceFlags(t)

	require.NoError(t, cmd.PersistentFlags().Set("strategy", "placement"))
	require.NoError(t, cmd.PersistentFlags().Set("reclaim-group-degree", "4"))
	require.NoError(t, cmd.PersistentFlags().Set("write-latency", "150us"))
	viper.Set("name", "bench")
	viper.Set("isolation", "persistent")

	cfg, err := GetDeviceConfig()
	require.NoError(t, err)
	assert.Equal(t, "bench", cfg.Name)
	assert.Equal(t, ftl.StrategyPlacement, cfg.Strategy)
	assert.Equal(t, 4, cfg.ReclaimGroupDegree)
	assert.Equal(t, ftl.IsolationPersistent, cfg.Isolation)
	assert.Equal(t, 150*time.Microsecond, cfg.PageWriteLatency)
}

func TestGetDeviceConfig_Invalid(t *testing.T) {
	cmd := bindDeviceFlags(t)

	require.NoError(t, cmd.PersistentFlags().Set("strategy", "zoned"))
	_, err := GetDeviceConfig()
	assert.Error(t, err)
}
