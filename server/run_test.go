package main

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rpsbench/server/game"
)

func TestLoadRunConfigFlagsOverride(t *testing.T) {
	for _, k := range []string{"RPS_VARIANT", "RPS_ITERATIONS", "RPS_MODEL", "RPS_TEMPERATURE"} {
		t.Setenv(k, "")
	}
	var o runFlags
	cmd := &cobra.Command{Use: "run"}
	bindRunFlags(cmd.Flags(), &o)
	require.NoError(t, cmd.Flags().Parse([]string{
		"--variant", "trust", "-n", "3", "--stop", "</x>", "--stop", "a,b", "--top-logprobs", "0",
	}))

	cfg, err := loadRunConfig(cmd, o)
	require.NoError(t, err)
	assert.Equal(t, game.Trust, cfg.Variant)
	assert.Equal(t, 3, cfg.Iterations)
	assert.Equal(t, []string{"</x>", "a,b"}, cfg.Sampling.StopSequences)
	assert.False(t, cfg.Sampling.ReturnTokenCandidates)
	assert.Equal(t, 0.5, cfg.Sampling.Temperature, "unset flags keep the variant default")
	assert.Equal(t, "openai/gpt-4o", cfg.Model)
	assert.NoError(t, cfg.Validate())
}
