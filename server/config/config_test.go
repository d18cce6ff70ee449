package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rpsbench/server/game"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"RPS_VARIANT", "RPS_MODEL", "RPS_RESULTS_FILE", "RPS_CHARTS_DIR", "RPS_ITERATIONS",
		"RPS_MAX_OUTPUT_TOKENS", "RPS_TOP_LOGPROBS", "RPS_TEMPERATURE", "RPS_TOP_P",
		"RPS_LOGPROBS", "RPS_REQUEST_TIMEOUT",
	} {
		t.Setenv(k, "")
	}
	// RPS_STOP is checked with LookupEnv, so it has to be truly unset.
	t.Setenv("RPS_STOP", "")
	os.Unsetenv("RPS_STOP")
}

func TestDefaultsPerVariant(t *testing.T) {
	o := Defaults(game.Order)
	assert.Equal(t, 1.0, o.Sampling.Temperature)
	assert.Empty(t, o.Sampling.StopSequences)
	assert.Equal(t, "rps_results_order.json", o.ResultsFile)
	assert.Equal(t, 5, o.Sampling.NumCandidateTokens)
	assert.NoError(t, o.Validate())

	tr := Defaults(game.Trust)
	assert.Equal(t, 0.5, tr.Sampling.Temperature)
	assert.Equal(t, []string{"</revealed>"}, tr.Sampling.StopSequences)
	assert.Equal(t, "trust_game_results.json", tr.ResultsFile)
	assert.Equal(t, 100, tr.Iterations)
	assert.NoError(t, tr.Validate())
}

func TestLoadLayering(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "exp.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
variant: trust
model: openrouter/meta-llama/llama-3.1-70b-instruct
iterations: 20
request_timeout: 10s
sampling:
  top_p: 0.9
`), 0o644))
	t.Setenv("RPS_ITERATIONS", "7")

	cfg, err := Load(path, "")
	require.NoError(t, err)
	assert.Equal(t, game.Trust, cfg.Variant)
	assert.Equal(t, "openrouter/meta-llama/llama-3.1-70b-instruct", cfg.Model)
	assert.Equal(t, 7, cfg.Iterations, "env beats file")
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 0.9, cfg.Sampling.TopP)
	assert.Equal(t, 0.5, cfg.Sampling.Temperature, "trust default survives partial sampling block")
	assert.Equal(t, []string{"</revealed>"}, cfg.Sampling.StopSequences)
	assert.Equal(t, 100, cfg.Sampling.MaxOutputTokens)
}

func TestLoadVariantPrecedence(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "exp.yaml")
	require.NoError(t, os.WriteFile(path, []byte("variant: trust\n"), 0o644))

	cfg, err := Load(path, "order")
	require.NoError(t, err)
	assert.Equal(t, game.Order, cfg.Variant)
	assert.Equal(t, "rps_results_order.json", cfg.ResultsFile)

	t.Setenv("RPS_VARIANT", "trust")
	cfg, err = Load("", "")
	require.NoError(t, err)
	assert.Equal(t, game.Trust, cfg.Variant)

	_, err = Load("", "lizard")
	assert.ErrorIs(t, err, game.ErrUnknownVariant)
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("RPS_TEMPERATURE", "0.2")
	t.Setenv("RPS_STOP", "</revealed>| END ")
	t.Setenv("RPS_LOGPROBS", "no")
	t.Setenv("RPS_MODEL", "gpt-4o-mini")

	cfg, err := Load("", "")
	require.NoError(t, err)
	assert.Equal(t, 0.2, cfg.Sampling.Temperature)
	assert.Equal(t, []string{"</revealed>", "END"}, cfg.Sampling.StopSequences)
	assert.False(t, cfg.Sampling.ReturnTokenCandidates)
	assert.Equal(t, "gpt-4o-mini", cfg.Model)
}

func TestLoadBadEnvAndFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("RPS_ITERATIONS", "many")
	_, err := Load("", "")
	assert.ErrorContains(t, err, "RPS_ITERATIONS")

	clearEnv(t)
	_, err = Load(filepath.Join(t.TempDir(), "nope.yaml"), "")
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("iterations: [1,2"), 0o644))
	_, err = Load(bad, "order")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Defaults(game.Order)
	cfg.Iterations = 0
	cfg.Sampling.NumCandidateTokens = 25
	cfg.Sampling.TopP = 0
	cfg.Model = " "
	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"iterations", "num_candidate_tokens", "top_p", "model"} {
		assert.ErrorContains(t, err, want)
	}

	cfg = Defaults(game.Order)
	cfg.Variant = "lizard"
	assert.ErrorIs(t, cfg.Validate(), game.ErrUnknownVariant)
}

func TestSplitList(t *testing.T) {
	assert.Nil(t, SplitList(""))
	assert.Equal(t, []string{"a,b", "c"}, SplitList("a,b | c |"))
}
