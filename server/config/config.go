// Package config assembles a run configuration: per-variant defaults,
// then an optional YAML file, then RPS_* environment variables. Flags
// are layered on top by the CLI.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"rpsbench/server/game"
	"rpsbench/server/llm"
)

// Config is the fully resolved experiment configuration.
type Config struct {
	Variant        game.Variant       `yaml:"variant"`
	Model          string             `yaml:"model"`
	Iterations     int                `yaml:"iterations"`
	ResultsFile    string             `yaml:"results_file"`
	ChartsDir      string             `yaml:"charts_dir"`
	RequestTimeout time.Duration      `yaml:"request_timeout"`
	Sampling       llm.SamplingConfig `yaml:"sampling"`
}

// Defaults mirrors the constants the experiments were first run with.
func Defaults(v game.Variant) Config {
	cfg := Config{
		Variant:        v,
		Model:          "openai/gpt-4o",
		Iterations:     100,
		RequestTimeout: 45 * time.Second,
		Sampling: llm.SamplingConfig{
			Temperature:           1.0,
			TopP:                  1.0,
			MaxOutputTokens:       100,
			ReturnTokenCandidates: true,
			NumCandidateTokens:    5,
		},
	}
	switch v {
	case game.Trust:
		cfg.ResultsFile = "trust_game_results.json"
		cfg.ChartsDir = "charts/trust"
		cfg.Sampling.Temperature = 0.5
		cfg.Sampling.StopSequences = []string{"</revealed>"}
	default:
		cfg.ResultsFile = "rps_results_order.json"
		cfg.ChartsDir = "charts/order"
	}
	return cfg
}

// Load resolves the variant (explicit argument > RPS_VARIANT > file >
// order), then layers file and environment over that variant's defaults.
func Load(path, variant string) (Config, error) {
	var raw []byte
	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		raw = b
	}

	name := firstNonEmpty(variant, os.Getenv("RPS_VARIANT"))
	if name == "" && raw != nil {
		var probe struct {
			Variant string `yaml:"variant"`
		}
		if err := yaml.Unmarshal(raw, &probe); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
		name = probe.Variant
	}
	if name == "" {
		name = string(game.Order)
	}
	v, err := game.ParseVariant(name)
	if err != nil {
		return Config{}, err
	}

	cfg := Defaults(v)
	if raw != nil {
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.Variant = v
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.Model = getenv("RPS_MODEL", c.Model)
	c.ResultsFile = getenv("RPS_RESULTS_FILE", c.ResultsFile)
	c.ChartsDir = getenv("RPS_CHARTS_DIR", c.ChartsDir)

	var errs []error
	intVar := func(key string, dst *int) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	floatVar := func(key string, dst *float64) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = f
		}
	}
	intVar("RPS_ITERATIONS", &c.Iterations)
	intVar("RPS_MAX_OUTPUT_TOKENS", &c.Sampling.MaxOutputTokens)
	intVar("RPS_TOP_LOGPROBS", &c.Sampling.NumCandidateTokens)
	floatVar("RPS_TEMPERATURE", &c.Sampling.Temperature)
	floatVar("RPS_TOP_P", &c.Sampling.TopP)
	if v, ok := os.LookupEnv("RPS_STOP"); ok {
		c.Sampling.StopSequences = SplitList(v)
	}
	if v := strings.TrimSpace(os.Getenv("RPS_LOGPROBS")); v != "" {
		c.Sampling.ReturnTokenCandidates = asBool(v)
	}
	if v := strings.TrimSpace(os.Getenv("RPS_REQUEST_TIMEOUT")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("RPS_REQUEST_TIMEOUT: %w", err))
		} else {
			c.RequestTimeout = d
		}
	}
	return errors.Join(errs...)
}

// Validate rejects configurations that would fail or mislead mid-run.
func (c Config) Validate() error {
	var errs []error
	if _, err := game.ParseVariant(string(c.Variant)); err != nil {
		errs = append(errs, err)
	}
	if strings.TrimSpace(c.Model) == "" {
		errs = append(errs, errors.New("model is required"))
	}
	if c.Iterations <= 0 {
		errs = append(errs, fmt.Errorf("iterations must be > 0, got %d", c.Iterations))
	}
	if strings.TrimSpace(c.ResultsFile) == "" {
		errs = append(errs, errors.New("results_file is required"))
	}
	s := c.Sampling
	if s.Temperature < 0 || s.Temperature > 2 {
		errs = append(errs, fmt.Errorf("temperature must be in [0,2], got %g", s.Temperature))
	}
	if s.TopP <= 0 || s.TopP > 1 {
		errs = append(errs, fmt.Errorf("top_p must be in (0,1], got %g", s.TopP))
	}
	if s.MaxOutputTokens <= 0 {
		errs = append(errs, fmt.Errorf("max_output_tokens must be > 0, got %d", s.MaxOutputTokens))
	}
	if s.NumCandidateTokens < 0 || s.NumCandidateTokens > 20 {
		errs = append(errs, fmt.Errorf("num_candidate_tokens must be in [0,20], got %d", s.NumCandidateTokens))
	}
	if c.RequestTimeout < 0 {
		errs = append(errs, fmt.Errorf("request_timeout must not be negative"))
	}
	return errors.Join(errs...)
}

// SplitList splits a "|"-separated list, dropping blanks. Commas are
// left alone since stop sequences may contain them.
func SplitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, "|") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getenv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func asBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "y", "on":
		return true
	default:
		return false
	}
}
