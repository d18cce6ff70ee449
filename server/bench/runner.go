// Package bench drives an experiment: every scenario, N sequential
// repetitions, one Trial per successful completion.
package bench

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"rpsbench/server/agent"
	"rpsbench/server/game"
	"rpsbench/server/llm"
)

// Completer is the single synchronous call the runner needs.
type Completer interface {
	Complete(ctx context.Context, conv agent.Conversation, sc llm.SamplingConfig) (llm.Completion, error)
}

// Config is one experiment run: which variant, how many repetitions per scenario.
type Config struct {
	Variant       game.Variant
	Iterations    int
	Sampling      llm.SamplingConfig
	ProgressEvery int // 0 means every 10 iterations
}

// Runner drives the scenario loop against a Completer.
type Runner struct {
	Client  Completer
	Builder agent.Builder
	Log     *zap.Logger
	Out     io.Writer // progress lines; nil discards
}

type Result struct {
	Trials      []Trial
	Attempted   int
	Failed      int
	Interrupted bool
}

// Run iterates scenarios in generator order. A failed request is logged
// and that repetition skipped. Cancelling ctx stops between repetitions
// and returns what was collected.
func (r *Runner) Run(ctx context.Context, cfg Config) Result {
	log := r.Log
	if log == nil {
		log = zap.NewNop()
	}
	out := r.Out
	if out == nil {
		out = io.Discard
	}
	every := cfg.ProgressEvery
	if every <= 0 {
		every = 10
	}

	var res Result
	scenarios := game.Scenarios(cfg.Variant)
	for _, sc := range scenarios {
		fmt.Fprintf(out, "Running scenario: %s\n", describe(sc))
		for i := 0; i < cfg.Iterations; i++ {
			if ctx.Err() != nil {
				res.Interrupted = true
				log.Warn("run interrupted", zap.String("scenario", sc.Key()), zap.Int("iteration", i), zap.Int("trials", len(res.Trials)))
				return res
			}
			if i%every == 0 && i > 0 {
				fmt.Fprintf(out, "Completed %d iterations for scenario %s\n", i, describe(sc))
			}

			res.Attempted++
			trial, err := r.once(ctx, sc, cfg.Sampling)
			if err != nil {
				if errors.Is(err, context.Canceled) && ctx.Err() != nil {
					res.Interrupted = true
					return res
				}
				res.Failed++
				log.Warn("repetition skipped",
					zap.String("scenario", sc.Key()),
					zap.Int("iteration", i),
					zap.Error(err))
				continue
			}
			res.Trials = append(res.Trials, trial)
		}
	}
	log.Info("run complete",
		zap.String("variant", string(cfg.Variant)),
		zap.Int("scenarios", len(scenarios)),
		zap.Int("attempted", res.Attempted),
		zap.Int("failed", res.Failed))
	return res
}

func (r *Runner) once(ctx context.Context, sc game.Scenario, sampling llm.SamplingConfig) (Trial, error) {
	conv := r.Builder.Build(sc)
	comp, err := r.Client.Complete(ctx, conv, sampling)
	if err != nil {
		return Trial{}, err
	}
	var lp []llm.TokenLogprob
	if len(comp.Candidates) > 0 {
		lp = append(lp, comp.Candidates...)
	}
	return Trial{Scenario: sc, Response: strings.ToLower(comp.Text), Logprobs: lp}, nil
}

func describe(sc game.Scenario) string {
	if sc.Variant == game.Trust {
		return sc.Key()
	}
	return "prompt order [" + sc.Key() + "]"
}
