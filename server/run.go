package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"rpsbench/server/bench"
	"rpsbench/server/config"
	"rpsbench/server/game"
	"rpsbench/server/llm"
	"rpsbench/server/report"
	"rpsbench/server/stats"
	"rpsbench/server/store"
)

type runFlags struct {
	variant     string
	model       string
	iterations  int
	out         string
	charts      string
	noCharts    bool
	temperature float64
	topP        float64
	maxTokens   int
	topLogprobs int
	stop        []string
	asJSON      bool
}

var (
	runOpts    runFlags
	reportOpts runFlags
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run an experiment and write the raw result file",
	Long: `Runs every scenario of the chosen variant (order: 6 option orderings,
trust: 9 model/human choice pairs) for the configured number of iterations,
one request at a time. Failed requests are logged and skipped. Ctrl+C stops
after the current request and still writes what was collected.`,
	Args: cobra.NoArgs,
	RunE: runExperiment,
}

var reportCmd = &cobra.Command{
	Use:   "report [results.json]",
	Short: "Aggregate a result file into a text summary and bar charts",
	Args:  cobra.MaximumNArgs(1),
	RunE:  reportResults,
}

func bindRunFlags(f *pflag.FlagSet, o *runFlags) {
	f.StringVar(&o.variant, "variant", "", "Experiment variant: order|trust")
	f.StringVar(&o.model, "model", "", "Model id (e.g. openai/gpt-4o)")
	f.IntVarP(&o.iterations, "iterations", "n", 0, "Repetitions per scenario")
	f.StringVarP(&o.out, "out", "o", "", "Result file path")
	f.StringVar(&o.charts, "charts", "", "Directory for PNG charts")
	f.BoolVar(&o.noCharts, "no-charts", false, "Skip chart rendering")
	f.Float64Var(&o.temperature, "temperature", 0, "Sampling temperature")
	f.Float64Var(&o.topP, "top-p", 0, "Nucleus sampling threshold")
	f.IntVar(&o.maxTokens, "max-tokens", 0, "Generation length cap")
	f.IntVar(&o.topLogprobs, "top-logprobs", 0, "Candidate tokens to return for the first generated token (0 disables logprobs)")
	f.StringArrayVar(&o.stop, "stop", nil, "Stop sequence (repeatable)")
}

func init() {
	bindRunFlags(runCmd.Flags(), &runOpts)

	rf := reportCmd.Flags()
	rf.StringVar(&reportOpts.variant, "variant", "", "Variant to group by (default: detected from the file)")
	rf.StringVar(&reportOpts.charts, "charts", "", "Directory for PNG charts")
	rf.BoolVar(&reportOpts.noCharts, "no-charts", false, "Skip chart rendering")
	rf.BoolVar(&reportOpts.asJSON, "json", false, "Print the aggregate report as JSON")
}

// loadRunConfig layers explicitly set flags over file + env.
func loadRunConfig(cmd *cobra.Command, o runFlags) (config.Config, error) {
	cfg, err := config.Load(configPath, o.variant)
	if err != nil {
		return config.Config{}, err
	}
	fl := cmd.Flags()
	set := fl.Changed
	if set("model") {
		cfg.Model = o.model
	}
	if set("iterations") {
		cfg.Iterations = o.iterations
	}
	if set("out") {
		cfg.ResultsFile = o.out
	}
	if set("charts") {
		cfg.ChartsDir = o.charts
	}
	if set("temperature") {
		cfg.Sampling.Temperature = o.temperature
	}
	if set("top-p") {
		cfg.Sampling.TopP = o.topP
	}
	if set("max-tokens") {
		cfg.Sampling.MaxOutputTokens = o.maxTokens
	}
	if set("top-logprobs") {
		cfg.Sampling.NumCandidateTokens = o.topLogprobs
		cfg.Sampling.ReturnTokenCandidates = o.topLogprobs > 0
	}
	if set("stop") {
		cfg.Sampling.StopSequences = o.stop
	}
	return cfg, nil
}

func runExperiment(cmd *cobra.Command, args []string) error {
	cfg, err := loadRunConfig(cmd, runOpts)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	// Credentials are checked here, before the first scenario.
	api, err := llm.ResolveConfig(cfg.Model)
	if err != nil {
		return err
	}
	client := llm.NewClient(api, llm.WithTimeout(cfg.RequestTimeout))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	scenarios := game.Scenarios(cfg.Variant)
	section(fmt.Sprintf("RUN %s", cfg.Variant))
	fmt.Printf("%s model=%s provider=%s scenarios=%d iterations=%d temp=%.2f top_p=%.2f top_logprobs=%d\n",
		dim("•"), api.Model, api.Provider(), len(scenarios), cfg.Iterations,
		cfg.Sampling.Temperature, cfg.Sampling.TopP, cfg.Sampling.NumCandidateTokens)
	logger.Debug("run config", zap.Any("sampling", cfg.Sampling), zap.String("results", cfg.ResultsFile))

	r := bench.Runner{Client: client, Log: logger, Out: os.Stdout}
	res := r.Run(ctx, bench.Config{Variant: cfg.Variant, Iterations: cfg.Iterations, Sampling: cfg.Sampling})

	if err := store.Save(cfg.ResultsFile, res.Trials); err != nil {
		return fmt.Errorf("write results: %w", err)
	}
	status := good("complete")
	if res.Interrupted {
		status = warn("interrupted")
	}
	fmt.Printf("%s %s: %d trials written to %s (%d attempted, %d failed)\n",
		dim("•"), status, len(res.Trials), cfg.ResultsFile, res.Attempted, res.Failed)

	return summarize(cfg.Variant, res.Trials, cfg.ChartsDir, runOpts.noCharts, false)
}

func reportResults(cmd *cobra.Command, args []string) error {
	cfg, err := loadRunConfig(cmd, reportOpts)
	if err != nil {
		return err
	}
	path := cfg.ResultsFile
	if len(args) == 1 {
		path = args[0]
	}
	trials, err := store.Load(path)
	if err != nil {
		return err
	}
	if reportOpts.variant == "" {
		// re-resolve so chart defaults follow the file's variant
		o := reportOpts
		o.variant = string(stats.DetectVariant(trials))
		if cfg, err = loadRunConfig(cmd, o); err != nil {
			return err
		}
	}
	return summarize(cfg.Variant, trials, cfg.ChartsDir, reportOpts.noCharts, reportOpts.asJSON)
}

func summarize(variant game.Variant, trials []bench.Trial, chartsDir string, noCharts, asJSON bool) error {
	rep := stats.Build(variant, trials)
	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}
	section("SUMMARY")
	report.WriteText(os.Stdout, rep)
	if noCharts {
		return nil
	}
	files, err := report.WriteCharts(chartsDir, rep)
	if err != nil {
		return fmt.Errorf("render charts: %w", err)
	}
	sub(fmt.Sprintf("%d charts written to %s", len(files), chartsDir))
	return nil
}
