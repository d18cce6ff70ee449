package main

import (
	"encoding/json"
	"errors"
	"image/png"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"rpsbench/server/bench"
	"rpsbench/server/game"
	"rpsbench/server/report"
	"rpsbench/server/stats"
	"rpsbench/server/store"
)

type trialLoader func() ([]bench.Trial, error)

// Router serves aggregates over a result file. The file is re-read per
// request so a run still in progress can be watched.
func Router(load trialLoader) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/api/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"ok": true})
	})

	r.Get("/api/summary", func(w http.ResponseWriter, req *http.Request) {
		rep, ok := buildReport(w, req, load)
		if !ok {
			return
		}
		writeJSON(w, rep)
	})

	r.Get("/api/scenarios", func(w http.ResponseWriter, req *http.Request) {
		rep, ok := buildReport(w, req, load)
		if !ok {
			return
		}
		type Scenario struct {
			Key   string `json:"key"`
			Slug  string `json:"slug"`
			Total int    `json:"total"`
		}
		out := make([]Scenario, 0, len(rep.Scenarios))
		for _, s := range rep.Scenarios {
			out = append(out, Scenario{Key: s.Label, Slug: report.Slug(s.Label), Total: s.Total})
		}
		writeJSON(w, map[string]any{"variant": rep.Variant, "scenarios": out})
	})

	r.Get("/api/trials", func(w http.ResponseWriter, req *http.Request) {
		trials, err := load()
		if err != nil {
			writeLoadError(w, err)
			return
		}
		want := req.URL.Query().Get("scenario")
		out := make([]bench.Trial, 0, len(trials))
		for _, t := range trials {
			if want == "" || t.Scenario.Key() == want || report.Slug(t.Scenario.Key()) == want {
				out = append(out, t)
			}
		}
		writeJSON(w, out)
	})

	r.Get("/charts/{group}/{kind}.png", func(w http.ResponseWriter, req *http.Request) {
		kind := chi.URLParam(req, "kind")
		if kind != "counts" && kind != "probs" {
			http.Error(w, "kind must be counts or probs", http.StatusNotFound)
			return
		}
		rep, ok := buildReport(w, req, load)
		if !ok {
			return
		}
		group := chi.URLParam(req, "group")
		var found *stats.Summary
		if group == "overall" {
			found = &rep.Overall
		}
		for i := range rep.Scenarios {
			if report.Slug(rep.Scenarios[i].Label) == group {
				found = &rep.Scenarios[i]
			}
		}
		if found == nil {
			http.Error(w, "unknown scenario", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_ = png.Encode(w, report.Chart(*found, kind))
	})

	return r
}

func buildReport(w http.ResponseWriter, req *http.Request, load trialLoader) (stats.Report, bool) {
	trials, err := load()
	if err != nil {
		writeLoadError(w, err)
		return stats.Report{}, false
	}
	variant := stats.DetectVariant(trials)
	if v := req.URL.Query().Get("variant"); v != "" {
		pv, err := game.ParseVariant(v)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return stats.Report{}, false
		}
		variant = pv
	}
	return stats.Build(variant, trials), true
}

func writeLoadError(w http.ResponseWriter, err error) {
	if errors.Is(err, os.ErrNotExist) {
		http.Error(w, "no results yet", http.StatusNotFound)
		return
	}
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve [results.json]",
	Short: "Serve aggregates and charts for a result file over HTTP",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadRunConfig(cmd, runFlags{})
		if err != nil {
			return err
		}
		path := cfg.ResultsFile
		if len(args) == 1 {
			path = args[0]
		}
		srv := &http.Server{
			Addr:         serveAddr,
			Handler:      Router(func() ([]bench.Trial, error) { return store.Load(path) }),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
		}
		logger.Info("serving results", zap.String("addr", serveAddr), zap.String("file", path))
		return srv.ListenAndServe()
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":"+getenv("PORT", "8080"), "Listen address")
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
