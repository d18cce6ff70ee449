package report

import (
	"fmt"
	"io"
	"strings"

	"rpsbench/server/game"
	"rpsbench/server/stats"
)

// WriteText prints one block per scenario and a final overall block.
func WriteText(w io.Writer, rep stats.Report) {
	for _, s := range rep.Scenarios {
		writeSummary(w, s)
	}
	writeSummary(w, rep.Overall)
	if rep.Skipped > 0 {
		fmt.Fprintf(w, "(%d trials from another variant ignored)\n", rep.Skipped)
	}
}

func writeSummary(w io.Writer, s stats.Summary) {
	fmt.Fprintf(w, "%s  (n=%d)\n", s.Label, s.Total)
	fmt.Fprintf(w, "  %-9s %6s %8s  %-15s %9s %-17s %9s %5s\n", "choice", "count", "share", "95% CI", "avg p", "p 95% CI", "log p", "obs")
	for _, c := range game.All() {
		lo, hi := s.ShareCI95(c)
		prob, pci, logp, obs := "-", "-", "-", "0"
		if p, ok := s.Probs[c]; ok {
			prob = fmt.Sprintf("%.4f", p.Mean)
			pci = fmt.Sprintf("[%.4f, %.4f]", p.Low, p.High)
			logp = fmt.Sprintf("%.4f", p.Log)
			obs = fmt.Sprintf("%d", p.N)
		}
		ci := fmt.Sprintf("[%.1f, %.1f]", 100*lo, 100*hi)
		fmt.Fprintf(w, "  %-9s %6d %7.1f%%  %-15s %9s %-17s %9s %5s\n", c, s.Counts[c], 100*s.Share(c), ci, prob, pci, logp, obs)
	}
	fmt.Fprintf(w, "  %-9s %6d %7.1f%%\n", "other", s.Other, 100*s.OtherShare())

	if s.Positions != nil {
		parts := make([]string, len(s.Positions))
		for i, n := range s.Positions {
			parts[i] = fmt.Sprintf("#%d=%d", i+1, n)
		}
		fmt.Fprintf(w, "  picks by position: %s\n", strings.Join(parts, " "))
	}
	if h := s.Honesty; h != nil {
		fmt.Fprintf(w, "  reveals: %d honest, %d deceptive (%d winning lies); outcomes %dW/%dT/%dL\n",
			h.Honest, h.Deceptive, h.DeceptiveWins, h.Wins, h.Ties, h.Losses)
	}
	fmt.Fprintln(w)
}
