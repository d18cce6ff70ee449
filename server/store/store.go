// Package store is the flat result file: a JSON array of trial records,
// one per completed repetition, in run order.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"rpsbench/server/bench"
)

// Save writes trials atomically (temp file + rename) with 4-space
// indentation.
func Save(path string, trials []bench.Trial) error {
	if trials == nil {
		trials = []bench.Trial{}
	}
	b, err := json.MarshalIndent(trials, "", "    ")
	if err != nil {
		return fmt.Errorf("encode results: %w", err)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Load reads a result file written by Save.
func Load(path string) ([]bench.Trial, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var trials []bench.Trial
	if err := json.Unmarshal(b, &trials); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return trials, nil
}
