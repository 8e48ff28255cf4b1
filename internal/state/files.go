// Package state persists the learned models across restarts.
//
// Every file is published atomically (temp file, fsync, rename) and every
// reader returns nil on any fault, so a corrupt or foreign file degrades to
// a cold start instead of an error surfaced to the hooks.
package state

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrNoModel is returned by Load helpers when no usable file exists.
var ErrNoModel = errors.New("no usable model on disk")

// #region files
const (
	GatingFile = "next_app_gating_lr.bin"
	RankFile   = "next_app_rank_lr.bin"
	MarkovFile = "next_app_markov.pb"
)

// Files names the three model files under one directory.
type Files struct {
	Dir     string
	Gating  string
	Ranking string
	Markov  string
}

// NewFiles creates dir (0700) if needed and returns the file layout.
func NewFiles(dir string) (Files, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return Files{}, fmt.Errorf("create model dir: %w", err)
	}
	return Files{
		Dir:     dir,
		Gating:  filepath.Join(dir, GatingFile),
		Ranking: filepath.Join(dir, RankFile),
		Markov:  filepath.Join(dir, MarkovFile),
	}, nil
}

// #endregion files

// #region atomic-write
// writeAtomic publishes data at path. On failure the temp file is removed and
// any previous file at path is left untouched.
func writeAtomic(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return fmt.Errorf("write temp: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close temp: %w", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename: %w", err)
	}

	// best effort: some filesystems refuse to fsync a directory
	if d, derr := os.Open(dir); derr == nil {
		d.Sync()
		d.Close()
	}
	return nil
}

// #endregion atomic-write
