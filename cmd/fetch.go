package main

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"
)

// Fetch pulls every playlist and its tracks from Tidal into the catalog,
// then flags playlists that disappeared remotely.
func (r *Runner) Fetch(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	db, err := r.openDatabase(config)
	if err != nil {
		return err
	}
	defer db.Close()

	w, err := r.buildWorkers(config, db, false)
	if err != nil {
		return err
	}

	cutoff := time.Now()
	stats, err := w.fetcher.FetchAllPlaylists(ctx, true)
	if err != nil {
		return fmt.Errorf("fetch failed: %w", err)
	}

	removed, err := w.fetcher.MarkRemovedPlaylists(cutoff)
	if err != nil {
		return fmt.Errorf("failed to flag removed playlists: %w", err)
	}
	if removed > 0 {
		r.logger.Info("playlists no longer on Tidal flagged for removal", "count", removed)
	}

	if cmd.Bool("json") {
		return r.writeJSON(stats.Summary(), true)
	}
	r.writeSummary(stats.Summary())
	return nil
}

// Scan walks the playlist directories and records files and symlinks into
// the catalog.
func (r *Runner) Scan(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	db, err := r.openDatabase(config)
	if err != nil {
		return err
	}
	defer db.Close()

	w, err := r.buildWorkers(config, db, false)
	if err != nil {
		return err
	}

	stats, err := w.scanner.ScanAllPlaylists()
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(stats.Summary(), true)
	}
	r.writeSummary(stats.Summary())
	return nil
}
