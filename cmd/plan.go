package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"tidalsync/internal/formatter"
	"tidalsync/internal/models"
	"tidalsync/internal/shared"
	"tidalsync/internal/tasks"
)

// Dedup analyzes which playlist should own each shared track's file, and
// with --apply writes the resolved ownership into the catalog.
func (r *Runner) Dedup(ctx context.Context, cmd *cli.Command) error {
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

	result, err := w.dedup.AnalyzeAllTracks()
	if err != nil {
		return fmt.Errorf("dedup analysis failed: %w", err)
	}

	if cmd.Bool("apply") {
		if err := w.dedup.ApplyDecisions(result); err != nil {
			return fmt.Errorf("failed to apply ownership decisions: %w", err)
		}
		r.logger.Info("ownership decisions applied", "decisions", result.DecisionsMade)
	}

	if cmd.Bool("json") {
		return r.writeJSON(result, true)
	}
	return r.writePlain("%s", formatter.DedupToText(result))
}

// Plan generates the decisions a sync would execute and renders them
// without touching the filesystem or catalog.
func (r *Runner) Plan(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	db, err := r.openDatabase(config)
	if err != nil {
		return err
	}
	defer db.Close()

	w, err := r.buildWorkers(config, db, true)
	if err != nil {
		return err
	}

	var decisions *tasks.SyncDecisions
	if playlistID := cmd.String("playlist"); playlistID != "" {
		decisions, err = w.engine.AnalyzePlaylistSync(playlistID)
	} else {
		decisions, err = w.engine.AnalyzeAllPlaylists()
	}
	if err != nil {
		return fmt.Errorf("failed to generate plan: %w", err)
	}

	var data []byte
	switch format := cmd.String("format"); format {
	case "csv":
		data, err = formatter.DecisionsToCSV(decisions)
		if err != nil {
			return err
		}
	case "text", "":
		data = formatter.DecisionsToText(decisions)
	default:
		return fmt.Errorf("%w: unknown format %q", shared.ErrInvalidFlag, format)
	}

	if path := cmd.String("output"); path != "" {
		if err := formatter.WriteReport(path, data); err != nil {
			return err
		}
		r.logger.Info("plan written", "path", path)
		return nil
	}
	return r.writePlain("%s", data)
}

// Diff fetches current remote state and reports how it differs from the
// catalog, without writing anything.
func (r *Runner) Diff(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	db, err := r.openDatabase(config)
	if err != nil {
		return err
	}
	defer db.Close()

	w, err := r.buildWorkers(config, db, true)
	if err != nil {
		return err
	}

	remote, err := w.source.GetPlaylists(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch remote playlists: %w", err)
	}

	local, err := w.playlists.List()
	if err != nil {
		return err
	}

	state := tasks.ComparePlaylists(local, remote)

	byTidalID := make(map[string]string, len(local))
	for _, p := range local {
		byTidalID[p.TidalID] = p.ID
	}

	for _, rp := range remote {
		localID, ok := byTidalID[rp.TidalID]
		if !ok {
			continue
		}

		remoteTracks, err := w.source.GetPlaylistTracks(ctx, rp.TidalID)
		if err != nil {
			r.logger.Error("failed to fetch remote tracks", "playlist", rp.Name, "err", err)
			continue
		}

		tracks, positions, err := collectTracks(w, localID)
		if err != nil {
			return err
		}

		trackState := tasks.ComparePlaylistTracks(localID, rp.Name, tracks, positions, remoteTracks)
		for _, c := range trackState.Changes {
			state.Add(c)
		}
	}

	return r.writePlain("%s", formatter.DiffToText(state))
}

// collectTracks loads a playlist's member tracks and their positions.
func collectTracks(w *workers, playlistID string) ([]*models.Track, map[string]int, error) {
	memberships, err := w.playlistTracks.ListByPlaylist(playlistID)
	if err != nil {
		return nil, nil, err
	}

	tracks := make([]*models.Track, 0, len(memberships))
	positions := make(map[string]int, len(memberships))
	for _, m := range memberships {
		t, err := w.tracks.Get(m.TrackID)
		if err != nil {
			return nil, nil, err
		}
		tracks = append(tracks, t)
		positions[t.ID] = m.Position
	}
	return tracks, positions, nil
}
