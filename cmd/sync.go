package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/urfave/cli/v3"

	"tidalsync/internal/formatter"
	"tidalsync/internal/shared"
	"tidalsync/internal/tasks"
)

// Sync runs the full reconciliation pipeline, or the decide and execute
// stages for one playlist with --playlist.
func (r *Runner) Sync(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	dryRun := config.Sync.DryRun || cmd.Bool("dry-run")

	db, err := r.openDatabase(config)
	if err != nil {
		return err
	}
	defer db.Close()

	w, err := r.buildWorkers(config, db, dryRun)
	if err != nil {
		return err
	}

	var result *tasks.SyncResult
	if playlistID := cmd.String("playlist"); playlistID != "" {
		result, err = w.orchestrator.SyncPlaylist(ctx, playlistID)
	} else {
		progress := make(chan tasks.ProgressUpdate, 16)
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			for update := range progress {
				r.logger.Info(update.Message, "phase", update.Phase.String())
			}
		}()

		result, err = w.orchestrator.RunFullSync(ctx, progress)
		close(progress)
		wg.Wait()
	}
	if err != nil && result == nil {
		return err
	}
	if err != nil {
		r.logger.Error("sync finished with a stage failure", "err", err)
	}

	var data []byte
	switch format := cmd.String("format"); format {
	case "markdown", "md":
		data = formatter.ReportToMarkdown(result)
	case "json":
		data, err = formatter.ReportToJSON(result)
		if err != nil {
			return err
		}
	case "text", "":
		data = formatter.ReportToText(result)
	default:
		return fmt.Errorf("%w: unknown format %q", shared.ErrInvalidFlag, format)
	}

	if path := cmd.String("output"); path != "" {
		if err := formatter.WriteReport(path, data); err != nil {
			return err
		}
		r.logger.Info("report written", "path", path)
	} else if err := r.writePlain("%s", data); err != nil {
		return err
	}

	if !result.Success {
		return fmt.Errorf("sync completed with %d error(s)", len(result.Errors))
	}
	return nil
}

// Dirs creates a directory for every playlist in the catalog.
func (r *Runner) Dirs(ctx context.Context, cmd *cli.Command) error {
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

	if err := w.executor.EnsurePlaylistDirectories(); err != nil {
		return fmt.Errorf("failed to create playlist directories: %w", err)
	}
	r.logger.Info("playlist directories ready", "root", config.PlaylistsRoot())
	return nil
}
