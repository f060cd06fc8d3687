package tasks

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/charmbracelet/log"

	"tidalsync/internal/models"
	"tidalsync/internal/services"
	"tidalsync/internal/shared"
)

// ExecutionResult accumulates the outcome of executing one decision set.
type ExecutionResult struct {
	Downloads        int
	DownloadsFailed  int
	SymlinksCreated  int
	SymlinksUpdated  int
	SymlinksRemoved  int
	FilesRemoved     int
	Skipped          int
	NoActionCount    int
	ConflictsDropped int
	Errors           []string
}

// Summary returns the reporting structure for the execute stage.
func (r *ExecutionResult) Summary() Summary {
	return Summary{
		Component: "execute",
		Counts: map[string]int{
			"downloads":         r.Downloads,
			"downloads_failed":  r.DownloadsFailed,
			"symlinks_created":  r.SymlinksCreated,
			"symlinks_updated":  r.SymlinksUpdated,
			"symlinks_removed":  r.SymlinksRemoved,
			"files_removed":     r.FilesRemoved,
			"skipped":           r.Skipped,
			"no_action":         r.NoActionCount,
			"conflicts_dropped": r.ConflictsDropped,
		},
		Errors: sampleErrors(r.Errors),
	}
}

// ExecutorOpts carries the executor's dependencies.
type ExecutorOpts struct {
	PlaylistsRoot  string
	DryRun         bool
	Downloader     services.Downloader
	Playlists      models.PlaylistRepository
	Tracks         models.TrackRepository
	PlaylistTracks models.PlaylistTrackRepository
	Logger         *log.Logger
}

// Executor carries out sync decisions against the filesystem and catalog.
// Each decision is isolated: a failed action is recorded and the run moves
// on to the next one.
type Executor struct {
	opts ExecutorOpts
}

// NewExecutor creates an Executor.
func NewExecutor(opts ExecutorOpts) *Executor {
	return &Executor{opts: opts}
}

// resourceKey identifies the resource a decision touches, so that at most
// one decision per resource survives. No-ops never conflict.
func resourceKey(dec DecisionResult, ordinal int) string {
	switch dec.Action {
	case DownloadTrack:
		return "track:" + dec.TrackID
	case CreateSymlink, UpdateSymlink, RemoveSymlink, RemoveFile:
		return "path:" + dec.SourcePath
	default:
		return fmt.Sprintf("noop:%d", ordinal)
	}
}

// resolveConflicts keeps the highest-priority decision per resource and
// drops the rest. The input must already be sorted highest priority first.
func (e *Executor) resolveConflicts(decisions []DecisionResult) ([]DecisionResult, int) {
	seen := make(map[string]DecisionResult, len(decisions))
	kept := make([]DecisionResult, 0, len(decisions))
	dropped := 0

	for i, dec := range decisions {
		key := resourceKey(dec, i)
		if winner, ok := seen[key]; ok {
			e.opts.Logger.Debug("conflicting decision dropped",
				"kept", winner.Action.String(),
				"dropped", dec.Action.String(),
				"reason", dec.Reason)
			dropped++
			continue
		}
		seen[key] = dec
		kept = append(kept, dec)
	}

	return kept, dropped
}

// ExecuteDecisions runs a decision set in priority order. A nil or empty
// set is an error so callers cannot silently execute nothing.
func (e *Executor) ExecuteDecisions(ctx context.Context, decisions *SyncDecisions) (*ExecutionResult, error) {
	if decisions == nil || len(decisions.Decisions) == 0 {
		return nil, shared.ErrNoDecisions
	}

	ordered := make([]DecisionResult, len(decisions.Decisions))
	copy(ordered, decisions.Decisions)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority > ordered[j].Priority
	})

	ordered, dropped := e.resolveConflicts(ordered)
	decisions.Conflicts = dropped

	result := &ExecutionResult{ConflictsDropped: dropped}

	for _, dec := range ordered {
		if err := ctx.Err(); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("execution interrupted: %v", err))
			return result, err
		}

		if err := e.executeOne(ctx, dec, result); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s (track %s): %v", dec.Action, dec.TrackID, err))
			e.opts.Logger.Error("decision failed", "action", dec.Action.String(), "track", dec.TrackID, "err", err)
		}
	}

	return result, nil
}

func (e *Executor) executeOne(ctx context.Context, dec DecisionResult, result *ExecutionResult) error {
	switch dec.Action {
	case NoAction:
		result.NoActionCount++
		return nil
	case DownloadTrack:
		return e.executeDownload(ctx, dec, result)
	case CreateSymlink, UpdateSymlink:
		return e.executeSymlink(dec, result)
	case RemoveSymlink:
		return e.executeRemoveSymlink(dec, result)
	case RemoveFile:
		return e.executeRemoveFile(dec, result)
	default:
		return fmt.Errorf("unknown action %d", dec.Action)
	}
}

// executeDownload moves a track through downloading to downloaded or error,
// then flags the target membership as holding the primary file.
func (e *Executor) executeDownload(ctx context.Context, dec DecisionResult, result *ExecutionResult) error {
	if dec.TrackID == "" || dec.TargetPath == "" {
		return fmt.Errorf("%w: download needs track_id and target_path", shared.ErrMissingField)
	}

	track, err := e.opts.Tracks.Get(dec.TrackID)
	if err != nil {
		return err
	}

	if e.opts.DryRun {
		e.opts.Logger.Info("dry run: would download", "track", track.DisplayName(), "target", dec.TargetPath)
		result.Downloads++
		return nil
	}

	// Without a downloader the run is planning-only; the step counts as
	// done and the track's catalog state is left alone.
	if e.opts.Downloader == nil {
		e.opts.Logger.Info("no downloader configured, skipping download", "track", track.DisplayName(), "target", dec.TargetPath)
		result.Downloads++
		return nil
	}

	if err := e.opts.Tracks.SetDownloadStatus(track.ID, models.Downloading, ""); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(dec.TargetPath), 0o755); err != nil {
		return e.failDownload(track.ID, result, err)
	}

	path, err := e.opts.Downloader.DownloadTrack(ctx, track.TidalID, dec.TargetPath)
	if err != nil {
		return e.failDownload(track.ID, result, err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return e.failDownload(track.ID, result, fmt.Errorf("downloaded file unreadable: %w", err))
	}

	if err := e.opts.Tracks.SetFileInfo(track.ID, path, info.Size(), info.ModTime()); err != nil {
		return err
	}

	pt, err := e.opts.PlaylistTracks.GetByPlaylistAndTrack(dec.PlaylistID, track.ID)
	if err == nil {
		pt.IsPrimary = true
		if err := e.opts.PlaylistTracks.Update(pt); err != nil {
			return err
		}
	} else if !errors.Is(err, shared.ErrAssociationNotFound) {
		return err
	}

	e.opts.Logger.Info("downloaded", "track", track.DisplayName(), "path", path)
	result.Downloads++
	return nil
}

// failDownload records an error outcome on the track and reports it.
func (e *Executor) failDownload(trackID string, result *ExecutionResult, cause error) error {
	result.DownloadsFailed++
	if err := e.opts.Tracks.SetDownloadStatus(trackID, models.DownloadError, cause.Error()); err != nil {
		return fmt.Errorf("%v (status update also failed: %w)", cause, err)
	}
	return cause
}

// executeSymlink creates or repairs the symlink for a non-primary
// membership. The link is written next to its final name and swapped in
// with a rename, so a reader never sees a half-made link.
func (e *Executor) executeSymlink(dec DecisionResult, result *ExecutionResult) error {
	if dec.SourcePath == "" || dec.TargetPath == "" {
		return fmt.Errorf("%w: symlink needs source_path and target_path", shared.ErrMissingField)
	}

	pt, err := e.opts.PlaylistTracks.GetByPlaylistAndTrack(dec.PlaylistID, dec.TrackID)
	if err != nil {
		return err
	}
	playlist, err := e.opts.Playlists.Get(dec.PlaylistID)
	if err != nil {
		return err
	}

	wantLink := filepath.Join(e.opts.PlaylistsRoot, playlist.Name, filepath.Base(dec.TargetPath))

	if e.opts.DryRun {
		e.opts.Logger.Info("dry run: would link", "link", wantLink, "target", dec.TargetPath)
		if dec.Action == UpdateSymlink {
			result.SymlinksUpdated++
		} else {
			result.SymlinksCreated++
		}
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(wantLink), 0o755); err != nil {
		return err
	}

	// A repair may leave an old link at a different location behind.
	if dec.Action == UpdateSymlink && dec.SourcePath != "" && dec.SourcePath != wantLink {
		if info, err := os.Lstat(dec.SourcePath); err == nil && info.Mode()&os.ModeSymlink != 0 {
			if err := os.Remove(dec.SourcePath); err != nil {
				return err
			}
		}
	}

	tmp := wantLink + ".tmp"
	_ = os.Remove(tmp)
	if err := os.Symlink(dec.TargetPath, tmp); err != nil {
		return err
	}
	if err := os.Rename(tmp, wantLink); err != nil {
		_ = os.Remove(tmp)
		return err
	}

	valid := true
	pt.SymlinkPath = wantLink
	pt.SymlinkValid = &valid
	if err := e.opts.PlaylistTracks.Update(pt); err != nil {
		return err
	}

	if dec.Action == UpdateSymlink {
		result.SymlinksUpdated++
	} else {
		result.SymlinksCreated++
	}
	return nil
}

// executeRemoveSymlink removes the link for a membership that left the
// remote playlist. A path that is not a symlink is left untouched.
func (e *Executor) executeRemoveSymlink(dec DecisionResult, result *ExecutionResult) error {
	if dec.SourcePath == "" {
		return fmt.Errorf("%w: symlink removal needs source_path", shared.ErrMissingField)
	}

	pt, err := e.opts.PlaylistTracks.GetByPlaylistAndTrack(dec.PlaylistID, dec.TrackID)
	if err != nil {
		return err
	}

	if e.opts.DryRun {
		e.opts.Logger.Info("dry run: would remove symlink", "link", dec.SourcePath)
		result.SymlinksRemoved++
		return nil
	}

	info, lerr := os.Lstat(dec.SourcePath)
	switch {
	case lerr == nil && info.Mode()&os.ModeSymlink != 0:
		if err := os.Remove(dec.SourcePath); err != nil {
			return err
		}
	case lerr == nil:
		e.opts.Logger.Warn("leaving path in place", "path", dec.SourcePath, "err", shared.ErrNotASymlink)
		result.Skipped++
		return nil
	case !os.IsNotExist(lerr):
		return lerr
	}

	pt.SymlinkPath = ""
	pt.SymlinkValid = nil
	if err := e.opts.PlaylistTracks.Update(pt); err != nil {
		return err
	}

	result.SymlinksRemoved++
	return nil
}

// executeRemoveFile deletes the primary file for a track no longer wanted
// anywhere and resets its catalog state so the record converges either way.
func (e *Executor) executeRemoveFile(dec DecisionResult, result *ExecutionResult) error {
	if dec.TrackID == "" || dec.SourcePath == "" {
		return fmt.Errorf("%w: file removal needs track_id and source_path", shared.ErrMissingField)
	}

	if e.opts.DryRun {
		e.opts.Logger.Info("dry run: would remove file", "path", dec.SourcePath)
		result.FilesRemoved++
		return nil
	}

	if err := os.Remove(dec.SourcePath); err != nil {
		if !os.IsNotExist(err) {
			return err
		}
		e.opts.Logger.Debug("file already gone", "path", dec.SourcePath)
	}

	if err := e.opts.Tracks.ClearFile(dec.TrackID); err != nil {
		return err
	}

	pt, err := e.opts.PlaylistTracks.GetByPlaylistAndTrack(dec.PlaylistID, dec.TrackID)
	if err == nil {
		pt.IsPrimary = false
		pt.SymlinkPath = ""
		pt.SymlinkValid = nil
		if err := e.opts.PlaylistTracks.Update(pt); err != nil {
			return err
		}
	} else if !errors.Is(err, shared.ErrAssociationNotFound) {
		return err
	}

	result.FilesRemoved++
	return nil
}

// EnsurePlaylistDirectories creates the on-disk directory for each playlist.
// With no arguments every catalog playlist gets a directory.
func (e *Executor) EnsurePlaylistDirectories(playlistIDs ...string) error {
	var playlists []*models.Playlist

	if len(playlistIDs) == 0 {
		all, err := e.opts.Playlists.List()
		if err != nil {
			return err
		}
		playlists = all
	} else {
		for _, id := range playlistIDs {
			p, err := e.opts.Playlists.Get(id)
			if err != nil {
				return err
			}
			playlists = append(playlists, p)
		}
	}

	for _, p := range playlists {
		dir := filepath.Join(e.opts.PlaylistsRoot, p.Name)
		if e.opts.DryRun {
			e.opts.Logger.Info("dry run: would create directory", "dir", dir)
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	return nil
}
