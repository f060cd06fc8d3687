package tasks

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"tidalsync/internal/models"
)

func writeFile(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}
	if err := os.WriteFile(path, []byte("audio"), 0o644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
}

func singleDecision(t *testing.T, decisions *SyncDecisions) DecisionResult {
	t.Helper()
	if len(decisions.Decisions) != 1 {
		t.Fatalf("expected exactly one decision, got %d", len(decisions.Decisions))
	}
	return decisions.Decisions[0]
}

func TestDecideDownloadNewTrack(t *testing.T) {
	env := newTestEnv(t)
	playlist := env.addPlaylist(t, "pl-1", "Chill", 1)
	track := env.addTrack(t, "tidal-1", "Daft Punk", "Around the World")
	env.link(t, playlist.ID, track.ID, 0)

	decisions, err := env.newEngine().AnalyzeAllPlaylists()
	if err != nil {
		t.Fatalf("analysis failed: %v", err)
	}

	dec := singleDecision(t, decisions)
	if dec.Action != DownloadTrack {
		t.Fatalf("expected download, got %s", dec.Action)
	}
	if dec.Priority != priorityDownloadNew {
		t.Errorf("expected priority %d, got %d", priorityDownloadNew, dec.Priority)
	}
	want := filepath.Join(env.root, "Chill", "Daft Punk - Around the World.mp3")
	if dec.TargetPath != want {
		t.Errorf("expected target %s, got %s", want, dec.TargetPath)
	}
	if decisions.TracksToDownload != 1 {
		t.Errorf("expected download counter 1, got %d", decisions.TracksToDownload)
	}
}

func TestDecideDownloadRetryAndMissing(t *testing.T) {
	env := newTestEnv(t)
	playlist := env.addPlaylist(t, "pl-1", "Chill", 1)

	t.Run("ErrorStatus", func(t *testing.T) {
		track := env.addTrack(t, "tidal-err", "A", "Errored")
		pt := env.link(t, playlist.ID, track.ID, 0)
		pt.IsPrimary = true
		env.updateLink(t, pt)
		if err := env.tracks.SetDownloadStatus(track.ID, models.DownloadError, "network down"); err != nil {
			t.Fatalf("failed to set status: %v", err)
		}

		decisions, err := env.newEngine().AnalyzePlaylistSync(playlist.ID)
		if err != nil {
			t.Fatalf("analysis failed: %v", err)
		}
		dec := decisions.Decisions[len(decisions.Decisions)-1]
		if dec.Action != DownloadTrack || dec.Priority != priorityDownloadRetry {
			t.Errorf("expected retry download at priority %d, got %s at %d",
				priorityDownloadRetry, dec.Action, dec.Priority)
		}
	})

	t.Run("StaleDownloading", func(t *testing.T) {
		track := env.addTrack(t, "tidal-stale", "B", "Interrupted")
		pt := env.link(t, playlist.ID, track.ID, 1)
		pt.IsPrimary = true
		env.updateLink(t, pt)
		if err := env.tracks.SetDownloadStatus(track.ID, models.Downloading, ""); err != nil {
			t.Fatalf("failed to set status: %v", err)
		}

		decisions, err := env.newEngine().AnalyzePlaylistSync(playlist.ID)
		if err != nil {
			t.Fatalf("analysis failed: %v", err)
		}
		found := false
		for _, dec := range decisions.Decisions {
			if dec.TrackID == track.ID {
				found = true
				if dec.Action != DownloadTrack || dec.Priority != priorityDownloadRetry {
					t.Errorf("expected stale download retry, got %s at %d", dec.Action, dec.Priority)
				}
			}
		}
		if !found {
			t.Error("no decision generated for stale downloading track")
		}
	})

	t.Run("FileMissing", func(t *testing.T) {
		track := env.addTrack(t, "tidal-gone", "C", "Vanished")
		pt := env.link(t, playlist.ID, track.ID, 2)
		pt.IsPrimary = true
		env.updateLink(t, pt)
		gone := filepath.Join(env.root, "Chill", "C - Vanished.mp3")
		if err := env.tracks.SetFileInfo(track.ID, gone, 10, time.Now()); err != nil {
			t.Fatalf("failed to set file info: %v", err)
		}

		decisions, err := env.newEngine().AnalyzePlaylistSync(playlist.ID)
		if err != nil {
			t.Fatalf("analysis failed: %v", err)
		}
		for _, dec := range decisions.Decisions {
			if dec.TrackID == track.ID {
				if dec.Action != DownloadTrack || dec.Priority != priorityDownloadMissing {
					t.Errorf("expected re-download at priority %d, got %s at %d",
						priorityDownloadMissing, dec.Action, dec.Priority)
				}
				return
			}
		}
		t.Error("no decision generated for track with missing file")
	})
}

func TestDecidePrimaryInPlace(t *testing.T) {
	env := newTestEnv(t)
	playlist := env.addPlaylist(t, "pl-1", "Chill", 1)
	track := env.addTrack(t, "tidal-1", "Daft Punk", "Around the World")
	pt := env.link(t, playlist.ID, track.ID, 0)
	pt.IsPrimary = true
	env.updateLink(t, pt)

	path := filepath.Join(env.root, "Chill", "Daft Punk - Around the World.mp3")
	writeFile(t, path)
	if err := env.tracks.SetFileInfo(track.ID, path, 5, time.Now()); err != nil {
		t.Fatalf("failed to set file info: %v", err)
	}

	decisions, err := env.newEngine().AnalyzeAllPlaylists()
	if err != nil {
		t.Fatalf("analysis failed: %v", err)
	}
	dec := singleDecision(t, decisions)
	if dec.Action != NoAction {
		t.Errorf("expected no action for in-place primary, got %s (%s)", dec.Action, dec.Reason)
	}
}

func TestDecidePrimaryWithStaleSymlink(t *testing.T) {
	env := newTestEnv(t)
	playlist := env.addPlaylist(t, "pl-1", "Chill", 1)
	track := env.addTrack(t, "tidal-1", "Daft Punk", "Around the World")

	// Ownership moved to this playlist after it held a symlink.
	stale := filepath.Join(env.root, "Chill", "Daft Punk - Around the World.mp3.old")
	pt := env.link(t, playlist.ID, track.ID, 0)
	pt.IsPrimary = true
	pt.SymlinkPath = stale
	env.updateLink(t, pt)

	path := filepath.Join(env.root, "Chill", "Daft Punk - Around the World.mp3")
	writeFile(t, path)
	if err := env.tracks.SetFileInfo(track.ID, path, 5, time.Now()); err != nil {
		t.Fatalf("failed to set file info: %v", err)
	}

	decisions, err := env.newEngine().AnalyzeAllPlaylists()
	if err != nil {
		t.Fatalf("analysis failed: %v", err)
	}

	dec := singleDecision(t, decisions)
	if dec.Action != RemoveSymlink || dec.Priority != priorityRemoveSymlink {
		t.Fatalf("expected the stale link removed, got %s at %d (%s)", dec.Action, dec.Priority, dec.Reason)
	}
	if dec.SourcePath != stale {
		t.Errorf("expected source %s, got %s", stale, dec.SourcePath)
	}
	if decisions.SymlinksToRemove != 1 || decisions.FilesToRemove != 0 {
		t.Errorf("expected the removal counted as a symlink removal, got symlinks=%d files=%d",
			decisions.SymlinksToRemove, decisions.FilesToRemove)
	}
}

func TestDecideSymlinkLifecycle(t *testing.T) {
	env := newTestEnv(t)
	alpha := env.addPlaylist(t, "pl-a", "Alpha", 2)
	beta := env.addPlaylist(t, "pl-b", "Beta", 2)
	track := env.addTrack(t, "tidal-1", "Daft Punk", "Around the World")

	primary := env.link(t, alpha.ID, track.ID, 0)
	primary.IsPrimary = true
	env.updateLink(t, primary)
	secondary := env.link(t, beta.ID, track.ID, 0)

	path := filepath.Join(env.root, "Alpha", "Daft Punk - Around the World.mp3")
	writeFile(t, path)
	if err := env.tracks.SetFileInfo(track.ID, path, 5, time.Now()); err != nil {
		t.Fatalf("failed to set file info: %v", err)
	}

	engine := env.newEngine()
	wantLink := filepath.Join(env.root, "Beta", "Daft Punk - Around the World.mp3")

	t.Run("NoSymlinkRecorded", func(t *testing.T) {
		decisions, err := engine.AnalyzePlaylistSync(beta.ID)
		if err != nil {
			t.Fatalf("analysis failed: %v", err)
		}
		dec := singleDecision(t, decisions)
		if dec.Action != CreateSymlink {
			t.Fatalf("expected create symlink, got %s", dec.Action)
		}
		if dec.SourcePath != wantLink || dec.TargetPath != path {
			t.Errorf("unexpected paths: source %s target %s", dec.SourcePath, dec.TargetPath)
		}
	})

	t.Run("UncheckedSymlink", func(t *testing.T) {
		secondary.SymlinkPath = wantLink
		secondary.SymlinkValid = nil
		env.updateLink(t, secondary)

		decisions, err := engine.AnalyzePlaylistSync(beta.ID)
		if err != nil {
			t.Fatalf("analysis failed: %v", err)
		}
		dec := singleDecision(t, decisions)
		if dec.Action != UpdateSymlink {
			t.Errorf("expected update for unchecked symlink, got %s", dec.Action)
		}
	})

	t.Run("BrokenSymlink", func(t *testing.T) {
		invalid := false
		secondary.SymlinkValid = &invalid
		env.updateLink(t, secondary)

		decisions, err := engine.AnalyzePlaylistSync(beta.ID)
		if err != nil {
			t.Fatalf("analysis failed: %v", err)
		}
		dec := singleDecision(t, decisions)
		if dec.Action != UpdateSymlink {
			t.Errorf("expected update for broken symlink, got %s", dec.Action)
		}
	})

	t.Run("MisplacedSymlink", func(t *testing.T) {
		valid := true
		secondary.SymlinkPath = filepath.Join(env.root, "Beta", "old name.mp3")
		secondary.SymlinkValid = &valid
		env.updateLink(t, secondary)

		decisions, err := engine.AnalyzePlaylistSync(beta.ID)
		if err != nil {
			t.Fatalf("analysis failed: %v", err)
		}
		dec := singleDecision(t, decisions)
		if dec.Action != UpdateSymlink {
			t.Errorf("expected update for misplaced symlink, got %s", dec.Action)
		}
	})

	t.Run("ValidSymlink", func(t *testing.T) {
		valid := true
		secondary.SymlinkPath = wantLink
		secondary.SymlinkValid = &valid
		env.updateLink(t, secondary)

		decisions, err := engine.AnalyzePlaylistSync(beta.ID)
		if err != nil {
			t.Fatalf("analysis failed: %v", err)
		}
		dec := singleDecision(t, decisions)
		if dec.Action != NoAction {
			t.Errorf("expected no action for valid symlink, got %s (%s)", dec.Action, dec.Reason)
		}
	})
}

func TestDecideRemovals(t *testing.T) {
	env := newTestEnv(t)
	alpha := env.addPlaylist(t, "pl-a", "Alpha", 2)
	beta := env.addPlaylist(t, "pl-b", "Beta", 2)

	t.Run("SymlinkRemoval", func(t *testing.T) {
		track := env.addTrack(t, "tidal-1", "A", "Linked")
		pt := env.link(t, beta.ID, track.ID, 0)
		pt.SymlinkPath = filepath.Join(env.root, "Beta", "A - Linked.mp3")
		pt.InTidal = false
		env.updateLink(t, pt)

		decisions, err := env.newEngine().AnalyzePlaylistSync(beta.ID)
		if err != nil {
			t.Fatalf("analysis failed: %v", err)
		}
		dec := singleDecision(t, decisions)
		if dec.Action != RemoveSymlink || dec.Priority != priorityRemoveSymlink {
			t.Errorf("expected symlink removal, got %s at %d", dec.Action, dec.Priority)
		}
		if decisions.SymlinksToRemove != 1 || decisions.FilesToRemove != 0 {
			t.Errorf("expected one symlink removal and no file removals, got symlinks=%d files=%d",
				decisions.SymlinksToRemove, decisions.FilesToRemove)
		}
	})

	t.Run("PrimaryStillReferenced", func(t *testing.T) {
		track := env.addTrack(t, "tidal-2", "B", "Shared")
		primary := env.link(t, alpha.ID, track.ID, 0)
		primary.IsPrimary = true
		primary.InTidal = false
		env.updateLink(t, primary)
		env.link(t, beta.ID, track.ID, 1)

		path := filepath.Join(env.root, "Alpha", "B - Shared.mp3")
		writeFile(t, path)
		if err := env.tracks.SetFileInfo(track.ID, path, 5, time.Now()); err != nil {
			t.Fatalf("failed to set file info: %v", err)
		}

		decisions, err := env.newEngine().AnalyzePlaylistSync(alpha.ID)
		if err != nil {
			t.Fatalf("analysis failed: %v", err)
		}
		dec := singleDecision(t, decisions)
		if dec.Action != NoAction {
			t.Errorf("expected no action while another playlist needs the file, got %s", dec.Action)
		}
	})

	t.Run("LastReference", func(t *testing.T) {
		track := env.addTrack(t, "tidal-3", "C", "Orphaned")
		pt := env.link(t, alpha.ID, track.ID, 1)
		pt.IsPrimary = true
		pt.InTidal = false
		env.updateLink(t, pt)

		path := filepath.Join(env.root, "Alpha", "C - Orphaned.mp3")
		writeFile(t, path)
		if err := env.tracks.SetFileInfo(track.ID, path, 5, time.Now()); err != nil {
			t.Fatalf("failed to set file info: %v", err)
		}

		decisions, err := env.newEngine().AnalyzePlaylistSync(alpha.ID)
		if err != nil {
			t.Fatalf("analysis failed: %v", err)
		}
		found := false
		for _, dec := range decisions.Decisions {
			if dec.TrackID == track.ID {
				found = true
				if dec.Action != RemoveFile || dec.Priority != priorityRemoveFile {
					t.Errorf("expected file removal, got %s at %d", dec.Action, dec.Priority)
				}
				if dec.SourcePath != path {
					t.Errorf("expected source %s, got %s", path, dec.SourcePath)
				}
			}
		}
		if !found {
			t.Error("no decision for the orphaned primary")
		}
	})
}

func TestDecideDownloadDeferredToPrimary(t *testing.T) {
	env := newTestEnv(t)
	alpha := env.addPlaylist(t, "pl-a", "Alpha", 1)
	beta := env.addPlaylist(t, "pl-b", "Beta", 1)
	track := env.addTrack(t, "tidal-1", "Daft Punk", "Around the World")

	primary := env.link(t, alpha.ID, track.ID, 0)
	primary.IsPrimary = true
	env.updateLink(t, primary)
	env.link(t, beta.ID, track.ID, 0)

	decisions, err := env.newEngine().AnalyzeAllPlaylists()
	if err != nil {
		t.Fatalf("analysis failed: %v", err)
	}

	if decisions.TracksToDownload != 1 {
		t.Errorf("expected exactly one download, got %d", decisions.TracksToDownload)
	}
	for _, dec := range decisions.Decisions {
		if dec.Action == DownloadTrack && dec.PlaylistID != alpha.ID {
			t.Error("download should target the primary playlist")
		}
	}
}

func TestPrioritizedDecisionsAndFilter(t *testing.T) {
	env := newTestEnv(t)
	engine := env.newEngine()

	decisions := &SyncDecisions{}
	decisions.add(DecisionResult{Action: CreateSymlink, Priority: prioritySymlink, TrackID: "low"})
	decisions.add(DecisionResult{Action: DownloadTrack, Priority: priorityDownloadNew, TrackID: "high"})
	decisions.add(DecisionResult{Action: RemoveFile, Priority: priorityRemoveFile, TrackID: "mid"})

	ordered := engine.PrioritizedDecisions(decisions)
	if ordered[0].TrackID != "high" || ordered[2].TrackID != "low" {
		t.Errorf("unexpected order: %v, %v, %v", ordered[0].TrackID, ordered[1].TrackID, ordered[2].TrackID)
	}

	downloads := FilterDecisionsByAction(ordered, DownloadTrack)
	if len(downloads) != 1 || downloads[0].TrackID != "high" {
		t.Errorf("unexpected filter result: %v", downloads)
	}
}

func TestSyncDecisionsSummaryCounters(t *testing.T) {
	decisions := &SyncDecisions{}
	decisions.add(DecisionResult{Action: RemoveSymlink, Priority: priorityRemoveSymlink})
	decisions.add(DecisionResult{Action: RemoveFile, Priority: priorityRemoveFile})

	counts := decisions.Summary().Counts
	if counts["symlinks_to_remove"] != 1 || counts["files_to_remove"] != 1 {
		t.Errorf("removal kinds should be counted apart: %v", counts)
	}
	if _, ok := counts["metadata_updates"]; !ok {
		t.Errorf("summary missing metadata_updates: %v", counts)
	}
}
