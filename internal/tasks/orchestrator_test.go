package tasks

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"tidalsync/internal/models"
	tidaltest "tidalsync/internal/testing"
)

var errRemoteDown = errors.New("remote down")

func newOrchestrator(env *testEnv, source *tidaltest.MockPlaylistSource, downloader *tidaltest.MockDownloader) *SyncOrchestrator {
	return NewSyncOrchestrator(
		newFetcher(env, source),
		env.newScanner(),
		env.newDedup(FirstAlphabetically),
		env.newEngine(),
		newExecutor(env, downloader, false),
		env.logger,
	)
}

// sharedLibrarySource builds a remote with a track that appears in two
// playlists plus one track unique to the first.
func sharedLibrarySource() *tidaltest.MockPlaylistSource {
	source := &tidaltest.MockPlaylistSource{
		Playlists: []models.RemotePlaylist{
			{TidalID: "rpl-a", Name: "Alpha", NumTracks: 2},
			{TidalID: "rpl-b", Name: "Beta", NumTracks: 1},
		},
		Tracks: map[string][]models.RemoteTrack{
			"rpl-a": {
				{TidalID: "t-shared", Artist: "Daft Punk", Title: "Around the World", Duration: 428},
				{TidalID: "t-solo", Artist: "Air", Title: "La Femme d'Argent", Duration: 420},
			},
			"rpl-b": {
				{TidalID: "t-shared", Artist: "Daft Punk", Title: "Around the World", Duration: 428},
			},
		},
	}
	return source
}

func TestRunFullSyncConverges(t *testing.T) {
	env := newTestEnv(t)
	source := sharedLibrarySource()
	downloader := &tidaltest.MockDownloader{}
	orch := newOrchestrator(env, source, downloader)

	sharedPrimary := filepath.Join(env.root, "Alpha", "Daft Punk - Around the World.mp3")
	soloPrimary := filepath.Join(env.root, "Alpha", "Air - La Femme d'Argent.mp3")
	sharedLink := filepath.Join(env.root, "Beta", "Daft Punk - Around the World.mp3")

	// First pass downloads both primary files. The symlink for the shared
	// track is deferred until a pass runs with the file in place.
	result, err := orch.RunFullSync(context.Background(), nil)
	if err != nil {
		t.Fatalf("first pass failed: %v", err)
	}
	if !result.Success {
		t.Fatalf("first pass reported errors: %v", result.Errors)
	}
	if result.Execution == nil || result.Execution.Downloads != 2 {
		t.Fatalf("expected 2 downloads in first pass, got %+v", result.Execution)
	}
	tidaltest.AssertFileExists(t, sharedPrimary)
	tidaltest.AssertFileExists(t, soloPrimary)

	// Second pass links the shared track into Beta.
	result, err = orch.RunFullSync(context.Background(), nil)
	if err != nil {
		t.Fatalf("second pass failed: %v", err)
	}
	if result.Execution == nil || result.Execution.SymlinksCreated != 1 {
		t.Fatalf("expected 1 symlink in second pass, got %+v", result.Execution)
	}
	tidaltest.AssertSymlink(t, sharedLink, sharedPrimary)

	// Third pass finds nothing left to do.
	result, err = orch.RunFullSync(context.Background(), nil)
	if err != nil {
		t.Fatalf("third pass failed: %v", err)
	}
	if !result.Success {
		t.Fatalf("third pass reported errors: %v", result.Errors)
	}
	for _, dec := range result.Decisions.Decisions {
		if dec.Action != NoAction {
			t.Errorf("converged library still wants %s: %s", dec.Action, dec.Reason)
		}
	}
	if result.Execution != nil && (result.Execution.Downloads > 0 ||
		result.Execution.SymlinksCreated > 0 || result.Execution.FilesRemoved > 0) {
		t.Errorf("converged library still executed work: %+v", result.Execution)
	}

	if len(downloader.Calls) != 2 {
		t.Errorf("expected each track downloaded once overall, got %v", downloader.Calls)
	}
}

func TestRunFullSyncRemovesDroppedTrack(t *testing.T) {
	env := newTestEnv(t)
	source := sharedLibrarySource()
	downloader := &tidaltest.MockDownloader{}
	orch := newOrchestrator(env, source, downloader)

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := orch.RunFullSync(ctx, nil); err != nil {
			t.Fatalf("setup pass %d failed: %v", i, err)
		}
	}

	// The remote drops the shared track from Beta.
	source.Tracks["rpl-b"] = nil
	sharedLink := filepath.Join(env.root, "Beta", "Daft Punk - Around the World.mp3")
	sharedPrimary := filepath.Join(env.root, "Alpha", "Daft Punk - Around the World.mp3")

	result, err := orch.RunFullSync(ctx, nil)
	if err != nil {
		t.Fatalf("removal pass failed: %v", err)
	}
	if result.Execution == nil || result.Execution.SymlinksRemoved != 1 {
		t.Fatalf("expected the Beta symlink removed, got %+v", result.Execution)
	}
	tidaltest.AssertNotExists(t, sharedLink)
	tidaltest.AssertFileExists(t, sharedPrimary)
}

func TestRunFullSyncProgressUpdates(t *testing.T) {
	env := newTestEnv(t)
	source := sharedLibrarySource()
	orch := newOrchestrator(env, source, &tidaltest.MockDownloader{})

	progress := make(chan ProgressUpdate, 16)
	if _, err := orch.RunFullSync(context.Background(), progress); err != nil {
		t.Fatalf("pass failed: %v", err)
	}
	close(progress)

	var phases []Phase
	for update := range progress {
		phases = append(phases, update.Phase)
	}
	if len(phases) == 0 {
		t.Fatal("expected progress updates")
	}
	if phases[0] != FetchRemote {
		t.Errorf("expected the pass to open with fetch, got %s", phases[0])
	}
	last := phases[len(phases)-1]
	if last != Finished {
		t.Errorf("expected the pass to close with finished, got %s", last)
	}
}

func TestRunFullSyncFetchFailureContinues(t *testing.T) {
	env := newTestEnv(t)
	playlist := env.addPlaylist(t, "pl-1", "Chill", 1)
	track := env.addTrack(t, "tidal-1", "Daft Punk", "Around the World")
	pt := env.link(t, playlist.ID, track.ID, 0)
	pt.IsPrimary = true
	env.updateLink(t, pt)
	writeFile(t, filepath.Join(env.root, "Chill", "Daft Punk - Around the World.mp3"))

	source := &tidaltest.MockPlaylistSource{PlaylistsErr: errRemoteDown}
	orch := newOrchestrator(env, source, &tidaltest.MockDownloader{})

	result, err := orch.RunFullSync(context.Background(), nil)
	if err != nil {
		t.Fatalf("fetch failure must not abort the pass: %v", err)
	}
	if result.Success {
		t.Error("pass with a failed fetch should not report success")
	}
	if result.Fetch != nil {
		t.Error("failed fetch should leave no fetch stats")
	}
	if result.Scan == nil {
		t.Error("scan should still run on catalog state")
	}
}

func TestSyncPlaylistScopedToOne(t *testing.T) {
	env := newTestEnv(t)
	source := sharedLibrarySource()
	downloader := &tidaltest.MockDownloader{}
	orch := newOrchestrator(env, source, downloader)

	// Seed the catalog without executing anything.
	if _, err := newFetcher(env, source).FetchAllPlaylists(context.Background(), true); err != nil {
		t.Fatalf("seed fetch failed: %v", err)
	}

	alpha, err := env.playlists.GetByTidalID("rpl-a")
	if err != nil {
		t.Fatalf("playlist lookup failed: %v", err)
	}

	result, err := orch.SyncPlaylist(context.Background(), alpha.ID)
	if err != nil {
		t.Fatalf("playlist sync failed: %v", err)
	}
	if !result.Success {
		t.Fatalf("playlist sync reported errors: %v", result.Errors)
	}
	if result.Execution == nil || result.Execution.Downloads != 2 {
		t.Fatalf("expected Alpha's 2 tracks downloaded, got %+v", result.Execution)
	}
	tidaltest.AssertNotExists(t, filepath.Join(env.root, "Beta"))
}
