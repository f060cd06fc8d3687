package tasks

import (
	"context"
	"errors"
	"testing"
	"time"

	"tidalsync/internal/models"
	"tidalsync/internal/shared"
	tidaltest "tidalsync/internal/testing"
)

func newFetcher(env *testEnv, source *tidaltest.MockPlaylistSource) *RemoteFetcher {
	return NewRemoteFetcher(source, env.playlists, env.tracks, env.playlistTracks, env.logger)
}

func TestFetchCreatesCatalogRows(t *testing.T) {
	env := newTestEnv(t)
	source := &tidaltest.MockPlaylistSource{}
	tidaltest.RemotePlaylistFixture(source, "rpl-1", "Chill", 3)

	stats, err := newFetcher(env, source).FetchAllPlaylists(context.Background(), true)
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if stats.PlaylistsCreated != 1 || stats.TracksCreated != 3 || stats.AssociationsCreated != 3 {
		t.Errorf("unexpected stats: %+v", stats)
	}

	playlist, err := env.playlists.GetByTidalID("rpl-1")
	if err != nil {
		t.Fatalf("playlist not created: %v", err)
	}
	if playlist.SyncStatus != models.PlaylistNeedsDownload {
		t.Errorf("expected needs_download, got %s", playlist.SyncStatus)
	}
	if playlist.LastSeenInTidal == nil {
		t.Error("expected last seen timestamp set")
	}

	memberships, err := env.playlistTracks.ListByPlaylist(playlist.ID)
	if err != nil {
		t.Fatalf("failed to list memberships: %v", err)
	}
	if len(memberships) != 3 {
		t.Fatalf("expected 3 memberships, got %d", len(memberships))
	}
	for i, pt := range memberships {
		if pt.Position != i {
			t.Errorf("membership %d has position %d", i, pt.Position)
		}
		if !pt.InTidal {
			t.Errorf("membership %d should be in tidal", i)
		}
	}
}

func TestFetchSecondRunUpdatesWithoutDuplicates(t *testing.T) {
	env := newTestEnv(t)
	source := &tidaltest.MockPlaylistSource{}
	tidaltest.RemotePlaylistFixture(source, "rpl-1", "Chill", 2)

	fetcher := newFetcher(env, source)
	if _, err := fetcher.FetchAllPlaylists(context.Background(), true); err != nil {
		t.Fatalf("first fetch failed: %v", err)
	}

	// Simulate a completed download between fetches.
	track, err := env.tracks.GetByTidalID("rpl-1-track-0")
	if err != nil {
		t.Fatalf("track not created: %v", err)
	}
	if err := env.tracks.SetFileInfo(track.ID, "/music/Chill/a.mp3", 9, time.Now()); err != nil {
		t.Fatalf("failed to set file info: %v", err)
	}

	stats, err := fetcher.FetchAllPlaylists(context.Background(), true)
	if err != nil {
		t.Fatalf("second fetch failed: %v", err)
	}
	if stats.PlaylistsCreated != 0 || stats.PlaylistsUpdated != 1 {
		t.Errorf("expected an update, got %+v", stats)
	}
	if stats.TracksCreated != 0 || stats.TracksUpdated != 2 {
		t.Errorf("expected track updates only, got %+v", stats)
	}
	if stats.AssociationsCreated != 0 || stats.AssociationsUpdated != 2 {
		t.Errorf("expected association updates only, got %+v", stats)
	}

	tracks, err := env.tracks.List()
	if err != nil {
		t.Fatalf("failed to list tracks: %v", err)
	}
	if len(tracks) != 2 {
		t.Errorf("expected 2 tracks after refetch, got %d", len(tracks))
	}

	// Metadata refresh must not clobber local download state.
	refreshed, _ := env.tracks.GetByTidalID("rpl-1-track-0")
	if refreshed.DownloadStatus != models.Downloaded || refreshed.FilePath != "/music/Chill/a.mp3" {
		t.Errorf("download state lost on refetch: status=%s path=%q",
			refreshed.DownloadStatus, refreshed.FilePath)
	}
}

func TestFetchMarksMissingTracks(t *testing.T) {
	env := newTestEnv(t)
	source := &tidaltest.MockPlaylistSource{}
	tidaltest.RemotePlaylistFixture(source, "rpl-1", "Chill", 3)

	fetcher := newFetcher(env, source)
	if _, err := fetcher.FetchAllPlaylists(context.Background(), true); err != nil {
		t.Fatalf("first fetch failed: %v", err)
	}

	// The remote playlist loses its last track.
	source.Tracks["rpl-1"] = source.Tracks["rpl-1"][:2]

	if _, err := fetcher.FetchAllPlaylists(context.Background(), true); err != nil {
		t.Fatalf("second fetch failed: %v", err)
	}

	gone, err := env.tracks.GetByTidalID("rpl-1-track-2")
	if err != nil {
		t.Fatalf("removed track should stay in catalog: %v", err)
	}
	playlist, _ := env.playlists.GetByTidalID("rpl-1")
	pt, err := env.playlistTracks.GetByPlaylistAndTrack(playlist.ID, gone.ID)
	if err != nil {
		t.Fatalf("membership should survive: %v", err)
	}
	if pt.InTidal {
		t.Error("membership for the removed track should be flagged out of tidal")
	}

	kept, _ := env.tracks.GetByTidalID("rpl-1-track-0")
	keptPT, _ := env.playlistTracks.GetByPlaylistAndTrack(playlist.ID, kept.ID)
	if !keptPT.InTidal {
		t.Error("surviving membership should remain in tidal")
	}
}

func TestFetchPlaylistRename(t *testing.T) {
	env := newTestEnv(t)
	source := &tidaltest.MockPlaylistSource{}
	tidaltest.RemotePlaylistFixture(source, "rpl-1", "Chill", 1)

	fetcher := newFetcher(env, source)
	if _, err := fetcher.FetchAllPlaylists(context.Background(), true); err != nil {
		t.Fatalf("first fetch failed: %v", err)
	}

	source.Playlists[0].Name = "Chill Renamed"
	if _, err := fetcher.FetchAllPlaylists(context.Background(), true); err != nil {
		t.Fatalf("second fetch failed: %v", err)
	}

	playlist, err := env.playlists.GetByTidalID("rpl-1")
	if err != nil {
		t.Fatalf("playlist lookup failed: %v", err)
	}
	if playlist.Name != "Chill Renamed" {
		t.Errorf("expected renamed playlist, got %q", playlist.Name)
	}
}

func TestFetchSourceErrors(t *testing.T) {
	env := newTestEnv(t)

	t.Run("NilSource", func(t *testing.T) {
		fetcher := NewRemoteFetcher(nil, env.playlists, env.tracks, env.playlistTracks, env.logger)
		if _, err := fetcher.FetchAllPlaylists(context.Background(), true); !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}
	})

	t.Run("ListingFails", func(t *testing.T) {
		source := &tidaltest.MockPlaylistSource{PlaylistsErr: errors.New("rate limited")}
		if _, err := newFetcher(env, source).FetchAllPlaylists(context.Background(), true); err == nil {
			t.Error("expected the listing failure returned")
		}
	})

	t.Run("TrackListingIsolated", func(t *testing.T) {
		source := &tidaltest.MockPlaylistSource{TracksErr: errors.New("timeout")}
		tidaltest.RemotePlaylistFixture(source, "rpl-err", "Broken", 1)

		stats, err := newFetcher(env, source).FetchAllPlaylists(context.Background(), true)
		if err != nil {
			t.Fatalf("per-playlist failure should not abort the batch: %v", err)
		}
		if len(stats.Errors) != 1 {
			t.Errorf("expected the failure recorded, got %v", stats.Errors)
		}
	})
}

func TestMarkRemovedPlaylists(t *testing.T) {
	env := newTestEnv(t)
	source := &tidaltest.MockPlaylistSource{}
	tidaltest.RemotePlaylistFixture(source, "rpl-1", "Chill", 1)

	// A playlist the remote no longer returns.
	stale := env.addPlaylist(t, "rpl-old", "Forgotten", 1)

	fetcher := newFetcher(env, source)
	cutoff := time.Now()
	if _, err := fetcher.FetchAllPlaylists(context.Background(), true); err != nil {
		t.Fatalf("fetch failed: %v", err)
	}

	n, err := fetcher.MarkRemovedPlaylists(cutoff)
	if err != nil {
		t.Fatalf("marking failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 playlist flagged, got %d", n)
	}

	flagged, _ := env.playlists.Get(stale.ID)
	if flagged.SyncStatus != models.PlaylistNeedsRemoval {
		t.Errorf("expected needs_removal, got %s", flagged.SyncStatus)
	}

	fresh, _ := env.playlists.GetByTidalID("rpl-1")
	if fresh.SyncStatus == models.PlaylistNeedsRemoval {
		t.Error("freshly seen playlist must not be flagged")
	}
}
