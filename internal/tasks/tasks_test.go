package tasks

import (
	"database/sql"
	"io"
	"testing"

	"github.com/charmbracelet/log"

	"tidalsync/internal/models"
	"tidalsync/internal/repositories"
	"tidalsync/internal/shared"
)

// testEnv bundles an in-memory catalog with its repositories and a playlist
// root under the test's temp directory.
type testEnv struct {
	db             *sql.DB
	playlists      *repositories.PlaylistRepository
	tracks         *repositories.TrackRepository
	playlistTracks *repositories.PlaylistTrackRepository
	logger         *log.Logger
	root           string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	return &testEnv{
		db:             db,
		playlists:      repositories.NewPlaylistRepository(db),
		tracks:         repositories.NewTrackRepository(db),
		playlistTracks: repositories.NewPlaylistTrackRepository(db),
		logger:         shared.NewLogger(io.Discard),
		root:           t.TempDir(),
	}
}

func (e *testEnv) addPlaylist(t *testing.T, tidalID, name string, numTracks int) *models.Playlist {
	t.Helper()
	p := &models.Playlist{
		TidalID:    tidalID,
		Name:       name,
		NumTracks:  numTracks,
		SyncStatus: models.PlaylistUnknown,
	}
	if err := e.playlists.Create(p); err != nil {
		t.Fatalf("failed to create playlist: %v", err)
	}
	return p
}

func (e *testEnv) addTrack(t *testing.T, tidalID, artist, title string) *models.Track {
	t.Helper()
	track := &models.Track{
		TidalID:        tidalID,
		Title:          title,
		Artist:         artist,
		Album:          "Album",
		Duration:       200,
		DownloadStatus: models.NotDownloaded,
	}
	if err := e.tracks.Create(track); err != nil {
		t.Fatalf("failed to create track: %v", err)
	}
	return track
}

func (e *testEnv) link(t *testing.T, playlistID, trackID string, position int) *models.PlaylistTrack {
	t.Helper()
	pt := &models.PlaylistTrack{
		PlaylistID: playlistID,
		TrackID:    trackID,
		Position:   position,
		SyncStatus: models.TrackUnknown,
		InTidal:    true,
	}
	if err := e.playlistTracks.Create(pt); err != nil {
		t.Fatalf("failed to create association: %v", err)
	}
	return pt
}

func (e *testEnv) updateLink(t *testing.T, pt *models.PlaylistTrack) {
	t.Helper()
	if err := e.playlistTracks.Update(pt); err != nil {
		t.Fatalf("failed to update association: %v", err)
	}
}

func (e *testEnv) newEngine() *DecisionEngine {
	return NewDecisionEngine(e.root, "mp3", e.playlists, e.tracks, e.playlistTracks, e.logger)
}

func (e *testEnv) newDedup(strategy Strategy) *Deduplicator {
	return NewDeduplicator(strategy, e.playlists, e.playlistTracks, e.logger)
}

func (e *testEnv) newScanner() *LibraryScanner {
	return NewLibraryScanner(e.root, e.playlists, e.tracks, e.playlistTracks, e.logger)
}
