// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"tidalsync/internal/models"
)

// MockPlaylistSource is a test double for [services.PlaylistSource].
type MockPlaylistSource struct {
	Playlists     []models.RemotePlaylist
	Tracks        map[string][]models.RemoteTrack
	PlaylistsErr  error
	TracksErr     error
	PlaylistCalls int
	TrackCalls    int
}

func (m *MockPlaylistSource) GetPlaylists(ctx context.Context) ([]models.RemotePlaylist, error) {
	m.PlaylistCalls++
	if m.PlaylistsErr != nil {
		return nil, m.PlaylistsErr
	}
	return m.Playlists, nil
}

func (m *MockPlaylistSource) GetPlaylistTracks(ctx context.Context, playlistID string) ([]models.RemoteTrack, error) {
	m.TrackCalls++
	if m.TracksErr != nil {
		return nil, m.TracksErr
	}
	return m.Tracks[playlistID], nil
}

func (m *MockPlaylistSource) Name() string { return "mock" }

// MockDownloader is a test double for [services.Downloader]. It writes a
// small placeholder file at the target path unless Err is set.
type MockDownloader struct {
	Err   error
	Calls []string // tidal IDs in call order
}

func (m *MockDownloader) DownloadTrack(ctx context.Context, tidalID, targetPath string) (string, error) {
	m.Calls = append(m.Calls, tidalID)
	if m.Err != nil {
		return "", m.Err
	}
	if err := os.MkdirAll(filepath.Dir(targetPath), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(targetPath, []byte("audio"), 0o644); err != nil {
		return "", err
	}
	return targetPath, nil
}

// FWriter always returns an error on Write.
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes.
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing.
type MockRoundTripper struct {
	Handler func(*http.Request) (*http.Response, error)
}

func (m *MockRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if m.Handler == nil {
		return nil, errors.New("no handler configured")
	}
	return m.Handler(req)
}

// AssertFileExists fails the test when path is not a regular file.
func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	info, err := os.Lstat(path)
	if err != nil {
		t.Fatalf("expected file at %s: %v", path, err)
	}
	if !info.Mode().IsRegular() {
		t.Fatalf("expected regular file at %s, got mode %v", path, info.Mode())
	}
}

// AssertNotExists fails the test when anything exists at path.
func AssertNotExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Lstat(path); !os.IsNotExist(err) {
		t.Fatalf("expected nothing at %s", path)
	}
}

// AssertSymlink fails the test when path is not a symlink pointing at target.
func AssertSymlink(t *testing.T, path, target string) {
	t.Helper()
	info, err := os.Lstat(path)
	if err != nil {
		t.Fatalf("expected symlink at %s: %v", path, err)
	}
	if info.Mode()&os.ModeSymlink == 0 {
		t.Fatalf("expected symlink at %s, got mode %v", path, info.Mode())
	}
	got, err := os.Readlink(path)
	if err != nil {
		t.Fatalf("failed to read link %s: %v", path, err)
	}
	if got != target {
		t.Fatalf("symlink %s points at %s, want %s", path, got, target)
	}
}

// WriteTestFile creates a file with throwaway content, creating parent
// directories as needed.
func WriteTestFile(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create dir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte("audio"), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

// RemotePlaylistFixture returns a remote playlist with n generated tracks
// registered in the source's track map.
func RemotePlaylistFixture(source *MockPlaylistSource, tidalID, name string, n int) models.RemotePlaylist {
	playlist := models.RemotePlaylist{
		TidalID:   tidalID,
		Name:      name,
		NumTracks: n,
	}
	tracks := make([]models.RemoteTrack, 0, n)
	for i := 0; i < n; i++ {
		tracks = append(tracks, models.RemoteTrack{
			TidalID:  fmt.Sprintf("%s-track-%d", tidalID, i),
			Title:    fmt.Sprintf("Song %d", i),
			Artist:   fmt.Sprintf("Artist %d", i),
			Album:    "Album",
			Duration: 200 + i,
		})
	}
	source.Playlists = append(source.Playlists, playlist)
	if source.Tracks == nil {
		source.Tracks = make(map[string][]models.RemoteTrack)
	}
	source.Tracks[tidalID] = tracks
	return playlist
}
