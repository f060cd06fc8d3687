package tasks

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"tidalsync/internal/models"
	"tidalsync/internal/shared"
)

// supportedExtensions lists the audio formats the scanner recognizes.
var supportedExtensions = map[string]bool{
	".mp3":  true,
	".m4a":  true,
	".aac":  true,
	".flac": true,
	".wav":  true,
	".ogg":  true,
	".opus": true,
}

// ScanStats accumulates the outcome of one filesystem scan.
type ScanStats struct {
	PlaylistDirsScanned int
	PlaylistDirsSkipped int
	FilesScanned        int
	FilesMatched        int
	SymlinksScanned     int
	SymlinksValid       int
	SymlinksBroken      int
	Unmatched           int
	Errors              []string
}

// Summary returns the reporting structure for the scan stage.
func (s *ScanStats) Summary() Summary {
	return Summary{
		Component: "scan",
		Counts: map[string]int{
			"playlist_dirs_scanned": s.PlaylistDirsScanned,
			"playlist_dirs_skipped": s.PlaylistDirsSkipped,
			"files_scanned":         s.FilesScanned,
			"files_matched":         s.FilesMatched,
			"symlinks_scanned":      s.SymlinksScanned,
			"symlinks_valid":        s.SymlinksValid,
			"symlinks_broken":       s.SymlinksBroken,
			"unmatched":             s.Unmatched,
			"errors":                len(s.Errors),
		},
		Errors: sampleErrors(s.Errors),
	}
}

// LibraryScanner walks the playlist directory tree and writes what it finds
// back into the catalog: file facts and the primary flag for regular files,
// symlink path and validity for links.
//
// The scanner never invents tracks; entries that match nothing in the catalog
// are counted and skipped with a debug note.
type LibraryScanner struct {
	playlistsRoot  string
	playlists      models.PlaylistRepository
	tracks         models.TrackRepository
	playlistTracks models.PlaylistTrackRepository
	logger         *log.Logger
}

// NewLibraryScanner creates a LibraryScanner rooted at playlistsRoot.
func NewLibraryScanner(
	playlistsRoot string,
	playlists models.PlaylistRepository,
	tracks models.TrackRepository,
	playlistTracks models.PlaylistTrackRepository,
	logger *log.Logger,
) *LibraryScanner {
	return &LibraryScanner{
		playlistsRoot:  playlistsRoot,
		playlists:      playlists,
		tracks:         tracks,
		playlistTracks: playlistTracks,
		logger:         logger,
	}
}

// ScanAllPlaylists scans every playlist directory under the root.
// A root that does not exist yet is an empty library, not a failure; any
// other read error on the root is returned. Everything below the root is
// per-item isolated.
func (s *LibraryScanner) ScanAllPlaylists() (*ScanStats, error) {
	entries, err := os.ReadDir(s.playlistsRoot)
	if os.IsNotExist(err) {
		s.logger.Info("playlists root does not exist yet, nothing to scan", "root", s.playlistsRoot)
		return &ScanStats{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read playlists root %s: %w", s.playlistsRoot, err)
	}

	stats := &ScanStats{}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		s.scanPlaylistDir(entry.Name(), stats)
	}

	return stats, nil
}

// scanPlaylistDir scans one playlist directory, non-recursively.
func (s *LibraryScanner) scanPlaylistDir(dirName string, stats *ScanStats) {
	playlist, err := s.playlists.GetByName(dirName)
	if errors.Is(err, shared.ErrPlaylistNotFound) {
		s.logger.Warn("directory matches no catalog playlist, skipping", "dir", dirName)
		stats.PlaylistDirsSkipped++
		return
	}
	if err != nil {
		stats.Errors = append(stats.Errors, fmt.Sprintf("dir %s: %v", dirName, err))
		return
	}

	dirPath := filepath.Join(s.playlistsRoot, dirName)
	entries, err := os.ReadDir(dirPath)
	if err != nil {
		stats.Errors = append(stats.Errors, fmt.Sprintf("dir %s: %v", dirName, err))
		return
	}

	stats.PlaylistDirsScanned++

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if !supportedExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}

		path := filepath.Join(dirPath, entry.Name())
		if entry.Type()&fs.ModeSymlink != 0 {
			s.scanSymlink(playlist, path, entry.Name(), stats)
		} else {
			s.scanFile(playlist, path, entry.Name(), stats)
		}
	}

	now := time.Now()
	playlist.LastSyncedFilesystem = &now
	if err := s.playlists.Update(playlist); err != nil {
		stats.Errors = append(stats.Errors, fmt.Sprintf("dir %s: %v", dirName, err))
	}
}

// scanFile records a regular file as the primary copy of its matched track.
func (s *LibraryScanner) scanFile(playlist *models.Playlist, path, name string, stats *ScanStats) {
	stats.FilesScanned++

	track := s.matchTrack(name)
	if track == nil {
		s.logger.Debug("file matches no catalog track", "playlist", playlist.Name, "file", name)
		stats.Unmatched++
		return
	}

	info, err := os.Stat(path)
	if err != nil {
		stats.Errors = append(stats.Errors, fmt.Sprintf("file %s: %v", path, err))
		return
	}

	if err := s.tracks.SetFileInfo(track.ID, path, info.Size(), info.ModTime()); err != nil {
		stats.Errors = append(stats.Errors, fmt.Sprintf("file %s: %v", path, err))
		return
	}

	pt, err := s.playlistTracks.GetByPlaylistAndTrack(playlist.ID, track.ID)
	if errors.Is(err, shared.ErrAssociationNotFound) {
		s.logger.Debug("file's track is not a member of this playlist", "playlist", playlist.Name, "file", name)
		return
	}
	if err != nil {
		stats.Errors = append(stats.Errors, fmt.Sprintf("file %s: %v", path, err))
		return
	}

	pt.IsPrimary = true
	if err := s.playlistTracks.Update(pt); err != nil {
		stats.Errors = append(stats.Errors, fmt.Sprintf("file %s: %v", path, err))
		return
	}

	stats.FilesMatched++
}

// scanSymlink validates a link's target and records the link on the matched
// membership. Broken links are still recorded, flagged invalid, so the
// decision engine can schedule a repair.
func (s *LibraryScanner) scanSymlink(playlist *models.Playlist, path, name string, stats *ScanStats) {
	stats.SymlinksScanned++

	valid := s.symlinkTargetExists(path)
	if valid {
		stats.SymlinksValid++
	} else {
		stats.SymlinksBroken++
	}

	track := s.matchTrack(name)
	if track == nil {
		s.logger.Debug("symlink matches no catalog track", "playlist", playlist.Name, "link", name)
		stats.Unmatched++
		return
	}

	pt, err := s.playlistTracks.GetByPlaylistAndTrack(playlist.ID, track.ID)
	if errors.Is(err, shared.ErrAssociationNotFound) {
		s.logger.Debug("symlink's track is not a member of this playlist", "playlist", playlist.Name, "link", name)
		return
	}
	if err != nil {
		stats.Errors = append(stats.Errors, fmt.Sprintf("symlink %s: %v", path, err))
		return
	}

	pt.SymlinkPath = path
	pt.SymlinkValid = &valid
	if err := s.playlistTracks.Update(pt); err != nil {
		stats.Errors = append(stats.Errors, fmt.Sprintf("symlink %s: %v", path, err))
	}
}

// symlinkTargetExists resolves the link target, relative targets against the
// link's own directory, and reports whether it exists.
func (s *LibraryScanner) symlinkTargetExists(path string) bool {
	target, err := os.Readlink(path)
	if err != nil {
		return false
	}
	if !filepath.IsAbs(target) {
		target = filepath.Join(filepath.Dir(path), target)
	}
	_, err = os.Stat(target)
	return err == nil
}

// matchTrack resolves a filename to a catalog track.
//
// Structured "Artist - Title" parsing with an exact normalized-identity
// lookup comes first; when that fails the whole basename is matched as a
// substring of any normalized identity. The fallback is a best-effort
// heuristic and deliberately stays one.
func (s *LibraryScanner) matchTrack(name string) *models.Track {
	if artist, title, ok := shared.ParseTrackFilename(name); ok {
		track, err := s.tracks.GetByNormalizedID(shared.NormalizeTrackKey(artist, title))
		if err == nil {
			return track
		}
		if !errors.Is(err, shared.ErrTrackNotFound) {
			s.logger.Error("track lookup failed", "file", name, "err", err)
			return nil
		}
	}

	base := name
	if idx := strings.LastIndex(base, "."); idx > 0 {
		base = base[:idx]
	}
	fragment := shared.NormalizeText(base)
	if fragment == "" {
		return nil
	}

	track, err := s.tracks.SearchByNormalizedFragment(fragment)
	if err != nil {
		if !errors.Is(err, shared.ErrTrackNotFound) {
			s.logger.Error("track search failed", "file", name, "err", err)
		}
		return nil
	}

	return track
}
