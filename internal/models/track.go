package models

import (
	"fmt"
	"time"
)

// DownloadStatus tracks the lifecycle of a track's primary copy.
type DownloadStatus string

const (
	NotDownloaded DownloadStatus = "not_downloaded"
	Downloading   DownloadStatus = "downloading"
	Downloaded    DownloadStatus = "downloaded"
	DownloadError DownloadStatus = "error"
)

// Valid reports whether s is one of the known download statuses.
func (s DownloadStatus) Valid() bool {
	switch s {
	case NotDownloaded, Downloading, Downloaded, DownloadError:
		return true
	}
	return false
}

// Track is a catalog row mirroring one Tidal track.
//
// FilePath, when set, is always the location of the primary copy, never of a
// symlink. At most one primary copy exists per track.
type Track struct {
	ID       string
	Sequence int
	TidalID  string

	Title        string
	Artist       string
	Album        string
	Duration     int // seconds
	TrackNum     int
	VolumeNum    int
	Explicit     bool
	ISRC         string
	AudioQuality string

	// NormalizedID is the lowercase "artist - title" identity used for
	// matching against filenames and remote records.
	NormalizedID string

	DownloadStatus DownloadStatus
	DownloadError  string // empty when the last download attempt succeeded
	FilePath       string // empty when no primary copy exists on disk
	FileSize       int64
	FileMtime      *time.Time
	DownloadedAt   *time.Time
	LastVerifiedAt *time.Time

	LastSeenInTidal *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Validate checks that the track has the fields every catalog row requires.
func (t *Track) Validate() error {
	if t.TidalID == "" {
		return fmt.Errorf("track requires a tidal id")
	}
	if t.Title == "" {
		return fmt.Errorf("track %s requires a title", t.TidalID)
	}
	if t.Artist == "" {
		return fmt.Errorf("track %s requires an artist", t.TidalID)
	}
	if !t.DownloadStatus.Valid() {
		return fmt.Errorf("track %s has invalid download status %q", t.TidalID, t.DownloadStatus)
	}
	return nil
}

// DisplayName returns the "Artist - Title" form used for filenames and logs.
func (t *Track) DisplayName() string {
	return fmt.Sprintf("%s - %s", t.Artist, t.Title)
}

// TargetFilename returns the filename the primary copy should have in the
// given target format, e.g. "Daft Punk - Around the World.mp3".
func (t *Track) TargetFilename(format string) string {
	return fmt.Sprintf("%s.%s", t.DisplayName(), format)
}
