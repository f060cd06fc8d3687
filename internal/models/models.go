package models

import "time"

// TrackRepository defines catalog access for tracks.
type TrackRepository interface {
	Create(track *Track) error
	Get(id string) (*Track, error)
	GetByTidalID(tidalID string) (*Track, error)
	GetByNormalizedID(key string) (*Track, error)
	// SearchByNormalizedFragment returns the first track whose normalized
	// identity contains the fragment. Best-effort fallback for filenames
	// that do not parse as "Artist - Title"; never treated as authoritative.
	SearchByNormalizedFragment(fragment string) (*Track, error)
	Update(track *Track) error
	// SetDownloadStatus transitions the download state in its own short
	// transaction. downloadErr is stored only for the error status and
	// cleared otherwise.
	SetDownloadStatus(id string, status DownloadStatus, downloadErr string) error
	// SetFileInfo records a verified primary copy on disk and marks the
	// track downloaded.
	SetFileInfo(id, path string, size int64, mtime time.Time) error
	// ClearFile removes the primary copy record and resets the download
	// state to not_downloaded.
	ClearFile(id string) error
	List() ([]*Track, error)
}

// PlaylistRepository defines catalog access for playlists.
type PlaylistRepository interface {
	Create(playlist *Playlist) error
	Get(id string) (*Playlist, error)
	GetByTidalID(tidalID string) (*Playlist, error)
	GetByName(name string) (*Playlist, error)
	Update(playlist *Playlist) error
	List() ([]*Playlist, error)
	// MarkUnseenNeedsRemoval flags every playlist whose last_seen_in_tidal
	// predates the cutoff (or was never set) as needs_removal, returning
	// the number of playlists flagged.
	MarkUnseenNeedsRemoval(cutoff time.Time) (int, error)
}

// PlaylistTrackRepository defines catalog access for playlist memberships.
type PlaylistTrackRepository interface {
	Create(pt *PlaylistTrack) error
	Get(id string) (*PlaylistTrack, error)
	GetByPlaylistAndTrack(playlistID, trackID string) (*PlaylistTrack, error)
	ListByPlaylist(playlistID string) ([]*PlaylistTrack, error)
	ListByTrack(trackID string) ([]*PlaylistTrack, error)
	Update(pt *PlaylistTrack) error
	// MarkMissingFromTidal clears in_tidal on every association of the
	// playlist whose track id is not in seenTrackIDs, returning the number
	// of associations cleared.
	MarkMissingFromTidal(playlistID string, seenTrackIDs []string) (int, error)
	// MultiPlaylistTrackIDs returns the ids of tracks that appear in more
	// than one playlist, the only tracks deduplication has to decide on.
	MultiPlaylistTrackIDs() ([]string, error)
}
