package models

import (
	"fmt"
	"time"
)

// PlaylistSyncStatus tracks how a mirrored playlist relates to its remote counterpart.
type PlaylistSyncStatus string

const (
	PlaylistUnknown       PlaylistSyncStatus = "unknown"
	PlaylistNeedsDownload PlaylistSyncStatus = "needs_download"
	PlaylistNeedsUpdate   PlaylistSyncStatus = "needs_update"
	PlaylistNeedsRemoval  PlaylistSyncStatus = "needs_removal"
	PlaylistInSync        PlaylistSyncStatus = "in_sync"
)

// Valid reports whether s is one of the known playlist sync statuses.
func (s PlaylistSyncStatus) Valid() bool {
	switch s {
	case PlaylistUnknown, PlaylistNeedsDownload, PlaylistNeedsUpdate, PlaylistNeedsRemoval, PlaylistInSync:
		return true
	}
	return false
}

// Playlist is a catalog row mirroring one Tidal playlist.
type Playlist struct {
	ID       string
	Sequence int
	TidalID  string

	Name        string
	Description string
	NumTracks   int

	SyncStatus           PlaylistSyncStatus
	LastUpdatedTidal     *time.Time
	LastSyncedFilesystem *time.Time
	LastSeenInTidal      *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate checks that the playlist has the fields every catalog row requires.
func (p *Playlist) Validate() error {
	if p.TidalID == "" {
		return fmt.Errorf("playlist requires a tidal id")
	}
	if p.Name == "" {
		return fmt.Errorf("playlist %s requires a name", p.TidalID)
	}
	if !p.SyncStatus.Valid() {
		return fmt.Errorf("playlist %s has invalid sync status %q", p.TidalID, p.SyncStatus)
	}
	return nil
}
