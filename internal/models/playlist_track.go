package models

import (
	"fmt"
	"time"
)

// TrackSyncStatus tracks how one playlist membership relates to the filesystem.
type TrackSyncStatus string

const (
	TrackUnknown      TrackSyncStatus = "unknown"
	TrackSynced       TrackSyncStatus = "synced"
	TrackNeedsSymlink TrackSyncStatus = "needs_symlink"
	TrackNeedsMove    TrackSyncStatus = "needs_move"
	TrackNeedsRemoval TrackSyncStatus = "needs_removal"
)

// Valid reports whether s is one of the known association sync statuses.
func (s TrackSyncStatus) Valid() bool {
	switch s {
	case TrackUnknown, TrackSynced, TrackNeedsSymlink, TrackNeedsMove, TrackNeedsRemoval:
		return true
	}
	return false
}

// PlaylistTrack links a track into a playlist, ordered by Position.
//
// Across every playlist containing a given track, at most one association has
// IsPrimary set; the rest hold symlinks to the primary copy. Before the first
// scan/dedup pass none are primary.
type PlaylistTrack struct {
	ID         string
	PlaylistID string
	TrackID    string
	Position   int

	IsPrimary    bool
	SymlinkPath  string // empty when this membership holds no symlink
	SymlinkValid *bool  // nil until the scanner has checked the link target

	SyncStatus TrackSyncStatus
	SyncedAt   *time.Time

	// InTidal is cleared once a fetch no longer reports this track in this
	// playlist; the decision engine then schedules the local cleanup.
	InTidal bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate checks that the association has the fields every catalog row requires.
func (pt *PlaylistTrack) Validate() error {
	if pt.PlaylistID == "" {
		return fmt.Errorf("playlist track requires a playlist id")
	}
	if pt.TrackID == "" {
		return fmt.Errorf("playlist track requires a track id")
	}
	if !pt.SyncStatus.Valid() {
		return fmt.Errorf("playlist track has invalid sync status %q", pt.SyncStatus)
	}
	return nil
}
