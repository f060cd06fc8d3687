package tasks

import (
	"fmt"
	"strings"
	"time"

	"tidalsync/internal/models"
	"tidalsync/internal/shared"
)

// ChangeType classifies one difference between catalog and remote state.
type ChangeType string

const (
	PlaylistAdded        ChangeType = "playlist_added"
	PlaylistRemoved      ChangeType = "playlist_removed"
	PlaylistRenamed      ChangeType = "playlist_renamed"
	TrackAdded           ChangeType = "track_added"
	TrackRemoved         ChangeType = "track_removed"
	TrackMoved           ChangeType = "track_moved"
	TrackMetadataChanged ChangeType = "track_metadata_changed"
)

// Entity kinds a Change can refer to.
const (
	EntityPlaylist = "playlist"
	EntityTrack    = "track"
)

// Change is one observed difference, carrying enough identity and old/new
// state to replay or audit it later. Description is a rendered reading of
// the same facts.
type Change struct {
	Type         ChangeType
	EntityType   string
	EntityID     string // remote identifier of the entity
	PlaylistID   string
	PlaylistName string
	TrackID      string
	OldValue     string
	NewValue     string
	Metadata     map[string]string
	Description  string
	DetectedAt   time.Time
}

// SyncState is the accumulated diff between remote and catalog, with the
// sizes of the two compared snapshots.
type SyncState struct {
	LocalPlaylists  int
	RemotePlaylists int
	LocalTracks     int
	RemoteTracks    int

	Changes []Change
}

// Add appends a change, stamping the detection time if the caller did not.
func (s *SyncState) Add(c Change) {
	if c.DetectedAt.IsZero() {
		c.DetectedAt = time.Now()
	}
	s.Changes = append(s.Changes, c)
}

// ByType returns the subset of changes of one type.
func (s *SyncState) ByType(t ChangeType) []Change {
	var out []Change
	for _, c := range s.Changes {
		if c.Type == t {
			out = append(out, c)
		}
	}
	return out
}

// ForPlaylist returns the subset of changes touching one playlist.
func (s *SyncState) ForPlaylist(name string) []Change {
	var out []Change
	for _, c := range s.Changes {
		if c.PlaylistName == name {
			out = append(out, c)
		}
	}
	return out
}

// Summary returns a per-type histogram of the diff.
func (s *SyncState) Summary() map[ChangeType]int {
	out := make(map[ChangeType]int)
	for _, c := range s.Changes {
		out[c.Type]++
	}
	return out
}

// ComparePlaylists diffs the remote playlist set against the catalog,
// matching on Tidal identity and reporting renames separately.
func ComparePlaylists(local []*models.Playlist, remote []models.RemotePlaylist) *SyncState {
	state := &SyncState{
		LocalPlaylists:  len(local),
		RemotePlaylists: len(remote),
	}

	byTidalID := make(map[string]*models.Playlist, len(local))
	for _, p := range local {
		byTidalID[p.TidalID] = p
	}

	seen := make(map[string]bool, len(remote))
	for _, r := range remote {
		seen[r.TidalID] = true
		existing, ok := byTidalID[r.TidalID]
		if !ok {
			state.Add(Change{
				Type:         PlaylistAdded,
				EntityType:   EntityPlaylist,
				EntityID:     r.TidalID,
				PlaylistName: r.Name,
				NewValue:     r.Name,
				Metadata:     map[string]string{"num_tracks": fmt.Sprintf("%d", r.NumTracks)},
				Description:  fmt.Sprintf("playlist %q appeared remotely (%d tracks)", r.Name, r.NumTracks),
			})
			continue
		}
		if existing.Name != r.Name {
			state.Add(Change{
				Type:         PlaylistRenamed,
				EntityType:   EntityPlaylist,
				EntityID:     r.TidalID,
				PlaylistID:   existing.ID,
				PlaylistName: r.Name,
				OldValue:     existing.Name,
				NewValue:     r.Name,
				Description:  fmt.Sprintf("playlist renamed %q to %q", existing.Name, r.Name),
			})
		}
	}

	for _, p := range local {
		if !seen[p.TidalID] {
			state.Add(Change{
				Type:         PlaylistRemoved,
				EntityType:   EntityPlaylist,
				EntityID:     p.TidalID,
				PlaylistID:   p.ID,
				PlaylistName: p.Name,
				OldValue:     p.Name,
				Description:  fmt.Sprintf("playlist %q no longer exists remotely", p.Name),
			})
		}
	}

	return state
}

// ComparePlaylistTracks diffs one playlist's remote track list against its
// catalog memberships. Identity is the normalized artist-title key, so a
// remote ID change for the same recording does not read as a remove+add.
func ComparePlaylistTracks(playlistID, playlistName string, local []*models.Track, localPositions map[string]int, remote []models.RemoteTrack) *SyncState {
	state := &SyncState{
		LocalTracks:  len(local),
		RemoteTracks: len(remote),
	}

	localByKey := make(map[string]*models.Track, len(local))
	for _, t := range local {
		localByKey[t.NormalizedID] = t
	}

	remoteKeys := make(map[string]bool, len(remote))
	for pos, r := range remote {
		key := shared.NormalizeTrackKey(r.Artist, r.Title)
		remoteKeys[key] = true

		existing, ok := localByKey[key]
		if !ok {
			state.Add(Change{
				Type:         TrackAdded,
				EntityType:   EntityTrack,
				EntityID:     r.TidalID,
				PlaylistID:   playlistID,
				PlaylistName: playlistName,
				NewValue:     fmt.Sprintf("%s - %s", r.Artist, r.Title),
				Metadata:     map[string]string{"position": fmt.Sprintf("%d", pos)},
				Description:  fmt.Sprintf("%s - %s added at position %d", r.Artist, r.Title, pos),
			})
			continue
		}

		if oldPos, havePos := localPositions[existing.ID]; havePos && oldPos != pos {
			state.Add(Change{
				Type:         TrackMoved,
				EntityType:   EntityTrack,
				EntityID:     existing.TidalID,
				PlaylistID:   playlistID,
				PlaylistName: playlistName,
				TrackID:      existing.ID,
				OldValue:     fmt.Sprintf("%d", oldPos),
				NewValue:     fmt.Sprintf("%d", pos),
				Description:  fmt.Sprintf("%s moved from position %d to %d", existing.DisplayName(), oldPos, pos),
			})
		}

		if c := CompareTrackMetadata(existing, r); c != nil {
			c.PlaylistID = playlistID
			c.PlaylistName = playlistName
			state.Add(*c)
		}
	}

	for _, t := range local {
		if !remoteKeys[t.NormalizedID] {
			state.Add(Change{
				Type:         TrackRemoved,
				EntityType:   EntityTrack,
				EntityID:     t.TidalID,
				PlaylistID:   playlistID,
				PlaylistName: playlistName,
				TrackID:      t.ID,
				OldValue:     t.DisplayName(),
				Description:  fmt.Sprintf("%s removed", t.DisplayName()),
			})
		}
	}

	return state
}

// CompareTrackMetadata returns a single change bundling every metadata
// field that differs between the catalog track and its remote counterpart,
// or nil when they agree. Each differing field appears in Metadata with its
// old and new value.
func CompareTrackMetadata(local *models.Track, remote models.RemoteTrack) *Change {
	var diffs []string
	meta := make(map[string]string)

	record := func(field, from, to string) {
		diffs = append(diffs, fmt.Sprintf("%s %s to %s", field, from, to))
		meta[field] = fmt.Sprintf("%s to %s", from, to)
	}

	if local.Album != remote.Album {
		record("album", fmt.Sprintf("%q", local.Album), fmt.Sprintf("%q", remote.Album))
	}
	if local.Duration != remote.Duration {
		record("duration", fmt.Sprintf("%ds", local.Duration), fmt.Sprintf("%ds", remote.Duration))
	}
	if local.ISRC != remote.ISRC && remote.ISRC != "" {
		record("isrc", fmt.Sprintf("%q", local.ISRC), fmt.Sprintf("%q", remote.ISRC))
	}
	if local.AudioQuality != remote.AudioQuality && remote.AudioQuality != "" {
		record("quality", fmt.Sprintf("%q", local.AudioQuality), fmt.Sprintf("%q", remote.AudioQuality))
	}
	if local.Explicit != remote.Explicit {
		record("explicit", fmt.Sprintf("%t", local.Explicit), fmt.Sprintf("%t", remote.Explicit))
	}

	if len(diffs) == 0 {
		return nil
	}

	return &Change{
		Type:        TrackMetadataChanged,
		EntityType:  EntityTrack,
		EntityID:    local.TidalID,
		TrackID:     local.ID,
		Metadata:    meta,
		Description: fmt.Sprintf("%s: %s", local.DisplayName(), strings.Join(diffs, "; ")),
	}
}
