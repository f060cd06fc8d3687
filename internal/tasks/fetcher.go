package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"tidalsync/internal/models"
	"tidalsync/internal/services"
	"tidalsync/internal/shared"
)

// FetchStats accumulates the outcome of one remote fetch.
type FetchStats struct {
	PlaylistsFetched    int
	PlaylistsCreated    int
	PlaylistsUpdated    int
	TracksFetched       int
	TracksCreated       int
	TracksUpdated       int
	AssociationsCreated int
	AssociationsUpdated int
	PlaylistsRemoved    int
	Errors              []string
}

// Summary returns the reporting structure for the fetch stage.
func (s *FetchStats) Summary() Summary {
	return Summary{
		Component: "fetch",
		Counts: map[string]int{
			"playlists_fetched":    s.PlaylistsFetched,
			"playlists_created":    s.PlaylistsCreated,
			"playlists_updated":    s.PlaylistsUpdated,
			"tracks_fetched":       s.TracksFetched,
			"tracks_created":       s.TracksCreated,
			"tracks_updated":       s.TracksUpdated,
			"associations_created": s.AssociationsCreated,
			"associations_updated": s.AssociationsUpdated,
			"playlists_removed":    s.PlaylistsRemoved,
			"errors":               len(s.Errors),
		},
		Errors: sampleErrors(s.Errors),
	}
}

// RemoteFetcher pulls remote playlist/track state into the catalog.
//
// Fetching never touches the filesystem; it only upserts catalog rows and
// flags what later stages have to reconcile.
type RemoteFetcher struct {
	source         services.PlaylistSource
	playlists      models.PlaylistRepository
	tracks         models.TrackRepository
	playlistTracks models.PlaylistTrackRepository
	logger         *log.Logger
}

// NewRemoteFetcher creates a RemoteFetcher with the provided dependencies.
func NewRemoteFetcher(
	source services.PlaylistSource,
	playlists models.PlaylistRepository,
	tracks models.TrackRepository,
	playlistTracks models.PlaylistTrackRepository,
	logger *log.Logger,
) *RemoteFetcher {
	return &RemoteFetcher{
		source:         source,
		playlists:      playlists,
		tracks:         tracks,
		playlistTracks: playlistTracks,
		logger:         logger,
	}
}

// FetchAllPlaylists pulls every remote playlist and its tracks into the
// catalog. New playlists are created with sync status needs_download when
// markNeedsSync is set (unknown otherwise); known playlists whose remote
// timestamp moved forward while they were in_sync transition to needs_update.
//
// Per-playlist and per-track failures are recorded in the returned stats and
// never abort the batch. Only a failure to list playlists at all is returned
// as an error.
func (f *RemoteFetcher) FetchAllPlaylists(ctx context.Context, markNeedsSync bool) (*FetchStats, error) {
	if f.source == nil {
		return nil, fmt.Errorf("%w: playlist source not initialized", shared.ErrServiceUnavailable)
	}

	stats := &FetchStats{}

	remotePlaylists, err := f.source.GetPlaylists(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list remote playlists: %w", err)
	}

	for _, rp := range remotePlaylists {
		stats.PlaylistsFetched++
		if err := f.fetchPlaylist(ctx, rp, markNeedsSync, stats); err != nil {
			f.logger.Error("playlist fetch failed", "playlist", rp.Name, "err", err)
			stats.Errors = append(stats.Errors, fmt.Sprintf("playlist %s: %v", rp.Name, err))
		}
	}

	return stats, nil
}

// MarkRemovedPlaylists flags every playlist not seen since the cutoff as
// needs_removal. Callers pass the start time of the fetch that should have
// touched every live playlist.
func (f *RemoteFetcher) MarkRemovedPlaylists(cutoff time.Time) (int, error) {
	n, err := f.playlists.MarkUnseenNeedsRemoval(cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to mark removed playlists: %w", err)
	}
	if n > 0 {
		f.logger.Info("flagged playlists for removal", "count", n)
	}
	return n, nil
}

// fetchPlaylist upserts one playlist, its tracks and their memberships.
func (f *RemoteFetcher) fetchPlaylist(ctx context.Context, rp models.RemotePlaylist, markNeedsSync bool, stats *FetchStats) error {
	now := time.Now()

	playlist, err := f.playlists.GetByTidalID(rp.TidalID)
	switch {
	case errors.Is(err, shared.ErrPlaylistNotFound):
		status := models.PlaylistUnknown
		if markNeedsSync {
			status = models.PlaylistNeedsDownload
		}
		playlist = &models.Playlist{
			TidalID:          rp.TidalID,
			Name:             rp.Name,
			Description:      rp.Description,
			NumTracks:        rp.NumTracks,
			SyncStatus:       status,
			LastUpdatedTidal: rp.LastUpdated,
			LastSeenInTidal:  &now,
		}
		if err := f.playlists.Create(playlist); err != nil {
			return err
		}
		stats.PlaylistsCreated++
	case err != nil:
		return err
	default:
		if remoteIsNewer(rp.LastUpdated, playlist.LastUpdatedTidal) && playlist.SyncStatus == models.PlaylistInSync {
			playlist.SyncStatus = models.PlaylistNeedsUpdate
		}
		playlist.Name = rp.Name
		playlist.Description = rp.Description
		playlist.NumTracks = rp.NumTracks
		playlist.LastUpdatedTidal = rp.LastUpdated
		playlist.LastSeenInTidal = &now
		if err := f.playlists.Update(playlist); err != nil {
			return err
		}
		stats.PlaylistsUpdated++
	}

	remoteTracks, err := f.source.GetPlaylistTracks(ctx, rp.TidalID)
	if err != nil {
		return fmt.Errorf("failed to fetch tracks: %w", err)
	}

	seenTrackIDs := make([]string, 0, len(remoteTracks))
	for position, rt := range remoteTracks {
		stats.TracksFetched++
		trackID, err := f.upsertTrack(rt, playlist.ID, position, stats)
		if err != nil {
			f.logger.Error("track upsert failed", "playlist", rp.Name, "track", rt.Title, "err", err)
			stats.Errors = append(stats.Errors, fmt.Sprintf("track %s - %s: %v", rt.Artist, rt.Title, err))
			continue
		}
		seenTrackIDs = append(seenTrackIDs, trackID)
	}

	if _, err := f.playlistTracks.MarkMissingFromTidal(playlist.ID, seenTrackIDs); err != nil {
		return err
	}

	return nil
}

// upsertTrack creates or refreshes one track row and its membership in the
// playlist, returning the catalog track id. Metadata updates never overwrite
// download state, the primary file location or download timestamps.
func (f *RemoteFetcher) upsertTrack(rt models.RemoteTrack, playlistID string, position int, stats *FetchStats) (string, error) {
	now := time.Now()

	track, err := f.tracks.GetByTidalID(rt.TidalID)
	switch {
	case errors.Is(err, shared.ErrTrackNotFound):
		track = &models.Track{
			TidalID:         rt.TidalID,
			Title:           rt.Title,
			Artist:          rt.Artist,
			Album:           rt.Album,
			Duration:        rt.Duration,
			TrackNum:        rt.TrackNum,
			VolumeNum:       rt.VolumeNum,
			Explicit:        rt.Explicit,
			ISRC:            rt.ISRC,
			AudioQuality:    rt.AudioQuality,
			NormalizedID:    shared.NormalizeTrackKey(rt.Artist, rt.Title),
			DownloadStatus:  models.NotDownloaded,
			LastSeenInTidal: &now,
		}
		if err := f.tracks.Create(track); err != nil {
			return "", err
		}
		stats.TracksCreated++
	case err != nil:
		return "", err
	default:
		track.Title = rt.Title
		track.Artist = rt.Artist
		track.Album = rt.Album
		track.Duration = rt.Duration
		track.TrackNum = rt.TrackNum
		track.VolumeNum = rt.VolumeNum
		track.Explicit = rt.Explicit
		track.ISRC = rt.ISRC
		track.AudioQuality = rt.AudioQuality
		track.NormalizedID = shared.NormalizeTrackKey(rt.Artist, rt.Title)
		track.LastSeenInTidal = &now
		if err := f.tracks.Update(track); err != nil {
			return "", err
		}
		stats.TracksUpdated++
	}

	pt, err := f.playlistTracks.GetByPlaylistAndTrack(playlistID, track.ID)
	switch {
	case errors.Is(err, shared.ErrAssociationNotFound):
		pt = &models.PlaylistTrack{
			PlaylistID: playlistID,
			TrackID:    track.ID,
			Position:   position,
			SyncStatus: models.TrackUnknown,
			InTidal:    true,
		}
		if err := f.playlistTracks.Create(pt); err != nil {
			return "", err
		}
		stats.AssociationsCreated++
	case err != nil:
		return "", err
	default:
		pt.Position = position
		pt.InTidal = true
		if err := f.playlistTracks.Update(pt); err != nil {
			return "", err
		}
		stats.AssociationsUpdated++
	}

	return track.ID, nil
}

// remoteIsNewer reports whether the remote timestamp is strictly newer than
// the one recorded locally. A missing local timestamp counts as older.
func remoteIsNewer(remote, local *time.Time) bool {
	if remote == nil {
		return false
	}
	if local == nil {
		return true
	}
	return remote.After(*local)
}
