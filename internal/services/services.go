// Package services defines the collaborator interfaces the reconciliation
// engine calls out to, and the default implementations for Tidal.
//
// # PlaylistSource
//
// [PlaylistSource] supplies raw playlist and track records from the remote
// service. The engine only consumes the records; authentication and transport
// live entirely behind the interface. [TidalClient] implements it over the
// Tidal HTTP API with an oauth2 client-credentials token source and a
// request-rate limiter.
//
// # Downloader
//
// [Downloader] retrieves the bytes for one track to a destination path.
// Any error it returns is a retryable failure recorded on the track; the
// engine never inspects it beyond logging. [ExecDownloader] implements it by
// shelling out to a configured external command.
package services

import (
	"context"

	"tidalsync/internal/models"
)

// PlaylistSource supplies playlist and track records from the remote service.
type PlaylistSource interface {
	// GetPlaylists retrieves all playlists of the authenticated user.
	GetPlaylists(ctx context.Context) ([]models.RemotePlaylist, error)

	// GetPlaylistTracks retrieves a playlist's tracks in playlist order.
	GetPlaylistTracks(ctx context.Context, playlistID string) ([]models.RemoteTrack, error)

	// Name returns the name of the service (e.g. "Tidal")
	Name() string
}

// Downloader retrieves a track's audio to targetPath.
type Downloader interface {
	// DownloadTrack downloads the track with the given remote identifier to
	// targetPath and returns the path actually written.
	DownloadTrack(ctx context.Context, tidalID, targetPath string) (string, error)
}
