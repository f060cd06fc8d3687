package models

import "time"

// RemotePlaylist represents a playlist record as reported by the remote service.
type RemotePlaylist struct {
	TidalID     string
	Name        string
	Description string
	NumTracks   int
	LastUpdated *time.Time
}

// RemoteTrack represents a track record as reported by the remote service.
type RemoteTrack struct {
	TidalID      string
	Title        string
	Artist       string
	Album        string
	Duration     int // seconds
	TrackNum     int
	VolumeNum    int
	Explicit     bool
	ISRC         string
	AudioQuality string
}
