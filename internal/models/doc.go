// Package models defines domain entities and persistence interfaces for the tidalsync catalog.
//
// The package contains two categories of types:
//
// 1. Data Transfer Objects (DTOs): Lightweight structs representing remote service data
//   - [RemotePlaylist] : Playlist metadata as reported by Tidal
//   - [RemoteTrack] : Track metadata as reported by Tidal
//
// 2. Persistent Entities: Catalog-backed rows the reconciliation engine reads and writes
//   - [Playlist] : A mirrored playlist with its sync status
//   - [Track] : A track with download state and the location of its primary copy
//   - [PlaylistTrack] : Association row linking a track into a playlist, holding the
//     primary/symlink facts for that membership
//
// Repository interfaces ([TrackRepository], [PlaylistRepository],
// [PlaylistTrackRepository]) describe the catalog operations the engines
// depend on; internal/repositories provides the SQLite implementations.
// Engines never hold a raw database connection.
package models
