package repositories

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"tidalsync/internal/models"
	"tidalsync/internal/shared"
)

const playlistTrackColumns = `id, playlist_id, track_id, position, is_primary,
	symlink_path, symlink_valid, sync_status, synced_at, in_tidal,
	created_at, updated_at`

// PlaylistTrackRepository implements models.PlaylistTrackRepository on SQLite.
type PlaylistTrackRepository struct {
	db *sql.DB
}

// NewPlaylistTrackRepository creates a new PlaylistTrackRepository with the given database connection
func NewPlaylistTrackRepository(db *sql.DB) *PlaylistTrackRepository {
	return &PlaylistTrackRepository{db: db}
}

// Create inserts a new membership row with a generated ID
func (r *PlaylistTrackRepository) Create(pt *models.PlaylistTrack) error {
	pt.ID = shared.GenerateID()

	now := time.Now()
	pt.CreatedAt = now
	pt.UpdatedAt = now

	if err := pt.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		INSERT INTO playlist_tracks (` + playlistTrackColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.Exec(query,
		pt.ID,
		pt.PlaylistID,
		pt.TrackID,
		pt.Position,
		pt.IsPrimary,
		pt.SymlinkPath,
		asNullBool(pt.SymlinkValid),
		string(pt.SyncStatus),
		asNullTime(pt.SyncedAt),
		pt.InTidal,
		pt.CreatedAt,
		pt.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert playlist track: %w", err)
	}

	return nil
}

// Get retrieves a membership row by ID
func (r *PlaylistTrackRepository) Get(id string) (*models.PlaylistTrack, error) {
	query := `SELECT ` + playlistTrackColumns + ` FROM playlist_tracks WHERE id = ?`
	return r.scanOne(r.db.QueryRow(query, id))
}

// GetByPlaylistAndTrack retrieves the membership row for one playlist-track pair
func (r *PlaylistTrackRepository) GetByPlaylistAndTrack(playlistID, trackID string) (*models.PlaylistTrack, error) {
	query := `SELECT ` + playlistTrackColumns + ` FROM playlist_tracks WHERE playlist_id = ? AND track_id = ?`
	return r.scanOne(r.db.QueryRow(query, playlistID, trackID))
}

// ListByPlaylist retrieves a playlist's memberships ordered by position
func (r *PlaylistTrackRepository) ListByPlaylist(playlistID string) ([]*models.PlaylistTrack, error) {
	query := `SELECT ` + playlistTrackColumns + ` FROM playlist_tracks WHERE playlist_id = ? ORDER BY position ASC`
	return r.list(query, playlistID)
}

// ListByTrack retrieves every membership of one track across all playlists
func (r *PlaylistTrackRepository) ListByTrack(trackID string) ([]*models.PlaylistTrack, error) {
	query := `SELECT ` + playlistTrackColumns + ` FROM playlist_tracks WHERE track_id = ? ORDER BY created_at ASC`
	return r.list(query, trackID)
}

// Update modifies an existing membership row
func (r *PlaylistTrackRepository) Update(pt *models.PlaylistTrack) error {
	if err := pt.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	pt.UpdatedAt = now

	query := `
		UPDATE playlist_tracks
		SET position = ?, is_primary = ?, symlink_path = ?, symlink_valid = ?,
			sync_status = ?, synced_at = ?, in_tidal = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.Exec(query,
		pt.Position,
		pt.IsPrimary,
		pt.SymlinkPath,
		asNullBool(pt.SymlinkValid),
		string(pt.SyncStatus),
		asNullTime(pt.SyncedAt),
		pt.InTidal,
		now,
		pt.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update playlist track: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrAssociationNotFound, pt.ID)
	}

	return nil
}

// MarkMissingFromTidal clears in_tidal on every membership of the playlist
// whose track is not in seenTrackIDs.
func (r *PlaylistTrackRepository) MarkMissingFromTidal(playlistID string, seenTrackIDs []string) (int, error) {
	query := `UPDATE playlist_tracks SET in_tidal = 0, updated_at = ? WHERE playlist_id = ? AND in_tidal = 1`
	args := []any{time.Now(), playlistID}

	if len(seenTrackIDs) > 0 {
		placeholders := strings.Repeat("?, ", len(seenTrackIDs)-1) + "?"
		query += fmt.Sprintf(" AND track_id NOT IN (%s)", placeholders)
		for _, id := range seenTrackIDs {
			args = append(args, id)
		}
	}

	result, err := r.db.Exec(query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to mark missing tracks: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return int(rows), nil
}

// MultiPlaylistTrackIDs returns the ids of tracks appearing in more than one playlist.
func (r *PlaylistTrackRepository) MultiPlaylistTrackIDs() ([]string, error) {
	query := `
		SELECT track_id FROM playlist_tracks
		GROUP BY track_id
		HAVING COUNT(playlist_id) > 1
	`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query multi-playlist tracks: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan track id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return ids, nil
}

func (r *PlaylistTrackRepository) list(query string, args ...any) ([]*models.PlaylistTrack, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query playlist tracks: %w", err)
	}
	defer rows.Close()

	var pts []*models.PlaylistTrack
	for rows.Next() {
		pt, err := scanPlaylistTrack(rows)
		if err != nil {
			return nil, err
		}
		pts = append(pts, pt)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return pts, nil
}

// scanOne scans a single [sql.Row] into a [models.PlaylistTrack]
func (r *PlaylistTrackRepository) scanOne(row *sql.Row) (*models.PlaylistTrack, error) {
	pt, err := scanPlaylistTrack(row)
	if err == sql.ErrNoRows {
		return nil, shared.ErrAssociationNotFound
	}
	if err != nil {
		return nil, err
	}
	return pt, nil
}

func scanPlaylistTrack(row rowScanner) (*models.PlaylistTrack, error) {
	var (
		pt           models.PlaylistTrack
		symlinkPath  sql.NullString
		symlinkValid sql.NullBool
		status       string
		syncedAt     sql.NullTime
	)

	err := row.Scan(
		&pt.ID, &pt.PlaylistID, &pt.TrackID, &pt.Position, &pt.IsPrimary,
		&symlinkPath, &symlinkValid, &status, &syncedAt, &pt.InTidal,
		&pt.CreatedAt, &pt.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan playlist track: %w", err)
	}

	pt.SymlinkPath = symlinkPath.String
	pt.SymlinkValid = boolPtr(symlinkValid)
	pt.SyncStatus = models.TrackSyncStatus(status)
	pt.SyncedAt = timePtr(syncedAt)

	return &pt, nil
}
