package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"tidalsync/internal/models"
	"tidalsync/internal/shared"
)

const playlistColumns = `id, sequence, tidal_id, name, description, num_tracks,
	sync_status, last_updated_tidal, last_synced_filesystem, last_seen_in_tidal,
	created_at, updated_at`

// PlaylistRepository implements models.PlaylistRepository on SQLite.
type PlaylistRepository struct {
	db *sql.DB
}

// NewPlaylistRepository creates a new PlaylistRepository with the given database connection
func NewPlaylistRepository(db *sql.DB) *PlaylistRepository {
	return &PlaylistRepository{db: db}
}

// Create inserts a new playlist into the database with generated ID and sequence
func (r *PlaylistRepository) Create(playlist *models.Playlist) error {
	sequence, err := NextSequence(r.db, "playlists")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	playlist.ID = shared.GenerateID()
	playlist.Sequence = sequence

	now := time.Now()
	playlist.CreatedAt = now
	playlist.UpdatedAt = now

	if err := playlist.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		INSERT INTO playlists (` + playlistColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		playlist.ID,
		playlist.Sequence,
		playlist.TidalID,
		playlist.Name,
		playlist.Description,
		playlist.NumTracks,
		string(playlist.SyncStatus),
		asNullTime(playlist.LastUpdatedTidal),
		asNullTime(playlist.LastSyncedFilesystem),
		asNullTime(playlist.LastSeenInTidal),
		playlist.CreatedAt,
		playlist.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert playlist: %w", err)
	}

	return nil
}

// Get retrieves a playlist by ID
func (r *PlaylistRepository) Get(id string) (*models.Playlist, error) {
	query := `SELECT ` + playlistColumns + ` FROM playlists WHERE id = ?`
	return r.scanOne(r.db.QueryRow(query, id))
}

// GetByTidalID retrieves a playlist by its remote identifier
func (r *PlaylistRepository) GetByTidalID(tidalID string) (*models.Playlist, error) {
	query := `SELECT ` + playlistColumns + ` FROM playlists WHERE tidal_id = ?`
	return r.scanOne(r.db.QueryRow(query, tidalID))
}

// GetByName retrieves a playlist by its display name.
// Names are how playlist directories are matched back to catalog rows.
func (r *PlaylistRepository) GetByName(name string) (*models.Playlist, error) {
	query := `SELECT ` + playlistColumns + ` FROM playlists WHERE name = ? ORDER BY sequence ASC LIMIT 1`
	return r.scanOne(r.db.QueryRow(query, name))
}

// Update modifies an existing playlist in the database
func (r *PlaylistRepository) Update(playlist *models.Playlist) error {
	if err := playlist.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	playlist.UpdatedAt = now

	query := `
		UPDATE playlists
		SET name = ?, description = ?, num_tracks = ?, sync_status = ?,
			last_updated_tidal = ?, last_synced_filesystem = ?,
			last_seen_in_tidal = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.Exec(query,
		playlist.Name,
		playlist.Description,
		playlist.NumTracks,
		string(playlist.SyncStatus),
		asNullTime(playlist.LastUpdatedTidal),
		asNullTime(playlist.LastSyncedFilesystem),
		asNullTime(playlist.LastSeenInTidal),
		now,
		playlist.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update playlist: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, playlist.ID)
	}

	return nil
}

// List retrieves all playlists ordered by sequence
func (r *PlaylistRepository) List() ([]*models.Playlist, error) {
	query := `SELECT ` + playlistColumns + ` FROM playlists ORDER BY sequence ASC`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query playlists: %w", err)
	}
	defer rows.Close()

	var playlists []*models.Playlist
	for rows.Next() {
		playlist, err := scanPlaylist(rows)
		if err != nil {
			return nil, err
		}
		playlists = append(playlists, playlist)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return playlists, nil
}

// MarkUnseenNeedsRemoval flags playlists the most recent fetch did not touch.
func (r *PlaylistRepository) MarkUnseenNeedsRemoval(cutoff time.Time) (int, error) {
	query := `
		UPDATE playlists
		SET sync_status = ?, updated_at = ?
		WHERE (last_seen_in_tidal IS NULL OR last_seen_in_tidal < ?)
			AND sync_status != ?
	`

	result, err := r.db.Exec(query,
		string(models.PlaylistNeedsRemoval),
		time.Now(),
		cutoff,
		string(models.PlaylistNeedsRemoval),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to mark removed playlists: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return int(rows), nil
}

// scanOne scans a single [sql.Row] into a [models.Playlist]
func (r *PlaylistRepository) scanOne(row *sql.Row) (*models.Playlist, error) {
	playlist, err := scanPlaylist(row)
	if err == sql.ErrNoRows {
		return nil, shared.ErrPlaylistNotFound
	}
	if err != nil {
		return nil, err
	}
	return playlist, nil
}

func scanPlaylist(row rowScanner) (*models.Playlist, error) {
	var (
		playlist    models.Playlist
		status      string
		lastUpdated sql.NullTime
		lastSynced  sql.NullTime
		lastSeen    sql.NullTime
	)

	err := row.Scan(
		&playlist.ID, &playlist.Sequence, &playlist.TidalID, &playlist.Name,
		&playlist.Description, &playlist.NumTracks, &status, &lastUpdated,
		&lastSynced, &lastSeen, &playlist.CreatedAt, &playlist.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan playlist: %w", err)
	}

	playlist.SyncStatus = models.PlaylistSyncStatus(status)
	playlist.LastUpdatedTidal = timePtr(lastUpdated)
	playlist.LastSyncedFilesystem = timePtr(lastSynced)
	playlist.LastSeenInTidal = timePtr(lastSeen)

	return &playlist, nil
}
