package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"tidalsync/internal/models"
	"tidalsync/internal/shared"
)

const trackColumns = `id, sequence, tidal_id, title, artist, album, duration,
	track_num, volume_num, explicit, isrc, audio_quality, normalized_id,
	download_status, download_error, file_path, file_size, file_mtime,
	downloaded_at, last_verified_at, last_seen_in_tidal, created_at, updated_at`

// TrackRepository implements models.TrackRepository on SQLite.
type TrackRepository struct {
	db *sql.DB
}

// NewTrackRepository creates a new TrackRepository with the given database connection
func NewTrackRepository(db *sql.DB) *TrackRepository {
	return &TrackRepository{db: db}
}

// Create inserts a new track into the database with generated ID and sequence
func (r *TrackRepository) Create(track *models.Track) error {
	sequence, err := NextSequence(r.db, "tracks")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	track.ID = shared.GenerateID()
	track.Sequence = sequence
	if track.NormalizedID == "" {
		track.NormalizedID = shared.NormalizeTrackKey(track.Artist, track.Title)
	}

	now := time.Now()
	track.CreatedAt = now
	track.UpdatedAt = now

	if err := track.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		INSERT INTO tracks (` + trackColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		track.ID,
		track.Sequence,
		track.TidalID,
		track.Title,
		track.Artist,
		track.Album,
		track.Duration,
		track.TrackNum,
		track.VolumeNum,
		track.Explicit,
		track.ISRC,
		track.AudioQuality,
		track.NormalizedID,
		string(track.DownloadStatus),
		track.DownloadError,
		track.FilePath,
		track.FileSize,
		asNullTime(track.FileMtime),
		asNullTime(track.DownloadedAt),
		asNullTime(track.LastVerifiedAt),
		asNullTime(track.LastSeenInTidal),
		track.CreatedAt,
		track.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert track: %w", err)
	}

	return nil
}

// Get retrieves a track by ID
func (r *TrackRepository) Get(id string) (*models.Track, error) {
	query := `SELECT ` + trackColumns + ` FROM tracks WHERE id = ?`
	return r.scanOne(r.db.QueryRow(query, id))
}

// GetByTidalID retrieves a track by its remote identifier
func (r *TrackRepository) GetByTidalID(tidalID string) (*models.Track, error) {
	query := `SELECT ` + trackColumns + ` FROM tracks WHERE tidal_id = ?`
	return r.scanOne(r.db.QueryRow(query, tidalID))
}

// GetByNormalizedID retrieves a track by its normalized "artist - title" identity
func (r *TrackRepository) GetByNormalizedID(key string) (*models.Track, error) {
	query := `SELECT ` + trackColumns + ` FROM tracks WHERE normalized_id = ? LIMIT 1`
	return r.scanOne(r.db.QueryRow(query, key))
}

// SearchByNormalizedFragment returns the first track whose normalized identity
// contains the fragment, ordered by sequence for a stable pick.
func (r *TrackRepository) SearchByNormalizedFragment(fragment string) (*models.Track, error) {
	query := `SELECT ` + trackColumns + ` FROM tracks
		WHERE normalized_id LIKE '%' || ? || '%' ORDER BY sequence ASC LIMIT 1`
	return r.scanOne(r.db.QueryRow(query, fragment))
}

// Update modifies an existing track in the database
func (r *TrackRepository) Update(track *models.Track) error {
	if err := track.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	track.UpdatedAt = now

	query := `
		UPDATE tracks
		SET title = ?, artist = ?, album = ?, duration = ?, track_num = ?,
			volume_num = ?, explicit = ?, isrc = ?, audio_quality = ?,
			normalized_id = ?, download_status = ?, download_error = ?,
			file_path = ?, file_size = ?, file_mtime = ?, downloaded_at = ?,
			last_verified_at = ?, last_seen_in_tidal = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.Exec(query,
		track.Title,
		track.Artist,
		track.Album,
		track.Duration,
		track.TrackNum,
		track.VolumeNum,
		track.Explicit,
		track.ISRC,
		track.AudioQuality,
		track.NormalizedID,
		string(track.DownloadStatus),
		track.DownloadError,
		track.FilePath,
		track.FileSize,
		asNullTime(track.FileMtime),
		asNullTime(track.DownloadedAt),
		asNullTime(track.LastVerifiedAt),
		asNullTime(track.LastSeenInTidal),
		now,
		track.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update track: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrTrackNotFound, track.ID)
	}

	return nil
}

// SetDownloadStatus transitions the download state in its own transaction.
// The error text is kept only for the error status. Entering downloaded also
// stamps downloaded_at; leaving it does not touch the timestamp.
func (r *TrackRepository) SetDownloadStatus(id string, status models.DownloadStatus, downloadErr string) error {
	if !status.Valid() {
		return fmt.Errorf("invalid download status %q", status)
	}
	if status != models.DownloadError {
		downloadErr = ""
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	var result sql.Result
	if status == models.Downloaded {
		result, err = tx.Exec(
			`UPDATE tracks SET download_status = ?, download_error = ?, downloaded_at = ?, updated_at = ? WHERE id = ?`,
			string(status), downloadErr, now, now, id,
		)
	} else {
		result, err = tx.Exec(
			`UPDATE tracks SET download_status = ?, download_error = ?, updated_at = ? WHERE id = ?`,
			string(status), downloadErr, now, id,
		)
	}
	if err != nil {
		return fmt.Errorf("failed to update download status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrTrackNotFound, id)
	}

	return tx.Commit()
}

// SetFileInfo records a verified primary copy on disk and marks the track downloaded.
func (r *TrackRepository) SetFileInfo(id, path string, size int64, mtime time.Time) error {
	now := time.Now()

	query := `
		UPDATE tracks
		SET file_path = ?, file_size = ?, file_mtime = ?, download_status = ?,
			download_error = '', last_verified_at = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.Exec(query, path, size, mtime, string(models.Downloaded), now, now, id)
	if err != nil {
		return fmt.Errorf("failed to set file info: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrTrackNotFound, id)
	}

	return nil
}

// ClearFile removes the primary copy record and resets the download state.
func (r *TrackRepository) ClearFile(id string) error {
	now := time.Now()

	query := `
		UPDATE tracks
		SET file_path = '', file_size = 0, file_mtime = NULL,
			download_status = ?, downloaded_at = NULL, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.Exec(query, string(models.NotDownloaded), now, id)
	if err != nil {
		return fmt.Errorf("failed to clear file info: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrTrackNotFound, id)
	}

	return nil
}

// List retrieves all tracks ordered by sequence
func (r *TrackRepository) List() ([]*models.Track, error) {
	query := `SELECT ` + trackColumns + ` FROM tracks ORDER BY sequence ASC`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query tracks: %w", err)
	}
	defer rows.Close()

	var tracks []*models.Track
	for rows.Next() {
		track, err := scanTrack(rows)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, track)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return tracks, nil
}

// scanOne scans a single [sql.Row] into a [models.Track]
func (r *TrackRepository) scanOne(row *sql.Row) (*models.Track, error) {
	track, err := scanTrack(row)
	if err == sql.ErrNoRows {
		return nil, shared.ErrTrackNotFound
	}
	if err != nil {
		return nil, err
	}
	return track, nil
}

// rowScanner is satisfied by both [sql.Row] and [sql.Rows].
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrack(row rowScanner) (*models.Track, error) {
	var (
		track         models.Track
		status        string
		downloadError sql.NullString
		filePath      sql.NullString
		fileMtime     sql.NullTime
		downloadedAt  sql.NullTime
		verifiedAt    sql.NullTime
		seenAt        sql.NullTime
	)

	err := row.Scan(
		&track.ID, &track.Sequence, &track.TidalID, &track.Title, &track.Artist,
		&track.Album, &track.Duration, &track.TrackNum, &track.VolumeNum,
		&track.Explicit, &track.ISRC, &track.AudioQuality, &track.NormalizedID,
		&status, &downloadError, &filePath, &track.FileSize, &fileMtime,
		&downloadedAt, &verifiedAt, &seenAt, &track.CreatedAt, &track.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan track: %w", err)
	}

	track.DownloadStatus = models.DownloadStatus(status)
	track.DownloadError = downloadError.String
	track.FilePath = filePath.String
	track.FileMtime = timePtr(fileMtime)
	track.DownloadedAt = timePtr(downloadedAt)
	track.LastVerifiedAt = timePtr(verifiedAt)
	track.LastSeenInTidal = timePtr(seenAt)

	return &track, nil
}
