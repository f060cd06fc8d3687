// Package repositories implements SQLite persistence for the catalog.
//
// Each repository implements the matching interface from internal/models.
// Writes that represent state transitions (download status, file facts,
// symlink facts) run in their own short transaction so a failure mid-batch
// never leaves a half-written multi-row change.
//
// Key Implementations:
//   - [PlaylistRepository] : mirrored playlists with sync status lookups
//   - [TrackRepository] : tracks with download state and identity finders
//   - [PlaylistTrackRepository] : membership rows carrying primary/symlink facts
//
// Sequence numbers provide stable, human-readable ordering independent of
// UUIDs and creation timestamps. [NextSequence] atomically increments
// per-table counters held in dedicated sequence tables.
package repositories

import (
	"database/sql"
	"fmt"
	"time"
)

// NextSequence atomically increments and returns the next sequence number for the given table.
func NextSequence(db *sql.DB, table string) (int, error) {
	tx, err := db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	sequenceTable := table + "_sequence"

	_, err = tx.Exec(fmt.Sprintf("UPDATE %s SET value = value + 1 WHERE id = 1", sequenceTable))
	if err != nil {
		return 0, fmt.Errorf("failed to increment sequence: %w", err)
	}

	var sequence int
	err = tx.QueryRow(fmt.Sprintf("SELECT value FROM %s WHERE id = 1", sequenceTable)).Scan(&sequence)
	if err != nil {
		return 0, fmt.Errorf("failed to get sequence value: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit sequence transaction: %w", err)
	}

	return sequence, nil
}

// timePtr converts a nullable scan result to a *time.Time.
func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

// boolPtr converts a nullable scan result to a *bool.
func boolPtr(b sql.NullBool) *bool {
	if !b.Valid {
		return nil
	}
	v := b.Bool
	return &v
}

// asNullTime converts a *time.Time to its nullable SQL form.
func asNullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// asNullBool converts a *bool to its nullable SQL form.
func asNullBool(b *bool) sql.NullBool {
	if b == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *b, Valid: true}
}
