package history

import (
	"context"
	"fmt"
	"time"

	"github.com/nerrad567/stanmore-bridge/internal/infrastructure/database"
)

const (
	defaultRecentLimit = 50
	maxRecentLimit     = 200

	// recordTimeout bounds the INSERT issued by Record, which runs on the
	// publish path without a caller context.
	recordTimeout = 5 * time.Second
)

// Entry is a single recorded field value.
type Entry struct {
	ID        int64     `json:"id"`
	Field     string    `json:"field"`
	Value     string    `json:"value"`
	CreatedAt time.Time `json:"created_at"`
}

// Store persists field changes in the field_history table.
type Store struct {
	db *database.DB
}

// NewStore creates a history store over an open database.
// The field_history table must already exist (see migrations).
func NewStore(db *database.DB) *Store {
	return &Store{db: db}
}

// Record inserts a new history entry for a field.
//
// Parameters:
//   - field: Info field name (e.g. "volume", "eq_preset")
//   - value: Published value, as the string sent over MQTT
//
// Returns:
//   - error: nil on success, otherwise the underlying database error
func (s *Store) Record(field, value string) error {
	if field == "" {
		return ErrEmptyField
	}

	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO field_history (field, value) VALUES (?, ?)",
		field,
		value,
	)
	if err != nil {
		return fmt.Errorf("inserting field history: %w", err)
	}

	return nil
}

// Recent returns the most recent entries for a field, newest first.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - field: Info field name to query
//   - limit: Maximum entries to return (default 50, max 200)
//
// Returns:
//   - []Entry: History entries ordered by created_at DESC
//   - error: nil on success, otherwise the underlying query error
func (s *Store) Recent(ctx context.Context, field string, limit int) ([]Entry, error) {
	if field == "" {
		return nil, ErrEmptyField
	}
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	if limit > maxRecentLimit {
		limit = maxRecentLimit
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, field, value, created_at
		 FROM field_history
		 WHERE field = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		field,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying field history: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0, limit)
	for rows.Next() {
		var entry Entry
		var createdAt string

		if err := rows.Scan(&entry.ID, &entry.Field, &entry.Value, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning field history: %w", err)
		}

		timestamp, err := parseTimestamp(createdAt)
		if err != nil {
			return nil, err
		}
		entry.CreatedAt = timestamp

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating field history: %w", err)
	}

	return entries, nil
}

// Fields returns the distinct field names present in the history table.
func (s *Store) Fields(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT DISTINCT field FROM field_history ORDER BY field",
	)
	if err != nil {
		return nil, fmt.Errorf("querying history fields: %w", err)
	}
	defer rows.Close()

	var fields []string
	for rows.Next() {
		var field string
		if err := rows.Scan(&field); err != nil {
			return nil, fmt.Errorf("scanning history field: %w", err)
		}
		fields = append(fields, field)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating history fields: %w", err)
	}

	return fields, nil
}

// Prune deletes entries older than the given duration.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - olderThan: Duration to retain (entries older than now-olderThan are deleted)
//
// Returns:
//   - int64: Number of rows deleted
//   - error: nil on success, otherwise the underlying database error
func (s *Store) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, ErrInvalidRetention
	}

	cutoff := time.Now().UTC().Add(-olderThan).Format(time.RFC3339)
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM field_history WHERE created_at < ?",
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("deleting field history: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}

	return rowsAffected, nil
}

// parseTimestamp parses a created_at value stored in SQLite.
func parseTimestamp(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("created_at is empty")
	}

	timestamp, err := time.Parse(time.RFC3339, value)
	if err == nil {
		return timestamp, nil
	}

	fallback, fallbackErr := time.Parse("2006-01-02T15:04:05Z", value)
	if fallbackErr == nil {
		return fallback, nil
	}

	return time.Time{}, fmt.Errorf("parsing created_at: %w", err)
}
