package mediastore

import (
	"context"
	"fmt"
	"time"
)

// UpdateCast replaces the cached cast artifact and its freshness timestamp.
func (s *Store) UpdateCast(ctx context.Context, recordID int64, cast []string) error {
	return s.updateArtifact(ctx, recordID, "cast_json", "cast_refreshed_at", cast)
}

// UpdateSimilar replaces the cached similar-title artifact.
func (s *Store) UpdateSimilar(ctx context.Context, recordID int64, titles []string) error {
	return s.updateArtifact(ctx, recordID, "similar_json", "similar_refreshed_at", titles)
}

// UpdateAvailability replaces the cached availability artifact.
func (s *Store) UpdateAvailability(ctx context.Context, recordID int64, services []string) error {
	return s.updateArtifact(ctx, recordID, "availability_json", "availability_refreshed_at", services)
}

func (s *Store) updateArtifact(ctx context.Context, recordID int64, valueColumn, refreshColumn string, values []string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	// Column names come from the fixed callers above, never from input.
	query := fmt.Sprintf(
		`UPDATE media_records SET %s = ?, %s = ?, updated_at = ? WHERE id = ?`,
		valueColumn, refreshColumn,
	)
	res, err := s.db.ExecContext(ctx, query, encodeStringList(values), now, now, recordID)
	if err != nil {
		return fmt.Errorf("update %s: %w", valueColumn, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("media record %d not found", recordID)
	}
	return nil
}
