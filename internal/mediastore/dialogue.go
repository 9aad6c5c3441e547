package mediastore

import (
	"context"
	"fmt"
	"strings"
)

// SearchDialogue looks for a spoken phrase in the subtitle corpus, exact
// matches first, then substring matches, joined back to stored titles. The
// corpus itself is populated out of band; this core only reads it.
func (s *Store) SearchDialogue(ctx context.Context, phrase string, limit int) ([]DialogueMatch, error) {
	phrase = strings.TrimSpace(phrase)
	if phrase == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}

	exact, err := s.queryDialogue(ctx,
		`SELECT l.media_record_id, r.title, r.year, r.tmdb_id, l.line
         FROM subtitle_lines l JOIN media_records r ON r.id = l.media_record_id
         WHERE l.line = ? COLLATE NOCASE LIMIT ?`,
		true, phrase, limit)
	if err != nil {
		return nil, err
	}
	if len(exact) >= limit {
		return exact, nil
	}

	partial, err := s.queryDialogue(ctx,
		`SELECT l.media_record_id, r.title, r.year, r.tmdb_id, l.line
         FROM subtitle_lines l JOIN media_records r ON r.id = l.media_record_id
         WHERE l.line LIKE ? AND l.line != ? COLLATE NOCASE LIMIT ?`,
		false, "%"+phrase+"%", phrase, limit-len(exact))
	if err != nil {
		return nil, err
	}
	return append(exact, partial...), nil
}

// AddSubtitleLines seeds corpus lines for a stored record. Used by import
// tooling and tests, not by the recognition cycle.
func (s *Store) AddSubtitleLines(ctx context.Context, recordID int64, lines []string) error {
	if len(lines) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin subtitle tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO subtitle_lines (media_record_id, line) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare subtitle insert: %w", err)
	}
	defer stmt.Close()

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if _, err := stmt.ExecContext(ctx, recordID, line); err != nil {
			return fmt.Errorf("insert subtitle line: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit subtitle lines: %w", err)
	}
	return nil
}

func (s *Store) queryDialogue(ctx context.Context, query string, exact bool, args ...any) ([]DialogueMatch, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search dialogue: %w", err)
	}
	defer rows.Close()

	var matches []DialogueMatch
	for rows.Next() {
		match := DialogueMatch{Exact: exact}
		if err := rows.Scan(&match.RecordID, &match.Title, &match.Year, &match.TMDBID, &match.Line); err != nil {
			return nil, err
		}
		matches = append(matches, match)
	}
	return matches, rows.Err()
}
