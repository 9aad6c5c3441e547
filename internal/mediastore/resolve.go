package mediastore

import (
	"context"
	"fmt"

	"sceneid/internal/textutil"
)

// Resolve maps a (title, year) guess to a stored record without touching any
// external service. Match stages, in order:
//  1. exact title (case-insensitive);
//  2. substring/partial title match;
//  3. normalized title (subtitle suffix and sequel numerals stripped).
//
// When a year is supplied, the first stage yielding an exact-year row wins;
// otherwise the earliest stage's first row is used as a fallback. Returns nil
// without error on a miss. Idempotent against an unchanged store.
func (s *Store) Resolve(ctx context.Context, title string, year int) (*MediaRecord, error) {
	key := textutil.CompareKey(title)
	if key == "" {
		return nil, nil
	}

	var fallback *MediaRecord

	record, yearMatched, err := s.pickByYear(ctx,
		`SELECT `+recordColumns+` FROM media_records WHERE title_key = ? ORDER BY id`, year, key)
	if err != nil {
		return nil, fmt.Errorf("resolve exact: %w", err)
	}
	if record != nil {
		if yearMatched || year <= 0 {
			return record, nil
		}
		fallback = record
	}

	record, yearMatched, err = s.pickByYear(ctx,
		`SELECT `+recordColumns+` FROM media_records WHERE instr(title_key, ?) > 0 OR instr(?, title_key) > 0 ORDER BY id`,
		year, key, key)
	if err != nil {
		return nil, fmt.Errorf("resolve partial: %w", err)
	}
	if record != nil {
		if yearMatched || year <= 0 {
			return record, nil
		}
		if fallback == nil {
			fallback = record
		}
	}

	normalized := textutil.CompareKey(textutil.NormalizeTitle(title))
	if normalized != "" && normalized != key {
		record, yearMatched, err = s.pickByYear(ctx,
			`SELECT `+recordColumns+` FROM media_records WHERE normalized_key = ? ORDER BY id`, year, normalized)
		if err != nil {
			return nil, fmt.Errorf("resolve normalized: %w", err)
		}
		if record != nil {
			if yearMatched || year <= 0 {
				return record, nil
			}
			if fallback == nil {
				fallback = record
			}
		}
	}
	return fallback, nil
}

// pickByYear runs a candidate query and reports whether the chosen row
// matched the requested year exactly. With no exact-year row the first row is
// returned with yearMatched false.
func (s *Store) pickByYear(ctx context.Context, query string, year int, args ...any) (*MediaRecord, bool, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, false, err
	}
	defer rows.Close()

	var first *MediaRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, false, err
		}
		if year > 0 && record.Year == year {
			return record, true, nil
		}
		if first == nil {
			first = record
		}
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}
	return first, false, nil
}
