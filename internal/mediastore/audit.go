package mediastore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// RecordAudit persists a recognition outcome row. Audit writes are advisory;
// callers should log failures and continue rather than fail the request.
func (s *Store) RecordAudit(ctx context.Context, entry AuditEntry) error {
	if strings.TrimSpace(entry.RequestID) == "" {
		return fmt.Errorf("audit entry requires a request id")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	var recordID any
	if entry.MediaRecordID > 0 {
		recordID = entry.MediaRecordID
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO recognition_audit
         (request_id, media_record_id, outcome, confidence, low_confidence, signal_kinds, explanation, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.RequestID,
		recordID,
		entry.Outcome,
		entry.Confidence,
		entry.LowConfidence,
		strings.Join(entry.SignalKinds, ","),
		nullableString(entry.Explanation),
		entry.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("record audit: %w", err)
	}
	return nil
}

// RecentAudits returns the newest audit rows, newest first.
func (s *Store) RecentAudits(ctx context.Context, limit int) ([]AuditEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT request_id, COALESCE(media_record_id, 0), outcome, confidence, low_confidence,
                COALESCE(signal_kinds, ''), COALESCE(explanation, ''), created_at
         FROM recognition_audit ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list audits: %w", err)
	}
	defer rows.Close()

	var entries []AuditEntry
	for rows.Next() {
		var entry AuditEntry
		var kinds string
		var created sql.NullString
		if err := rows.Scan(&entry.RequestID, &entry.MediaRecordID, &entry.Outcome, &entry.Confidence,
			&entry.LowConfidence, &kinds, &entry.Explanation, &created); err != nil {
			return nil, err
		}
		if kinds != "" {
			entry.SignalKinds = strings.Split(kinds, ",")
		}
		if ts := parseNullableTime(created); ts != nil {
			entry.CreatedAt = *ts
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
