package store

import (
	"context"
	"fmt"
	"time"
)

// InsertScanLog records one scan attempt.
func (s *Store) InsertScanLog(ctx context.Context, e *ScanLogEntry) error {
	if e.ScannedAt == 0 {
		e.ScannedAt = time.Now().UnixMilli()
	}
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO scan_log (id, course_id, status, candidates, verified, rejected,
		date_failures, avg_confidence, tier, error_message, duration_ms, scanned_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.CourseID, e.Status, e.Candidates, e.Verified, e.Rejected,
		e.DateFailures, e.AvgConfidence, e.Tier, e.ErrorMessage, e.DurationMs,
		e.ScannedAt,
	)
	return err
}

// RecentScans returns a course's latest scan attempts, newest first.
func (s *Store) RecentScans(ctx context.Context, courseID string, limit int) ([]*ScanLogEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, course_id, status, candidates, verified, rejected,
		date_failures, avg_confidence, tier, error_message, duration_ms, scanned_at
		FROM scan_log WHERE course_id = ?
		ORDER BY scanned_at DESC LIMIT ?`, courseID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*ScanLogEntry
	for rows.Next() {
		var e ScanLogEntry
		err := rows.Scan(
			&e.ID, &e.CourseID, &e.Status, &e.Candidates, &e.Verified, &e.Rejected,
			&e.DateFailures, &e.AvgConfidence, &e.Tier, &e.ErrorMessage, &e.DurationMs,
			&e.ScannedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan log entry: %w", err)
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}
