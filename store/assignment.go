package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// UpsertAssignment inserts or refreshes one assignment keyed by
// (course_id, title). Re-scans update the due date and scoring fields but
// preserve first_seen_at and the notified marker, so a refreshed row never
// re-triggers its reminders.
func (s *Store) UpsertAssignment(ctx context.Context, a *Assignment) error {
	now := time.Now().UnixMilli()
	if a.FirstSeenAt == 0 {
		a.FirstSeenAt = now
	}
	a.LastSeenAt = now

	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO assignments (id, course_id, title, due_at, raw_due, confidence,
		matched_text, markdown, link, tier, notified_at, first_seen_at, last_seen_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(course_id, title) DO UPDATE SET
			due_at=excluded.due_at,
			raw_due=excluded.raw_due,
			confidence=excluded.confidence,
			matched_text=excluded.matched_text,
			markdown=excluded.markdown,
			link=excluded.link,
			tier=excluded.tier,
			last_seen_at=excluded.last_seen_at`,
		a.ID, a.CourseID, a.Title, a.DueAt, a.RawDue, a.Confidence,
		a.MatchedText, a.Markdown, a.Link, a.Tier, a.NotifiedAt,
		a.FirstSeenAt, a.LastSeenAt,
	)
	return err
}

// ListAssignments returns a course's assignments, soonest due first with
// dateless records last.
func (s *Store) ListAssignments(ctx context.Context, courseID string) ([]*Assignment, error) {
	rows, err := s.DB.QueryContext(ctx, assignmentSelect+`
		WHERE course_id = ?
		ORDER BY due_at ASC NULLS LAST, title ASC`, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAssignments(rows)
}

// UpcomingDue returns assignments across all courses due within the
// window, soonest first. Records without a resolved due date are excluded:
// no timestamp, no reminder.
func (s *Store) UpcomingDue(ctx context.Context, within time.Duration) ([]*Assignment, error) {
	now := time.Now().UnixMilli()
	horizon := now + within.Milliseconds()
	rows, err := s.DB.QueryContext(ctx, assignmentSelect+`
		WHERE due_at IS NOT NULL AND due_at >= ? AND due_at <= ?
		ORDER BY due_at ASC`, now, horizon)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAssignments(rows)
}

// MarkNotified stamps an assignment's reminder time.
func (s *Store) MarkNotified(ctx context.Context, id string) error {
	now := time.Now().UnixMilli()
	_, err := s.DB.ExecContext(ctx,
		`UPDATE assignments SET notified_at=? WHERE id=?`, now, id)
	return err
}

const assignmentSelect = `SELECT id, course_id, title, due_at, raw_due, confidence,
	matched_text, markdown, link, tier, notified_at, first_seen_at, last_seen_at
	FROM assignments`

func collectAssignments(rows *sql.Rows) ([]*Assignment, error) {
	var assignments []*Assignment
	for rows.Next() {
		var a Assignment
		err := rows.Scan(
			&a.ID, &a.CourseID, &a.Title, &a.DueAt, &a.RawDue, &a.Confidence,
			&a.MatchedText, &a.Markdown, &a.Link, &a.Tier, &a.NotifiedAt,
			&a.FirstSeenAt, &a.LastSeenAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan assignment: %w", err)
		}
		assignments = append(assignments, &a)
	}
	return assignments, rows.Err()
}
