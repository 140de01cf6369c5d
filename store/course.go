package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// InsertCourse adds a course to track.
func (s *Store) InsertCourse(ctx context.Context, c *Course) error {
	now := time.Now().UnixMilli()
	if c.CreatedAt == 0 {
		c.CreatedAt = now
	}
	if c.UpdatedAt == 0 {
		c.UpdatedAt = now
	}
	if c.ScanInterval == 0 {
		c.ScanInterval = 21600000 // 6h
	}
	if c.LastStatus == "" {
		c.LastStatus = "pending"
	}

	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO courses (id, name, url, scan_interval, enabled, credential_id,
		last_scanned_at, last_status, last_error, fail_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.URL, c.ScanInterval, c.Enabled, nullStr(c.CredentialID),
		c.LastScannedAt, c.LastStatus, c.LastError, c.FailCount, c.CreatedAt, c.UpdatedAt,
	)
	return err
}

// GetCourse retrieves a course by ID, nil when absent.
func (s *Store) GetCourse(ctx context.Context, id string) (*Course, error) {
	row := s.DB.QueryRowContext(ctx, courseSelect+` WHERE id = ?`, id)
	return scanCourse(row)
}

// ListCourses returns all tracked courses, newest first.
func (s *Store) ListCourses(ctx context.Context) ([]*Course, error) {
	rows, err := s.DB.QueryContext(ctx, courseSelect+` ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectCourses(rows)
}

// UpdateCourse updates a course's mutable fields.
func (s *Store) UpdateCourse(ctx context.Context, c *Course) error {
	c.UpdatedAt = time.Now().UnixMilli()
	_, err := s.DB.ExecContext(ctx,
		`UPDATE courses SET name=?, url=?, scan_interval=?, enabled=?,
		credential_id=?, updated_at=?
		WHERE id=?`,
		c.Name, c.URL, c.ScanInterval, c.Enabled, nullStr(c.CredentialID),
		c.UpdatedAt, c.ID,
	)
	return err
}

// DeleteCourse removes a course (cascades to assignments and scan_log).
func (s *Store) DeleteCourse(ctx context.Context, id string) error {
	_, err := s.DB.ExecContext(ctx, `DELETE FROM courses WHERE id = ?`, id)
	return err
}

// DueCourses returns enabled courses whose next scan time has passed.
// next scan = last_scanned_at + scan_interval; never-scanned courses are
// always due. Courses that failed maxFailCount times in a row stay parked
// until an operator intervenes.
func (s *Store) DueCourses(ctx context.Context, maxFailCount int) ([]*Course, error) {
	now := time.Now().UnixMilli()
	rows, err := s.DB.QueryContext(ctx, courseSelect+`
		WHERE enabled = 1
		  AND fail_count < ?
		  AND (last_scanned_at IS NULL OR last_scanned_at + scan_interval <= ?)
		ORDER BY last_scanned_at ASC NULLS FIRST`, maxFailCount, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectCourses(rows)
}

// RecordScanSuccess updates a course after a completed scan.
func (s *Store) RecordScanSuccess(ctx context.Context, id string) error {
	now := time.Now().UnixMilli()
	_, err := s.DB.ExecContext(ctx,
		`UPDATE courses SET last_scanned_at=?, last_status='ok',
		last_error='', fail_count=0, updated_at=?
		WHERE id=?`, now, now, id)
	return err
}

// RecordScanError updates a course after a failed scan.
func (s *Store) RecordScanError(ctx context.Context, id, errMsg string) error {
	now := time.Now().UnixMilli()
	_, err := s.DB.ExecContext(ctx,
		`UPDATE courses SET last_scanned_at=?, last_status='error',
		last_error=?, fail_count=fail_count+1, updated_at=?
		WHERE id=?`, now, errMsg, now, id)
	return err
}

const courseSelect = `SELECT id, name, url, scan_interval, enabled, credential_id,
	last_scanned_at, last_status, last_error, fail_count, created_at, updated_at
	FROM courses`

func scanCourse(row *sql.Row) (*Course, error) {
	var c Course
	var enabled int
	var credID sql.NullString
	err := row.Scan(
		&c.ID, &c.Name, &c.URL, &c.ScanInterval, &enabled, &credID,
		&c.LastScannedAt, &c.LastStatus, &c.LastError, &c.FailCount,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan course: %w", err)
	}
	c.Enabled = enabled != 0
	c.CredentialID = credID.String
	return &c, nil
}

func collectCourses(rows *sql.Rows) ([]*Course, error) {
	var courses []*Course
	for rows.Next() {
		var c Course
		var enabled int
		var credID sql.NullString
		err := rows.Scan(
			&c.ID, &c.Name, &c.URL, &c.ScanInterval, &enabled, &credID,
			&c.LastScannedAt, &c.LastStatus, &c.LastError, &c.FailCount,
			&c.CreatedAt, &c.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan course: %w", err)
		}
		c.Enabled = enabled != 0
		c.CredentialID = credID.String
		courses = append(courses, &c)
	}
	return courses, rows.Err()
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}
