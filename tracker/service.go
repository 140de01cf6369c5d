// Package tracker is the service orchestrator: it owns the store, drives
// scans through the browser and the extraction pipeline, schedules
// periodic work, and exposes the HTTP and MCP surfaces.
package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/duescan/duescan/browse"
	"github.com/duescan/duescan/idgen"
	"github.com/duescan/duescan/notify"
	"github.com/duescan/duescan/pipeline"
	"github.com/duescan/duescan/store"
)

// PageFetcher retrieves a rendered course page. Satisfied by
// *browse.Manager; tests substitute a stub.
type PageFetcher interface {
	FetchCoursePage(ctx context.Context, courseURL string, creds *browse.Credentials) ([]byte, error)
}

// Service is the tracker orchestrator.
type Service struct {
	store    *store.Store
	sealer   *store.Sealer
	fetcher  PageFetcher
	notifier notify.Notifier
	logger   *slog.Logger
	cfg      *Config
	newID    func() string
	// now is the scan clock, replaceable in tests.
	now func() time.Time
}

// New creates a tracker Service. notifier may be nil when reminders are
// not configured.
func New(st *store.Store, fetcher PageFetcher, notifier notify.Notifier, cfg *Config, logger *slog.Logger) *Service {
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	var sealer *store.Sealer
	if cfg.Secret != "" {
		sealer = store.NewSealer(cfg.Secret)
	}
	return &Service{
		store:    st,
		sealer:   sealer,
		fetcher:  fetcher,
		notifier: notifier,
		logger:   logger,
		cfg:      cfg,
		newID:    idgen.New,
		now:      time.Now,
	}
}

// AddCourse validates and registers a course to track.
func (s *Service) AddCourse(ctx context.Context, name, courseURL, credentialID string) (*store.Course, error) {
	name = strings.TrimSpace(name)
	courseURL = strings.TrimSpace(courseURL)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if err := validateURL(courseURL); err != nil {
		return nil, err
	}
	if credentialID != "" {
		if _, err := s.store.GetCredential(ctx, credentialID); err != nil {
			return nil, fmt.Errorf("%w: unknown credential", ErrInvalidInput)
		}
	}

	c := &store.Course{
		ID:           idgen.Prefixed("crs_", s.newID)(),
		Name:         name,
		URL:          courseURL,
		Enabled:      true,
		CredentialID: credentialID,
	}
	if err := s.store.InsertCourse(ctx, c); err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return nil, ErrDuplicateCourse
		}
		return nil, fmt.Errorf("tracker: insert course: %w", err)
	}
	s.logger.Info("course added", "course", c.ID, "url", courseURL)
	return c, nil
}

// ListCourses returns all tracked courses.
func (s *Service) ListCourses(ctx context.Context) ([]*store.Course, error) {
	return s.store.ListCourses(ctx)
}

// GetCourse returns one course or ErrCourseNotFound.
func (s *Service) GetCourse(ctx context.Context, id string) (*store.Course, error) {
	c, err := s.store.GetCourse(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, ErrCourseNotFound
	}
	return c, nil
}

// DeleteCourse removes a course and its assignments.
func (s *Service) DeleteCourse(ctx context.Context, id string) error {
	if _, err := s.GetCourse(ctx, id); err != nil {
		return err
	}
	return s.store.DeleteCourse(ctx, id)
}

// SaveCredential seals and stores an LMS login.
func (s *Service) SaveCredential(ctx context.Context, label, username, password string) (*store.Credential, error) {
	if s.sealer == nil {
		return nil, fmt.Errorf("%w: no sealing secret configured", ErrInvalidInput)
	}
	if label == "" || username == "" || password == "" {
		return nil, fmt.Errorf("%w: label, username and password are required", ErrInvalidInput)
	}
	c := &store.Credential{
		ID:       idgen.Prefixed("cred_", s.newID)(),
		Label:    label,
		Username: username,
	}
	if err := s.store.SaveCredential(ctx, s.sealer, c, password); err != nil {
		return nil, fmt.Errorf("tracker: save credential: %w", err)
	}
	return c, nil
}

// ListCredentials returns stored credential metadata.
func (s *Service) ListCredentials(ctx context.Context) ([]*store.Credential, error) {
	return s.store.ListCredentials(ctx)
}

// DeleteCredential removes a stored login.
func (s *Service) DeleteCredential(ctx context.Context, id string) error {
	return s.store.DeleteCredential(ctx, id)
}

// ScanResult is the outcome of one course scan.
type ScanResult struct {
	Course      *store.Course         `json:"course"`
	Assignments []pipeline.Assignment `json:"assignments"`
	Stats       pipeline.Stats        `json:"stats"`
}

// ScanCourse fetches the course page, runs the extraction pipeline, and
// persists the results. Failures are recorded against the course and in
// the scan log before being returned.
func (s *Service) ScanCourse(ctx context.Context, courseID string) (*ScanResult, error) {
	course, err := s.GetCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}

	var creds *browse.Credentials
	if course.CredentialID != "" {
		if s.sealer == nil {
			return nil, s.failScan(ctx, course, fmt.Errorf("tracker: course %s needs credentials but no sealing secret is configured", course.ID))
		}
		user, pass, err := s.store.OpenCredential(ctx, s.sealer, course.CredentialID)
		if err != nil {
			return nil, s.failScan(ctx, course, fmt.Errorf("tracker: open credential: %w", err))
		}
		creds = &browse.Credentials{Username: user, Password: pass}
	}

	start := s.now()
	page, err := s.fetcher.FetchCoursePage(ctx, course.URL, creds)
	if err != nil {
		return nil, s.failScan(ctx, course, fmt.Errorf("tracker: fetch course page: %w", err))
	}

	runner := pipeline.New(pipeline.Config{
		Weights:   s.cfg.Scoring.Weights,
		Threshold: s.cfg.Scoring.Threshold,
		Extract:   s.cfg.Extract.options(),
		ScanTime:  start,
		Location:  s.cfg.Location(),
	})
	records, stats, err := runner.Run(ctx, page)
	if err != nil {
		return nil, s.failScan(ctx, course, err)
	}

	for _, rec := range records {
		a := &store.Assignment{
			ID:          idgen.Prefixed("asg_", s.newID)(),
			CourseID:    course.ID,
			Title:       rec.Title,
			RawDue:      rec.RawDue,
			Confidence:  rec.Confidence,
			MatchedText: rec.MatchedText,
			Markdown:    rec.Markdown,
			Link:        rec.Link,
			Tier:        rec.Tier,
		}
		if rec.Due != nil {
			ms := rec.Due.UnixMilli()
			a.DueAt = &ms
		}
		if err := s.store.UpsertAssignment(ctx, a); err != nil {
			return nil, s.failScan(ctx, course, fmt.Errorf("tracker: upsert assignment: %w", err))
		}
	}

	s.logScan(ctx, course.ID, &store.ScanLogEntry{
		Status:        "ok",
		Candidates:    stats.Candidates,
		Verified:      stats.Verified,
		Rejected:      stats.Rejected,
		DateFailures:  stats.DateFailures,
		AvgConfidence: stats.AvgConfidence,
		Tier:          stats.Tier,
		DurationMs:    stats.Elapsed.Milliseconds(),
	})
	if err := s.store.RecordScanSuccess(ctx, course.ID); err != nil {
		s.logger.Warn("record scan success", "course", course.ID, "error", err)
	}

	s.logger.Info("course scanned",
		"course", course.ID,
		"candidates", stats.Candidates,
		"verified", stats.Verified,
		"tier", stats.Tier)

	return &ScanResult{Course: course, Assignments: records, Stats: stats}, nil
}

// ScanAll scans every enabled course, continuing past individual
// failures. Returns the per-course results that succeeded.
func (s *Service) ScanAll(ctx context.Context) ([]*ScanResult, error) {
	courses, err := s.store.ListCourses(ctx)
	if err != nil {
		return nil, err
	}
	var results []*ScanResult
	for _, c := range courses {
		if !c.Enabled {
			continue
		}
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res, err := s.ScanCourse(ctx, c.ID)
		if err != nil {
			s.logger.Warn("scan failed", "course", c.ID, "error", err)
			continue
		}
		results = append(results, res)
	}
	return results, nil
}

// UpcomingDeadlines returns dated assignments due within the window.
func (s *Service) UpcomingDeadlines(ctx context.Context, within time.Duration) ([]*store.Assignment, error) {
	return s.store.UpcomingDue(ctx, within)
}

// Assignments returns a course's stored assignments.
func (s *Service) Assignments(ctx context.Context, courseID string) ([]*store.Assignment, error) {
	if _, err := s.GetCourse(ctx, courseID); err != nil {
		return nil, err
	}
	return s.store.ListAssignments(ctx, courseID)
}

// ScanHistory returns a course's recent scan log.
func (s *Service) ScanHistory(ctx context.Context, courseID string, limit int) ([]*store.ScanLogEntry, error) {
	if _, err := s.GetCourse(ctx, courseID); err != nil {
		return nil, err
	}
	return s.store.RecentScans(ctx, courseID, limit)
}

// failScan records a scan failure in the course row and the scan log,
// then returns the original error.
func (s *Service) failScan(ctx context.Context, course *store.Course, scanErr error) error {
	s.logScan(ctx, course.ID, &store.ScanLogEntry{
		Status:       "error",
		ErrorMessage: scanErr.Error(),
	})
	if err := s.store.RecordScanError(ctx, course.ID, scanErr.Error()); err != nil {
		s.logger.Warn("record scan error", "course", course.ID, "error", err)
	}
	return scanErr
}

func (s *Service) logScan(ctx context.Context, courseID string, e *store.ScanLogEntry) {
	e.ID = idgen.Prefixed("scan_", s.newID)()
	e.CourseID = courseID
	if err := s.store.InsertScanLog(ctx, e); err != nil {
		s.logger.Warn("insert scan log", "course", courseID, "error", err)
	}
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: invalid course URL", ErrInvalidInput)
	}
	return nil
}
