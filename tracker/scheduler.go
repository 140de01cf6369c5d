package tracker

import (
	"context"
	"time"

	"github.com/duescan/duescan/notify"
)

// Scheduler drives the two periodic loops: scanning courses whose
// interval has elapsed, and sweeping deadlines for reminders.
type Scheduler struct {
	svc *Service
	cfg SchedulerConfig
}

// NewScheduler creates a Scheduler over a Service.
func NewScheduler(svc *Service) *Scheduler {
	return &Scheduler{svc: svc, cfg: svc.cfg.Scheduler}
}

// Run polls on tickers until ctx is cancelled. Blocks.
func (s *Scheduler) Run(ctx context.Context) {
	scanTick := time.NewTicker(s.cfg.CheckInterval)
	sweepTick := time.NewTicker(s.cfg.SweepInterval)
	defer scanTick.Stop()
	defer sweepTick.Stop()

	// Run both once on start so a fresh deploy does not wait a full
	// interval.
	s.scanDue(ctx)
	s.sweepDeadlines(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-scanTick.C:
			s.scanDue(ctx)
		case <-sweepTick.C:
			s.sweepDeadlines(ctx)
		}
	}
}

func (s *Scheduler) scanDue(ctx context.Context) {
	due, err := s.svc.store.DueCourses(ctx, s.cfg.MaxFailCount)
	if err != nil {
		s.svc.logger.Error("scheduler: due courses", "error", err)
		return
	}
	for _, c := range due {
		if ctx.Err() != nil {
			return
		}
		if _, err := s.svc.ScanCourse(ctx, c.ID); err != nil {
			s.svc.logger.Warn("scheduler: scan failed", "course", c.ID, "error", err)
		}
	}
}

// sweepDeadlines sends reminders for assignments hitting an advance-day
// mark. Each assignment is notified at most once; the notified stamp
// survives re-scans.
func (s *Scheduler) sweepDeadlines(ctx context.Context) {
	if s.svc.notifier == nil {
		return
	}

	horizon := time.Duration(maxDays(s.cfg.AdvanceDays)+1) * 24 * time.Hour
	upcoming, err := s.svc.store.UpcomingDue(ctx, horizon)
	if err != nil {
		s.svc.logger.Error("scheduler: upcoming due", "error", err)
		return
	}

	now := s.svc.now()
	for _, a := range upcoming {
		if a.NotifiedAt != nil || a.DueAt == nil {
			continue
		}
		due := time.UnixMilli(*a.DueAt)
		days := notify.DaysUntil(now, due)
		if !notify.ShouldRemind(days, s.cfg.AdvanceDays) {
			continue
		}

		courseName := a.CourseID
		if c, err := s.svc.store.GetCourse(ctx, a.CourseID); err == nil && c != nil {
			courseName = c.Name
		}
		r := notify.Reminder{
			Course:     courseName,
			Assignment: a.Title,
			DueAt:      due,
			RawDue:     a.RawDue,
			DaysUntil:  days,
		}
		if err := s.svc.notifier.Send(ctx, r.Subject(), r.Body()); err != nil {
			s.svc.logger.Warn("scheduler: reminder failed", "assignment", a.ID, "error", err)
			continue
		}
		if err := s.svc.store.MarkNotified(ctx, a.ID); err != nil {
			s.svc.logger.Warn("scheduler: mark notified", "assignment", a.ID, "error", err)
		}
		s.svc.logger.Info("reminder sent", "assignment", a.ID, "days_until", days)
	}
}

func maxDays(days []int) int {
	max := 0
	for _, d := range days {
		if d > max {
			max = d
		}
	}
	return max
}
