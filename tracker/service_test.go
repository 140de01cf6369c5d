package tracker

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/duescan/duescan/browse"
	"github.com/duescan/duescan/dbopen"
	"github.com/duescan/duescan/store"
	_ "modernc.org/sqlite"
)

const coursePage = `<!DOCTYPE html>
<html><body>
<li class="activity modtype_assign">
  <a href="/mod/assign/view.php?id=101">Essay 1: Research Proposal</a>
  <div>Due: Saturday, 30 August 2025, 11:59 PM</div>
</li>
<li class="activity modtype_assign">
  <a href="/mod/assign/view.php?id=102">Lab Report 2</a>
  <div>Due: Friday, 5 September 2025, 5:00 PM</div>
</li>
</body></html>`

// stubFetcher plays the browser in tests.
type stubFetcher struct {
	page  []byte
	err   error
	creds *browse.Credentials
	urls  []string
}

func (f *stubFetcher) FetchCoursePage(_ context.Context, courseURL string, creds *browse.Credentials) ([]byte, error) {
	f.urls = append(f.urls, courseURL)
	f.creds = creds
	return f.page, f.err
}

func newService(t *testing.T, fetcher PageFetcher) *Service {
	t.Helper()
	db := dbopen.OpenMemory(t, dbopen.WithSchema(store.Schema))
	cfg := &Config{Secret: "test-secret"}
	svc := New(store.NewStore(db), fetcher, nil, cfg, slog.Default())
	svc.now = func() time.Time {
		return time.Date(2025, time.August, 20, 10, 0, 0, 0, time.UTC)
	}
	return svc
}

func TestScanCourse_ConfiguredSelectors(t *testing.T) {
	// WHAT: a course page whose assignments live in markup the built-in
	// container selectors miss, with the selector supplied via config.
	// WHY: per-template selectors are config data; a new LMS template must
	// be reachable without a rebuild.
	page := []byte(`<html><body>
	<div class="task-card"><a href="/assignments/9">Take-home exam</a>
	Due: Friday, 5 September 2025, 5:00 PM</div>
	</body></html>`)
	fetcher := &stubFetcher{page: page}

	db := dbopen.OpenMemory(t, dbopen.WithSchema(store.Schema))
	cfg := &Config{Secret: "test-secret"}
	cfg.Extract.Selectors = []string{"div.task-card"}
	svc := New(store.NewStore(db), fetcher, nil, cfg, slog.Default())
	svc.now = func() time.Time {
		return time.Date(2025, time.August, 20, 10, 0, 0, 0, time.UTC)
	}
	ctx := context.Background()

	course, err := svc.AddCourse(ctx, "Logic", "https://lms.example.edu/c/9", "")
	if err != nil {
		t.Fatalf("AddCourse: %v", err)
	}
	res, err := svc.ScanCourse(ctx, course.ID)
	if err != nil {
		t.Fatalf("ScanCourse: %v", err)
	}
	if len(res.Assignments) != 1 || res.Assignments[0].Title != "Take-home exam" {
		t.Fatalf("got %+v, want the task-card assignment", res.Assignments)
	}
	if res.Stats.Tier != "container" {
		t.Errorf("tier = %q, want %q (configured selector, not a fallback tier)", res.Stats.Tier, "container")
	}
}

func TestScanCourse_MissingSecret(t *testing.T) {
	// WHAT: a restart without the sealing secret while a course still
	// references stored credentials.
	// WHY: the scan must fail with a clear error, not panic on the missing
	// sealer, and the failure must land in the course row.
	db := dbopen.OpenMemory(t, dbopen.WithSchema(store.Schema))
	st := store.NewStore(db)
	fetcher := &stubFetcher{page: []byte(coursePage)}
	ctx := context.Background()

	sealed := New(st, fetcher, nil, &Config{Secret: "test-secret"}, slog.Default())
	cred, err := sealed.SaveCredential(ctx, "moodle", "alice", "hunter2")
	if err != nil {
		t.Fatalf("SaveCredential: %v", err)
	}
	course, err := sealed.AddCourse(ctx, "DB", "https://lms.example.edu/c/1", cred.ID)
	if err != nil {
		t.Fatalf("AddCourse: %v", err)
	}

	unsealed := New(st, fetcher, nil, &Config{}, slog.Default())
	_, err = unsealed.ScanCourse(ctx, course.ID)
	if err == nil || !strings.Contains(err.Error(), "no sealing secret") {
		t.Fatalf("got %v, want missing-secret error", err)
	}

	after, err := unsealed.GetCourse(ctx, course.ID)
	if err != nil {
		t.Fatalf("GetCourse: %v", err)
	}
	if after.FailCount != 1 {
		t.Errorf("fail count = %d, want 1", after.FailCount)
	}
}

func TestAddCourse_Validation(t *testing.T) {
	// WHAT: course registration with bad and duplicate input.
	// WHY: validation errors must map to the sentinel taxonomy the API
	// turns into status codes.
	svc := newService(t, &stubFetcher{})
	ctx := context.Background()

	if _, err := svc.AddCourse(ctx, "", "https://lms.example.edu/c/1", ""); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("empty name: got %v, want ErrInvalidInput", err)
	}
	if _, err := svc.AddCourse(ctx, "DB", "not-a-url", ""); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("bad url: got %v, want ErrInvalidInput", err)
	}

	if _, err := svc.AddCourse(ctx, "DB", "https://lms.example.edu/c/1", ""); err != nil {
		t.Fatalf("AddCourse: %v", err)
	}
	if _, err := svc.AddCourse(ctx, "DB again", "https://lms.example.edu/c/1", ""); !errors.Is(err, ErrDuplicateCourse) {
		t.Errorf("duplicate url: got %v, want ErrDuplicateCourse", err)
	}
}

func TestScanCourse(t *testing.T) {
	// WHAT: a full scan over a stubbed course page.
	// WHY: records must land in the store, the scan log records the run,
	// and the course row flips to ok.
	fetcher := &stubFetcher{page: []byte(coursePage)}
	svc := newService(t, fetcher)
	ctx := context.Background()

	course, err := svc.AddCourse(ctx, "Databases", "https://lms.example.edu/c/1", "")
	if err != nil {
		t.Fatalf("AddCourse: %v", err)
	}

	res, err := svc.ScanCourse(ctx, course.ID)
	if err != nil {
		t.Fatalf("ScanCourse: %v", err)
	}
	if len(res.Assignments) != 2 || res.Stats.Verified != 2 {
		t.Fatalf("got %d assignments, stats %+v", len(res.Assignments), res.Stats)
	}
	if len(fetcher.urls) != 1 || fetcher.urls[0] != course.URL {
		t.Errorf("fetched %v, want course URL", fetcher.urls)
	}

	stored, err := svc.Assignments(ctx, course.ID)
	if err != nil {
		t.Fatalf("Assignments: %v", err)
	}
	if len(stored) != 2 {
		t.Fatalf("stored %d assignments, want 2", len(stored))
	}
	if stored[0].Title != "Essay 1: Research Proposal" || stored[0].DueAt == nil {
		t.Errorf("stored[0] = %+v", stored[0])
	}

	history, err := svc.ScanHistory(ctx, course.ID, 10)
	if err != nil {
		t.Fatalf("ScanHistory: %v", err)
	}
	if len(history) != 1 || history[0].Status != "ok" || history[0].Verified != 2 {
		t.Errorf("history = %+v", history)
	}

	got, _ := svc.GetCourse(ctx, course.ID)
	if got.LastStatus != "ok" || got.FailCount != 0 {
		t.Errorf("course status = %+v", got)
	}
}

func TestScanCourse_RescanUpserts(t *testing.T) {
	// WHAT: scanning the same course twice.
	// WHY: the (course, title) key must keep the table at one row per
	// assignment across scans.
	svc := newService(t, &stubFetcher{page: []byte(coursePage)})
	ctx := context.Background()

	course, err := svc.AddCourse(ctx, "DB", "https://lms.example.edu/c/1", "")
	if err != nil {
		t.Fatalf("AddCourse: %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := svc.ScanCourse(ctx, course.ID); err != nil {
			t.Fatalf("scan %d: %v", i, err)
		}
	}
	stored, _ := svc.Assignments(ctx, course.ID)
	if len(stored) != 2 {
		t.Fatalf("got %d rows after rescan, want 2", len(stored))
	}
}

func TestScanCourse_FetchFailureRecorded(t *testing.T) {
	// WHAT: a scan whose page fetch fails.
	// WHY: the failure must bump fail_count and land in the scan log so
	// repeat offenders get parked.
	svc := newService(t, &stubFetcher{err: browse.ErrTimeout})
	ctx := context.Background()

	course, err := svc.AddCourse(ctx, "DB", "https://lms.example.edu/c/1", "")
	if err != nil {
		t.Fatalf("AddCourse: %v", err)
	}

	if _, err := svc.ScanCourse(ctx, course.ID); !errors.Is(err, browse.ErrTimeout) {
		t.Fatalf("got %v, want ErrTimeout", err)
	}

	got, _ := svc.GetCourse(ctx, course.ID)
	if got.LastStatus != "error" || got.FailCount != 1 {
		t.Errorf("course = %+v, want error status", got)
	}
	history, _ := svc.ScanHistory(ctx, course.ID, 10)
	if len(history) != 1 || history[0].Status != "error" {
		t.Errorf("history = %+v", history)
	}
}

func TestScanCourse_UsesCredential(t *testing.T) {
	// WHAT: a scan of a course bound to a stored credential.
	// WHY: the browser must receive the unsealed login pair.
	fetcher := &stubFetcher{page: []byte(coursePage)}
	svc := newService(t, fetcher)
	ctx := context.Background()

	cred, err := svc.SaveCredential(ctx, "uni", "student42", "pw12345")
	if err != nil {
		t.Fatalf("SaveCredential: %v", err)
	}
	course, err := svc.AddCourse(ctx, "DB", "https://lms.example.edu/c/1", cred.ID)
	if err != nil {
		t.Fatalf("AddCourse: %v", err)
	}

	if _, err := svc.ScanCourse(ctx, course.ID); err != nil {
		t.Fatalf("ScanCourse: %v", err)
	}
	if fetcher.creds == nil || fetcher.creds.Username != "student42" || fetcher.creds.Password != "pw12345" {
		t.Errorf("creds = %+v, want unsealed pair", fetcher.creds)
	}
}

func TestScanAll_ContinuesPastFailures(t *testing.T) {
	// WHAT: ScanAll with one healthy and one failing course.
	// WHY: one broken course must not stop the rest of the sweep.
	fetcher := &perURLFetcher{pages: map[string][]byte{
		"https://lms.example.edu/c/ok": []byte(coursePage),
	}}
	svc := newService(t, fetcher)
	ctx := context.Background()

	if _, err := svc.AddCourse(ctx, "ok", "https://lms.example.edu/c/ok", ""); err != nil {
		t.Fatalf("AddCourse: %v", err)
	}
	if _, err := svc.AddCourse(ctx, "bad", "https://lms.example.edu/c/bad", ""); err != nil {
		t.Fatalf("AddCourse: %v", err)
	}

	results, err := svc.ScanAll(ctx)
	if err != nil {
		t.Fatalf("ScanAll: %v", err)
	}
	if len(results) != 1 || results[0].Course.Name != "ok" {
		t.Fatalf("results = %+v, want the healthy course only", results)
	}
}

type perURLFetcher struct {
	pages map[string][]byte
}

func (f *perURLFetcher) FetchCoursePage(_ context.Context, courseURL string, _ *browse.Credentials) ([]byte, error) {
	page, ok := f.pages[courseURL]
	if !ok {
		return nil, browse.ErrNavigation
	}
	return page, nil
}
