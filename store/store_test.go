package store_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/duescan/duescan/dbopen"
	"github.com/duescan/duescan/store"
	_ "modernc.org/sqlite"
)

func newStore(t *testing.T) *store.Store {
	t.Helper()
	db := dbopen.OpenMemory(t, dbopen.WithSchema(store.Schema))
	return store.NewStore(db)
}

func ms(t time.Time) *int64 {
	v := t.UnixMilli()
	return &v
}

func TestCourseCRUD(t *testing.T) {
	// WHAT: insert, get, update, delete a course.
	// WHY: the API layer is a thin shell over these operations.
	s := newStore(t)
	ctx := context.Background()

	c := &store.Course{ID: "crs_1", Name: "Databases", URL: "https://lms.example.edu/course/42", Enabled: true}
	if err := s.InsertCourse(ctx, c); err != nil {
		t.Fatalf("InsertCourse: %v", err)
	}

	got, err := s.GetCourse(ctx, "crs_1")
	if err != nil {
		t.Fatalf("GetCourse: %v", err)
	}
	if got == nil || got.Name != "Databases" || !got.Enabled {
		t.Fatalf("got %+v, want inserted course", got)
	}
	if got.ScanInterval == 0 || got.LastStatus != "pending" {
		t.Errorf("defaults not applied: %+v", got)
	}

	got.Name = "Databases II"
	if err := s.UpdateCourse(ctx, got); err != nil {
		t.Fatalf("UpdateCourse: %v", err)
	}
	got, _ = s.GetCourse(ctx, "crs_1")
	if got.Name != "Databases II" {
		t.Errorf("name = %q after update", got.Name)
	}

	if err := s.DeleteCourse(ctx, "crs_1"); err != nil {
		t.Fatalf("DeleteCourse: %v", err)
	}
	if got, _ := s.GetCourse(ctx, "crs_1"); got != nil {
		t.Errorf("course still present after delete: %+v", got)
	}
}

func TestDueCourses(t *testing.T) {
	// WHAT: the scheduling query over fresh, stale, disabled, and parked
	// courses.
	// WHY: the scheduler scans exactly what this query returns.
	s := newStore(t)
	ctx := context.Background()

	never := &store.Course{ID: "crs_never", Name: "a", URL: "u1", Enabled: true}
	stale := &store.Course{ID: "crs_stale", Name: "b", URL: "u2", Enabled: true,
		ScanInterval: 1000, LastScannedAt: ms(time.Now().Add(-time.Hour))}
	fresh := &store.Course{ID: "crs_fresh", Name: "c", URL: "u3", Enabled: true,
		ScanInterval: 86400000, LastScannedAt: ms(time.Now())}
	disabled := &store.Course{ID: "crs_off", Name: "d", URL: "u4", Enabled: false}
	parked := &store.Course{ID: "crs_parked", Name: "e", URL: "u5", Enabled: true, FailCount: 5}

	for _, c := range []*store.Course{never, stale, fresh, disabled, parked} {
		if err := s.InsertCourse(ctx, c); err != nil {
			t.Fatalf("InsertCourse %s: %v", c.ID, err)
		}
	}

	due, err := s.DueCourses(ctx, 5)
	if err != nil {
		t.Fatalf("DueCourses: %v", err)
	}
	ids := map[string]bool{}
	for _, c := range due {
		ids[c.ID] = true
	}
	if len(due) != 2 || !ids["crs_never"] || !ids["crs_stale"] {
		t.Errorf("due = %v, want never+stale only", ids)
	}
}

func TestScanStatusRecording(t *testing.T) {
	// WHAT: success resets fail_count, errors accumulate it.
	// WHY: repeat failures park a course instead of hammering the LMS.
	s := newStore(t)
	ctx := context.Background()

	c := &store.Course{ID: "crs_1", Name: "x", URL: "u", Enabled: true}
	if err := s.InsertCourse(ctx, c); err != nil {
		t.Fatalf("InsertCourse: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := s.RecordScanError(ctx, "crs_1", "timeout"); err != nil {
			t.Fatalf("RecordScanError: %v", err)
		}
	}
	got, _ := s.GetCourse(ctx, "crs_1")
	if got.FailCount != 3 || got.LastStatus != "error" || got.LastError != "timeout" {
		t.Errorf("after errors: %+v", got)
	}

	if err := s.RecordScanSuccess(ctx, "crs_1"); err != nil {
		t.Fatalf("RecordScanSuccess: %v", err)
	}
	got, _ = s.GetCourse(ctx, "crs_1")
	if got.FailCount != 0 || got.LastStatus != "ok" || got.LastError != "" {
		t.Errorf("after success: %+v", got)
	}
}

func TestUpsertAssignment_PreservesNotified(t *testing.T) {
	// WHAT: a re-scan upserting an assignment that was already notified.
	// WHY: refreshed rows must keep first_seen_at and notified_at, or
	// every scan would re-send its reminders.
	s := newStore(t)
	ctx := context.Background()

	if err := s.InsertCourse(ctx, &store.Course{ID: "crs_1", Name: "x", URL: "u", Enabled: true}); err != nil {
		t.Fatalf("InsertCourse: %v", err)
	}

	due := ms(time.Now().Add(48 * time.Hour))
	a := &store.Assignment{ID: "asg_1", CourseID: "crs_1", Title: "Essay 1", DueAt: due, Confidence: 0.8}
	if err := s.UpsertAssignment(ctx, a); err != nil {
		t.Fatalf("UpsertAssignment: %v", err)
	}
	if err := s.MarkNotified(ctx, "asg_1"); err != nil {
		t.Fatalf("MarkNotified: %v", err)
	}
	firstSeen := a.FirstSeenAt

	// Same course+title, new ID, shifted due date.
	later := ms(time.Now().Add(72 * time.Hour))
	b := &store.Assignment{ID: "asg_2", CourseID: "crs_1", Title: "Essay 1", DueAt: later, Confidence: 0.9}
	if err := s.UpsertAssignment(ctx, b); err != nil {
		t.Fatalf("UpsertAssignment upsert: %v", err)
	}

	list, err := s.ListAssignments(ctx, "crs_1")
	if err != nil {
		t.Fatalf("ListAssignments: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("got %d rows, want 1", len(list))
	}
	got := list[0]
	if got.ID != "asg_1" {
		t.Errorf("id = %q, want original row kept", got.ID)
	}
	if got.DueAt == nil || *got.DueAt != *later {
		t.Errorf("due_at = %v, want refreshed to %v", got.DueAt, *later)
	}
	if got.NotifiedAt == nil {
		t.Error("notified_at lost on upsert")
	}
	if got.FirstSeenAt != firstSeen {
		t.Errorf("first_seen_at = %d, want %d", got.FirstSeenAt, firstSeen)
	}
	if got.Confidence != 0.9 {
		t.Errorf("confidence = %v, want refreshed", got.Confidence)
	}
}

func TestUpcomingDue(t *testing.T) {
	// WHAT: the reminder window query.
	// WHY: only dated assignments inside the window qualify; past and
	// dateless records never trigger reminders.
	s := newStore(t)
	ctx := context.Background()

	if err := s.InsertCourse(ctx, &store.Course{ID: "crs_1", Name: "x", URL: "u", Enabled: true}); err != nil {
		t.Fatalf("InsertCourse: %v", err)
	}

	now := time.Now()
	rows := []*store.Assignment{
		{ID: "asg_soon", CourseID: "crs_1", Title: "soon", DueAt: ms(now.Add(24 * time.Hour))},
		{ID: "asg_far", CourseID: "crs_1", Title: "far", DueAt: ms(now.Add(30 * 24 * time.Hour))},
		{ID: "asg_past", CourseID: "crs_1", Title: "past", DueAt: ms(now.Add(-24 * time.Hour))},
		{ID: "asg_nodate", CourseID: "crs_1", Title: "nodate"},
	}
	for _, a := range rows {
		if err := s.UpsertAssignment(ctx, a); err != nil {
			t.Fatalf("UpsertAssignment %s: %v", a.ID, err)
		}
	}

	due, err := s.UpcomingDue(ctx, 7*24*time.Hour)
	if err != nil {
		t.Fatalf("UpcomingDue: %v", err)
	}
	if len(due) != 1 || due[0].ID != "asg_soon" {
		t.Fatalf("got %+v, want asg_soon only", due)
	}
}

func TestScanLog(t *testing.T) {
	// WHAT: scan attempts recorded and listed newest first.
	// WHY: the dashboard's scan history reads straight from here.
	s := newStore(t)
	ctx := context.Background()

	if err := s.InsertCourse(ctx, &store.Course{ID: "crs_1", Name: "x", URL: "u", Enabled: true}); err != nil {
		t.Fatalf("InsertCourse: %v", err)
	}
	for i, id := range []string{"scan_1", "scan_2"} {
		e := &store.ScanLogEntry{
			ID: id, CourseID: "crs_1", Status: "ok",
			Candidates: 3, Verified: 2, Rejected: 1,
			ScannedAt: time.Now().UnixMilli() + int64(i),
		}
		if err := s.InsertScanLog(ctx, e); err != nil {
			t.Fatalf("InsertScanLog: %v", err)
		}
	}

	entries, err := s.RecentScans(ctx, "crs_1", 10)
	if err != nil {
		t.Fatalf("RecentScans: %v", err)
	}
	if len(entries) != 2 || entries[0].ID != "scan_2" {
		t.Fatalf("got %+v, want scan_2 first", entries)
	}
}

func TestCredentialSealing(t *testing.T) {
	// WHAT: save, list, and open a sealed credential.
	// WHY: the plaintext password must survive the round trip but never
	// appear in the stored blob.
	s := newStore(t)
	ctx := context.Background()
	sealer := store.NewSealer("service-secret")

	c := &store.Credential{ID: "cred_1", Label: "uni-moodle", Username: "student42"}
	if err := s.SaveCredential(ctx, sealer, c, "hunter2hunter2"); err != nil {
		t.Fatalf("SaveCredential: %v", err)
	}

	var sealed []byte
	if err := s.DB.QueryRow(`SELECT sealed FROM credentials WHERE id = 'cred_1'`).Scan(&sealed); err != nil {
		t.Fatalf("read sealed: %v", err)
	}
	if bytes.Contains(sealed, []byte("hunter2")) {
		t.Error("plaintext password stored")
	}

	user, pass, err := s.OpenCredential(ctx, sealer, "cred_1")
	if err != nil {
		t.Fatalf("OpenCredential: %v", err)
	}
	if user != "student42" || pass != "hunter2hunter2" {
		t.Errorf("got %q/%q, want stored pair", user, pass)
	}

	// A different secret must not open the box.
	if _, _, err := s.OpenCredential(ctx, store.NewSealer("wrong"), "cred_1"); err == nil {
		t.Error("open with wrong secret succeeded")
	}

	if _, _, err := s.OpenCredential(ctx, sealer, "cred_missing"); !errors.Is(err, store.ErrCredentialNotFound) {
		t.Errorf("missing credential: got %v, want ErrCredentialNotFound", err)
	}
}
