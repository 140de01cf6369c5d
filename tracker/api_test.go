package tracker

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/duescan/duescan/store"
)

func newAPI(t *testing.T) (*httptest.Server, *Service) {
	t.Helper()
	svc := newService(t, &stubFetcher{page: []byte(coursePage)})
	cfg := svc.cfg
	cfg.Auth.User = "admin"
	cfg.Auth.Password = "s3cret"
	handler, err := NewRouter(svc, cfg)
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv, svc
}

func do(t *testing.T, method, url string, body any, auth bool) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if auth {
		req.SetBasicAuth("admin", "s3cret")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestAPI_RequiresAuth(t *testing.T) {
	// WHAT: an API call without credentials.
	// WHY: everything under /api sits behind basic auth; only /health is
	// open for probes.
	srv, _ := newAPI(t)

	resp := do(t, http.MethodGet, srv.URL+"/api/courses", nil, false)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("unauthenticated: got %d, want 401", resp.StatusCode)
	}

	resp = do(t, http.MethodGet, srv.URL+"/health", nil, false)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health: got %d, want 200", resp.StatusCode)
	}
}

func TestAPI_CourseLifecycle(t *testing.T) {
	// WHAT: add, scan, read, delete a course over HTTP.
	// WHY: the API is a thin shell over the service; the status codes
	// and JSON shapes are its contract.
	srv, _ := newAPI(t)

	resp := do(t, http.MethodPost, srv.URL+"/api/courses", map[string]string{
		"name": "Databases",
		"url":  "https://lms.example.edu/c/1",
	}, true)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: got %d, want 201", resp.StatusCode)
	}
	var course store.Course
	if err := json.NewDecoder(resp.Body).Decode(&course); err != nil {
		t.Fatalf("decode course: %v", err)
	}
	if course.ID == "" || course.Name != "Databases" {
		t.Fatalf("course = %+v", course)
	}

	resp = do(t, http.MethodPost, fmt.Sprintf("%s/api/courses/%s/scan", srv.URL, course.ID), nil, true)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("scan: got %d, want 200", resp.StatusCode)
	}
	var result ScanResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode scan result: %v", err)
	}
	if result.Stats.Verified != 2 {
		t.Errorf("verified = %d, want 2", result.Stats.Verified)
	}

	resp = do(t, http.MethodGet, fmt.Sprintf("%s/api/courses/%s/assignments", srv.URL, course.ID), nil, true)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("assignments: got %d", resp.StatusCode)
	}
	var assignments []store.Assignment
	if err := json.NewDecoder(resp.Body).Decode(&assignments); err != nil {
		t.Fatalf("decode assignments: %v", err)
	}
	if len(assignments) != 2 {
		t.Errorf("got %d assignments, want 2", len(assignments))
	}

	resp = do(t, http.MethodGet, srv.URL+"/api/deadlines?days=60", nil, true)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("deadlines: got %d", resp.StatusCode)
	}

	resp = do(t, http.MethodDelete, srv.URL+"/api/courses/"+course.ID, nil, true)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete: got %d, want 204", resp.StatusCode)
	}
	resp = do(t, http.MethodGet, srv.URL+"/api/courses/"+course.ID, nil, true)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("after delete: got %d, want 404", resp.StatusCode)
	}
}

func TestAPI_ErrorMapping(t *testing.T) {
	// WHAT: validation and conflict errors over HTTP.
	// WHY: sentinel errors map to 400/404/409 so clients can branch
	// without parsing messages.
	srv, _ := newAPI(t)

	resp := do(t, http.MethodPost, srv.URL+"/api/courses", map[string]string{
		"name": "x", "url": "not-a-url",
	}, true)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("invalid url: got %d, want 400", resp.StatusCode)
	}

	for i := 0; i < 2; i++ {
		resp = do(t, http.MethodPost, srv.URL+"/api/courses", map[string]string{
			"name": "x", "url": "https://lms.example.edu/c/dup",
		}, true)
	}
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("duplicate: got %d, want 409", resp.StatusCode)
	}

	resp = do(t, http.MethodPost, srv.URL+"/api/courses/crs_missing/scan", nil, true)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("missing course: got %d, want 404", resp.StatusCode)
	}
}

func TestAPI_Credentials(t *testing.T) {
	// WHAT: credential create and list over HTTP.
	// WHY: the list must expose metadata only, never password material.
	srv, _ := newAPI(t)

	resp := do(t, http.MethodPost, srv.URL+"/api/credentials", map[string]string{
		"label": "uni", "username": "student42", "password": "pw12345",
	}, true)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create credential: got %d", resp.StatusCode)
	}

	resp = do(t, http.MethodGet, srv.URL+"/api/credentials", nil, true)
	var listed []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&listed); err != nil {
		t.Fatalf("decode credentials: %v", err)
	}
	if len(listed) != 1 {
		t.Fatalf("got %d credentials, want 1", len(listed))
	}
	if _, ok := listed[0]["password"]; ok {
		t.Error("password leaked in listing")
	}
	if _, ok := listed[0]["sealed"]; ok {
		t.Error("sealed blob leaked in listing")
	}
}
