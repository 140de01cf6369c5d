package tracker

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/duescan/duescan/guard"
	"github.com/duescan/duescan/idgen"
	"github.com/duescan/duescan/kit"
)

// NewRouter builds the HTTP API. All /api routes sit behind basic auth
// and the guard middleware stack; /health stays open for probes.
func NewRouter(svc *Service, cfg *Config) (http.Handler, error) {
	var passHash []byte
	if cfg.Auth.User != "" {
		h, err := bcrypt.GenerateFromPassword([]byte(cfg.Auth.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		passHash = h
	}

	rl := guard.NewRateLimiter(cfg.RateLimit, "/health")
	// The limiter lives as long as the process, so its bucket GC does too.
	rl.StartGC(make(chan struct{}))

	r := chi.NewRouter()
	r.Use(guard.SecurityHeaders(guard.DefaultHeaders()))
	r.Use(guard.MaxBody(1 << 20))
	r.Use(rl.Middleware)
	r.Use(requestID)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		if passHash != nil {
			r.Use(basicAuth(cfg.Auth.User, passHash))
		}

		r.Route("/api/courses", func(r chi.Router) {
			r.Get("/", func(w http.ResponseWriter, req *http.Request) {
				courses, err := svc.ListCourses(req.Context())
				if err != nil {
					writeError(w, err)
					return
				}
				writeJSON(w, http.StatusOK, courses)
			})
			r.Post("/", func(w http.ResponseWriter, req *http.Request) {
				var in struct {
					Name         string `json:"name"`
					URL          string `json:"url"`
					CredentialID string `json:"credential_id"`
				}
				if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
					writeError(w, ErrInvalidInput)
					return
				}
				course, err := svc.AddCourse(req.Context(), in.Name, in.URL, in.CredentialID)
				if err != nil {
					writeError(w, err)
					return
				}
				writeJSON(w, http.StatusCreated, course)
			})
			r.Get("/{courseID}", func(w http.ResponseWriter, req *http.Request) {
				course, err := svc.GetCourse(req.Context(), chi.URLParam(req, "courseID"))
				if err != nil {
					writeError(w, err)
					return
				}
				writeJSON(w, http.StatusOK, course)
			})
			r.Delete("/{courseID}", func(w http.ResponseWriter, req *http.Request) {
				if err := svc.DeleteCourse(req.Context(), chi.URLParam(req, "courseID")); err != nil {
					writeError(w, err)
					return
				}
				w.WriteHeader(http.StatusNoContent)
			})
			r.Post("/{courseID}/scan", func(w http.ResponseWriter, req *http.Request) {
				res, err := svc.ScanCourse(req.Context(), chi.URLParam(req, "courseID"))
				if err != nil {
					writeError(w, err)
					return
				}
				writeJSON(w, http.StatusOK, res)
			})
			r.Get("/{courseID}/assignments", func(w http.ResponseWriter, req *http.Request) {
				assignments, err := svc.Assignments(req.Context(), chi.URLParam(req, "courseID"))
				if err != nil {
					writeError(w, err)
					return
				}
				writeJSON(w, http.StatusOK, assignments)
			})
			r.Get("/{courseID}/scans", func(w http.ResponseWriter, req *http.Request) {
				limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
				entries, err := svc.ScanHistory(req.Context(), chi.URLParam(req, "courseID"), limit)
				if err != nil {
					writeError(w, err)
					return
				}
				writeJSON(w, http.StatusOK, entries)
			})
		})

		r.Post("/api/scan", func(w http.ResponseWriter, req *http.Request) {
			results, err := svc.ScanAll(req.Context())
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, results)
		})

		r.Get("/api/deadlines", func(w http.ResponseWriter, req *http.Request) {
			days, _ := strconv.Atoi(req.URL.Query().Get("days"))
			if days <= 0 {
				days = 30
			}
			deadlines, err := svc.UpcomingDeadlines(req.Context(), time.Duration(days)*24*time.Hour)
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, deadlines)
		})

		r.Route("/api/credentials", func(r chi.Router) {
			r.Get("/", func(w http.ResponseWriter, req *http.Request) {
				creds, err := svc.ListCredentials(req.Context())
				if err != nil {
					writeError(w, err)
					return
				}
				writeJSON(w, http.StatusOK, creds)
			})
			r.Post("/", func(w http.ResponseWriter, req *http.Request) {
				var in struct {
					Label    string `json:"label"`
					Username string `json:"username"`
					Password string `json:"password"`
				}
				if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
					writeError(w, ErrInvalidInput)
					return
				}
				cred, err := svc.SaveCredential(req.Context(), in.Label, in.Username, in.Password)
				if err != nil {
					writeError(w, err)
					return
				}
				writeJSON(w, http.StatusCreated, cred)
			})
			r.Delete("/{credID}", func(w http.ResponseWriter, req *http.Request) {
				if err := svc.DeleteCredential(req.Context(), chi.URLParam(req, "credID")); err != nil {
					writeError(w, err)
					return
				}
				w.WriteHeader(http.StatusNoContent)
			})
		})
	})

	return r, nil
}

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := kit.WithRequestID(r.Context(), idgen.Prefixed("req_", idgen.New)())
		ctx = kit.WithRemoteAddr(ctx, guard.ExtractIP(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func basicAuth(user string, passHash []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, p, ok := r.BasicAuth()
			if !ok ||
				subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 ||
				bcrypt.CompareHashAndPassword(passHash, []byte(p)) != nil {
				w.Header().Set("WWW-Authenticate", `Basic realm="duescan"`)
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrCourseNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, ErrDuplicateCourse):
		status = http.StatusConflict
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
