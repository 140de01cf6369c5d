package browse

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// Credentials are the LMS login pair. Password arrives already unsealed.
type Credentials struct {
	Username string
	Password string
}

// Login form selector ladders, most specific first. LMS login pages vary
// wildly; the first selector that finds a fillable field wins.
var (
	usernameSelectors = []string{
		`input[name="username"]`, `input[name="user"]`, `input[id*="user"]`,
		`input[name="email"]`, `input[type="email"]`, `input[id*="login"]`,
	}
	passwordSelectors = []string{
		`input[type="password"]`, `input[name="password"]`, `input[id*="pass"]`,
	}
	submitSelectors = []string{
		`button[type="submit"]`, `input[type="submit"]`,
	}
)

// FetchCoursePage navigates to the course URL, logs in when credentials
// are given, follows an "Assignments" link if the page has one, and
// returns the rendered DOM. Errors carry the retrieval taxonomy:
// ErrNavigation, ErrAuth, or ErrTimeout.
func (m *Manager) FetchCoursePage(ctx context.Context, courseURL string, creds *Credentials) ([]byte, error) {
	b := m.Browser()
	if b == nil {
		return nil, fmt.Errorf("%w: browser not started", ErrNavigation)
	}

	page, err := stealth.Page(b)
	if err != nil {
		return nil, fmt.Errorf("%w: create page: %v", ErrNavigation, err)
	}
	defer page.Close()

	if err := m.navigate(ctx, page, courseURL); err != nil {
		return nil, err
	}

	if creds != nil {
		if err := m.login(ctx, page, creds); err != nil {
			return nil, err
		}
	}

	m.followAssignmentsLink(ctx, page)

	html, err := page.Context(ctx).HTML()
	if err != nil {
		return nil, mapNavErr(err, "serialize dom")
	}
	return []byte(html), nil
}

func (m *Manager) navigate(ctx context.Context, page *rod.Page, url string) error {
	navCtx, cancel := context.WithTimeout(ctx, m.cfg.NavTimeout)
	defer cancel()

	if err := page.Context(navCtx).Navigate(url); err != nil {
		return mapNavErr(err, "navigate "+url)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		m.cfg.Logger.Warn("browse: wait load", "url", url, "error", err)
	}
	return nil
}

// login fills the selector ladders and submits. Login is considered failed
// when a password field is still present after the settle wait: still on
// the form means rejected credentials.
func (m *Manager) login(ctx context.Context, page *rod.Page, creds *Credentials) error {
	log := m.cfg.Logger

	filledUser := tryFill(page, usernameSelectors, creds.Username)
	filledPass := tryFill(page, passwordSelectors, creds.Password)
	if !filledUser || !filledPass {
		// No form found: many course pages are already authenticated via
		// session cookies. Not an error.
		log.Debug("browse: no login form found", "user_field", filledUser, "pass_field", filledPass)
		return nil
	}

	if !submit(page) {
		return fmt.Errorf("%w: no submit control", ErrAuth)
	}

	select {
	case <-ctx.Done():
		return mapNavErr(ctx.Err(), "login wait")
	case <-time.After(m.cfg.LoginWait):
	}
	if err := page.Context(ctx).WaitLoad(); err != nil {
		log.Warn("browse: post-login load", "error", err)
	}

	if els, err := page.Elements(`input[type="password"]`); err == nil && len(els) > 0 {
		return fmt.Errorf("%w: still on login form", ErrAuth)
	}
	log.Info("browse: login completed")
	return nil
}

// followAssignmentsLink clicks the course's "Assignments" navigation entry
// if one exists. Best effort: course front pages often list activities
// directly.
func (m *Manager) followAssignmentsLink(ctx context.Context, page *rod.Page) {
	els, err := page.Elements("a")
	if err != nil {
		return
	}
	for _, el := range els {
		text, err := el.Text()
		if err != nil {
			continue
		}
		if !strings.EqualFold(strings.TrimSpace(text), "assignments") {
			continue
		}
		if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
			m.cfg.Logger.Debug("browse: assignments link click", "error", err)
			return
		}
		if err := page.Context(ctx).WaitLoad(); err != nil {
			m.cfg.Logger.Debug("browse: assignments page load", "error", err)
		}
		return
	}
}

func tryFill(page *rod.Page, selectors []string, value string) bool {
	for _, sel := range selectors {
		els, err := page.Elements(sel)
		if err != nil || len(els) == 0 {
			continue
		}
		for _, el := range els {
			if err := el.SelectAllText(); err != nil {
				continue
			}
			if err := el.Input(value); err != nil {
				continue
			}
			return true
		}
	}
	return false
}

func submit(page *rod.Page) bool {
	// Return in the password field first, then an explicit submit control.
	if els, err := page.Elements(`input[type="password"]`); err == nil && len(els) > 0 {
		if err := els[0].Type(input.Enter); err == nil {
			return true
		}
	}
	for _, sel := range submitSelectors {
		els, err := page.Elements(sel)
		if err != nil || len(els) == 0 {
			continue
		}
		if err := els[0].Click(proto.InputMouseButtonLeft, 1); err == nil {
			return true
		}
	}
	return false
}

// mapNavErr folds low-level rod and context errors into the retrieval
// taxonomy.
func mapNavErr(err error, op string) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %s: %v", ErrTimeout, op, err)
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("browse: %s: %w", op, err)
	default:
		return fmt.Errorf("%w: %s: %v", ErrNavigation, op, err)
	}
}
