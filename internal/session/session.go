// Package session hands out isolated browser contexts, one per running
// scenario attempt.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/v0xg/webscenario/internal/browser"
	"github.com/v0xg/webscenario/internal/failure"
)

var (
	ErrManagerClosed   = errors.New("session manager closed")
	ErrSessionNotFound = errors.New("session not found")
)

// Session is one isolated browser context owned by exactly one scenario.
type Session struct {
	ID        string
	Page      browser.Page
	CreatedAt time.Time

	baseURL *url.URL
}

// Resolve turns a navigation target into an absolute URL. Relative targets
// are resolved against the configured base URL.
func (s *Session) Resolve(target string) (string, error) {
	ref, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", target, err)
	}
	if ref.IsAbs() {
		return ref.String(), nil
	}
	if s.baseURL == nil {
		return "", fmt.Errorf("relative url %q needs a base url", target)
	}
	return s.baseURL.ResolveReference(ref).String(), nil
}

// Manager tracks live sessions on top of one browser driver.
type Manager struct {
	driver  browser.Driver
	baseURL *url.URL
	logger  *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
	closed   bool
}

// NewManager returns a manager that opens contexts through driver. baseURL
// may be empty when every navigation is absolute.
func NewManager(driver browser.Driver, baseURL string, logger *slog.Logger) (*Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		driver:   driver,
		logger:   logger,
		sessions: make(map[string]*Session),
	}
	if baseURL != "" {
		u, err := url.Parse(baseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid base url %q: %w", baseURL, err)
		}
		if !u.IsAbs() {
			return nil, fmt.Errorf("base url %q must be absolute", baseURL)
		}
		m.baseURL = u
	}
	return m, nil
}

// Acquire creates a fresh isolated context. Failures are infrastructure
// errors. The session outlives ctx: it ends with Release or Close.
func (m *Manager) Acquire(ctx context.Context) (*Session, error) {
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return nil, &failure.InfrastructureError{Op: "acquire session", Err: ErrManagerClosed}
	}
	if err := ctx.Err(); err != nil {
		return nil, &failure.InfrastructureError{Op: "acquire session", Err: err}
	}

	page, err := m.driver.NewPage(context.WithoutCancel(ctx))
	if err != nil {
		return nil, &failure.InfrastructureError{Op: "acquire session", Err: err}
	}

	s := &Session{
		ID:        uuid.New().String(),
		Page:      page,
		CreatedAt: time.Now(),
		baseURL:   m.baseURL,
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		_ = page.Close()
		return nil, &failure.InfrastructureError{Op: "acquire session", Err: ErrManagerClosed}
	}
	m.sessions[s.ID] = s

	m.logger.Debug("session acquired", "session", s.ID, "driver", m.driver.Name())
	return s, nil
}

// Release destroys the session's context. It is safe to call on every exit
// path; releasing an unknown session returns ErrSessionNotFound. A session
// whose context fails to close stays tracked and is retried by Close.
func (m *Manager) Release(s *Session) error {
	if s == nil {
		return nil
	}
	m.mu.Lock()
	_, ok := m.sessions[s.ID]
	delete(m.sessions, s.ID)
	m.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}

	if err := s.Page.Close(); err != nil {
		m.mu.Lock()
		if !m.closed {
			m.sessions[s.ID] = s
		}
		m.mu.Unlock()
		return &failure.InfrastructureError{Op: "release session", Err: err}
	}
	m.logger.Debug("session released", "session", s.ID, "lifetime", time.Since(s.CreatedAt))
	return nil
}

// Active returns the number of sessions not yet released.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Close releases every remaining session and shuts the browser down.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	left := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		left = append(left, s)
	}
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	var errs []error
	for _, s := range left {
		m.logger.Warn("releasing leaked session", "session", s.ID)
		if err := s.Page.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := m.driver.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
