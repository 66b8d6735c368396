package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/bleu-ims/ims-gateway/pkg/auth"
	pkgerrors "github.com/bleu-ims/ims-gateway/pkg/errors"
	"github.com/bleu-ims/ims-gateway/pkg/logger"
	"github.com/bleu-ims/ims-gateway/pkg/metrics"
	"github.com/google/uuid"
)

const (
	defaultTTL     = 12 * time.Hour
	cleanupTimeout = 5 * time.Second
	bearerPrefix   = "bearer-"
)

// Manager establishes, resolves and tears down sessions. Live sessions are
// kept in process so that logout listeners run for every holder of a session.
type Manager struct {
	store   Store
	ttl     time.Duration
	logg    *logger.Logger
	metrics *metrics.Gateway
	now     func() time.Time

	mu        sync.Mutex
	live      map[string]*Session
	listeners []Listener
}

type Option func(*Manager)

func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

func WithLogger(logg *logger.Logger) Option {
	return func(m *Manager) {
		if logg != nil {
			m.logg = logg
		}
	}
}

func WithMetrics(g *metrics.Gateway) Option {
	return func(m *Manager) {
		m.metrics = g
	}
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

func NewManager(store Store, opts ...Option) *Manager {
	if store == nil {
		store = NewMemoryStore()
	}
	m := &Manager{
		store: store,
		ttl:   defaultTTL,
		logg:  logger.Nop(),
		now:   time.Now,
		live:  map[string]*Session{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// OnLogout registers fn for the logout of every session.
func (m *Manager) OnLogout(fn Listener) {
	if fn == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// Establish starts a session for a token issued by the login flow.
func (m *Manager) Establish(ctx context.Context, token, username string) (*Session, error) {
	return m.establish(ctx, uuid.NewString(), token, username)
}

// ResolveBearer returns the session bound to a raw bearer token, creating it
// on first use. The id is derived from the token so repeated calls share views.
func (m *Manager) ResolveBearer(ctx context.Context, token string) (*Session, error) {
	token = strings.TrimSpace(token)
	sum := sha256.Sum256([]byte(token))
	id := bearerPrefix + hex.EncodeToString(sum[:16])
	if s, err := m.Resolve(ctx, id); err == nil {
		return s, nil
	}
	return m.establish(ctx, id, token, "")
}

func (m *Manager) establish(ctx context.Context, id, token, username string) (*Session, error) {
	token = strings.TrimSpace(token)
	info, err := auth.DecodeToken(token)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthenticated, err, "invalid token")
	}
	now := m.now()
	if info.Expired(now) {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthenticated, "token expired")
	}
	username = strings.TrimSpace(username)
	if username == "" {
		username = info.Subject
	}

	rec := Record{
		ID:        id,
		Token:     token,
		Username:  username,
		Role:      info.Role,
		Subject:   info.Subject,
		ExpiresAt: info.ExpiresAt,
		CreatedAt: now,
	}
	if err := m.store.Save(ctx, rec, m.ttlFor(rec)); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to store session")
	}

	s := m.attach(rec)
	m.logg.Info(m.logg.WithUsername(m.logg.WithSessionID(ctx, id), username), "session established")
	return s, nil
}

// Resolve returns the live session for id, loading it from the store when
// this process has not seen it yet.
func (m *Manager) Resolve(ctx context.Context, id string) (*Session, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthenticated, "session id is required")
	}

	m.mu.Lock()
	s, ok := m.live[id]
	m.mu.Unlock()

	if !ok {
		rec, err := m.store.Load(ctx, id)
		if errors.Is(err, ErrNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthenticated, "session not found")
		}
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to load session")
		}
		s = m.attach(rec)
	}

	if !s.Active() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthenticated, "session ended")
	}
	rec := s.Record()
	if !rec.ExpiresAt.IsZero() && !m.now().Before(rec.ExpiresAt) {
		s.Logout(ReasonExpired)
		return nil, pkgerrors.New(pkgerrors.CodeUnauthenticated, "token expired")
	}
	if err := m.store.Touch(ctx, id, m.ttlFor(rec)); err != nil {
		if errors.Is(err, ErrNotFound) {
			s.Logout(ReasonExpired)
			return nil, pkgerrors.New(pkgerrors.CodeUnauthenticated, "session not found")
		}
		m.logg.Warn(m.logg.WithSessionID(ctx, id), "failed to refresh session ttl: "+err.Error())
	}
	return s, nil
}

// Logout ends the session. Unknown ids are not an error.
func (m *Manager) Logout(ctx context.Context, id, reason string) error {
	if reason == "" {
		reason = ReasonExplicit
	}
	m.mu.Lock()
	s, ok := m.live[id]
	m.mu.Unlock()
	if ok {
		s.Logout(reason)
		return nil
	}
	if err := m.store.Delete(ctx, id); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to delete session")
	}
	return nil
}

// Live reports how many sessions this process holds.
func (m *Manager) Live() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.live)
}

func (m *Manager) attach(rec Record) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.live[rec.ID]; ok && existing.Active() {
		return existing
	}
	s := newSession(rec)
	m.live[rec.ID] = s
	s.Subscribe(m.teardown)
	return s
}

// teardown runs once per session logout.
func (m *Manager) teardown(s *Session, reason string) {
	m.mu.Lock()
	if m.live[s.ID()] == s {
		delete(m.live, s.ID())
	}
	listeners := append([]Listener(nil), m.listeners...)
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()
	ctx = m.logg.WithSessionID(ctx, s.ID())
	if err := m.store.Delete(ctx, s.ID()); err != nil {
		m.logg.Error(ctx, "failed to delete session", err)
	}
	m.metrics.Logout(reason)
	m.logg.Info(m.logg.WithField(ctx, "reason", reason), "session logged out")

	for _, fn := range listeners {
		fn(s, reason)
	}
}

func (m *Manager) ttlFor(rec Record) time.Duration {
	ttl := m.ttl
	if !rec.ExpiresAt.IsZero() {
		if remaining := rec.ExpiresAt.Sub(m.now()); remaining < ttl {
			ttl = remaining
		}
	}
	if ttl <= 0 {
		ttl = time.Second
	}
	return ttl
}
