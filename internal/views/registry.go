package views

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/bleu-ims/ims-gateway/internal/session"
	"github.com/bleu-ims/ims-gateway/internal/status"
	pkgerrors "github.com/bleu-ims/ims-gateway/pkg/errors"
	"github.com/bleu-ims/ims-gateway/pkg/logger"
	"github.com/bleu-ims/ims-gateway/pkg/metrics"
)

const (
	defaultIdleTTL         = 15 * time.Minute
	defaultJanitorInterval = time.Minute
)

// SourceFactory binds an upstream source to a session.
type SourceFactory func(s *session.Session) (Source, error)

// Registry tracks the views mounted by each session.
type Registry struct {
	factory         SourceFactory
	policies        status.Policies
	idleTTL         time.Duration
	janitorInterval time.Duration
	logg            *logger.Logger
	metrics         *metrics.Gateway
	now             func() time.Time

	mu       sync.Mutex
	sessions map[string]map[Name]*View
}

type Option func(*Registry)

func WithPolicies(p status.Policies) Option {
	return func(r *Registry) {
		if p != nil {
			r.policies = p
		}
	}
}

// WithIdleTTL sets how long an unused view stays mounted. Zero disables expiry.
func WithIdleTTL(ttl time.Duration) Option {
	return func(r *Registry) {
		r.idleTTL = ttl
	}
}

func WithJanitorInterval(interval time.Duration) Option {
	return func(r *Registry) {
		if interval > 0 {
			r.janitorInterval = interval
		}
	}
}

func WithLogger(logg *logger.Logger) Option {
	return func(r *Registry) {
		if logg != nil {
			r.logg = logg
		}
	}
}

func WithMetrics(m *metrics.Gateway) Option {
	return func(r *Registry) {
		r.metrics = m
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

func NewRegistry(factory SourceFactory, opts ...Option) *Registry {
	r := &Registry{
		factory:         factory,
		policies:        status.DefaultPolicies(),
		idleTTL:         defaultIdleTTL,
		janitorInterval: defaultJanitorInterval,
		logg:            logger.Nop(),
		now:             time.Now,
		sessions:        map[string]map[Name]*View{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Mount returns the session's view, mounting it on first use.
func (r *Registry) Mount(s *session.Session, name Name) (*View, error) {
	if s == nil || !s.Active() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthenticated, "session ended")
	}
	def, ok := definitions[name]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("unknown view %q", name))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	views := r.sessions[s.ID()]
	if v, ok := views[name]; ok {
		v.touch()
		return v, nil
	}

	src, err := r.factory(s)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to build upstream client")
	}
	if views == nil {
		views = map[Name]*View{}
		r.sessions[s.ID()] = views
	}
	v := newView(name, def, src, r)
	views[name] = v
	r.metrics.ViewMounted()
	r.logg.Debug(r.logg.WithView(r.logg.WithSessionID(context.Background(), s.ID()), string(name)), "view mounted")
	return v, nil
}

// Lookup returns a mounted view without mounting it.
func (r *Registry) Lookup(sessionID string, name Name) (*View, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.sessions[sessionID][name]
	return v, ok
}

// Mounted lists the session's views in name order.
func (r *Registry) Mounted(sessionID string) []*View {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*View, 0, len(r.sessions[sessionID]))
	for _, v := range r.sessions[sessionID] {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// Unmount tears one view down.
func (r *Registry) Unmount(sessionID string, name Name) bool {
	r.mu.Lock()
	v, ok := r.sessions[sessionID][name]
	if ok {
		r.removeLocked(sessionID, name)
	}
	r.mu.Unlock()
	if ok {
		v.close()
	}
	return ok
}

// UnmountSession tears down every view of a session.
func (r *Registry) UnmountSession(sessionID string) int {
	r.mu.Lock()
	views := r.sessions[sessionID]
	delete(r.sessions, sessionID)
	r.mu.Unlock()

	for _, v := range views {
		v.close()
		r.metrics.ViewUnmounted()
	}
	if len(views) > 0 {
		r.logg.Debug(r.logg.WithSessionID(context.Background(), sessionID), fmt.Sprintf("unmounted %d views", len(views)))
	}
	return len(views)
}

// Sweep unmounts views idle for longer than the idle TTL.
func (r *Registry) Sweep() int {
	if r.idleTTL <= 0 {
		return 0
	}
	cutoff := r.now().Add(-r.idleTTL)

	var stale []*View
	r.mu.Lock()
	for sessionID, views := range r.sessions {
		for name, v := range views {
			if v.idleSince().Before(cutoff) {
				stale = append(stale, v)
				r.removeLocked(sessionID, name)
			}
		}
	}
	r.mu.Unlock()

	for _, v := range stale {
		v.close()
	}
	return len(stale)
}

// Run sweeps idle views until ctx is done.
func (r *Registry) Run(ctx context.Context) {
	ticker := time.NewTicker(r.janitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				r.logg.Info(ctx, fmt.Sprintf("unmounted %d idle views", n))
			}
		}
	}
}

// Count returns the number of mounted views across sessions.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, views := range r.sessions {
		n += len(views)
	}
	return n
}

func (r *Registry) removeLocked(sessionID string, name Name) {
	views := r.sessions[sessionID]
	delete(views, name)
	if len(views) == 0 {
		delete(r.sessions, sessionID)
	}
	r.metrics.ViewUnmounted()
}
