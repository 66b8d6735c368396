package views

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bleu-ims/ims-gateway/internal/collections"
	"github.com/bleu-ims/ims-gateway/internal/projection"
	"github.com/bleu-ims/ims-gateway/internal/status"
	pkgerrors "github.com/bleu-ims/ims-gateway/pkg/errors"
	"github.com/bleu-ims/ims-gateway/pkg/logger"
	"github.com/bleu-ims/ims-gateway/pkg/metrics"
	"github.com/bleu-ims/ims-gateway/pkg/pagination"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

// ErrUnmounted is returned when a view is used after teardown.
var ErrUnmounted = pkgerrors.New(pkgerrors.CodeNotFound, "view is not mounted")

// Snapshot is the joined and classified state of a view before projection.
type Snapshot struct {
	View       Name
	Rows       []Row
	Options    map[string][]Choice
	Dashboard  *DashboardAggregate
	Sources    map[string]SourceState
	Degraded   bool
	Generation uint64
	LoadedAt   time.Time
}

// View is one mounted screen. Pipeline runs on a view are serialised; the
// collections it depends on are fetched concurrently.
type View struct {
	name     Name
	def      definition
	src      Source
	cache    *collections.Cache
	policies status.Policies
	logg     *logger.Logger
	metrics  *metrics.Gateway
	now      func() time.Time

	mu       sync.Mutex
	snapshot *Snapshot
	lastUsed atomic.Int64
}

func newView(name Name, def definition, src Source, r *Registry) *View {
	v := &View{
		name:     name,
		def:      def,
		src:      src,
		cache:    collections.New(r.metrics),
		policies: r.policies,
		logg:     r.logg,
		metrics:  r.metrics,
		now:      r.now,
	}
	v.touch()
	return v
}

func (v *View) Name() Name {
	return v.name
}

// Dependencies returns the cache keys the view reads.
func (v *View) Dependencies() []collections.Key {
	return append([]collections.Key(nil), v.def.deps...)
}

// Cached returns a collection currently held by the view cache.
func (v *View) Cached(key collections.Key) (any, bool) {
	return v.cache.Get(key)
}

// Load returns the current snapshot, running the pipeline when nothing was
// loaded yet, when a source failed last time, or when refresh is set.
func (v *View) Load(ctx context.Context, refresh bool) (*Snapshot, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.touch()

	if v.cache.Closed() {
		return nil, ErrUnmounted
	}
	if refresh {
		v.cache.Invalidate(v.def.deps...)
	} else if v.snapshot != nil && !v.snapshot.Degraded {
		return v.snapshot, nil
	}

	snap, err := v.run(ctx)
	if err != nil {
		return nil, err
	}
	v.snapshot = snap
	return snap, nil
}

// Refresh drops every cached dependency and reruns the pipeline.
func (v *View) Refresh(ctx context.Context) (*Snapshot, error) {
	return v.Load(ctx, true)
}

// Query loads the view and projects it.
func (v *View) Query(ctx context.Context, q Query) (*Page, error) {
	snap, err := v.Load(ctx, q.Refresh)
	if err != nil {
		return nil, err
	}
	return snap.Project(q), nil
}

func (v *View) run(ctx context.Context) (*Snapshot, error) {
	ctx = v.logg.WithView(ctx, string(v.name))
	gen := v.cache.Generation()

	var (
		mu       sync.Mutex
		values   = make(map[collections.Key]any, len(v.def.deps))
		states   = make(map[collections.Key]SourceState, len(v.def.deps))
		failures error
	)
	for _, key := range v.def.deps {
		states[key] = SourceState{State: StateLoading}
	}

	// Siblings keep running when one fails; only an ended session aborts the view.
	var g errgroup.Group
	for _, key := range v.def.deps {
		g.Go(func() error {
			load, ok := loaders[key]
			if !ok {
				return fmt.Errorf("no loader for %s", key)
			}
			records, err := v.cache.Load(ctx, key, func(ctx context.Context) (any, error) {
				return load(ctx, v.src)
			})

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				states[key] = failedState(err)
				failures = multierr.Append(failures, fmt.Errorf("%s: %w", key, err))
				if pkgerrors.IsCode(err, pkgerrors.CodeUnauthenticated) || errors.Is(err, collections.ErrClosed) {
					return err
				}
				return nil
			}
			values[key] = records
			states[key] = SourceState{State: StateLoaded}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		v.metrics.ViewLoaded(string(v.name), "error")
		if errors.Is(err, collections.ErrClosed) {
			return nil, ErrUnmounted
		}
		v.logg.Warn(ctx, fmt.Sprintf("view load aborted: %v", err))
		return nil, err
	}
	if v.cache.Closed() {
		v.metrics.StaleDiscard(string(v.name))
		return nil, ErrUnmounted
	}

	out := v.def.build(buildInput{values: values, states: states, policies: v.policies, now: v.now()})

	sources := make(map[string]SourceState, len(states))
	for key, state := range states {
		sources[string(key)] = state
	}
	snap := &Snapshot{
		View:       v.name,
		Rows:       out.rows,
		Options:    out.options,
		Dashboard:  out.dashboard,
		Sources:    sources,
		Degraded:   failures != nil,
		Generation: gen,
		LoadedAt:   v.now(),
	}
	if snap.Rows == nil {
		snap.Rows = []Row{}
	}

	if failures != nil {
		v.metrics.ViewLoaded(string(v.name), "degraded")
		v.logg.Warn(v.logg.WithField(ctx, "failed_sources", len(multierr.Errors(failures))), fmt.Sprintf("view degraded: %v", failures))
	} else {
		v.metrics.ViewLoaded(string(v.name), "ok")
	}
	return snap, nil
}

func failedState(err error) SourceState {
	state := SourceState{State: StateError, Code: string(pkgerrors.CodeInternal), Message: err.Error()}
	if typed := pkgerrors.As(err); typed != nil {
		state.Code = string(typed.Code())
		state.Message = typed.Message()
		if typed.Code() == pkgerrors.CodeUnreachable {
			state.Message = pkgerrors.MetadataFor(pkgerrors.CodeUnreachable).PublicMessage
		}
	}
	return state
}

// close tears the view down. In-flight loads finish but are discarded.
func (v *View) close() {
	v.cache.Close()
}

func (v *View) touch() {
	v.lastUsed.Store(v.now().UnixNano())
}

func (v *View) idleSince() time.Time {
	return time.Unix(0, v.lastUsed.Load())
}

// Query is the presentation input of a view read.
type Query struct {
	Search  string
	Status  string
	Sort    projection.Direction
	Group   string
	Page    pagination.Params
	Refresh bool
}

// Group counts the rows of one tab.
type Group struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Page is a projected view ready to render.
type Page struct {
	View       Name                   `json:"view"`
	Rows       []Row                  `json:"rows"`
	Groups     []Group                `json:"groups,omitempty"`
	Options    map[string][]Choice    `json:"options,omitempty"`
	Dashboard  *DashboardAggregate    `json:"dashboard,omitempty"`
	Sources    map[string]SourceState `json:"sources"`
	Degraded   bool                   `json:"degraded"`
	Pagination pagination.Meta        `json:"pagination"`
	LoadedAt   time.Time              `json:"loaded_at"`
}

var rowFields = projection.Fields[Row]{
	Name:   Row.RowName,
	Status: Row.RowStatus,
}

// Project filters, sorts and pages the snapshot. Tabs are counted on the
// filtered rows before the group filter applies.
func (s *Snapshot) Project(q Query) *Page {
	rows := projection.Project(s.Rows, rowFields, projection.Params{
		SearchText:    q.Search,
		StatusFilter:  q.Status,
		SortDirection: q.Sort,
	})

	groups := groupRows(rows)
	if q.Group != "" && groups != nil {
		filtered := rows[:0:0]
		for _, row := range rows {
			if g, ok := row.(groupedRow); ok && g.RowGroup() == q.Group {
				filtered = append(filtered, row)
			}
		}
		rows = filtered
	}

	page, meta := projection.Paginate(rows, q.Page)
	return &Page{
		View:       s.View,
		Rows:       page,
		Groups:     groups,
		Options:    s.Options,
		Dashboard:  s.Dashboard,
		Sources:    s.Sources,
		Degraded:   s.Degraded,
		Pagination: meta,
		LoadedAt:   s.LoadedAt,
	}
}

func groupRows(rows []Row) []Group {
	var groups []Group
	index := map[string]int{}
	for _, row := range rows {
		g, ok := row.(groupedRow)
		if !ok {
			return nil
		}
		name := g.RowGroup()
		if i, seen := index[name]; seen {
			groups[i].Count++
			continue
		}
		index[name] = len(groups)
		groups = append(groups, Group{Name: name, Count: 1})
	}
	return groups
}
