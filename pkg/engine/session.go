package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/goblinsan/ado-report/pkg/azure"
	"github.com/goblinsan/ado-report/pkg/textnorm"
	"github.com/goblinsan/ado-report/pkg/types"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"
)

// Backend defines the remote operations a Session needs.
type Backend interface {
	Gateway
	Query(ctx context.Context, criteria azure.Criteria) ([]int, error)
	GetComments(ctx context.Context, id int) ([]types.Comment, error)
}

var _ Backend = (*azure.Client)(nil)

// EnrichedItem is a root item with the time rolled up from its descendants.
type EnrichedItem struct {
	types.WorkItem `yaml:",inline"`
	InvestedHours  float64           `json:"investedHours" yaml:"investedHours"`
	TimeEntries    []types.TimeEntry `json:"timeEntries" yaml:"timeEntries"`
}

// Stats describes the fetch that produced a snapshot.
type Stats struct {
	Roots    int           `json:"roots" yaml:"roots"`
	Items    int           `json:"items" yaml:"items"`
	Budgets  int           `json:"budgets" yaml:"budgets"`
	Rounds   int           `json:"rounds" yaml:"rounds"`
	LostIDs  []int         `json:"lostIds,omitempty" yaml:"lostIds,omitempty"`
	Duration time.Duration `json:"duration" yaml:"duration"`
}

func (s Stats) String() string {
	return fmt.Sprintf("Summary: %d roots, %d items fetched in %d rounds, %d budget sources, %d ids lost",
		s.Roots, s.Items, s.Rounds, s.Budgets, len(s.LostIDs))
}

// Snapshot is the point-in-time result of one refresh. It is never mutated
// after Refresh returns it.
type Snapshot struct {
	Roots     []EnrichedItem   `json:"roots" yaml:"roots"`
	Budgets   []types.WorkItem `json:"budgets" yaml:"budgets"`
	FetchedAt time.Time        `json:"fetchedAt" yaml:"fetchedAt"`
	Stats     Stats            `json:"stats" yaml:"stats"`
}

// SessionOptions selects the roots and budget sources of a Session.
type SessionOptions struct {
	Roots   azure.Criteria
	Budgets azure.Criteria
	Logger  zerolog.Logger
}

// Session owns the current snapshot and replaces it on every successful refresh.
type Session struct {
	backend Backend
	opts    SessionOptions
	log     zerolog.Logger

	mu   sync.RWMutex
	snap *Snapshot
}

// NewSession creates a Session with no snapshot.
func NewSession(backend Backend, opts SessionOptions) *Session {
	return &Session{backend: backend, opts: opts, log: opts.Logger}
}

// Snapshot returns the current snapshot, or nil before the first successful refresh.
func (s *Session) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Refresh pulls the roots and the budget sources concurrently and replaces
// the snapshot. When the root pull fails the previous snapshot is kept and
// the error returned, as it is when ctx ends before both pulls finish; a
// failed budget pull only leaves the budgets empty.
func (s *Session) Refresh(ctx context.Context) (*Snapshot, error) {
	start := time.Now()

	var (
		roots   []EnrichedItem
		graph   *Graph
		budgets []types.WorkItem
	)
	p := pool.New().WithContext(ctx)
	p.Go(func(ctx context.Context) error {
		var err error
		roots, graph, err = s.pullRoots(ctx)
		return err
	})
	p.Go(func(ctx context.Context) error {
		budgets = s.pullBudgets(ctx)
		return nil
	})
	if err := p.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("refresh interrupted: %w", err)
	}

	snap := &Snapshot{
		Roots:     roots,
		Budgets:   budgets,
		FetchedAt: start.UTC(),
		Stats: Stats{
			Roots:    len(roots),
			Items:    len(graph.Items),
			Budgets:  len(budgets),
			Rounds:   graph.Rounds,
			LostIDs:  graph.Lost,
			Duration: time.Since(start),
		},
	}

	s.mu.Lock()
	s.snap = snap
	s.mu.Unlock()

	s.log.Info().
		Int("roots", snap.Stats.Roots).
		Int("items", snap.Stats.Items).
		Int("budgets", snap.Stats.Budgets).
		Int("rounds", snap.Stats.Rounds).
		Int("lost", len(snap.Stats.LostIDs)).
		Dur("took", snap.Stats.Duration).
		Msg("snapshot refreshed")
	return snap, nil
}

func (s *Session) pullRoots(ctx context.Context) ([]EnrichedItem, *Graph, error) {
	ids, err := s.backend.Query(ctx, s.opts.Roots)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query root items: %w", err)
	}
	graph, err := Expand(ctx, s.backend, ids, s.log)
	if err != nil {
		return nil, nil, err
	}

	roots := make([]EnrichedItem, 0, len(graph.RootIDs))
	for _, id := range graph.RootIDs {
		item, ok := graph.Items[id]
		if !ok {
			continue
		}
		res := RollUp(id, graph, s.log)
		roots = append(roots, EnrichedItem{
			WorkItem:      *item,
			InvestedHours: res.TotalHours,
			TimeEntries:   res.TimeEntries,
		})
	}
	sort.SliceStable(roots, func(i, j int) bool {
		return roots[i].ChangedDate().After(roots[j].ChangedDate())
	})
	return roots, graph, nil
}

func (s *Session) pullBudgets(ctx context.Context) []types.WorkItem {
	ids, err := s.backend.Query(ctx, s.opts.Budgets)
	if err != nil {
		s.log.Warn().Err(err).Msg("budget sources unavailable")
		return nil
	}
	items, err := s.backend.GetWorkItems(ctx, ids)
	if err != nil {
		if !errors.Is(err, azure.ErrPartialFetch) {
			s.log.Warn().Err(err).Msg("budget sources unavailable")
			return nil
		}
		s.log.Warn().Ints("ids", azure.LostIDs(err)).Msg("some budget sources could not be loaded")
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items
}

// Comments returns the discussion of a work item.
func (s *Session) Comments(ctx context.Context, id int) ([]types.Comment, error) {
	return s.backend.GetComments(ctx, id)
}

// RelatedBugs returns the Bug items linked to id through related links,
// ordered by id. The item's links are taken from the snapshot when it is a
// root there, otherwise it is fetched.
func (s *Session) RelatedBugs(ctx context.Context, id int) ([]types.WorkItem, error) {
	item, err := s.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	related := item.RelatedIDs()
	if len(related) == 0 {
		return nil, nil
	}
	linked, err := s.backend.GetWorkItems(ctx, related)
	if err != nil {
		if !errors.Is(err, azure.ErrPartialFetch) {
			return nil, fmt.Errorf("failed to get related items of %d: %w", id, err)
		}
		s.log.Warn().Int("id", id).Ints("ids", azure.LostIDs(err)).Msg("some related items could not be loaded")
	}

	var bugs []types.WorkItem
	for _, w := range linked {
		if textnorm.Equal(w.Type(), types.TypeBug) {
			bugs = append(bugs, w)
		}
	}
	sort.Slice(bugs, func(i, j int) bool { return bugs[i].ID < bugs[j].ID })
	return bugs, nil
}

func (s *Session) lookup(ctx context.Context, id int) (types.WorkItem, error) {
	if snap := s.Snapshot(); snap != nil {
		for _, r := range snap.Roots {
			if r.ID == id {
				return r.WorkItem, nil
			}
		}
	}
	items, err := s.backend.GetWorkItems(ctx, []int{id})
	if err != nil && !errors.Is(err, azure.ErrPartialFetch) {
		return types.WorkItem{}, fmt.Errorf("failed to get work item %d: %w", id, err)
	}
	for _, w := range items {
		if w.ID == id {
			return w, nil
		}
	}
	return types.WorkItem{}, fmt.Errorf("work item %d: %w", id, ErrNotFound)
}

// ErrNotFound is returned when a requested work item does not exist or is not visible.
var ErrNotFound = errors.New("work item not found")
