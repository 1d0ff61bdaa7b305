// Package store is the client-side cache of analyses. REST responses and
// realtime pushes both land here through the same idempotent upsert and
// delete, so applying an event twice leaves the cache unchanged.
package store

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/gravitrone/portal-cli/internal/api"
	"github.com/gravitrone/portal-cli/internal/observe"
	"github.com/gravitrone/portal-cli/internal/realtime"
)

// Fetcher reads analyses from the source of truth.
type Fetcher interface {
	ListAnalyses() ([]api.Analysis, error)
	GetAnalysis(id string) (*api.Analysis, error)
}

// Options configures a Store.
type Options struct {
	// Fetcher, when set, lets Invalidate reconcile in the background.
	Fetcher Fetcher
	Logger  *slog.Logger
}

// Store caches the analyses list and per-id details.
type Store struct {
	fetcher Fetcher
	logger  *slog.Logger
	group   singleflight.Group
	version *observe.Value[uint64]
	wg      sync.WaitGroup

	mu           sync.RWMutex
	list         []api.Analysis
	details      map[string]api.Analysis
	listStale    bool
	staleDetails map[string]bool
}

// New creates an empty store.
func New(opts Options) *Store {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		fetcher:      opts.Fetcher,
		logger:       logger,
		version:      observe.NewValue[uint64](0),
		details:      map[string]api.Analysis{},
		staleDetails: map[string]bool{},
	}
}

// List returns a copy of the cached list, sorted by name.
func (s *Store) List() []api.Analysis {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.list)
}

// Get returns the cached analysis with id.
func (s *Store) Get(id string) (api.Analysis, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if a, ok := s.details[id]; ok {
		return a, true
	}
	if i := s.indexOf(id); i >= 0 {
		return s.list[i], true
	}
	return api.Analysis{}, false
}

// Stale reports whether the list awaits a refresh.
func (s *Store) Stale() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listStale
}

// Version increases on every change.
func (s *Store) Version() uint64 {
	return s.version.Load()
}

// Subscribe returns a channel receiving the version after each change.
func (s *Store) Subscribe() chan uint64 {
	return s.version.Subscribe()
}

// Unsubscribe stops delivery to ch and closes it.
func (s *Store) Unsubscribe(ch chan uint64) {
	s.version.Unsubscribe(ch)
}

func (s *Store) changed() {
	s.version.Update(func(v uint64) uint64 { return v + 1 })
}

// indexOf must be called with s.mu held.
func (s *Store) indexOf(id string) int {
	return slices.IndexFunc(s.list, func(a api.Analysis) bool { return a.ID == id })
}

func compareAnalyses(a, b api.Analysis) int {
	if c := strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)); c != 0 {
		return c
	}
	return strings.Compare(a.ID, b.ID)
}

// Upsert replaces the analysis with the same id in place, or inserts it and
// re-sorts the list. The detail entry is updated either way.
func (s *Store) Upsert(a api.Analysis) {
	if a.ID == "" {
		return
	}
	s.mu.Lock()
	if i := s.indexOf(a.ID); i >= 0 {
		renamed := s.list[i].Name != a.Name
		s.list[i] = a
		if renamed {
			slices.SortStableFunc(s.list, compareAnalyses)
		}
	} else {
		s.list = append(s.list, a)
		slices.SortStableFunc(s.list, compareAnalyses)
	}
	s.details[a.ID] = a
	delete(s.staleDetails, a.ID)
	s.mu.Unlock()
	s.changed()
}

// Delete removes the analysis with id from the list and the details. It
// reports whether anything was removed.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	removed := false
	if i := s.indexOf(id); i >= 0 {
		s.list = slices.Delete(s.list, i, i+1)
		removed = true
	}
	if _, ok := s.details[id]; ok {
		delete(s.details, id)
		removed = true
	}
	delete(s.staleDetails, id)
	s.mu.Unlock()
	if removed {
		s.changed()
	}
	return removed
}

// Replace swaps in a freshly fetched list. Cached entries updated more
// recently than their fetched counterpart are kept.
func (s *Store) Replace(items []api.Analysis) {
	s.mu.Lock()
	next := make([]api.Analysis, 0, len(items))
	for _, a := range items {
		if cur, ok := s.details[a.ID]; ok && cur.UpdatedAt.After(a.UpdatedAt) {
			a = cur
		}
		next = append(next, a)
	}
	slices.SortStableFunc(next, compareAnalyses)
	s.list = next

	details := make(map[string]api.Analysis, len(next))
	for _, a := range next {
		details[a.ID] = a
	}
	s.details = details
	s.listStale = false
	s.staleDetails = map[string]bool{}
	s.mu.Unlock()
	s.changed()
}

// Invalidate marks everything stale and, when a fetcher is configured,
// refreshes in the background.
func (s *Store) Invalidate() {
	s.mu.Lock()
	s.listStale = true
	for id := range s.details {
		s.staleDetails[id] = true
	}
	s.mu.Unlock()

	if s.fetcher == nil {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.Refresh(); err != nil {
			s.logger.Warn("analyses refresh failed", "error", err)
		}
	}()
}

// Refresh refetches the list. Concurrent calls share one request.
func (s *Store) Refresh() error {
	if s.fetcher == nil {
		return nil
	}
	_, err, _ := s.group.Do("list", func() (any, error) {
		items, err := s.fetcher.ListAnalyses()
		if err != nil {
			return nil, fmt.Errorf("list analyses: %w", err)
		}
		s.Replace(items)
		return nil, nil
	})
	return err
}

// RefreshDetail refetches one analysis.
func (s *Store) RefreshDetail(id string) (api.Analysis, error) {
	if s.fetcher == nil {
		a, _ := s.Get(id)
		return a, nil
	}
	v, err, _ := s.group.Do("detail:"+id, func() (any, error) {
		a, err := s.fetcher.GetAnalysis(id)
		if err != nil {
			return nil, fmt.Errorf("get analysis %s: %w", id, err)
		}
		s.Upsert(*a)
		return *a, nil
	})
	if err != nil {
		if api.IsNotFound(err) {
			s.Delete(id)
		}
		return api.Analysis{}, err
	}
	return v.(api.Analysis), nil
}

// Wait blocks until background refreshes finish.
func (s *Store) Wait() {
	s.wg.Wait()
}

// Apply reconciles one realtime push into the cache.
func (s *Store) Apply(msg realtime.Message) error {
	switch msg.Type {
	case realtime.TypeCreated, realtime.TypeUpdated, realtime.TypeEvaluated:
		a, err := msg.Analysis()
		if err != nil {
			return err
		}
		s.Invalidate()
		s.Upsert(a)
	case realtime.TypeDeleted:
		id, err := msg.DeletedID()
		if err != nil {
			return err
		}
		s.Delete(id)
		s.Invalidate()
	}
	return nil
}
