// Package suggest resolves partially typed references into completions.
//
// An Index is the session-wide suggestion cache shared by every editor on a
// page; an Engine is the per-editor orchestrator that consults the Index,
// falls back to the network, and publishes the ghost text to display.
package suggest

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gravitrone/portal-cli/internal/api"
	"github.com/gravitrone/portal-cli/internal/cache"
)

// DefaultSeedLimit bounds the entity batch fetched to seed the index.
const DefaultSeedLimit = 500

// Searcher is the network side of suggestions.
type Searcher interface {
	SearchEntities(query string, limit int) ([]api.EntitySuggestion, error)
	SearchProperties(entityCode, query string) ([]api.PropertySuggestion, error)
}

// IndexOptions configures an Index.
type IndexOptions struct {
	// TTL of cached suggestions; defaults to cache.DefaultTTL.
	TTL time.Duration
	// SeedLimit is the size of the seeding batch. Zero or less disables seeding.
	SeedLimit int
	Clock     func() time.Time
	Logger    *slog.Logger
}

// Index caches entity and property suggestions for a session. It is created
// once and handed to every Engine; nothing tears it down.
type Index struct {
	searcher   Searcher
	entities   *cache.Cache[[]api.EntitySuggestion]
	properties *cache.Cache[[]api.PropertySuggestion]
	seedLimit  int
	logger     *slog.Logger

	seedOnce sync.Once
	seeded   chan struct{}
}

// NewIndex creates an empty index backed by searcher.
func NewIndex(searcher Searcher, opts IndexOptions) *Index {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	var cacheOpts []cache.Option
	if opts.Clock != nil {
		cacheOpts = append(cacheOpts, cache.WithClock(opts.Clock))
	}
	return &Index{
		searcher:   searcher,
		entities:   cache.New[[]api.EntitySuggestion](opts.TTL, cacheOpts...),
		properties: cache.New[[]api.PropertySuggestion](opts.TTL, cacheOpts...),
		seedLimit:  opts.SeedLimit,
		logger:     logger,
		seeded:     make(chan struct{}),
	}
}

func entityKey(query string) string {
	return "entity:" + query
}

func propertyKey(entityCode, query string) string {
	return "property:" + entityCode + "." + query
}

// Entities returns cached entity suggestions for a prefix.
func (x *Index) Entities(query string) ([]api.EntitySuggestion, bool) {
	return x.entities.Get(entityKey(query))
}

// StoreEntities caches entity suggestions for a prefix.
func (x *Index) StoreEntities(query string, items []api.EntitySuggestion) {
	x.entities.Set(entityKey(query), items)
}

// Properties returns cached property suggestions of an entity for a prefix.
func (x *Index) Properties(entityCode, query string) ([]api.PropertySuggestion, bool) {
	return x.properties.Get(propertyKey(entityCode, query))
}

// StoreProperties caches property suggestions of an entity for a prefix.
func (x *Index) StoreProperties(entityCode, query string, items []api.PropertySuggestion) {
	x.properties.Set(propertyKey(entityCode, query), items)
}

// EnsureSeeded starts seeding in the background on first call. Later calls
// return immediately; lookups keep using the network until seeding lands.
func (x *Index) EnsureSeeded() {
	x.seedOnce.Do(func() {
		if x.seedLimit <= 0 {
			close(x.seeded)
			return
		}
		go func() {
			defer close(x.seeded)
			if err := x.seed(); err != nil {
				x.logger.Debug("suggestion seeding failed", "error", err)
			}
		}()
	})
}

// Seeded is closed once seeding has finished or was skipped.
func (x *Index) Seeded() <-chan struct{} {
	return x.seeded
}

// Seed runs seeding synchronously. It is a no-op after the first seed.
func (x *Index) Seed() error {
	var err error
	ran := false
	x.seedOnce.Do(func() {
		ran = true
		defer close(x.seeded)
		if x.seedLimit > 0 {
			err = x.seed()
		}
	})
	if !ran {
		<-x.seeded
	}
	return err
}

// seed fetches one batch of entities and stores, for every prefix of every
// code, the first entity whose code starts with that prefix. Prefixes that
// already hold an entry keep it.
func (x *Index) seed() error {
	items, err := x.searcher.SearchEntities("", x.seedLimit)
	if err != nil {
		return err
	}
	stored := 0
	for _, item := range items {
		runes := []rune(item.Code)
		for n := 1; n <= len(runes); n++ {
			if x.entities.SetIfAbsent(entityKey(string(runes[:n])), []api.EntitySuggestion{item}) {
				stored++
			}
		}
	}
	x.logger.Debug("suggestion index seeded", "entities", len(items), "prefixes", stored)
	return nil
}
