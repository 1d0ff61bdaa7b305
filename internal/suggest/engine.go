package suggest

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/gravitrone/portal-cli/internal/api"
	"github.com/gravitrone/portal-cli/internal/observe"
)

// Kind tells which half of a reference a ghost completes.
type Kind int

const (
	KindNone Kind = iota
	KindEntity
	KindProperty
)

func (k Kind) String() string {
	switch k {
	case KindEntity:
		return "entity"
	case KindProperty:
		return "property"
	default:
		return "none"
	}
}

// Ghost is the inline completion currently offered to an editor.
type Ghost struct {
	Kind Kind
	// Entity is the entity code a property ghost is scoped to.
	Entity string
	// Query is the partial text the ghost was computed for.
	Query string
	// Text is the untyped remainder of the best candidate.
	Text    string
	Pending bool

	EntityMatch   *api.EntitySuggestion
	PropertyMatch *api.PropertySuggestion

	Seq uint64
}

// Empty reports whether there is nothing to show.
func (g Ghost) Empty() bool {
	return g.Text == ""
}

// Matches reports whether the ghost was computed for this exact request.
func (g Ghost) Matches(kind Kind, entity, query string) bool {
	if g.Kind != kind || g.Query != query {
		return false
	}
	return kind != KindProperty || strings.EqualFold(g.Entity, entity)
}

// EngineOptions configures an Engine.
type EngineOptions struct {
	// Limit caps entity suggestions per request; defaults to
	// api.DefaultSuggestionLimit.
	Limit  int
	Logger *slog.Logger
}

// Engine produces ghost text for one editor. Only the response to the most
// recent request may change the ghost; older responses still fill the cache.
type Engine struct {
	index  *Index
	limit  int
	logger *slog.Logger

	mu  sync.Mutex
	seq uint64

	ghost *observe.Value[Ghost]
	wg    sync.WaitGroup
}

// NewEngine creates an engine reading through index.
func NewEngine(index *Index, opts EngineOptions) *Engine {
	limit := opts.Limit
	if limit <= 0 {
		limit = api.DefaultSuggestionLimit
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		index:  index,
		limit:  limit,
		logger: logger,
		ghost:  observe.NewValue(Ghost{}),
	}
}

// Ghost returns the current ghost.
func (e *Engine) Ghost() Ghost {
	return e.ghost.Load()
}

// Subscribe returns a channel receiving every ghost change.
func (e *Engine) Subscribe() chan Ghost {
	return e.ghost.Subscribe()
}

// Unsubscribe stops delivery to ch and closes it.
func (e *Engine) Unsubscribe(ch chan Ghost) {
	e.ghost.Unsubscribe(ch)
}

// Wait blocks until every in-flight lookup has returned.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// Clear drops the ghost and invalidates in-flight lookups.
func (e *Engine) Clear() {
	e.apply(e.next(), Ghost{})
}

// SuggestEntity requests completions for a partial entity code.
func (e *Engine) SuggestEntity(query string) {
	e.index.EnsureSeeded()
	seq := e.next()
	if query == "" {
		e.apply(seq, Ghost{})
		return
	}
	if items, ok := e.index.Entities(query); ok {
		e.apply(seq, entityGhost(query, items))
		return
	}

	e.apply(seq, Ghost{Kind: KindEntity, Query: query, Pending: true})
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		items, err := e.index.searcher.SearchEntities(query, e.limit)
		if err != nil {
			e.logger.Debug("entity suggestion failed", "query", query, "error", err)
			e.apply(seq, Ghost{})
			return
		}
		e.index.StoreEntities(query, items)
		if !e.apply(seq, entityGhost(query, items)) {
			e.logger.Debug("stale entity suggestion dropped", "query", query, "seq", seq)
		}
	}()
}

// SuggestProperty requests completions for a partial property of an entity.
// An empty query is valid and lists the entity's properties.
func (e *Engine) SuggestProperty(entityCode, query string) {
	seq := e.next()
	if entityCode == "" {
		e.apply(seq, Ghost{})
		return
	}
	if items, ok := e.index.Properties(entityCode, query); ok {
		e.apply(seq, propertyGhost(entityCode, query, items))
		return
	}

	e.apply(seq, Ghost{Kind: KindProperty, Entity: entityCode, Query: query, Pending: true})
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		items, err := e.index.searcher.SearchProperties(entityCode, query)
		if err != nil {
			e.logger.Debug("property suggestion failed", "entity", entityCode, "query", query, "error", err)
			e.apply(seq, Ghost{})
			return
		}
		e.index.StoreProperties(entityCode, query, items)
		if !e.apply(seq, propertyGhost(entityCode, query, items)) {
			e.logger.Debug("stale property suggestion dropped", "entity", entityCode, "query", query, "seq", seq)
		}
	}()
}

func (e *Engine) next() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.seq++
	return e.seq
}

// apply publishes g if seq is still the latest request.
func (e *Engine) apply(seq uint64, g Ghost) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if seq != e.seq {
		return false
	}
	g.Seq = seq
	e.ghost.Store(g)
	return true
}

func entityGhost(query string, items []api.EntitySuggestion) Ghost {
	g := Ghost{Kind: KindEntity, Query: query}
	if len(items) == 0 {
		return g
	}
	best := items[0]
	if suffix, ok := completionSuffix(best.Code, query); ok {
		g.Text = suffix
		g.EntityMatch = &best
	}
	return g
}

func propertyGhost(entityCode, query string, items []api.PropertySuggestion) Ghost {
	g := Ghost{Kind: KindProperty, Entity: entityCode, Query: query}
	if len(items) == 0 {
		return g
	}
	best := items[0]
	if suffix, ok := completionSuffix(best.Name, query); ok {
		g.Text = suffix
		g.PropertyMatch = &best
	}
	return g
}

// completionSuffix returns what remains of candidate after typed, provided
// candidate starts with typed ignoring case.
func completionSuffix(candidate, typed string) (string, bool) {
	c := []rune(candidate)
	t := []rune(typed)
	if len(c) < len(t) || !strings.EqualFold(string(c[:len(t)]), typed) {
		return "", false
	}
	return string(c[len(t):]), true
}
