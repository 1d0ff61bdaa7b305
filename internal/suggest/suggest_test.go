package suggest

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gravitrone/portal-cli/internal/api"
	"github.com/gravitrone/portal-cli/internal/testutil/fakeportal"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// stubSearcher answers from fixed tables. When gated, each entity lookup
// blocks until its query is released.
type stubSearcher struct {
	mu         sync.Mutex
	entities   map[string][]api.EntitySuggestion
	properties map[string][]api.PropertySuggestion
	err        error
	calls      []string
	gates      map[string]chan struct{}
}

func (s *stubSearcher) SearchEntities(query string, _ int) ([]api.EntitySuggestion, error) {
	s.mu.Lock()
	s.calls = append(s.calls, "entity:"+query)
	gate := s.gates[query]
	s.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.entities[query], nil
}

func (s *stubSearcher) SearchProperties(entityCode, query string) ([]api.PropertySuggestion, error) {
	s.mu.Lock()
	s.calls = append(s.calls, "property:"+entityCode+"."+query)
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return s.properties[entityCode+"."+query], nil
}

func (s *stubSearcher) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func TestCompletionSuffix(t *testing.T) {
	suffix, ok := completionSuffix("ABC", "ab")
	require.True(t, ok)
	assert.Equal(t, "C", suffix)

	_, ok = completionSuffix("XYZ", "ab")
	assert.False(t, ok)

	_, ok = completionSuffix("A", "ab")
	assert.False(t, ok)

	suffix, ok = completionSuffix("Ärger", "ä")
	require.True(t, ok)
	assert.Equal(t, "rger", suffix)
}

func TestEngineEntityGhostFromNetworkThenCache(t *testing.T) {
	searcher := &stubSearcher{entities: map[string][]api.EntitySuggestion{
		"A": {{Code: "ABC", Name: "Alpha"}, {Code: "AXE", Name: "Axe"}},
	}}
	engine := NewEngine(NewIndex(searcher, IndexOptions{}), EngineOptions{})

	engine.SuggestEntity("A")
	engine.Wait()

	g := engine.Ghost()
	assert.Equal(t, KindEntity, g.Kind)
	assert.Equal(t, "BC", g.Text)
	require.NotNil(t, g.EntityMatch)
	assert.Equal(t, "Alpha", g.EntityMatch.Name)

	engine.Clear()
	assert.True(t, engine.Ghost().Empty())

	engine.SuggestEntity("a")
	assert.Equal(t, "BC", engine.Ghost().Text, "cached lookup applies synchronously")
	assert.Equal(t, []string{"entity:A"}, searcher.Calls())
}

func TestEngineCacheExpiresAfterTTL(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	searcher := &stubSearcher{entities: map[string][]api.EntitySuggestion{
		"AB": {{Code: "ABC"}},
	}}
	engine := NewEngine(NewIndex(searcher, IndexOptions{Clock: clock.Now}), EngineOptions{})

	engine.SuggestEntity("AB")
	engine.Wait()

	clock.Advance(59 * time.Second)
	engine.SuggestEntity("AB")
	engine.Wait()
	assert.Len(t, searcher.Calls(), 1, "fresh entry served from cache")

	clock.Advance(2 * time.Second)
	engine.SuggestEntity("AB")
	engine.Wait()
	assert.Len(t, searcher.Calls(), 2, "expired entry refetched")
	assert.Equal(t, "C", engine.Ghost().Text)
}

func TestEngineDropsStaleResponse(t *testing.T) {
	gateA := make(chan struct{})
	gateAB := make(chan struct{})
	searcher := &stubSearcher{
		entities: map[string][]api.EntitySuggestion{
			"A":  {{Code: "AXE"}},
			"AB": {{Code: "ABC"}},
		},
		gates: map[string]chan struct{}{"A": gateA, "AB": gateAB},
	}
	index := NewIndex(searcher, IndexOptions{})
	engine := NewEngine(index, EngineOptions{})

	engine.SuggestEntity("A")
	engine.SuggestEntity("AB")
	assert.True(t, engine.Ghost().Pending)

	close(gateAB)
	require.Eventually(t, func() bool {
		return engine.Ghost().Text == "C"
	}, time.Second, 5*time.Millisecond)

	close(gateA)
	engine.Wait()

	g := engine.Ghost()
	assert.Equal(t, "AB", g.Query)
	assert.Equal(t, "C", g.Text, "late response for A must not replace AB's ghost")

	cached, ok := index.Entities("A")
	require.True(t, ok, "stale response still fills the cache")
	assert.Equal(t, "AXE", cached[0].Code)
}

func TestEnginePropertyRequestSupersedesPendingEntity(t *testing.T) {
	gate := make(chan struct{})
	searcher := &stubSearcher{
		entities:   map[string][]api.EntitySuggestion{"AB": {{Code: "ABC"}}},
		properties: map[string][]api.PropertySuggestion{"ABC.": {{Name: "density"}}},
		gates:      map[string]chan struct{}{"AB": gate},
	}
	index := NewIndex(searcher, IndexOptions{})
	engine := NewEngine(index, EngineOptions{})

	engine.SuggestEntity("AB")
	engine.SuggestProperty("ABC", "")
	require.Eventually(t, func() bool {
		return engine.Ghost().Text == "density"
	}, time.Second, 5*time.Millisecond)

	close(gate)
	engine.Wait()

	g := engine.Ghost()
	assert.Equal(t, KindProperty, g.Kind, "late entity response must not replace the property ghost")
	assert.Equal(t, "density", g.Text)

	_, ok := index.Entities("AB")
	assert.True(t, ok, "superseded response still fills the cache")
}

func TestEngineNoGhostWhenBestDoesNotExtendQuery(t *testing.T) {
	searcher := &stubSearcher{entities: map[string][]api.EntitySuggestion{
		"wat": {{Code: "H2O", Name: "Water"}},
	}}
	engine := NewEngine(NewIndex(searcher, IndexOptions{}), EngineOptions{})

	engine.SuggestEntity("wat")
	engine.Wait()

	g := engine.Ghost()
	assert.True(t, g.Empty())
	assert.Equal(t, "wat", g.Query)
	assert.False(t, g.Pending)
}

func TestEngineEmptyEntityQueryClearsWithoutFetch(t *testing.T) {
	searcher := &stubSearcher{}
	engine := NewEngine(NewIndex(searcher, IndexOptions{}), EngineOptions{})

	engine.SuggestEntity("")
	engine.Wait()

	assert.True(t, engine.Ghost().Empty())
	assert.Empty(t, searcher.Calls())
}

func TestEngineErrorClearsGhost(t *testing.T) {
	searcher := &stubSearcher{err: errors.New("boom")}
	engine := NewEngine(NewIndex(searcher, IndexOptions{}), EngineOptions{})

	engine.SuggestEntity("A")
	engine.Wait()

	assert.Equal(t, Ghost{Seq: engine.Ghost().Seq}, engine.Ghost())
}

func TestEnginePropertyGhost(t *testing.T) {
	searcher := &stubSearcher{properties: map[string][]api.PropertySuggestion{
		"ABC.":   {{Name: "density", Unit: "kg/m3"}},
		"ABC.de": {{Name: "density", Unit: "kg/m3"}},
	}}
	engine := NewEngine(NewIndex(searcher, IndexOptions{}), EngineOptions{})

	engine.SuggestProperty("ABC", "")
	engine.Wait()
	g := engine.Ghost()
	assert.Equal(t, KindProperty, g.Kind)
	assert.Equal(t, "density", g.Text)
	assert.True(t, g.Matches(KindProperty, "abc", ""))

	engine.SuggestProperty("ABC", "de")
	engine.Wait()
	g = engine.Ghost()
	assert.Equal(t, "nsity", g.Text)
	require.NotNil(t, g.PropertyMatch)
	assert.Equal(t, "kg/m3", g.PropertyMatch.Unit)
	assert.False(t, g.Matches(KindProperty, "XYZ", "de"))
}

func TestIndexSeedStoresFirstMatchPerPrefix(t *testing.T) {
	searcher := &stubSearcher{entities: map[string][]api.EntitySuggestion{
		"": {{Code: "AB1"}, {Code: "AC2"}, {Code: "B"}},
	}}
	index := NewIndex(searcher, IndexOptions{SeedLimit: 100})
	require.NoError(t, index.Seed())

	cases := map[string]string{
		"a":   "AB1",
		"ab":  "AB1",
		"ab1": "AB1",
		"ac":  "AC2",
		"b":   "B",
	}
	for prefix, code := range cases {
		items, ok := index.Entities(prefix)
		require.True(t, ok, prefix)
		require.Len(t, items, 1)
		assert.Equal(t, code, items[0].Code, prefix)
	}

	require.NoError(t, index.Seed())
	assert.Equal(t, []string{"entity:"}, searcher.Calls(), "seeding runs once")
}

func TestIndexSeedKeepsExistingEntries(t *testing.T) {
	searcher := &stubSearcher{entities: map[string][]api.EntitySuggestion{
		"": {{Code: "AB1"}},
	}}
	index := NewIndex(searcher, IndexOptions{SeedLimit: 10})
	index.StoreEntities("a", []api.EntitySuggestion{{Code: "AZ"}, {Code: "AB1"}})

	require.NoError(t, index.Seed())

	items, ok := index.Entities("A")
	require.True(t, ok)
	assert.Len(t, items, 2)
}

func TestIndexSeedingDisabled(t *testing.T) {
	searcher := &stubSearcher{}
	index := NewIndex(searcher, IndexOptions{})
	index.EnsureSeeded()

	select {
	case <-index.Seeded():
	case <-time.After(time.Second):
		t.Fatal("seeded channel not closed")
	}
	assert.Empty(t, searcher.Calls())
}

func TestEngineAgainstFakePortal(t *testing.T) {
	srv := fakeportal.New(t)
	srv.AddEntities(
		api.EntitySuggestion{Code: "WATER", Name: "Water"},
		api.EntitySuggestion{Code: "WAX", Name: "Paraffin wax"},
	)
	srv.SetProperties("WATER", api.PropertySuggestion{Name: "density", Unit: "kg/m3"})

	client := api.NewClient(srv.URL, "")
	index := NewIndex(client, IndexOptions{SeedLimit: 50})
	require.NoError(t, index.Seed())
	engine := NewEngine(index, EngineOptions{})

	engine.SuggestEntity("wat")
	engine.Wait()
	assert.Equal(t, "ER", engine.Ghost().Text)

	engine.SuggestProperty("WATER", "d")
	engine.Wait()
	assert.Equal(t, "ensity", engine.Ghost().Text)

	assert.Len(t, srv.Searches(), 2, "seed plus one property lookup")
}
