package binding

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gravitrone/portal-cli/internal/api"
	"github.com/gravitrone/portal-cli/internal/store"
	"github.com/gravitrone/portal-cli/internal/testutil"
	"github.com/gravitrone/portal-cli/internal/testutil/fakeportal"
)

func beam() api.Analysis {
	return api.Analysis{
		ID:   "a1",
		Name: "Beam",
		Bindings: []api.Binding{
			{Input: "height", Value: "10"},
			{Input: "width", Value: "2"},
		},
	}
}

func setup(t *testing.T) (*fakeportal.Server, *store.Store, *Controller) {
	t.Helper()
	srv := fakeportal.New(t)
	srv.AddAnalysis(beam())
	st := store.New(store.Options{})
	st.Upsert(beam())
	return srv, st, NewController(api.NewClient(srv.URL, ""), st, testutil.NewTestLogger(t))
}

func TestSaveSendsCompleteBindingMap(t *testing.T) {
	srv, st, c := setup(t)

	initial, err := c.StartEdit("a1", "width")
	require.NoError(t, err)
	assert.Equal(t, "2", initial)

	saved, err := c.Save("#STEEL.width * 2")
	require.NoError(t, err)

	patches := srv.Patches()
	require.Len(t, patches, 1)
	assert.Equal(t, map[string]string{
		"height": "10",
		"width":  "#STEEL.width * 2",
	}, patches[0].Bindings)

	assert.Equal(t, []string{"a1"}, srv.Evaluations())
	assert.Equal(t, api.StatusCompleted, saved.ComputationStatus)

	cached, ok := st.Get("a1")
	require.True(t, ok)
	value, _ := cached.BindingValue("width")
	assert.Equal(t, "#STEEL.width * 2", value)
	assert.Equal(t, api.StatusCompleted, cached.ComputationStatus)

	_, editing := c.Editing()
	assert.False(t, editing)
}

func TestSaveFetchesAnalysisMissingFromStore(t *testing.T) {
	srv := fakeportal.New(t)
	srv.AddAnalysis(beam())
	client := api.NewClient(srv.URL, "")
	st := store.New(store.Options{Fetcher: client, Logger: testutil.NewTestLogger(t)})
	c := NewController(client, st, testutil.NewTestLogger(t))

	_, err := c.StartEdit("a1", "width")
	require.NoError(t, err)
	_, err = c.Save("5")
	require.NoError(t, err)
	st.Wait()

	patches := srv.Patches()
	require.Len(t, patches, 1)
	assert.Equal(t, map[string]string{"height": "10", "width": "5"}, patches[0].Bindings)
}

func TestSaveRefusesPartialMapWhenAnalysisUnavailable(t *testing.T) {
	srv := fakeportal.New(t)
	client := api.NewClient(srv.URL, "")
	st := store.New(store.Options{Fetcher: client, Logger: testutil.NewTestLogger(t)})
	c := NewController(client, st, testutil.NewTestLogger(t))

	_, err := c.StartEdit("a1", "width")
	require.NoError(t, err)
	_, err = c.Save("5")
	require.Error(t, err)
	assert.True(t, api.IsNotFound(err))

	assert.Empty(t, srv.Patches())
	assert.True(t, c.IsEditing("a1", "width"))
}

func TestSaveWithoutFetcherRequiresCachedAnalysis(t *testing.T) {
	srv := fakeportal.New(t)
	srv.AddAnalysis(beam())
	c := NewController(api.NewClient(srv.URL, ""), store.New(store.Options{}), testutil.NewTestLogger(t))

	_, err := c.StartEdit("a1", "width")
	require.NoError(t, err)
	_, err = c.Save("5")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not loaded")
	assert.Empty(t, srv.Patches())
}

func TestSaveFailureKeepsEditing(t *testing.T) {
	srv, st, c := setup(t)
	srv.FailNextPatches(1)

	_, err := c.StartEdit("a1", "width")
	require.NoError(t, err)
	_, err = c.Save("oops")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "INVALID_BINDING")

	assert.True(t, c.IsEditing("a1", "width"))
	assert.Empty(t, srv.Evaluations())
	cached, _ := st.Get("a1")
	value, _ := cached.BindingValue("width")
	assert.Equal(t, "2", value)
}

func TestEvaluateFailureStillCommits(t *testing.T) {
	srv, st, c := setup(t)
	srv.FailNextEvaluations(1)

	_, err := c.StartEdit("a1", "height")
	require.NoError(t, err)
	saved, err := c.Save("12")
	require.NoError(t, err)
	assert.Equal(t, api.StatusPending, saved.ComputationStatus)

	cached, _ := st.Get("a1")
	value, _ := cached.BindingValue("height")
	assert.Equal(t, "12", value)
	assert.False(t, c.IsEditing("a1", "height"))
}

func TestSaveWithoutEdit(t *testing.T) {
	_, _, c := setup(t)
	_, err := c.Save("1")
	assert.ErrorIs(t, err, ErrNotEditing)
}

func TestStartEditReplacesTargetAndCancel(t *testing.T) {
	_, _, c := setup(t)
	_, err := c.StartEdit("a1", "width")
	require.NoError(t, err)
	_, err = c.StartEdit("a1", "height")
	require.NoError(t, err)

	assert.False(t, c.IsEditing("a1", "width"))
	assert.True(t, c.IsEditing("a1", "height"))

	c.Cancel()
	_, ok := c.Editing()
	assert.False(t, ok)
}

func TestStartEditUnknownAnalysis(t *testing.T) {
	_, _, c := setup(t)
	initial, err := c.StartEdit("nope", "width")
	require.NoError(t, err)
	assert.Empty(t, initial)
}

// blockingBackend holds UpdateAnalysis until released.
type blockingBackend struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (b *blockingBackend) UpdateAnalysis(id string, input api.UpdateAnalysisInput) (*api.Analysis, error) {
	b.once.Do(func() { close(b.entered) })
	<-b.release
	return &api.Analysis{ID: id, Name: "Beam"}, nil
}

func (b *blockingBackend) EvaluateAnalysis(string) (*api.Analysis, error) {
	return nil, errors.New("evaluator down")
}

func TestConcurrentSaveOfSameTarget(t *testing.T) {
	st := store.New(store.Options{})
	st.Upsert(beam())
	backend := &blockingBackend{entered: make(chan struct{}), release: make(chan struct{})}
	c := NewController(backend, st, nil)

	_, err := c.StartEdit("a1", "width")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := c.Save("3")
		done <- err
	}()
	<-backend.entered

	assert.True(t, c.IsSaving("a1", "width"))
	_, err = c.Save("4")
	assert.ErrorIs(t, err, ErrSaveInFlight)
	_, err = c.StartEdit("a1", "width")
	assert.ErrorIs(t, err, ErrSaveInFlight)

	// Moving on to another input while the save runs keeps the new target.
	_, err = c.StartEdit("a1", "height")
	require.NoError(t, err)

	close(backend.release)
	require.NoError(t, <-done)
	assert.True(t, c.IsEditing("a1", "height"))
	assert.False(t, c.IsSaving("a1", "width"))
}
