// Package fakeportal is an in-process portal backend for tests. It serves the
// search, analyses and realtime endpoints the client consumes.
package fakeportal

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/gravitrone/portal-cli/internal/api"
)

// Patch records one PATCH body received for an analysis.
type Patch struct {
	ID       string
	Bindings map[string]string
}

// Server is a fake portal backend.
type Server struct {
	*httptest.Server

	// Token, when set, is required as a bearer token or ws token param.
	Token string

	mu          sync.Mutex
	entities    []api.EntitySuggestion
	properties  map[string][]api.PropertySuggestion
	analyses    map[string]api.Analysis
	patches     []Patch
	evaluations []string
	searches    []string
	pings       int
	failPatch   int
	failEval    int
	nextID      int

	upgrader websocket.Upgrader
	conns    map[*websocket.Conn]*sync.Mutex
}

// New starts a fake portal and registers its shutdown with t.
func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		properties: map[string][]api.PropertySuggestion{},
		analyses:   map[string]api.Analysis{},
		conns:      map[*websocket.Conn]*sync.Mutex{},
	}
	s.Server = httptest.NewServer(s.routes())
	t.Cleanup(func() {
		s.CloseClients()
		s.Close()
	})
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/api/v1/ws", s.handleWS)
	r.Group(func(r chi.Router) {
		r.Use(s.requireBearer)
		r.Get("/api/v1/search/entities", s.handleSearchEntities)
		r.Get("/api/v1/search/entities/{code}/properties", s.handleSearchProperties)
		r.Get("/api/v1/analyses", s.handleListAnalyses)
		r.Post("/api/v1/analyses", s.handleCreateAnalysis)
		r.Get("/api/v1/analyses/{id}", s.handleGetAnalysis)
		r.Patch("/api/v1/analyses/{id}", s.handlePatchAnalysis)
		r.Delete("/api/v1/analyses/{id}", s.handleDeleteAnalysis)
		r.Post("/api/v1/analyses/{id}/evaluate", s.handleEvaluate)
	})
	return r
}

// --- Fixtures ---

// AddEntities appends entities to the search index.
func (s *Server) AddEntities(items ...api.EntitySuggestion) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entities = append(s.entities, items...)
}

// SetProperties replaces the properties of an entity code.
func (s *Server) SetProperties(code string, items ...api.PropertySuggestion) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.properties[strings.ToUpper(code)] = items
}

// AddAnalysis stores an analysis as if it had been created earlier.
func (s *Server) AddAnalysis(a api.Analysis) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.analyses[a.ID] = a
}

// Analysis returns the stored analysis.
func (s *Server) Analysis(id string) (api.Analysis, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.analyses[id]
	return a, ok
}

// FailNextPatches makes the next n PATCH requests fail with a 422.
func (s *Server) FailNextPatches(n int) {
	s.mu.Lock()
	s.failPatch = n
	s.mu.Unlock()
}

// FailNextEvaluations makes the next n evaluate requests fail with a 500.
func (s *Server) FailNextEvaluations(n int) {
	s.mu.Lock()
	s.failEval = n
	s.mu.Unlock()
}

// Patches returns every PATCH body received so far.
func (s *Server) Patches() []Patch {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Patch(nil), s.patches...)
}

// Evaluations returns the analysis ids evaluate was called for.
func (s *Server) Evaluations() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.evaluations...)
}

// Searches returns the raw query strings of search requests.
func (s *Server) Searches() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.searches...)
}

// Pings returns how many heartbeat frames were received.
func (s *Server) Pings() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pings
}

// --- REST ---

func (s *Server) requireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.Token != "" && r.Header.Get("Authorization") != "Bearer "+s.Token {
			writeJSON(w, http.StatusUnauthorized, map[string]any{
				"error": map[string]any{"code": "UNAUTHORIZED", "message": "invalid token"},
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleSearchEntities(w http.ResponseWriter, r *http.Request) {
	q := strings.ToLower(r.URL.Query().Get("q"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	s.mu.Lock()
	s.searches = append(s.searches, r.URL.RawQuery)
	out := make([]api.EntitySuggestion, 0)
	for _, e := range s.entities {
		if strings.HasPrefix(strings.ToLower(e.Code), q) || strings.HasPrefix(strings.ToLower(e.Name), q) {
			out = append(out, e)
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSearchProperties(w http.ResponseWriter, r *http.Request) {
	code := strings.ToUpper(chi.URLParam(r, "code"))
	q := strings.ToLower(r.URL.Query().Get("q"))

	s.mu.Lock()
	s.searches = append(s.searches, code+"?"+r.URL.RawQuery)
	out := make([]api.PropertySuggestion, 0)
	for _, p := range s.properties[code] {
		if strings.HasPrefix(strings.ToLower(p.Name), q) {
			out = append(out, p)
		}
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleListAnalyses(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	out := make([]api.Analysis, 0, len(s.analyses))
	for _, a := range s.analyses {
		out = append(out, a)
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	writeJSON(w, http.StatusOK, map[string]any{"data": out})
}

func (s *Server) handleGetAnalysis(w http.ResponseWriter, r *http.Request) {
	a, ok := s.Analysis(chi.URLParam(r, "id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"detail": "analysis not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": a})
}

func (s *Server) handleCreateAnalysis(w http.ResponseWriter, r *http.Request) {
	var in api.CreateAnalysisInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || strings.TrimSpace(in.Name) == "" {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"detail": "name is required"})
		return
	}
	s.mu.Lock()
	s.nextID++
	a := api.Analysis{
		ID:                fmt.Sprintf("an-%d", s.nextID),
		Name:              in.Name,
		Bindings:          bindingsFromMap(in.Bindings),
		ComputationStatus: api.StatusPending,
		CreatedAt:         time.Now().UTC(),
		UpdatedAt:         time.Now().UTC(),
	}
	s.analyses[a.ID] = a
	s.mu.Unlock()
	s.Push("created", a)
	writeJSON(w, http.StatusCreated, map[string]any{"data": a})
}

func (s *Server) handlePatchAnalysis(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var in api.UpdateAnalysisInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"detail": err.Error()})
		return
	}

	s.mu.Lock()
	s.patches = append(s.patches, Patch{ID: id, Bindings: in.Bindings})
	if s.failPatch > 0 {
		s.failPatch--
		s.mu.Unlock()
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error": map[string]any{"code": "INVALID_BINDING", "message": "binding rejected"},
		})
		return
	}
	a, ok := s.analyses[id]
	if !ok {
		s.mu.Unlock()
		writeJSON(w, http.StatusNotFound, map[string]any{"detail": "analysis not found"})
		return
	}
	if in.Name != nil {
		a.Name = *in.Name
	}
	// Wholesale replacement: inputs missing from the payload are dropped.
	a.Bindings = bindingsFromMap(in.Bindings)
	a.ComputationStatus = api.StatusPending
	a.UpdatedAt = time.Now().UTC()
	s.analyses[id] = a
	s.mu.Unlock()

	s.Push("updated", a)
	writeJSON(w, http.StatusOK, map[string]any{"data": a})
}

func (s *Server) handleDeleteAnalysis(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	_, ok := s.analyses[id]
	delete(s.analyses, id)
	s.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"detail": "analysis not found"})
		return
	}
	s.Push("deleted", map[string]string{"id": id})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	s.evaluations = append(s.evaluations, id)
	if s.failEval > 0 {
		s.failEval--
		s.mu.Unlock()
		writeJSON(w, http.StatusInternalServerError, map[string]any{"detail": "evaluator unavailable"})
		return
	}
	a, ok := s.analyses[id]
	if !ok {
		s.mu.Unlock()
		writeJSON(w, http.StatusNotFound, map[string]any{"detail": "analysis not found"})
		return
	}
	count := float64(len(a.Bindings))
	a.Outputs = []api.Output{{Name: "bound_inputs", Value: &count}}
	a.ComputationStatus = api.StatusCompleted
	a.UpdatedAt = time.Now().UTC()
	s.analyses[id] = a
	s.mu.Unlock()

	s.Push("evaluated", a)
	writeJSON(w, http.StatusOK, map[string]any{"data": a})
}

// --- Realtime ---

// WSURL returns the websocket endpoint base (without token).
func (s *Server) WSURL() string {
	return "ws" + strings.TrimPrefix(s.URL, "http") + "/api/v1/ws"
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if s.Token != "" && r.URL.Query().Get("token") != s.Token {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	writeMu := &sync.Mutex{}
	s.mu.Lock()
	s.conns[conn] = writeMu
	s.mu.Unlock()

	writeMu.Lock()
	_ = conn.WriteJSON(map[string]any{"type": "connected", "message": "realtime channel ready"})
	writeMu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		_ = conn.Close()
	}()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if string(data) == "ping" {
			s.mu.Lock()
			s.pings++
			s.mu.Unlock()
			writeMu.Lock()
			_ = conn.WriteJSON(map[string]any{"type": "heartbeat-ack"})
			writeMu.Unlock()
		}
	}
}

// Push broadcasts a realtime message to every connected client.
func (s *Server) Push(msgType string, data any) {
	payload := map[string]any{"type": msgType}
	if data != nil {
		payload["data"] = data
	}
	s.PushRaw(payload)
}

// PushRaw broadcasts an arbitrary JSON value or raw text frame.
func (s *Server) PushRaw(payload any) {
	s.mu.Lock()
	targets := make(map[*websocket.Conn]*sync.Mutex, len(s.conns))
	for c, m := range s.conns {
		targets[c] = m
	}
	s.mu.Unlock()

	for c, m := range targets {
		m.Lock()
		if text, ok := payload.(string); ok {
			_ = c.WriteMessage(websocket.TextMessage, []byte(text))
		} else {
			_ = c.WriteJSON(payload)
		}
		m.Unlock()
	}
}

// Clients returns the number of open realtime connections.
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// CloseClients drops every realtime connection.
func (s *Server) CloseClients() {
	s.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()
	for _, c := range conns {
		_ = c.Close()
	}
}

func bindingsFromMap(m map[string]string) []api.Binding {
	out := make([]api.Binding, 0, len(m))
	for k, v := range m {
		out = append(out, api.Binding{Input: k, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Input < out[j].Input })
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
