package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	domain_todo "github.com/hijjiri/todo-app/internal/domain/todo"
	"github.com/hijjiri/todo-app/internal/infrastructure/memory"
	todo_usecase "github.com/hijjiri/todo-app/internal/usecase/todo"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testServer struct {
	handler http.Handler
	metrics *Metrics
}

func newTestServer(t *testing.T, repo domain_todo.Repository, opts ...todo_usecase.Option) *testServer {
	t.Helper()

	metrics := NewMetrics(prometheus.NewRegistry())
	uc := todo_usecase.New(repo, zap.NewNop(), opts...)
	h, err := NewRouter(NewTodoHandler(uc, zap.NewNop()), zap.NewNop(), RouterConfig{
		AllowOrigin: "*",
		Metrics:     metrics,
	})
	require.NoError(t, err)
	return &testServer{handler: h, metrics: metrics}
}

func (s *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decodeItem(t *testing.T, rec *httptest.ResponseRecorder) domain_todo.Item {
	t.Helper()
	var it domain_todo.Item
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &it))
	return it
}

func decodeList(t *testing.T, rec *httptest.ResponseRecorder) []domain_todo.Item {
	t.Helper()
	var items []domain_todo.Item
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &items))
	return items
}

func TestHandler_Scenario(t *testing.T) {
	s := newTestServer(t, memory.NewTodoRepository())

	// create
	rec := s.do(t, http.MethodPost, "/api/todos", `{"title":"A"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decodeItem(t, rec)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "A", created.Title)
	assert.False(t, created.IsCompleted)
	assert.Equal(t, "/api/todos/"+created.ID, rec.Header().Get("Location"))

	// update
	rec = s.do(t, http.MethodPut, "/api/todos/"+created.ID, `{"title":"A","isCompleted":true}`)
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/api/todos/"+created.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain_todo.Item{ID: created.ID, Title: "A", IsCompleted: true}, decodeItem(t, rec))

	// delete
	rec = s.do(t, http.MethodDelete, "/api/todos/"+created.ID, "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/api/todos/"+created.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestHandler_ListEmptyIsArray(t *testing.T) {
	s := newTestServer(t, memory.NewTodoRepository())

	rec := s.do(t, http.MethodGet, "/api/todos", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
}

func TestHandler_ListCompleteness(t *testing.T) {
	s := newTestServer(t, memory.NewTodoRepository())

	const n = 5
	for i := 0; i < n; i++ {
		rec := s.do(t, http.MethodPost, "/api/todos", `{"title":"item"}`)
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := s.do(t, http.MethodGet, "/api/todos", "")
	require.Equal(t, http.StatusOK, rec.Code)
	items := decodeList(t, rec)
	require.Len(t, items, n)

	ids := make(map[string]struct{}, n)
	for _, it := range items {
		ids[it.ID] = struct{}{}
	}
	assert.Len(t, ids, n, "ids must be unique")
}

func TestHandler_CreateIgnoresCompletedFlag(t *testing.T) {
	s := newTestServer(t, memory.NewTodoRepository())

	rec := s.do(t, http.MethodPost, "/api/todos", `{"title":"buy milk","isCompleted":true}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decodeItem(t, rec)
	assert.False(t, created.IsCompleted)

	rec = s.do(t, http.MethodGet, "/api/todos/"+created.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeItem(t, rec)
	assert.Equal(t, "buy milk", got.Title)
	assert.False(t, got.IsCompleted)
}

func TestHandler_ToggleTwiceRestores(t *testing.T) {
	s := newTestServer(t, memory.NewTodoRepository())

	created := decodeItem(t, s.do(t, http.MethodPost, "/api/todos", `{"title":"flip"}`))
	path := "/api/todos/" + created.ID

	current := created
	for i := 0; i < 2; i++ {
		body, err := json.Marshal(itemRequest{Title: current.Title, IsCompleted: !current.IsCompleted})
		require.NoError(t, err)
		require.Equal(t, http.StatusNoContent, s.do(t, http.MethodPut, path, string(body)).Code)
		current = decodeItem(t, s.do(t, http.MethodGet, path, ""))
	}
	assert.Equal(t, created, current)
}

func TestHandler_NotFoundLeavesCollectionUnchanged(t *testing.T) {
	s := newTestServer(t, memory.NewTodoRepository())

	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/todos", `{"title":"keep"}`).Code)
	before := s.do(t, http.MethodGet, "/api/todos", "").Body.String()

	for _, id := range []string{"65f0c2d1a1b2c3d4e5f60718", "not-an-id"} {
		rec := s.do(t, http.MethodPut, "/api/todos/"+id, `{"title":"x","isCompleted":true}`)
		assert.Equal(t, http.StatusNotFound, rec.Code, "PUT %s", id)
		assert.Empty(t, rec.Body.String())

		rec = s.do(t, http.MethodDelete, "/api/todos/"+id, "")
		assert.Equal(t, http.StatusNotFound, rec.Code, "DELETE %s", id)
	}

	after := s.do(t, http.MethodGet, "/api/todos", "").Body.String()
	assert.JSONEq(t, before, after)
}

func TestHandler_MalformedBody(t *testing.T) {
	s := newTestServer(t, memory.NewTodoRepository())

	rec := s.do(t, http.MethodPost, "/api/todos", `{"title":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"invalid request body"}`, rec.Body.String())

	rec = s.do(t, http.MethodPut, "/api/todos/65f0c2d1a1b2c3d4e5f60718", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_TrailingDataIsRejected(t *testing.T) {
	s := newTestServer(t, memory.NewTodoRepository())

	created := decodeItem(t, s.do(t, http.MethodPost, "/api/todos", `{"title":"orig"}`))

	rec := s.do(t, http.MethodPut, "/api/todos/"+created.ID, `{"title":"A"}{"junk"`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"invalid request body"}`, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/api/todos", `{"title":"B"} []`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	got := decodeItem(t, s.do(t, http.MethodGet, "/api/todos/"+created.ID, ""))
	assert.Equal(t, "orig", got.Title)

	// 末尾の空白・改行は許す
	rec = s.do(t, http.MethodPut, "/api/todos/"+created.ID, "{\"title\":\"A\"}\n  ")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestHandler_RoutingErrors(t *testing.T) {
	s := newTestServer(t, memory.NewTodoRepository())

	rec := s.do(t, http.MethodGet, "/api/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, rec.Body.String())

	rec = s.do(t, http.MethodPatch, "/api/todos/65f0c2d1a1b2c3d4e5f60718", `{"title":"x"}`)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.JSONEq(t, `{"error":"method not allowed"}`, rec.Body.String())
}

func TestHandler_EmptyTitle(t *testing.T) {
	t.Run("accepted by default", func(t *testing.T) {
		s := newTestServer(t, memory.NewTodoRepository())
		rec := s.do(t, http.MethodPost, "/api/todos", `{"title":""}`)
		assert.Equal(t, http.StatusCreated, rec.Code)
	})

	t.Run("rejected when required", func(t *testing.T) {
		s := newTestServer(t, memory.NewTodoRepository(),
			todo_usecase.WithTitlePolicy(domain_todo.TitlePolicy{RequireNonEmpty: true}))
		rec := s.do(t, http.MethodPost, "/api/todos", `{"title":"  "}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"error":"title is required"}`, rec.Body.String())
	})
}

type failingRepo struct {
	memory.TodoRepository
	err error
}

func (r *failingRepo) List(ctx context.Context) ([]*domain_todo.Item, error) {
	return nil, r.err
}

func TestHandler_StoreFailureIs500(t *testing.T) {
	s := newTestServer(t, &failingRepo{err: errors.New("connection refused")})

	rec := s.do(t, http.MethodGet, "/api/todos", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal error"}`, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "connection refused")
}

type panicUsecase struct {
	todo_usecase.Usecase
}

func (panicUsecase) List(ctx context.Context) ([]*domain_todo.Item, error) {
	panic("boom")
}

func TestHandler_PanicIsRecovered(t *testing.T) {
	h, err := NewRouter(NewTodoHandler(panicUsecase{}, zap.NewNop()), zap.NewNop(), RouterConfig{})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/todos", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHandler_CORSPreflight(t *testing.T) {
	s := newTestServer(t, memory.NewTodoRepository())

	req := httptest.NewRequest(http.MethodOptions, "/api/todos/abc", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPut)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), http.MethodPut)
}

func TestHandler_RequestID(t *testing.T) {
	s := newTestServer(t, memory.NewTodoRepository())

	rec := s.do(t, http.MethodGet, "/api/todos", "")
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/api/todos", nil)
	req.Header.Set(RequestIDHeader, "rid-123")
	rec = httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	assert.Equal(t, "rid-123", rec.Header().Get(RequestIDHeader))
}

func TestHandler_MetricsUseRoutePattern(t *testing.T) {
	s := newTestServer(t, memory.NewTodoRepository())

	s.do(t, http.MethodGet, "/api/todos/65f0c2d1a1b2c3d4e5f60718", "")
	s.do(t, http.MethodGet, "/api/todos/65f0c2d1a1b2c3d4e5f60719", "")

	got := testutil.ToFloat64(s.metrics.requests.WithLabelValues(http.MethodGet, "GET /api/todos/{id}", "404"))
	assert.Equal(t, float64(2), got)
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(ctx context.Context) error { return p.err }

func TestHealth(t *testing.T) {
	uc := todo_usecase.New(memory.NewTodoRepository(), zap.NewNop())

	for _, tt := range []struct {
		name string
		err  error
		want int
	}{
		{"up", nil, http.StatusOK},
		{"down", errors.New("no reachable servers"), http.StatusServiceUnavailable},
	} {
		t.Run(tt.name, func(t *testing.T) {
			h, err := NewRouter(NewTodoHandler(uc, zap.NewNop()), zap.NewNop(), RouterConfig{Pinger: stubPinger{err: tt.err}})
			require.NoError(t, err)

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}
