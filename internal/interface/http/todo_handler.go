package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	domain_todo "github.com/hijjiri/todo-app/internal/domain/todo"
	todo_usecase "github.com/hijjiri/todo-app/internal/usecase/todo"

	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"go.uber.org/zap"
)

// リクエストボディの上限
const maxBodyBytes = 1 << 20

// TodosPath は REST のコレクションパス。
const TodosPath = "/api/todos"

type TodoHandler struct {
	uc     todo_usecase.Usecase
	logger *zap.Logger
}

func NewTodoHandler(uc todo_usecase.Usecase, logger *zap.Logger) *TodoHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TodoHandler{uc: uc, logger: logger}
}

// itemRequest は POST / PUT のボディ。
// POST では IsCompleted は受け取るが使わない。
type itemRequest struct {
	Title       string `json:"title"`
	IsCompleted bool   `json:"isCompleted"`
}

// Register は 5 つの REST ルートを mux に登録する。
func (h *TodoHandler) Register(mux *runtime.ServeMux) error {
	routes := []struct {
		method  string
		pattern string
		fn      runtime.HandlerFunc
	}{
		{http.MethodGet, TodosPath, h.list},
		{http.MethodGet, TodosPath + "/{id}", h.get},
		{http.MethodPost, TodosPath, h.create},
		{http.MethodPut, TodosPath + "/{id}", h.update},
		{http.MethodDelete, TodosPath + "/{id}", h.delete},
	}
	for _, rt := range routes {
		if err := mux.HandlePath(rt.method, rt.pattern, withRoute(rt.pattern, rt.fn)); err != nil {
			return err
		}
	}
	return nil
}

// --- List ---
func (h *TodoHandler) list(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	items, err := h.uc.List(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// --- Get ---
func (h *TodoHandler) get(w http.ResponseWriter, r *http.Request, params map[string]string) {
	item, err := h.uc.Get(r.Context(), params["id"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// --- Create ---
func (h *TodoHandler) create(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	item, err := h.uc.Create(r.Context(), req.Title)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	w.Header().Set("Location", TodosPath+"/"+item.ID)
	writeJSON(w, http.StatusCreated, item)
}

// --- Update ---
func (h *TodoHandler) update(w http.ResponseWriter, r *http.Request, params map[string]string) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	if err := h.uc.Update(r.Context(), params["id"], req.Title, req.IsCompleted); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Delete ---
func (h *TodoHandler) delete(w http.ResponseWriter, r *http.Request, params map[string]string) {
	if err := h.uc.Delete(r.Context(), params["id"]); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *TodoHandler) decode(w http.ResponseWriter, r *http.Request) (itemRequest, bool) {
	var req itemRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	err := dec.Decode(&req)
	if err == nil {
		// JSON 値は 1 つだけ。後ろに何か続いていたら不正扱い
		var extra json.RawMessage
		if derr := dec.Decode(&extra); !errors.Is(derr, io.EOF) {
			err = errors.New("trailing data after JSON body")
		}
	}
	if err != nil {
		h.logger.Info("invalid request body",
			zap.String("route", routeFromContext(r.Context())),
			zap.Error(err),
		)
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return itemRequest{}, false
	}
	return req, true
}

// --- error mapper ---
func (h *TodoHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case todo_usecase.IsNotFound(err):
		// 404 はボディ無し
		w.WriteHeader(http.StatusNotFound)

	case errors.Is(err, domain_todo.ErrEmptyTitle):
		writeJSONError(w, http.StatusBadRequest, "title is required")

	case errors.Is(err, context.DeadlineExceeded):
		writeJSONError(w, http.StatusGatewayTimeout, "request timeout")

	case errors.Is(err, context.Canceled):
		writeJSONError(w, http.StatusRequestTimeout, "request canceled")

	default:
		// Internal詳細はログ側にだけ残す
		rid, _ := RequestIDFromContext(r.Context())
		h.logger.Error("todo request failed",
			zap.String("route", routeFromContext(r.Context())),
			zap.String("request_id", rid),
			zap.Error(err),
		)
		writeJSONError(w, http.StatusInternalServerError, "internal error")
	}
}

// withRoute はマッチしたパターンを request state に書き戻す。
func withRoute(pattern string, fn runtime.HandlerFunc) runtime.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, params map[string]string) {
		if st := stateFromContext(r.Context()); st != nil {
			st.route = r.Method + " " + pattern
		}
		fn(w, r, params)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
