package httpadapter

import (
	"context"
	"net/http"
	"time"

	domain_todo "github.com/hijjiri/todo-app/internal/domain/todo"

	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"go.uber.org/zap"
)

const healthPath = "/healthz"

// RouterConfig は NewRouter に渡す付帯設定。
type RouterConfig struct {
	AllowOrigin    string
	RequestTimeout time.Duration
	Metrics        *Metrics
	Pinger         domain_todo.Pinger
}

// NewRouter は REST ルートと /healthz を mux に載せ、middleware を重ねて返す。
//
// 外側から: request id → tracing → metrics → logging → recovery → CORS → timeout → mux
func NewRouter(h *TodoHandler, logger *zap.Logger, cfg RouterConfig) (http.Handler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	mux := runtime.NewServeMux(runtime.WithRoutingErrorHandler(routingErrorHandler))
	if err := h.Register(mux); err != nil {
		return nil, err
	}
	if err := mux.HandlePath(http.MethodGet, healthPath, withRoute(healthPath, healthHandler(cfg.Pinger, logger))); err != nil {
		return nil, err
	}

	mws := []Middleware{
		NewRequestIDMiddleware(),
		NewTracingMiddleware(),
	}
	if cfg.Metrics != nil {
		mws = append(mws, cfg.Metrics.Middleware())
	}
	mws = append(mws,
		NewLoggingMiddleware(logger),
		NewRecoveryMiddleware(logger),
		NewCORSMiddleware(cfg.AllowOrigin),
		NewTimeoutMiddleware(logger, cfg.RequestTimeout),
	)

	return Chain(mux, mws...), nil
}

// routingErrorHandler は mux がルートを見つけられなかったときの応答。
// 未知のパスは body なしの 404、パスはあるがメソッドが違えば 405。
func routingErrorHandler(_ context.Context, _ *runtime.ServeMux, _ runtime.Marshaler, w http.ResponseWriter, _ *http.Request, status int) {
	switch status {
	case http.StatusNotFound:
		w.WriteHeader(http.StatusNotFound)
	case http.StatusMethodNotAllowed:
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
	default:
		writeJSONError(w, status, http.StatusText(status))
	}
}

// healthHandler はストアへ ping できれば 200、できなければ 503。
func healthHandler(p domain_todo.Pinger, logger *zap.Logger) runtime.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, _ map[string]string) {
		if p == nil {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := p.Ping(ctx); err != nil {
			logger.Warn("health check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
