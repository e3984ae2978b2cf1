package httpadapter

import "context"

type ctxKey string

const (
	ctxKeyRequestID ctxKey = "request-id"
	ctxKeyState     ctxKey = "request-state"
)

// ----- request_id -----

func WithRequestID(ctx context.Context, rid string) context.Context {
	if rid == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxKeyRequestID, rid)
}

func RequestIDFromContext(ctx context.Context) (string, bool) {
	v := ctx.Value(ctxKeyRequestID)
	s, ok := v.(string)
	return s, ok
}

// ----- request state -----

// requestState は外側の middleware が作り、mux にマッチしたルートを
// 内側から書き戻すための入れ物。ログやメトリクスのラベルに使う。
type requestState struct {
	route string
}

func withRequestState(ctx context.Context) (context.Context, *requestState) {
	st := &requestState{}
	return context.WithValue(ctx, ctxKeyState, st), st
}

func stateFromContext(ctx context.Context) *requestState {
	st, _ := ctx.Value(ctxKeyState).(*requestState)
	return st
}

// routeFromContext はマッチしたルート。未マッチなら "unmatched"。
func routeFromContext(ctx context.Context) string {
	if st := stateFromContext(ctx); st != nil && st.route != "" {
		return st.route
	}
	return "unmatched"
}
