package view

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/hijjiri/todo-app/internal/domain/todo"
)

// API は controller が使う REST クライアントの最小セット。
// *client.Client がこれを満たす。
type API interface {
	List(ctx context.Context) ([]todo.Item, error)
	Create(ctx context.Context, title string) (*todo.Item, error)
	Update(ctx context.Context, id, title string, isCompleted bool) error
	Delete(ctx context.Context, id string) error
}

// State は画面に出す値のコピー。
type State struct {
	Items []todo.Item
	Draft string
}

// ErrorHook は握りつぶしたエラーを呼び出し側にも知らせたいとき用。
type ErrorHook func(op string, err error)

type Option func(*ListController)

func WithErrorHook(h ErrorHook) Option {
	return func(c *ListController) { c.onError = h }
}

// ListController は一覧と入力中テキストを持ち、変更のたびに一覧を取り直す。
// 失敗はログに出して捨て、直前の一覧を残す。
type ListController struct {
	api     API
	logger  *zap.Logger
	onError ErrorHook

	mu    sync.Mutex
	items []todo.Item
	draft string

	// 取得要求ごとの連番。applied より新しい応答だけを反映する。
	issued  uint64
	applied uint64
}

func NewListController(api API, logger *zap.Logger, opts ...Option) *ListController {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &ListController{
		api:    api,
		logger: logger,
		items:  []todo.Item{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Load は一覧を取り直す。
func (c *ListController) Load(ctx context.Context) {
	c.refresh(ctx)
}

// Add は draft が空白だけなら何もしない。
// それ以外は作成して draft を消し、一覧を取り直す。
func (c *ListController) Add(ctx context.Context) {
	c.mu.Lock()
	title := c.draft
	c.mu.Unlock()

	if strings.TrimSpace(title) == "" {
		return
	}

	if _, err := c.api.Create(ctx, title); err != nil {
		c.fail("add", err)
	}

	// 作成の成否にかかわらず、応答が返ってから消す
	c.mu.Lock()
	c.draft = ""
	c.mu.Unlock()

	c.refresh(ctx)
}

// Toggle は完了フラグを反転して保存する（title はそのまま送る）。
func (c *ListController) Toggle(ctx context.Context, item todo.Item) {
	if err := c.api.Update(ctx, item.ID, item.Title, !item.IsCompleted); err != nil {
		c.fail("toggle", err, zap.String("id", item.ID))
	}
	c.refresh(ctx)
}

func (c *ListController) Remove(ctx context.Context, id string) {
	if err := c.api.Delete(ctx, id); err != nil {
		c.fail("remove", err, zap.String("id", id))
	}
	c.refresh(ctx)
}

func (c *ListController) SetDraft(s string) {
	c.mu.Lock()
	c.draft = s
	c.mu.Unlock()
}

func (c *ListController) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	items := make([]todo.Item, len(c.items))
	copy(items, c.items)
	return State{Items: items, Draft: c.draft}
}

// Item は現在の一覧から id の Item を探す。
func (c *ListController) Item(id string) (todo.Item, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, it := range c.items {
		if it.ID == id {
			return it, true
		}
	}
	return todo.Item{}, false
}

func (c *ListController) refresh(ctx context.Context) {
	c.mu.Lock()
	c.issued++
	seq := c.issued
	c.mu.Unlock()

	items, err := c.api.List(ctx)
	if err != nil {
		c.fail("load", err)
		return
	}
	if items == nil {
		items = []todo.Item{}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if seq <= c.applied {
		c.logger.Debug("discard stale list",
			zap.Uint64("seq", seq),
			zap.Uint64("applied", c.applied),
		)
		return
	}
	c.items = items
	c.applied = seq
}

func (c *ListController) fail(op string, err error, fields ...zap.Field) {
	c.logger.Warn(op+" failed", append(fields, zap.Error(err))...)
	if c.onError != nil {
		c.onError(op, err)
	}
}
