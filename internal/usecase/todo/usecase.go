package todo_usecase

import (
	"context"
	"fmt"

	domain_todo "github.com/hijjiri/todo-app/internal/domain/todo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ===== エラー定数（Handler側からも使う） =====
// ドメイン側の sentinel をそのまま公開する。errors.Is で判定すること。

var (
	ErrEmptyTitle = domain_todo.ErrEmptyTitle
	ErrInvalidID  = domain_todo.ErrInvalidID
	ErrNotFound   = domain_todo.ErrNotFound
)

// ===== 外部に公開する Usecase インターフェース =====

type Usecase interface {
	List(ctx context.Context) ([]*domain_todo.Item, error)
	Get(ctx context.Context, id string) (*domain_todo.Item, error)
	Create(ctx context.Context, title string) (*domain_todo.Item, error)
	Update(ctx context.Context, id, title string, isCompleted bool) error
	Delete(ctx context.Context, id string) error
}

// Option は usecase の挙動を調整する。
type Option func(*usecase)

// WithTitlePolicy はタイトル検証ルールを差し替える（既定は検証なし）。
func WithTitlePolicy(p domain_todo.TitlePolicy) Option {
	return func(u *usecase) {
		u.policy = p
	}
}

// ===== 実装 =====

type usecase struct {
	repo   domain_todo.Repository
	logger *zap.Logger
	policy domain_todo.TitlePolicy
	tracer trace.Tracer
}

func New(repo domain_todo.Repository, logger *zap.Logger, opts ...Option) Usecase {
	if logger == nil {
		logger = zap.NewNop()
	}
	u := &usecase{
		repo:   repo,
		logger: logger,
		tracer: otel.Tracer("github.com/hijjiri/todo-app/internal/usecase/todo"),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// List ユースケース
// 0 件でも nil ではなく空 slice を返す（JSON で [] になるように）。
func (u *usecase) List(ctx context.Context) ([]*domain_todo.Item, error) {
	ctx, span := u.tracer.Start(ctx, "todo.List")
	defer span.End()

	items, err := u.repo.List(ctx)
	if err != nil {
		return nil, u.fail(span, fmt.Errorf("list todos: %w", err))
	}
	if items == nil {
		items = []*domain_todo.Item{}
	}
	span.SetAttributes(attribute.Int("todo.count", len(items)))
	return items, nil
}

// Get ユースケース
func (u *usecase) Get(ctx context.Context, id string) (*domain_todo.Item, error) {
	ctx, span := u.tracer.Start(ctx, "todo.Get", trace.WithAttributes(attribute.String("todo.id", id)))
	defer span.End()

	if err := domain_todo.ValidateID(id); err != nil {
		return nil, err
	}

	item, err := u.repo.Get(ctx, id)
	if err != nil {
		return nil, u.fail(span, err)
	}
	return item, nil
}

// Create ユースケース
// isCompleted はリクエストに何が入っていても false で作る。
func (u *usecase) Create(ctx context.Context, title string) (*domain_todo.Item, error) {
	ctx, span := u.tracer.Start(ctx, "todo.Create")
	defer span.End()

	if err := u.policy.Validate(title); err != nil {
		return nil, err
	}

	created, err := u.repo.Create(ctx, domain_todo.NewItem(title))
	if err != nil {
		return nil, u.fail(span, fmt.Errorf("create todo: %w", err))
	}

	span.SetAttributes(attribute.String("todo.id", created.ID))
	u.logger.Debug("todo created", zap.String("id", created.ID))
	return created, nil
}

// Update ユースケース
// title と isCompleted を丸ごと置き換える。一致件数 0 なら ErrNotFound。
func (u *usecase) Update(ctx context.Context, id, title string, isCompleted bool) error {
	ctx, span := u.tracer.Start(ctx, "todo.Update", trace.WithAttributes(attribute.String("todo.id", id)))
	defer span.End()

	if err := domain_todo.ValidateID(id); err != nil {
		return err
	}
	if err := u.policy.Validate(title); err != nil {
		return err
	}

	ok, err := u.repo.Update(ctx, &domain_todo.Item{
		ID:          id,
		Title:       title,
		IsCompleted: isCompleted,
	})
	if err != nil {
		return u.fail(span, fmt.Errorf("update todo: %w", err))
	}
	if !ok {
		return ErrNotFound
	}

	u.logger.Debug("todo updated", zap.String("id", id), zap.Bool("is_completed", isCompleted))
	return nil
}

// Delete ユースケース
func (u *usecase) Delete(ctx context.Context, id string) error {
	ctx, span := u.tracer.Start(ctx, "todo.Delete", trace.WithAttributes(attribute.String("todo.id", id)))
	defer span.End()

	if err := domain_todo.ValidateID(id); err != nil {
		return err
	}

	ok, err := u.repo.Delete(ctx, id)
	if err != nil {
		return u.fail(span, fmt.Errorf("delete todo: %w", err))
	}
	if !ok {
		return ErrNotFound
	}

	u.logger.Debug("todo deleted", zap.String("id", id))
	return nil
}

// NotFound は業務上の結果なので span をエラー扱いにしない。
func (u *usecase) fail(span trace.Span, err error) error {
	if err != nil && !isNotFound(err) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
