package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	domain_todo "github.com/hijjiri/todo-app/internal/domain/todo"
	"github.com/hijjiri/todo-app/internal/infrastructure/retry"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// TodoRepository は todos テーブルに対する domain_todo.Repository 実装。
// MySQL / SQLite どちらもプレースホルダは ? なので SQL は共通。
type TodoRepository struct {
	db        *sql.DB
	logger    *zap.Logger
	readRetry retry.Policy
}

func NewTodoRepository(db *sql.DB, logger *zap.Logger, readRetry retry.Policy) *TodoRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TodoRepository{
		db:        db,
		logger:    logger,
		readRetry: readRetry,
	}
}

// List は挿入順（seq）で全件取得する。
func (r *TodoRepository) List(ctx context.Context) ([]*domain_todo.Item, error) {
	var items []*domain_todo.Item

	err := retry.Do(ctx, r.readRetry, retry.IsTransient, func() error {
		rows, err := r.db.QueryContext(ctx, "SELECT id, title, is_completed FROM todos ORDER BY seq")
		if err != nil {
			return err
		}
		defer rows.Close()

		items = items[:0]
		for rows.Next() {
			var it domain_todo.Item
			if err := rows.Scan(&it.ID, &it.Title, &it.IsCompleted); err != nil {
				return err
			}
			items = append(items, &it)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("select todos: %w", err)
	}
	return items, nil
}

// Get は id 完全一致で 1 件取得する。
func (r *TodoRepository) Get(ctx context.Context, id string) (*domain_todo.Item, error) {
	var it domain_todo.Item

	err := retry.Do(ctx, r.readRetry, retry.IsTransient, func() error {
		return r.db.QueryRowContext(ctx,
			"SELECT id, title, is_completed FROM todos WHERE id = ?", id,
		).Scan(&it.ID, &it.Title, &it.IsCompleted)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain_todo.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select todo: %w", err)
	}
	return &it, nil
}

// Create は ObjectID 形式の ID をアプリ側で振って INSERT する。
// Mongo バックエンドと ID の見た目を揃えるため。
func (r *TodoRepository) Create(ctx context.Context, it *domain_todo.Item) (*domain_todo.Item, error) {
	created := &domain_todo.Item{
		ID:          primitive.NewObjectID().Hex(),
		Title:       it.Title,
		IsCompleted: it.IsCompleted,
	}

	_, err := r.db.ExecContext(ctx,
		"INSERT INTO todos (id, title, is_completed) VALUES (?, ?, ?)",
		created.ID, created.Title, created.IsCompleted,
	)
	if err != nil {
		return nil, fmt.Errorf("insert todo: %w", err)
	}
	return created, nil
}

// Update は title / is_completed を置き換え、一致件数 > 0 なら true。
func (r *TodoRepository) Update(ctx context.Context, it *domain_todo.Item) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		"UPDATE todos SET title = ?, is_completed = ? WHERE id = ?",
		it.Title, it.IsCompleted, it.ID,
	)
	if err != nil {
		return false, fmt.Errorf("update todo: %w", err)
	}
	return affected(res)
}

// Delete は削除件数 > 0 なら true を返す
func (r *TodoRepository) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM todos WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("delete todo: %w", err)
	}
	return affected(res)
}

// Ping は DB への疎通確認。
func (r *TodoRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func affected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}
