// internal/infrastructure/memory/todo_repository.go
package memory

import (
	"context"
	"sync"

	domain_todo "github.com/hijjiri/todo-app/internal/domain/todo"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TodoRepository はプロセス内メモリの実装。テストと STORE_DRIVER=memory 用。
// 並びは挿入順。
type TodoRepository struct {
	mu    sync.Mutex
	order []string
	items map[string]domain_todo.Item
}

func NewTodoRepository() *TodoRepository {
	return &TodoRepository{
		items: make(map[string]domain_todo.Item),
	}
}

func (r *TodoRepository) List(ctx context.Context) ([]*domain_todo.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	todos := make([]*domain_todo.Item, 0, len(r.order))
	for _, id := range r.order {
		it := r.items[id]
		todos = append(todos, &it)
	}
	return todos, nil
}

func (r *TodoRepository) Get(ctx context.Context, id string) (*domain_todo.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	it, ok := r.items[id]
	if !ok {
		return nil, domain_todo.ErrNotFound
	}
	return &it, nil
}

func (r *TodoRepository) Create(ctx context.Context, t *domain_todo.Item) (*domain_todo.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	it := domain_todo.Item{
		ID:          primitive.NewObjectID().Hex(),
		Title:       t.Title,
		IsCompleted: t.IsCompleted,
	}
	r.items[it.ID] = it
	r.order = append(r.order, it.ID)
	return &it, nil
}

func (r *TodoRepository) Update(ctx context.Context, t *domain_todo.Item) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	it, ok := r.items[t.ID]
	if !ok {
		return false, nil
	}
	it.Title = t.Title
	it.IsCompleted = t.IsCompleted
	r.items[t.ID] = it
	return true, nil
}

func (r *TodoRepository) Delete(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[id]; !ok {
		return false, nil
	}
	delete(r.items, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true, nil
}

// Ping は常に成功する。
func (r *TodoRepository) Ping(ctx context.Context) error {
	return nil
}
