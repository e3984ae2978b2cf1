package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	domain_todo "github.com/hijjiri/todo-app/internal/domain/todo"
)

func TestMemory_CreateListDelete(t *testing.T) {
	repo := NewTodoRepository()
	ctx := context.Background()

	a, err := repo.Create(ctx, domain_todo.NewItem("A"))
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	b, err := repo.Create(ctx, &domain_todo.Item{Title: "B", IsCompleted: true})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if a.ID == b.ID {
		t.Fatalf("expected unique ids, got %q twice", a.ID)
	}

	list, _ := repo.List(ctx)
	if len(list) != 2 || list[0].ID != a.ID || list[1].ID != b.ID {
		t.Fatalf("expected [A B] in insertion order, got %#v", list)
	}

	ok, err := repo.Delete(ctx, a.ID)
	if err != nil || !ok {
		t.Fatalf("Delete: ok=%v err=%v", ok, err)
	}
	if _, err := repo.Get(ctx, a.ID); !errors.Is(err, domain_todo.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	list, _ = repo.List(ctx)
	if len(list) != 1 || list[0].ID != b.ID {
		t.Errorf("expected [B], got %#v", list)
	}
}

func TestMemory_ReturnedItemsAreCopies(t *testing.T) {
	repo := NewTodoRepository()
	ctx := context.Background()

	created, _ := repo.Create(ctx, domain_todo.NewItem("A"))
	created.Title = "mutated"

	got, err := repo.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if got.Title != "A" {
		t.Errorf("expected stored title to be unaffected, got %q", got.Title)
	}
}

func TestMemory_UpdateUnknown(t *testing.T) {
	repo := NewTodoRepository()

	ok, err := repo.Update(context.Background(), &domain_todo.Item{ID: "nope", Title: "x"})
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if ok {
		t.Errorf("expected ok=false for unknown id")
	}
}

func TestMemory_ConcurrentCreates(t *testing.T) {
	repo := NewTodoRepository()
	ctx := context.Background()

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = repo.Create(ctx, domain_todo.NewItem("x"))
		}()
	}
	wg.Wait()

	list, _ := repo.List(ctx)
	if len(list) != n {
		t.Errorf("expected %d items, got %d", n, len(list))
	}
}
