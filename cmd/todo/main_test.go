package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hijjiri/todo-app/internal/config"
	"github.com/hijjiri/todo-app/internal/domain/todo"
	"github.com/hijjiri/todo-app/internal/infrastructure/memory"
	httpadapter "github.com/hijjiri/todo-app/internal/interface/http"
	todo_usecase "github.com/hijjiri/todo-app/internal/usecase/todo"
)

func newAPIServer(t *testing.T) (string, *memory.TodoRepository) {
	t.Helper()

	repo := memory.NewTodoRepository()
	uc := todo_usecase.New(repo, zap.NewNop())
	router, err := httpadapter.NewRouter(httpadapter.NewTodoHandler(uc, zap.NewNop()), zap.NewNop(), httpadapter.RouterConfig{})
	require.NoError(t, err)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv.URL, repo
}

func execute(t *testing.T, apiURL string, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCmd(config.ClientConfig{APIURL: apiURL}, zap.NewNop())
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCLI_AddListDoneRemove(t *testing.T) {
	url, repo := newAPIServer(t)

	out, err := execute(t, url, "ls")
	require.NoError(t, err)
	assert.Contains(t, out, "no todos")

	out, err = execute(t, url, "add", "buy", "milk")
	require.NoError(t, err)
	assert.Contains(t, out, "[ ]")
	assert.Contains(t, out, "buy milk")

	items, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	id := items[0].ID

	out, err = execute(t, url, "done", id)
	require.NoError(t, err)
	assert.Contains(t, out, "[x] "+id)

	out, err = execute(t, url, "get", id)
	require.NoError(t, err)
	assert.Contains(t, out, "buy milk")

	out, err = execute(t, url, "rm", id)
	require.NoError(t, err)
	assert.Contains(t, out, "no todos")
}

func TestCLI_Errors(t *testing.T) {
	url, _ := newAPIServer(t)

	_, err := execute(t, url, "done", "missing")
	assert.Error(t, err)

	_, err = execute(t, url, "get", "missing")
	assert.Error(t, err)

	// 存在しない id の削除は 404 を受けてエラー終了する
	_, err = execute(t, url, "rm", "missing")
	assert.Error(t, err)

	_, err = execute(t, url, "add", "  ")
	assert.Error(t, err)
}

func TestCLI_UnreachableServer(t *testing.T) {
	srv := httptest.NewServer(nil)
	url := srv.URL
	srv.Close()

	out, err := execute(t, url, "ls")
	assert.Error(t, err)
	assert.False(t, strings.Contains(out, "no todos"))
}

func TestApp_ConcurrentFailuresAreCollected(t *testing.T) {
	srv := httptest.NewServer(nil)
	url := srv.URL
	srv.Close()

	a := &app{apiURL: url, logger: zap.NewNop()}
	require.NoError(t, a.init())

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.ctrl.Toggle(context.Background(), todo.Item{ID: "x", Title: "x"})
		}()
	}
	wg.Wait()

	err := a.failed()
	require.Error(t, err)

	// toggle と再取得の load で 1 回につき 2 件
	joined, ok := err.(interface{ Unwrap() []error })
	require.True(t, ok)
	assert.Len(t, joined.Unwrap(), 2*n)
}
