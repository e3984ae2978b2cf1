package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hijjiri/todo-app/internal/client"
	"github.com/hijjiri/todo-app/internal/config"
	"github.com/hijjiri/todo-app/internal/domain/todo"
	"github.com/hijjiri/todo-app/internal/tui"
	"github.com/hijjiri/todo-app/internal/view"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.LoadClient()

	logger, err := newLogger(cfg.LogFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to init logger:", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := newRootCmd(cfg, logger).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// TUI が端末を使うので、ログはファイルにだけ出す（未指定なら捨てる）。
func newLogger(path string) (*zap.Logger, error) {
	if path == "" {
		return zap.NewNop(), nil
	}
	zcfg := zap.NewProductionConfig()
	zcfg.OutputPaths = []string{path}
	zcfg.ErrorOutputPaths = []string{path}
	return zcfg.Build()
}

// app は各サブコマンドで共有する controller とエラー記録。
type app struct {
	apiURL string
	logger *zap.Logger

	api  *client.Client
	ctrl *view.ListController

	// hook は controller の呼び出し元 goroutine から呼ばれる
	mu   sync.Mutex
	errs []error
}

func (a *app) init() error {
	c, err := client.New(a.apiURL, client.WithLogger(a.logger))
	if err != nil {
		return err
	}
	a.api = c
	a.ctrl = view.NewListController(c, a.logger, view.WithErrorHook(a.record))
	return nil
}

func (a *app) record(op string, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.errs = append(a.errs, fmt.Errorf("%s: %w", op, err))
}

// failed は controller が握りつぶしたエラーをまとめて返す。
func (a *app) failed() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return errors.Join(a.errs...)
}

func newRootCmd(cfg config.ClientConfig, logger *zap.Logger) *cobra.Command {
	a := &app{logger: logger}

	root := &cobra.Command{
		Use:          "todo",
		Short:        "Manage todo items over the REST API",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return tui.Run(cmd.Context(), a.ctrl)
		},
	}
	root.PersistentFlags().StringVar(&a.apiURL, "api-url", cfg.APIURL, "API base URL (or set TODO_API_URL env)")

	root.AddCommand(
		&cobra.Command{
			Use:   "tui",
			Short: "Open the interactive list",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return tui.Run(cmd.Context(), a.ctrl)
			},
		},
		&cobra.Command{
			Use:     "ls",
			Aliases: []string{"list"},
			Short:   "List all items",
			Args:    cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				a.ctrl.Load(cmd.Context())
				if err := a.failed(); err != nil {
					return err
				}
				printItems(cmd.OutOrStdout(), a.ctrl.Snapshot().Items)
				return nil
			},
		},
		&cobra.Command{
			Use:   "add <title...>",
			Short: "Add an item",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				title := strings.Join(args, " ")
				if strings.TrimSpace(title) == "" {
					return errors.New("title is empty")
				}
				a.ctrl.SetDraft(title)
				a.ctrl.Add(cmd.Context())
				return a.finish(cmd)
			},
		},
		&cobra.Command{
			Use:   "done <id>",
			Short: "Toggle the completed flag of an item",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				a.ctrl.Load(cmd.Context())
				if err := a.failed(); err != nil {
					return err
				}
				it, ok := a.ctrl.Item(args[0])
				if !ok {
					return fmt.Errorf("no item with id %q", args[0])
				}
				a.ctrl.Toggle(cmd.Context(), it)
				return a.finish(cmd)
			},
		},
		&cobra.Command{
			Use:     "rm <id>",
			Aliases: []string{"delete"},
			Short:   "Remove an item",
			Args:    cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				a.ctrl.Remove(cmd.Context(), args[0])
				return a.finish(cmd)
			},
		},
		&cobra.Command{
			Use:   "get <id>",
			Short: "Show one item",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				it, err := a.api.Get(cmd.Context(), args[0])
				if client.IsNotFound(err) {
					return fmt.Errorf("no item with id %q", args[0])
				}
				if err != nil {
					return err
				}
				printItems(cmd.OutOrStdout(), []todo.Item{*it})
				return nil
			},
		},
	)

	return root
}

// finish は変更後の一覧を出し、途中のエラーがあれば返す。
func (a *app) finish(cmd *cobra.Command) error {
	printItems(cmd.OutOrStdout(), a.ctrl.Snapshot().Items)
	return a.failed()
}

func printItems(w io.Writer, items []todo.Item) {
	if len(items) == 0 {
		fmt.Fprintln(w, "no todos")
		return
	}
	for _, it := range items {
		box := "[ ]"
		if it.IsCompleted {
			box = "[x]"
		}
		fmt.Fprintf(w, "%s %s  %s\n", box, it.ID, it.Title)
	}
}
