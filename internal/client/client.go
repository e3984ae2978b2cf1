package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hijjiri/todo-app/internal/domain/todo"
)

// DefaultBaseURL は base URL 未指定時の接続先。
const DefaultBaseURL = "http://localhost:5000"

const todosPath = "/todos"

// HTTPError は 2xx 以外の応答。
type HTTPError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPError) Error() string {
	msg := fmt.Sprintf("todo api: %d %s", e.StatusCode, e.Status)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// IsNotFound は err が 404 応答かどうか。
func IsNotFound(err error) bool {
	var he *HTTPError
	return errors.As(err, &he) && he.StatusCode == http.StatusNotFound
}

// NormalizeBaseURL は末尾の "/" を落とし、"/api" で終わっていなければ付け足す。
// 空なら DefaultBaseURL を使う。
func NormalizeBaseURL(base string) string {
	b := strings.TrimRight(strings.TrimSpace(base), "/")
	if b == "" {
		b = DefaultBaseURL
	}
	if !strings.HasSuffix(b, "/api") {
		b += "/api"
	}
	return b
}

type Client struct {
	baseURL  string
	http     *http.Client
	logger   *zap.Logger
	validate bool
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithSchemaValidation は応答 JSON のスキーマ検証を切り替える（既定 on）。
func WithSchemaValidation(on bool) Option {
	return func(c *Client) { c.validate = on }
}

func New(baseURL string, opts ...Option) (*Client, error) {
	c := &Client{
		baseURL:  NormalizeBaseURL(baseURL),
		http:     http.DefaultClient,
		logger:   zap.NewNop(),
		validate: true,
	}
	for _, opt := range opts {
		opt(c)
	}

	if !strings.HasPrefix(c.baseURL, "http://") && !strings.HasPrefix(c.baseURL, "https://") {
		return nil, fmt.Errorf("base url must be http(s): %q", baseURL)
	}
	if c.validate {
		if _, err := loadSchemas(); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// BaseURL は正規化済みの base URL を返す。
func (c *Client) BaseURL() string {
	return c.baseURL
}

type itemBody struct {
	Title       string `json:"title"`
	IsCompleted bool   `json:"isCompleted"`
}

// List は全件を返す。空でも nil ではなく空スライス。
func (c *Client) List(ctx context.Context) ([]todo.Item, error) {
	var items []todo.Item
	if err := c.do(ctx, http.MethodGet, todosPath, nil, &items, schemaItemList); err != nil {
		return nil, err
	}
	if items == nil {
		items = []todo.Item{}
	}
	return items, nil
}

func (c *Client) Get(ctx context.Context, id string) (*todo.Item, error) {
	var it todo.Item
	if err := c.do(ctx, http.MethodGet, itemPath(id), nil, &it, schemaItem); err != nil {
		return nil, err
	}
	return &it, nil
}

// Create は isCompleted=false で作成する。
func (c *Client) Create(ctx context.Context, title string) (*todo.Item, error) {
	var it todo.Item
	body := itemBody{Title: title, IsCompleted: false}
	if err := c.do(ctx, http.MethodPost, todosPath, body, &it, schemaItem); err != nil {
		return nil, err
	}
	return &it, nil
}

func (c *Client) Update(ctx context.Context, id, title string, isCompleted bool) error {
	body := itemBody{Title: title, IsCompleted: isCompleted}
	return c.do(ctx, http.MethodPut, itemPath(id), body, nil, "")
}

func (c *Client) Delete(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, itemPath(id), nil, nil, "")
}

func itemPath(id string) string {
	return todosPath + "/" + url.PathEscape(id)
}

// do は 1 リクエスト分の送受信。
//   - 2xx 以外 → *HTTPError（body は読めた分だけ）
//   - 204 → デコードしない
//   - それ以外 → schema 検証（有効時）のあと out にデコード
func (c *Client) do(ctx context.Context, method, path string, in, out any, schema string) error {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	endpoint := c.baseURL + path

	var reqBody io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("request failed",
			zap.String("method", method),
			zap.String("url", endpoint),
			zap.Error(err),
		)
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("request done",
		zap.String("method", method),
		zap.String("url", endpoint),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// 二次的な読み取りエラーは捨てる
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return &HTTPError{
			StatusCode: resp.StatusCode,
			Status:     statusText(resp),
			Body:       string(b),
		}
	}

	if resp.StatusCode == http.StatusNoContent || out == nil {
		return nil
	}

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s %s: read body: %w", method, path, err)
	}

	if c.validate && schema != "" {
		if err := validateBody(schema, b); err != nil {
			return err
		}
	}

	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("%s %s: decode body: %w", method, path, err)
	}
	return nil
}

// statusText は "404 Not Found" から reason phrase だけを取り出す。
func statusText(resp *http.Response) string {
	s := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if s == "" {
		s = http.StatusText(resp.StatusCode)
	}
	return s
}
