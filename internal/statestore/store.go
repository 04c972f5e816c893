package statestore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/CopyPasteFail/articles-rss-to-podcast/internal/config"
	"github.com/CopyPasteFail/articles-rss-to-podcast/internal/logging"
	"github.com/CopyPasteFail/articles-rss-to-podcast/internal/services"
)

const apiBase = "https://api.cloudflare.com/client/v4/accounts"

const (
	putBaseDelay = 500 * time.Millisecond
	putMaxDelay  = 4 * time.Second
)

// Store reads and writes whole JSON state documents by key.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte) error
}

// Client is the Cloudflare KV implementation of Store.
type Client struct {
	baseURL       string
	accountID     string
	apiToken      string
	namespaceID   string
	namespaceName string
	retries       int
	client        *http.Client
	logger        *slog.Logger
	fallback      Fallback
	sleep         func(time.Duration)
}

// Fallback is the alternate write path used when the HTTP API exhausts its
// retries.
type Fallback interface {
	Put(ctx context.Context, namespaceID, key string, value []byte) error
}

// Option configures optional Client behavior.
type Option func(*Client)

// WithFallback installs an alternate write path (defaults to wrangler).
func WithFallback(fb Fallback) Option {
	return func(c *Client) { c.fallback = fb }
}

// WithSleep overrides the backoff sleeper (used in tests).
func WithSleep(fn func(time.Duration)) Option {
	return func(c *Client) { c.sleep = fn }
}

// WithBaseURL overrides the API endpoint (used in tests).
func WithBaseURL(base string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(base, "/") }
}

// NewClient builds a KV client from configuration.
func NewClient(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Client, error) {
	if cfg.KV.AccountID == "" || cfg.KV.APIToken == "" {
		return nil, services.Wrap(services.ErrConfiguration, "state", "init",
			"missing kv.account_id or kv.api_token", nil)
	}
	c := &Client{
		baseURL:       apiBase,
		accountID:     cfg.KV.AccountID,
		apiToken:      cfg.KV.APIToken,
		namespaceID:   cfg.KV.NamespaceID,
		namespaceName: cfg.KV.NamespaceName,
		retries:       cfg.KV.PutRetries,
		client:        &http.Client{Timeout: time.Duration(cfg.KV.TimeoutSeconds) * time.Second},
		logger:        logging.NewComponentLogger(logger, "statestore"),
		fallback:      NewWranglerFallback(cfg),
		sleep:         time.Sleep,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// EnsureNamespace resolves the namespace id by name, creating the namespace
// when it does not exist yet.
func (c *Client) EnsureNamespace(ctx context.Context) error {
	if c.namespaceID != "" {
		return nil
	}
	if c.namespaceName == "" {
		return services.Wrap(services.ErrConfiguration, "state", "namespace",
			"kv.namespace_id or kv.namespace_name required", nil)
	}

	id, err := c.findNamespace(ctx)
	if err != nil {
		return err
	}
	if id == "" {
		id, err = c.createNamespace(ctx)
		if err != nil {
			return err
		}
		c.logger.Info("created kv namespace",
			logging.String("namespace", c.namespaceName),
			logging.String("namespace_id", id))
	}
	c.namespaceID = id
	return nil
}

type namespaceResult struct {
	Result []struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	} `json:"result"`
}

func (c *Client) findNamespace(ctx context.Context) (string, error) {
	body, status, err := c.do(ctx, http.MethodGet, c.namespacesURL(), "", nil)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "state", "list namespaces", "", err)
	}
	if status != http.StatusOK {
		return "", services.Wrap(services.ErrTransient, "state", "list namespaces",
			fmt.Sprintf("status %d", status), nil)
	}
	var parsed namespaceResult
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("decode namespace list: %w", err)
	}
	for _, ns := range parsed.Result {
		if ns.Title == c.namespaceName {
			return ns.ID, nil
		}
	}
	return "", nil
}

func (c *Client) createNamespace(ctx context.Context) (string, error) {
	payload, _ := json.Marshal(map[string]string{"title": c.namespaceName})
	body, status, err := c.do(ctx, http.MethodPost, c.namespacesURL(), "application/json", payload)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "state", "create namespace", "", err)
	}
	if status != http.StatusOK {
		return "", services.Wrap(services.ErrConfiguration, "state", "create namespace",
			fmt.Sprintf("status %d: %s", status, snippet(body)), nil)
	}
	var parsed struct {
		Result struct {
			ID string `json:"id"`
		} `json:"result"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("decode namespace create: %w", err)
	}
	return parsed.Result.ID, nil
}

// Get fetches the JSON document stored under key. The boolean reports
// presence; a missing key is not an error.
func (c *Client) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := c.EnsureNamespace(ctx); err != nil {
		return nil, false, err
	}
	body, status, err := c.do(ctx, http.MethodGet, c.valueURL(key), "", nil)
	if err != nil {
		return nil, false, services.Wrap(services.ErrTransient, "state", "get", key, err)
	}
	switch status {
	case http.StatusOK:
		return body, true, nil
	case http.StatusNotFound:
		return nil, false, nil
	default:
		return nil, false, services.Wrap(services.ErrTransient, "state", "get",
			fmt.Sprintf("%s: status %d", key, status), nil)
	}
}

// Put stores a JSON document under key. Transient failures are retried with
// capped exponential backoff and jitter; when the HTTP path is exhausted the
// fallback writer gets one chance before the error is surfaced.
func (c *Client) Put(ctx context.Context, key string, value []byte) error {
	if err := c.EnsureNamespace(ctx); err != nil {
		return err
	}

	var lastErr error
	delay := putBaseDelay
	for attempt := 1; attempt <= c.retries; attempt++ {
		lastErr = c.putOnce(ctx, key, value)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if attempt < c.retries {
			wait := jitter(delay)
			c.logger.Warn("state put failed, backing off",
				logging.String("key", key),
				logging.Int("attempt", attempt),
				logging.Duration("backoff", wait),
				logging.Error(lastErr))
			c.sleep(wait)
			delay *= 2
			if delay > putMaxDelay {
				delay = putMaxDelay
			}
		}
	}

	if c.fallback != nil {
		c.logger.Warn("state put exhausted retries, trying fallback writer",
			logging.String("key", key), logging.Error(lastErr))
		if fbErr := c.fallback.Put(ctx, c.namespaceID, key, value); fbErr == nil {
			return nil
		} else {
			lastErr = fmt.Errorf("%w; fallback: %w", lastErr, fbErr)
		}
	}
	return services.Wrap(services.ErrTransient, "state", "put", key, lastErr)
}

func (c *Client) putOnce(ctx context.Context, key string, value []byte) error {
	body, status, err := c.do(ctx, http.MethodPut, c.valueURL(key), "application/json", value)
	if err != nil {
		return err
	}
	if status == http.StatusOK || status == http.StatusNoContent {
		return nil
	}
	return fmt.Errorf("status %d: %s", status, snippet(body))
}

func (c *Client) namespacesURL() string {
	return fmt.Sprintf("%s/%s/storage/kv/namespaces", c.baseURL, c.accountID)
}

func (c *Client) valueURL(key string) string {
	return fmt.Sprintf("%s/%s/values/%s", c.namespacesURL(), c.namespaceID, url.PathEscape(key))
}

func (c *Client) do(ctx context.Context, method, endpoint, contentType string, payload []byte) ([]byte, int, error) {
	var reader io.Reader
	if payload != nil {
		reader = strings.NewReader(string(payload))
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiToken)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	return body, resp.StatusCode, nil
}

func jitter(d time.Duration) time.Duration {
	// Uniform in [d/2, 3d/2) so concurrent feeds do not thunder in step.
	half := int64(d) / 2
	return time.Duration(half + rand.Int63n(int64(d)))
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
