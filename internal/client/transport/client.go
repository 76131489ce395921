package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/common"
	"github.com/sethvargo/go-retry"
)

// RetryPolicy bounds how idempotent requests are retried.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

func (p RetryPolicy) backoff() retry.Backoff {
	base := p.BaseDelay
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	b := retry.NewExponential(base)
	if p.MaxDelay > 0 {
		b = retry.WithCappedDuration(p.MaxDelay, b)
	}
	n := p.MaxRetries
	if n < 0 {
		n = 0
	}
	return retry.WithMaxRetries(uint64(n), b)
}

// apiClient performs authenticated JSON requests against the sync server.
type apiClient struct {
	baseURL  string
	username string
	password string
	timeout  time.Duration
	retry    RetryPolicy
	http     *http.Client
}

func newAPIClient(baseURL, username, password string, timeout time.Duration, policy RetryPolicy) *apiClient {
	return &apiClient{
		baseURL:  strings.TrimRight(baseURL, "/"),
		username: username,
		password: password,
		timeout:  timeout,
		retry:    policy,
		http: &http.Client{
			// a redirect means the credentials were bounced to a login page
			CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
		},
	}
}

// getJSON issues an idempotent GET, retrying connectivity, timeout and
// server failures, and decodes the response into v.
func (c *apiClient) getJSON(ctx context.Context, path string, v any) error {
	body, err := c.get(ctx, path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: GET %s: %w", common.ErrProtocol, path, err)
	}
	return nil
}

func (c *apiClient) get(ctx context.Context, path string) ([]byte, error) {
	var body []byte
	err := retry.Do(ctx, c.retry.backoff(), func(ctx context.Context) error {
		b, err := c.do(ctx, http.MethodGet, path, nil)
		if err != nil {
			if transient(err) && ctx.Err() == nil {
				return retry.RetryableError(err)
			}
			return err
		}
		body = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

// postJSON sends body once and decodes the response into v.
func (c *apiClient) postJSON(ctx context.Context, path string, body, v any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal %s body: %w", path, err)
	}
	resp, err := c.do(ctx, http.MethodPost, path, payload)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(resp, v); err != nil {
		return fmt.Errorf("%w: POST %s: %w", common.ErrProtocol, path, err)
	}
	return nil
}

// do performs a single attempt and maps failures onto the common taxonomy.
func (c *apiClient) do(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/"+strings.TrimLeft(path, "/"), reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Accept", common.ContentTypeJSON)
	if payload != nil {
		req.Header.Set("Content-Type", common.ContentTypeJSON)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, classifyNetError(method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyNetError(method, path, err)
	}

	switch {
	case resp.StatusCode >= 300 && resp.StatusCode < 400:
		return nil, fmt.Errorf("%w: %s %s redirected to %q", common.ErrUnauthorized, method, path, resp.Header.Get("Location"))
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: %s %s: %s", common.ErrUnauthorized, method, path, resp.Status)
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: %s %s: %s", common.ErrServer, method, path, resp.Status)
	case resp.StatusCode >= 400:
		return nil, fmt.Errorf("%w: %s %s: %s", common.ErrProtocol, method, path, resp.Status)
	}
	return body, nil
}

func classifyNetError(method, path string, err error) error {
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return fmt.Errorf("%w: %s %s: %w", common.ErrTimeout, method, path, err)
	}
	return fmt.Errorf("%w: %s %s: %w", common.ErrConnectivity, method, path, err)
}

func transient(err error) bool {
	return errors.Is(err, common.ErrConnectivity) || errors.Is(err, common.ErrTimeout) || errors.Is(err, common.ErrServer)
}
