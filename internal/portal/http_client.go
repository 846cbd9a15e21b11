package portal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"quill/internal/config"
)

// HTTPDoer describes the HTTP client used by the portal service.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type httpClient struct {
	baseURL string
	token   string
	client  HTTPDoer
}

// NewHTTPClient constructs a portal client from configuration. A request
// timeout is enforced at the HTTP client level; a timed-out call is treated
// as a transient failure, never as success.
func NewHTTPClient(cfg *config.Config) (Client, error) {
	if cfg == nil || strings.TrimSpace(cfg.Portal.BaseURL) == "" {
		return nil, errors.New("portal.base_url is not configured")
	}
	timeout := time.Duration(cfg.Portal.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &httpClient{
		baseURL: strings.TrimRight(strings.TrimSpace(cfg.Portal.BaseURL), "/"),
		token:   strings.TrimSpace(cfg.Portal.APIToken),
		client:  &http.Client{Timeout: timeout},
	}, nil
}

// NewHTTPClientWithDoer constructs a portal client around a caller-supplied
// HTTP client (used in tests).
func NewHTTPClientWithDoer(baseURL, token string, doer HTTPDoer) Client {
	return &httpClient{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		token:   strings.TrimSpace(token),
		client:  doer,
	}
}

type submitResponse struct {
	RecordID string `json:"record_id"`
	Detail   string `json:"detail"`
}

func (c *httpClient) Submit(ctx context.Context, req SubmitRequest) (SubmitResult, error) {
	endpoint := c.baseURL + "/submissions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(req.Payload))
	if err != nil {
		return SubmitResult{}, fmt.Errorf("build submit request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Idempotency-Key", req.IdempotencyKey)
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		if isTimeout(err) {
			return SubmitResult{}, fmt.Errorf("%w: request timed out: %w", ErrTransient, err)
		}
		return SubmitResult{}, fmt.Errorf("%w: %w", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if readErr != nil {
		return SubmitResult{}, fmt.Errorf("%w: read response: %w", ErrTransient, readErr)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		var parsed submitResponse
		if err := json.Unmarshal(body, &parsed); err != nil {
			return SubmitResult{}, fmt.Errorf("%w: decode response: %w", ErrTransient, err)
		}
		if parsed.RecordID == "" {
			// A response without an explicit record ID is not confirmation
			// of success; retry rather than assume the record landed.
			return SubmitResult{}, fmt.Errorf("%w: success response missing record_id", ErrTransient)
		}
		return SubmitResult{PortalRecordID: parsed.RecordID}, nil
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return SubmitResult{}, fmt.Errorf("%w: portal returned %d", ErrTransient, resp.StatusCode)
	default:
		detail := strings.TrimSpace(string(body))
		var parsed submitResponse
		if err := json.Unmarshal(body, &parsed); err == nil && parsed.Detail != "" {
			detail = parsed.Detail
		}
		return SubmitResult{}, &RejectionError{StatusCode: resp.StatusCode, Detail: detail}
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var timeouter interface{ Timeout() bool }
	return errors.As(err, &timeouter) && timeouter.Timeout()
}
