package runtime

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Iron-Ham/testrun/internal/errors"
)

const defaultTimeout = 15 * time.Second

// HTTPClient implements Client against a runtime server's REST API.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// HTTPOption configures an HTTPClient.
type HTTPOption func(*HTTPClient)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(h *HTTPClient) {
		h.client = c
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) HTTPOption {
	return func(h *HTTPClient) {
		if d > 0 {
			h.client.Timeout = d
		}
	}
}

// NewHTTPClient creates a client for the runtime server at baseURL.
func NewHTTPClient(baseURL string, opts ...HTTPOption) (*HTTPClient, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, errors.NewValidationError("runtime base URL must be absolute").
			WithField("runtime.base_url").
			WithValue(baseURL)
	}

	h := &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// TaskValidate implements Client.
func (h *HTTPClient) TaskValidate(ctx context.Context, in TaskValidateInput) (*TaskValidateOutput, error) {
	var out TaskValidateOutput
	if err := h.do(ctx, "TaskValidate", http.MethodPost, "/api/task/validate", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// TaskRun implements Client.
func (h *HTTPClient) TaskRun(ctx context.Context, in TaskRunInput) (*TaskRunOutput, error) {
	var out TaskRunOutput
	if err := h.do(ctx, "TaskRun", http.MethodPost, "/api/task/run", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// TaskReport implements Client. An empty response body yields a nil report.
func (h *HTTPClient) TaskReport(ctx context.Context, in TaskReportInput) (*TaskReportOutput, error) {
	path := "/api/task/report?taskID=" + url.QueryEscape(in.TaskID)
	var out *TaskReportOutput
	if err := h.do(ctx, "TaskReport", http.MethodGet, path, nil, &out); err != nil {
		var rtErr *errors.RuntimeError
		if errors.As(err, &rtErr) {
			rtErr.WithTaskID(in.TaskID)
		}
		return nil, err
	}
	return out, nil
}

// TaskCancel implements Client.
func (h *HTTPClient) TaskCancel(ctx context.Context, in TaskCancelInput) error {
	err := h.do(ctx, "TaskCancel", http.MethodPut, "/api/task/cancel", in, nil)
	var rtErr *errors.RuntimeError
	if errors.As(err, &rtErr) {
		rtErr.WithTaskID(in.TaskID)
	}
	return err
}

func (h *HTTPClient) do(ctx context.Context, op, method, path string, body, target any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encoding request: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, h.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%s: creating request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return errors.NewRuntimeError(op, fmt.Errorf("executing request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return errors.NewRuntimeError(op, fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(msg)))).
			WithStatusCode(resp.StatusCode)
	}
	if target == nil {
		return nil
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.NewRuntimeError(op, fmt.Errorf("reading response: %w", err))
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, target); err != nil {
		return errors.NewRuntimeError(op, fmt.Errorf("decoding response: %w", err)).WithStatusCode(resp.StatusCode)
	}
	return nil
}
