package v1

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const ClientIDHeader = "X-Client-ID"

type Response struct {
	StatusCode int
	Header     http.Header
	Data       []byte
}

// Redirected reports whether the backend answered with a 3xx.
func (r *Response) Redirected() bool {
	return r.StatusCode >= 300 && r.StatusCode < 400
}

// APIError is returned for any response with a status outside 2xx. Message holds
// the server supplied message when the body carried one.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s %s failed with status code %d", e.Method, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("%s %s failed with status code %d: %s", e.Method, e.Path, e.StatusCode, e.Message)
}

// Transport handles low-level HTTP against the work-log backend
type Transport struct {
	BaseURL  string
	ClientID string

	client *resty.Client
	// stream has no overall timeout; the event stream stays open indefinitely.
	stream *resty.Client
	logger *zap.Logger
}

type TransportOption func(*Transport)

func WithTimeout(d time.Duration) TransportOption {
	return func(t *Transport) {
		t.client.SetTimeout(d)
	}
}

func WithLogger(l *zap.Logger) TransportOption {
	return func(t *Transport) {
		if l != nil {
			t.logger = l
		}
	}
}

// WithHTTPClient replaces the underlying http.Client, used by tests to reach an
// httptest server.
func WithHTTPClient(hc *http.Client) TransportOption {
	return func(t *Transport) {
		timeout := t.client.GetClient().Timeout
		main, stream := *hc, *hc
		stream.Timeout = 0
		t.client = newRestyClient(resty.NewWithClient(&main), t.BaseURL, t.ClientID).SetTimeout(timeout)
		t.stream = newRestyClient(resty.NewWithClient(&stream), t.BaseURL, t.ClientID)
	}
}

// NewTransport creates a transport with base URL and the per-session client id
func NewTransport(baseURL, clientID string, opts ...TransportOption) *Transport {
	baseURL = strings.TrimRight(baseURL, "/")
	t := &Transport{
		BaseURL:  baseURL,
		ClientID: clientID,
		client:   newRestyClient(resty.New(), baseURL, clientID).SetTimeout(30 * time.Second),
		stream:   newRestyClient(resty.New(), baseURL, clientID),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func newRestyClient(c *resty.Client, baseURL, clientID string) *resty.Client {
	return c.
		SetBaseURL(baseURL).
		SetHeader("Accept", "application/json").
		SetHeader(ClientIDHeader, clientID).
		SetRedirectPolicy(resty.RedirectPolicyFunc(func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}))
}

func (t *Transport) request(ctx context.Context) *resty.Request {
	return t.client.R().SetContext(ctx)
}

func (t *Transport) do(req *resty.Request, method, path string) (*Response, error) {
	start := time.Now()
	resp, err := req.Execute(method, path)
	if err != nil {
		t.logger.Debug("request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}

	t.logger.Debug("request completed",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status_code", resp.StatusCode()),
		zap.Duration("elapsed", time.Since(start)),
	)

	out := &Response{StatusCode: resp.StatusCode(), Header: resp.Header(), Data: resp.Body()}
	if resp.StatusCode() >= 400 {
		return nil, &APIError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode(),
			Message:    extractMessage(resp.Body()),
		}
	}
	return out, nil
}

// extractMessage pulls "message" (or "error") out of a JSON body, otherwise
// returns the trimmed body text.
func extractMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 || strings.HasPrefix(msg, "<") || strings.HasPrefix(msg, "{") {
		return ""
	}
	return msg
}

// Get sends a GET request
func (t *Transport) Get(ctx context.Context, path string, query map[string]string) (*Response, error) {
	return t.do(t.request(ctx).SetQueryParams(query), http.MethodGet, path)
}

// Post sends a POST request with JSON body
func (t *Transport) Post(ctx context.Context, path string, data any) (*Response, error) {
	req := t.request(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(data)
	return t.do(req, http.MethodPost, path)
}

// Put sends a PUT request with JSON body
func (t *Transport) Put(ctx context.Context, path string, data any) (*Response, error) {
	req := t.request(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(data)
	return t.do(req, http.MethodPut, path)
}

func (t *Transport) Delete(ctx context.Context, path string) (*Response, error) {
	return t.do(t.request(ctx), http.MethodDelete, path)
}

// Upload sends a multipart form with a single file part.
func (t *Transport) Upload(ctx context.Context, path, field, filename string, r io.Reader, form map[string]string) (*Response, error) {
	req := t.request(ctx).
		SetFileReader(field, filename, r).
		SetFormData(form)
	return t.do(req, http.MethodPost, path)
}

// Stream opens a long-lived GET and hands the raw body to the caller, who must
// close it. The request is bound to ctx; cancelling ctx ends the stream.
func (t *Transport) Stream(ctx context.Context, path string, headers map[string]string) (io.ReadCloser, error) {
	resp, err := t.stream.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetHeader("Accept", "text/event-stream").
		SetHeader("Cache-Control", "no-cache").
		SetDoNotParseResponse(true).
		Get(path)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}

	body := resp.RawBody()
	if resp.StatusCode() >= 300 {
		var msg string
		if body != nil {
			b, _ := io.ReadAll(io.LimitReader(body, 4096))
			body.Close()
			msg = extractMessage(b)
		}
		return nil, &APIError{Method: http.MethodGet, Path: path, StatusCode: resp.StatusCode(), Message: msg}
	}
	if body == nil {
		return nil, fmt.Errorf("GET %s: %w", path, errors.New("empty response body"))
	}
	return body, nil
}
