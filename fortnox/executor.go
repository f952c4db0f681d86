package fortnox

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

	"github.com/rs/zerolog"
)

// expectedStatus maps a verb to the only status that counts as success
var expectedStatus = map[string]int{
	http.MethodGet:    http.StatusOK,
	http.MethodPost:   http.StatusCreated,
	http.MethodPut:    http.StatusOK,
	http.MethodDelete: http.StatusNoContent,
}

// statusAccepted reports whether status satisfies the expectation for method.
// Verbs without an entry only fail on 4xx and 5xx.
func statusAccepted(method string, status int) bool {
	if want, ok := expectedStatus[method]; ok {
		return status == want
	}
	return status < http.StatusBadRequest
}

// Waiter blocks until a request may be sent
type Waiter interface {
	Wait(ctx context.Context) error
}

type statsReporter interface {
	Stats() (inWindow, limit int)
}

// TokenSource supplies the bearer token for requests that do not carry one
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Request describes one API call
type Request struct {
	Method string
	Path   string
	Body   any
	Query  url.Values
	// Token overrides the token source when set
	Token string
	// Unchecked skips status validation; 429 is still an error
	Unchecked bool
}

// Response is a fully read API response
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Decode unmarshals the JSON body into v
func (r *Response) Decode(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// Executor sends requests through the limiter with a bearer token and
// validates the response status
type Executor struct {
	baseURL    string
	httpClient *http.Client
	limiter    Waiter
	tokens     TokenSource
	logger     zerolog.Logger
}

// NewExecutor creates an executor for the API rooted at baseURL
func NewExecutor(baseURL string, httpClient *http.Client, limiter Waiter, tokens TokenSource, logger zerolog.Logger) *Executor {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &Executor{
		baseURL:    baseURL,
		httpClient: httpClient,
		limiter:    limiter,
		tokens:     tokens,
		logger:     logger,
	}
}

// Do performs the request. The call blocks for a limiter slot first.
func (e *Executor) Do(ctx context.Context, r Request) (*Response, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	token := r.Token
	if token == "" {
		var err error
		token, err = e.tokens.Token(ctx)
		if err != nil {
			return nil, err
		}
	}

	reqURL := e.baseURL + strings.TrimPrefix(r.Path, "/")
	if len(r.Query) > 0 {
		reqURL += "?" + r.Query.Encode()
	}

	var body io.Reader
	if r.Body != nil {
		data, err := json.Marshal(r.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, reqURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	event := e.logger.Debug().
		Str("method", r.Method).
		Str("path", r.Path).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start))
	if s, ok := e.limiter.(statsReporter); ok {
		inWindow, limit := s.Stats()
		event = event.Int("window_used", inWindow).Int("window_limit", limit)
	}
	event.Msg("Fortnox API request")

	if resp.StatusCode == http.StatusTooManyRequests {
		e.logger.Warn().
			Str("method", r.Method).
			Str("url", reqURL).
			Msg("Too many requests, call was not processed by Fortnox")
		return nil, e.statusError(r.Method, reqURL, resp.StatusCode, data)
	}

	if !r.Unchecked && !statusAccepted(r.Method, resp.StatusCode) {
		return nil, e.statusError(r.Method, reqURL, resp.StatusCode, data)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
	}, nil
}

func (e *Executor) statusError(method, url string, status int, body []byte) *StatusError {
	return &StatusError{
		Method:     method,
		URL:        url,
		StatusCode: status,
		Body:       string(body),
	}
}
