// Package api wraps all outbound calls to the assessment backend. It owns
// auth headers, the fixed request timeout, and the mapping of HTTP failures
// into typed errors; no raw transport error leaves this package.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/moogar0880/problems"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/driftlab/assessor/pkg/otelhelper"
)

// defaultTimeout bounds every request. There is no caller-supplied deadline
// beyond this.
const defaultTimeout = 30 * time.Second

// maxResponseBody caps how much of a response is read into memory.
const maxResponseBody = 4 << 20

// CredentialStore is the slice of the auth store the client needs: reading
// the bearer token, and clearing it when a 401 forces logout.
type CredentialStore interface {
	Token() string
	ClearAuth() error
}

// Client is an explicitly constructed API gateway client. Configuration is
// injected here and the client is passed by reference to the components
// that need it; there is no package-level singleton.
type Client struct {
	baseURL    string
	httpClient *http.Client
	creds      CredentialStore
	logger     *slog.Logger
	tracer     trace.Tracer
	timeout    time.Duration
	onLogout   func()
}

// NewClient creates a client for the backend at baseURL. creds may be nil
// for unauthenticated use (the mock backend's tests).
func NewClient(baseURL string, creds CredentialStore, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		creds:      creds,
		logger:     logger,
		timeout:    defaultTimeout,
	}
}

// WithTracer attaches a tracer; each request then runs inside a span.
func (c *Client) WithTracer(tracer trace.Tracer) *Client {
	c.tracer = tracer

	return c
}

// WithLogoutHandler registers the hook invoked after a logout-forcing 401
// has cleared the stored token (the CLI prints a re-auth instruction, a
// browser shell would redirect to its login view).
func (c *Client) WithLogoutHandler(handler func()) *Client {
	c.onLogout = handler

	return c
}

// BaseURL returns the configured backend address.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// RequestOptions describes one call. Zero value means GET with no body.
type RequestOptions struct {
	Method      string
	Body        any
	ContentType string // Defaults to application/json
	NoAuth      bool   // Skip the bearer header (login)
}

// Do performs one request and returns the raw response body. All non-2xx
// responses and transport failures come back as *Error.
func (c *Client) Do(ctx context.Context, endpoint string, opts RequestOptions) ([]byte, error) {
	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}

	if c.tracer != nil {
		var span trace.Span

		ctx, span = otelhelper.StartSpan(ctx, c.tracer, "api.request",
			attribute.String(otelhelper.EndpointKey, endpoint),
			attribute.String(otelhelper.BaseURLKey, c.baseURL),
		)
		defer span.End()

		body, err := c.do(ctx, method, endpoint, opts)
		if err != nil && !errors.Is(err, ErrNoContent) {
			otelhelper.SetError(span, err)
		}

		return body, err
	}

	return c.do(ctx, method, endpoint, opts)
}

func (c *Client) do(ctx context.Context, method, endpoint string, opts RequestOptions) ([]byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var bodyReader io.Reader

	if opts.Body != nil {
		payload, err := json.Marshal(opts.Body)
		if err != nil {
			return nil, &Error{Kind: KindDecode, Message: fmt.Sprintf("failed to encode request body: %v", err)}
		}

		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(reqCtx, method, c.baseURL+endpoint, bodyReader)
	if err != nil {
		return nil, &Error{Kind: KindDecode, Message: fmt.Sprintf("failed to build request: %v", err)}
	}

	contentType := opts.ContentType
	if contentType == "" {
		contentType = "application/json"
	}

	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	if !opts.NoAuth && c.creds != nil {
		if token := c.creds.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.classifyTransportError(err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, &Error{
			Kind:    KindDecode,
			Status:  resp.StatusCode,
			Message: fmt.Sprintf("failed to read response body: %v", err),
		}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return body, nil
	}

	return nil, c.classifyResponse(endpoint, resp.StatusCode, body)
}

// DoJSON performs the request and decodes a JSON response into out. A 2xx
// response with an empty body, or one that declares JSON but does not
// parse, returns ErrNoContent with out untouched rather than a decode
// failure: backends routinely send empty-but-declared-JSON bodies.
func (c *Client) DoJSON(ctx context.Context, endpoint string, opts RequestOptions, out any) error {
	body, err := c.Do(ctx, endpoint, opts)
	if err != nil {
		return err
	}

	if len(bytes.TrimSpace(body)) == 0 {
		return ErrNoContent
	}

	if out == nil {
		return nil
	}

	err = json.Unmarshal(body, out)
	if err != nil {
		c.logger.Debug("treating unparseable 2xx body as no content", "endpoint", endpoint, "error", err)

		return ErrNoContent
	}

	return nil
}

func (c *Client) classifyTransportError(err error) *Error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &Error{
			Kind:    KindTimeout,
			Message: fmt.Sprintf("The request to %s timed out.", c.baseURL),
			BaseURL: c.baseURL,
		}
	}

	return &Error{
		Kind:    KindUnreachable,
		Message: fmt.Sprintf("Could not reach the assessment service at %s.", c.baseURL),
		Detail:  err.Error(),
		BaseURL: c.baseURL,
	}
}

// duplicatePayload is the 409 body extension carrying the id of the
// assessment the server considers already submitted.
type duplicatePayload struct {
	ExistingID string `json:"existing_id"`
}

func (c *Client) classifyResponse(endpoint string, status int, body []byte) *Error {
	detail := problemDetail(body)

	apiErr := &Error{
		Kind:    kindForStatus(status),
		Status:  status,
		Message: statusMessage(status),
		Detail:  detail,
	}

	switch status {
	case 401:
		if shouldLogout(endpoint, detail) {
			c.forceLogout(endpoint)

			apiErr.Message = "Your session has expired. Please log in again."
		}
	case 409:
		var dup duplicatePayload
		if err := json.Unmarshal(body, &dup); err == nil {
			apiErr.ExistingID = dup.ExistingID
		}
	}

	return apiErr
}

// forceLogout is the only place credential state is mutated as a side
// effect of a failed call.
func (c *Client) forceLogout(endpoint string) {
	c.logger.Warn("401 invalidated stored credentials, logging out", "endpoint", endpoint)

	if c.creds != nil {
		if err := c.creds.ClearAuth(); err != nil {
			c.logger.Error("failed to clear credentials", "error", err)
		}
	}

	if c.onLogout != nil {
		c.onLogout()
	}
}

// problemDetail extracts the RFC 7807 detail from an error body, falling
// back to the raw text for non-problem responses.
func problemDetail(body []byte) string {
	if len(bytes.TrimSpace(body)) == 0 {
		return ""
	}

	var problem problems.Problem
	if err := json.Unmarshal(body, &problem); err == nil && problem.Detail != "" {
		return problem.Detail
	}

	var plain struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}

	if err := json.Unmarshal(body, &plain); err == nil {
		if plain.Error != "" {
			return plain.Error
		}

		if plain.Message != "" {
			return plain.Message
		}
	}

	return ""
}
