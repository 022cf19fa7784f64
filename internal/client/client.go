// Package client implements the Stockroom API client: credential persistence,
// request dispatch with bearer auth, the session lifecycle, and product CRUD.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// defaultTimeout bounds every request so a stalled network call cannot leave
// an operation in flight forever.
const defaultTimeout = 30 * time.Second

// TokenSource resolves the bearer token at dispatch time. An empty string
// means the request goes out unauthenticated.
type TokenSource interface {
	Token() string
}

// Client dispatches requests against the API. It holds no mutable auth state
// of its own: the token is read from the TokenSource on every call. Every
// call is fire-once; there is no retry, cache, or queue.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
}

type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client, mainly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout overrides the default request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

func New(baseURL string, tokens TokenSource, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		tokens:     tokens,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get issues a GET and decodes the response into out (ignored when nil).
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, "", nil, out)
}

// PostJSON issues a POST with a JSON body.
func (c *Client) PostJSON(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request body: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, "application/json", bytes.NewReader(data), out)
}

// Post issues a bodyless POST.
func (c *Client) Post(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodPost, path, "", nil, out)
}

// Delete issues a DELETE.
func (c *Client) Delete(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodDelete, path, "", nil, out)
}

// Upload is an optional binary field on a multipart request.
type Upload struct {
	Field    string
	Filename string
	Content  io.Reader
}

// PostForm issues a POST with a multipart body carrying text fields and an
// optional file. Product create and update use this; everything else is JSON.
func (c *Client) PostForm(ctx context.Context, path string, fields map[string]string, file *Upload, out any) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	for name, value := range fields {
		if err := mw.WriteField(name, value); err != nil {
			return fmt.Errorf("write form field %s: %w", name, err)
		}
	}
	if file != nil {
		part, err := mw.CreateFormFile(file.Field, file.Filename)
		if err != nil {
			return fmt.Errorf("create form file: %w", err)
		}
		if _, err := io.Copy(part, file.Content); err != nil {
			return fmt.Errorf("copy form file: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("finalize form: %w", err)
	}

	return c.do(ctx, http.MethodPost, path, mw.FormDataContentType(), &buf, out)
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if token := c.tokens.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &Error{Kind: KindNetwork, Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return errorFromResponse(resp)
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &Error{Kind: KindServer, Status: resp.StatusCode, Message: "undecodable response body"}
	}
	return nil
}

// errorBody is the shape servers use for failures: a message, and for
// validation rejections a map of per-field messages.
type errorBody struct {
	Message string              `json:"message"`
	Errors  map[string][]string `json:"errors"`
}

func errorFromResponse(resp *http.Response) *Error {
	var body errorBody
	// A missing or malformed error body still yields a usable Error.
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	json.Unmarshal(data, &body)

	e := &Error{
		Status:  resp.StatusCode,
		Message: body.Message,
		Fields:  body.Errors,
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		e.Kind = KindUnauthorized
		if e.Message == "" {
			e.Message = "unauthorized"
		}
	case resp.StatusCode == http.StatusForbidden:
		e.Kind = KindForbidden
		if e.Message == "" {
			e.Message = "forbidden"
		}
	case resp.StatusCode == http.StatusUnprocessableEntity || resp.StatusCode == http.StatusBadRequest:
		e.Kind = KindValidation
		if e.Message == "" {
			e.Message = "validation failed"
		}
	case resp.StatusCode >= 500:
		e.Kind = KindServer
		if e.Message == "" {
			e.Message = fmt.Sprintf("server returned %d", resp.StatusCode)
		}
	default:
		e.Kind = KindServer
		if e.Message == "" {
			e.Message = fmt.Sprintf("unexpected status %d", resp.StatusCode)
		}
	}
	return e
}
