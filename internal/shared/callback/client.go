// Package callback invokes external action endpoints over HTTP POST with a
// bounded timeout. The demand itself is never mutated here; the caller
// decides what a successful invocation means.
package callback

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

// invokeTimeout bounds one callback invocation end to end. A timed-out call
// counts as a failure; there is no mid-call cancellation or retry.
const invokeTimeout = 30 * time.Second

// Classifications for upstream failures, surfaced to operators so a
// misconfigured automation can be diagnosed from the error alone.
const (
	ClassEndpointNotFound = "endpoint not found"
	ClassUpstreamError    = "upstream server error"
	ClassUnreachable      = "unreachable host"
	ClassRejected         = "request rejected"
)

// CallError failed callback invocation. StatusCode is 0 when the host was
// never reached.
type CallError struct {
	Endpoint       string
	StatusCode     int
	Classification string
	Err            error
}

func (e *CallError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("action callback %s failed: %s (status %d)", e.Endpoint, e.Classification, e.StatusCode)
	}
	return fmt.Sprintf("action callback %s failed: %s: %v", e.Endpoint, e.Classification, e.Err)
}

func (e *CallError) Unwrap() error {
	return e.Err
}

// FilePart binary attachment for multipart payloads.
type FilePart struct {
	Field   string // sanitized form field name
	Name    string // display file name
	Content io.Reader
}

// Payload resolved action inputs ready to send. When File is set the body is
// encoded as multipart/form-data with Fields as accompanying text parts;
// otherwise Fields go out as a single JSON object.
type Payload struct {
	Fields map[string]string
	File   *FilePart
}

// Client action callback HTTP client
type Client struct {
	httpClient *http.Client
}

// NewClient creates a callback client with the standard invocation timeout.
func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: invokeTimeout,
		},
	}
}

// Invoke POSTs the payload to the endpoint and returns the upstream status
// code. Non-2xx responses and transport failures come back as *CallError.
func (c *Client) Invoke(ctx context.Context, endpoint string, payload Payload) (int, error) {
	var body io.Reader
	var contentType string
	var err error

	if payload.File != nil {
		body, contentType, err = encodeMultipart(payload)
	} else {
		body, contentType, err = encodeJSON(payload)
	}
	if err != nil {
		return 0, fmt.Errorf("encode callback payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return 0, fmt.Errorf("build callback request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, &CallError{Endpoint: endpoint, Classification: ClassUnreachable, Err: err}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, &CallError{
			Endpoint:       endpoint,
			StatusCode:     resp.StatusCode,
			Classification: classify(resp.StatusCode),
		}
	}
	return resp.StatusCode, nil
}

func classify(status int) string {
	switch {
	case status == http.StatusNotFound:
		return ClassEndpointNotFound
	case status >= 500:
		return ClassUpstreamError
	default:
		return ClassRejected
	}
}

func encodeJSON(payload Payload) (io.Reader, string, error) {
	fields := payload.Fields
	if fields == nil {
		fields = map[string]string{}
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return nil, "", err
	}
	return bytes.NewReader(data), "application/json; charset=utf-8", nil
}

func encodeMultipart(payload Payload) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for name, value := range payload.Fields {
		if err := w.WriteField(name, value); err != nil {
			return nil, "", err
		}
	}
	part, err := w.CreateFormFile(payload.File.Field, payload.File.Name)
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, payload.File.Content); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}
