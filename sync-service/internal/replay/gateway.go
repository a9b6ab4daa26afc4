// Package replay sends queued device writes back through the API gateway and
// reconciles them with the server's current copy of the entity.
package replay

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// maxResponseBytes caps how much of an upstream body is kept.
const maxResponseBytes = 1 << 20

type Response struct {
	Status int
	Body   []byte
}

func (r *Response) OK() bool { return r.Status >= 200 && r.Status < 300 }

// Gateway issues requests against the API gateway on behalf of the caller.
type Gateway struct {
	baseURL string
	client  *http.Client
}

func NewGateway(baseURL string, timeout time.Duration) *Gateway {
	return &Gateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// Do sends one request with the caller's bearer token. Only transport
// failures are returned as errors; any HTTP status comes back in Response.
func (g *Gateway) Do(ctx context.Context, token, method, path string, body []byte) (*Response, error) {
	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read gateway response: %w", err)
	}
	return &Response{Status: resp.StatusCode, Body: data}, nil
}
