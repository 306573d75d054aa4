// Package heartbeat pings a monitoring endpoint after a successful post.
package heartbeat

import (
	"context"
	"net/http"

	"github.com/mlafeldt/xkcd-wall/transport"
)

// Heartbeat pings Endpoint with a GET request.
type Heartbeat struct {
	Endpoint   string
	HTTPClient *http.Client
}

// Ping sends the heartbeat and returns the response status.
func (h *Heartbeat) Ping(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", h.Endpoint, nil)
	if err != nil {
		return "", err
	}

	resp, err := transport.Do(h.HTTPClient, req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	return resp.Status, nil
}
