// Package transport holds the HTTP plumbing shared by the xkcd and VK clients.
package transport

import (
	"fmt"
	"io"
	"net/http"
)

// UserAgent is sent with every outgoing request.
const UserAgent = "xkcd-wall"

// DefaultClient has no timeout; calls block until the server or the network
// gives up.
var DefaultClient = &http.Client{}

// maxErrorBody caps how much of a failed response is kept in StatusError.
const maxErrorBody = 64 << 10

// StatusError is returned when a server answers with a non-2xx status.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Status     string
	// Body is the start of the response body, which may carry an
	// API-specific error.
	Body []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP error: %s %s: %s", e.Method, e.URL, e.Status)
}

// CheckStatus returns a *StatusError unless resp carries a 2xx status.
func CheckStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	e := &StatusError{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
	}
	if resp.Request != nil {
		e.Method = resp.Request.Method
		e.URL = redact(resp.Request)
	}
	return e
}

// redact drops the query string, which carries the access token for VK calls.
func redact(req *http.Request) string {
	u := *req.URL
	u.RawQuery = ""
	return u.String()
}

// Do sends req with the standard headers and checks the response status.
// On success the caller owns resp.Body. On a non-2xx status the body is read
// into the returned *StatusError.
func Do(client *http.Client, req *http.Request) (*http.Response, error) {
	if client == nil {
		client = DefaultClient
	}
	req.Header.Set("User-Agent", UserAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	if err := CheckStatus(resp); err != nil {
		defer resp.Body.Close()
		if se, ok := err.(*StatusError); ok {
			se.Body, _ = io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		}
		return nil, err
	}
	return resp, nil
}
