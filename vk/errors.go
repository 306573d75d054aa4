package vk

import (
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"

	"github.com/mlafeldt/xkcd-wall/transport"
)

// APIError is an error reported in the body of a VK response. VK answers
// failed method calls with HTTP 200, so it is checked separately from the
// status code. StatusCode is set when the error came with a non-2xx status.
type APIError struct {
	Code       int    `json:"error_code"`
	Message    string `json:"error_msg"`
	StatusCode int    `json:"-"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("VK error code - %d, %s", e.Code, e.Message)
}

// UnmarshalJSON accepts the {"error_code":..,"error_msg":..} object returned
// by API methods and the bare string returned by upload servers.
func (e *APIError) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var msg string
		if err := json.Unmarshal(b, &msg); err != nil {
			return err
		}
		*e = APIError{Message: msg}
		return nil
	}

	type plain APIError
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*e = APIError(p)
	return nil
}

// envelope is the shape of every API method response: either a response
// payload or an error, never both.
type envelope[T any] struct {
	Response *T        `json:"response"`
	Error    *APIError `json:"error"`
}

func (e *envelope[T]) result() (*T, error) {
	if e.Error != nil {
		return nil, e.Error
	}
	if e.Response == nil {
		return nil, fmt.Errorf("VK response has neither response nor error")
	}
	return e.Response, nil
}

// bodyError returns the APIError carried in the body of a non-2xx response,
// or err unchanged if there is none.
func bodyError(err error) error {
	var se *transport.StatusError
	if !errors.As(err, &se) {
		return err
	}
	var body struct {
		Error *APIError `json:"error"`
	}
	if json.Unmarshal(se.Body, &body) != nil || body.Error == nil {
		return err
	}
	body.Error.StatusCode = se.StatusCode
	return body.Error
}
