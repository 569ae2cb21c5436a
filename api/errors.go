package api

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUnreachable wraps transport failures: DNS, refused connections, timeouts.
	ErrUnreachable = errors.New("backend unreachable")
	// ErrMalformedResponse means the body was not a decodable envelope.
	ErrMalformedResponse = errors.New("malformed backend response")
)

// HTTPError is a non-2xx response.
type HTTPError struct {
	StatusCode int
	Status     string
	Remark     string
}

func (e *HTTPError) Error() string {
	if e.Remark != "" {
		return fmt.Sprintf("%d %s: %s", e.StatusCode, e.Status, e.Remark)
	}
	return fmt.Sprintf("%d %s", e.StatusCode, e.Status)
}

func newHTTPError(code int, remark string) *HTTPError {
	return &HTTPError{StatusCode: code, Status: http.StatusText(code), Remark: remark}
}

// AppError is a 2xx envelope reporting isSuccessful:false.
type AppError struct {
	Remark string
}

func (e *AppError) Error() string {
	if e.Remark == "" {
		return "request was not successful"
	}
	return e.Remark
}

// IsNotFound reports whether err is an HTTP 404 from the backend.
func IsNotFound(err error) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusNotFound
}
