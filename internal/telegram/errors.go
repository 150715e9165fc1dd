package telegram

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ErrEmptyResult is returned when the Bot API reports success without a result.
var ErrEmptyResult = errors.New("bot api returned an empty result")

// APIError is a failed Bot API call.
type APIError struct {
	Method      string
	Code        int
	Description string
	RetryAfter  time.Duration
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram %s failed (%d): %s", e.Method, e.Code, e.Description)
}

// Temporary reports whether the call may succeed when retried.
func (e *APIError) Temporary() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= http.StatusInternalServerError
}

// IsMessageNotModified reports whether an edit failed only because the
// new content equals the current one.
func IsMessageNotModified(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}

	return apiErr.Code == http.StatusBadRequest &&
		strings.Contains(strings.ToLower(apiErr.Description), "message is not modified")
}
