package apiclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/jrsteele09/go-auth-client/internal/errors"
)

// Error taxonomy of the pipeline. ErrExpiredCredential never escapes the client unless
// the refresh itself fails, and then always together with ErrRefreshFailed.
// ErrAuthorizationDenied and ErrAuthenticationRequired end in a logout or a redirect.
// ErrSessionReplaced rejects requests of a session that was signed out mid-refresh.
var (
	ErrExpiredCredential      = errors.ErrExpiredCredential
	ErrAuthorizationDenied    = errors.ErrAuthorizationDenied
	ErrAuthenticationRequired = errors.ErrAuthenticationRequired
	ErrRefreshFailed          = errors.ErrRefreshFailed
	ErrSessionReplaced        = errors.ErrSessionReplaced
)

// maxErrorBody caps how much of an error response is kept.
const maxErrorBody = 1 << 20

// StatusError is returned by the JSON helpers for any non-2xx response the pipeline
// does not handle itself. It is passed to the caller untouched.
type StatusError struct {
	StatusCode int
	Code       string
	Message    string
	Body       []byte
}

func (e *StatusError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api responded %d (%s)", e.StatusCode, e.Code)
	}
	return fmt.Sprintf("api responded %d", e.StatusCode)
}

func newStatusError(resp *http.Response) *StatusError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	e := &StatusError{StatusCode: resp.StatusCode, Body: body}
	var payload ErrorResponse
	if json.Unmarshal(body, &payload) == nil {
		e.Code = payload.Code
		e.Message = payload.Message
	}
	return e
}
