package backend

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	"github.com/sendgrid/rest"
)

// APIError is a response the backend rejected a request with (status >= 400).
// Detail is the message the backend supplied, if any.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("backend responded %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("backend responded %d: %s", e.StatusCode, e.Detail)
}

// UserMessage is the detail meant for end users.
func (e *APIError) UserMessage() string {
	return e.Detail
}

// IsStatus reports whether `err` is an *APIError with the given status code.
func IsStatus(err error, code int) bool {
	apiErr, ok := errors.Cause(err).(*APIError)
	return ok && apiErr.StatusCode == code
}

// errorBody is the error payload of the backend: either {"detail": "msg"}
// or a request validation error: {"detail": [{"loc": [...], "msg": "...", "type": "..."}]}.
type errorBody struct {
	Detail json.RawMessage `json:"detail"`
}

type validationDetail struct {
	Msg string `json:"msg"`
}

func newAPIError(resp *rest.Response) *APIError {
	return &APIError{StatusCode: resp.StatusCode, Detail: parseDetail(resp.Body)}
}

func parseDetail(body string) string {
	var eb errorBody
	if err := json.Unmarshal([]byte(body), &eb); err != nil || len(eb.Detail) == 0 {
		return ""
	}

	var detail string
	if err := json.Unmarshal(eb.Detail, &detail); err == nil {
		return detail
	}

	var details []validationDetail
	if err := json.Unmarshal(eb.Detail, &details); err == nil {
		msgs := make([]string, 0, len(details))
		for _, d := range details {
			if d.Msg != "" {
				msgs = append(msgs, d.Msg)
			}
		}
		return strings.Join(msgs, "; ")
	}
	return ""
}
