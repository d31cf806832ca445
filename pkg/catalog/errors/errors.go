package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
)

var ErrInternal = fmt.Errorf("internal error")
var ErrNotFound = fmt.Errorf("not found")
var ErrRequest = fmt.Errorf("request error")
var ErrBadRequest = fmt.Errorf("bad request")
var ErrBadResponse = fmt.Errorf("bad response")
var ErrNormalization = fmt.Errorf("normalization error")
var ErrSessionRequired = fmt.Errorf("session required")
var ErrUnknownFeed = fmt.Errorf("unknown feed")

type myError struct {
	msg    string
	target error
}

func (m myError) Error() string        { return m.msg }
func (m myError) Is(target error) bool { return target == m.target }

func NewBadRequestError(msg string) error {
	return &myError{
		msg:    msg,
		target: ErrBadRequest,
	}
}

func NewNormalizationError(msg string) error {
	return &myError{
		msg:    msg,
		target: ErrNormalization,
	}
}

func NewNotFoundError(msg string) error {
	return &myError{
		msg:    msg,
		target: ErrNotFound,
	}
}

func NewSessionRequiredError(msg string) error {
	return &myError{
		msg:    msg,
		target: ErrSessionRequired,
	}
}

func NewUnknownFeedError(msg string) error {
	return &myError{
		msg:    msg,
		target: ErrUnknownFeed,
	}
}

// NewErrorFromProblemReport maps an RFC7807 problem report returned by an
// upstream source onto one of the sentinel errors above.
func NewErrorFromProblemReport(code int, contentType string, body []byte) error {
	report := &struct {
		Type   string `json:"type"`
		Title  string `json:"title"`
		Detail string `json:"detail"`
	}{}

	err := json.Unmarshal(body, report)
	if err != nil {
		return fmt.Errorf("failed to process problem report from upstream source: %s (%w)", err.Error(), ErrBadResponse)
	}

	if code == http.StatusNotFound || report.Type == "https://gamedex.dev/errors/ResourceNotFound" {
		return NewNotFoundError(report.Detail)
	}

	if code == http.StatusUnauthorized || report.Type == "https://gamedex.dev/errors/SessionRequired" {
		return NewSessionRequiredError(report.Detail)
	}

	if report.Type == "https://gamedex.dev/errors/BadRequestData" {
		return NewBadRequestError(report.Detail)
	}

	return &myError{
		msg: fmt.Sprintf("[code: %d] unknown problem report of type \"%s\" with detail \"%s\" received",
			code, report.Type, report.Detail,
		),
		target: ErrInternal,
	}
}
