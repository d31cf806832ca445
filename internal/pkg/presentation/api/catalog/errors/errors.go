package errors

import (
	"encoding/json"
	"net/http"
)

// ProblemDetails stores details about a certain problem according to RFC7807
// See https://tools.ietf.org/html/rfc7807
type ProblemDetails interface {
	ContentType() string
	MarshalJSON() ([]byte, error)
	WriteResponse(w http.ResponseWriter)
}

// ProblemDetailsImpl is an implementation of the ProblemDetails interface
type ProblemDetailsImpl struct {
	typ    string
	title  string
	detail string
	code   int
}

const (
	// ProblemReportContentType as required by https://tools.ietf.org/html/rfc7807
	ProblemReportContentType string = "application/problem+json"
)

// BadRequestData reports that the request includes input data which does
// not meet the requirements of the operation
type BadRequestData struct {
	ProblemDetailsImpl
}

func NewBadRequestData(detail string) *BadRequestData {
	return &BadRequestData{
		ProblemDetailsImpl: ProblemDetailsImpl{
			typ:    "https://gamedex.dev/errors/BadRequestData",
			title:  "Bad Request Data",
			detail: detail,
			code:   http.StatusBadRequest,
		},
	}
}

// ReportNewBadRequestData creates a BadRequestData instance and sends it to the supplied http.ResponseWriter
func ReportNewBadRequestData(w http.ResponseWriter, detail string) {
	brd := NewBadRequestData(detail)
	brd.WriteResponse(w)
}

// InternalError reports that there has been an error during the operation execution
type InternalError struct {
	ProblemDetailsImpl
}

func NewInternalError(detail string) *InternalError {
	return &InternalError{
		ProblemDetailsImpl: ProblemDetailsImpl{
			typ:    "https://gamedex.dev/errors/InternalError",
			title:  "Internal Error",
			detail: detail,
			code:   http.StatusInternalServerError,
		},
	}
}

// ReportNewInternalError creates an InternalError instance and sends it to the supplied http.ResponseWriter
func ReportNewInternalError(w http.ResponseWriter, detail string) {
	ie := NewInternalError(detail)
	ie.WriteResponse(w)
}

// NotFound reports that the request failed with a not found error of some kind
type NotFound struct {
	ProblemDetailsImpl
}

func NewNotFound(detail string) *NotFound {
	return &NotFound{
		ProblemDetailsImpl: ProblemDetailsImpl{
			typ:    "https://gamedex.dev/errors/ResourceNotFound",
			title:  "Not Found",
			detail: detail,
			code:   http.StatusNotFound,
		},
	}
}

// ReportNotFoundError creates a NotFound instance and sends it to the supplied http.ResponseWriter
func ReportNotFoundError(w http.ResponseWriter, detail string) {
	nf := NewNotFound(detail)
	nf.WriteResponse(w)
}

type UnauthorizedRequest struct {
	ProblemDetailsImpl
}

func NewUnauthorizedRequest(detail string) *UnauthorizedRequest {
	return &UnauthorizedRequest{
		ProblemDetailsImpl: ProblemDetailsImpl{
			typ:    "https://gamedex.dev/errors/UnauthorizedRequest",
			title:  "Unauthorized Request",
			detail: detail,
			code:   http.StatusUnauthorized,
		},
	}
}

func ReportUnauthorizedRequest(w http.ResponseWriter, detail string) {
	ur := NewUnauthorizedRequest(detail)
	ur.WriteResponse(w)
}

// UnknownFeed reports that the request names a feed that is not configured
type UnknownFeed struct {
	ProblemDetailsImpl
}

func NewUnknownFeed(detail string) *UnknownFeed {
	return &UnknownFeed{
		ProblemDetailsImpl: ProblemDetailsImpl{
			typ:    "https://gamedex.dev/errors/UnknownFeed",
			title:  "Unknown Feed",
			detail: detail,
			code:   http.StatusNotFound,
		},
	}
}

// ReportUnknownFeedError creates an UnknownFeed instance and sends it to the supplied http.ResponseWriter
func ReportUnknownFeedError(w http.ResponseWriter, detail string) {
	uf := NewUnknownFeed(detail)
	uf.WriteResponse(w)
}

// ContentType returns the ContentType to be used when returning this problem
func (p *ProblemDetailsImpl) ContentType() string {
	return ProblemReportContentType
}

// MarshalJSON is called when a ProblemDetailsImpl instance should be serialized to JSON
func (p *ProblemDetailsImpl) MarshalJSON() ([]byte, error) {
	j, err := json.Marshal(struct {
		Type   string `json:"type"`
		Title  string `json:"title"`
		Detail string `json:"detail"`
	}{
		Type:   p.typ,
		Title:  p.title,
		Detail: p.detail,
	})
	if err != nil {
		return nil, err
	}
	return j, nil
}

// ResponseCode returns the HTTP response code to be used when returning a specific problem
func (p *ProblemDetailsImpl) ResponseCode() int {

	if p.code != 0 {
		return p.code
	}

	return http.StatusBadRequest
}

// WriteResponse writes the contents of this instance to a http.ResponseWriter
func (p *ProblemDetailsImpl) WriteResponse(w http.ResponseWriter) {
	w.Header().Add("Content-Type", p.ContentType())
	w.Header().Add("Content-Language", "en")
	w.WriteHeader(p.ResponseCode())

	pdbytes, err := json.MarshalIndent(p, "", "  ")
	if err == nil {
		w.Write(pdbytes)
	}
}
