// Package errors renders HTTP error responses as RFC 7807 problem details
package errors

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ContentType of a problem details body
const ContentType = "application/problem+json"

// Problem type URIs
const (
	TypeNotFound       = "https://fixmd.dev/problems/not-found"
	TypeUnavailable    = "https://fixmd.dev/problems/unavailable"
	TypeNotImplemented = "https://fixmd.dev/problems/not-implemented"
)

// ProblemDetails represents an RFC 7807 Problem Details response
type ProblemDetails struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

// Error implements the error interface
func (p *ProblemDetails) Error() string {
	return p.Detail
}

func newProblem(typ string, status int, detail, instance string) *ProblemDetails {
	return &ProblemDetails{
		Type:     typ,
		Title:    http.StatusText(status),
		Status:   status,
		Detail:   detail,
		Instance: instance,
	}
}

// NewNotFoundError creates a not found problem
func NewNotFoundError(detail, instance string) *ProblemDetails {
	return newProblem(TypeNotFound, http.StatusNotFound, detail, instance)
}

// NewUnavailableError creates a service unavailable problem
func NewUnavailableError(detail, instance string) *ProblemDetails {
	return newProblem(TypeUnavailable, http.StatusServiceUnavailable, detail, instance)
}

// NewNotImplementedError is returned for features disabled by configuration
func NewNotImplementedError(detail, instance string) *ProblemDetails {
	return newProblem(TypeNotImplemented, http.StatusNotImplemented, detail, instance)
}

// Write sends p as the response and aborts the handler chain
func Write(c *gin.Context, p *ProblemDetails) {
	if p.Instance == "" {
		p.Instance = c.Request.URL.Path
	}
	c.Header("Content-Type", ContentType)
	c.AbortWithStatusJSON(p.Status, p)
}
