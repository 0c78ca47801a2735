package httptransport

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nhle/tempvortex/internal/provider"
	"github.com/nhle/tempvortex/internal/session"
	"github.com/nhle/tempvortex/internal/sync"
)

// Response is the envelope for every JSON reply.
type Response struct {
	Data  interface{}    `json:"data,omitempty"`
	Error *ErrorResponse `json:"error,omitempty"`
}

// ErrorResponse describes a failed request.
type ErrorResponse struct {
	Message  string `json:"message"`
	Kind     string `json:"kind,omitempty"`
	Provider string `json:"provider,omitempty"`
	Detail   string `json:"detail,omitempty"`

	// Network hints that the failure is a connectivity or browser
	// policy problem rather than a provider rejection.
	Network bool `json:"network,omitempty"`
}

func ok(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Data: data})
}

func created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{Data: data})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, Response{Error: &ErrorResponse{Message: msg}})
}

// fail writes err with the status its type maps to.
func fail(c *gin.Context, err error) {
	body := &ErrorResponse{Message: err.Error()}

	var pe *provider.Error
	if errors.As(err, &pe) {
		body.Kind = pe.Kind.String()
		body.Provider = string(pe.Provider)
		body.Detail = pe.Detail
		body.Network = pe.Network
	}

	c.JSON(statusFor(err), Response{Error: body})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, sync.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, sync.ErrStale):
		return http.StatusConflict
	case errors.Is(err, sync.ErrNoAccount), errors.Is(err, session.ErrNoAccount):
		return http.StatusConflict
	case errors.Is(err, session.ErrNoRecovery), errors.Is(err, session.ErrInvalidRecovery):
		return http.StatusBadRequest
	}

	var pe *provider.Error
	if errors.As(err, &pe) {
		switch {
		case pe.Network:
			return http.StatusBadGateway
		case pe.Kind == provider.KindAccountCreation:
			return http.StatusUnprocessableEntity
		case errors.Is(err, provider.ErrUnsupported):
			return http.StatusNotImplemented
		default:
			return http.StatusBadGateway
		}
	}
	return http.StatusInternalServerError
}
