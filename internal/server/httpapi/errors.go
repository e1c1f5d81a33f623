package httpapi

import (
	"errors"
	"net/http"

	"github.com/dmitrijs2005/snaptrack/internal/common"
	"github.com/dmitrijs2005/snaptrack/internal/server/services"
	"github.com/gin-gonic/gin"
)

type errorBody struct {
	Detail    string `json:"detail"`
	InvoiceID string `json:"invoice_id,omitempty"`
	Stage     string `json:"stage,omitempty"`
}

// statusFor maps the shared error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, common.ErrAuthenticationFailed),
		errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, common.ErrInactiveAccount),
		errors.Is(err, common.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, common.ErrorNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, common.ErrStorageFailure):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) abortWithError(c *gin.Context, err error) {
	code := statusFor(err)
	body := errorBody{Detail: err.Error()}

	var ce *services.CreationError
	if errors.As(err, &ce) {
		body.InvoiceID = ce.Invoice.ID
		body.Stage = string(ce.Stage)
	}

	switch code {
	case http.StatusUnauthorized:
		c.Header("WWW-Authenticate", common.BearerScheme)
	case http.StatusInternalServerError:
		s.logger.Error(c.Request.Context(), "request failed",
			"method", c.Request.Method, "path", c.Request.URL.Path, "error", err)
		if ce == nil {
			body.Detail = common.ErrorInternal.Error()
		}
	}

	c.AbortWithStatusJSON(code, body)
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorBody{Detail: msg})
}
