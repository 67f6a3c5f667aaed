package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/princinho/authgate/dto"
	"github.com/princinho/authgate/services"
)

// retryAfterSeconds is sent with 503 when the store is unreachable.
const retryAfterSeconds = "5"

// respondError is the single place identity errors become HTTP responses.
func respondError(c *gin.Context, err error) {
	_ = c.Error(err)

	var ve services.ValidationError
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, validationBody(ve))
	case errors.Is(err, services.ErrConflict):
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Msg: err.Error()})
	case errors.Is(err, services.ErrCurrentPassword):
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Msg: "current password is incorrect"})
	case errors.Is(err, services.ErrInvalidCredentials):
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Msg: services.ErrInvalidCredentials.Error()})
	case errors.Is(err, services.ErrUnauthenticated):
		c.JSON(http.StatusUnauthorized, dto.ErrorResponse{Msg: "no token, authorization denied"})
	case errors.Is(err, services.ErrForbidden):
		c.JSON(http.StatusForbidden, dto.ErrorResponse{Msg: services.ErrForbidden.Error()})
	case errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, dto.ErrorResponse{Msg: services.ErrNotFound.Error()})
	case errors.Is(err, services.ErrUnavailable):
		c.Header("Retry-After", retryAfterSeconds)
		c.JSON(http.StatusServiceUnavailable, dto.ErrorResponse{Msg: services.ErrUnavailable.Error()})
	default:
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Msg: services.ErrInternal.Error()})
	}
}

func validationBody(ve services.ValidationError) dto.ErrorResponse {
	resp := dto.ErrorResponse{Msg: ve.Msg}
	for _, f := range ve.Fields {
		resp.Errors = append(resp.Errors, dto.FieldErrorResponse{Field: f.Field, Msg: f.Message})
	}
	if resp.Msg == "" {
		resp.Msg = "invalid input"
		if len(resp.Errors) > 0 {
			resp.Msg = resp.Errors[0].Msg
		}
	}
	return resp
}

// bindJSON decodes the body into out. A false return means a 400 was written.
func bindJSON(c *gin.Context, out any) bool {
	err := c.ShouldBindJSON(out)
	if err == nil {
		return true
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		respondError(c, services.NewValidationError(verrs))
		return false
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		_ = c.Error(err)
		c.JSON(http.StatusRequestEntityTooLarge, dto.ErrorResponse{Msg: "request body too large"})
		return false
	}

	respondError(c, services.ValidationError{Msg: "malformed JSON body"})
	return false
}
