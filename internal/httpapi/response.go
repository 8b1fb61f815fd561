package httpapi

import (
	"github.com/gin-gonic/gin"

	"github.com/goliatone/go-formchat/pkg/validation"
)

// APIError is the body of every error response.
type APIError struct {
	Message string                  `json:"message"`
	Code    string                  `json:"code,omitempty"`
	Fields  []validation.FieldError `json:"validation_errors,omitempty"`
}

type errorEnvelope struct {
	Error APIError `json:"error"`
}

func respondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.AbortWithStatusJSON(status, errorEnvelope{Error: APIError{Message: msg, Code: code}})
}

func respondFieldErrors(c *gin.Context, status int, err error, fields []validation.FieldError) {
	c.AbortWithStatusJSON(status, errorEnvelope{Error: APIError{
		Message: err.Error(),
		Code:    "invalid_document",
		Fields:  fields,
	}})
}
