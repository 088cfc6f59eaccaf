// Package handler holds the HTTP handlers. Every response, success or
// failure, uses the same envelope:
//
//	{"success": bool, "data": ..., "error": {"code", "message", "details", "stack"}, "message": ...}
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cafe-backend/internal/apperror"
)

// requestTimeout bounds the store work a single handler may do.
const requestTimeout = 5 * time.Second

type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *errorBody  `json:"error,omitempty"`
	Message string      `json:"message,omitempty"`
}

type errorBody struct {
	Code    string                `json:"code"`
	Message string                `json:"message"`
	Details []apperror.FieldError `json:"details,omitempty"`
	Stack   string                `json:"stack,omitempty"`
}

func respond(c echo.Context, status int, data interface{}, message string) error {
	return c.JSON(status, envelope{Success: true, Data: data, Message: message})
}

func ok(c echo.Context, data interface{}, message string) error {
	return respond(c, http.StatusOK, data, message)
}

func created(c echo.Context, data interface{}, message string) error {
	return respond(c, http.StatusCreated, data, message)
}

func requestContext(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

// bind decodes the body into v. Malformed JSON is a validation error, not
// a 500.
func bind(c echo.Context, v interface{}) error {
	if err := c.Bind(v); err != nil {
		return apperror.Validation("Invalid request body").Wrap(err)
	}
	return nil
}
