package handler

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cafe-backend/internal/apperror"
)

// NotImplemented answers every request under a resource that has no
// endpoints yet, e.g. "Order routes not implemented yet".
func NotImplemented(resource string) echo.HandlerFunc {
	return func(c echo.Context) error {
		return apperror.NotFound(resource + " routes not implemented yet")
	}
}
