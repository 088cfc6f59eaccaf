package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/cafe-backend/internal/apperror"
)

// ErrorHandler renders every error returned by handlers and middleware as
// an envelope. Unknown errors become a generic 500; their text is exposed
// as error.stack only when dev is true.
func ErrorHandler(log *zap.Logger, dev bool) echo.HTTPErrorHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		ae := toAppError(err)

		fields := []zap.Field{
			zap.String("code", ae.Code),
			zap.Int("status", ae.Status),
			zap.String("method", c.Request().Method),
			zap.String("path", c.Request().URL.Path),
			zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
		}
		if ae.Status >= http.StatusInternalServerError {
			log.Error("request failed", append(fields, zap.Error(err))...)
		} else {
			log.Debug("request rejected", fields...)
		}

		body := &errorBody{Code: ae.Code, Message: ae.Message, Details: ae.Details}
		if dev && ae.Err != nil {
			body.Stack = ae.Err.Error()
		}

		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(ae.Status)
		} else {
			werr = c.JSON(ae.Status, envelope{Success: false, Error: body})
		}
		if werr != nil {
			log.Error("write error response", zap.Error(werr))
		}
	}
}

func toAppError(err error) *apperror.Error {
	if ae, ok := apperror.As(err); ok {
		return ae
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		switch he.Code {
		case http.StatusNotFound:
			return apperror.NotFound("API endpoint not found").Wrap(err)
		case http.StatusMethodNotAllowed:
			return apperror.New(apperror.KindNotFound, he.Code, "METHOD_NOT_ALLOWED", "Method not allowed").Wrap(err)
		case http.StatusRequestEntityTooLarge:
			return apperror.New(apperror.KindValidation, he.Code, "PAYLOAD_TOO_LARGE", "Request body too large").Wrap(err)
		case http.StatusBadRequest, http.StatusUnsupportedMediaType:
			return apperror.Validation("Invalid request body").Wrap(err)
		}
		if he.Code < http.StatusInternalServerError {
			return apperror.New(apperror.KindValidation, he.Code, "HTTP_ERROR", http.StatusText(he.Code)).Wrap(err)
		}
	}
	return apperror.Internal(err)
}
