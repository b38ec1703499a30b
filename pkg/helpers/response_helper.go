package helpers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/civicpulse/platform-token/pkg/common"
	"github.com/civicpulse/platform-token/pkg/models"
	services "github.com/civicpulse/platform-token/pkg/service"
)

// ResponseHelper renders service results and errors as JSON
type ResponseHelper struct {
	logger *logrus.Logger
}

// NewResponseHelper creates a new ResponseHelper instance
func NewResponseHelper(logger *logrus.Logger) *ResponseHelper {
	return &ResponseHelper{logger: logger}
}

// Success sends data as a bare 200 JSON body
func (h *ResponseHelper) Success(c echo.Context, data any) error {
	return c.JSON(http.StatusOK, data)
}

// Error sends the error envelope for err. Errors that are not service
// errors are reported as fallback.
func (h *ResponseHelper) Error(c echo.Context, err error, fallback services.ErrorKind) error {
	svcErr := h.resolve(c, err, fallback)
	return c.JSON(svcErr.Status(), common.NewErrorResponse(
		svcErr.Message,
		svcErr.Detail,
		svcErr.ErrorCode(),
		svcErr.Details,
	))
}

// ValidationError sends a valid:false result for err
func (h *ResponseHelper) ValidationError(c echo.Context, err error) error {
	svcErr := h.resolve(c, err, services.KindInternalValidationError)
	return c.JSON(svcErr.Status(), models.ValidationResponse{
		Valid:   false,
		Error:   svcErr.Message,
		Message: svcErr.Detail,
		Code:    svcErr.ErrorCode(),
	})
}

func (h *ResponseHelper) resolve(c echo.Context, err error, fallback services.ErrorKind) *services.Error {
	var svcErr *services.Error
	if !errors.As(err, &svcErr) {
		svcErr = services.InternalError(fallback, err)
	}

	fields := logrus.Fields{
		"request_id": GetRequestId(c),
		"path":       c.Request().URL.Path,
		"kind":       svcErr.Kind,
		"status":     svcErr.Status(),
	}
	if svcErr.Status() >= http.StatusInternalServerError {
		h.logger.WithFields(fields).WithError(err).Error("Request failed")
	} else {
		h.logger.WithFields(fields).Warn("Request rejected")
	}
	return svcErr
}
