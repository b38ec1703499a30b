package controller

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/civicpulse/platform-token/pkg/common"
	"github.com/civicpulse/platform-token/pkg/helpers"
	"github.com/civicpulse/platform-token/pkg/models"
	services "github.com/civicpulse/platform-token/pkg/service"
)

// TokenController exposes the exchange and validation endpoints
type TokenController struct {
	exchange   services.ExchangeService
	validation services.ValidationService
	response   *helpers.ResponseHelper
	logger     *logrus.Logger
}

// NewTokenController creates a new TokenController
func NewTokenController(
	exchange services.ExchangeService,
	validation services.ValidationService,
	logger *logrus.Logger,
) *TokenController {
	return &TokenController{
		exchange:   exchange,
		validation: validation,
		response:   helpers.NewResponseHelper(logger),
		logger:     logger,
	}
}

// Exchange godoc
// @Summary Exchange a provider credential for a platform JWT
// @Accept json
// @Produce json
// @Param request body models.ExchangeRequest true "Exchange request"
// @Success 200 {object} models.ExchangeResponse
// @Failure 400 {object} common.ErrorResponse
// @Failure 401 {object} common.ErrorResponse
// @Failure 500 {object} common.ErrorResponse
// @Router /jwt-exchange [post]
func (ctl *TokenController) Exchange(c echo.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = ctl.response.Error(c, panicError(services.KindInternalExchangeError, r), services.KindInternalExchangeError)
		}
	}()

	var req models.ExchangeRequest
	if err := decodeJSON(c, &req); err != nil {
		return ctl.response.Error(c, err, services.KindInternalExchangeError)
	}

	resp, err := ctl.exchange.Exchange(c.Request().Context(), req)
	if err != nil {
		return ctl.response.Error(c, err, services.KindInternalExchangeError)
	}
	return ctl.response.Success(c, resp)
}

// Validate godoc
// @Summary Validate a platform JWT
// @Accept json
// @Produce json
// @Param request body models.ValidationRequest true "Validation request"
// @Success 200 {object} models.ValidationResponse
// @Failure 400 {object} models.ValidationResponse
// @Failure 401 {object} models.ValidationResponse
// @Failure 500 {object} models.ValidationResponse
// @Router /jwt-validate [post]
func (ctl *TokenController) Validate(c echo.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = ctl.response.ValidationError(c, panicError(services.KindInternalValidationError, r))
		}
	}()

	var req models.ValidationRequest
	if err := decodeJSON(c, &req); err != nil {
		return ctl.response.ValidationError(c, err)
	}

	resp, err := ctl.validation.Validate(c.Request().Context(), req)
	if err != nil {
		return ctl.response.ValidationError(c, err)
	}
	return ctl.response.Success(c, resp)
}

// Health answers liveness probes
func (ctl *TokenController) Health(c echo.Context) error {
	return ctl.response.Success(c, common.Healthy())
}

// decodeJSON reads the body as a single JSON object. An empty body decodes
// to the zero value so the service reports the missing fields.
func decodeJSON(c echo.Context, out any) error {
	body := c.Request().Body
	if body == nil {
		return nil
	}
	err := json.NewDecoder(io.LimitReader(body, 1<<20)).Decode(out)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	e := services.NewError(services.KindMalformedRequest, err)
	e.Detail = err.Error()
	return e
}

func panicError(kind services.ErrorKind, r any) *services.Error {
	return services.InternalError(kind, fmt.Errorf("panic: %v", r))
}
