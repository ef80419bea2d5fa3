package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/coastie-uk/convention-auction/internal/middleware"
	"github.com/coastie-uk/convention-auction/internal/model"
	"github.com/coastie-uk/convention-auction/internal/service"
)

// errBody is the JSON shape of every error response.
func errBody(msg string) echo.Map { return echo.Map{"error": msg} }

// respondError maps the ledger's error taxonomy onto HTTP statuses.
func respondError(c echo.Context, err error) error {
	var sc *service.StateConflictError
	var be *service.BalanceError
	switch {
	case errors.As(err, &sc):
		body := errBody(err.Error())
		if sc.Current != "" {
			body["current_state"] = sc.Current
		}
		if len(sc.Allowed) > 0 {
			body["allowed_states"] = sc.Allowed
		}
		return c.JSON(http.StatusConflict, body)
	case errors.As(err, &be):
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error":             err.Error(),
			"outstanding_minor": be.OutstandingMinor,
		})
	case errors.Is(err, service.ErrStateConflict):
		return c.JSON(http.StatusConflict, errBody(err.Error()))
	case errors.Is(err, service.ErrNotFound):
		return c.JSON(http.StatusNotFound, errBody(err.Error()))
	case errors.Is(err, service.ErrInvalidInput):
		return c.JSON(http.StatusBadRequest, errBody(err.Error()))
	case errors.Is(err, service.ErrForbidden):
		return c.JSON(http.StatusForbidden, errBody(err.Error()))
	case errors.Is(err, service.ErrChannelDisabled):
		return c.JSON(http.StatusServiceUnavailable, errBody(err.Error()))
	case errors.Is(err, service.ErrTransientProvider):
		return c.JSON(http.StatusBadGateway, errBody("payment provider unavailable, retry later"))
	}
	slog.Error("request failed",
		slog.String("method", c.Request().Method),
		slog.String("path", c.Path()),
		slog.Any("error", err))
	return c.JSON(http.StatusInternalServerError, errBody("internal error"))
}

// pathID parses a positive integer path parameter.
func pathID(c echo.Context, name string) (int64, error) {
	return parseID(c.Param(name), name)
}

// queryID parses an optional positive integer query parameter. Absent
// values yield zero.
func queryID(c echo.Context, name string) (int64, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return 0, nil
	}
	return parseID(raw, name)
}

func parseID(raw, name string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid %s", service.ErrInvalidInput, name)
	}
	return id, nil
}

// caller returns the authenticated identity. Routes that reach a handler
// using it always run behind JWTAuth.
func caller(c echo.Context) model.Identity {
	id, _ := middleware.IdentityFrom(c)
	return id
}

func badBody(c echo.Context) error {
	return c.JSON(http.StatusBadRequest, errBody("invalid request body"))
}
