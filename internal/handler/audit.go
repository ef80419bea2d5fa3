package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/coastie-uk/convention-auction/internal/model"
	"github.com/coastie-uk/convention-auction/internal/repository"
	"github.com/coastie-uk/convention-auction/internal/service"
)

const maxAuditLimit = 1000

// AuditHandler serves the audit log.
type AuditHandler struct {
	Audit *service.AuditTrail
}

// NewAuditHandler panics when audit is nil.
func NewAuditHandler(audit *service.AuditTrail) *AuditHandler {
	if audit == nil {
		panic("nil AuditTrail passed to NewAuditHandler")
	}
	return &AuditHandler{Audit: audit}
}

// List handles GET /v1/audit?object_type=&object_id=&limit=.
func (h *AuditHandler) List(c echo.Context) error {
	objID, err := queryID(c, "object_id")
	if err != nil {
		return respondError(c, err)
	}
	limit := 100
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return c.JSON(http.StatusBadRequest, errBody("invalid limit"))
		}
		limit = min(n, maxAuditLimit)
	}
	entries, err := h.Audit.List(c.Request().Context(), repository.AuditFilter{
		ObjectType: model.ObjectType(c.QueryParam("object_type")),
		ObjectID:   objID,
		Limit:      limit,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, entries)
}
