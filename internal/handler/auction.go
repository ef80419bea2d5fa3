package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/coastie-uk/convention-auction/internal/service"
)

// AuctionHandler exposes auction administration.
type AuctionHandler struct {
	Admin *service.AuctionAdmin
}

// NewAuctionHandler panics when admin is nil.
func NewAuctionHandler(admin *service.AuctionAdmin) *AuctionHandler {
	if admin == nil {
		panic("nil AuctionAdmin passed to NewAuctionHandler")
	}
	return &AuctionHandler{Admin: admin}
}

// List handles GET /v1/auctions.
func (h *AuctionHandler) List(c echo.Context) error {
	auctions, err := h.Admin.ListAuctions(c.Request().Context())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, auctions)
}

// Get handles GET /v1/auctions/:id.
func (h *AuctionHandler) Get(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	a, err := h.Admin.GetAuction(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, a)
}

// Create handles POST /v1/auctions.
func (h *AuctionHandler) Create(c echo.Context) error {
	var body struct {
		ShortName string `json:"short_name"`
		FullName  string `json:"full_name"`
		Logo      string `json:"logo"`
	}
	if err := c.Bind(&body); err != nil {
		return badBody(c)
	}
	a, err := h.Admin.CreateAuction(c.Request().Context(), caller(c), body.ShortName, body.FullName, body.Logo)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, a)
}

// UpdateStatus handles PATCH /v1/auctions/:id/status.
func (h *AuctionHandler) UpdateStatus(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := c.Bind(&body); err != nil {
		return badBody(c)
	}
	a, err := h.Admin.UpdateAuctionStatus(c.Request().Context(), caller(c), id, body.Status)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, a)
}

// SetAdminStateChange handles PATCH /v1/auctions/:id/admin-state-change.
func (h *AuctionHandler) SetAdminStateChange(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var body struct {
		Allowed *bool `json:"allowed"`
	}
	if err := c.Bind(&body); err != nil || body.Allowed == nil {
		return c.JSON(http.StatusBadRequest, errBody("allowed is required"))
	}
	a, err := h.Admin.SetAdminCanChangeState(c.Request().Context(), caller(c), id, *body.Allowed)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, a)
}

// Delete handles DELETE /v1/auctions/:id. The response reports whether the
// ledger was reset because the last auction went away.
func (h *AuctionHandler) Delete(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	reset, err := h.Admin.DeleteAuction(c.Request().Context(), caller(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"deleted": id, "reset": reset})
}
