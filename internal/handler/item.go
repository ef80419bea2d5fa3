package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/coastie-uk/convention-auction/internal/service"
)

// ItemHandler exposes the item catalogue and catalogue ordering.
type ItemHandler struct {
	Catalogue *service.Catalogue
	Lots      *service.LotLedger
}

// NewItemHandler panics when a dependency is nil.
func NewItemHandler(catalogue *service.Catalogue, lots *service.LotLedger) *ItemHandler {
	if catalogue == nil || lots == nil {
		panic("nil service passed to NewItemHandler")
	}
	return &ItemHandler{Catalogue: catalogue, Lots: lots}
}

// List handles GET /v1/auctions/:id/items.
func (h *ItemHandler) List(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	list, err := h.Catalogue.ListItems(c.Request().Context(), service.Ref{AuctionID: id})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, list)
}

// PublicList handles GET /v1/public/auctions/:short/items. Archived
// auctions are not visible here.
func (h *ItemHandler) PublicList(c echo.Context) error {
	short := strings.TrimSpace(c.Param("short"))
	list, err := h.Catalogue.ListItems(c.Request().Context(), service.Ref{PublicID: short})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, list)
}

// Get handles GET /v1/items/:item_id.
func (h *ItemHandler) Get(c echo.Context) error {
	id, err := pathID(c, "item_id")
	if err != nil {
		return respondError(c, err)
	}
	it, err := h.Catalogue.GetItem(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, it)
}

// Create handles POST /v1/auctions/:id/items.
func (h *ItemHandler) Create(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var in service.ItemInput
	if err := c.Bind(&in); err != nil {
		return badBody(c)
	}
	it, err := h.Catalogue.CreateItem(c.Request().Context(), caller(c), id, in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, it)
}

// Update handles PUT /v1/auctions/:id/items/:item_id.
func (h *ItemHandler) Update(c echo.Context) error {
	auctionID, itemID, err := itemPath(c)
	if err != nil {
		return respondError(c, err)
	}
	var in service.ItemInput
	if err := c.Bind(&in); err != nil {
		return badBody(c)
	}
	it, err := h.Catalogue.UpdateItem(c.Request().Context(), caller(c), auctionID, itemID, in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, it)
}

// Delete handles DELETE /v1/auctions/:id/items/:item_id.
func (h *ItemHandler) Delete(c echo.Context) error {
	auctionID, itemID, err := itemPath(c)
	if err != nil {
		return respondError(c, err)
	}
	if err := h.Catalogue.DeleteItem(c.Request().Context(), caller(c), auctionID, itemID); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Move handles POST /v1/auctions/:id/items/:item_id/move. A missing
// after_item_id moves the item to the front.
func (h *ItemHandler) Move(c echo.Context) error {
	auctionID, itemID, err := itemPath(c)
	if err != nil {
		return respondError(c, err)
	}
	var body struct {
		AfterItemID *int64 `json:"after_item_id"`
	}
	if err := c.Bind(&body); err != nil {
		return badBody(c)
	}
	if err := h.Lots.MoveItemAfter(c.Request().Context(), caller(c), auctionID, itemID, body.AfterItemID); err != nil {
		return respondError(c, err)
	}
	return h.List(c)
}

// MoveToAuction handles POST /v1/items/:item_id/move-auction.
func (h *ItemHandler) MoveToAuction(c echo.Context) error {
	itemID, err := pathID(c, "item_id")
	if err != nil {
		return respondError(c, err)
	}
	var body struct {
		FromAuctionID int64 `json:"from_auction_id"`
		ToAuctionID   int64 `json:"to_auction_id"`
	}
	if err := c.Bind(&body); err != nil {
		return badBody(c)
	}
	it, err := h.Lots.MoveItemToAuction(c.Request().Context(), caller(c), itemID, body.FromAuctionID, body.ToAuctionID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, it)
}

// Renumber handles POST /v1/auctions/:id/renumber.
func (h *ItemHandler) Renumber(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	changed, err := h.Lots.RenumberAuctionItems(c.Request().Context(), caller(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"changed": changed})
}

func itemPath(c echo.Context) (int64, int64, error) {
	auctionID, err := pathID(c, "id")
	if err != nil {
		return 0, 0, err
	}
	itemID, err := pathID(c, "item_id")
	if err != nil {
		return 0, 0, err
	}
	return auctionID, itemID, nil
}
