package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/coastie-uk/convention-auction/internal/service"
)

// LotHandler exposes hammer-falls and the bidder read surface.
type LotHandler struct {
	Lots *service.LotLedger
}

// NewLotHandler panics when lots is nil.
func NewLotHandler(lots *service.LotLedger) *LotHandler {
	if lots == nil {
		panic("nil LotLedger passed to NewLotHandler")
	}
	return &LotHandler{Lots: lots}
}

// Finalize handles POST /v1/auctions/:id/items/:item_id/finalize.
func (h *LotHandler) Finalize(c echo.Context) error {
	auctionID, itemID, err := itemPath(c)
	if err != nil {
		return respondError(c, err)
	}
	var body struct {
		Paddle  int             `json:"paddle"`
		Price   decimal.Decimal `json:"price"`
		TestBid bool            `json:"test_bid"`
	}
	if err := c.Bind(&body); err != nil {
		return badBody(c)
	}
	res, err := h.Lots.FinalizeLot(c.Request().Context(), caller(c), service.FinalizeLotInput{
		AuctionID: auctionID,
		ItemID:    itemID,
		Paddle:    body.Paddle,
		Price:     body.Price,
		TestBid:   body.TestBid,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// Undo handles POST /v1/auctions/:id/items/:item_id/undo.
func (h *LotHandler) Undo(c echo.Context) error {
	auctionID, itemID, err := itemPath(c)
	if err != nil {
		return respondError(c, err)
	}
	it, err := h.Lots.UndoLot(c.Request().Context(), caller(c), auctionID, itemID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, it)
}

// Bidders handles GET /v1/auctions/:id/bidders.
func (h *LotHandler) Bidders(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	list, err := h.Lots.ListBidderSummaries(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, list)
}

// Bidder handles GET /v1/auctions/:id/bidders/:bidder_id and returns the
// bidder's lots, payments and balance.
func (h *LotHandler) Bidder(c echo.Context) error {
	auctionID, err := pathID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	bidderID, err := pathID(c, "bidder_id")
	if err != nil {
		return respondError(c, err)
	}
	d, err := h.Lots.GetBidderDetail(c.Request().Context(), bidderID, auctionID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, d)
}

// Paddle handles GET /v1/auctions/:id/paddles/:paddle.
func (h *LotHandler) Paddle(c echo.Context) error {
	auctionID, err := pathID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	paddle, err := strconv.Atoi(c.Param("paddle"))
	if err != nil || paddle <= 0 {
		return c.JSON(http.StatusBadRequest, errBody("invalid paddle"))
	}
	b, err := h.Lots.BidderByPaddle(c.Request().Context(), auctionID, paddle)
	if err != nil {
		return respondError(c, err)
	}
	s, err := h.Lots.GetBidderSummary(c.Request().Context(), b.ID, auctionID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, s)
}
