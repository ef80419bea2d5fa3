package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Item is a lot offered in an auction. ItemNumber is dense (1..N) within
// the auction. A sold item carries both WinningBidderID and HammerPrice.
type Item struct {
	ID              int64               `json:"id"`
	AuctionID       int64               `json:"auction_id"`
	ItemNumber      int                 `json:"item_number"`
	Description     string              `json:"description"`
	Contributor     string              `json:"contributor"`
	Artist          string              `json:"artist"`
	Notes           string              `json:"notes"`
	Photo           string              `json:"photo"`
	WinningBidderID *int64              `json:"winning_bidder_id"`
	HammerPrice     decimal.NullDecimal `json:"hammer_price"`
	TestItem        bool                `json:"test_item"`
	TestBid         bool                `json:"test_bid"`
	Date            time.Time           `json:"date"`
	ModDate         time.Time           `json:"mod_date"`

	// Paddle is filled by list queries that join the winning bidder.
	Paddle *int `json:"paddle_number,omitempty"`
}

// Sold reports whether a hammer price has been recorded.
func (i Item) Sold() bool { return i.HammerPrice.Valid }
