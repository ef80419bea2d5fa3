package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Bidder is a paddle registered in one auction. The same paddle number in
// another auction is a different bidder.
type Bidder struct {
	ID           int64     `json:"id"`
	AuctionID    int64     `json:"auction_id"`
	PaddleNumber int       `json:"paddle_number"`
	CreatedAt    time.Time `json:"created_at"`
}

// BidderSummary is the settlement position of one bidder. It is always
// computed from item and payment rows, never stored.
type BidderSummary struct {
	BidderID      int64           `json:"bidder_id"`
	AuctionID     int64           `json:"auction_id"`
	PaddleNumber  int             `json:"paddle_number"`
	LotsCount     int             `json:"lots_count"`
	LotsTotal     decimal.Decimal `json:"lots_total"`
	PaymentsTotal decimal.Decimal `json:"payments_total"`
	Balance       decimal.Decimal `json:"balance"`
}

// BidderDetail adds the underlying rows to a summary.
type BidderDetail struct {
	BidderSummary
	Lots     []Item          `json:"lots"`
	Payments []Payment       `json:"payments"`
	Intents  []PaymentIntent `json:"intents"`
}
