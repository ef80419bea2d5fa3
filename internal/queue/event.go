// Package queue defines the ledger event payloads exchanged over RabbitMQ
// and the consumer that logs them.
package queue

import "time"

// Event types.
const (
	EventLotSold         = "lot.sold"
	EventLotUndone       = "lot.undone"
	EventPaymentRecorded = "payment.recorded"
	EventPaymentReversed = "payment.reversed"
	EventStatusChanged   = "auction.status_changed"
	EventAuctionDeleted  = "auction.deleted"
	EventIntentFailed    = "intent.failed"
)

// Event is published after a ledger change commits. Consumers get enough
// context to log or notify without querying the database.
type Event struct {
	Type       string `json:"type"`
	AuctionID  int64  `json:"auction_id,omitempty"`
	ItemID     int64  `json:"item_id,omitempty"`
	BidderID   int64  `json:"bidder_id,omitempty"`
	PaymentID  int64  `json:"payment_id,omitempty"`
	IntentID   string `json:"intent_id,omitempty"`
	Paddle     int    `json:"paddle_number,omitempty"`
	Amount     string `json:"amount,omitempty"`
	Status     string `json:"status,omitempty"`
	User       string `json:"user,omitempty"`
	OccurredAt string `json:"occurred_at"`
}

// NewEvent stamps an event of the given type with the current time.
func NewEvent(typ string) Event {
	return Event{Type: typ, OccurredAt: time.Now().UTC().Format(time.RFC3339)}
}
