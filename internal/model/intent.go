package model

import "time"

// IntentStatus is the state of a card payment request.
type IntentStatus string

const (
	IntentPending   IntentStatus = "pending"
	IntentSucceeded IntentStatus = "succeeded"
	IntentFailed    IntentStatus = "failed"
	IntentExpired   IntentStatus = "expired"
)

// Terminal reports whether no further transition is possible.
func (s IntentStatus) Terminal() bool { return s != IntentPending }

// Channel is how a card payment is collected.
type Channel string

const (
	ChannelHosted Channel = "hosted"
	ChannelApp    Channel = "app"
	ChannelAppInd Channel = "app-ind"
)

// ParseChannel validates a channel name.
func ParseChannel(s string) (Channel, bool) {
	switch c := Channel(s); c {
	case ChannelHosted, ChannelApp, ChannelAppInd:
		return c, true
	}
	return "", false
}

// PaymentMethod is the method recorded on the payment row produced by an
// intent collected through this channel.
func (c Channel) PaymentMethod() string {
	switch c {
	case ChannelHosted:
		return MethodSumUpWeb
	case ChannelAppInd:
		return MethodSumUpAppIn
	}
	return MethodSumUpApp
}

// PaymentIntent is a provisional card payment. AmountMinor is in minor
// units (pence/cents) because that is what the provider speaks.
type PaymentIntent struct {
	IntentID        string       `json:"intent_id"`
	BidderID        int64        `json:"bidder_id"`
	AmountMinor     int64        `json:"amount_minor"`
	Currency        string       `json:"currency"`
	Channel         Channel      `json:"channel"`
	Status          IntentStatus `json:"status"`
	ExpiresAt       time.Time    `json:"expires_at"`
	SumUpCheckoutID *string      `json:"sumup_checkout_id"`
	Note            string       `json:"note"`
	CreatedBy       string       `json:"created_by"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

// Expired reports whether the intent's TTL has elapsed at now.
func (p PaymentIntent) Expired(now time.Time) bool { return !now.Before(p.ExpiresAt) }
