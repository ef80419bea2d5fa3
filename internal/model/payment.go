package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payment methods recorded on payment rows.
const (
	MethodCash       = "cash"
	MethodCard       = "card"
	MethodCheque     = "cheque"
	MethodOther      = "other"
	MethodSumUpWeb   = "sumup-web"
	MethodSumUpApp   = "sumup-app"
	MethodSumUpAppIn = "sumup-app-ind"
	MethodReversal   = "reversal"
)

// ManualMethods are the methods a cashier may record by hand.
var ManualMethods = map[string]bool{
	MethodCash:   true,
	MethodCard:   true,
	MethodCheque: true,
	MethodOther:  true,
}

// ProviderSumUp names the card payment provider on provider-originated rows.
const ProviderSumUp = "sumup"

// Payment is money received from (or, when negative, returned to) a
// bidder. Amount is in major units. Rows are never edited; a reversal is
// a new negative row pointing at the original through ReversesPaymentID.
type Payment struct {
	ID                int64           `json:"id"`
	BidderID          int64           `json:"bidder_id"`
	Amount            decimal.Decimal `json:"amount"`
	Method            string          `json:"method"`
	Note              string          `json:"note"`
	Provider          *string         `json:"provider"`
	ProviderTxnID     *string         `json:"provider_txn_id"`
	IntentID          *string         `json:"intent_id"`
	ReversesPaymentID *int64          `json:"reverses_payment_id"`
	CreatedBy         string          `json:"created_by"`
	CreatedAt         time.Time       `json:"created_at"`
}
