package sumup

import (
	"net/url"

	"github.com/coastie-uk/convention-auction/internal/model"
)

// AppLink holds what the merchant app needs to take a card payment.
// ForeignTxID carries the intent id so the app callback can be correlated
// with the intent that started it.
type AppLink struct {
	AffiliateKey    string
	AppID           string
	AmountMinor     int64
	Currency        string
	Title           string
	ForeignTxID     string
	CallbackSuccess string
	CallbackFail    string
}

// URL renders the sumupmerchant:// deep link.
func (l AppLink) URL() string {
	q := url.Values{}
	q.Set("affiliate-key", l.AffiliateKey)
	if l.AppID != "" {
		q.Set("app-id", l.AppID)
	}
	q.Set("total", model.MinorToMajor(l.AmountMinor).StringFixed(2))
	q.Set("currency", l.Currency)
	q.Set("title", l.Title)
	q.Set("foreign-tx-id", l.ForeignTxID)
	q.Set("callbacksuccess", l.CallbackSuccess)
	q.Set("callbackfail", l.CallbackFail)
	return "sumupmerchant://pay/1.0?" + q.Encode()
}
