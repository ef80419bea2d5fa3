package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/coastie-uk/convention-auction/internal/service"
)

// PaymentHandler exposes intents, provider notifications and manual
// payments.
type PaymentHandler struct {
	Payments *service.PaymentReconciler
}

// NewPaymentHandler panics when payments is nil.
func NewPaymentHandler(payments *service.PaymentReconciler) *PaymentHandler {
	if payments == nil {
		panic("nil PaymentReconciler passed to NewPaymentHandler")
	}
	return &PaymentHandler{Payments: payments}
}

// CreateIntent handles POST /v1/payments/intents.
func (h *PaymentHandler) CreateIntent(c echo.Context) error {
	var in service.CreateIntentInput
	if err := c.Bind(&in); err != nil {
		return badBody(c)
	}
	res, err := h.Payments.CreateIntent(c.Request().Context(), caller(c), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, res)
}

// PollIntent handles GET /v1/payments/intents/:intent_id. Pending hosted
// intents are checked with the provider first.
func (h *PaymentHandler) PollIntent(c echo.Context) error {
	id := c.Param("intent_id")
	res, err := h.Payments.PollIntent(c.Request().Context(), id)
	if err != nil {
		return h.finalizeError(c, id, err)
	}
	return h.finalized(c, res)
}

// Webhook handles POST /payments/sumup/webhook. The provider retries on
// anything but 2xx, so unknown checkouts are acknowledged and ignored.
func (h *PaymentHandler) Webhook(c echo.Context) error {
	var body struct {
		EventType string `json:"event_type"`
		ID        string `json:"id"`
	}
	if err := c.Bind(&body); err != nil || strings.TrimSpace(body.ID) == "" {
		return c.JSON(http.StatusBadRequest, errBody("checkout id is required"))
	}
	res, err := h.Payments.FinalizeByCheckout(c.Request().Context(), body.ID)
	if errors.Is(err, service.ErrNotFound) {
		slog.Warn("webhook for unknown checkout", slog.String("checkout_id", body.ID), slog.String("event_type", body.EventType))
		return c.JSON(http.StatusOK, echo.Map{"outcome": "ignored"})
	}
	if err != nil {
		return h.finalizeError(c, "", err)
	}
	return h.finalized(c, res)
}

// CallbackSuccess handles GET /payments/sumup/callback/success, where the
// provider app returns the browser after a payment attempt.
func (h *PaymentHandler) CallbackSuccess(c echo.Context) error {
	id := strings.TrimSpace(c.QueryParam("foreign-tx-id"))
	if id == "" {
		return c.JSON(http.StatusBadRequest, errBody("foreign-tx-id is required"))
	}
	sig := service.Signal{
		Status:          c.QueryParam("smp-status"),
		TransactionCode: c.QueryParam("smp-tx-code"),
	}
	res, err := h.Payments.FinalizeIntent(c.Request().Context(), id, sig, service.SourceCallback)
	if err != nil {
		return h.finalizeError(c, id, err)
	}
	return h.finalized(c, res)
}

// CallbackFail handles GET /payments/sumup/callback/fail.
func (h *PaymentHandler) CallbackFail(c echo.Context) error {
	id := strings.TrimSpace(c.QueryParam("foreign-tx-id"))
	if id == "" {
		return c.JSON(http.StatusBadRequest, errBody("foreign-tx-id is required"))
	}
	cause := c.QueryParam("smp-failure-cause")
	if cause == "" {
		cause = c.QueryParam("smp-message")
	}
	res, err := h.Payments.FailIntentFromCallback(c.Request().Context(), id, cause)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// Launch handles GET /payments/intents/:intent_id/launch and redirects a
// phone to the provider app for a pending app-ind intent.
func (h *PaymentHandler) Launch(c echo.Context) error {
	url, err := h.Payments.LaunchURL(c.Request().Context(), c.Param("intent_id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.Redirect(http.StatusFound, url)
}

// Record handles POST /v1/payments for cash, card and cheque payments.
func (h *PaymentHandler) Record(c echo.Context) error {
	var in service.ManualPaymentInput
	if err := c.Bind(&in); err != nil {
		return badBody(c)
	}
	p, err := h.Payments.RecordPayment(c.Request().Context(), caller(c), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, p)
}

// Reverse handles POST /v1/payments/:id/reverse.
func (h *PaymentHandler) Reverse(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var body struct {
		Amount    decimal.Decimal `json:"amount"`
		Reason    string          `json:"reason"`
		AuctionID int64           `json:"auction_id"`
	}
	if err := c.Bind(&body); err != nil {
		return badBody(c)
	}
	p, err := h.Payments.ReversePayment(c.Request().Context(), caller(c), id, body.Reason, body.Amount, body.AuctionID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *PaymentHandler) finalized(c echo.Context, res *service.FinalizeResult) error {
	if res.Outcome == service.OutcomePending {
		return c.JSON(http.StatusAccepted, res)
	}
	return c.JSON(http.StatusOK, res)
}

// finalizeError answers 202 when the provider could not be reached. The
// intent is still pending and a later poll or webhook settles it.
func (h *PaymentHandler) finalizeError(c echo.Context, intentID string, err error) error {
	if !errors.Is(err, service.ErrTransientProvider) {
		return respondError(c, err)
	}
	body := echo.Map{"outcome": service.OutcomePending, "error": "payment provider unavailable, retry later"}
	if intentID != "" {
		if intent, gerr := h.Payments.GetIntent(c.Request().Context(), intentID); gerr == nil {
			body["intent"] = intent
		}
	}
	return c.JSON(http.StatusAccepted, body)
}
