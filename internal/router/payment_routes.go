package router

import (
	"github.com/labstack/echo/v4"

	"github.com/coastie-uk/convention-auction/internal/handler"
	"github.com/coastie-uk/convention-auction/internal/middleware"
	"github.com/coastie-uk/convention-auction/internal/model"
)

// RegisterPayments registers the cashier payment endpoints under /v1 and
// the provider-facing endpoints at the root. The provider endpoints carry
// no JWT and are rate limited instead.
func RegisterPayments(e *echo.Echo, p *handler.PaymentHandler, jwtSecret string, limiter echo.MiddlewareFunc) {
	g := e.Group(
		"/v1/payments",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleCashier, model.RoleAdmin, model.RoleMaintenance),
	)
	g.POST("/intents", p.CreateIntent)
	g.GET("/intents/:intent_id", p.PollIntent)
	g.POST("", p.Record)
	g.POST("/:id/reverse", p.Reverse)

	pub := e.Group("/payments", limiter)
	pub.POST("/sumup/webhook", p.Webhook)
	pub.GET("/sumup/callback/success", p.CallbackSuccess)
	pub.GET("/sumup/callback/fail", p.CallbackFail)
	pub.GET("/intents/:intent_id/launch", p.Launch)
}
