// Package router registers the HTTP routes of the auction ledger.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/coastie-uk/convention-auction/internal/handler"
)

// RegisterRoutes registers routes that need no authentication: the health
// probe and the public catalogue of non-archived auctions.
func RegisterRoutes(e *echo.Echo, health *handler.HealthHandler, items *handler.ItemHandler) {
	e.GET("/healthz", health.Health)
	e.GET("/v1/public/auctions/:short/items", items.PublicList)
}
