package router

import (
	"github.com/labstack/echo/v4"

	"github.com/coastie-uk/convention-auction/internal/handler"
	"github.com/coastie-uk/convention-auction/internal/middleware"
	"github.com/coastie-uk/convention-auction/internal/model"
)

// StaffHandlers groups the handlers behind staff authentication.
type StaffHandlers struct {
	Auctions *handler.AuctionHandler
	Items    *handler.ItemHandler
	Lots     *handler.LotHandler
	Audit    *handler.AuditHandler
}

// RegisterStaff registers the catalogue, lot and administration endpoints
// under /v1. Every route needs a valid JWT; mutations are limited to admin
// and maintenance users. Finer checks, such as whether an admin may change
// an auction's status, happen in the service layer.
func RegisterStaff(e *echo.Echo, h StaffHandlers, jwtSecret string) {
	anyRole := middleware.RequireRole(model.RoleAdmin, model.RoleCashier, model.RoleMaintenance)
	manage := middleware.RequireRole(model.RoleAdmin, model.RoleMaintenance)

	g := e.Group("/v1", middleware.JWTAuth(jwtSecret))

	// ---- Auctions ----
	g.GET("/auctions", h.Auctions.List, anyRole)
	g.GET("/auctions/:id", h.Auctions.Get, anyRole)
	g.POST("/auctions", h.Auctions.Create, manage)
	g.PATCH("/auctions/:id/status", h.Auctions.UpdateStatus, manage)
	g.PATCH("/auctions/:id/admin-state-change", h.Auctions.SetAdminStateChange, middleware.RequireRole(model.RoleMaintenance))
	g.DELETE("/auctions/:id", h.Auctions.Delete, manage)

	// ---- Items ----
	g.GET("/auctions/:id/items", h.Items.List, anyRole)
	g.GET("/items/:item_id", h.Items.Get, anyRole)
	g.POST("/auctions/:id/items", h.Items.Create, manage)
	g.PUT("/auctions/:id/items/:item_id", h.Items.Update, manage)
	g.PATCH("/auctions/:id/items/:item_id", h.Items.Update, manage)
	g.DELETE("/auctions/:id/items/:item_id", h.Items.Delete, manage)
	g.POST("/auctions/:id/items/:item_id/move", h.Items.Move, manage)
	g.POST("/items/:item_id/move-auction", h.Items.MoveToAuction, manage)
	g.POST("/auctions/:id/renumber", h.Items.Renumber, manage)

	// ---- Lots ----
	g.POST("/auctions/:id/items/:item_id/finalize", h.Lots.Finalize, manage)
	g.POST("/auctions/:id/items/:item_id/undo", h.Lots.Undo, manage)

	// ---- Bidders ----
	g.GET("/auctions/:id/bidders", h.Lots.Bidders, anyRole)
	g.GET("/auctions/:id/bidders/:bidder_id", h.Lots.Bidder, anyRole)
	g.GET("/auctions/:id/paddles/:paddle", h.Lots.Paddle, anyRole)

	// ---- Audit ----
	g.GET("/audit", h.Audit.List, manage)
}
