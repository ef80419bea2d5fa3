package model

import (
	"strings"
	"time"
)

// AuctionStatus is the lifecycle phase of an auction.
type AuctionStatus string

const (
	StatusSetup      AuctionStatus = "setup"
	StatusLocked     AuctionStatus = "locked"
	StatusLive       AuctionStatus = "live"
	StatusSettlement AuctionStatus = "settlement"
	StatusArchived   AuctionStatus = "archived"
)

// AllStatuses lists every lifecycle phase in order.
var AllStatuses = []AuctionStatus{StatusSetup, StatusLocked, StatusLive, StatusSettlement, StatusArchived}

// ParseStatus converts s to an AuctionStatus, ignoring case and
// surrounding whitespace.
func ParseStatus(s string) (AuctionStatus, bool) {
	norm := AuctionStatus(strings.ToLower(strings.TrimSpace(s)))
	for _, st := range AllStatuses {
		if st == norm {
			return st, true
		}
	}
	return "", false
}

// Auction is a single fundraising event. ShortName is unique and never
// changes after creation.
type Auction struct {
	ID                  int64         `json:"id"`
	ShortName           string        `json:"short_name"`
	FullName            string        `json:"full_name"`
	Status              AuctionStatus `json:"status"`
	AdminCanChangeState bool          `json:"admin_can_change_state"`
	Logo                string        `json:"logo"`
	CreatedAt           time.Time     `json:"created_at"`
}
