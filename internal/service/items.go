package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/coastie-uk/convention-auction/internal/model"
	"github.com/coastie-uk/convention-auction/internal/repository"
)

// ItemInput carries the descriptive fields of an item.
type ItemInput struct {
	Description string `json:"description"`
	Contributor string `json:"contributor"`
	Artist      string `json:"artist"`
	Notes       string `json:"notes"`
	Photo       string `json:"photo"`
	TestItem    bool   `json:"test_item"`
}

func (in *ItemInput) normalize() error {
	in.Description = strings.TrimSpace(in.Description)
	in.Contributor = strings.TrimSpace(in.Contributor)
	in.Artist = strings.TrimSpace(in.Artist)
	in.Notes = strings.TrimSpace(in.Notes)
	if in.Description == "" {
		return invalid("description is required")
	}
	return nil
}

// ItemList is an auction's catalogue with its totals.
type ItemList struct {
	Items  []model.Item      `json:"items"`
	Totals repository.Totals `json:"totals"`
}

// Catalogue manages the items of an auction.
type Catalogue struct {
	db    *sql.DB
	repos Repos
	guard *AuctionStateGuard
	audit *AuditTrail
}

// NewCatalogue wires a Catalogue.
func NewCatalogue(db *sql.DB, repos Repos, guard *AuctionStateGuard, audit *AuditTrail) *Catalogue {
	return &Catalogue{db: db, repos: repos, guard: guard, audit: audit}
}

// CreateItem appends an item to the auction's catalogue.
func (c *Catalogue) CreateItem(ctx context.Context, who model.Identity, auctionID int64, in ItemInput) (*model.Item, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	auctionID, err := c.guard.Check(ctx, Ref{AuctionID: auctionID}, model.StatusSetup, model.StatusLocked)
	if err != nil {
		return nil, err
	}
	it := &model.Item{
		AuctionID:   auctionID,
		Description: in.Description,
		Contributor: in.Contributor,
		Artist:      in.Artist,
		Notes:       in.Notes,
		Photo:       in.Photo,
		TestItem:    in.TestItem,
	}
	err = repository.WithTx(ctx, c.db, func(tx *sql.Tx) error {
		return c.repos.Items.CreateTx(ctx, tx, it)
	})
	if err != nil {
		return nil, err
	}
	c.audit.Record(ctx, who.Username, "create item", model.ObjectItem, it.ID, map[string]any{"item_number": it.ItemNumber})
	return it, nil
}

// UpdateItem rewrites an item's descriptive fields. Sale data is left
// untouched, so sold items remain editable while the auction is live.
func (c *Catalogue) UpdateItem(ctx context.Context, who model.Identity, auctionID, itemID int64, in ItemInput) (*model.Item, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	if _, err := c.guard.Check(ctx, Ref{AuctionID: auctionID, ItemID: itemID}, model.StatusSetup, model.StatusLocked, model.StatusLive); err != nil {
		return nil, err
	}
	var it *model.Item
	err := repository.WithTx(ctx, c.db, func(tx *sql.Tx) error {
		var err error
		it, err = c.repos.Items.GetByID(ctx, tx, itemID)
		if err != nil {
			return lookupErr(err, "item", itemID)
		}
		it.Description = in.Description
		it.Contributor = in.Contributor
		it.Artist = in.Artist
		it.Notes = in.Notes
		it.Photo = in.Photo
		it.TestItem = in.TestItem
		return c.repos.Items.UpdateDetailsTx(ctx, tx, it)
	})
	if err != nil {
		return nil, err
	}
	c.audit.Record(ctx, who.Username, "update item", model.ObjectItem, itemID, nil)
	return it, nil
}

// DeleteItem removes an unsold item and renumbers the remainder.
func (c *Catalogue) DeleteItem(ctx context.Context, who model.Identity, auctionID, itemID int64) error {
	auctionID, err := c.guard.Check(ctx, Ref{AuctionID: auctionID, ItemID: itemID}, model.StatusSetup, model.StatusLocked)
	if err != nil {
		return err
	}
	var description string
	err = repository.WithTx(ctx, c.db, func(tx *sql.Tx) error {
		it, err := c.repos.Items.GetByID(ctx, tx, itemID)
		if err != nil {
			return lookupErr(err, "item", itemID)
		}
		description = it.Description
		if err := c.repos.Items.DeleteTx(ctx, tx, itemID); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return conflict("item %d is sold and cannot be deleted", itemID)
			}
			return lookupErr(err, "item", itemID)
		}
		_, err = renumberTx(ctx, tx, c.repos.Items, auctionID)
		return err
	})
	if err != nil {
		return err
	}
	// the row is gone, so supply the context enrichment would have found
	c.audit.Record(ctx, who.Username, "delete item", model.ObjectItem, itemID, map[string]any{
		"auction_id":  auctionID,
		"description": description,
	})
	return nil
}

// ListItems returns the auction's items in catalogue order with totals.
func (c *Catalogue) ListItems(ctx context.Context, ref Ref) (*ItemList, error) {
	auctionID, err := c.guard.Resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	items, err := c.repos.Items.ListByAuction(ctx, c.db, auctionID)
	if err != nil {
		return nil, err
	}
	totals, err := c.repos.Items.TotalsFor(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	return &ItemList{Items: items, Totals: totals}, nil
}

// GetItem loads one item.
func (c *Catalogue) GetItem(ctx context.Context, itemID int64) (*model.Item, error) {
	it, err := c.repos.Items.GetByID(ctx, c.db, itemID)
	if err != nil {
		return nil, lookupErr(err, "item", itemID)
	}
	return it, nil
}
