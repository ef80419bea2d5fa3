package model

import "time"

// ObjectType classifies the subject of an audit entry.
type ObjectType string

const (
	ObjectItem     ObjectType = "item"
	ObjectBidder   ObjectType = "bidder"
	ObjectPayment  ObjectType = "payment"
	ObjectAuction  ObjectType = "auction"
	ObjectDatabase ObjectType = "database"
	ObjectServer   ObjectType = "server"
)

// Known reports whether t is one of the recognised object types.
func (t ObjectType) Known() bool {
	switch t {
	case ObjectItem, ObjectBidder, ObjectPayment, ObjectAuction, ObjectDatabase, ObjectServer:
		return true
	}
	return false
}

// AuditEntry is one append-only audit log row.
type AuditEntry struct {
	ID         int64          `json:"id"`
	User       string         `json:"user"`
	Action     string         `json:"action"`
	ObjectType ObjectType     `json:"object_type"`
	ObjectID   int64          `json:"object_id"`
	Details    map[string]any `json:"details"`
	CreatedAt  time.Time      `json:"created_at"`
}
