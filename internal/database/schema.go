package database

import (
	"context"
	"database/sql"
	"fmt"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS auctions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		short_name TEXT NOT NULL UNIQUE,
		full_name TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'setup',
		admin_can_change_state BOOLEAN NOT NULL DEFAULT 0,
		logo TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS bidders (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		auction_id INTEGER NOT NULL REFERENCES auctions(id),
		paddle_number INTEGER NOT NULL,
		created_at DATETIME NOT NULL,
		UNIQUE (auction_id, paddle_number)
	)`,
	`CREATE TABLE IF NOT EXISTS items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		auction_id INTEGER NOT NULL REFERENCES auctions(id),
		item_number INTEGER NOT NULL,
		description TEXT NOT NULL,
		contributor TEXT NOT NULL DEFAULT '',
		artist TEXT NOT NULL DEFAULT '',
		notes TEXT NOT NULL DEFAULT '',
		photo TEXT NOT NULL DEFAULT '',
		winning_bidder_id INTEGER REFERENCES bidders(id),
		hammer_price TEXT,
		test_item BOOLEAN NOT NULL DEFAULT 0,
		test_bid BOOLEAN NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		mod_date DATETIME NOT NULL,
		UNIQUE (auction_id, item_number)
	)`,
	`CREATE TABLE IF NOT EXISTS payments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		bidder_id INTEGER NOT NULL REFERENCES bidders(id),
		amount TEXT NOT NULL,
		method TEXT NOT NULL,
		note TEXT NOT NULL DEFAULT '',
		provider TEXT,
		provider_txn_id TEXT,
		intent_id TEXT,
		reverses_payment_id INTEGER REFERENCES payments(id),
		created_by TEXT NOT NULL,
		created_at DATETIME NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_payments_provider_intent ON payments (provider, intent_id)`,
	`CREATE INDEX IF NOT EXISTS ix_payments_bidder ON payments (bidder_id)`,
	`CREATE TABLE IF NOT EXISTS payment_intents (
		intent_id TEXT PRIMARY KEY,
		bidder_id INTEGER NOT NULL REFERENCES bidders(id),
		amount_minor INTEGER NOT NULL,
		currency TEXT NOT NULL,
		channel TEXT NOT NULL,
		status TEXT NOT NULL,
		expires_at INTEGER NOT NULL,
		sumup_checkout_id TEXT,
		note TEXT NOT NULL DEFAULT '',
		created_by TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS ix_intents_checkout ON payment_intents (sumup_checkout_id)`,
	`CREATE INDEX IF NOT EXISTS ix_intents_status_expiry ON payment_intents (status, expires_at)`,
	`CREATE TABLE IF NOT EXISTS audit_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL,
		action TEXT NOT NULL,
		object_type TEXT NOT NULL,
		object_id INTEGER NOT NULL DEFAULT 0,
		details TEXT NOT NULL DEFAULT '{}',
		created_at DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS ix_audit_object ON audit_log (object_type, object_id)`,
}

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS auctions (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		short_name VARCHAR(64) NOT NULL UNIQUE,
		full_name VARCHAR(255) NOT NULL,
		status VARCHAR(16) NOT NULL DEFAULT 'setup',
		admin_can_change_state TINYINT(1) NOT NULL DEFAULT 0,
		logo VARCHAR(255) NOT NULL DEFAULT '',
		created_at DATETIME(6) NOT NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS bidders (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		auction_id BIGINT NOT NULL,
		paddle_number INT NOT NULL,
		created_at DATETIME(6) NOT NULL,
		UNIQUE KEY ux_bidders_auction_paddle (auction_id, paddle_number),
		CONSTRAINT fk_bidders_auction FOREIGN KEY (auction_id) REFERENCES auctions(id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS items (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		auction_id BIGINT NOT NULL,
		item_number INT NOT NULL,
		description TEXT NOT NULL,
		contributor VARCHAR(255) NOT NULL DEFAULT '',
		artist VARCHAR(255) NOT NULL DEFAULT '',
		notes TEXT NOT NULL,
		photo VARCHAR(255) NOT NULL DEFAULT '',
		winning_bidder_id BIGINT NULL,
		hammer_price DECIMAL(12,2) NULL,
		test_item TINYINT(1) NOT NULL DEFAULT 0,
		test_bid TINYINT(1) NOT NULL DEFAULT 0,
		created_at DATETIME(6) NOT NULL,
		mod_date DATETIME(6) NOT NULL,
		UNIQUE KEY ux_items_auction_number (auction_id, item_number),
		CONSTRAINT fk_items_auction FOREIGN KEY (auction_id) REFERENCES auctions(id),
		CONSTRAINT fk_items_bidder FOREIGN KEY (winning_bidder_id) REFERENCES bidders(id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS payments (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		bidder_id BIGINT NOT NULL,
		amount DECIMAL(12,2) NOT NULL,
		method VARCHAR(32) NOT NULL,
		note VARCHAR(255) NOT NULL DEFAULT '',
		provider VARCHAR(32) NULL,
		provider_txn_id VARCHAR(128) NULL,
		intent_id VARCHAR(64) NULL,
		reverses_payment_id BIGINT NULL,
		created_by VARCHAR(64) NOT NULL,
		created_at DATETIME(6) NOT NULL,
		UNIQUE KEY ux_payments_provider_intent (provider, intent_id),
		KEY ix_payments_bidder (bidder_id),
		CONSTRAINT fk_payments_bidder FOREIGN KEY (bidder_id) REFERENCES bidders(id),
		CONSTRAINT fk_payments_reverses FOREIGN KEY (reverses_payment_id) REFERENCES payments(id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS payment_intents (
		intent_id VARCHAR(64) PRIMARY KEY,
		bidder_id BIGINT NOT NULL,
		amount_minor BIGINT NOT NULL,
		currency CHAR(3) NOT NULL,
		channel VARCHAR(16) NOT NULL,
		status VARCHAR(16) NOT NULL,
		expires_at BIGINT NOT NULL,
		sumup_checkout_id VARCHAR(128) NULL,
		note VARCHAR(255) NOT NULL DEFAULT '',
		created_by VARCHAR(64) NOT NULL,
		created_at DATETIME(6) NOT NULL,
		updated_at DATETIME(6) NOT NULL,
		KEY ix_intents_checkout (sumup_checkout_id),
		KEY ix_intents_status_expiry (status, expires_at),
		CONSTRAINT fk_intents_bidder FOREIGN KEY (bidder_id) REFERENCES bidders(id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS audit_log (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		username VARCHAR(64) NOT NULL,
		action VARCHAR(128) NOT NULL,
		object_type VARCHAR(16) NOT NULL,
		object_id BIGINT NOT NULL DEFAULT 0,
		details TEXT NOT NULL,
		created_at DATETIME(6) NOT NULL,
		KEY ix_audit_object (object_type, object_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate creates any missing tables. Statements are idempotent so the
// function is safe to run on every start.
func Migrate(ctx context.Context, db *sql.DB) error {
	stmts := sqliteSchema
	if DialectOf(db) == DialectMySQL {
		stmts = mysqlSchema
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// sequenceTables lists tables whose id counters are reset when the last
// auction is deleted.
var sequenceTables = []string{"auctions", "items", "bidders", "payments"}

// ResetSequences restarts the id counters of the ledger tables. It is
// only meaningful once those tables are empty. MySQL commits implicitly
// on ALTER TABLE, so this runs outside any transaction.
func ResetSequences(ctx context.Context, db *sql.DB) error {
	d := DialectOf(db)
	for _, table := range sequenceTables {
		var err error
		if d == DialectMySQL {
			_, err = db.ExecContext(ctx, "ALTER TABLE "+table+" AUTO_INCREMENT = 1")
		} else {
			_, err = db.ExecContext(ctx, `DELETE FROM sqlite_sequence WHERE name = ?`, table)
		}
		if err != nil {
			return fmt.Errorf("reset sequence %s: %w", table, err)
		}
	}
	return nil
}
