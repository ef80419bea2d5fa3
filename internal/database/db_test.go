package database

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func openTest(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()
	db, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := Migrate(ctx, db); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return db
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := openTest(t)
	if err := Migrate(context.Background(), db); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}
	if got := DialectOf(db); got != DialectSQLite {
		t.Errorf("DialectOf() = %v, want %v", got, DialectSQLite)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	db := openTest(t)
	ctx := context.Background()
	now := time.Now().UTC()
	const q = `INSERT INTO auctions (short_name, full_name, status, created_at) VALUES (?, ?, 'setup', ?)`
	if _, err := db.ExecContext(ctx, q, "spring", "Spring Auction", now); err != nil {
		t.Fatalf("first insert error = %v", err)
	}
	_, err := db.ExecContext(ctx, q, "spring", "Spring Again", now)
	if !IsUniqueViolation(err) {
		t.Errorf("IsUniqueViolation(%v) = false, want true", err)
	}
	if IsUniqueViolation(errors.New("boom")) {
		t.Error("IsUniqueViolation(plain error) = true, want false")
	}
	if IsUniqueViolation(nil) {
		t.Error("IsUniqueViolation(nil) = true, want false")
	}
}

func TestPaymentIdempotencyIndexAllowsManualRows(t *testing.T) {
	db := openTest(t)
	ctx := context.Background()
	now := time.Now().UTC()
	if _, err := db.ExecContext(ctx, `INSERT INTO auctions (short_name, full_name, created_at) VALUES ('a', 'A', ?)`, now); err != nil {
		t.Fatal(err)
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO bidders (auction_id, paddle_number, created_at) VALUES (1, 7, ?)`, now); err != nil {
		t.Fatal(err)
	}
	const ins = `INSERT INTO payments (bidder_id, amount, method, provider, intent_id, created_by, created_at) VALUES (1, '5', ?, ?, ?, 'test', ?)`
	// manual payments carry NULL provider/intent and never collide
	for i := 0; i < 2; i++ {
		if _, err := db.ExecContext(ctx, ins, "cash", nil, nil, now); err != nil {
			t.Fatalf("manual insert %d error = %v", i, err)
		}
	}
	if _, err := db.ExecContext(ctx, ins, "sumup-app", "sumup", "intent-1", now); err != nil {
		t.Fatalf("provider insert error = %v", err)
	}
	_, err := db.ExecContext(ctx, ins, "sumup-app", "sumup", "intent-1", now)
	if !IsUniqueViolation(err) {
		t.Errorf("duplicate provider payment error = %v, want unique violation", err)
	}
}

func TestResetSequences(t *testing.T) {
	db := openTest(t)
	ctx := context.Background()
	now := time.Now().UTC()
	for _, name := range []string{"a", "b"} {
		if _, err := db.ExecContext(ctx, `INSERT INTO auctions (short_name, full_name, created_at) VALUES (?, ?, ?)`, name, name, now); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM auctions`); err != nil {
		t.Fatal(err)
	}
	if err := ResetSequences(ctx, db); err != nil {
		t.Fatalf("ResetSequences() error = %v", err)
	}
	res, err := db.ExecContext(ctx, `INSERT INTO auctions (short_name, full_name, created_at) VALUES ('c', 'c', ?)`, now)
	if err != nil {
		t.Fatal(err)
	}
	id, _ := res.LastInsertId()
	if id != 1 {
		t.Errorf("id after reset = %d, want 1", id)
	}
}
