package db

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/storefront-payments/pkg/logger"
)

type testModel struct {
	ID   int
	Name string `gorm:"uniqueIndex"`
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&testModel{}); err != nil {
		t.Fatalf("failed to migrate sqlite: %v", err)
	}
	return conn
}

func TestWithTx_CommitsAndRollbacks(t *testing.T) {
	db := newTestDB(t)
	client := NewFromConn(db)

	ctx := context.Background()
	if err := client.WithTx(ctx, func(tx *gorm.DB) error {
		return tx.Create(&testModel{Name: "committed"}).Error
	}); err != nil {
		t.Fatalf("WithTx commit failed: %v", err)
	}

	var count int64
	if err := db.Model(&testModel{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 record, got %d", count)
	}

	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&testModel{Name: "rolled"}).Error; err != nil {
			return err
		}
		return errors.New("boom")
	})
	if err == nil {
		t.Fatal("expected WithTx to return an error")
	}
	if err := db.Model(&testModel{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed after rollback: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected rollback to leave 1 record, got %d", count)
	}
}

func TestWithSavepoint_PartialRollback(t *testing.T) {
	db := newTestDB(t)
	client := NewFromConn(db)

	err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
		if err := WithSavepoint(tx, "sp_a", func(tx *gorm.DB) error {
			return tx.Create(&testModel{Name: "kept"}).Error
		}); err != nil {
			return err
		}
		failed := WithSavepoint(tx, "sp_b", func(tx *gorm.DB) error {
			if err := tx.Create(&testModel{Name: "dropped"}).Error; err != nil {
				return err
			}
			return errors.New("item failed")
		})
		if failed == nil {
			t.Fatalf("expected savepoint error")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("tx failed: %v", err)
	}

	var names []string
	if err := db.Model(&testModel{}).Order("name").Pluck("name", &names).Error; err != nil {
		t.Fatalf("pluck failed: %v", err)
	}
	if len(names) != 1 || names[0] != "kept" {
		t.Fatalf("expected only the first savepoint to survive, got %v", names)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	db := newTestDB(t)
	if err := db.Create(&testModel{Name: "dup"}).Error; err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	sqliteErr := db.Create(&testModel{Name: "dup"}).Error
	if !IsUniqueViolation(sqliteErr, "") {
		t.Fatalf("expected sqlite unique error to match: %v", sqliteErr)
	}

	pgErr := fmt.Errorf("update: %w", &pgconn.PgError{Code: "23505", ConstraintName: "orders_razorpay_payment_id_key"})
	if !IsUniqueViolation(pgErr, "orders_razorpay_payment_id_key") {
		t.Fatalf("expected pgx unique violation to match")
	}
	if IsUniqueViolation(pgErr, "other_constraint") {
		t.Fatalf("constraint filter should not match")
	}

	pqErr := &pq.Error{Code: "23505", Constraint: "refund_transactions_razorpay_refund_id_key"}
	if !IsUniqueViolation(pqErr, "") {
		t.Fatalf("expected pq unique violation to match")
	}
	if IsUniqueViolation(&pq.Error{Code: "23503"}, "") {
		t.Fatalf("foreign key violation should not match")
	}
	if IsUniqueViolation(nil, "") {
		t.Fatalf("nil should not match")
	}
}

func TestPing(t *testing.T) {
	client := NewFromConn(newTestDB(t))
	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected ping error: %v", err)
	}
}

func TestQueryLoggerReportsSlowAndFailedStatements(t *testing.T) {
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "db-test", Output: &buf})
	ql := newQueryLogger(logg, 100*time.Millisecond)
	stmt := func() (string, int64) { return "SELECT 1", 1 }

	ql.Trace(context.Background(), time.Now(), stmt, nil)
	ql.Trace(context.Background(), time.Now(), stmt, gorm.ErrRecordNotFound)
	if buf.Len() != 0 {
		t.Fatalf("fast and not-found statements should be silent, got %s", buf.String())
	}

	ql.Trace(context.Background(), time.Now().Add(-time.Second), stmt, nil)
	if !strings.Contains(buf.String(), "db.slow_query") {
		t.Fatalf("expected slow query entry, got %s", buf.String())
	}

	buf.Reset()
	ql.Trace(context.Background(), time.Now(), stmt, errors.New("relation missing"))
	if !strings.Contains(buf.String(), "db.query_failed") || !strings.Contains(buf.String(), "SELECT 1") {
		t.Fatalf("expected failure entry with sql, got %s", buf.String())
	}

	if newQueryLogger(nil, time.Second) != gormlogger.Discard {
		t.Fatalf("nil logger should discard")
	}
}
