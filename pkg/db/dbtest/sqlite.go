// Package dbtest opens throwaway SQLite databases carrying the payments
// schema for repository and service tests.
package dbtest

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-payments/pkg/db/models"
	"github.com/angelmondragon/storefront-payments/pkg/enums"
)

var schema = []string{`
CREATE TABLE orders (
  id TEXT PRIMARY KEY,
  order_number TEXT NOT NULL UNIQUE,
  customer_id TEXT,
  status TEXT NOT NULL,
  payment_status TEXT NOT NULL,
  razorpay_order_id TEXT UNIQUE,
  razorpay_payment_id TEXT UNIQUE,
  payment_error TEXT,
  payment_details TEXT,
  subtotal NUMERIC NOT NULL DEFAULT 0,
  total NUMERIC NOT NULL DEFAULT 0,
  currency TEXT NOT NULL DEFAULT 'INR',
  paid_at DATETIME,
  inventory_applied_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE order_items (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  variant_id TEXT,
  quantity INTEGER NOT NULL CHECK (quantity > 0),
  unit_price NUMERIC NOT NULL DEFAULT 0
);`, `
CREATE TABLE inventory (
  id TEXT PRIMARY KEY,
  product_id TEXT NOT NULL,
  variant_id TEXT,
  quantity INTEGER NOT NULL DEFAULT 0 CHECK (quantity >= 0),
  updated_at DATETIME
);`, `
CREATE TABLE inventory_history (
  id TEXT PRIMARY KEY,
  inventory_id TEXT NOT NULL,
  order_id TEXT,
  previous_quantity INTEGER NOT NULL,
  new_quantity INTEGER NOT NULL,
  change_type TEXT NOT NULL,
  reason TEXT NOT NULL,
  created_by TEXT,
  created_at DATETIME
);`, `
CREATE TABLE return_requests (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  status TEXT NOT NULL,
  final_refund_amount NUMERIC NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE return_status_history (
  id TEXT PRIMARY KEY,
  return_request_id TEXT NOT NULL,
  from_status TEXT NOT NULL,
  to_status TEXT NOT NULL,
  note TEXT NOT NULL DEFAULT '',
  changed_by TEXT,
  created_at DATETIME
);`, `
CREATE TABLE refund_transactions (
  id TEXT PRIMARY KEY,
  transaction_number TEXT NOT NULL UNIQUE,
  return_request_id TEXT NOT NULL,
  order_id TEXT NOT NULL,
  razorpay_payment_id TEXT NOT NULL,
  razorpay_refund_id TEXT UNIQUE,
  status TEXT NOT NULL,
  original_amount NUMERIC NOT NULL,
  refund_amount NUMERIC NOT NULL,
  deducted_amount NUMERIC NOT NULL DEFAULT 0,
  retry_of_transaction_id TEXT,
  failure_reason TEXT,
  initiated_at DATETIME,
  processed_at DATETIME,
  failed_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
);`, `
CREATE TABLE outbox_dlq (
  id TEXT PRIMARY KEY,
  event_id TEXT NOT NULL UNIQUE,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload_json TEXT NOT NULL,
  error_reason TEXT NOT NULL,
  error_message TEXT,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  failed_at DATETIME NOT NULL,
  created_at DATETIME
);`}

// Open returns a fresh in-memory database with the schema applied. A single
// connection is used so every statement sees the same database.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		NowFunc:                func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range schema {
		if err := conn.Exec(stmt).Error; err != nil {
			t.Fatalf("apply schema: %v", err)
		}
	}
	return conn
}

// OrderSeed describes an order plus its line items and stock.
type OrderSeed struct {
	GatewayOrderID string
	PaymentStatus  enums.PaymentStatus
	PaymentID      *string
	Total          decimal.Decimal
	Items          []ItemSeed
}

// ItemSeed is one line item. Stock < 0 means the product is not stock
// tracked and no inventory row is created.
type ItemSeed struct {
	ProductID uuid.UUID
	VariantID *uuid.UUID
	Quantity  int
	Stock     int
}

// SeedOrder inserts an order, its items and matching inventory rows.
func SeedOrder(t testing.TB, conn *gorm.DB, seed OrderSeed) *models.Order {
	t.Helper()

	status := seed.PaymentStatus
	if status == "" {
		status = enums.PaymentStatusPending
	}
	total := seed.Total
	if total.IsZero() {
		total = decimal.NewFromInt(1000)
	}
	gatewayOrderID := seed.GatewayOrderID
	order := &models.Order{
		OrderNumber:       "ORD-" + uuid.NewString()[:8],
		Status:            enums.OrderStatusPending,
		PaymentStatus:     status,
		RazorpayPaymentID: seed.PaymentID,
		Subtotal:          total,
		Total:             total,
		Currency:          "INR",
	}
	if gatewayOrderID != "" {
		order.RazorpayOrderID = &gatewayOrderID
	}
	if err := conn.Create(order).Error; err != nil {
		t.Fatalf("seed order: %v", err)
	}

	for _, item := range seed.Items {
		if item.ProductID == uuid.Nil {
			item.ProductID = uuid.New()
		}
		line := &models.OrderItem{
			OrderID:   order.ID,
			ProductID: item.ProductID,
			VariantID: item.VariantID,
			Quantity:  item.Quantity,
			UnitPrice: decimal.NewFromInt(100),
		}
		if err := conn.Create(line).Error; err != nil {
			t.Fatalf("seed order item: %v", err)
		}
		order.Items = append(order.Items, *line)
		if item.Stock < 0 {
			continue
		}
		record := &models.InventoryRecord{
			ProductID: item.ProductID,
			VariantID: item.VariantID,
			Quantity:  item.Stock,
		}
		if err := conn.Create(record).Error; err != nil {
			t.Fatalf("seed inventory: %v", err)
		}
	}
	return order
}

// Stock returns the quantity of the inventory row for the product/variant.
func Stock(t testing.TB, conn *gorm.DB, productID uuid.UUID, variantID *uuid.UUID) int {
	t.Helper()
	var record models.InventoryRecord
	q := conn.Where("product_id = ?", productID)
	if variantID == nil {
		q = q.Where("variant_id IS NULL")
	} else {
		q = q.Where("variant_id = ?", *variantID)
	}
	if err := q.First(&record).Error; err != nil {
		t.Fatalf("load inventory: %v", err)
	}
	return record.Quantity
}

// Count returns the number of rows in model's table matching the optional
// condition.
func Count(t testing.TB, conn *gorm.DB, model any, query string, args ...any) int64 {
	t.Helper()
	var n int64
	q := conn.Model(model)
	if query != "" {
		q = q.Where(query, args...)
	}
	if err := q.Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

// SeedReturn inserts a return request for orderID.
func SeedReturn(t testing.TB, conn *gorm.DB, orderID uuid.UUID, status enums.ReturnStatus, amount decimal.Decimal) *models.ReturnRequest {
	t.Helper()
	ret := &models.ReturnRequest{
		OrderID:           orderID,
		Status:            status,
		FinalRefundAmount: amount,
	}
	if err := conn.Create(ret).Error; err != nil {
		t.Fatalf("seed return: %v", err)
	}
	return ret
}
