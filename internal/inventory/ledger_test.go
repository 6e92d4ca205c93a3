package inventory

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-payments/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-payments/pkg/db/models"
	"github.com/angelmondragon/storefront-payments/pkg/enums"
)

// failingRepo fails UpdateQuantity for one product and delegates the rest.
type failingRepo struct {
	Repository
	failProduct uuid.UUID
}

func (f *failingRepo) WithTx(tx *gorm.DB) Repository {
	return &failingRepo{Repository: f.Repository.WithTx(tx), failProduct: f.failProduct}
}

func (f *failingRepo) UpdateQuantity(ctx context.Context, id uuid.UUID, quantity int) error {
	var record models.InventoryRecord
	if err := f.lookup(ctx, id, &record); err == nil && record.ProductID == f.failProduct {
		return errors.New("storage unavailable")
	}
	return f.Repository.UpdateQuantity(ctx, id, quantity)
}

func (f *failingRepo) lookup(ctx context.Context, id uuid.UUID, out *models.InventoryRecord) error {
	inner, ok := f.Repository.(*repository)
	if !ok {
		return errors.New("unexpected repository")
	}
	return inner.db.WithContext(ctx).Where("id = ?", id).First(out).Error
}

func applyInTx(t *testing.T, conn *gorm.DB, ledger *Ledger, order *models.Order) Report {
	t.Helper()
	var report Report
	err := conn.Transaction(func(tx *gorm.DB) error {
		report = ledger.ApplyOrder(context.Background(), tx, order, order.Items)
		return nil
	})
	require.NoError(t, err)
	return report
}

func TestClampedQuantity(t *testing.T) {
	cases := []struct {
		current, ordered, want int
	}{
		{10, 3, 7},
		{3, 3, 0},
		{2, 5, 0},
		{0, 1, 0},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ClampedQuantity(tc.current, tc.ordered), "current=%d ordered=%d", tc.current, tc.ordered)
	}
}

func TestApplyOrderDecrementsAndRecordsHistory(t *testing.T) {
	conn := dbtest.Open(t)
	variant := uuid.New()
	order := dbtest.SeedOrder(t, conn, dbtest.OrderSeed{
		GatewayOrderID: "order_1",
		Items: []dbtest.ItemSeed{
			{Quantity: 2, Stock: 10},
			{VariantID: &variant, Quantity: 1, Stock: 4},
		},
	})
	ledger, err := NewLedger(NewRepository(conn), nil)
	require.NoError(t, err)

	report := applyInTx(t, conn, ledger, order)
	assert.Equal(t, 2, report.Decremented())
	assert.NoError(t, report.Err())

	assert.Equal(t, 8, dbtest.Stock(t, conn, order.Items[0].ProductID, nil))
	assert.Equal(t, 3, dbtest.Stock(t, conn, order.Items[1].ProductID, &variant))

	var history []models.InventoryHistory
	require.NoError(t, conn.Where("order_id = ?", order.ID).Find(&history).Error)
	require.Len(t, history, 2)
	for _, entry := range history {
		assert.Equal(t, enums.InventoryChangeStockOut, entry.ChangeType)
		assert.Contains(t, entry.Reason, order.OrderNumber)
		assert.Nil(t, entry.CreatedBy)
	}
}

func TestApplyOrderClampsOversell(t *testing.T) {
	conn := dbtest.Open(t)
	order := dbtest.SeedOrder(t, conn, dbtest.OrderSeed{
		GatewayOrderID: "order_oversell",
		Items:          []dbtest.ItemSeed{{Quantity: 5, Stock: 2}},
	})
	ledger, err := NewLedger(NewRepository(conn), nil)
	require.NoError(t, err)

	report := applyInTx(t, conn, ledger, order)
	require.Len(t, report.Items, 1)
	assert.Equal(t, 2, report.Items[0].PreviousQuantity)
	assert.Equal(t, 0, report.Items[0].NewQuantity)
	assert.Equal(t, 0, dbtest.Stock(t, conn, order.Items[0].ProductID, nil))
}

func TestApplyOrderNullVariantIsNotWildcard(t *testing.T) {
	conn := dbtest.Open(t)
	product := uuid.New()
	variant := uuid.New()
	require.NoError(t, conn.Create(&models.InventoryRecord{ProductID: product, VariantID: &variant, Quantity: 9}).Error)
	order := dbtest.SeedOrder(t, conn, dbtest.OrderSeed{
		GatewayOrderID: "order_nullvariant",
		Items:          []dbtest.ItemSeed{{ProductID: product, Quantity: 1, Stock: -1}},
	})
	ledger, err := NewLedger(NewRepository(conn), nil)
	require.NoError(t, err)

	report := applyInTx(t, conn, ledger, order)
	assert.Equal(t, 1, report.Skipped())
	assert.Equal(t, 9, dbtest.Stock(t, conn, product, &variant))
	assert.Zero(t, dbtest.Count(t, conn, &models.InventoryHistory{}, ""))
}

func TestApplyOrderContinuesPastFailedItem(t *testing.T) {
	conn := dbtest.Open(t)
	order := dbtest.SeedOrder(t, conn, dbtest.OrderSeed{
		GatewayOrderID: "order_partial",
		Items: []dbtest.ItemSeed{
			{Quantity: 1, Stock: 5},
			{Quantity: 2, Stock: 5},
		},
	})
	repo := &failingRepo{Repository: NewRepository(conn), failProduct: order.Items[1].ProductID}
	ledger, err := NewLedger(repo, nil)
	require.NoError(t, err)

	report := applyInTx(t, conn, ledger, order)
	assert.Equal(t, 1, report.Decremented())
	failures := report.Failures()
	require.Len(t, failures, 1)
	assert.Equal(t, order.Items[1].ProductID, failures[0].ProductID)
	assert.Error(t, report.Err())

	assert.Equal(t, 4, dbtest.Stock(t, conn, order.Items[0].ProductID, nil))
	assert.Equal(t, 5, dbtest.Stock(t, conn, order.Items[1].ProductID, nil))
	assert.Equal(t, int64(1), dbtest.Count(t, conn, &models.InventoryHistory{}, "order_id = ?", order.ID))
}

func TestApplyOrderReportsItemsOverLimitAsFailed(t *testing.T) {
	conn := dbtest.Open(t)
	seeds := make([]dbtest.ItemSeed, MaxItemsPerOrder+1)
	for i := range seeds {
		seeds[i] = dbtest.ItemSeed{Quantity: 1, Stock: 5}
	}
	order := dbtest.SeedOrder(t, conn, dbtest.OrderSeed{GatewayOrderID: "order_bulk", Items: seeds})
	ledger, err := NewLedger(NewRepository(conn), nil)
	require.NoError(t, err)

	report := applyInTx(t, conn, ledger, order)
	require.Len(t, report.Items, MaxItemsPerOrder+1)
	assert.Equal(t, MaxItemsPerOrder, report.Decremented())

	failures := report.Failures()
	require.Len(t, failures, 1)
	last := order.Items[MaxItemsPerOrder]
	assert.Equal(t, last.ID, failures[0].OrderItemID)
	assert.ErrorIs(t, failures[0].Err, ErrItemLimit)
	assert.Error(t, report.Err())
	assert.Equal(t, 5, dbtest.Stock(t, conn, last.ProductID, nil))
}

func TestNewLedgerRequiresRepository(t *testing.T) {
	_, err := NewLedger(nil, nil)
	assert.Error(t, err)
}
