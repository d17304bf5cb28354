package repository

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/panucci/internal/order/domain"
	pkgdb "github.com/smallbiznis/panucci/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newOrder(id int64, orderID string, status domain.Status, createdAt time.Time) *domain.Order {
	return &domain.Order{
		ID:        snowflake.ID(id),
		OrderID:   orderID,
		ClienteID: "CL0001",
		Customer:  domain.CustomerSnapshot{Name: "Ana", Email: "ana@example.com"},
		Items: []domain.OrderItem{
			{ID: snowflake.ID(id*10 + 2), OrderID: orderID, ProductID: "B001", Quantity: 1, UnitPrice: 4500, Subtotal: 4500, LineNumber: 2},
			{ID: snowflake.ID(id*10 + 1), OrderID: orderID, ProductID: "P001", Quantity: 2, UnitPrice: 22000, Subtotal: 44000, LineNumber: 1},
		},
		Status:    status,
		Total:     48500,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

func TestInsertAndFind(t *testing.T) {
	db := pkgdb.NewTest(t, &domain.Order{}, &domain.OrderItem{})
	r := New(true)
	ctx := context.Background()

	require.NoError(t, r.Insert(ctx, db, newOrder(1, "ORD_1", domain.StatusCreated, time.Now().UTC())))

	got, err := r.FindByOrderID(ctx, db, "ORD_1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "CL0001", got.Customer.ClienteID)
	require.Len(t, got.Items, 2)
	assert.Equal(t, "P001", got.Items[0].ProductID)
	assert.Equal(t, "B001", got.Items[1].ProductID)

	missing, err := r.FindByOrderID(ctx, db, "ORD_404")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestListOrdersNewestFirst(t *testing.T) {
	db := pkgdb.NewTest(t, &domain.Order{}, &domain.OrderItem{})
	r := New(true)
	ctx := context.Background()
	base := time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, r.Insert(ctx, db, newOrder(1, "ORD_1", domain.StatusCreated, base)))
	require.NoError(t, r.Insert(ctx, db, newOrder(2, "ORD_2", domain.StatusReady, base.Add(time.Minute))))
	require.NoError(t, r.Insert(ctx, db, newOrder(3, "ORD_3", domain.StatusCreated, base.Add(2*time.Minute))))

	all, err := r.List(ctx, db, domain.ListOrderFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "ORD_3", all[0].OrderID)
	assert.Equal(t, "ORD_1", all[2].OrderID)

	created, err := r.List(ctx, db, domain.ListOrderFilter{Status: domain.StatusCreated})
	require.NoError(t, err)
	assert.Len(t, created, 2)
}

func TestUpdateStatus_Conditional(t *testing.T) {
	db := pkgdb.NewTest(t, &domain.Order{}, &domain.OrderItem{})
	r := New(true)
	ctx := context.Background()
	require.NoError(t, r.Insert(ctx, db, newOrder(1, "ORD_1", domain.StatusReady, time.Now().UTC())))

	changed, err := r.UpdateStatus(ctx, db, "ORD_1", domain.StatusCanceled, domain.StatusCreated)
	require.NoError(t, err)
	assert.False(t, changed)

	changed, err = r.UpdateStatus(ctx, db, "ORD_1", domain.StatusDelivered)
	require.NoError(t, err)
	assert.True(t, changed)

	got, err := r.FindByOrderID(ctx, db, "ORD_1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDelivered, got.Status)
}

func TestTransactionDisabled(t *testing.T) {
	db := pkgdb.NewTest(t, &domain.Order{})
	err := New(false).Transaction(context.Background(), db, func(tx *gorm.DB) error { return nil })
	assert.ErrorIs(t, err, domain.ErrTransactionsUnsupported)
}
