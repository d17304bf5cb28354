package service

import (
	"context"
	"io"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/golang/mock/gomock"
	"github.com/smallbiznis/panucci/internal/catalog"
	"github.com/smallbiznis/panucci/internal/clock"
	"github.com/smallbiznis/panucci/internal/config"
	customerdomain "github.com/smallbiznis/panucci/internal/customer/domain"
	customerrepo "github.com/smallbiznis/panucci/internal/customer/repository"
	customersvc "github.com/smallbiznis/panucci/internal/customer/service"
	"github.com/smallbiznis/panucci/internal/idempotency"
	kitchendomain "github.com/smallbiznis/panucci/internal/kitchen/domain"
	kitchenrepo "github.com/smallbiznis/panucci/internal/kitchen/repository"
	"github.com/smallbiznis/panucci/internal/order/domain"
	"github.com/smallbiznis/panucci/internal/order/repository"
	"github.com/smallbiznis/panucci/internal/providers/pdf"
	pkgdb "github.com/smallbiznis/panucci/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// memoryStore is an in-process idempotency.Store.
type memoryStore struct {
	mu      sync.Mutex
	pending map[string]string
	done    map[string]string
	seq     int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{pending: map[string]string{}, done: map[string]string{}}
}

func (m *memoryStore) Begin(ctx context.Context, scope, key string) (idempotency.Lease, error) {
	key, err := idempotency.NormalizeKey(key)
	if err != nil {
		return idempotency.Lease{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	k := scope + ":" + key
	if result, ok := m.done[k]; ok {
		return idempotency.Lease{Key: k, Result: result}, nil
	}
	if _, ok := m.pending[k]; ok {
		return idempotency.Lease{}, idempotency.ErrInFlight
	}
	m.seq++
	token := string(rune('a' + m.seq))
	m.pending[k] = token
	return idempotency.Lease{Key: k, Token: token}, nil
}

func (m *memoryStore) Complete(ctx context.Context, lease idempotency.Lease, result string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending[lease.Key] == lease.Token {
		delete(m.pending, lease.Key)
		m.done[lease.Key] = result
	}
	return nil
}

func (m *memoryStore) Release(ctx context.Context, lease idempotency.Lease) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending[lease.Key] == lease.Token {
		delete(m.pending, lease.Key)
	}
	return nil
}

type orderEnv struct {
	db    *gorm.DB
	svc   domain.Service
	store *memoryStore
}

func newOrderEnv(t *testing.T, transactions bool) orderEnv {
	t.Helper()

	db := pkgdb.NewTest(t,
		&customerdomain.Customer{},
		&customerdomain.SequenceCounter{},
		&domain.Order{},
		&domain.OrderItem{},
		&kitchendomain.Ticket{},
	)
	node, err := snowflake.NewNode(5)
	require.NoError(t, err)
	fake := clock.NewFakeClock(time.Date(2025, 5, 1, 18, 30, 0, 0, time.UTC))

	customers := customersvc.NewWithOptions(customersvc.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  customerrepo.New(transactions),
		Clock: fake,
	}, customersvc.DefaultOptions())

	return newOrderEnvWith(t, db, node, fake, customers, transactions)
}

func newOrderEnvWith(t *testing.T, db *gorm.DB, node *snowflake.Node, clk clock.Clock, customers customerdomain.Service, transactions bool) orderEnv {
	t.Helper()
	store := newMemoryStore()
	svc := New(Params{
		DB:          db,
		Log:         zap.NewNop(),
		GenID:       node,
		Repo:        repository.New(transactions),
		KitchenRepo: kitchenrepo.Provide(),
		Customers:   customers,
		Catalog:     catalog.New(config.NewStaticCatalogHolder(config.DefaultCatalogConfig())),
		PDF:         pdf.New(),
		Idempotency: store,
		Clock:       clk,
	})
	return orderEnv{db: db, svc: svc, store: store}
}

func price(v int64) *int64 { return &v }

func TestCreate_PersistsOrderAndKitchenTicket(t *testing.T) {
	for _, transactions := range []bool{true, false} {
		env := newOrderEnv(t, transactions)
		ctx := context.Background()

		res, err := env.svc.Create(ctx, domain.CreateOrderRequest{
			Items: []domain.ItemInput{
				{ProductID: "P001", Name: "Margherita", Quantity: 2, UnitPrice: price(22000)},
				{ProductID: "B001", Quantity: 1},
			},
		})
		require.NoError(t, err)
		order := res.Order

		assert.False(t, res.Replayed)
		assert.Equal(t, "CL0001", order.ClienteID)
		assert.Equal(t, "Cliente", order.Customer.Name)
		assert.Equal(t, "cliente001@panucci.local", order.Customer.Email)
		assert.Equal(t, domain.StatusCreated, order.Status)
		assert.Equal(t, int64(2*22000+4500), order.Total)
		require.Len(t, order.Items, 2)
		assert.Equal(t, "Gaseosa Cola 350ml", order.Items[1].Name)
		assert.Equal(t, int64(4500), order.Items[1].Subtotal)

		stored, err := env.svc.Get(ctx, order.OrderID)
		require.NoError(t, err)
		assert.Equal(t, order.Total, stored.Total)
		assert.Equal(t, "CL0001", stored.Customer.ClienteID)
		require.Len(t, stored.Items, 2)
		assert.Equal(t, "P001", stored.Items[0].ProductID)

		var ticket kitchendomain.Ticket
		require.NoError(t, env.db.Where("order_ref = ?", order.OrderID).Take(&ticket).Error)
		assert.Equal(t, "KCH_"+order.OrderID, ticket.TicketID)
		assert.Equal(t, kitchendomain.StatusPending, ticket.Status)
		require.Len(t, ticket.Products, 2)
		assert.Contains(t, ticket.Products[0].Ingredients, "mozzarella")
		assert.Empty(t, ticket.Products[1].Ingredients)
	}
}

func TestCreate_ReusesCustomerByEmail(t *testing.T) {
	env := newOrderEnv(t, true)
	ctx := context.Background()
	items := []domain.ItemInput{{ProductID: "P002", Quantity: 1}}

	first, err := env.svc.Create(ctx, domain.CreateOrderRequest{Items: items, CustomerName: "Ana", CustomerEmail: "ana@example.com"})
	require.NoError(t, err)
	second, err := env.svc.Create(ctx, domain.CreateOrderRequest{Items: items, CustomerName: "Ana B.", CustomerEmail: "ANA@example.com"})
	require.NoError(t, err)
	third, err := env.svc.Create(ctx, domain.CreateOrderRequest{Items: items, CustomerName: "Luis"})
	require.NoError(t, err)

	assert.Equal(t, "CL0001", first.Order.ClienteID)
	assert.Equal(t, "CL0001", second.Order.ClienteID)
	assert.Equal(t, "CL0002", third.Order.ClienteID)
}

func TestCreate_RejectsInvalidItems(t *testing.T) {
	env := newOrderEnv(t, true)
	ctx := context.Background()

	cases := map[string][]domain.ItemInput{
		"empty":             nil,
		"missing id":        {{ProductID: " ", Quantity: 1}},
		"zero quantity":     {{ProductID: "P001", Quantity: 0}},
		"negative price":    {{ProductID: "P001", Quantity: 1, UnitPrice: price(-1)}},
		"subtotal overflow": {{ProductID: "P001", Quantity: 1 << 62, UnitPrice: price(4)}},
		"total overflow": {
			{ProductID: "P001", Quantity: 1, UnitPrice: price(math.MaxInt64 - 10)},
			{ProductID: "P002", Quantity: 1, UnitPrice: price(11)},
		},
	}
	for name, items := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := env.svc.Create(ctx, domain.CreateOrderRequest{Items: items})
			assert.ErrorIs(t, err, domain.ErrInvalidItems)
		})
	}

	var customers int64
	require.NoError(t, env.db.Model(&customerdomain.Customer{}).Count(&customers).Error)
	assert.Zero(t, customers)

	var orders int64
	require.NoError(t, env.db.Model(&domain.Order{}).Count(&orders).Error)
	assert.Zero(t, orders)
}

func TestCreate_LargeTotalWithinRange(t *testing.T) {
	env := newOrderEnv(t, true)

	res, err := env.svc.Create(context.Background(), domain.CreateOrderRequest{
		Items: []domain.ItemInput{
			{ProductID: "P001", Quantity: 3, UnitPrice: price(math.MaxInt64 / 4)},
			{ProductID: "P002", Quantity: 1, UnitPrice: price(math.MaxInt64 / 4)},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64/4)*4, res.Order.Total)
	assert.Positive(t, res.Order.Items[0].Subtotal)
}

func TestCreate_Idempotency(t *testing.T) {
	env := newOrderEnv(t, true)
	ctx := context.Background()
	req := domain.CreateOrderRequest{
		Items:          []domain.ItemInput{{ProductID: "P003", Quantity: 1}},
		IdempotencyKey: "order-123",
	}

	first, err := env.svc.Create(ctx, req)
	require.NoError(t, err)
	replay, err := env.svc.Create(ctx, req)
	require.NoError(t, err)

	assert.True(t, replay.Replayed)
	assert.Equal(t, first.Order.OrderID, replay.Order.OrderID)

	var count int64
	require.NoError(t, env.db.Model(&domain.Order{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	_, err = env.store.Begin(ctx, idempotencyScope, "pending-key")
	require.NoError(t, err)
	_, err = env.svc.Create(ctx, domain.CreateOrderRequest{
		Items:          req.Items,
		IdempotencyKey: "pending-key",
	})
	assert.ErrorIs(t, err, domain.ErrRequestInFlight)
}

func TestCreate_FailedCreationReleasesKey(t *testing.T) {
	env := newOrderEnv(t, true)
	ctx := context.Background()

	_, err := env.svc.Create(ctx, domain.CreateOrderRequest{IdempotencyKey: "retry-me"})
	require.ErrorIs(t, err, domain.ErrInvalidItems)

	res, err := env.svc.Create(ctx, domain.CreateOrderRequest{
		Items:          []domain.ItemInput{{ProductID: "P001", Quantity: 1}},
		IdempotencyKey: "retry-me",
	})
	require.NoError(t, err)
	assert.False(t, res.Replayed)
}

func TestCancel(t *testing.T) {
	env := newOrderEnv(t, true)
	ctx := context.Background()

	res, err := env.svc.Create(ctx, domain.CreateOrderRequest{Items: []domain.ItemInput{{ProductID: "P001", Quantity: 1}}})
	require.NoError(t, err)

	canceled, err := env.svc.Cancel(ctx, res.Order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCanceled, canceled.Status)

	_, err = env.svc.Cancel(ctx, res.Order.OrderID)
	assert.ErrorIs(t, err, domain.ErrNotCancelable)

	_, err = env.svc.Cancel(ctx, "ORD_missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCancel_OnlyFromCreated(t *testing.T) {
	env := newOrderEnv(t, true)
	ctx := context.Background()

	res, err := env.svc.Create(ctx, domain.CreateOrderRequest{Items: []domain.ItemInput{{ProductID: "P001", Quantity: 1}}})
	require.NoError(t, err)

	_, err = env.svc.UpdateStatus(ctx, domain.UpdateStatusRequest{OrderID: res.Order.OrderID, Status: domain.StatusPreparing})
	require.NoError(t, err)

	_, err = env.svc.Cancel(ctx, res.Order.OrderID)
	assert.ErrorIs(t, err, domain.ErrNotCancelable)
}

func TestUpdateStatus(t *testing.T) {
	env := newOrderEnv(t, true)
	ctx := context.Background()

	res, err := env.svc.Create(ctx, domain.CreateOrderRequest{Items: []domain.ItemInput{{ProductID: "P001", Quantity: 1}}})
	require.NoError(t, err)

	updated, err := env.svc.UpdateStatus(ctx, domain.UpdateStatusRequest{OrderID: res.Order.OrderID, Status: domain.StatusDispatched})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDispatched, updated.Status)

	_, err = env.svc.UpdateStatus(ctx, domain.UpdateStatusRequest{OrderID: res.Order.OrderID, Status: "COCINANDO"})
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)

	_, err = env.svc.UpdateStatus(ctx, domain.UpdateStatusRequest{OrderID: "ORD_missing", Status: domain.StatusReady})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListAndExport(t *testing.T) {
	env := newOrderEnv(t, true)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		res, err := env.svc.Create(ctx, domain.CreateOrderRequest{Items: []domain.ItemInput{{ProductID: "P001", Quantity: 1}}})
		require.NoError(t, err)
		ids = append(ids, res.Order.OrderID)
	}
	_, err := env.svc.Cancel(ctx, ids[1])
	require.NoError(t, err)

	all, err := env.svc.List(ctx, domain.ListOrderFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, ids[2], all[0].OrderID)

	canceled, err := env.svc.List(ctx, domain.ListOrderFilter{Status: domain.StatusCanceled})
	require.NoError(t, err)
	require.Len(t, canceled, 1)
	assert.Equal(t, ids[1], canceled[0].OrderID)

	_, err = env.svc.List(ctx, domain.ListOrderFilter{Status: "NOPE"})
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)

	book, err := env.svc.Export(ctx, domain.ListOrderFilter{})
	require.NoError(t, err)
	assert.NotEmpty(t, book)
}

func TestReceipt(t *testing.T) {
	env := newOrderEnv(t, true)
	ctx := context.Background()

	res, err := env.svc.Create(ctx, domain.CreateOrderRequest{Items: []domain.ItemInput{{ProductID: "P008", Quantity: 3}}})
	require.NoError(t, err)

	r, err := env.svc.Receipt(ctx, res.Order.OrderID)
	require.NoError(t, err)
	body, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.NotEmpty(t, body)

	_, err = env.svc.Receipt(ctx, "ORD_missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCreate_ExhaustedAllocationFallsBackToEmailLookup(t *testing.T) {
	ctrl := gomock.NewController(t)
	customers := NewMockCustomerService(ctrl)

	db := pkgdb.NewTest(t, &domain.Order{}, &domain.OrderItem{}, &kitchendomain.Ticket{})
	node, err := snowflake.NewNode(6)
	require.NoError(t, err)
	env := newOrderEnvWith(t, db, node, clock.New(), customers, true)

	existing := &customerdomain.Customer{ClienteID: "CL0040", Name: "Ana", Email: "ana@example.com"}
	exhausted := &customerdomain.AllocationExhaustedError{Attempts: 10, Err: customerdomain.ErrDuplicateKey}

	gomock.InOrder(
		customers.EXPECT().FindByEmail(gomock.Any(), "ana@example.com").Return(nil, nil),
		customers.EXPECT().Allocate(gomock.Any(), customerdomain.AllocateRequest{Name: "Ana", Email: "ana@example.com"}).Return(customerdomain.Customer{}, exhausted),
		customers.EXPECT().FindByEmail(gomock.Any(), "ana@example.com").Return(existing, nil),
	)

	res, err := env.svc.Create(context.Background(), domain.CreateOrderRequest{
		Items:         []domain.ItemInput{{ProductID: "P001", Quantity: 1}},
		CustomerName:  "Ana",
		CustomerEmail: "ana@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "CL0040", res.Order.ClienteID)
}

func TestCreate_ExhaustedAllocationSurfaces(t *testing.T) {
	ctrl := gomock.NewController(t)
	customers := NewMockCustomerService(ctrl)

	db := pkgdb.NewTest(t, &domain.Order{}, &domain.OrderItem{}, &kitchendomain.Ticket{})
	node, err := snowflake.NewNode(7)
	require.NoError(t, err)
	env := newOrderEnvWith(t, db, node, clock.New(), customers, true)

	exhausted := &customerdomain.AllocationExhaustedError{Attempts: 10, Err: customerdomain.ErrDuplicateKey}
	customers.EXPECT().Allocate(gomock.Any(), gomock.Any()).Return(customerdomain.Customer{}, exhausted)

	_, err = env.svc.Create(context.Background(), domain.CreateOrderRequest{
		Items: []domain.ItemInput{{ProductID: "P001", Quantity: 1}},
	})
	assert.ErrorIs(t, err, customerdomain.ErrAllocationExhausted)

	var count int64
	require.NoError(t, db.Model(&domain.Order{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "$0", formatAmount(0))
	assert.Equal(t, "$950", formatAmount(950))
	assert.Equal(t, "$22.000", formatAmount(22000))
	assert.Equal(t, "$1.234.567", formatAmount(1234567))
	assert.Equal(t, "-$4.500", formatAmount(-4500))
}
