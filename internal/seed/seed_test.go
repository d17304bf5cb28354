package seed

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/panucci/internal/config"
	customerdomain "github.com/smallbiznis/panucci/internal/customer/domain"
	"github.com/smallbiznis/panucci/internal/customer/repository"
	pkgdb "github.com/smallbiznis/panucci/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeAllocator struct {
	reconciled int
	boot       int
}

func (f *fakeAllocator) Allocate(ctx context.Context, req customerdomain.AllocateRequest) (customerdomain.Customer, error) {
	return customerdomain.Customer{}, nil
}

func (f *fakeAllocator) Reconcile(ctx context.Context) (int64, error) {
	f.reconciled++
	return 7, nil
}

type bootAllocator struct {
	fakeAllocator
}

func (b *bootAllocator) ReconcileOnBoot(ctx context.Context) (int64, error) {
	b.boot++
	return 7, nil
}

func testNode(t *testing.T) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(9)
	require.NoError(t, err)
	return node
}

func bootstrapConfig() config.BootstrapConfig {
	return config.BootstrapConfig{
		ResyncOnStart: true,
		EnsureAdmin:   true,
		AdminName:     "administrador",
		AdminDocument: "999999999",
		AdminEmail:    "admin@admin.com",
	}
}

func TestEnsureAdmin_IsIdempotent(t *testing.T) {
	db := pkgdb.NewTest(t, &customerdomain.Customer{})
	ctx := context.Background()

	created, err := EnsureAdmin(ctx, db, testNode(t), repository.New(true), bootstrapConfig())
	require.NoError(t, err)
	assert.True(t, created)

	created, err = EnsureAdmin(ctx, db, testNode(t), repository.New(true), bootstrapConfig())
	require.NoError(t, err)
	assert.False(t, created)

	var admin customerdomain.Customer
	require.NoError(t, db.Where("cliente_id = ?", "ADMIN").Take(&admin).Error)
	assert.Equal(t, "administrador", admin.Name)
	assert.Equal(t, "admin@admin.com", admin.Email)
	require.NotNil(t, admin.Document)
	assert.Equal(t, "999999999", *admin.Document)

	var count int64
	require.NoError(t, db.Model(&customerdomain.Customer{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestEnsureAdmin_WithoutTransactions(t *testing.T) {
	db := pkgdb.NewTest(t, &customerdomain.Customer{})
	ctx := context.Background()
	repo := repository.New(false)

	created, err := EnsureAdmin(ctx, db, testNode(t), repo, bootstrapConfig())
	require.NoError(t, err)
	assert.True(t, created)

	created, err = EnsureAdmin(ctx, db, testNode(t), repo, bootstrapConfig())
	require.NoError(t, err)
	assert.False(t, created)

	admin, err := repo.FindByClienteID(ctx, db, customerdomain.AdminClienteID)
	require.NoError(t, err)
	require.NotNil(t, admin)
	assert.Equal(t, "admin@admin.com", admin.Email)
}

func TestEnsureAdmin_DocumentAlreadyRegistered(t *testing.T) {
	db := pkgdb.NewTest(t, &customerdomain.Customer{})
	ctx := context.Background()
	repo := repository.New(true)

	doc := "999999999"
	now := time.Now().UTC()
	require.NoError(t, repo.InsertCustomer(ctx, db, &customerdomain.Customer{
		ID:           testNode(t).Generate(),
		ClienteID:    "CL0001",
		Name:         "operador",
		Email:        "operador@panucci.local",
		Document:     &doc,
		RegisteredAt: now,
		Active:       true,
		UpdatedAt:    now,
	}))

	holder, err := repo.FindByDocument(ctx, db, doc)
	require.NoError(t, err)
	require.NotNil(t, holder)
	assert.Equal(t, "CL0001", holder.ClienteID)

	created, err := EnsureAdmin(ctx, db, testNode(t), repo, bootstrapConfig())
	require.NoError(t, err)
	assert.False(t, created)

	var count int64
	require.NoError(t, db.Model(&customerdomain.Customer{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestBootstrap(t *testing.T) {
	db := pkgdb.NewTest(t, &customerdomain.Customer{})
	ctx := context.Background()

	plain := &fakeAllocator{}
	require.NoError(t, Bootstrap(ctx, db, testNode(t), repository.New(true), bootstrapConfig(), plain, zap.NewNop()))
	assert.Equal(t, 1, plain.reconciled)

	boot := &bootAllocator{}
	require.NoError(t, Bootstrap(ctx, db, testNode(t), repository.New(true), bootstrapConfig(), boot, zap.NewNop()))
	assert.Equal(t, 1, boot.boot)
	assert.Zero(t, boot.reconciled)

	disabled := &fakeAllocator{}
	require.NoError(t, Bootstrap(ctx, db, testNode(t), repository.New(true), config.BootstrapConfig{}, disabled, nil))
	assert.Zero(t, disabled.reconciled)
}
