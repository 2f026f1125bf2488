package admin_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/escrow-bot/internal/common"
	"serotonyl.ru/escrow-bot/internal/db/memory"
	"serotonyl.ru/escrow-bot/internal/features/admin"
)

func newAuthority(t *testing.T, seed ...int64) (*admin.Service, *memory.Store) {
	t.Helper()
	store := memory.New()
	svc := admin.NewService(store)
	require.NoError(t, svc.Load(context.Background(), seed))
	return svc, store
}

func TestLoadRequiresAdmin(t *testing.T) {
	svc := admin.NewService(memory.New())
	assert.Error(t, svc.Load(context.Background(), nil))
}

func TestLoadMergesSeedWithStored(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	require.NoError(t, store.UpsertAdmin(ctx, 5))

	svc := admin.NewService(store)
	require.NoError(t, svc.Load(ctx, []int64{1}))
	assert.Equal(t, []int64{1, 5}, svc.List())
}

func TestLoadStorageFailure(t *testing.T) {
	store := memory.New()
	store.FailOn(memory.OpLoadAdmins, errors.New("down"))

	svc := admin.NewService(store)
	assert.ErrorIs(t, svc.Load(context.Background(), []int64{1}), common.ErrStorage)
}

func TestGrantIsIdempotent(t *testing.T) {
	svc, _ := newAuthority(t, 1)
	ctx := context.Background()

	require.NoError(t, svc.Grant(ctx, 2))
	require.NoError(t, svc.Grant(ctx, 2))
	assert.True(t, svc.IsAdmin(2))
	assert.Equal(t, []int64{1, 2}, svc.List())
}

func TestGrantStorageFailure(t *testing.T) {
	svc, store := newAuthority(t, 1)
	store.FailOn(memory.OpUpsertAdmin, errors.New("down"))

	assert.ErrorIs(t, svc.Grant(context.Background(), 2), common.ErrStorage)
	assert.False(t, svc.IsAdmin(2))
}

func TestRevoke(t *testing.T) {
	svc, store := newAuthority(t, 1, 2)
	ctx := context.Background()

	require.NoError(t, svc.Revoke(ctx, 2, 1))
	assert.False(t, svc.IsAdmin(2))

	stored, err := store.LoadAdmins(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, stored)
}

func TestRevokeSelfForbidden(t *testing.T) {
	svc, _ := newAuthority(t, 1, 2)

	assert.ErrorIs(t, svc.Revoke(context.Background(), 1, 1), common.ErrSelfRemovalForbidden)
	assert.True(t, svc.IsAdmin(1))
}

func TestRevokeByNonAdmin(t *testing.T) {
	svc, _ := newAuthority(t, 1)

	assert.ErrorIs(t, svc.Revoke(context.Background(), 1, 99), common.ErrUnauthorized)
	assert.True(t, svc.IsAdmin(1))
}

func TestRevokeClearsPending(t *testing.T) {
	svc, _ := newAuthority(t, 1, 2)
	require.NoError(t, svc.SetPending(2, admin.CommandChangeBalance))

	require.NoError(t, svc.Revoke(context.Background(), 2, 1))
	assert.Equal(t, admin.CommandNone, svc.Pending(2))
}

func TestRevokeStorageFailure(t *testing.T) {
	svc, store := newAuthority(t, 1, 2)
	store.FailOn(memory.OpDeleteAdmin, errors.New("down"))

	assert.ErrorIs(t, svc.Revoke(context.Background(), 2, 1), common.ErrStorage)
	assert.True(t, svc.IsAdmin(2))
}

func TestPendingLifecycle(t *testing.T) {
	svc, _ := newAuthority(t, 1)

	assert.ErrorIs(t, svc.SetPending(99, admin.CommandAddAdmin), common.ErrUnauthorized)

	require.NoError(t, svc.SetPending(1, admin.CommandChangeCurrency))
	assert.Equal(t, admin.CommandChangeCurrency, svc.Pending(1))

	require.NoError(t, svc.SetPending(1, admin.CommandAddAdmin))
	assert.Equal(t, admin.CommandAddAdmin, svc.ConsumePending(1), "новая команда заменяет старую")
	assert.Equal(t, admin.CommandNone, svc.ConsumePending(1))

	require.NoError(t, svc.SetPending(1, admin.CommandChangeBalance))
	require.NoError(t, svc.SetPending(1, admin.CommandNone))
	assert.Equal(t, admin.CommandNone, svc.Pending(1))
}

func TestPendingCommandString(t *testing.T) {
	assert.Equal(t, "none", admin.CommandNone.String())
	assert.Equal(t, "change_balance", admin.CommandChangeBalance.String())
	assert.Equal(t, "change_successful_deals", admin.CommandChangeSuccessfulDeals.String())
	assert.Equal(t, "change_currency", admin.CommandChangeCurrency.String())
	assert.Equal(t, "add_admin", admin.CommandAddAdmin.String())
	assert.Equal(t, "unknown", admin.PendingCommand(42).String())
}
