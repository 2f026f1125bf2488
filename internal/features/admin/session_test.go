package admin_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/escrow-bot/internal/common"
	"serotonyl.ru/escrow-bot/internal/db/memory"
	"serotonyl.ru/escrow-bot/internal/features/admin"
)

func TestHashPasswordFormat(t *testing.T) {
	hash, err := admin.HashPassword("secret", []byte("0123456789abcdef"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$m=65536,t=3,p=2$"))
	assert.Len(t, strings.Split(hash, "$"), 6)
}

func TestVerifyPassword(t *testing.T) {
	hash, err := admin.HashPassword("secret", nil)
	require.NoError(t, err)

	assert.True(t, admin.VerifyPassword("secret", hash))
	assert.False(t, admin.VerifyPassword("Secret", hash))
	assert.False(t, admin.VerifyPassword("secret", "not-a-hash"))
}

func TestGateDisabled(t *testing.T) {
	gate := admin.NewGate(memory.New(), "", time.Hour)
	assert.False(t, gate.Enabled())

	ok, err := gate.HasSession(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, gate.Login(context.Background(), 1, "anything"))
}

func TestGateLogin(t *testing.T) {
	hash, err := admin.HashPassword("secret", nil)
	require.NoError(t, err)
	store := memory.New()
	gate := admin.NewGate(store, hash, time.Hour)
	ctx := context.Background()

	ok, err := gate.HasSession(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.ErrorIs(t, gate.Login(ctx, 1, "wrong"), common.ErrWrongPassword)
	require.NoError(t, gate.Login(ctx, 1, "secret"))

	ok, err = gate.HasSession(ctx, 1)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 2, store.Calls(memory.OpLogAttempt))
}

func TestGateLocksAfterFailures(t *testing.T) {
	hash, err := admin.HashPassword("secret", nil)
	require.NoError(t, err)
	gate := admin.NewGate(memory.New(), hash, time.Hour)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, gate.Login(ctx, 1, "wrong"), common.ErrWrongPassword)
	}
	assert.ErrorIs(t, gate.Login(ctx, 1, "secret"), common.ErrTooManyAttempts)

	assert.NoError(t, gate.Login(ctx, 2, "secret"), "блокировка действует только на одного пользователя")
}
