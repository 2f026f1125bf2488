package ledger_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/escrow-bot/internal/common"
	"serotonyl.ru/escrow-bot/internal/db/memory"
	"serotonyl.ru/escrow-bot/internal/features/ledger"
)

func TestCurrencyDefaultLabel(t *testing.T) {
	c := ledger.NewCurrency(memory.New(), " ton ")
	assert.Equal(t, "TON", c.Label())
}

func TestCurrencySetNormalizes(t *testing.T) {
	store := memory.New()
	c := ledger.NewCurrency(store, "TON")

	label, err := c.Set(context.Background(), "  usd ")
	require.NoError(t, err)
	assert.Equal(t, "USD", label)
	assert.Equal(t, "USD", c.Label())

	stored, ok, err := store.LoadSetting(context.Background(), "currency")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "USD", stored)
}

func TestCurrencySetRejectsEmpty(t *testing.T) {
	c := ledger.NewCurrency(memory.New(), "TON")

	_, err := c.Set(context.Background(), "   ")
	assert.ErrorIs(t, err, common.ErrValidation)
	assert.Equal(t, "TON", c.Label())
}

func TestCurrencySetStorageFailureKeepsLabel(t *testing.T) {
	store := memory.New()
	store.FailOn(memory.OpUpsertSetting, errors.New("readonly"))
	c := ledger.NewCurrency(store, "TON")

	_, err := c.Set(context.Background(), "eur")
	assert.ErrorIs(t, err, common.ErrStorage)
	assert.Equal(t, "TON", c.Label())
}

func TestCurrencyLoadPersisted(t *testing.T) {
	store := memory.New()
	require.NoError(t, store.UpsertSetting(context.Background(), "currency", "RUB"))

	c := ledger.NewCurrency(store, "TON")
	require.NoError(t, c.Load(context.Background()))
	assert.Equal(t, "RUB", c.Label())
}
