package app

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/escrow-bot/internal/config"
	"serotonyl.ru/escrow-bot/internal/db/memory"
	"serotonyl.ru/escrow-bot/internal/features/deals"
	"serotonyl.ru/escrow-bot/internal/features/ledger"
	"serotonyl.ru/escrow-bot/internal/i18n"
	"serotonyl.ru/escrow-bot/internal/messaging"
	"serotonyl.ru/escrow-bot/internal/messaging/messagingtest"
)

func testConfig() *config.Config {
	return &config.Config{
		AdminIDs:        []int64{1},
		StorageDriver:   config.DriverMemory,
		DefaultLanguage: "en",
		DefaultCurrency: "TON",
		AdminSessionTTL: time.Hour,
	}
}

func TestOpenStoreDrivers(t *testing.T) {
	ctx := context.Background()

	cfg := testConfig()
	s, err := OpenStore(ctx, cfg)
	require.NoError(t, err)
	assert.IsType(t, &memory.Store{}, s)
	require.NoError(t, s.Close())

	cfg.StorageDriver = config.DriverSQLite
	cfg.SQLitePath = filepath.Join(t.TempDir(), "bot.db")
	s, err = OpenStore(ctx, cfg)
	require.NoError(t, err)
	require.NoError(t, s.Ping(ctx))
	require.NoError(t, s.Close())

	cfg.StorageDriver = "redis"
	_, err = OpenStore(ctx, cfg)
	require.Error(t, err)
}

func TestLoadServicesRestoresState(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	require.NoError(t, store.UpsertAccount(ctx, ledger.Account{UserID: 100, Balance: decimal.NewFromInt(7), Language: "ru"}))
	require.NoError(t, store.UpsertDeal(ctx, deals.Deal{ID: "d-1", Amount: decimal.NewFromInt(3), Description: "x", SellerID: 100, Status: deals.StatusOpen, CreatedAt: time.Now()}))
	require.NoError(t, store.UpsertSetting(ctx, "currency", "USD"))
	require.NoError(t, store.UpsertAdmin(ctx, 5))

	services, err := LoadServices(ctx, testConfig(), store)
	require.NoError(t, err)

	assert.True(t, services.Admins.IsAdmin(1), "администратор из конфига")
	assert.True(t, services.Admins.IsAdmin(5), "администратор из хранилища")
	acc, ok := services.Ledger.Get(100)
	require.True(t, ok)
	assert.True(t, acc.Balance.Equal(decimal.NewFromInt(7)))
	assert.Equal(t, "ru", services.Ledger.Language(100))
	assert.Len(t, services.Deals.ListOpen(), 1)
	assert.Equal(t, "USD", services.Currency.Label())
}

func TestLoadServicesStorageFailure(t *testing.T) {
	store := memory.New()
	store.FailOn(memory.OpLoadDeals, errors.New("connection refused"))

	_, err := LoadServices(context.Background(), testConfig(), store)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "сделок")
}

func TestBuildHandlersWiresEveryFeature(t *testing.T) {
	services, err := LoadServices(context.Background(), testConfig(), memory.New())
	require.NoError(t, err)
	text, err := i18n.Load("en")
	require.NoError(t, err)

	h := BuildHandlers(services, text, messagingtest.NewRecorder(), messaging.NewLinks("https://t.me/escrow_bot"))
	assert.NotNil(t, h.Ledger)
	assert.NotNil(t, h.Conversation)
	assert.NotNil(t, h.Deals)
	assert.NotNil(t, h.Settlement)
	assert.NotNil(t, h.Admin)
}
