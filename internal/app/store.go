package app

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/escrow-bot/internal/config"
	"serotonyl.ru/escrow-bot/internal/db/memory"
	"serotonyl.ru/escrow-bot/internal/db/postgres"
	"serotonyl.ru/escrow-bot/internal/db/sqlite"
	"serotonyl.ru/escrow-bot/internal/features/admin"
	"serotonyl.ru/escrow-bot/internal/features/deals"
	"serotonyl.ru/escrow-bot/internal/features/ledger"
	"serotonyl.ru/escrow-bot/internal/features/settlement"
)

// Store: всё, что сервисы требуют от хранилища.
type Store interface {
	ledger.Repository
	ledger.SettingsRepository
	deals.Repository
	admin.Repository
	admin.SessionRepository
	settlement.Committer

	Ping(ctx context.Context) error
	Close() error
}

var (
	_ Store = (*memory.Store)(nil)
	_ Store = (*postgres.Store)(nil)
	_ Store = (*sqlite.Store)(nil)
)

// OpenStore открывает хранилище, выбранное STORAGE_DRIVER.
func OpenStore(ctx context.Context, cfg *config.Config) (Store, error) {
	log.WithField("driver", cfg.StorageDriver).Info("Открываем хранилище")

	switch cfg.StorageDriver {
	case config.DriverPostgres:
		pool, err := postgres.NewPool(ctx, cfg)
		if err != nil {
			return nil, err
		}
		if err := postgres.RunMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("ошибка миграций: %w", err)
		}
		return postgres.NewStore(pool), nil

	case config.DriverSQLite:
		return sqlite.Open(ctx, cfg.SQLitePath)

	case config.DriverMemory:
		log.Warn("STORAGE_DRIVER=memory: данные пропадут при перезапуске")
		return memory.New(), nil
	}
	return nil, fmt.Errorf("неизвестный драйвер хранилища %q", cfg.StorageDriver)
}
