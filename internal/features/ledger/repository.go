// Package ledger: repository.go описывает, что сервис счетов требует от хранилища.
// Реализации: internal/db/postgres, internal/db/sqlite, internal/db/memory.
package ledger

import "context"

// Repository: то, что ledger требует от хранилища.
type Repository interface {
	LoadAccounts(ctx context.Context) ([]Account, error)
	UpsertAccount(ctx context.Context, account Account) error
}

// SettingsRepository хранит глобальные настройки (валюту).
type SettingsRepository interface {
	LoadSetting(ctx context.Context, key string) (string, bool, error)
	UpsertSetting(ctx context.Context, key, value string) error
}

// PrivilegeChecker отвечает на вопрос «является ли пользователь администратором».
type PrivilegeChecker interface {
	IsAdmin(userID int64) bool
}
