package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

var migrations = []struct {
	version int
	sql     string
}{
	{1, `
CREATE TABLE IF NOT EXISTS accounts (
	user_id          INTEGER PRIMARY KEY,
	wallet           TEXT    NOT NULL DEFAULT '',
	balance          TEXT    NOT NULL DEFAULT '0',
	successful_deals INTEGER NOT NULL DEFAULT 0,
	language         TEXT    NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS deals (
	deal_id     TEXT PRIMARY KEY,
	amount      TEXT    NOT NULL,
	description TEXT    NOT NULL,
	seller_id   INTEGER NOT NULL,
	buyer_id    INTEGER,
	status      TEXT    NOT NULL DEFAULT 'open',
	created_at  INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS admins (
	user_id INTEGER PRIMARY KEY
);`},
	{2, `
CREATE TABLE IF NOT EXISTS settings (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);`},
	{3, `
CREATE TABLE IF NOT EXISTS admin_sessions (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id          INTEGER NOT NULL,
	session_token    TEXT    NOT NULL UNIQUE,
	authenticated_at INTEGER NOT NULL,
	expires_at       INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_admin_sessions_user ON admin_sessions(user_id, expires_at);

CREATE TABLE IF NOT EXISTS admin_login_attempts (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id      INTEGER NOT NULL,
	success      INTEGER NOT NULL,
	attempted_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_admin_login_attempts_user ON admin_login_attempts(user_id, attempted_at);`},
}

// migrate применяет недостающие версии схемы, каждую в своей транзакции.
func migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS schema_migrations (
	version    INTEGER PRIMARY KEY,
	applied_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
)`); err != nil {
		return fmt.Errorf("ошибка создания таблицы миграций: %w", err)
	}

	for _, m := range migrations {
		if err := applyMigration(ctx, db, m.version, m.sql); err != nil {
			return err
		}
	}
	return nil
}

func applyMigration(ctx context.Context, db *sql.DB, version int, stmt string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback()

	var exists bool
	if err := tx.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = ?)`, version,
	).Scan(&exists); err != nil {
		return fmt.Errorf("ошибка проверки миграции: %w", err)
	}
	if exists {
		return nil
	}

	if _, err := tx.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("ошибка выполнения миграции %d: %w", version, err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES (?)`, version); err != nil {
		return fmt.Errorf("ошибка записи версии миграции: %w", err)
	}
	return tx.Commit()
}
