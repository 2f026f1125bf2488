package postgres

type migration struct {
	version int
	sql     string
}

// migrations применяются строго по порядку. Существующие версии не редактируются:
// изменения схемы идут новой записью в конец.
var migrations = []migration{
	{1, `
		CREATE TABLE IF NOT EXISTS accounts (
			user_id          BIGINT PRIMARY KEY,
			wallet           TEXT    NOT NULL DEFAULT '',
			balance          NUMERIC NOT NULL DEFAULT 0,
			successful_deals BIGINT  NOT NULL DEFAULT 0,
			language         TEXT    NOT NULL DEFAULT ''
		);

		CREATE TABLE IF NOT EXISTS deals (
			deal_id     TEXT PRIMARY KEY,
			amount      NUMERIC     NOT NULL CHECK (amount > 0),
			description TEXT        NOT NULL,
			seller_id   BIGINT      NOT NULL,
			buyer_id    BIGINT,
			status      TEXT        NOT NULL DEFAULT 'open',
			created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS admins (
			user_id  BIGINT PRIMARY KEY,
			added_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`},
	{2, `
		CREATE TABLE IF NOT EXISTS settings (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
	`},
	{3, `
		CREATE TABLE IF NOT EXISTS admin_sessions (
			id               BIGSERIAL PRIMARY KEY,
			user_id          BIGINT      NOT NULL,
			session_token    TEXT        NOT NULL UNIQUE,
			authenticated_at TIMESTAMPTZ NOT NULL,
			expires_at       TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS admin_sessions_user_idx ON admin_sessions (user_id, expires_at);

		CREATE TABLE IF NOT EXISTS admin_login_attempts (
			id           BIGSERIAL PRIMARY KEY,
			user_id      BIGINT      NOT NULL,
			success      BOOLEAN     NOT NULL,
			attempted_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS admin_login_attempts_user_idx ON admin_login_attempts (user_id, attempted_at);
	`},
}
