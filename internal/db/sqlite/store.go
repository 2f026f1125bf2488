// Package sqlite хранит состояние бота в одном файле SQLite (STORAGE_DRIVER=sqlite).
// Суммы хранятся строками decimal, время в миллисекундах UTC.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"serotonyl.ru/escrow-bot/internal/features/admin"
	"serotonyl.ru/escrow-bot/internal/features/deals"
	"serotonyl.ru/escrow-bot/internal/features/ledger"
)

// ErrDealGone возвращается, если строки сделки уже нет (её оплатили раньше).
var ErrDealGone = errors.New("deal row not found")

var pragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA foreign_keys = ON",
	"PRAGMA busy_timeout = 5000",
	"PRAGMA synchronous = NORMAL",
}

// Store реализует хранилище поверх database/sql.
type Store struct {
	db *sql.DB
}

// Open открывает файл базы, настраивает его и применяет миграции.
// path = ":memory:" даёт базу в памяти.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("путь к базе не задан")
	}
	if path != ":memory:" {
		path = filepath.Clean(path)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия sqlite: %w", err)
	}
	// SQLite пишет в один поток; одно соединение держит и :memory: целой
	db.SetMaxOpenConns(1)

	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("ошибка %q: %w", p, err)
		}
	}

	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	log.WithField("path", path).Info("База SQLite открыта")
	return &Store{db: db}, nil
}

// NewStore оборачивает уже открытое соединение без миграций.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Close закрывает базу.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping проверяет доступность базы.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

const upsertAccountSQL = `
INSERT INTO accounts (user_id, wallet, balance, successful_deals, language)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (user_id) DO UPDATE SET
	wallet           = excluded.wallet,
	balance          = excluded.balance,
	successful_deals = excluded.successful_deals,
	language         = excluded.language`

func upsertAccount(ctx context.Context, e execer, a ledger.Account) error {
	_, err := e.ExecContext(ctx, upsertAccountSQL,
		a.UserID, a.Wallet, a.Balance.String(), a.SuccessfulDeals, a.Language)
	if err != nil {
		return fmt.Errorf("ошибка сохранения счёта %d: %w", a.UserID, err)
	}
	return nil
}

// LoadAccounts читает все счета.
func (s *Store) LoadAccounts(ctx context.Context) ([]ledger.Account, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT user_id, wallet, balance, successful_deals, language
FROM accounts ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения счетов: %w", err)
	}
	defer rows.Close()

	var out []ledger.Account
	for rows.Next() {
		var (
			a       ledger.Account
			balance string
		)
		if err := rows.Scan(&a.UserID, &a.Wallet, &balance, &a.SuccessfulDeals, &a.Language); err != nil {
			return nil, fmt.Errorf("ошибка сканирования счёта: %w", err)
		}
		if a.Balance, err = decimal.NewFromString(balance); err != nil {
			return nil, fmt.Errorf("счёт %d, balance: %w", a.UserID, err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// UpsertAccount сохраняет снимок счёта.
func (s *Store) UpsertAccount(ctx context.Context, a ledger.Account) error {
	return upsertAccount(ctx, s.db, a)
}

// LoadDeals читает все сделки.
func (s *Store) LoadDeals(ctx context.Context) ([]deals.Deal, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT deal_id, amount, description, seller_id, COALESCE(buyer_id, 0), status, created_at
FROM deals ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения сделок: %w", err)
	}
	defer rows.Close()

	var out []deals.Deal
	for rows.Next() {
		var (
			d         deals.Deal
			amount    string
			status    string
			createdAt int64
		)
		if err := rows.Scan(&d.ID, &amount, &d.Description, &d.SellerID, &d.BuyerID, &status, &createdAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования сделки: %w", err)
		}
		if d.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("сделка %s, amount: %w", d.ID, err)
		}
		d.Status = deals.Status(status)
		d.CreatedAt = time.UnixMilli(createdAt).UTC()
		out = append(out, d)
	}
	return out, rows.Err()
}

// UpsertDeal сохраняет сделку.
func (s *Store) UpsertDeal(ctx context.Context, d deals.Deal) error {
	var buyer any
	if d.HasBuyer() {
		buyer = d.BuyerID
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO deals (deal_id, amount, description, seller_id, buyer_id, status, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (deal_id) DO UPDATE SET
	buyer_id = excluded.buyer_id,
	status   = excluded.status`,
		d.ID, d.Amount.String(), d.Description, d.SellerID, buyer, string(d.Status), d.CreatedAt.UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("ошибка сохранения сделки %s: %w", d.ID, err)
	}
	return nil
}

// CommitSettlement одной транзакцией записывает счета и удаляет сделку.
// Если сделки уже нет, транзакция откатывается.
func (s *Store) CommitSettlement(ctx context.Context, accounts []ledger.Account, dealID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM deals WHERE deal_id = ?`, dealID)
	if err != nil {
		return fmt.Errorf("ошибка удаления сделки: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("ошибка удаления сделки: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrDealGone, dealID)
	}

	for _, a := range accounts {
		if err := upsertAccount(ctx, tx, a); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("ошибка фиксации расчёта: %w", err)
	}
	return nil
}

// LoadAdmins читает множество администраторов.
func (s *Store) LoadAdmins(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT user_id FROM admins ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения админов: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("ошибка сканирования админа: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// UpsertAdmin добавляет администратора.
func (s *Store) UpsertAdmin(ctx context.Context, userID int64) error {
	if _, err := s.db.ExecContext(ctx, `INSERT INTO admins (user_id) VALUES (?) ON CONFLICT (user_id) DO NOTHING`, userID); err != nil {
		return fmt.Errorf("ошибка добавления админа %d: %w", userID, err)
	}
	return nil
}

// DeleteAdmin удаляет администратора.
func (s *Store) DeleteAdmin(ctx context.Context, userID int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM admins WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("ошибка удаления админа %d: %w", userID, err)
	}
	return nil
}

// LoadSetting читает настройку.
func (s *Store) LoadSetting(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("ошибка чтения настройки %s: %w", key, err)
	}
	return value, true, nil
}

// UpsertSetting сохраняет настройку.
func (s *Store) UpsertSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO settings (key, value) VALUES (?, ?)
ON CONFLICT (key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("ошибка сохранения настройки %s: %w", key, err)
	}
	return nil
}

// CreateSession сохраняет сессию администратора.
func (s *Store) CreateSession(ctx context.Context, session admin.Session) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO admin_sessions (user_id, session_token, authenticated_at, expires_at)
VALUES (?, ?, ?, ?)`,
		session.UserID, session.SessionToken,
		session.AuthenticatedAt.UTC().UnixMilli(), session.ExpiresAt.UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("ошибка создания сессии: %w", err)
	}
	return nil
}

// HasActiveSession проверяет наличие неистёкшей сессии.
func (s *Store) HasActiveSession(ctx context.Context, userID int64, now time.Time) (bool, error) {
	var ok bool
	err := s.db.QueryRowContext(ctx, `
SELECT EXISTS(SELECT 1 FROM admin_sessions WHERE user_id = ? AND expires_at > ?)`,
		userID, now.UTC().UnixMilli()).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("ошибка проверки сессии: %w", err)
	}
	return ok, nil
}

// LogLoginAttempt записывает попытку входа.
func (s *Store) LogLoginAttempt(ctx context.Context, userID int64, success bool, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO admin_login_attempts (user_id, success, attempted_at) VALUES (?, ?, ?)`,
		userID, success, at.UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("ошибка записи попытки входа: %w", err)
	}
	return nil
}

// CountFailedAttempts считает неудачные попытки начиная с since.
func (s *Store) CountFailedAttempts(ctx context.Context, userID int64, since time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
SELECT COUNT(*) FROM admin_login_attempts
WHERE user_id = ? AND success = 0 AND attempted_at >= ?`,
		userID, since.UTC().UnixMilli()).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта попыток: %w", err)
	}
	return n, nil
}
