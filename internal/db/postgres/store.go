package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/escrow-bot/internal/features/admin"
	"serotonyl.ru/escrow-bot/internal/features/deals"
	"serotonyl.ru/escrow-bot/internal/features/ledger"
)

// ErrDealGone возвращается, если строки сделки уже нет (её оплатили раньше).
var ErrDealGone = errors.New("deal row not found")

// Store реализует хранилище бота поверх PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore создаёт хранилище поверх готового пула.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close закрывает пул.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Ping проверяет доступность базы.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

const upsertAccountSQL = `
	INSERT INTO accounts (user_id, wallet, balance, successful_deals, language)
	VALUES ($1, $2, $3::numeric, $4, $5)
	ON CONFLICT (user_id) DO UPDATE SET
		wallet           = EXCLUDED.wallet,
		balance          = EXCLUDED.balance,
		successful_deals = EXCLUDED.successful_deals,
		language         = EXCLUDED.language`

// LoadAccounts читает все счета.
func (s *Store) LoadAccounts(ctx context.Context) ([]ledger.Account, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT user_id, wallet, balance::text, successful_deals, language
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
		if a.Balance, err = parseNumeric("balance", balance); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// UpsertAccount сохраняет снимок счёта.
func (s *Store) UpsertAccount(ctx context.Context, a ledger.Account) error {
	_, err := s.pool.Exec(ctx, upsertAccountSQL,
		a.UserID, a.Wallet, a.Balance.String(), a.SuccessfulDeals, a.Language)
	if err != nil {
		return fmt.Errorf("ошибка сохранения счёта %d: %w", a.UserID, err)
	}
	return nil
}

// LoadDeals читает все сделки из реестра.
func (s *Store) LoadDeals(ctx context.Context) ([]deals.Deal, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT deal_id, amount::text, description, seller_id, COALESCE(buyer_id, 0), status, created_at
		FROM deals ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения сделок: %w", err)
	}
	defer rows.Close()

	var out []deals.Deal
	for rows.Next() {
		var (
			d      deals.Deal
			amount string
			status string
		)
		if err := rows.Scan(&d.ID, &amount, &d.Description, &d.SellerID, &d.BuyerID, &status, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования сделки: %w", err)
		}
		if d.Amount, err = parseNumeric("amount", amount); err != nil {
			return nil, err
		}
		d.Status = deals.Status(status)
		out = append(out, d)
	}
	return out, rows.Err()
}

// UpsertDeal сохраняет сделку.
func (s *Store) UpsertDeal(ctx context.Context, d deals.Deal) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO deals (deal_id, amount, description, seller_id, buyer_id, status, created_at)
		VALUES ($1, $2::numeric, $3, $4, $5, $6, $7)
		ON CONFLICT (deal_id) DO UPDATE SET
			buyer_id = EXCLUDED.buyer_id,
			status   = EXCLUDED.status`,
		d.ID, d.Amount.String(), d.Description, d.SellerID, nullableID(d.BuyerID), string(d.Status), d.CreatedAt)
	if err != nil {
		return fmt.Errorf("ошибка сохранения сделки %s: %w", d.ID, err)
	}
	return nil
}

// CommitSettlement одной транзакцией удаляет сделку и записывает счета.
// Строка сделки блокируется FOR UPDATE; если её уже нет, ничего не меняется.
func (s *Store) CommitSettlement(ctx context.Context, accounts []ledger.Account, dealID string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	// Откатываем транзакцию, если что-то пошло не так
	defer tx.Rollback(ctx)

	var locked string
	err = tx.QueryRow(ctx, `SELECT deal_id FROM deals WHERE deal_id = $1 FOR UPDATE`, dealID).Scan(&locked)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrDealGone, dealID)
	}
	if err != nil {
		return fmt.Errorf("ошибка блокировки сделки: %w", err)
	}

	for _, a := range accounts {
		if _, err := tx.Exec(ctx, upsertAccountSQL,
			a.UserID, a.Wallet, a.Balance.String(), a.SuccessfulDeals, a.Language); err != nil {
			return fmt.Errorf("ошибка записи счёта %d: %w", a.UserID, err)
		}
	}

	if _, err := tx.Exec(ctx, `DELETE FROM deals WHERE deal_id = $1`, dealID); err != nil {
		return fmt.Errorf("ошибка удаления сделки: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("ошибка фиксации расчёта: %w", err)
	}
	log.WithField("deal_id", dealID).Debug("Расчёт записан")
	return nil
}

// LoadAdmins читает множество администраторов.
func (s *Store) LoadAdmins(ctx context.Context) ([]int64, error) {
	rows, err := s.pool.Query(ctx, `SELECT user_id FROM admins ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения админов: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("ошибка сканирования админов: %w", err)
	}
	return ids, nil
}

// UpsertAdmin добавляет администратора.
func (s *Store) UpsertAdmin(ctx context.Context, userID int64) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO admins (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`, userID)
	if err != nil {
		return fmt.Errorf("ошибка добавления админа %d: %w", userID, err)
	}
	return nil
}

// DeleteAdmin удаляет администратора.
func (s *Store) DeleteAdmin(ctx context.Context, userID int64) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM admins WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("ошибка удаления админа %d: %w", userID, err)
	}
	return nil
}

// LoadSetting читает настройку. ok=false, если её нет.
func (s *Store) LoadSetting(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.pool.QueryRow(ctx, `SELECT value FROM settings WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("ошибка чтения настройки %s: %w", key, err)
	}
	return value, true, nil
}

// UpsertSetting сохраняет настройку.
func (s *Store) UpsertSetting(ctx context.Context, key, value string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO settings (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`, key, value)
	if err != nil {
		return fmt.Errorf("ошибка сохранения настройки %s: %w", key, err)
	}
	return nil
}

// CreateSession сохраняет сессию администратора.
func (s *Store) CreateSession(ctx context.Context, session admin.Session) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO admin_sessions (user_id, session_token, authenticated_at, expires_at)
		VALUES ($1, $2, $3, $4)`,
		session.UserID, session.SessionToken, session.AuthenticatedAt, session.ExpiresAt)
	if err != nil {
		return fmt.Errorf("ошибка создания сессии: %w", err)
	}
	return nil
}

// HasActiveSession проверяет наличие неистёкшей сессии.
func (s *Store) HasActiveSession(ctx context.Context, userID int64, now time.Time) (bool, error) {
	var ok bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM admin_sessions WHERE user_id = $1 AND expires_at > $2)`,
		userID, now).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("ошибка проверки сессии: %w", err)
	}
	return ok, nil
}

// LogLoginAttempt записывает попытку входа.
func (s *Store) LogLoginAttempt(ctx context.Context, userID int64, success bool, at time.Time) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO admin_login_attempts (user_id, success, attempted_at) VALUES ($1, $2, $3)`,
		userID, success, at)
	if err != nil {
		return fmt.Errorf("ошибка записи попытки входа: %w", err)
	}
	return nil
}

// CountFailedAttempts считает неудачные попытки начиная с since.
func (s *Store) CountFailedAttempts(ctx context.Context, userID int64, since time.Time) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM admin_login_attempts
		WHERE user_id = $1 AND success = FALSE AND attempted_at >= $2`,
		userID, since).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта попыток: %w", err)
	}
	return n, nil
}
