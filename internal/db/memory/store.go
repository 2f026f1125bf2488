// Package memory хранит состояние бота в памяти процесса.
// Используется для локального запуска (STORAGE_DRIVER=memory) и в тестах:
// FailOn позволяет имитировать сбой любой операции.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"serotonyl.ru/escrow-bot/internal/features/admin"
	"serotonyl.ru/escrow-bot/internal/features/deals"
	"serotonyl.ru/escrow-bot/internal/features/ledger"
)

// Имена операций для FailOn.
const (
	OpLoadAccounts     = "LoadAccounts"
	OpUpsertAccount    = "UpsertAccount"
	OpLoadDeals        = "LoadDeals"
	OpUpsertDeal       = "UpsertDeal"
	OpLoadAdmins       = "LoadAdmins"
	OpUpsertAdmin      = "UpsertAdmin"
	OpDeleteAdmin      = "DeleteAdmin"
	OpLoadSetting      = "LoadSetting"
	OpUpsertSetting    = "UpsertSetting"
	OpCommitSettlement = "CommitSettlement"
	OpCreateSession    = "CreateSession"
	OpHasSession       = "HasActiveSession"
	OpLogAttempt       = "LogLoginAttempt"
	OpCountAttempts    = "CountFailedAttempts"
)

// ErrDealGone возвращается, если сделки уже нет в хранилище.
var ErrDealGone = errors.New("deal row not found")

type loginAttempt struct {
	userID  int64
	success bool
	at      time.Time
}

// Store: потокобезопасное хранилище в памяти.
type Store struct {
	mu       sync.Mutex
	accounts map[int64]ledger.Account
	deals    map[string]deals.Deal
	admins   map[int64]struct{}
	settings map[string]string
	sessions []admin.Session
	attempts []loginAttempt
	failures map[string]error
	calls    map[string]int
}

// New создаёт пустое хранилище.
func New() *Store {
	return &Store{
		accounts: make(map[int64]ledger.Account),
		deals:    make(map[string]deals.Deal),
		admins:   make(map[int64]struct{}),
		settings: make(map[string]string),
		failures: make(map[string]error),
		calls:    make(map[string]int),
	}
}

// FailOn заставляет операцию op возвращать err. nil снимает сбой.
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, op)
		return
	}
	s.failures[op] = err
}

// Calls возвращает число вызовов операции op.
func (s *Store) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// Close ничего не делает.
func (s *Store) Close() error { return nil }

// Ping всегда успешен.
func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }

// begin отмечает вызов и возвращает имитируемый сбой. Вызывается под s.mu.
func (s *Store) begin(op string) error {
	s.calls[op]++
	return s.failures[op]
}

// LoadAccounts возвращает все счета.
func (s *Store) LoadAccounts(ctx context.Context) ([]ledger.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(OpLoadAccounts); err != nil {
		return nil, err
	}
	out := make([]ledger.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

// UpsertAccount сохраняет снимок счёта.
func (s *Store) UpsertAccount(ctx context.Context, account ledger.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(OpUpsertAccount); err != nil {
		return err
	}
	s.accounts[account.UserID] = account
	return nil
}

// Account возвращает сохранённый счёт (для проверок в тестах).
func (s *Store) Account(userID int64) (ledger.Account, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[userID]
	return a, ok
}

// LoadDeals возвращает все сделки.
func (s *Store) LoadDeals(ctx context.Context) ([]deals.Deal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(OpLoadDeals); err != nil {
		return nil, err
	}
	out := make([]deals.Deal, 0, len(s.deals))
	for _, d := range s.deals {
		out = append(out, d)
	}
	return out, nil
}

// UpsertDeal сохраняет сделку.
func (s *Store) UpsertDeal(ctx context.Context, deal deals.Deal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(OpUpsertDeal); err != nil {
		return err
	}
	s.deals[deal.ID] = deal
	return nil
}

// Deal возвращает сохранённую сделку (для проверок в тестах).
func (s *Store) Deal(dealID string) (deals.Deal, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.deals[dealID]
	return d, ok
}

// CommitSettlement записывает счета и удаляет сделку одним шагом.
func (s *Store) CommitSettlement(ctx context.Context, accounts []ledger.Account, dealID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(OpCommitSettlement); err != nil {
		return err
	}
	if _, ok := s.deals[dealID]; !ok {
		return fmt.Errorf("%w: %s", ErrDealGone, dealID)
	}
	for _, a := range accounts {
		s.accounts[a.UserID] = a
	}
	delete(s.deals, dealID)
	return nil
}

// LoadAdmins возвращает ID администраторов.
func (s *Store) LoadAdmins(ctx context.Context) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(OpLoadAdmins); err != nil {
		return nil, err
	}
	out := make([]int64, 0, len(s.admins))
	for id := range s.admins {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// UpsertAdmin добавляет администратора.
func (s *Store) UpsertAdmin(ctx context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(OpUpsertAdmin); err != nil {
		return err
	}
	s.admins[userID] = struct{}{}
	return nil
}

// DeleteAdmin удаляет администратора.
func (s *Store) DeleteAdmin(ctx context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(OpDeleteAdmin); err != nil {
		return err
	}
	delete(s.admins, userID)
	return nil
}

// LoadSetting читает настройку.
func (s *Store) LoadSetting(ctx context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(OpLoadSetting); err != nil {
		return "", false, err
	}
	v, ok := s.settings[key]
	return v, ok, nil
}

// UpsertSetting сохраняет настройку.
func (s *Store) UpsertSetting(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(OpUpsertSetting); err != nil {
		return err
	}
	s.settings[key] = value
	return nil
}

// CreateSession сохраняет сессию администратора.
func (s *Store) CreateSession(ctx context.Context, session admin.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(OpCreateSession); err != nil {
		return err
	}
	session.ID = int64(len(s.sessions) + 1)
	s.sessions = append(s.sessions, session)
	return nil
}

// HasActiveSession проверяет наличие неистёкшей сессии.
func (s *Store) HasActiveSession(ctx context.Context, userID int64, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(OpHasSession); err != nil {
		return false, err
	}
	for _, sess := range s.sessions {
		if sess.UserID == userID && sess.ExpiresAt.After(now) {
			return true, nil
		}
	}
	return false, nil
}

// LogLoginAttempt записывает попытку входа.
func (s *Store) LogLoginAttempt(ctx context.Context, userID int64, success bool, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(OpLogAttempt); err != nil {
		return err
	}
	s.attempts = append(s.attempts, loginAttempt{userID: userID, success: success, at: at})
	return nil
}

// CountFailedAttempts считает неудачные попытки начиная с since.
func (s *Store) CountFailedAttempts(ctx context.Context, userID int64, since time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(OpCountAttempts); err != nil {
		return 0, err
	}
	n := 0
	for _, a := range s.attempts {
		if a.userID == userID && !a.success && !a.at.Before(since) {
			n++
		}
	}
	return n, nil
}
