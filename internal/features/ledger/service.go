// Package ledger: service.go содержит операции со счетами.
// Счета держатся в памяти, каждое изменение сначала записывается в хранилище
// и только после успешной записи попадает в память.
package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/escrow-bot/internal/common"
)

// Service управляет счетами пользователей.
type Service struct {
	repo            Repository
	admins          PrivilegeChecker
	defaultLanguage string

	mu       sync.RWMutex
	accounts map[int64]Account

	// блокировки по аккаунту: чтение-изменение-запись одного счёта не пересекаются
	locks *common.KeyedMutex[int64]
}

// NewService создаёт сервис счетов.
func NewService(repo Repository, admins PrivilegeChecker, defaultLanguage string) *Service {
	return &Service{
		repo:            repo,
		admins:          admins,
		defaultLanguage: defaultLanguage,
		accounts:        make(map[int64]Account),
		locks:           common.NewKeyedMutex[int64](),
	}
}

// Load загружает все счета из хранилища. Вызывается один раз при старте.
func (s *Service) Load(ctx context.Context) error {
	accounts, err := s.repo.LoadAccounts(ctx)
	if err != nil {
		return common.Storage("load accounts", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range accounts {
		if a.Language == "" {
			a.Language = s.defaultLanguage
		}
		s.accounts[a.UserID] = a
	}
	log.WithField("accounts", len(accounts)).Info("Счета загружены")
	return nil
}

// Get возвращает счёт, если он существует.
func (s *Service) Get(userID int64) (Account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[userID]
	return a, ok
}

// Language возвращает язык пользователя или язык по умолчанию.
func (s *Service) Language(userID int64) string {
	if a, ok := s.Get(userID); ok && a.Language != "" {
		return a.Language
	}
	return s.defaultLanguage
}

// EnsureExists создаёт счёт по умолчанию, если его нет. Идемпотентна.
func (s *Service) EnsureExists(ctx context.Context, userID int64) (Account, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()
	return s.ensureLocked(ctx, userID)
}

// SpendableBalance возвращает доступную сумму: безлимит для администраторов,
// сохранённый баланс для остальных.
func (s *Service) SpendableBalance(userID int64) Spendable {
	if s.admins != nil && s.admins.IsAdmin(userID) {
		return Spendable{Unlimited: true}
	}
	a, _ := s.Get(userID)
	return Spendable{Amount: a.Balance}
}

// AdjustBalance прибавляет delta к балансу. Отрицательный результат не запрещается:
// проверку покрытия делает вызывающий код.
func (s *Service) AdjustBalance(ctx context.Context, userID int64, delta decimal.Decimal) (Account, error) {
	return s.update(ctx, userID, "adjust balance", func(a *Account) error {
		a.Balance = a.Balance.Add(delta)
		return nil
	})
}

// SetBalance устанавливает баланс целиком (админская правка).
func (s *Service) SetBalance(ctx context.Context, userID int64, balance decimal.Decimal) (Account, error) {
	return s.update(ctx, userID, "set balance", func(a *Account) error {
		a.Balance = balance
		return nil
	})
}

// SetWallet сохраняет адрес кошелька. Формат не проверяется.
func (s *Service) SetWallet(ctx context.Context, userID int64, wallet string) (Account, error) {
	return s.update(ctx, userID, "set wallet", func(a *Account) error {
		a.Wallet = wallet
		return nil
	})
}

// SetLanguage сохраняет язык интерфейса.
func (s *Service) SetLanguage(ctx context.Context, userID int64, language string) (Account, error) {
	return s.update(ctx, userID, "set language", func(a *Account) error {
		if language == "" {
			return common.Validation("пустой язык")
		}
		a.Language = language
		return nil
	})
}

// IncrementSuccessfulDeals увеличивает счётчик успешных сделок на 1.
func (s *Service) IncrementSuccessfulDeals(ctx context.Context, userID int64) (Account, error) {
	return s.update(ctx, userID, "increment deals", func(a *Account) error {
		a.SuccessfulDeals++
		return nil
	})
}

// SetSuccessfulDeals устанавливает счётчик успешных сделок (админская правка).
func (s *Service) SetSuccessfulDeals(ctx context.Context, userID int64, n int64) (Account, error) {
	return s.update(ctx, userID, "set deals", func(a *Account) error {
		if n < 0 {
			return common.Validation("количество сделок не может быть отрицательным")
		}
		a.SuccessfulDeals = n
		return nil
	})
}

// Transact блокирует счета userIDs (создавая недостающие) и передаёт их копии в fn.
// fn обязана сама атомарно записать возвращаемые счета в хранилище.
// Если fn вернула ошибку, память не меняется. Иначе возвращённые счета
// заменяют записи в памяти до снятия блокировок.
func (s *Service) Transact(ctx context.Context, userIDs []int64, fn func(accounts map[int64]Account) ([]Account, error)) error {
	unlock := s.locks.LockMany(userIDs...)
	defer unlock()

	snapshot := make(map[int64]Account, len(userIDs))
	for _, id := range userIDs {
		a, err := s.ensureLocked(ctx, id)
		if err != nil {
			return err
		}
		snapshot[id] = a
	}

	updated, err := fn(snapshot)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range updated {
		s.accounts[a.UserID] = a
	}
	return nil
}

// update: общий путь для изменений одного счёта.
func (s *Service) update(ctx context.Context, userID int64, op string, mutate func(*Account) error) (Account, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	current, err := s.ensureLocked(ctx, userID)
	if err != nil {
		return Account{}, err
	}

	next := current
	if err := mutate(&next); err != nil {
		return current, err
	}

	if err := s.repo.UpsertAccount(ctx, next); err != nil {
		log.WithError(err).WithFields(log.Fields{
			"user_id": userID,
			"op":      op,
		}).Error("Не удалось сохранить счёт, изменение отменено")
		return current, common.Storage(op, err)
	}

	s.put(next)
	return next, nil
}

// ensureLocked создаёт счёт по умолчанию. Вызывается под блокировкой userID.
func (s *Service) ensureLocked(ctx context.Context, userID int64) (Account, error) {
	if a, ok := s.Get(userID); ok {
		return a, nil
	}

	a := Account{
		UserID:   userID,
		Balance:  decimal.Zero,
		Language: s.defaultLanguage,
	}
	if err := s.repo.UpsertAccount(ctx, a); err != nil {
		return Account{}, common.Storage("create account", fmt.Errorf("user %d: %w", userID, err))
	}

	s.put(a)
	log.WithField("user_id", userID).Debug("Создан новый счёт")
	return a, nil
}

func (s *Service) put(a Account) {
	s.mu.Lock()
	s.accounts[a.UserID] = a
	s.mu.Unlock()
}
