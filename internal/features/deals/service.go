// Package deals: service.go содержит жизненный цикл сделки:
// создание → привязка покупателя → расчёт (удаление из реестра).
package deals

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/escrow-bot/internal/common"
	"serotonyl.ru/escrow-bot/internal/metrics"
)

// Service: реестр открытых сделок.
type Service struct {
	repo  Repository
	newID func() string
	now   func() time.Time

	mu    sync.RWMutex
	deals map[string]Deal

	// блокировки по сделке: привязка покупателя и оплата одной сделки не пересекаются
	locks *common.KeyedMutex[string]
}

// NewService создаёт реестр сделок.
func NewService(repo Repository) *Service {
	return &Service{
		repo:  repo,
		newID: uuid.NewString,
		now:   time.Now,
		deals: make(map[string]Deal),
		locks: common.NewKeyedMutex[string](),
	}
}

// Load загружает сделки из хранилища при старте.
func (s *Service) Load(ctx context.Context) error {
	deals, err := s.repo.LoadDeals(ctx)
	if err != nil {
		return common.Storage("load deals", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range deals {
		if d.Status == "" {
			d.Status = StatusOpen
			if d.HasBuyer() {
				d.Status = StatusPledged
			}
		}
		s.deals[d.ID] = d
	}
	metrics.SetOpenDeals(len(s.deals))
	log.WithField("deals", len(deals)).Info("Сделки загружены")
	return nil
}

// Create регистрирует новую сделку и возвращает её.
func (s *Service) Create(ctx context.Context, sellerID int64, amount decimal.Decimal, description string) (Deal, error) {
	if !amount.IsPositive() {
		return Deal{}, common.Validation("сумма сделки должна быть положительной")
	}
	if strings.TrimSpace(description) == "" {
		return Deal{}, common.Validation("пустое описание сделки")
	}

	deal := Deal{
		ID:          s.newID(),
		Amount:      amount,
		Description: description,
		SellerID:    sellerID,
		Status:      StatusOpen,
		CreatedAt:   s.now().UTC(),
	}

	unlock := s.locks.Lock(deal.ID)
	defer unlock()

	if err := s.repo.UpsertDeal(ctx, deal); err != nil {
		return Deal{}, common.Storage("create deal", err)
	}
	s.put(deal)

	log.WithFields(log.Fields{
		"deal_id":   deal.ID,
		"seller_id": sellerID,
		"amount":    amount.String(),
	}).Info("Сделка создана")
	return deal, nil
}

// Get возвращает сделку по ID. Оплаченные сделки не находятся.
func (s *Service) Get(dealID string) (Deal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.deals[dealID]
	if !ok {
		return Deal{}, common.ErrDealNotFound
	}
	return d, nil
}

// BindBuyer привязывает покупателя к сделке по открытию ссылки.
// Повторное открытие тем же покупателем ничего не меняет (bound=false).
// Другой пользователь получает ErrDealAlreadyPledged: покупателя нельзя перехватить.
// Продавец не может стать покупателем своей сделки.
func (s *Service) BindBuyer(ctx context.Context, dealID string, buyerID int64) (deal Deal, bound bool, err error) {
	unlock := s.locks.Lock(dealID)
	defer unlock()

	current, err := s.Get(dealID)
	if err != nil {
		return Deal{}, false, err
	}
	return s.bindLocked(ctx, current, buyerID)
}

func (s *Service) bindLocked(ctx context.Context, current Deal, buyerID int64) (Deal, bool, error) {
	switch {
	case current.SellerID == buyerID:
		return current, false, common.Validation("продавец не может купить свою сделку")
	case current.HasBuyer() && current.BuyerID == buyerID:
		return current, false, nil
	case current.HasBuyer():
		return current, false, common.ErrDealAlreadyPledged
	}

	next := current
	next.BuyerID = buyerID
	next.Status = StatusPledged
	if err := s.repo.UpsertDeal(ctx, next); err != nil {
		return current, false, common.Storage("bind buyer", err)
	}
	s.put(next)

	log.WithFields(log.Fields{
		"deal_id":  next.ID,
		"buyer_id": buyerID,
	}).Info("Покупатель привязан к сделке")
	return next, true, nil
}

// Settle: единственная точка удаления сделки из реестра.
// Под блокировкой сделки: находит её, привязывает payerID как покупателя
// (если покупателя ещё нет) и вызывает commit. commit обязан атомарно
// удалить сделку из хранилища вместе с движением средств.
// Если commit вернул ошибку, сделка остаётся в реестре без изменений.
// Повторный вызов для уже оплаченной сделки возвращает ErrDealNotFound.
func (s *Service) Settle(ctx context.Context, dealID string, payerID int64, commit func(Deal) error) (Deal, error) {
	unlock := s.locks.Lock(dealID)
	defer unlock()

	deal, err := s.Get(dealID)
	if err != nil {
		return Deal{}, err
	}
	if deal.SellerID == payerID {
		return deal, common.Validation("продавец не может оплатить свою сделку")
	}
	if deal.HasBuyer() && deal.BuyerID != payerID {
		return deal, common.ErrDealAlreadyPledged
	}

	pending := deal
	pending.BuyerID = payerID
	if err := commit(pending); err != nil {
		return deal, err
	}

	s.mu.Lock()
	delete(s.deals, dealID)
	metrics.SetOpenDeals(len(s.deals))
	s.mu.Unlock()

	pending.Status = StatusSettled
	return pending, nil
}

// ListOpen возвращает все сделки в реестре, старые первыми.
func (s *Service) ListOpen() []Deal {
	s.mu.RLock()
	out := make([]Deal, 0, len(s.deals))
	for _, d := range s.deals {
		out = append(out, d)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (s *Service) put(d Deal) {
	s.mu.Lock()
	s.deals[d.ID] = d
	metrics.SetOpenDeals(len(s.deals))
	s.mu.Unlock()
}
