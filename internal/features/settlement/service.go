// Package settlement проводит оплату сделки с баланса покупателя.
// Списание, зачисление, рост репутации продавца и удаление сделки
// записываются в хранилище одной транзакцией и применяются в памяти только после неё.
package settlement

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/escrow-bot/internal/common"
	"serotonyl.ru/escrow-bot/internal/features/deals"
	"serotonyl.ru/escrow-bot/internal/features/ledger"
	"serotonyl.ru/escrow-bot/internal/metrics"
)

// Committer атомарно записывает итог расчёта: изменённые счета и удаление сделки.
// Если строки сделки уже нет, реализация обязана вернуть ошибку и ничего не записать.
type Committer interface {
	CommitSettlement(ctx context.Context, accounts []ledger.Account, dealID string) error
}

// Receipt: снимок результата оплаты для уведомлений.
type Receipt struct {
	Deal                  deals.Deal
	PayerUnlimited        bool            // Платил администратор, баланс не списан
	PayerBalance          decimal.Decimal // Баланс покупателя после оплаты
	SellerBalance         decimal.Decimal // Баланс продавца после оплаты
	SellerSuccessfulDeals int64
}

// Service: движок расчётов.
type Service struct {
	ledger *ledger.Service
	deals  *deals.Service
	store  Committer
}

// NewService создаёт движок расчётов.
func NewService(ledgerService *ledger.Service, dealService *deals.Service, store Committer) *Service {
	return &Service{ledger: ledgerService, deals: dealService, store: store}
}

// PayFromBalance оплачивает сделку dealID с баланса payerID.
//
// Порядок блокировок: сделка, затем оба счёта (по возрастанию ID).
// Проверка баланса и все изменения выполняются под этими блокировками,
// поэтому параллельные оплаты одной сделки дают ровно один перевод,
// а второй вызов получает ErrDealNotFound.
func (s *Service) PayFromBalance(ctx context.Context, dealID string, payerID int64) (Receipt, error) {
	var receipt Receipt

	settled, err := s.deals.Settle(ctx, dealID, payerID, func(deal deals.Deal) error {
		return s.ledger.Transact(ctx, []int64{payerID, deal.SellerID}, func(accounts map[int64]ledger.Account) ([]ledger.Account, error) {
			payer := accounts[payerID]
			seller := accounts[deal.SellerID]

			spendable := s.ledger.SpendableBalance(payerID)
			if !spendable.Covers(deal.Amount) {
				return nil, common.ErrInsufficientFunds
			}

			changed := make([]ledger.Account, 0, 2)
			if !spendable.Unlimited {
				payer.Balance = payer.Balance.Sub(deal.Amount)
				changed = append(changed, payer)
			}
			seller.Balance = seller.Balance.Add(deal.Amount)
			seller.SuccessfulDeals++
			changed = append(changed, seller)

			if err := s.store.CommitSettlement(ctx, changed, deal.ID); err != nil {
				return nil, common.Storage("commit settlement", err)
			}

			receipt = Receipt{
				PayerUnlimited:        spendable.Unlimited,
				PayerBalance:          payer.Balance,
				SellerBalance:         seller.Balance,
				SellerSuccessfulDeals: seller.SuccessfulDeals,
			}
			return changed, nil
		})
	})

	entry := log.WithFields(log.Fields{
		"deal_id":  dealID,
		"payer_id": payerID,
	})
	if err != nil {
		metrics.RecordSettlement(resultLabel(err))
		if errors.Is(err, common.ErrStorage) {
			entry.WithError(err).Error("Оплата сделки прервана сбоем хранилища, изменения не применены")
		} else {
			entry.WithError(err).Info("Оплата сделки отклонена")
		}
		return Receipt{}, err
	}

	receipt.Deal = settled
	metrics.RecordSettlement("ok")
	entry.WithFields(log.Fields{
		"seller_id": settled.SellerID,
		"amount":    settled.Amount.String(),
		"unlimited": receipt.PayerUnlimited,
	}).Info("Сделка оплачена")
	return receipt, nil
}

func resultLabel(err error) string {
	switch {
	case errors.Is(err, common.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, common.ErrDealNotFound):
		return "not_found"
	case errors.Is(err, common.ErrDealAlreadyPledged):
		return "foreign_buyer"
	case errors.Is(err, common.ErrValidation):
		return "invalid"
	case errors.Is(err, common.ErrStorage):
		return "storage_failure"
	}
	return "error"
}
