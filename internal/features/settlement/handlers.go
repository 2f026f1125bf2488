package settlement

import (
	"context"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/escrow-bot/internal/common"
	"serotonyl.ru/escrow-bot/internal/features/ledger"
	"serotonyl.ru/escrow-bot/internal/i18n"
	"serotonyl.ru/escrow-bot/internal/messaging"
)

// Handler обрабатывает кнопку «оплатить с баланса».
type Handler struct {
	engine   *Service
	ledger   *ledger.Service
	currency *ledger.Currency
	text     *i18n.Catalog
	gw       messaging.Gateway
}

// NewHandler создаёт обработчик оплаты.
func NewHandler(engine *Service, ledgerService *ledger.Service, currency *ledger.Currency, text *i18n.Catalog, gw messaging.Gateway) *Handler {
	return &Handler{engine: engine, ledger: ledgerService, currency: currency, text: text, gw: gw}
}

// Pay проводит оплату и уведомляет обе стороны.
// Ошибка оплаты возвращается вызывающему без отправки сообщений.
func (h *Handler) Pay(ctx context.Context, payerID int64, dealID string) error {
	receipt, err := h.engine.PayFromBalance(ctx, dealID, payerID)
	if err != nil {
		return err
	}
	deal := receipt.Deal
	currency := h.currency.Label()
	amount := common.FormatAmount(deal.Amount, currency)

	sellerLang := h.ledger.Language(deal.SellerID)
	notice := h.text.Render(sellerLang, "payment.seller", i18n.P{
		"deal_id":     deal.ID,
		"description": deal.Description,
		"buyer":       messaging.DisplayName(ctx, h.gw, h.text, sellerLang, payerID),
		"amount":      amount,
		"balance":     common.FormatAmount(receipt.SellerBalance, currency),
	})
	if err := h.gw.Notify(ctx, deal.SellerID, notice, nil); err != nil {
		log.WithError(err).WithField("deal_id", deal.ID).Warn("Не удалось уведомить продавца об оплате")
	}

	lang := h.ledger.Language(payerID)
	return h.gw.Notify(ctx, payerID,
		h.text.Render(lang, "payment.confirmed", i18n.P{
			"deal_id":     deal.ID,
			"amount":      amount,
			"description": deal.Description,
		}),
		messaging.BackToMenu(h.text, lang),
	)
}
