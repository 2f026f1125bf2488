package conversation

import (
	"context"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/escrow-bot/internal/common"
	"serotonyl.ru/escrow-bot/internal/features/deals"
	"serotonyl.ru/escrow-bot/internal/features/ledger"
	"serotonyl.ru/escrow-bot/internal/i18n"
	"serotonyl.ru/escrow-bot/internal/messaging"
	"serotonyl.ru/escrow-bot/internal/metrics"
)

// DealAnnouncer рассылает администраторам уведомление о новой сделке.
type DealAnnouncer interface {
	AnnounceNewDeal(ctx context.Context, deal deals.Deal)
}

// Handler ведёт диалоги с пользователем.
type Handler struct {
	machine   *Machine
	ledger    *ledger.Service
	currency  *ledger.Currency
	text      *i18n.Catalog
	gw        messaging.Gateway
	links     messaging.Links
	announcer DealAnnouncer
}

// NewHandler создаёт обработчик диалогов.
func NewHandler(
	machine *Machine,
	ledgerService *ledger.Service,
	currency *ledger.Currency,
	text *i18n.Catalog,
	gw messaging.Gateway,
	links messaging.Links,
	announcer DealAnnouncer,
) *Handler {
	return &Handler{
		machine:   machine,
		ledger:    ledgerService,
		currency:  currency,
		text:      text,
		gw:        gw,
		links:     links,
		announcer: announcer,
	}
}

// StartWalletEdit показывает текущий кошелёк и ждёт новый.
func (h *Handler) StartWalletEdit(ctx context.Context, userID int64) error {
	acc, err := h.ledger.EnsureExists(ctx, userID)
	if err != nil {
		return err
	}
	lang := h.ledger.Language(userID)

	wallet := acc.Wallet
	if !acc.HasWallet() {
		wallet = h.text.Render(lang, "wallet.not_set", nil)
	}

	h.machine.BeginWalletEdit(userID)
	return h.gw.Notify(ctx, userID,
		h.text.Render(lang, "wallet.current", i18n.P{"wallet": wallet}),
		h.promptKeyboard(lang),
	)
}

// StartDealCreation просит сумму сделки.
func (h *Handler) StartDealCreation(ctx context.Context, userID int64) error {
	lang := h.ledger.Language(userID)
	h.machine.BeginDealCreation(userID)
	return h.gw.Notify(ctx, userID,
		h.text.Render(lang, "deal.ask_amount", i18n.P{"currency": h.currency.Label()}),
		h.promptKeyboard(lang),
	)
}

// Cancel сбрасывает текущий диалог.
func (h *Handler) Cancel(ctx context.Context, userID int64) error {
	if h.machine.Cancel(userID) {
		log.WithField("user_id", userID).Debug("Диалог отменён")
	}
	lang := h.ledger.Language(userID)
	return h.gw.Notify(ctx, userID,
		h.text.Render(lang, "conversation.cancelled", nil),
		messaging.BackToMenu(h.text, lang),
	)
}

// HandleText продолжает диалог. handled=false: пользователь ни в каком шаге.
func (h *Handler) HandleText(ctx context.Context, userID int64, text string) (bool, error) {
	outcome, err := h.machine.HandleText(ctx, userID, text)
	if err != nil {
		return true, err
	}

	lang := h.ledger.Language(userID)
	currency := h.currency.Label()

	switch outcome.Kind {
	case OutcomeIgnored:
		return false, nil

	case OutcomeWalletSet:
		return true, h.gw.Notify(ctx, userID,
			h.text.Render(lang, "wallet.updated", i18n.P{"wallet": outcome.Account.Wallet}),
			messaging.BackToMenu(h.text, lang),
		)

	case OutcomeAmountStaged:
		return true, h.gw.Notify(ctx, userID,
			h.text.Render(lang, "deal.ask_description", nil),
			h.promptKeyboard(lang),
		)

	case OutcomeDealCreated:
		deal := outcome.Deal
		metrics.RecordDealCreated()
		err := h.gw.Notify(ctx, userID,
			h.text.Render(lang, "deal.created", i18n.P{
				"amount":      common.FormatAmount(deal.Amount, currency),
				"description": deal.Description,
				"link":        h.links.Deal(deal.ID),
			}),
			messaging.BackToMenu(h.text, lang),
		)
		if h.announcer != nil {
			h.announcer.AnnounceNewDeal(ctx, deal)
		}
		return true, err
	}
	return false, nil
}

func (h *Handler) promptKeyboard(lang string) messaging.Keyboard {
	return messaging.Column(
		messaging.Callback(h.text.Render(lang, "button.cancel", nil), messaging.ActionCancel),
		messaging.Callback(h.text.Render(lang, "button.menu", nil), messaging.ActionMenu),
	)
}
