// Package deals: handlers.go обрабатывает открытие ссылки сделки покупателем,
// рассылку новых сделок администраторам и список открытых сделок.
package deals

import (
	"context"
	"strings"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/escrow-bot/internal/common"
	"serotonyl.ru/escrow-bot/internal/features/ledger"
	"serotonyl.ru/escrow-bot/internal/i18n"
	"serotonyl.ru/escrow-bot/internal/messaging"
)

// maxMessageLen: запас под лимит Telegram в 4096 символов.
const maxMessageLen = 3500

// AdminDirectory: список получателей служебных уведомлений.
type AdminDirectory interface {
	List() []int64
}

// Handler обрабатывает действия со сделками.
type Handler struct {
	service  *Service
	ledger   *ledger.Service
	admins   AdminDirectory
	currency *ledger.Currency
	text     *i18n.Catalog
	gw       messaging.Gateway
}

// NewHandler создаёт обработчик сделок.
func NewHandler(
	service *Service,
	ledgerService *ledger.Service,
	admins AdminDirectory,
	currency *ledger.Currency,
	text *i18n.Catalog,
	gw messaging.Gateway,
) *Handler {
	return &Handler{
		service:  service,
		ledger:   ledgerService,
		admins:   admins,
		currency: currency,
		text:     text,
		gw:       gw,
	}
}

// OpenLink привязывает buyerID к сделке и показывает ему карточку с кнопкой оплаты.
// Продавец получает уведомление, когда покупатель привязан впервые.
func (h *Handler) OpenLink(ctx context.Context, buyerID int64, dealID string) error {
	if _, err := h.ledger.EnsureExists(ctx, buyerID); err != nil {
		return err
	}

	deal, bound, err := h.service.BindBuyer(ctx, dealID, buyerID)
	if err != nil {
		return err
	}

	seller, err := h.ledger.EnsureExists(ctx, deal.SellerID)
	if err != nil {
		return err
	}
	currency := h.currency.Label()
	lang := h.ledger.Language(buyerID)

	wallet := seller.Wallet
	if !seller.HasWallet() {
		wallet = h.text.Render(lang, "wallet.not_set", nil)
	}

	card := h.text.Render(lang, "deal.info", i18n.P{
		"deal_id":          deal.ID,
		"seller":           messaging.DisplayName(ctx, h.gw, h.text, lang, deal.SellerID),
		"successful_deals": seller.SuccessfulDeals,
		"deals_word":       h.text.DealsWord(lang, seller.SuccessfulDeals),
		"description":      deal.Description,
		"wallet":           wallet,
		"amount":           common.FormatAmount(deal.Amount, currency),
	})
	kb := messaging.Column(
		messaging.Callback(h.text.Render(lang, "button.pay", nil), messaging.PayAction(deal.ID)),
		messaging.Callback(h.text.Render(lang, "button.menu", nil), messaging.ActionMenu),
	)
	if err := h.gw.Notify(ctx, buyerID, card, kb); err != nil {
		return err
	}

	if bound {
		sellerLang := h.ledger.Language(deal.SellerID)
		notice := h.text.Render(sellerLang, "deal.seller_notified", i18n.P{
			"buyer":            messaging.DisplayName(ctx, h.gw, h.text, sellerLang, buyerID),
			"deal_id":          deal.ID,
			"successful_deals": seller.SuccessfulDeals,
		})
		if err := h.gw.Notify(ctx, deal.SellerID, notice, nil); err != nil {
			log.WithError(err).WithField("deal_id", deal.ID).Warn("Не удалось уведомить продавца")
		}
	}
	return nil
}

// AnnounceNewDeal рассылает новую сделку всем администраторам.
// Ошибки доставки отдельным админам только логируются.
func (h *Handler) AnnounceNewDeal(ctx context.Context, deal Deal) {
	amount := common.FormatAmount(deal.Amount, h.currency.Label())
	for _, adminID := range h.admins.List() {
		lang := h.ledger.Language(adminID)
		text := h.text.Render(lang, "deal.admin_new", i18n.P{
			"deal_id":     deal.ID,
			"amount":      amount,
			"description": deal.Description,
			"seller":      messaging.DisplayName(ctx, h.gw, h.text, lang, deal.SellerID),
			"seller_id":   deal.SellerID,
		})
		if err := h.gw.Notify(ctx, adminID, text, nil); err != nil {
			log.WithError(err).WithFields(log.Fields{
				"admin_id": adminID,
				"deal_id":  deal.ID,
			}).Warn("Не удалось уведомить админа о новой сделке")
		}
	}
}

// ShowOpenDeals отправляет админу список сделок в реестре.
// Длинный список делится на несколько сообщений.
func (h *Handler) ShowOpenDeals(ctx context.Context, adminID int64) error {
	lang := h.ledger.Language(adminID)
	back := messaging.BackToMenu(h.text, lang)

	open := h.service.ListOpen()
	if len(open) == 0 {
		return h.gw.Notify(ctx, adminID, h.text.Render(lang, "deal.admin_list_empty", nil), back)
	}

	currency := h.currency.Label()
	count := int64(len(open))
	items := make([]string, 0, len(open)+1)
	items = append(items, h.text.Render(lang, "deal.admin_list_header", i18n.P{
		"count":      count,
		"deals_word": h.text.DealsWord(lang, count),
	}))
	for _, d := range open {
		buyer := h.text.Render(lang, "deal.no_buyer", nil)
		if d.HasBuyer() {
			buyer = messaging.DisplayName(ctx, h.gw, h.text, lang, d.BuyerID)
		}
		items = append(items, h.text.Render(lang, "deal.admin_list_item", i18n.P{
			"deal_id":     d.ID,
			"amount":      common.FormatAmount(d.Amount, currency),
			"description": d.Description,
			"seller":      messaging.DisplayName(ctx, h.gw, h.text, lang, d.SellerID),
			"seller_id":   d.SellerID,
			"buyer":       buyer,
		}))
	}

	chunks := chunkLines(items, maxMessageLen)
	for i, chunk := range chunks {
		var kb messaging.Keyboard
		if i == len(chunks)-1 {
			kb = back
		}
		if err := h.gw.Notify(ctx, adminID, chunk, kb); err != nil {
			return err
		}
	}
	return nil
}

// chunkLines склеивает блоки через пустую строку, не превышая limit на сообщение.
// Блок длиннее limit уходит отдельным сообщением целиком.
func chunkLines(blocks []string, limit int) []string {
	var (
		out []string
		cur strings.Builder
	)
	for _, b := range blocks {
		if cur.Len() > 0 && cur.Len()+2+len(b) > limit {
			out = append(out, cur.String())
			cur.Reset()
		}
		if cur.Len() > 0 {
			cur.WriteString("\n\n")
		}
		cur.WriteString(b)
	}
	if cur.Len() > 0 {
		out = append(out, cur.String())
	}
	return out
}
