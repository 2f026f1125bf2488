// Package admin: handlers.go обрабатывает кнопки админ-панели и ответы на отложенные команды.
// Поток: кнопка → подсказка формата → следующее сообщение админа разбирает Dispatcher.
package admin

import (
	"context"
	"strings"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/escrow-bot/internal/common"
	"serotonyl.ru/escrow-bot/internal/features/ledger"
	"serotonyl.ru/escrow-bot/internal/i18n"
	"serotonyl.ru/escrow-bot/internal/messaging"
)

// Handler обрабатывает админ-команды.
type Handler struct {
	service    *Service
	dispatcher *Dispatcher
	gate       *Gate
	ledger     *ledger.Service
	currency   *ledger.Currency
	text       *i18n.Catalog
	gw         messaging.Gateway
}

// NewHandler создаёт обработчик админ-панели.
func NewHandler(
	service *Service,
	dispatcher *Dispatcher,
	gate *Gate,
	ledgerService *ledger.Service,
	currency *ledger.Currency,
	text *i18n.Catalog,
	gw messaging.Gateway,
) *Handler {
	return &Handler{
		service:    service,
		dispatcher: dispatcher,
		gate:       gate,
		ledger:     ledgerService,
		currency:   currency,
		text:       text,
		gw:         gw,
	}
}

// Authorize пропускает только администратора с активной сессией (если включён пароль).
func (h *Handler) Authorize(ctx context.Context, userID int64) error {
	if !h.service.IsAdmin(userID) {
		return common.ErrUnauthorized
	}
	ok, err := h.gate.HasSession(ctx, userID)
	if err != nil {
		return err
	}
	if !ok {
		return common.ErrLoginRequired
	}
	return nil
}

// Login открывает сессию по паролю из "/login <пароль>".
func (h *Handler) Login(ctx context.Context, userID int64, password string) error {
	if !h.service.IsAdmin(userID) {
		return common.ErrUnauthorized
	}
	lang := h.ledger.Language(userID)

	password = strings.TrimSpace(password)
	if password == "" && h.gate.Enabled() {
		return h.gw.Notify(ctx, userID, h.text.Render(lang, "admin.login_usage", nil), nil)
	}
	if err := h.gate.Login(ctx, userID, password); err != nil {
		return err
	}
	return h.gw.Notify(ctx, userID, h.text.Render(lang, "admin.login_ok", nil), nil)
}

// PromptCommand запоминает команду и подсказывает формат ответа.
func (h *Handler) PromptCommand(ctx context.Context, userID int64, cmd PendingCommand) error {
	if err := h.service.SetPending(userID, cmd); err != nil {
		return err
	}

	var key string
	switch cmd {
	case CommandChangeBalance:
		key = "admin.ask_balance"
	case CommandChangeSuccessfulDeals:
		key = "admin.ask_successful_deals"
	case CommandChangeCurrency:
		key = "admin.ask_currency"
	case CommandAddAdmin:
		key = "admin.ask_admin_id"
	case CommandNone:
		return nil
	}

	lang := h.ledger.Language(userID)
	return h.gw.Notify(ctx, userID, h.text.Render(lang, key, nil), messaging.BackToMenu(h.text, lang))
}

// HandleReply выполняет отложенную команду. handled=false: команды не было.
func (h *Handler) HandleReply(ctx context.Context, userID int64, text string) (bool, error) {
	res, handled, err := h.dispatcher.Dispatch(ctx, userID, text)
	if !handled || err != nil {
		return handled, err
	}

	lang := h.ledger.Language(userID)
	var reply string
	switch res.Command {
	case CommandChangeBalance:
		reply = h.text.Render(lang, "admin.balance_changed", i18n.P{
			"user_id": res.TargetID,
			"amount":  common.FormatAmount(res.Balance, h.currency.Label()),
		})
	case CommandChangeSuccessfulDeals:
		reply = h.text.Render(lang, "admin.successful_deals_changed", i18n.P{
			"user_id": res.TargetID,
			"count":   res.SuccessfulDeals,
		})
	case CommandChangeCurrency:
		reply = h.text.Render(lang, "admin.currency_changed", i18n.P{"currency": res.Currency})
	case CommandAddAdmin:
		reply = h.text.Render(lang, "admin.added", i18n.P{
			"name":    messaging.DisplayName(ctx, h.gw, h.text, lang, res.TargetID),
			"user_id": res.TargetID,
		})
	case CommandNone:
		return false, nil
	}
	return true, h.gw.Notify(ctx, userID, reply, messaging.BackToMenu(h.text, lang))
}

// ShowManageAdmins показывает список администраторов с именами.
func (h *Handler) ShowManageAdmins(ctx context.Context, userID int64) error {
	lang := h.ledger.Language(userID)

	lines := make([]string, 0, len(h.service.List()))
	for _, id := range h.service.List() {
		lines = append(lines, h.text.Render(lang, "admin.list_item", i18n.P{
			"name":    messaging.DisplayName(ctx, h.gw, h.text, lang, id),
			"user_id": id,
		}))
	}

	kb := messaging.Column(
		messaging.Callback(h.text.Render(lang, "button.admin_add_admin", nil), messaging.ActionAdminAddAdmin),
		messaging.Callback(h.text.Render(lang, "button.admin_remove_admin", nil), messaging.ActionAdminRemoveAdmin),
		messaging.Callback(h.text.Render(lang, "button.back", nil), messaging.ActionMenu),
	)
	return h.gw.Notify(ctx, userID,
		h.text.Render(lang, "admin.manage", i18n.P{"admins": strings.Join(lines, "\n")}),
		kb,
	)
}

// ShowRemoveAdmins показывает кнопку на каждого администратора, кроме самого себя.
func (h *Handler) ShowRemoveAdmins(ctx context.Context, userID int64) error {
	lang := h.ledger.Language(userID)

	buttons := make([]messaging.Button, 0, len(h.service.List()))
	for _, id := range h.service.List() {
		if id == userID {
			continue
		}
		label := h.text.Render(lang, "admin.list_item", i18n.P{
			"name":    messaging.DisplayName(ctx, h.gw, h.text, lang, id),
			"user_id": id,
		})
		buttons = append(buttons, messaging.Callback(label, messaging.RemoveAdminAction(id)))
	}
	buttons = append(buttons, messaging.Callback(h.text.Render(lang, "button.back", nil), messaging.ActionAdminManageAdmins))

	return h.gw.Notify(ctx, userID, h.text.Render(lang, "admin.remove_choose", nil), messaging.Column(buttons...))
}

// RemoveAdmin снимает права с targetID.
func (h *Handler) RemoveAdmin(ctx context.Context, userID, targetID int64) error {
	if err := h.service.Revoke(ctx, targetID, userID); err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"admin_id":  userID,
		"target_id": targetID,
	}).Debug("Админ удалён через панель")

	lang := h.ledger.Language(userID)
	return h.gw.Notify(ctx, userID,
		h.text.Render(lang, "admin.removed", i18n.P{"user_id": targetID}),
		messaging.BackToMenu(h.text, lang),
	)
}
