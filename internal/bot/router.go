package bot

import (
	"context"
	"strings"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/escrow-bot/internal/features/admin"
	"serotonyl.ru/escrow-bot/internal/messaging"
)

// routeCommand маршрутизирует команду к нужному обработчику.
func (b *Bot) routeCommand(ctx context.Context, userID int64, cmd string, args []string) error {
	log.WithFields(log.Fields{
		"user_id": userID,
		"cmd":     cmd,
	}).Debug("routing command")

	switch cmd {
	case "start":
		return b.handleStart(ctx, userID, strings.Join(args, " "))

	case "login":
		if err := b.handlers.Admin.Login(ctx, userID, strings.Join(args, " ")); err != nil {
			return err
		}
		if len(args) == 0 {
			return nil
		}
		return b.showMenu(ctx, userID)

	case "cancel":
		b.admins.ConsumePending(userID)
		return b.handlers.Conversation.Cancel(ctx, userID)

	case "menu", "help":
		return b.showMenu(ctx, userID)
	}

	log.WithFields(log.Fields{
		"user_id": userID,
		"cmd":     cmd,
	}).Debug("Неизвестная команда, показываем меню")
	return b.showMenu(ctx, userID)
}

// handleStart разбирает параметр deep-link ссылки.
func (b *Bot) handleStart(ctx context.Context, userID int64, payload string) error {
	if _, err := b.ledger.EnsureExists(ctx, userID); err != nil {
		return err
	}

	start := messaging.ParseStartPayload(payload)
	switch start.Kind {
	case messaging.StartDeal:
		return b.handlers.Deals.OpenLink(ctx, userID, start.DealID)

	case messaging.StartReferral:
		log.WithFields(log.Fields{
			"user_id":     userID,
			"referrer_id": start.ReferrerID,
		}).Info("Переход по реферальной ссылке")
		if start.ReferrerID != userID {
			lang := b.ledger.Language(userID)
			if err := b.transport.Notify(ctx, userID, b.text.Render(lang, "referral.opened", nil), nil); err != nil {
				return err
			}
		}
	case messaging.StartNone:
	}
	return b.showMenu(ctx, userID)
}

// routeText отдаёт свободный текст отложенной админской команде,
// затем диалогу. Если никто не ждал ввода, показывает меню.
func (b *Bot) routeText(ctx context.Context, userID int64, text string) error {
	if handled, err := b.handlers.Admin.HandleReply(ctx, userID, text); handled {
		return err
	}
	if handled, err := b.handlers.Conversation.HandleText(ctx, userID, text); handled {
		return err
	}
	return b.showMenu(ctx, userID)
}

// routeCallback маршрутизирует нажатие inline-кнопки.
func (b *Bot) routeCallback(ctx context.Context, userID int64, data string) error {
	switch data {
	case messaging.ActionMenu:
		return b.showMenu(ctx, userID)
	case messaging.ActionUserMenu:
		return b.showUserMenu(ctx, userID)
	case messaging.ActionWallet:
		return b.handlers.Conversation.StartWalletEdit(ctx, userID)
	case messaging.ActionCreateDeal:
		return b.handlers.Conversation.StartDealCreation(ctx, userID)
	case messaging.ActionReferral:
		return b.handlers.Ledger.ShowReferral(ctx, userID)
	case messaging.ActionChangeLang:
		return b.handlers.Ledger.ShowLanguageChoice(ctx, userID)
	case messaging.ActionCancel:
		return b.handlers.Conversation.Cancel(ctx, userID)
	}

	if strings.HasPrefix(data, "admin_") || strings.HasPrefix(data, "remove_admin_") {
		if err := b.handlers.Admin.Authorize(ctx, userID); err != nil {
			return err
		}
		return b.routeAdminCallback(ctx, userID, data)
	}

	if lang, ok := messaging.ParseLangAction(data); ok {
		if err := b.handlers.Ledger.SetLanguage(ctx, userID, lang); err != nil {
			return err
		}
		return b.showMenu(ctx, userID)
	}
	if dealID, ok := messaging.ParsePayAction(data); ok {
		return b.handlers.Settlement.Pay(ctx, userID, dealID)
	}

	log.WithFields(log.Fields{
		"user_id": userID,
		"data":    data,
	}).Warn("Неизвестная кнопка")
	return nil
}

// routeAdminCallback: кнопки админ-панели. Права уже проверены.
func (b *Bot) routeAdminCallback(ctx context.Context, userID int64, data string) error {
	switch data {
	case messaging.ActionAdminViewDeals:
		return b.handlers.Deals.ShowOpenDeals(ctx, userID)
	case messaging.ActionAdminChangeBal:
		return b.handlers.Admin.PromptCommand(ctx, userID, admin.CommandChangeBalance)
	case messaging.ActionAdminChangeDeals:
		return b.handlers.Admin.PromptCommand(ctx, userID, admin.CommandChangeSuccessfulDeals)
	case messaging.ActionAdminChangeCurr:
		return b.handlers.Admin.PromptCommand(ctx, userID, admin.CommandChangeCurrency)
	case messaging.ActionAdminManageAdmins:
		return b.handlers.Admin.ShowManageAdmins(ctx, userID)
	case messaging.ActionAdminAddAdmin:
		return b.handlers.Admin.PromptCommand(ctx, userID, admin.CommandAddAdmin)
	case messaging.ActionAdminRemoveAdmin:
		return b.handlers.Admin.ShowRemoveAdmins(ctx, userID)
	}

	if targetID, ok := messaging.ParseRemoveAdminAction(data); ok {
		return b.handlers.Admin.RemoveAdmin(ctx, userID, targetID)
	}

	log.WithFields(log.Fields{
		"user_id": userID,
		"data":    data,
	}).Warn("Неизвестная админская кнопка")
	return nil
}
