package bot

import (
	"context"

	"serotonyl.ru/escrow-bot/internal/messaging"
)

// showMenu открывает админ-панель для администраторов и меню пользователя для остальных.
func (b *Bot) showMenu(ctx context.Context, userID int64) error {
	if b.admins.IsAdmin(userID) {
		return b.showAdminPanel(ctx, userID)
	}
	return b.showUserMenu(ctx, userID)
}

func (b *Bot) showUserMenu(ctx context.Context, userID int64) error {
	lang := b.ledger.Language(userID)
	button := func(key, action string) messaging.Button {
		return messaging.Callback(b.text.Render(lang, key, nil), action)
	}

	buttons := []messaging.Button{
		button("button.wallet", messaging.ActionWallet),
		button("button.create_deal", messaging.ActionCreateDeal),
		button("button.referral", messaging.ActionReferral),
		button("button.change_lang", messaging.ActionChangeLang),
	}
	if b.cfg.SupportURL != "" {
		buttons = append(buttons, messaging.Link(b.text.Render(lang, "button.support", nil), b.cfg.SupportURL))
	}

	return b.transport.Notify(ctx, userID, b.text.Render(lang, "menu.welcome", nil), messaging.Column(buttons...))
}

func (b *Bot) showAdminPanel(ctx context.Context, userID int64) error {
	lang := b.ledger.Language(userID)
	button := func(key, action string) messaging.Button {
		return messaging.Callback(b.text.Render(lang, key, nil), action)
	}

	kb := messaging.Column(
		button("button.admin_view_deals", messaging.ActionAdminViewDeals),
		button("button.admin_change_balance", messaging.ActionAdminChangeBal),
		button("button.admin_change_successful_deals", messaging.ActionAdminChangeDeals),
		button("button.admin_change_currency", messaging.ActionAdminChangeCurr),
		button("button.admin_manage_admins", messaging.ActionAdminManageAdmins),
		button("button.user_menu", messaging.ActionUserMenu),
	)
	return b.transport.Notify(ctx, userID, b.text.Render(lang, "menu.admin_panel", nil), kb)
}
