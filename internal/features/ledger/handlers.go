// Package ledger: handlers.go отвечает на кнопки, которые работают только со счётом:
// реферальная ссылка и смена языка.
package ledger

import (
	"context"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/escrow-bot/internal/common"
	"serotonyl.ru/escrow-bot/internal/i18n"
	"serotonyl.ru/escrow-bot/internal/messaging"
)

// Handler обрабатывает действия пользователя со своим счётом.
type Handler struct {
	service  *Service
	currency *Currency
	text     *i18n.Catalog
	gw       messaging.Gateway
	links    messaging.Links
}

// NewHandler создаёт обработчик счёта.
func NewHandler(service *Service, currency *Currency, text *i18n.Catalog, gw messaging.Gateway, links messaging.Links) *Handler {
	return &Handler{service: service, currency: currency, text: text, gw: gw, links: links}
}

// ShowReferral отправляет реферальную ссылку пользователя.
func (h *Handler) ShowReferral(ctx context.Context, userID int64) error {
	if _, err := h.service.EnsureExists(ctx, userID); err != nil {
		return err
	}
	lang := h.service.Language(userID)
	return h.gw.Notify(ctx, userID,
		h.text.Render(lang, "referral.message", i18n.P{
			"link":     h.links.Referral(userID),
			"currency": h.currency.Label(),
		}),
		messaging.BackToMenu(h.text, lang),
	)
}

// ShowLanguageChoice показывает кнопку на каждый поддерживаемый язык.
func (h *Handler) ShowLanguageChoice(ctx context.Context, userID int64) error {
	lang := h.service.Language(userID)

	buttons := make([]messaging.Button, 0, len(h.text.Languages())+1)
	for _, l := range h.text.Languages() {
		buttons = append(buttons, messaging.Callback(
			h.text.Render(lang, "button.lang_"+l, nil),
			messaging.LangAction(l),
		))
	}
	buttons = append(buttons, messaging.Callback(h.text.Render(lang, "button.back", nil), messaging.ActionMenu))

	return h.gw.Notify(ctx, userID, h.text.Render(lang, "lang.choose", nil), messaging.Column(buttons...))
}

// SetLanguage сохраняет выбранный язык и подтверждает уже на нём.
// Меню после смены показывает вызывающий код.
func (h *Handler) SetLanguage(ctx context.Context, userID int64, lang string) error {
	if !h.text.Supports(lang) {
		return common.Validation("неподдерживаемый язык %q", lang)
	}
	if _, err := h.service.SetLanguage(ctx, userID, lang); err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"user_id":  userID,
		"language": lang,
	}).Info("Язык изменён")
	return h.gw.Notify(ctx, userID, h.text.Render(lang, "lang.set", nil), nil)
}
