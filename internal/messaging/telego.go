package messaging

import (
	"context"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	log "github.com/sirupsen/logrus"
)

// TelegoGateway отправляет сообщения через Telegram Bot API.
type TelegoGateway struct {
	bot *telego.Bot
}

// NewTelegoGateway создаёт шлюз поверх готового клиента.
func NewTelegoGateway(bot *telego.Bot) *TelegoGateway {
	return &TelegoGateway{bot: bot}
}

// Notify отправляет сообщение с inline-клавиатурой.
func (g *TelegoGateway) Notify(ctx context.Context, userID int64, text string, kb Keyboard) error {
	msg := tu.Message(tu.ID(userID), text)
	if markup := inlineMarkup(kb); markup != nil {
		msg = msg.WithReplyMarkup(markup)
	}
	if _, err := g.bot.SendMessage(ctx, msg); err != nil {
		log.WithError(err).WithField("user_id", userID).Warn("Ошибка отправки сообщения")
		return err
	}
	return nil
}

// ResolveDisplayName возвращает "@username", имя или UnknownName.
func (g *TelegoGateway) ResolveDisplayName(ctx context.Context, userID int64) string {
	chat, err := g.bot.GetChat(ctx, &telego.GetChatParams{ChatID: tu.ID(userID)})
	if err != nil || chat == nil {
		log.WithError(err).WithField("user_id", userID).Debug("Профиль недоступен")
		return UnknownName
	}
	switch {
	case chat.Username != "":
		return "@" + chat.Username
	case chat.FirstName != "":
		return chat.FirstName
	}
	return UnknownName
}

// AnswerCallback снимает «часики» с нажатой кнопки.
func (g *TelegoGateway) AnswerCallback(ctx context.Context, callbackID string) error {
	return g.bot.AnswerCallbackQuery(ctx, tu.CallbackQuery(callbackID))
}

func inlineMarkup(kb Keyboard) *telego.InlineKeyboardMarkup {
	if len(kb) == 0 {
		return nil
	}
	rows := make([][]telego.InlineKeyboardButton, 0, len(kb))
	for _, row := range kb {
		buttons := make([]telego.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			btn := tu.InlineKeyboardButton(b.Text)
			if b.URL != "" {
				btn = btn.WithURL(b.URL)
			} else {
				btn = btn.WithCallbackData(b.Data)
			}
			buttons = append(buttons, btn)
		}
		rows = append(rows, tu.InlineKeyboardRow(buttons...))
	}
	return tu.InlineKeyboard(rows...)
}
