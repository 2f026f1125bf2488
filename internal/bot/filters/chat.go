// Package filters решает, какие апдейты бот вообще обрабатывает.
package filters

import (
	"github.com/mymmrac/telego"
	log "github.com/sirupsen/logrus"
)

// ChatFilter пропускает только личные чаты с живым отправителем.
// Сделки, кошельки и админка работают только в личке.
type ChatFilter struct {
	denied func(chatID int64)
}

// NewChatFilter создаёт фильтр. denied (может быть nil) вызывается для отклонённых групповых чатов.
func NewChatFilter(denied func(chatID int64)) *ChatFilter {
	return &ChatFilter{denied: denied}
}

// CheckAccess проверяет чат и отправителя апдейта.
func (f *ChatFilter) CheckAccess(chat telego.Chat, from *telego.User) bool {
	logger := log.WithFields(log.Fields{
		"component": "ChatFilter",
		"chat_id":   chat.ID,
		"chat_type": chat.Type,
	})

	if from == nil {
		logger.Warn("nil message.From (service/channel message?)")
		return false
	}
	if from.IsBot {
		logger.WithField("user_id", from.ID).Debug("deny: sender is a bot")
		return false
	}
	if chat.Type != telego.ChatTypePrivate {
		logger.WithField("user_id", from.ID).Info("deny: not a private chat")
		if f.denied != nil {
			f.denied(chat.ID)
		}
		return false
	}
	return true
}
