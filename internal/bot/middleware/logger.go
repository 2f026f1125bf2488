// Package middleware содержит промежуточные обработчики для логирования,
// восстановления после паники и rate-limiting.
package middleware

import (
	"strings"
	"time"

	"github.com/mymmrac/telego"
	log "github.com/sirupsen/logrus"
)

// maxLoggedText: сколько символов текста попадает в лог.
const maxLoggedText = 50

// secretCommands: команды, аргументы которых не пишутся в лог.
var secretCommands = map[string]struct{}{
	"login": {},
}

// LogMessage логирует входящее сообщение.
// Текст обрезается до maxLoggedText, аргументы секретных команд заменяются на "***".
func LogMessage(message *telego.Message) {
	if message == nil || message.From == nil {
		return
	}

	log.WithFields(log.Fields{
		"user_id":     message.From.ID,
		"chat_id":     message.Chat.ID,
		"username":    message.From.Username,
		"text":        truncate(redact(message.Text)),
		"received_at": time.Now().Format("15:04:05"),
	}).Debug("Входящее сообщение")
}

// LogCallback логирует нажатие inline-кнопки.
func LogCallback(query *telego.CallbackQuery) {
	if query == nil {
		return
	}

	log.WithFields(log.Fields{
		"user_id":     query.From.ID,
		"username":    query.From.Username,
		"data":        truncate(query.Data),
		"received_at": time.Now().Format("15:04:05"),
	}).Debug("Нажата кнопка")
}

// redact оставляет от секретной команды только её имя.
func redact(text string) string {
	fields := strings.Fields(text)
	if len(fields) < 2 || !strings.HasPrefix(fields[0], "/") {
		return text
	}
	name, _, _ := strings.Cut(strings.TrimPrefix(fields[0], "/"), "@")
	if _, secret := secretCommands[strings.ToLower(name)]; !secret {
		return text
	}
	return fields[0] + " ***"
}

func truncate(text string) string {
	runes := []rune(text)
	if len(runes) > maxLoggedText {
		return string(runes[:maxLoggedText]) + "..."
	}
	return text
}
