package bot

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/escrow-bot/internal/common"
	"serotonyl.ru/escrow-bot/internal/messaging"
	"serotonyl.ru/escrow-bot/internal/metrics"
)

// errorMessages: вид ошибки → метка метрики и ключ сообщения.
// Проверяется по порядку, первое совпадение errors.Is выигрывает.
var errorMessages = []struct {
	err  error
	kind string
	key  string
}{
	{common.ErrValidation, "validation", "error.validation"},
	{common.ErrInsufficientFunds, "insufficient_funds", "error.insufficient_funds"},
	{common.ErrDealNotFound, "deal_not_found", "error.deal_not_found"},
	{common.ErrDealAlreadyPledged, "deal_pledged", "error.deal_pledged"},
	{common.ErrUnauthorized, "unauthorized", "error.unauthorized"},
	{common.ErrSelfRemovalForbidden, "self_removal", "error.self_removal"},
	{common.ErrWrongPassword, "wrong_password", "error.wrong_password"},
	{common.ErrTooManyAttempts, "too_many_attempts", "error.too_many_attempts"},
	{common.ErrLoginRequired, "login_required", "error.login_required"},
	{common.ErrStorage, "storage", "error.storage"},
}

// classify возвращает метку и ключ сообщения для err.
func classify(err error) (kind, key string) {
	for _, m := range errorMessages {
		if errors.Is(err, m.err) {
			return m.kind, m.key
		}
	}
	return "generic", "error.generic"
}

// fail обрабатывает ошибку апдейта: пишет лог и метрику, отправляет пользователю одно сообщение.
func (b *Bot) fail(ctx context.Context, userID int64, err error) {
	kind, key := classify(err)
	metrics.RecordError(kind)

	entry := log.WithError(err).WithFields(log.Fields{
		"user_id": userID,
		"kind":    kind,
	})
	switch kind {
	case "storage", "generic":
		entry.Error("Ошибка обработки апдейта")
	default:
		entry.Info("Действие отклонено")
	}

	lang := b.ledger.Language(userID)
	if sendErr := b.transport.Notify(ctx, userID, b.text.Render(lang, key, nil), messaging.BackToMenu(b.text, lang)); sendErr != nil {
		log.WithError(sendErr).WithField("user_id", userID).Warn("Не удалось сообщить об ошибке")
	}
}
