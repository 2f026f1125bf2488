// Package bot содержит главный цикл бота: приём апдейтов, классификацию,
// маршрутизацию к обработчикам фич и единую точку обработки ошибок.
package bot

import (
	"context"
	"sync"

	"github.com/mymmrac/telego"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/escrow-bot/internal/bot/filters"
	"serotonyl.ru/escrow-bot/internal/bot/middleware"
	"serotonyl.ru/escrow-bot/internal/config"
	"serotonyl.ru/escrow-bot/internal/features/admin"
	"serotonyl.ru/escrow-bot/internal/features/conversation"
	"serotonyl.ru/escrow-bot/internal/features/deals"
	"serotonyl.ru/escrow-bot/internal/features/ledger"
	"serotonyl.ru/escrow-bot/internal/features/settlement"
	"serotonyl.ru/escrow-bot/internal/i18n"
	"serotonyl.ru/escrow-bot/internal/messaging"
	"serotonyl.ru/escrow-bot/internal/metrics"
)

// Transport: исходящий канал плюс ответ на нажатие кнопки.
type Transport interface {
	messaging.Gateway
	AnswerCallback(ctx context.Context, callbackID string) error
}

// Handlers: обработчики фич, к которым бот маршрутизирует апдейты.
type Handlers struct {
	Ledger       *ledger.Handler
	Conversation *conversation.Handler
	Deals        *deals.Handler
	Settlement   *settlement.Handler
	Admin        *admin.Handler
}

// Bot: главная структура бота, объединяющая все компоненты.
type Bot struct {
	cfg       *config.Config
	text      *i18n.Catalog
	transport Transport

	ledger *ledger.Service
	admins *admin.Service

	handlers Handlers

	chatFilter  *filters.ChatFilter
	rateLimiter *middleware.RateLimiter
	parser      *CommandParser

	// ограничитель параллелизма обработки апдейтов
	inflight chan struct{}
	wg       sync.WaitGroup
}

// New создаёт новый экземпляр бота со всеми зависимостями.
func New(
	cfg *config.Config,
	text *i18n.Catalog,
	transport Transport,
	ledgerService *ledger.Service,
	adminService *admin.Service,
	handlers Handlers,
) *Bot {
	maxInFlight := cfg.BotMaxInflight
	if maxInFlight <= 0 {
		maxInFlight = 64
	}

	return &Bot{
		cfg:         cfg,
		text:        text,
		transport:   transport,
		ledger:      ledgerService,
		admins:      adminService,
		handlers:    handlers,
		chatFilter:  filters.NewChatFilter(nil),
		rateLimiter: middleware.NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow),
		parser:      NewCommandParser(),
		inflight:    make(chan struct{}, maxInFlight),
	}
}

// Run обрабатывает апдейты, пока не закроется канал или не отменится ctx.
// Перед возвратом дожидается уже запущенных обработчиков.
func (b *Bot) Run(ctx context.Context, updates <-chan telego.Update) {
	log.WithFields(log.Fields{
		"max_inflight": cap(b.inflight),
		"timeout_sec":  b.cfg.BotUpdateTimeoutSeconds,
	}).Info("Бот запущен и ожидает сообщения...")

	defer b.wg.Wait()

	for {
		select {
		case <-ctx.Done():
			log.Info("Бот останавливается (ctx done)...")
			return

		case update, ok := <-updates:
			if !ok {
				log.Info("Канал updates закрыт, бот остановлен")
				return
			}

			// лимит параллелизма
			select {
			case b.inflight <- struct{}{}:
			case <-ctx.Done():
				return
			}
			b.wg.Add(1)
			go func(upd telego.Update) {
				defer b.wg.Done()
				defer func() { <-b.inflight }()
				b.handleUpdate(ctx, upd)
			}(update)
		}
	}
}

// Close освобождает фоновые ресурсы бота.
func (b *Bot) Close() {
	b.rateLimiter.Close()
}

// handleUpdate обрабатывает одно обновление от Telegram.
func (b *Bot) handleUpdate(ctx context.Context, update telego.Update) {
	defer middleware.Recover(update.UpdateID)

	switch {
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	default:
		metrics.RecordUpdate("other")
	}
}

func (b *Bot) handleMessage(ctx context.Context, message *telego.Message) {
	middleware.LogMessage(message)

	if !b.chatFilter.CheckAccess(message.Chat, message.From) {
		return
	}
	if message.Text == "" {
		metrics.RecordUpdate("other")
		return
	}

	userID := message.From.ID
	if !b.rateLimiter.Allow(userID) {
		log.WithField("user_id", userID).Debug("rate limited")
		return
	}

	cmd, args, isCommand := b.parser.ParseCommand(message.Text)
	log.WithFields(log.Fields{
		"isCommand": isCommand,
		"cmd":       cmd,
		"args":      len(args),
	}).Debug("parsed command")

	var err error
	if isCommand {
		metrics.RecordUpdate("command")
		err = b.routeCommand(ctx, userID, cmd, args)
	} else {
		metrics.RecordUpdate("text")
		err = b.routeText(ctx, userID, message.Text)
	}
	if err != nil {
		b.fail(ctx, userID, err)
	}
}

func (b *Bot) handleCallback(ctx context.Context, query *telego.CallbackQuery) {
	middleware.LogCallback(query)
	metrics.RecordUpdate("callback")

	// «часики» на кнопке снимаются при любом исходе
	defer func() {
		if err := b.transport.AnswerCallback(ctx, query.ID); err != nil {
			log.WithError(err).WithField("callback_id", query.ID).Debug("Не удалось ответить на callback")
		}
	}()

	if query.Message != nil && !b.chatFilter.CheckAccess(query.Message.GetChat(), &query.From) {
		return
	}

	userID := query.From.ID
	if !b.rateLimiter.Allow(userID) {
		log.WithField("user_id", userID).Debug("rate limited")
		return
	}

	if err := b.routeCallback(ctx, userID, query.Data); err != nil {
		b.fail(ctx, userID, err)
	}
}
