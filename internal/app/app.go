// Package app инициализирует все компоненты приложения.
// app.go собирает приложение: открывает хранилище, поднимает сервисы и обработчики,
// подключается к Telegram и собирает всё в один объект App.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/mymmrac/telego"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/escrow-bot/internal/bot"
	"serotonyl.ru/escrow-bot/internal/common"
	"serotonyl.ru/escrow-bot/internal/config"
	"serotonyl.ru/escrow-bot/internal/features/admin"
	"serotonyl.ru/escrow-bot/internal/features/conversation"
	"serotonyl.ru/escrow-bot/internal/features/deals"
	"serotonyl.ru/escrow-bot/internal/features/ledger"
	"serotonyl.ru/escrow-bot/internal/features/settlement"
	"serotonyl.ru/escrow-bot/internal/i18n"
	"serotonyl.ru/escrow-bot/internal/jobs"
	"serotonyl.ru/escrow-bot/internal/messaging"
	"serotonyl.ru/escrow-bot/internal/metrics"
)

// App содержит все компоненты приложения.
type App struct {
	cfg       *config.Config
	Bot       *bot.Bot
	Scheduler *jobs.Scheduler
	Store     Store
	Metrics   *metrics.Server
	telegram  *telego.Bot
}

// Services: доменные сервисы, поднятые из хранилища.
type Services struct {
	Admins     *admin.Service
	Ledger     *ledger.Service
	Currency   *ledger.Currency
	Deals      *deals.Service
	Settlement *settlement.Service
	Gate       *admin.Gate
}

// New создаёт и инициализирует приложение.
// Порядок инициализации важен: компоненты зависят друг от друга.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	// === 1. Хранилище ===
	store, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия хранилища: %w", err)
	}

	// === 2. Сервисы и состояние из хранилища ===
	services, err := LoadServices(ctx, cfg, store)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	text, err := i18n.Load(cfg.DefaultLanguage)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("ошибка загрузки строк: %w", err)
	}

	// === 3. Telegram Bot API ===
	telegram, err := telego.NewBot(cfg.TelegramBotToken, telego.WithLogger(log.WithField("component", "telego")))
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("ошибка создания Telegram API: %w", err)
	}
	me, err := telegram.GetMe(ctx)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("ошибка авторизации в Telegram: %w", err)
	}
	log.Infof("Авторизован как @%s", me.Username)

	entry := cfg.BotEntryURL
	if entry == "" {
		entry = "https://t.me/" + me.Username
	}

	// === 4. Обработчики и бот ===
	gateway := messaging.NewTelegoGateway(telegram)
	b := bot.New(cfg, text, gateway, services.Ledger, services.Admins,
		BuildHandlers(services, text, gateway, messaging.NewLinks(entry)))

	// === 5. Планировщик задач ===
	scheduler, err := jobs.NewScheduler(cfg.DigestCron, common.LoadLocation(cfg.AppTimezone), jobs.Deps{
		Deals:     services.Deals,
		Admins:    services.Admins,
		Languages: services.Ledger,
		Currency:  services.Currency,
		Text:      text,
		Gateway:   gateway,
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	a := &App{
		cfg:       cfg,
		Bot:       b,
		Scheduler: scheduler,
		Store:     store,
		telegram:  telegram,
	}
	if cfg.MetricsAddr != "" {
		a.Metrics = metrics.NewServer(cfg.MetricsAddr, store.Ping)
	}
	return a, nil
}

// LoadServices поднимает сервисы и загружает их состояние.
// Админы грузятся первыми: от них зависит безлимитный баланс в ledger.
func LoadServices(ctx context.Context, cfg *config.Config, store Store) (*Services, error) {
	admins := admin.NewService(store)
	if err := admins.Load(ctx, cfg.AdminIDs); err != nil {
		return nil, fmt.Errorf("ошибка загрузки админов: %w", err)
	}

	ledgerService := ledger.NewService(store, admins, cfg.DefaultLanguage)
	if err := ledgerService.Load(ctx); err != nil {
		return nil, fmt.Errorf("ошибка загрузки счетов: %w", err)
	}

	dealService := deals.NewService(store)
	if err := dealService.Load(ctx); err != nil {
		return nil, fmt.Errorf("ошибка загрузки сделок: %w", err)
	}

	currency := ledger.NewCurrency(store, cfg.DefaultCurrency)
	if err := currency.Load(ctx); err != nil {
		return nil, fmt.Errorf("ошибка загрузки валюты: %w", err)
	}

	return &Services{
		Admins:     admins,
		Ledger:     ledgerService,
		Currency:   currency,
		Deals:      dealService,
		Settlement: settlement.NewService(ledgerService, dealService, store),
		Gate:       admin.NewGate(store, cfg.AdminPasswordHash, cfg.AdminSessionTTL),
	}, nil
}

// BuildHandlers собирает обработчики фич поверх сервисов.
func BuildHandlers(s *Services, text *i18n.Catalog, gw messaging.Gateway, links messaging.Links) bot.Handlers {
	dealHandler := deals.NewHandler(s.Deals, s.Ledger, s.Admins, s.Currency, text, gw)
	return bot.Handlers{
		Ledger: ledger.NewHandler(s.Ledger, s.Currency, text, gw, links),
		Conversation: conversation.NewHandler(
			conversation.NewMachine(s.Ledger, s.Deals),
			s.Ledger, s.Currency, text, gw, links, dealHandler,
		),
		Deals:      dealHandler,
		Settlement: settlement.NewHandler(s.Settlement, s.Ledger, s.Currency, text, gw),
		Admin: admin.NewHandler(
			s.Admins,
			admin.NewDispatcher(s.Admins, s.Ledger, s.Currency),
			s.Gate,
			s.Ledger, s.Currency, text, gw,
		),
	}
}

// Run запускает long polling, планировщик и служебный сервер.
// Возвращается после отмены ctx, когда обработаны уже принятые апдейты.
func (a *App) Run(ctx context.Context) error {
	updates, err := a.telegram.UpdatesViaLongPolling(ctx, &telego.GetUpdatesParams{
		Timeout:        a.cfg.BotUpdateTimeoutSeconds,
		AllowedUpdates: []string{"message", "callback_query"},
	})
	if err != nil {
		return fmt.Errorf("ошибка запуска long polling: %w", err)
	}

	if a.Metrics != nil {
		a.Metrics.Start()
	}
	a.Scheduler.Start(ctx)

	a.Bot.Run(ctx, updates)
	return nil
}

// Close останавливает фоновые задачи и закрывает хранилище.
func (a *App) Close() {
	a.Scheduler.Stop()
	a.Bot.Close()
	if a.Metrics != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		a.Metrics.Stop(shutdownCtx)
		cancel()
	}
	if err := a.Store.Close(); err != nil {
		log.WithError(err).Warn("Ошибка закрытия хранилища")
	}
}
