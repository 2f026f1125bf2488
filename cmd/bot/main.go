// Package main запускает эскроу-бота.
// Конфигурация берётся из окружения; флаги только переопределяют логирование.
// Остановка по SIGINT/SIGTERM дожидается уже принятых апдейтов.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"serotonyl.ru/escrow-bot/internal/app"
	"serotonyl.ru/escrow-bot/internal/config"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	flagSet := pflag.NewFlagSet("bot", pflag.ContinueOnError)
	logLevel := flagSet.String("log-level", "", "уровень логов поверх APP_LOG_LEVEL")
	jsonLogs := flagSet.Bool("json-logs", false, "писать логи в JSON")
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}

	setupLogging(*jsonLogs)

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Error("Не удалось загрузить конфигурацию")
		return 1
	}

	level := cfg.AppLogLevel
	if *logLevel != "" {
		level = *logLevel
	}
	if parsed, err := log.ParseLevel(level); err == nil {
		log.SetLevel(parsed)
	} else {
		log.WithField("level", level).Warn("Неизвестный уровень логов, оставляем debug")
	}
	if cfg.AppEnv == "production" && !*jsonLogs {
		log.SetFormatter(&log.JSONFormatter{})
	}

	log.WithFields(log.Fields{
		"env":     cfg.AppEnv,
		"storage": cfg.StorageDriver,
		"admins":  len(cfg.AdminIDs),
	}).Info("=== Бот запускается ===")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg)
	if err != nil {
		log.WithError(err).Error("Не удалось инициализировать приложение")
		return 1
	}
	defer application.Close()

	if err := application.Run(ctx); err != nil {
		log.WithError(err).Error("Бот завершился с ошибкой")
		return 1
	}

	log.Info("=== Бот остановлен ===")
	return 0
}

// setupLogging настраивает формат логов.
func setupLogging(jsonLogs bool) {
	log.SetOutput(os.Stdout)
	log.SetLevel(log.DebugLevel)
	if jsonLogs {
		log.SetFormatter(&log.JSONFormatter{})
		return
	}
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
}
