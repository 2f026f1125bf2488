// Package config собирает настройки эскроу-бота из окружения через envconfig.
// Load не только читает переменные, но и проверяет их связность.
package config

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Драйверы хранилища.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

// Config описывает окружение процесса.
type Config struct {
	TelegramBotToken string  `envconfig:"TELEGRAM_BOT_TOKEN" required:"true"`
	AdminIDsRaw      string  `envconfig:"ADMIN_IDS" required:"true"`
	AdminIDs         []int64 `envconfig:"-"`
	// https://t.me/<bot>; если пусто, собирается из GetMe.
	BotEntryURL string `envconfig:"BOT_ENTRY_URL"`
	// Без SUPPORT_URL кнопки поддержки в меню нет.
	SupportURL string `envconfig:"SUPPORT_URL"`

	StorageDriver string `envconfig:"STORAGE_DRIVER" default:"postgres"`
	SQLitePath    string `envconfig:"SQLITE_PATH" default:"escrow.db"`

	// Хост по умолчанию совпадает с именем сервиса в docker-compose.
	DBHost     string `envconfig:"DB_HOST" default:"postgres"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" default:"botuser"`
	DBPassword string `envconfig:"DB_PASSWORD"`
	DBName     string `envconfig:"DB_NAME" default:"escrow_bot"`
	DBSSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
	DBMaxConns int32  `envconfig:"DB_MAX_CONNS" default:"25"`
	DBMinConns int32  `envconfig:"DB_MIN_CONNS" default:"5"`

	AppEnv      string `envconfig:"APP_ENV" default:"development"`
	AppLogLevel string `envconfig:"APP_LOG_LEVEL" default:"debug"`
	AppTimezone string `envconfig:"APP_TIMEZONE" default:"Europe/Moscow"`

	DefaultLanguage string `envconfig:"DEFAULT_LANGUAGE" default:"ru"`
	DefaultCurrency string `envconfig:"DEFAULT_CURRENCY" default:"TON"`

	// Потолок одновременно обрабатываемых апдейтов.
	BotMaxInflight          int `envconfig:"BOT_MAX_INFLIGHT" default:"64"`
	BotUpdateTimeoutSeconds int `envconfig:"BOT_UPDATE_TIMEOUT_SECONDS" default:"60"`

	RateLimitRequests int           `envconfig:"RATE_LIMIT_REQUESTS" default:"10"`
	RateLimitWindow   time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"1m"`

	// Argon2id-хеш из cmd/hashpass. Пустой хеш отключает вход по паролю.
	AdminPasswordHash string        `envconfig:"ADMIN_PASSWORD_HASH"`
	AdminSessionTTL   time.Duration `envconfig:"ADMIN_SESSION_TTL" default:"24h"`

	// Cron-выражение дайджеста открытых сделок. Пусто: дайджест выключен.
	DigestCron string `envconfig:"DIGEST_CRON" default:"0 9 * * *"`

	// Адрес для /metrics и /healthz. Пусто: сервер не поднимается.
	MetricsAddr string `envconfig:"METRICS_ADDR"`
}

// DatabaseDSN собирает URL подключения к PostgreSQL.
// Логин и пароль экранируются.
func (c *Config) DatabaseDSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DBUser, c.DBPassword),
		Host:     net.JoinHostPort(c.DBHost, strconv.Itoa(c.DBPort)),
		Path:     "/" + c.DBName,
		RawQuery: "sslmode=" + url.QueryEscape(c.DBSSLMode),
	}
	return u.String()
}

// Validate проверяет значения, которые envconfig не умеет проверить сам.
func (c *Config) Validate() error {
	switch {
	case len(c.AdminIDs) == 0:
		return fmt.Errorf("ADMIN_IDS: нужен хотя бы один ID")
	case c.BotMaxInflight <= 0:
		return fmt.Errorf("BOT_MAX_INFLIGHT: ожидается положительное число, получено %d", c.BotMaxInflight)
	case c.BotUpdateTimeoutSeconds <= 0:
		return fmt.Errorf("BOT_UPDATE_TIMEOUT_SECONDS: ожидается положительное число, получено %d", c.BotUpdateTimeoutSeconds)
	case c.RateLimitRequests <= 0 || c.RateLimitWindow <= 0:
		return fmt.Errorf("RATE_LIMIT_REQUESTS/RATE_LIMIT_WINDOW: лимит должен быть положительным")
	case strings.TrimSpace(c.DefaultCurrency) == "":
		return fmt.Errorf("DEFAULT_CURRENCY пуст")
	case strings.TrimSpace(c.DefaultLanguage) == "":
		return fmt.Errorf("DEFAULT_LANGUAGE пуст")
	}
	return c.validateStorage()
}

func (c *Config) validateStorage() error {
	switch c.StorageDriver {
	case DriverPostgres:
		if c.DBPassword == "" {
			return fmt.Errorf("DB_PASSWORD обязателен для STORAGE_DRIVER=%s", DriverPostgres)
		}
		if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
			return fmt.Errorf("DB_MIN_CONNS=%d и DB_MAX_CONNS=%d несовместимы", c.DBMinConns, c.DBMaxConns)
		}
	case DriverSQLite:
		if strings.TrimSpace(c.SQLitePath) == "" {
			return fmt.Errorf("SQLITE_PATH обязателен для STORAGE_DRIVER=%s", DriverSQLite)
		}
	case DriverMemory:
	default:
		return fmt.Errorf("STORAGE_DRIVER %q не поддерживается", c.StorageDriver)
	}
	return nil
}

// Load читает окружение, разбирает ADMIN_IDS и вызывает Validate.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("чтение окружения: %w", err)
	}

	ids, err := parseAdminIDs(cfg.AdminIDsRaw)
	if err != nil {
		return nil, fmt.Errorf("ADMIN_IDS: %w", err)
	}
	cfg.AdminIDs = ids
	cfg.BotEntryURL = strings.TrimRight(strings.TrimSpace(cfg.BotEntryURL), "/")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// parseAdminIDs разбирает список через запятую, пропуская пустые и повторы.
func parseAdminIDs(raw string) ([]int64, error) {
	var ids []int64
	seen := make(map[int64]struct{})
	for _, field := range strings.Split(raw, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		id, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%q не является ID: %w", field, err)
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, nil
}
