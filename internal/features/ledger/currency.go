package ledger

import (
	"context"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/escrow-bot/internal/common"
)

// currencySettingKey: ключ валюты в таблице settings.
const currencySettingKey = "currency"

// Currency: единая для всего бота метка валюты ("TON", "USD").
// Курсов нет: смена метки меняет отображение всех балансов и сумм сделок.
type Currency struct {
	repo SettingsRepository

	mu    sync.RWMutex
	label string
}

// NewCurrency создаёт метку валюты со значением по умолчанию.
func NewCurrency(repo SettingsRepository, fallback string) *Currency {
	return &Currency{repo: repo, label: strings.ToUpper(strings.TrimSpace(fallback))}
}

// Load подтягивает сохранённую метку, если админ её менял.
func (c *Currency) Load(ctx context.Context) error {
	value, ok, err := c.repo.LoadSetting(ctx, currencySettingKey)
	if err != nil {
		return common.Storage("load currency", err)
	}
	if ok && value != "" {
		c.mu.Lock()
		c.label = value
		c.mu.Unlock()
	}
	return nil
}

// Label возвращает текущую метку.
func (c *Currency) Label() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.label
}

// Set нормализует (trim + верхний регистр) и сохраняет новую метку.
func (c *Currency) Set(ctx context.Context, raw string) (string, error) {
	label := strings.ToUpper(strings.TrimSpace(raw))
	if label == "" {
		return "", common.Validation("пустая валюта")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.repo.UpsertSetting(ctx, currencySettingKey, label); err != nil {
		return "", common.Storage("set currency", err)
	}
	previous := c.label
	c.label = label

	log.WithFields(log.Fields{
		"from": previous,
		"to":   label,
	}).Info("Валюта изменена")
	return label, nil
}
