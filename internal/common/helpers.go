// Package common содержит общие утилиты, используемые во всём проекте.
// Сюда входят: разбор и форматирование сумм, разбор ID, склонение числительных.
package common

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ParseAmount разбирает сумму из текста пользователя.
// Принимает и точку, и запятую как разделитель дробной части: "10", "2.5", "2,5".
func ParseAmount(text string) (decimal.Decimal, error) {
	s := strings.TrimSpace(text)
	s = strings.ReplaceAll(s, ",", ".")
	if s == "" {
		return decimal.Zero, Validation("пустая сумма")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, Validation("не число: %q", text)
	}
	return d, nil
}

// ParsePositiveAmount: то же, что ParseAmount, но сумма должна быть > 0.
func ParsePositiveAmount(text string) (decimal.Decimal, error) {
	d, err := ParseAmount(text)
	if err != nil {
		return decimal.Zero, err
	}
	if !d.IsPositive() {
		return decimal.Zero, Validation("сумма должна быть положительной")
	}
	return d, nil
}

// ParseUserID разбирает Telegram user ID.
func ParseUserID(text string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
	if err != nil {
		return 0, Validation("некорректный ID пользователя: %q", text)
	}
	return id, nil
}

// FormatAmount форматирует сумму с валютой.
// Пример: FormatAmount(decimal.NewFromFloat(2.5), "TON") → "2.5 TON"
func FormatAmount(amount decimal.Decimal, currency string) string {
	return amount.String() + " " + currency
}

// FormatDateTime форматирует время в формат "02.01.2006 15:04" в заданном часовом поясе.
// Используется в дайджесте сделок.
func FormatDateTime(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format("02.01.2006 15:04")
}

// LoadLocation загружает часовой пояс, при ошибке возвращает UTC+3 (Москва).
func LoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.FixedZone("MSK", 3*60*60)
	}
	return loc
}
