// Package ledger ведёт счета пользователей: кошелёк, баланс, репутацию, язык.
// models.go описывает запись счёта и доступную для оплаты сумму.
package ledger

import "github.com/shopspring/decimal"

// Account: счёт пользователя. Создаётся лениво при первом обращении и никогда не удаляется.
type Account struct {
	UserID          int64           `db:"user_id"`          // Telegram user ID
	Wallet          string          `db:"wallet"`           // Адрес для выплат (пусто = не указан)
	Balance         decimal.Decimal `db:"balance"`          // Баланс в текущей валюте
	SuccessfulDeals int64           `db:"successful_deals"` // Количество успешных продаж
	Language        string          `db:"language"`         // Язык интерфейса ("ru", "en")
}

// HasWallet сообщает, указан ли кошелёк.
func (a Account) HasWallet() bool {
	return a.Wallet != ""
}

// Spendable: доступная для оплаты сумма.
// Unlimited выставляется администраторам: проверка покрытия проходит
// без сравнения чисел, их сохранённый баланс не участвует.
type Spendable struct {
	Unlimited bool
	Amount    decimal.Decimal
}

// Covers сообщает, хватает ли средств на сумму amount.
func (s Spendable) Covers(amount decimal.Decimal) bool {
	return s.Unlimited || s.Amount.GreaterThanOrEqual(amount)
}
