// Package admin управляет администраторами: членство, отложенные команды,
// необязательный вход по паролю.
// models.go описывает отложенные команды и сессии.
package admin

import "time"

// PendingCommand определяет, как трактовать следующее текстовое сообщение админа.
// Набор закрыт: диспетчер обрабатывает каждое значение явно.
type PendingCommand int

const (
	CommandNone                  PendingCommand = iota // Нет ожидаемой команды
	CommandChangeBalance                               // "<user_id> <баланс>"
	CommandChangeSuccessfulDeals                       // "<user_id> <кол-во сделок>"
	CommandChangeCurrency                              // "<валюта>"
	CommandAddAdmin                                    // "<user_id>"
)

func (c PendingCommand) String() string {
	switch c {
	case CommandNone:
		return "none"
	case CommandChangeBalance:
		return "change_balance"
	case CommandChangeSuccessfulDeals:
		return "change_successful_deals"
	case CommandChangeCurrency:
		return "change_currency"
	case CommandAddAdmin:
		return "add_admin"
	}
	return "unknown"
}

// Session: активная сессия администратора (при включённом пароле).
type Session struct {
	ID              int64     `db:"id"`
	UserID          int64     `db:"user_id"`
	SessionToken    string    `db:"session_token"`
	AuthenticatedAt time.Time `db:"authenticated_at"`
	ExpiresAt       time.Time `db:"expires_at"`
}
