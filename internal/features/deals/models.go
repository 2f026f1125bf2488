// Package deals ведёт реестр открытых сделок.
// models.go описывает сделку и её статусы.
package deals

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status: стадия жизненного цикла сделки.
type Status string

const (
	// StatusOpen: сделка создана, покупателя нет
	StatusOpen Status = "open"
	// StatusPledged: покупатель открыл ссылку, ждём оплату
	StatusPledged Status = "pledged"
	// StatusSettled: оплачена; из реестра удалена
	StatusSettled Status = "settled"
	// StatusCancelled: зарезервировано, отмена сделок не реализована
	StatusCancelled Status = "cancelled"
)

// Deal: одна эскроу-сделка между продавцом и покупателем.
// Сумма, описание и продавец неизменны после создания.
type Deal struct {
	ID          string          `db:"deal_id"`
	Amount      decimal.Decimal `db:"amount"`      // Всегда > 0
	Description string          `db:"description"` // Не пустое
	SellerID    int64           `db:"seller_id"`
	BuyerID     int64           `db:"buyer_id"` // 0: покупатель не привязан
	Status      Status          `db:"status"`
	CreatedAt   time.Time       `db:"created_at"`
}

// HasBuyer сообщает, привязан ли покупатель.
func (d Deal) HasBuyer() bool {
	return d.BuyerID != 0
}
