package admin

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/escrow-bot/internal/common"
	"serotonyl.ru/escrow-bot/internal/features/ledger"
)

// AccountEditor: админские правки счетов.
type AccountEditor interface {
	SetBalance(ctx context.Context, userID int64, balance decimal.Decimal) (ledger.Account, error)
	SetSuccessfulDeals(ctx context.Context, userID int64, n int64) (ledger.Account, error)
}

// CurrencySetter меняет глобальную валюту.
type CurrencySetter interface {
	Set(ctx context.Context, raw string) (string, error)
}

// Result: итог выполнения отложенной команды (для ответа админу).
type Result struct {
	Command         PendingCommand
	TargetID        int64
	Balance         decimal.Decimal
	SuccessfulDeals int64
	Currency        string
}

// Dispatcher разбирает ответ админа согласно отложенной команде.
type Dispatcher struct {
	authority *Service
	accounts  AccountEditor
	currency  CurrencySetter
}

// NewDispatcher создаёт диспетчер отложенных команд.
func NewDispatcher(authority *Service, accounts AccountEditor, currency CurrencySetter) *Dispatcher {
	return &Dispatcher{authority: authority, accounts: accounts, currency: currency}
}

// Dispatch забирает отложенную команду админа и применяет к ней text.
// handled=false: команды не было, сообщение должно идти дальше.
// Команда сбрасывается после любого исхода: кривой ввод отменяет действие,
// админ начинает его заново с кнопки.
func (d *Dispatcher) Dispatch(ctx context.Context, adminID int64, text string) (res Result, handled bool, err error) {
	cmd := d.authority.ConsumePending(adminID)
	if cmd == CommandNone {
		return Result{}, false, nil
	}
	if !d.authority.IsAdmin(adminID) {
		return Result{}, true, common.ErrUnauthorized
	}

	res, err = d.apply(ctx, cmd, text)
	res.Command = cmd

	entry := log.WithFields(log.Fields{
		"admin_id": adminID,
		"command":  cmd.String(),
	})
	if err != nil {
		entry.WithError(err).Warn("Админская команда не выполнена")
	} else {
		entry.WithField("target_id", res.TargetID).Info("Админская команда выполнена")
	}
	return res, true, err
}

func (d *Dispatcher) apply(ctx context.Context, cmd PendingCommand, text string) (Result, error) {
	switch cmd {
	case CommandChangeBalance:
		id, value, err := splitPair(text)
		if err != nil {
			return Result{}, err
		}
		userID, err := common.ParseUserID(id)
		if err != nil {
			return Result{}, err
		}
		balance, err := common.ParseAmount(value)
		if err != nil {
			return Result{}, err
		}
		acc, err := d.accounts.SetBalance(ctx, userID, balance)
		if err != nil {
			return Result{}, err
		}
		return Result{TargetID: userID, Balance: acc.Balance}, nil

	case CommandChangeSuccessfulDeals:
		id, value, err := splitPair(text)
		if err != nil {
			return Result{}, err
		}
		userID, err := common.ParseUserID(id)
		if err != nil {
			return Result{}, err
		}
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return Result{}, common.Validation("количество сделок должно быть целым числом: %q", value)
		}
		acc, err := d.accounts.SetSuccessfulDeals(ctx, userID, n)
		if err != nil {
			return Result{}, err
		}
		return Result{TargetID: userID, SuccessfulDeals: acc.SuccessfulDeals}, nil

	case CommandChangeCurrency:
		label, err := d.currency.Set(ctx, text)
		if err != nil {
			return Result{}, err
		}
		return Result{Currency: label}, nil

	case CommandAddAdmin:
		userID, err := common.ParseUserID(text)
		if err != nil {
			return Result{}, err
		}
		if err := d.authority.Grant(ctx, userID); err != nil {
			return Result{}, err
		}
		return Result{TargetID: userID}, nil

	case CommandNone:
		return Result{}, nil
	}
	return Result{}, fmt.Errorf("неизвестная отложенная команда %d", int(cmd))
}

// splitPair делит "a b" на два токена.
func splitPair(text string) (string, string, error) {
	parts := strings.Fields(text)
	if len(parts) != 2 {
		return "", "", common.Validation("ожидалось два значения через пробел")
	}
	return parts[0], parts[1], nil
}
