// Package conversation превращает последовательные текстовые сообщения пользователя
// в вызовы домена: смена кошелька и двухшаговое создание сделки (сумма → описание).
// Состояние живёт только в памяти и сбрасывается при перезапуске.
package conversation

import (
	"context"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/escrow-bot/internal/common"
	"serotonyl.ru/escrow-bot/internal/features/deals"
	"serotonyl.ru/escrow-bot/internal/features/ledger"
)

// Step: чего бот ждёт от пользователя следующим сообщением.
type Step int

const (
	StepIdle Step = iota
	StepAwaitingWallet
	StepAwaitingDealAmount
	StepAwaitingDealDescription
)

func (s Step) String() string {
	switch s {
	case StepIdle:
		return "idle"
	case StepAwaitingWallet:
		return "awaiting_wallet"
	case StepAwaitingDealAmount:
		return "awaiting_deal_amount"
	case StepAwaitingDealDescription:
		return "awaiting_deal_description"
	}
	return "unknown"
}

// WalletSetter сохраняет кошелёк.
type WalletSetter interface {
	SetWallet(ctx context.Context, userID int64, wallet string) (ledger.Account, error)
}

// DealCreator регистрирует сделку.
type DealCreator interface {
	Create(ctx context.Context, sellerID int64, amount decimal.Decimal, description string) (deals.Deal, error)
}

// OutcomeKind: что произошло с сообщением.
type OutcomeKind int

const (
	OutcomeIgnored      OutcomeKind = iota // Пользователь ни в каком шаге
	OutcomeWalletSet                       // Кошелёк сохранён
	OutcomeAmountStaged                    // Сумма принята, ждём описание
	OutcomeDealCreated                     // Сделка создана
)

// Outcome: результат HandleText.
type Outcome struct {
	Kind    OutcomeKind
	Account ledger.Account
	Amount  decimal.Decimal
	Deal    deals.Deal
}

type state struct {
	step   Step
	amount decimal.Decimal // сумма, пока ждём описание
}

// Machine хранит шаг каждого пользователя.
type Machine struct {
	wallets WalletSetter
	deals   DealCreator

	mu     sync.Mutex
	states map[int64]state

	// сообщения одного пользователя обрабатываются по очереди
	locks *common.KeyedMutex[int64]
}

// NewMachine создаёт машину состояний диалога.
func NewMachine(wallets WalletSetter, creator DealCreator) *Machine {
	return &Machine{
		wallets: wallets,
		deals:   creator,
		states:  make(map[int64]state),
		locks:   common.NewKeyedMutex[int64](),
	}
}

// BeginWalletEdit переводит пользователя в ожидание кошелька. Предыдущий шаг теряется.
func (m *Machine) BeginWalletEdit(userID int64) {
	m.transition(userID, state{step: StepAwaitingWallet})
}

// BeginDealCreation переводит пользователя в ожидание суммы сделки.
func (m *Machine) BeginDealCreation(userID int64) {
	m.transition(userID, state{step: StepAwaitingDealAmount})
}

// Cancel сбрасывает шаг. Возвращает false, если пользователь ничего не делал.
func (m *Machine) Cancel(userID int64) bool {
	unlock := m.locks.Lock(userID)
	defer unlock()

	was := m.get(userID).step
	m.set(userID, state{step: StepIdle})
	return was != StepIdle
}

// Step возвращает текущий шаг пользователя.
func (m *Machine) Step(userID int64) Step {
	return m.get(userID).step
}

// HandleText применяет сообщение к текущему шагу.
// При ошибке шаг не меняется: пользователь может прислать исправленный ввод.
func (m *Machine) HandleText(ctx context.Context, userID int64, text string) (Outcome, error) {
	unlock := m.locks.Lock(userID)
	defer unlock()

	current := m.get(userID)
	switch current.step {
	case StepIdle:
		return Outcome{Kind: OutcomeIgnored}, nil

	case StepAwaitingWallet:
		acc, err := m.wallets.SetWallet(ctx, userID, strings.TrimSpace(text))
		if err != nil {
			return Outcome{}, err
		}
		m.set(userID, state{step: StepIdle})
		return Outcome{Kind: OutcomeWalletSet, Account: acc}, nil

	case StepAwaitingDealAmount:
		amount, err := common.ParsePositiveAmount(text)
		if err != nil {
			return Outcome{}, err
		}
		m.set(userID, state{step: StepAwaitingDealDescription, amount: amount})
		return Outcome{Kind: OutcomeAmountStaged, Amount: amount}, nil

	case StepAwaitingDealDescription:
		deal, err := m.deals.Create(ctx, userID, current.amount, strings.TrimSpace(text))
		if err != nil {
			return Outcome{}, err
		}
		m.set(userID, state{step: StepIdle})
		return Outcome{Kind: OutcomeDealCreated, Deal: deal}, nil
	}

	log.WithFields(log.Fields{
		"user_id": userID,
		"step":    current.step.String(),
	}).Error("Неизвестный шаг диалога, сбрасываем")
	m.set(userID, state{step: StepIdle})
	return Outcome{Kind: OutcomeIgnored}, nil
}

func (m *Machine) transition(userID int64, next state) {
	unlock := m.locks.Lock(userID)
	defer unlock()
	m.set(userID, next)
}

func (m *Machine) get(userID int64) state {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.states[userID]
}

func (m *Machine) set(userID int64, s state) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.step == StepIdle {
		delete(m.states, userID)
		return
	}
	m.states[userID] = s
}
