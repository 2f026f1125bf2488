package bot

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/mymmrac/telego"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/escrow-bot/internal/common"
	"serotonyl.ru/escrow-bot/internal/config"
	"serotonyl.ru/escrow-bot/internal/db/memory"
	"serotonyl.ru/escrow-bot/internal/features/admin"
	"serotonyl.ru/escrow-bot/internal/features/conversation"
	"serotonyl.ru/escrow-bot/internal/features/deals"
	"serotonyl.ru/escrow-bot/internal/features/ledger"
	"serotonyl.ru/escrow-bot/internal/features/settlement"
	"serotonyl.ru/escrow-bot/internal/i18n"
	"serotonyl.ru/escrow-bot/internal/messaging"
	"serotonyl.ru/escrow-bot/internal/messaging/messagingtest"
)

const (
	adminID  int64 = 1
	sellerID int64 = 100
	buyerID  int64 = 200
)

type harness struct {
	bot      *Bot
	store    *memory.Store
	gw       *messagingtest.Recorder
	ledger   *ledger.Service
	deals    *deals.Service
	admins   *admin.Service
	currency *ledger.Currency
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()
	cfg := &config.Config{
		BotMaxInflight:    4,
		RateLimitRequests: 1000,
		RateLimitWindow:   time.Minute,
		SupportURL:        "https://t.me/support",
		DefaultLanguage:   "en",
		DefaultCurrency:   "TON",
	}

	store := memory.New()
	text, err := i18n.Load("en")
	require.NoError(t, err)
	gw := messagingtest.NewRecorder()
	links := messaging.NewLinks("https://t.me/escrow_bot")

	admins := admin.NewService(store)
	require.NoError(t, admins.Load(ctx, []int64{adminID}))
	ledgerService := ledger.NewService(store, admins, cfg.DefaultLanguage)
	currency := ledger.NewCurrency(store, cfg.DefaultCurrency)
	dealService := deals.NewService(store)
	engine := settlement.NewService(ledgerService, dealService, store)

	dealHandler := deals.NewHandler(dealService, ledgerService, admins, currency, text, gw)
	handlers := Handlers{
		Ledger: ledger.NewHandler(ledgerService, currency, text, gw, links),
		Conversation: conversation.NewHandler(
			conversation.NewMachine(ledgerService, dealService),
			ledgerService, currency, text, gw, links, dealHandler,
		),
		Deals:      dealHandler,
		Settlement: settlement.NewHandler(engine, ledgerService, currency, text, gw),
		Admin: admin.NewHandler(
			admins,
			admin.NewDispatcher(admins, ledgerService, currency),
			admin.NewGate(store, cfg.AdminPasswordHash, time.Hour),
			ledgerService, currency, text, gw,
		),
	}

	b := New(cfg, text, gw, ledgerService, admins, handlers)
	t.Cleanup(b.Close)
	return &harness{
		bot:      b,
		store:    store,
		gw:       gw,
		ledger:   ledgerService,
		deals:    dealService,
		admins:   admins,
		currency: currency,
	}
}

var callbackSeq int

func textUpdate(userID int64, text string) telego.Update {
	return telego.Update{Message: &telego.Message{
		Text: text,
		From: &telego.User{ID: userID, FirstName: "user"},
		Chat: telego.Chat{ID: userID, Type: telego.ChatTypePrivate},
	}}
}

func callbackUpdate(userID int64, data string) telego.Update {
	callbackSeq++
	return telego.Update{CallbackQuery: &telego.CallbackQuery{
		ID:   fmt.Sprintf("cb-%d", callbackSeq),
		From: telego.User{ID: userID, FirstName: "user"},
		Data: data,
		Message: &telego.Message{
			Chat: telego.Chat{ID: userID, Type: telego.ChatTypePrivate},
		},
	}}
}

func (h *harness) send(userID int64, text string) {
	h.bot.handleUpdate(context.Background(), textUpdate(userID, text))
}

func (h *harness) press(userID int64, data string) {
	h.bot.handleUpdate(context.Background(), callbackUpdate(userID, data))
}

// createDeal проводит продавца через диалог создания сделки.
func (h *harness) createDeal(t *testing.T, amount, description string) deals.Deal {
	t.Helper()
	before := len(h.deals.ListOpen())
	h.press(sellerID, messaging.ActionCreateDeal)
	h.send(sellerID, amount)
	h.send(sellerID, description)
	open := h.deals.ListOpen()
	require.Len(t, open, before+1)
	return open[len(open)-1]
}

func (h *harness) fund(t *testing.T, userID int64, amount string) {
	t.Helper()
	_, err := h.ledger.SetBalance(context.Background(), userID, decimal.RequireFromString(amount))
	require.NoError(t, err)
}

func (h *harness) balance(userID int64) decimal.Decimal {
	acc, _ := h.ledger.Get(userID)
	return acc.Balance
}

func TestStartShowsUserMenu(t *testing.T) {
	h := newHarness(t)

	h.send(buyerID, "/start")
	msg, ok := h.gw.Last(buyerID)
	require.True(t, ok)
	assert.Contains(t, msg.Text, "Welcome")
	assert.True(t, msg.HasButton(messaging.ActionWallet))
	assert.True(t, msg.HasButton(messaging.ActionCreateDeal))
	assert.False(t, msg.HasButton(messaging.ActionAdminViewDeals))

	_, exists := h.ledger.Get(buyerID)
	assert.True(t, exists)
}

func TestStartShowsAdminPanel(t *testing.T) {
	h := newHarness(t)

	h.send(adminID, "/start")
	msg, ok := h.gw.Last(adminID)
	require.True(t, ok)
	assert.True(t, msg.HasButton(messaging.ActionAdminViewDeals))
	assert.True(t, msg.HasButton(messaging.ActionUserMenu))

	h.press(adminID, messaging.ActionUserMenu)
	msg, _ = h.gw.Last(adminID)
	assert.True(t, msg.HasButton(messaging.ActionWallet))
}

func TestFullDealScenario(t *testing.T) {
	h := newHarness(t)

	deal := h.createDeal(t, "10", "Widget")
	assert.True(t, h.gw.Contains(sellerID, "https://t.me/escrow_bot?start="+deal.ID))
	assert.True(t, h.gw.Contains(adminID, "Widget"), "админ получает уведомление о новой сделке")

	h.fund(t, buyerID, "15")
	h.send(buyerID, "/start "+deal.ID)
	card, ok := h.gw.Last(buyerID)
	require.True(t, ok)
	assert.True(t, card.HasButton(messaging.PayAction(deal.ID)))

	pledged, err := h.deals.Get(deal.ID)
	require.NoError(t, err)
	assert.Equal(t, buyerID, pledged.BuyerID)

	h.press(buyerID, messaging.PayAction(deal.ID))
	assert.True(t, h.balance(buyerID).Equal(decimal.NewFromInt(5)))
	assert.True(t, h.balance(sellerID).Equal(decimal.NewFromInt(10)))
	seller, _ := h.ledger.Get(sellerID)
	assert.Equal(t, int64(1), seller.SuccessfulDeals)

	_, err = h.deals.Get(deal.ID)
	assert.ErrorIs(t, err, common.ErrDealNotFound)
	assert.True(t, h.gw.Contains(buyerID, "confirmed"))
	assert.True(t, h.gw.Contains(sellerID, "Credited: 10 TON"))
}

func TestPayTwiceShowsNotFound(t *testing.T) {
	h := newHarness(t)
	deal := h.createDeal(t, "10", "Widget")
	h.fund(t, buyerID, "30")
	h.send(buyerID, "/start "+deal.ID)

	h.press(buyerID, messaging.PayAction(deal.ID))
	h.press(buyerID, messaging.PayAction(deal.ID))

	assert.True(t, h.balance(buyerID).Equal(decimal.NewFromInt(20)))
	assert.True(t, h.gw.Contains(buyerID, "Deal not found or already paid."))
}

func TestInsufficientFundsScenario(t *testing.T) {
	h := newHarness(t)
	deal := h.createDeal(t, "10", "Widget")
	h.fund(t, buyerID, "5")
	h.send(buyerID, "/start "+deal.ID)

	h.press(buyerID, messaging.PayAction(deal.ID))

	assert.True(t, h.gw.Contains(buyerID, "Insufficient balance."))
	assert.True(t, h.balance(buyerID).Equal(decimal.NewFromInt(5)))
	still, err := h.deals.Get(deal.ID)
	require.NoError(t, err)
	assert.Equal(t, deals.StatusPledged, still.Status)
}

func TestAdminPaysWithoutBalance(t *testing.T) {
	h := newHarness(t)
	deal := h.createDeal(t, "10", "Widget")
	h.fund(t, adminID, "0")

	h.send(adminID, "/start "+deal.ID)
	h.press(adminID, messaging.PayAction(deal.ID))

	assert.True(t, h.balance(adminID).IsZero())
	assert.True(t, h.balance(sellerID).Equal(decimal.NewFromInt(10)))
}

func TestForeignBuyerRejected(t *testing.T) {
	h := newHarness(t)
	deal := h.createDeal(t, "10", "Widget")
	h.send(buyerID, "/start "+deal.ID)

	h.send(300, "/start "+deal.ID)
	assert.True(t, h.gw.Contains(300, "already has a buyer"))

	got, err := h.deals.Get(deal.ID)
	require.NoError(t, err)
	assert.Equal(t, buyerID, got.BuyerID)
}

func TestChangeCurrencyScenario(t *testing.T) {
	h := newHarness(t)

	h.press(adminID, messaging.ActionAdminChangeCurr)
	h.send(adminID, "usd")
	assert.Equal(t, "USD", h.currency.Label())
	assert.True(t, h.gw.Contains(adminID, "Currency changed to USD."))

	deal := h.createDeal(t, "3", "Widget")
	h.send(buyerID, "/start "+deal.ID)
	assert.True(t, h.gw.Contains(buyerID, "3 USD"))
	assert.True(t, h.gw.Contains(adminID, "3 USD"))
}

func TestNonAdminCannotUseAdminButtons(t *testing.T) {
	h := newHarness(t)

	h.press(buyerID, messaging.ActionAdminChangeBal)
	assert.True(t, h.gw.Contains(buyerID, "You are not an admin."))
	assert.Equal(t, admin.CommandNone, h.admins.Pending(buyerID))

	h.press(buyerID, messaging.RemoveAdminAction(adminID))
	assert.True(t, h.admins.IsAdmin(adminID))
}

func TestAdminSelfRemovalRejected(t *testing.T) {
	h := newHarness(t)

	h.press(adminID, messaging.RemoveAdminAction(adminID))
	assert.True(t, h.gw.Contains(adminID, "cannot remove yourself"))
	assert.True(t, h.admins.IsAdmin(adminID))
}

func TestAdminPendingTakesPriorityOverConversation(t *testing.T) {
	h := newHarness(t)

	h.press(adminID, messaging.ActionWallet)
	h.press(adminID, messaging.ActionAdminChangeBal)
	h.send(adminID, "42 7")

	acc, _ := h.ledger.Get(42)
	assert.True(t, acc.Balance.Equal(decimal.NewFromInt(7)))
	admin1, _ := h.ledger.Get(adminID)
	assert.Empty(t, admin1.Wallet)

	h.send(adminID, "UQ-admin")
	admin1, _ = h.ledger.Get(adminID)
	assert.Equal(t, "UQ-admin", admin1.Wallet)
}

func TestInvalidAmountKeepsStep(t *testing.T) {
	h := newHarness(t)

	h.press(sellerID, messaging.ActionCreateDeal)
	h.send(sellerID, "abc")
	assert.True(t, h.gw.Contains(sellerID, "Invalid format"))

	h.send(sellerID, "5")
	h.send(sellerID, "Widget")
	assert.Len(t, h.deals.ListOpen(), 1)
}

func TestCancelCommand(t *testing.T) {
	h := newHarness(t)

	h.press(sellerID, messaging.ActionCreateDeal)
	h.send(sellerID, "/cancel")
	assert.True(t, h.gw.Contains(sellerID, "Cancelled."))

	h.gw.Reset()
	h.send(sellerID, "10")
	assert.Empty(t, h.deals.ListOpen())
	msg, _ := h.gw.Last(sellerID)
	assert.True(t, msg.HasButton(messaging.ActionWallet), "свободный текст без диалога показывает меню")
}

func TestLanguageSwitch(t *testing.T) {
	h := newHarness(t)

	h.press(buyerID, messaging.LangAction("ru"))
	assert.Equal(t, "ru", h.ledger.Language(buyerID))
	msg, _ := h.gw.Last(buyerID)
	assert.Contains(t, msg.Text, "Добро пожаловать")
}

func TestReferralStart(t *testing.T) {
	h := newHarness(t)

	h.press(sellerID, messaging.ActionReferral)
	assert.True(t, h.gw.Contains(sellerID, "?start=ref_100"))

	h.send(buyerID, "/start ref_100")
	assert.True(t, h.gw.Contains(buyerID, "invitation"))
	msg, _ := h.gw.Last(buyerID)
	assert.True(t, msg.HasButton(messaging.ActionWallet))
}

func TestStorageFailureReported(t *testing.T) {
	h := newHarness(t)
	h.fund(t, sellerID, "0")
	h.store.FailOn(memory.OpUpsertAccount, errors.New("disk full"))

	h.press(sellerID, messaging.ActionWallet)
	h.send(sellerID, "UQ-new")
	assert.True(t, h.gw.Contains(sellerID, "Could not save changes"))
	acc, _ := h.ledger.Get(sellerID)
	assert.Empty(t, acc.Wallet)
}

func TestCallbacksAreAnswered(t *testing.T) {
	h := newHarness(t)

	h.press(buyerID, messaging.ActionMenu)
	h.press(buyerID, "unknown_action")
	assert.Len(t, h.gw.Answered(), 2)
}

func TestGroupChatIgnored(t *testing.T) {
	h := newHarness(t)

	upd := textUpdate(buyerID, "/start")
	upd.Message.Chat = telego.Chat{ID: -100, Type: telego.ChatTypeGroup}
	h.bot.handleUpdate(context.Background(), upd)
	assert.Empty(t, h.gw.Sent())
}

func TestRunDrainsUpdates(t *testing.T) {
	h := newHarness(t)

	updates := make(chan telego.Update, 3)
	updates <- textUpdate(buyerID, "/start")
	updates <- textUpdate(sellerID, "/start")
	updates <- telego.Update{}
	close(updates)

	h.bot.Run(context.Background(), updates)
	assert.Len(t, h.gw.Sent(), 2)
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		kind string
	}{
		{common.Validation("x"), "validation"},
		{common.ErrInsufficientFunds, "insufficient_funds"},
		{common.ErrDealNotFound, "deal_not_found"},
		{common.ErrDealAlreadyPledged, "deal_pledged"},
		{common.ErrUnauthorized, "unauthorized"},
		{common.ErrSelfRemovalForbidden, "self_removal"},
		{common.ErrWrongPassword, "wrong_password"},
		{common.ErrTooManyAttempts, "too_many_attempts"},
		{common.ErrLoginRequired, "login_required"},
		{common.Storage("op", errors.New("x")), "storage"},
		{errors.New("boom"), "generic"},
	}
	for _, tc := range cases {
		kind, key := classify(tc.err)
		assert.Equal(t, tc.kind, kind, tc.err.Error())
		assert.NotEmpty(t, key)
	}
}

func TestParseCommand(t *testing.T) {
	p := NewCommandParser()

	cmd, args, ok := p.ParseCommand("/start abc-123")
	require.True(t, ok)
	assert.Equal(t, "start", cmd)
	assert.Equal(t, []string{"abc-123"}, args)

	cmd, args, ok = p.ParseCommand("/LOGIN@escrow_bot Secret")
	require.True(t, ok)
	assert.Equal(t, "login", cmd)
	assert.Equal(t, []string{"Secret"}, args)

	_, _, ok = p.ParseCommand("hello")
	assert.False(t, ok)
	_, _, ok = p.ParseCommand("/")
	assert.False(t, ok)
}
