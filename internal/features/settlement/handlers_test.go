package settlement

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/escrow-bot/internal/common"
	"serotonyl.ru/escrow-bot/internal/features/ledger"
	"serotonyl.ru/escrow-bot/internal/i18n"
	"serotonyl.ru/escrow-bot/internal/messaging"
	"serotonyl.ru/escrow-bot/internal/messaging/messagingtest"
)

func newPayHandler(t *testing.T, f *fixture) (*Handler, *messagingtest.Recorder) {
	t.Helper()
	text, err := i18n.Load("en")
	require.NoError(t, err)
	gw := messagingtest.NewRecorder()
	return NewHandler(f.engine, f.ledger, ledger.NewCurrency(f.store, "TON"), text, gw), gw
}

func TestPayNotifiesBothSides(t *testing.T) {
	f := newFixture(t)
	h, gw := newPayHandler(t, f)
	gw.SetName(buyerID, "@buyer")
	f.fund(t, buyerID, "15")
	deal := f.pledgedDeal(t, "10")

	require.NoError(t, h.Pay(context.Background(), buyerID, deal.ID))

	confirm, ok := gw.Last(buyerID)
	require.True(t, ok)
	assert.Contains(t, confirm.Text, "Logo design")
	assert.Contains(t, confirm.Text, "10 TON")
	assert.True(t, confirm.HasButton(messaging.ActionMenu))

	assert.True(t, gw.Contains(sellerID, "@buyer"))
	assert.True(t, gw.Contains(sellerID, "Your balance: 10 TON"))
	assert.True(t, f.balance(buyerID).Equal(decimal.NewFromInt(5)))
}

func TestPayInsufficientFundsSendsNothing(t *testing.T) {
	f := newFixture(t)
	h, gw := newPayHandler(t, f)
	f.fund(t, buyerID, "5")
	deal := f.pledgedDeal(t, "10")

	err := h.Pay(context.Background(), buyerID, deal.ID)
	assert.ErrorIs(t, err, common.ErrInsufficientFunds)
	assert.Empty(t, gw.Sent())

	_, err = f.deals.Get(deal.ID)
	assert.NoError(t, err)
}

func TestPaySellerUnreachable(t *testing.T) {
	f := newFixture(t)
	h, gw := newPayHandler(t, f)
	gw.FailFor(sellerID, errors.New("blocked"))
	f.fund(t, buyerID, "10")
	deal := f.pledgedDeal(t, "10")

	require.NoError(t, h.Pay(context.Background(), buyerID, deal.ID))
	assert.Len(t, gw.To(buyerID), 1)
	assert.True(t, f.balance(sellerID).Equal(decimal.NewFromInt(10)))
}
