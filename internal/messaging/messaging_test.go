package messaging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinks(t *testing.T) {
	l := NewLinks("https://t.me/escrow_bot/")

	assert.Equal(t, "https://t.me/escrow_bot?start=abc-123", l.Deal("abc-123"))
	assert.Equal(t, "https://t.me/escrow_bot?start=ref_42", l.Referral(42))
}

func TestParseStartPayload(t *testing.T) {
	assert.Equal(t, StartPayload{Kind: StartNone}, ParseStartPayload(""))
	assert.Equal(t, StartPayload{Kind: StartNone}, ParseStartPayload("  "))
	assert.Equal(t, StartPayload{Kind: StartReferral, ReferrerID: 42}, ParseStartPayload("ref_42"))
	assert.Equal(t, StartPayload{Kind: StartNone}, ParseStartPayload("ref_abc"))
	assert.Equal(t, StartPayload{Kind: StartDeal, DealID: "5a1c"}, ParseStartPayload("5a1c"))
}

func TestActionsRoundTrip(t *testing.T) {
	id, ok := ParsePayAction(PayAction("3f2b-11"))
	require.True(t, ok)
	assert.Equal(t, "3f2b-11", id)

	_, ok = ParsePayAction("pay_")
	assert.False(t, ok)

	lang, ok := ParseLangAction(LangAction("en"))
	require.True(t, ok)
	assert.Equal(t, "en", lang)

	admin, ok := ParseRemoveAdminAction(RemoveAdminAction(77))
	require.True(t, ok)
	assert.Equal(t, int64(77), admin)

	_, ok = ParseRemoveAdminAction("remove_admin_x")
	assert.False(t, ok)
	_, ok = ParseRemoveAdminAction(ActionMenu)
	assert.False(t, ok)
}

func TestColumn(t *testing.T) {
	kb := Column(Callback("a", "1"), Link("b", "https://x"))
	require.Len(t, kb, 2)
	assert.Equal(t, "1", kb[0][0].Data)
	assert.Equal(t, "https://x", kb[1][0].URL)
}

func TestInlineMarkup(t *testing.T) {
	assert.Nil(t, inlineMarkup(nil))

	markup := inlineMarkup(Keyboard{{Callback("Pay", "pay_1"), Link("Help", "https://t.me/help")}})
	require.NotNil(t, markup)
	require.Len(t, markup.InlineKeyboard, 1)
	require.Len(t, markup.InlineKeyboard[0], 2)
	assert.Equal(t, "pay_1", markup.InlineKeyboard[0][0].CallbackData)
	assert.Equal(t, "https://t.me/help", markup.InlineKeyboard[0][1].URL)
}

type fakeGateway struct{ name string }

func (f fakeGateway) Notify(context.Context, int64, string, Keyboard) error { return nil }
func (f fakeGateway) ResolveDisplayName(context.Context, int64) string    { return f.name }

type fakeRenderer struct{}

func (fakeRenderer) Render(lang, key string, _ map[string]any) string { return lang + ":" + key }

func TestDisplayName(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, "@seller", DisplayName(ctx, fakeGateway{name: "@seller"}, fakeRenderer{}, "en", 1))
	assert.Equal(t, "en:common.unknown", DisplayName(ctx, fakeGateway{name: UnknownName}, fakeRenderer{}, "en", 1))
}
