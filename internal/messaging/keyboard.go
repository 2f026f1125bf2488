package messaging

import (
	"strconv"
	"strings"
)

// Button описывает одну inline-кнопку с callback (Data) или ссылкой (URL).
type Button struct {
	Text string
	Data string
	URL  string
}

// Keyboard: ряды inline-кнопок.
type Keyboard [][]Button

// Callback создаёт кнопку с callback-данными.
func Callback(text, data string) Button {
	return Button{Text: text, Data: data}
}

// Link создаёт кнопку-ссылку.
func Link(text, url string) Button {
	return Button{Text: text, URL: url}
}

// Column раскладывает кнопки по одной в ряд.
func Column(buttons ...Button) Keyboard {
	kb := make(Keyboard, 0, len(buttons))
	for _, b := range buttons {
		kb = append(kb, []Button{b})
	}
	return kb
}

// BackToMenu: клавиатура из одной кнопки «в меню».
func BackToMenu(r Renderer, lang string) Keyboard {
	return Column(Callback(r.Render(lang, "button.menu", nil), ActionMenu))
}

// Callback-данные кнопок.
const (
	ActionMenu       = "menu"
	ActionUserMenu   = "user_menu"
	ActionWallet     = "wallet"
	ActionCreateDeal = "create_deal"
	ActionReferral   = "referral"
	ActionChangeLang = "change_lang"
	ActionCancel     = "cancel"

	ActionAdminViewDeals    = "admin_view_deals"
	ActionAdminChangeBal    = "admin_change_balance"
	ActionAdminChangeDeals  = "admin_change_successful_deals"
	ActionAdminChangeCurr   = "admin_change_currency"
	ActionAdminManageAdmins = "admin_manage_admins"
	ActionAdminAddAdmin     = "admin_add_admin"
	ActionAdminRemoveAdmin  = "admin_remove_admin"

	prefixLang        = "lang_"
	prefixPay         = "pay_"
	prefixRemoveAdmin = "remove_admin_"
)

// LangAction: данные кнопки выбора языка.
func LangAction(lang string) string { return prefixLang + lang }

// PayAction: данные кнопки «оплатить с баланса».
func PayAction(dealID string) string { return prefixPay + dealID }

// RemoveAdminAction: данные кнопки снятия прав.
func RemoveAdminAction(userID int64) string {
	return prefixRemoveAdmin + strconv.FormatInt(userID, 10)
}

// ParseLangAction извлекает язык из "lang_xx".
func ParseLangAction(data string) (string, bool) {
	lang, ok := strings.CutPrefix(data, prefixLang)
	return lang, ok && lang != ""
}

// ParsePayAction извлекает ID сделки из "pay_<id>".
func ParsePayAction(data string) (string, bool) {
	id, ok := strings.CutPrefix(data, prefixPay)
	return id, ok && id != ""
}

// ParseRemoveAdminAction извлекает ID из "remove_admin_<id>".
func ParseRemoveAdminAction(data string) (int64, bool) {
	raw, ok := strings.CutPrefix(data, prefixRemoveAdmin)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
