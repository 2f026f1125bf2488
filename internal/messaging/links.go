package messaging

import (
	"strconv"
	"strings"
)

const referralPrefix = "ref_"

// Links строит deep-link ссылки вида <entry>?start=<payload>.
type Links struct {
	Entry string // https://t.me/<bot>
}

// NewLinks создаёт построитель ссылок.
func NewLinks(entry string) Links {
	return Links{Entry: strings.TrimRight(entry, "/")}
}

// Deal: ссылка для покупателя.
func (l Links) Deal(dealID string) string {
	return l.Entry + "?start=" + dealID
}

// Referral: реферальная ссылка пользователя.
func (l Links) Referral(userID int64) string {
	return l.Entry + "?start=" + referralPrefix + strconv.FormatInt(userID, 10)
}

// StartKind: тип параметра /start.
type StartKind int

const (
	StartNone     StartKind = iota // Пусто: главное меню
	StartDeal                      // ID сделки
	StartReferral                  // ref_<userID>
)

// StartPayload: разобранный параметр /start.
type StartPayload struct {
	Kind       StartKind
	DealID     string
	ReferrerID int64
}

// ParseStartPayload разбирает параметр /start.
// "ref_" с некорректным ID считается пустым параметром.
func ParseStartPayload(payload string) StartPayload {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return StartPayload{Kind: StartNone}
	}
	if raw, ok := strings.CutPrefix(payload, referralPrefix); ok {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return StartPayload{Kind: StartNone}
		}
		return StartPayload{Kind: StartReferral, ReferrerID: id}
	}
	return StartPayload{Kind: StartDeal, DealID: payload}
}
