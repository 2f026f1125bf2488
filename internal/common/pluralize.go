// Package common: pluralize.go содержит функции
// для правильного склонения русских числительных.
package common

// pluralRu выбирает форму слова для числа n.
//
// Правила русского языка:
//   - n%10==1 И n%100!=11 → one (1, 21, 31, 101, ...)
//   - n%10 в [2,3,4] И n%100 НЕ в [12,13,14] → few (2, 3, 4, 22, 23, ...)
//   - Остальные случаи → many (0, 5-20, 25-30, 100, ...)
func pluralRu(n int64, one, few, many string) string {
	if n < 0 {
		n = -n
	}
	lastDigit := n % 10
	lastTwoDigits := n % 100

	if lastDigit == 1 && lastTwoDigits != 11 {
		return one
	}
	if lastDigit >= 2 && lastDigit <= 4 && (lastTwoDigits < 12 || lastTwoDigits > 14) {
		return few
	}
	return many
}

// PluralizeDeals возвращает правильную форму слова «сделка» для числа n.
//
// Примеры:
//
//	PluralizeDeals(1)  → "сделка"
//	PluralizeDeals(3)  → "сделки"
//	PluralizeDeals(5)  → "сделок"
//	PluralizeDeals(11) → "сделок"
//	PluralizeDeals(21) → "сделка"
func PluralizeDeals(n int64) string {
	return pluralRu(n, "сделка", "сделки", "сделок")
}

// PluralizeDealsEn возвращает английский вариант: "deal" или "deals".
func PluralizeDealsEn(n int64) string {
	if n == 1 || n == -1 {
		return "deal"
	}
	return "deals"
}
