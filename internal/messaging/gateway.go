// Package messaging описывает, как ядро бота общается с пользователями:
// отправка сообщений с кнопками и best-effort поиск отображаемого имени.
// Реализация поверх Telegram: TelegoGateway.
package messaging

import "context"

// UnknownName возвращается ResolveDisplayName, когда профиль недоступен.
const UnknownName = "unknown"

// Gateway: исходящий канал к пользователям.
type Gateway interface {
	// Notify доставляет сообщение userID. kb может быть nil.
	Notify(ctx context.Context, userID int64, text string, kb Keyboard) error
	// ResolveDisplayName никогда не падает: при любой ошибке возвращает UnknownName.
	ResolveDisplayName(ctx context.Context, userID int64) string
}

// Renderer: то, что messaging требует от каталога строк.
type Renderer interface {
	Render(lang, key string, params map[string]any) string
}

// DisplayName возвращает имя пользователя, подставляя локализованное "неизвестно".
func DisplayName(ctx context.Context, gw Gateway, r Renderer, lang string, userID int64) string {
	name := gw.ResolveDisplayName(ctx, userID)
	if name == UnknownName {
		return r.Render(lang, "common.unknown", nil)
	}
	return name
}
