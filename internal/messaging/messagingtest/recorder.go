// Package messagingtest содержит записывающий Gateway для тестов.
package messagingtest

import (
	"context"
	"strings"
	"sync"

	"serotonyl.ru/escrow-bot/internal/messaging"
)

// Sent: одно отправленное сообщение.
type Sent struct {
	UserID   int64
	Text     string
	Keyboard messaging.Keyboard
}

// HasButton сообщает, есть ли в клавиатуре кнопка с данными data.
func (s Sent) HasButton(data string) bool {
	for _, row := range s.Keyboard {
		for _, b := range row {
			if b.Data == data {
				return true
			}
		}
	}
	return false
}

// Recorder запоминает все исходящие сообщения.
type Recorder struct {
	mu       sync.Mutex
	sent     []Sent
	answered []string
	names    map[int64]string
	failFor  map[int64]error
}

// NewRecorder создаёт пустой Recorder.
func NewRecorder() *Recorder {
	return &Recorder{names: make(map[int64]string), failFor: make(map[int64]error)}
}

// SetName задаёт отображаемое имя пользователя.
func (r *Recorder) SetName(userID int64, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names[userID] = name
}

// FailFor заставляет Notify для userID возвращать err.
func (r *Recorder) FailFor(userID int64, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failFor[userID] = err
}

// Notify записывает сообщение.
func (r *Recorder) Notify(ctx context.Context, userID int64, text string, kb messaging.Keyboard) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.failFor[userID]; err != nil {
		return err
	}
	r.sent = append(r.sent, Sent{UserID: userID, Text: text, Keyboard: kb})
	return nil
}

// ResolveDisplayName возвращает имя из SetName или UnknownName.
func (r *Recorder) ResolveDisplayName(ctx context.Context, userID int64) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if name, ok := r.names[userID]; ok {
		return name
	}
	return messaging.UnknownName
}

// AnswerCallback запоминает ответ на callback.
func (r *Recorder) AnswerCallback(ctx context.Context, callbackID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.answered = append(r.answered, callbackID)
	return nil
}

// Sent возвращает копию всех сообщений.
func (r *Recorder) Sent() []Sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Sent, len(r.sent))
	copy(out, r.sent)
	return out
}

// To возвращает сообщения, отправленные userID.
func (r *Recorder) To(userID int64) []Sent {
	var out []Sent
	for _, s := range r.Sent() {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	return out
}

// Last возвращает последнее сообщение userID.
func (r *Recorder) Last(userID int64) (Sent, bool) {
	msgs := r.To(userID)
	if len(msgs) == 0 {
		return Sent{}, false
	}
	return msgs[len(msgs)-1], true
}

// Contains ищет сообщение userID, содержащее substr.
func (r *Recorder) Contains(userID int64, substr string) bool {
	for _, s := range r.To(userID) {
		if strings.Contains(s.Text, substr) {
			return true
		}
	}
	return false
}

// Answered возвращает ID отвеченных callback-запросов.
func (r *Recorder) Answered() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.answered))
	copy(out, r.answered)
	return out
}

// Reset очищает записанные сообщения.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = nil
	r.answered = nil
}
