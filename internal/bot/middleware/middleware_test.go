package middleware

import (
	"strings"
	"testing"
	"time"

	"github.com/mymmrac/telego"
	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiterBurst(t *testing.T) {
	rl := NewRateLimiter(3, time.Hour)
	defer rl.Close()

	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow(1), "запрос %d", i)
	}
	assert.False(t, rl.Allow(1))
	assert.True(t, rl.Allow(2), "лимит у каждого пользователя свой")
}

func TestRateLimiterRefills(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	defer rl.Close()

	now := time.Now()
	rl.now = func() time.Time { return now }
	assert.True(t, rl.Allow(1))
	assert.True(t, rl.Allow(1))
	assert.False(t, rl.Allow(1))

	now = now.Add(30 * time.Second)
	assert.True(t, rl.Allow(1))
	assert.False(t, rl.Allow(1))
}

func TestRateLimiterDisabled(t *testing.T) {
	rl := NewRateLimiter(0, time.Minute)
	defer rl.Close()

	for i := 0; i < 100; i++ {
		assert.True(t, rl.Allow(1))
	}
}

func TestRateLimiterSweep(t *testing.T) {
	rl := NewRateLimiter(5, time.Minute)
	defer rl.Close()

	base := time.Now()
	rl.now = func() time.Time { return base }
	rl.Allow(1)
	rl.now = func() time.Time { return base.Add(time.Hour) }
	rl.Allow(2)

	rl.sweep(base.Add(30 * time.Minute))
	assert.Equal(t, 1, rl.size())
}

func TestRateLimiterCloseTwice(t *testing.T) {
	rl := NewRateLimiter(1, time.Second)
	rl.Close()
	assert.NotPanics(t, rl.Close)
}

func TestRecover(t *testing.T) {
	assert.NotPanics(t, func() {
		defer Recover(42)
		panic("boom")
	})
	assert.NotPanics(t, func() {
		defer Recover(43)
	})
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short"))

	long := strings.Repeat("я", 60)
	got := truncate(long)
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.Equal(t, 53, len([]rune(got)))
}

func TestLogHelpersTolerateNil(t *testing.T) {
	assert.NotPanics(t, func() {
		LogMessage(nil)
		LogMessage(&telego.Message{Text: "no sender"})
		LogCallback(nil)
	})
}

func captureDebug(t *testing.T) *test.Hook {
	t.Helper()
	hook := test.NewGlobal()
	level := log.GetLevel()
	log.SetLevel(log.DebugLevel)
	t.Cleanup(func() {
		log.SetLevel(level)
		hook.Reset()
	})
	return hook
}

func TestLogMessageHidesLoginPassword(t *testing.T) {
	cases := []string{
		"/login hunter2",
		"/login@escrow_bot hunter2",
		"/LOGIN   hunter2  ",
		"/login\nhunter2",
	}
	for _, text := range cases {
		hook := captureDebug(t)
		LogMessage(&telego.Message{
			From: &telego.User{ID: 1, Username: "admin"},
			Chat: telego.Chat{ID: 1},
			Text: text,
		})

		entry := hook.LastEntry()
		require.NotNil(t, entry, text)
		logged, ok := entry.Data["text"].(string)
		require.True(t, ok)
		assert.NotContains(t, logged, "hunter2", text)
		assert.True(t, strings.HasSuffix(logged, " ***"), logged)

		line, err := entry.String()
		require.NoError(t, err)
		assert.NotContains(t, line, "hunter2")
	}
}

func TestRedactKeepsOrdinaryText(t *testing.T) {
	assert.Equal(t, "/start abc", redact("/start abc"))
	assert.Equal(t, "/login", redact("/login"))
	assert.Equal(t, "login hunter2", redact("login hunter2"))
	assert.Equal(t, "/login ***", redact("/login hunter2"))
}

func TestLogFieldsDoNotClashWithReservedKeys(t *testing.T) {
	hook := captureDebug(t)
	LogMessage(&telego.Message{From: &telego.User{ID: 1}, Chat: telego.Chat{ID: 1}, Text: "hi"})
	LogCallback(&telego.CallbackQuery{From: telego.User{ID: 1}, Data: "menu"})

	entries := hook.AllEntries()
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.NotContains(t, e.Data, "time")
		assert.Contains(t, e.Data, "received_at")
		line, err := e.String()
		require.NoError(t, err)
		assert.NotContains(t, line, "fields.time")
	}
}
