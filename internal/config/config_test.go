package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("ADMIN_IDS", "1, 2,3")
	t.Setenv("STORAGE_DRIVER", "memory")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, cfg.AdminIDs)
	assert.Equal(t, "ru", cfg.DefaultLanguage)
	assert.Equal(t, "TON", cfg.DefaultCurrency)
	assert.Equal(t, 64, cfg.BotMaxInflight)
	assert.Equal(t, time.Minute, cfg.RateLimitWindow)
	assert.Equal(t, 24*time.Hour, cfg.AdminSessionTTL)
	assert.Equal(t, "0 9 * * *", cfg.DigestCron)
	assert.Empty(t, cfg.AdminPasswordHash)
}

func TestLoadTrimsEntryURL(t *testing.T) {
	setRequired(t)
	t.Setenv("BOT_ENTRY_URL", "https://t.me/escrow_bot/")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://t.me/escrow_bot", cfg.BotEntryURL)
}

func TestLoadRejectsBadAdminIDs(t *testing.T) {
	setRequired(t)
	t.Setenv("ADMIN_IDS", "1,two")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadMissingToken(t *testing.T) {
	t.Setenv("ADMIN_IDS", "1")
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	require.NoError(t, os.Unsetenv("TELEGRAM_BOT_TOKEN"))

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			AdminIDs:                []int64{1},
			StorageDriver:           DriverPostgres,
			DBPassword:              "secret",
			DBMaxConns:              10,
			DBMinConns:              1,
			BotMaxInflight:          8,
			BotUpdateTimeoutSeconds: 30,
			RateLimitRequests:       5,
			RateLimitWindow:         time.Second,
			DefaultCurrency:         "TON",
			DefaultLanguage:         "ru",
		}
	}

	cfg := valid()
	require.NoError(t, cfg.Validate())

	cases := map[string]func(c *Config){
		"no admins":        func(c *Config) { c.AdminIDs = nil },
		"postgres no pass": func(c *Config) { c.DBPassword = "" },
		"conns":            func(c *Config) { c.DBMinConns = 20 },
		"driver":           func(c *Config) { c.StorageDriver = "mongo" },
		"inflight":         func(c *Config) { c.BotMaxInflight = 0 },
		"currency":         func(c *Config) { c.DefaultCurrency = " " },
		"sqlite path":      func(c *Config) { c.StorageDriver = DriverSQLite; c.SQLitePath = "" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := valid()
			mutate(&c)
			assert.Error(t, c.Validate())
		})
	}

	memory := valid()
	memory.StorageDriver = DriverMemory
	memory.DBPassword = ""
	assert.NoError(t, memory.Validate())
}

func TestDatabaseDSN(t *testing.T) {
	c := Config{DBUser: "u", DBPassword: "p", DBHost: "h", DBPort: 5432, DBName: "n", DBSSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@h:5432/n?sslmode=disable", c.DatabaseDSN())
}

func TestDatabaseDSNEscapesPassword(t *testing.T) {
	c := Config{DBUser: "u", DBPassword: "p@ss/w", DBHost: "h", DBPort: 5432, DBName: "n", DBSSLMode: "disable"}
	assert.Equal(t, "postgres://u:p%40ss%2Fw@h:5432/n?sslmode=disable", c.DatabaseDSN())
}

func TestParseAdminIDsSkipsDuplicates(t *testing.T) {
	ids, err := parseAdminIDs(" 5,,5, 7 ")
	require.NoError(t, err)
	assert.Equal(t, []int64{5, 7}, ids)
}
