// Package admin: session.go реализует необязательный вход в админ-панель по паролю.
// Если ADMIN_PASSWORD_HASH не задан, вход не требуется.
package admin

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/argon2"

	"serotonyl.ru/escrow-bot/internal/common"
)

// Лимиты защиты от перебора: maxFailedAttempts неудач за attemptsWindow дают блокировку.
const (
	maxFailedAttempts = 3
	attemptsWindow    = time.Hour
)

// Gate проверяет пароль и хранит сессии администраторов.
type Gate struct {
	repo SessionRepository
	hash string
	ttl  time.Duration
	now  func() time.Time
}

// NewGate создаёт проверку пароля. Пустой hash отключает проверку.
func NewGate(repo SessionRepository, hash string, ttl time.Duration) *Gate {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Gate{repo: repo, hash: strings.TrimSpace(hash), ttl: ttl, now: time.Now}
}

// Enabled сообщает, требуется ли пароль.
func (g *Gate) Enabled() bool {
	return g.hash != ""
}

// HasSession проверяет, может ли админ пользоваться панелью прямо сейчас.
func (g *Gate) HasSession(ctx context.Context, userID int64) (bool, error) {
	if !g.Enabled() {
		return true, nil
	}
	ok, err := g.repo.HasActiveSession(ctx, userID, g.now())
	if err != nil {
		return false, common.Storage("check session", err)
	}
	return ok, nil
}

// Login проверяет пароль по хешу Argon2id и открывает сессию.
// 3 неудачные попытки за час = блокировка.
func (g *Gate) Login(ctx context.Context, userID int64, password string) error {
	if !g.Enabled() {
		return nil
	}
	now := g.now()

	attempts, err := g.repo.CountFailedAttempts(ctx, userID, now.Add(-attemptsWindow))
	if err != nil {
		return common.Storage("count attempts", err)
	}
	if attempts >= maxFailedAttempts {
		return common.ErrTooManyAttempts
	}

	match := VerifyPassword(password, g.hash)
	if err := g.repo.LogLoginAttempt(ctx, userID, match, now); err != nil {
		log.WithError(err).WithField("user_id", userID).Warn("Не удалось записать попытку входа")
	}
	if !match {
		return common.ErrWrongPassword
	}

	session := Session{
		UserID:          userID,
		SessionToken:    generateSecureToken(),
		AuthenticatedAt: now,
		ExpiresAt:       now.Add(g.ttl),
	}
	if err := g.repo.CreateSession(ctx, session); err != nil {
		return common.Storage("create session", err)
	}
	log.WithField("user_id", userID).Info("Админ вошёл в панель")
	return nil
}

// Параметры Argon2id для HashPassword.
const (
	argonMemory      uint32 = 64 * 1024 // 64 MB
	argonIterations  uint32 = 3
	argonParallelism uint8  = 2
	argonKeyLength   uint32 = 32
)

// HashPassword строит хеш в формате $argon2id$v=19$m=65536,t=3,p=2$<salt>$<hash>.
// salt == nil: генерируется случайная соль 16 байт.
func HashPassword(password string, salt []byte) (string, error) {
	if salt == nil {
		salt = make([]byte, 16)
		if _, err := rand.Read(salt); err != nil {
			return "", fmt.Errorf("ошибка генерации соли: %w", err)
		}
	}
	hash := argon2.IDKey([]byte(password), salt, argonIterations, argonMemory, argonParallelism, argonKeyLength)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, argonMemory, argonIterations, argonParallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

// VerifyPassword проверяет пароль по хешу Argon2id.
func VerifyPassword(password, encodedHash string) bool {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		log.Error("Некорректный формат хеша Argon2id")
		return false
	}

	var memory, iterations uint32
	var parallelism uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &parallelism); err != nil {
		log.WithError(err).Error("Ошибка парсинга параметров Argon2id")
		return false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		log.WithError(err).Error("Ошибка декодирования соли")
		return false
	}
	expected, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		log.WithError(err).Error("Ошибка декодирования хеша")
		return false
	}

	computed := argon2.IDKey([]byte(password), salt, iterations, memory, parallelism, uint32(len(expected)))
	// сравнение в постоянном времени
	return subtle.ConstantTimeCompare(computed, expected) == 1
}

func generateSecureToken() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("fallback-%d", time.Now().UnixNano())
	}
	return base64.URLEncoding.EncodeToString(b)
}
