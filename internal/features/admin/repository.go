// Package admin: repository.go описывает таблицы admins, admin_sessions и admin_login_attempts.
package admin

import (
	"context"
	"time"
)

// Repository хранит множество администраторов.
type Repository interface {
	LoadAdmins(ctx context.Context) ([]int64, error)
	UpsertAdmin(ctx context.Context, userID int64) error
	DeleteAdmin(ctx context.Context, userID int64) error
}

// SessionRepository хранит сессии и попытки входа.
type SessionRepository interface {
	CreateSession(ctx context.Context, session Session) error
	HasActiveSession(ctx context.Context, userID int64, now time.Time) (bool, error)
	LogLoginAttempt(ctx context.Context, userID int64, success bool, at time.Time) error
	CountFailedAttempts(ctx context.Context, userID int64, since time.Time) (int, error)
}
