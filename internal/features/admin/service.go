// Package admin: service.go хранит множество администраторов
// и отложенные команды (что админ вводит следующим сообщением).
package admin

import (
	"context"
	"errors"
	"sort"
	"sync"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/escrow-bot/internal/common"
)

// Service: права администраторов.
type Service struct {
	repo Repository

	mu     sync.RWMutex
	admins map[int64]struct{}

	// writeMu упорядочивает изменения членства: запись в БД + память
	writeMu sync.Mutex

	pendingMu sync.Mutex
	pending   map[int64]PendingCommand
}

// NewService создаёт сервис прав администраторов.
func NewService(repo Repository) *Service {
	return &Service{
		repo:    repo,
		admins:  make(map[int64]struct{}),
		pending: make(map[int64]PendingCommand),
	}
}

// Load загружает администраторов из хранилища и добавляет стартовых (seed).
// Хотя бы один администратор обязан существовать.
func (s *Service) Load(ctx context.Context, seed []int64) error {
	for _, id := range seed {
		if err := s.repo.UpsertAdmin(ctx, id); err != nil {
			return common.Storage("seed admin", err)
		}
	}

	ids, err := s.repo.LoadAdmins(ctx)
	if err != nil {
		return common.Storage("load admins", err)
	}
	if len(ids) == 0 {
		return errors.New("нет ни одного администратора: задайте ADMIN_IDS")
	}

	s.mu.Lock()
	for _, id := range ids {
		s.admins[id] = struct{}{}
	}
	s.mu.Unlock()

	log.WithField("admins", len(ids)).Info("Администраторы загружены")
	return nil
}

// IsAdmin проверяет членство.
func (s *Service) IsAdmin(userID int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.admins[userID]
	return ok
}

// List возвращает ID администраторов по возрастанию.
func (s *Service) List() []int64 {
	s.mu.RLock()
	out := make([]int64, 0, len(s.admins))
	for id := range s.admins {
		out = append(out, id)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Grant выдаёт права. Идемпотентна: повторная выдача только перезаписывает строку в БД.
func (s *Service) Grant(ctx context.Context, userID int64) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.repo.UpsertAdmin(ctx, userID); err != nil {
		return common.Storage("grant admin", err)
	}

	s.mu.Lock()
	s.admins[userID] = struct{}{}
	s.mu.Unlock()

	log.WithField("user_id", userID).Info("Выданы права администратора")
	return nil
}

// Revoke снимает права с userID от имени actingAdminID.
// Снять права с самого себя нельзя. Удаление последнего администратора
// другим администратором не запрещено.
func (s *Service) Revoke(ctx context.Context, userID, actingAdminID int64) error {
	if !s.IsAdmin(actingAdminID) {
		return common.ErrUnauthorized
	}
	if userID == actingAdminID {
		return common.ErrSelfRemovalForbidden
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.repo.DeleteAdmin(ctx, userID); err != nil {
		return common.Storage("revoke admin", err)
	}

	s.mu.Lock()
	delete(s.admins, userID)
	s.mu.Unlock()
	s.clearPending(userID)

	log.WithFields(log.Fields{
		"user_id":  userID,
		"acted_by": actingAdminID,
	}).Info("Права администратора сняты")
	return nil
}

// SetPending запоминает, какую команду админ введёт следующим сообщением.
func (s *Service) SetPending(adminID int64, cmd PendingCommand) error {
	if !s.IsAdmin(adminID) {
		return common.ErrUnauthorized
	}
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	if cmd == CommandNone {
		delete(s.pending, adminID)
		return nil
	}
	s.pending[adminID] = cmd
	return nil
}

// ConsumePending атомарно читает и сбрасывает отложенную команду.
func (s *Service) ConsumePending(adminID int64) PendingCommand {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	cmd := s.pending[adminID]
	delete(s.pending, adminID)
	return cmd
}

// Pending возвращает отложенную команду без сброса.
func (s *Service) Pending(adminID int64) PendingCommand {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	return s.pending[adminID]
}

func (s *Service) clearPending(userID int64) {
	s.pendingMu.Lock()
	delete(s.pending, userID)
	s.pendingMu.Unlock()
}
