// Package common: errors.go определяет доменные ошибки,
// которые используются во всех модулях бота.
// Обработчики различают их через errors.Is и отправляют пользователю
// одно понятное сообщение на каждый вид ошибки.
package common

import (
	"errors"
	"fmt"
)

// Ошибки сделок и расчётов
var (
	// ErrValidation: некорректный ввод (сумма, ID, пустое описание)
	ErrValidation = errors.New("некорректные данные")
	// ErrInsufficientFunds: на балансе покупателя не хватает средств
	ErrInsufficientFunds = errors.New("недостаточно средств на балансе")
	// ErrDealNotFound: сделка не найдена или уже оплачена
	ErrDealNotFound = errors.New("сделка не найдена")
	// ErrDealAlreadyPledged: у сделки уже есть покупатель
	ErrDealAlreadyPledged = errors.New("у сделки уже есть покупатель")
)

// Ошибки админки
var (
	// ErrUnauthorized: пользователь не является администратором
	ErrUnauthorized = errors.New("у вас нет прав администратора")
	// ErrSelfRemovalForbidden: администратор пытается снять права с самого себя
	ErrSelfRemovalForbidden = errors.New("нельзя удалить самого себя из администраторов")
	// ErrWrongPassword: неверный пароль админ-панели
	ErrWrongPassword = errors.New("неверный пароль")
	// ErrTooManyAttempts: слишком много неудачных попыток входа
	ErrTooManyAttempts = errors.New("слишком много попыток, подождите 1 час")
	// ErrLoginRequired: включён пароль, а активной сессии нет
	ErrLoginRequired = errors.New("требуется вход в админ-панель")
)

// ErrStorage: сбой записи или чтения хранилища.
var ErrStorage = errors.New("ошибка хранилища")

// StorageError описывает сбой конкретной операции хранилища.
// errors.Is(err, ErrStorage) истинно для любой StorageError.
type StorageError struct {
	Op  string // Имя операции: "upsert account", "commit settlement", ...
	Err error  // Исходная ошибка драйвера
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("хранилище: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Is позволяет сравнивать StorageError с ErrStorage.
func (e *StorageError) Is(target error) bool { return target == ErrStorage }

// Storage оборачивает ошибку драйвера в StorageError. nil остаётся nil.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}

// Validation возвращает ErrValidation с пояснением.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
