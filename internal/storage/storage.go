package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/pribylovaa/sessions-service/internal/models"
)

var (
	// ErrNotFound — запись не найдена (пользователь/токен).
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists — нарушение уникальности (email/jti).
	ErrAlreadyExists = errors.New("already exists")
)

// UserStorage выполняет операции над каталогом пользователей.
// Все выборки возвращают только активные (не удалённые) записи.
type UserStorage interface {
	// SaveUser создаёт нового пользователя.
	SaveUser(ctx context.Context, user *models.User) error
	// UserByEmail находит активного пользователя по нормализованному email.
	UserByEmail(ctx context.Context, email string) (*models.User, error)
	// UserByID находит активного пользователя по ID.
	UserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// RefreshTokenStorage — леджер refresh-токенов. Записи никогда не удаляются:
// отзыв выставляет revoked_at, история сохраняется для аудита и детекта replay.
type RefreshTokenStorage interface {
	// SaveRefreshToken вставляет новую живую запись.
	// Повтор jti — ErrAlreadyExists (фатальное нарушение инварианта, не ретраится).
	SaveRefreshToken(ctx context.Context, token *models.RefreshToken) error
	// RefreshTokenByID находит запись по jti.
	RefreshTokenByID(ctx context.Context, jti uuid.UUID) (*models.RefreshToken, error)
	// RevokeRefreshToken атомарно отзывает запись (compare-and-set по revoked_at).
	// Возвращает:
	//   (true, nil)  — запись была живой и отозвана этим вызовом;
	//   (false, nil) — запись уже была отозвана ранее (идемпотентный no-op);
	//   (false, ErrNotFound) — записи нет.
	RevokeRefreshToken(ctx context.Context, jti uuid.UUID) (bool, error)
	// RevokeAllForUser отзывает все живые токены пользователя
	// (logout-everywhere / реакция на replay). Возвращает число отозванных.
	RevokeAllForUser(ctx context.Context, userID uuid.UUID) (int64, error)
}

// Storage задаёт контракт работы с БД.
type Storage interface {
	UserStorage
	RefreshTokenStorage
	Close()
}
