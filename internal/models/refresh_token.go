package models

import (
	"time"

	"github.com/google/uuid"
)

// RefreshToken — запись леджера refresh-токенов: источник истины о том,
// можно ли ещё погасить токен. Хранится хэш полной подписанной строки,
// сам токен в БД не попадает. Записи не удаляются — только помечаются
// отозванными (RevokedAt), чтобы replay был виден в аудите.
type RefreshToken struct {
	// JTI — уникальный идентификатор токена (claim "jti" внутри JWT).
	JTI uuid.UUID
	// TokenHash — bcrypt поверх sha256-дайджеста подписанной строки.
	TokenHash string
	UserID    uuid.UUID
	CreatedAt time.Time
	// ExpiresAt дублирует exp из claims токена (единый источник — сам токен).
	ExpiresAt time.Time
	// RevokedAt — момент отзыва; nil для живого токена. Обратного перехода нет.
	RevokedAt *time.Time
	// IP и UserAgent — контекст выпуска, только для аудита.
	IP        string
	UserAgent string
}

// Revoked сообщает, был ли токен отозван.
func (t *RefreshToken) Revoked() bool {
	return t.RevokedAt != nil
}
