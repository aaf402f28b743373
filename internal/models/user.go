package models

import (
	"time"

	"github.com/google/uuid"
)

// User — учётная запись в каталоге пользователей.
// DeletedAt != nil означает мягко удалённую (неактивную) запись:
// такие пользователи не участвуют в логине и не блокируют повторную регистрацию email.
type User struct {
	ID           uuid.UUID
	Email        string
	Name         string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	DeletedAt    *time.Time
}
