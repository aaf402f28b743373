package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pribylovaa/sessions-service/internal/models"
	"github.com/pribylovaa/sessions-service/internal/storage"
)

// SaveRefreshToken вставляет новую запись леджера.
// Конфликт по jti отдаётся как ErrAlreadyExists: при 122 битах энтропии jti
// повтор означает нарушение инварианта, решение об этом принимает сервис.
func (s *Storage) SaveRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	const op = "storage.postgres.SaveRefreshToken"

	query := `
        INSERT INTO refresh_tokens(jti, token_hash, user_id, created_at, expires_at, revoked_at, ip, user_agent)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
    `

	_, err := s.db.Exec(ctx, query,
		token.JTI,
		token.TokenHash,
		token.UserID,
		token.CreatedAt,
		token.ExpiresAt,
		token.RevokedAt,
		nullIfEmpty(token.IP),
		nullIfEmpty(token.UserAgent),
	)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// RefreshTokenByID находит запись леджера по jti.
func (s *Storage) RefreshTokenByID(ctx context.Context, jti uuid.UUID) (*models.RefreshToken, error) {
	const op = "storage.postgres.RefreshTokenByID"

	query := `
        SELECT jti, token_hash, user_id, created_at, expires_at, revoked_at, ip, user_agent
        FROM refresh_tokens
        WHERE jti = $1
    `

	var (
		token models.RefreshToken
		ip    *string
		ua    *string
	)
	err := s.db.QueryRow(ctx, query, jti).Scan(
		&token.JTI,
		&token.TokenHash,
		&token.UserID,
		&token.CreatedAt,
		&token.ExpiresAt,
		&token.RevokedAt,
		&ip,
		&ua,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if ip != nil {
		token.IP = *ip
	}
	if ua != nil {
		token.UserAgent = *ua
	}

	return &token, nil
}

// RevokeRefreshToken атомарно отзывает запись: compare-and-set по revoked_at.
// Из двух конкурентных вызовов ровно один получит (true, nil); второй увидит
// уже выставленный revoked_at и получит (false, nil). Возвращает:
//
//	(true, nil)  — запись была живой и отозвана сейчас;
//	(false, nil) — запись существует, но уже была отозвана;
//	(false, ErrNotFound) — записи нет.
func (s *Storage) RevokeRefreshToken(ctx context.Context, jti uuid.UUID) (bool, error) {
	const op = "storage.postgres.RevokeRefreshToken"

	const upd = `
		UPDATE refresh_tokens
		SET revoked_at = now()
		WHERE jti = $1 AND revoked_at IS NULL
		RETURNING user_id
	`

	var userID uuid.UUID
	err := s.db.QueryRow(ctx, upd, jti).Scan(&userID)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	const sel = `
		SELECT revoked_at IS NOT NULL
		FROM refresh_tokens
		WHERE jti = $1
	`

	var revoked bool
	err = s.db.QueryRow(ctx, sel, jti).Scan(&revoked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return false, fmt.Errorf("%s: %w", op, err)
	}

	return false, nil
}

// RevokeAllForUser отзывает все живые токены пользователя.
func (s *Storage) RevokeAllForUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	const op = "storage.postgres.RevokeAllForUser"

	query := `
		UPDATE refresh_tokens
		SET revoked_at = now()
		WHERE user_id = $1 AND revoked_at IS NULL
	`

	cmdTag, err := s.db.Exec(ctx, query, userID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return cmdTag.RowsAffected(), nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}

	return &s
}
