package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pribylovaa/sessions-service/internal/cache"
	"github.com/pribylovaa/sessions-service/internal/models"
	"github.com/pribylovaa/sessions-service/internal/pkg/log"
	"github.com/pribylovaa/sessions-service/internal/storage"
	"github.com/pribylovaa/sessions-service/internal/tokens"
)

// issueTokenPair выпускает новую пару access+refresh токенов и фиксирует
// refresh в леджере.
//
// Сроки истечения для ответа и для леджера извлекаются из клеймов только что
// подписанных строк (tokens.Decode), а не пересчитываются заново: exp токена
// и expires_at записи не могут разойтись.
func (s *Service) issueTokenPair(ctx context.Context, user *models.User, rctx RequestContext) (*models.TokenPair, uuid.UUID, error) {
	const op = "service.token.issueTokenPair"

	lg := log.From(ctx)

	accessToken, err := s.tokens.NewAccess(user.ID, user.Email)
	if err != nil {
		lg.Error("access_token_sign_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	var accessClaims tokens.AccessClaims
	if err := s.tokens.Decode(accessToken, &accessClaims); err != nil {
		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	jti := uuid.New()
	refreshToken, err := s.tokens.NewRefresh(user.ID, jti)
	if err != nil {
		lg.Error("refresh_token_sign_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	var refreshClaims tokens.RefreshClaims
	if err := s.tokens.Decode(refreshToken, &refreshClaims); err != nil {
		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	tokenHash, err := hashRefreshString(refreshToken)
	if err != nil {
		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	record := &models.RefreshToken{
		JTI:       jti,
		TokenHash: tokenHash,
		UserID:    user.ID,
		CreatedAt: refreshClaims.IssuedAt.Time,
		ExpiresAt: refreshClaims.ExpiresAt.Time,
		IP:        rctx.IP,
		UserAgent: rctx.UserAgent,
	}

	if err := s.storage.SaveRefreshToken(ctx, record); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			// Повтор случайного UUID — фатальное нарушение инварианта,
			// ретраить бессмысленно.
			lg.Error("refresh_jti_collision",
				slog.String("op", op),
				slog.String("jti", jti.String()),
			)
			return nil, uuid.Nil, fmt.Errorf("%s: %w", op, ErrTokenCollision)
		}

		lg.Error("save_refresh_token_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	s.cacheSet(ctx, jti, &cache.RefreshEntry{
		UserID:    user.ID,
		Revoked:   false,
		ExpiresAt: record.ExpiresAt,
	})

	return &models.TokenPair{
		AccessToken:     accessToken,
		RefreshToken:    refreshToken,
		TokenType:       models.TokenTypeBearer,
		AccessExpiresAt: accessClaims.ExpiresAt.Time,
	}, user.ID, nil
}

// cacheSet — best-effort запись в кэш; отказ кэша не влияет на выпуск пары.
func (s *Service) cacheSet(ctx context.Context, jti uuid.UUID, entry *cache.RefreshEntry) {
	if s.rcache == nil {
		return
	}

	ttl := time.Until(entry.ExpiresAt)
	if ttl <= 0 {
		return
	}

	if err := s.rcache.Set(ctx, jti, entry, ttl); err != nil {
		log.From(ctx).Warn("refresh_cache_set_failed",
			slog.String("jti", jti.String()),
			slog.String("err", err.Error()),
		)
	}
}

// cacheMarkRevoked — best-effort пометка отзыва в кэше.
func (s *Service) cacheMarkRevoked(ctx context.Context, jti uuid.UUID) {
	if s.rcache == nil {
		return
	}

	if err := s.rcache.MarkRevoked(ctx, jti); err != nil {
		log.From(ctx).Warn("refresh_cache_revoke_failed",
			slog.String("jti", jti.String()),
			slog.String("err", err.Error()),
		)
	}
}
