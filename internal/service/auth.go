package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/pribylovaa/sessions-service/internal/models"
	"github.com/pribylovaa/sessions-service/internal/pkg/log"
	"github.com/pribylovaa/sessions-service/internal/pkg/redact"
	"github.com/pribylovaa/sessions-service/internal/storage"
	"github.com/pribylovaa/sessions-service/internal/tokens"

	"log/slog"
)

// RegisterUser регистрирует нового пользователя и выдаёт первую пару токенов.
func (s *Service) RegisterUser(ctx context.Context, email, password, name string, rctx RequestContext) (*models.TokenPair, uuid.UUID, error) {
	const op = "service.auth.RegisterUser"

	normEmail, err := validateEmail(email)
	if err != nil {
		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, ErrInvalidEmail)
	}

	if err := validatePassword(password); err != nil {
		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	_, err = s.storage.UserByEmail(ctx, normEmail)
	if err == nil {
		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, ErrEmailTaken)
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	hashedPassword, err := hashPassword(password)
	if err != nil {
		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	now := time.Now().UTC()
	user := &models.User{
		ID:           uuid.New(),
		Email:        normEmail,
		Name:         strings.TrimSpace(name),
		PasswordHash: hashedPassword,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.storage.SaveUser(ctx, user); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return nil, uuid.Nil, fmt.Errorf("%s: %w", op, ErrEmailTaken)
		}

		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	log.From(ctx).Info("user_registered",
		slog.String("op", op),
		slog.String("user_id", user.ID.String()),
		slog.String("email", redact.Email(user.Email)),
	)

	return s.issueTokenPair(ctx, user, rctx)
}

// LoginUser выполняет вход по email+пароль.
//
// "Пользователь не найден" и "пароль не подошёл" наружу неразличимы:
// одна и та же ошибка, а при отсутствии пользователя выполняется сравнение
// с заглушечным хэшем, чтобы выровнять время ответа.
func (s *Service) LoginUser(ctx context.Context, email, password string, rctx RequestContext) (*models.TokenPair, uuid.UUID, error) {
	const op = "service.auth.LoginUser"

	normEmail, err := validateEmail(email)
	if err != nil {
		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	if len(password) == 0 {
		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	user, err := s.storage.UserByEmail(ctx, normEmail)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			checkPassword(s.dummyHash, password)
			return nil, uuid.Nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
		}

		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	if !checkPassword(user.PasswordHash, password) {
		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	return s.issueTokenPair(ctx, user, rctx)
}

// RefreshToken гасит предъявленный refresh-токен и выпускает новую пару.
//
// Порядок проверок:
//  1. подпись и срок самого токена (кодек);
//  2. наличие записи в леджере по jti — отсутствие или отзыв означает
//     недействительный/повторно предъявленный токен;
//  3. срок по леджеру — независимо от exp в клеймах;
//  4. совпадение хэша предъявленной строки с сохранённым;
//  5. атомарный отзыв записи (проигравший гонку получает ErrTokenRevoked).
//
// Погашение строго однократное: любая повторная попытка с той же строкой
// завершается ошибкой.
func (s *Service) RefreshToken(ctx context.Context, refreshToken string, rctx RequestContext) (*models.TokenPair, uuid.UUID, error) {
	const op = "service.auth.RefreshToken"

	lg := log.From(ctx)

	claims, err := s.tokens.ParseRefresh(refreshToken)
	if err != nil {
		if errors.Is(err, tokens.ErrTokenExpired) {
			return nil, uuid.Nil, fmt.Errorf("%s: %w", op, ErrTokenExpired)
		}

		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	jti, err := uuid.Parse(claims.ID)
	if err != nil {
		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	// Быстрый отказ по кэшу: уже отозванный jti не ходит в БД.
	if s.rcache != nil {
		if entry, ok, cerr := s.rcache.Get(ctx, jti); cerr == nil && ok && entry.Revoked {
			lg.Warn("refresh_reuse_detected",
				slog.String("op", op),
				slog.String("jti", jti.String()),
			)
			return nil, uuid.Nil, fmt.Errorf("%s: %w", op, ErrTokenRevoked)
		}
	}

	rec, err := s.storage.RefreshTokenByID(ctx, jti)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			// Подпись валидна, но записи нет: несогласованность хранилища
			// или токен из чужого домена секретов. Никогда не повод выпускать пару.
			lg.Warn("refresh_ledger_miss", slog.String("op", op), slog.String("jti", jti.String()))
			return nil, uuid.Nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
		}

		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	if rec.Revoked() {
		// Повторное предъявление уже погашенного токена — основной сигнал replay.
		lg.Warn("refresh_reuse_detected",
			slog.String("op", op),
			slog.String("jti", jti.String()),
			slog.String("user_id", rec.UserID.String()),
		)

		if s.cfg.RevokeOnReuse {
			if n, rerr := s.storage.RevokeAllForUser(ctx, rec.UserID); rerr != nil {
				lg.Error("revoke_all_on_reuse_failed", slog.String("op", op), slog.String("err", rerr.Error()))
			} else if n > 0 {
				lg.Warn("sessions_revoked_on_reuse", slog.String("op", op), slog.Int64("count", n))
			}
		}

		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, ErrTokenRevoked)
	}

	// Срок по леджеру проверяется независимо от exp в клеймах; сравнение строгое.
	if !time.Now().UTC().Before(rec.ExpiresAt) {
		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, ErrTokenExpired)
	}

	if !checkRefreshString(rec.TokenHash, refreshToken) {
		lg.Warn("refresh_hash_mismatch",
			slog.String("op", op),
			slog.String("jti", jti.String()),
		)
		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	// Отзыв строго до выпуска новой пары: окна с двумя живыми refresh-токенами
	// одной сессии не существует. Из конкурентных погашений выигрывает одно.
	revokedNow, err := s.storage.RevokeRefreshToken(ctx, jti)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, uuid.Nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
		}

		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}
	if !revokedNow {
		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, ErrTokenRevoked)
	}

	s.cacheMarkRevoked(ctx, jti)

	user, err := s.storage.UserByID(ctx, rec.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, uuid.Nil, fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}

		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	return s.issueTokenPair(ctx, user, rctx)
}

// Logout отзывает refresh-токен best-effort: подпись проверяется
// (просроченность игнорируется), найденная живая запись отзывается.
// Ошибок наружу нет никогда — логаут идемпотентен и с точки зрения
// вызывающего всегда успешен; детали остаются в логах.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	const op = "service.auth.Logout"

	lg := log.From(ctx)

	claims, err := s.tokens.ParseRefreshLax(refreshToken)
	if err != nil {
		lg.Debug("logout_invalid_token", slog.String("op", op))
		return nil
	}

	jti, err := uuid.Parse(claims.ID)
	if err != nil {
		lg.Debug("logout_invalid_jti", slog.String("op", op))
		return nil
	}

	if _, err := s.storage.RevokeRefreshToken(ctx, jti); err != nil && !errors.Is(err, storage.ErrNotFound) {
		lg.Error("logout_revoke_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
		return nil
	}

	s.cacheMarkRevoked(ctx, jti)

	return nil
}

// ValidateToken проверяет access-токен и возвращает данные пользователя.
func (s *Service) ValidateToken(ctx context.Context, accessToken string) (uuid.UUID, string, error) {
	const op = "service.auth.ValidateToken"

	claims, err := s.tokens.ParseAccess(accessToken)
	if err != nil {
		if errors.Is(err, tokens.ErrTokenExpired) {
			return uuid.Nil, "", fmt.Errorf("%s: %w", op, ErrTokenExpired)
		}

		return uuid.Nil, "", fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	uid, err := uuid.Parse(claims.UserID)
	if err != nil {
		return uuid.Nil, "", fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	return uid, claims.Email, nil
}

// validateEmail проверяет базовый формат email и нормализует его
// (трим + нижний регистр).
func validateEmail(raw string) (string, error) {
	const op = "service.auth.validateEmail"

	email := strings.TrimSpace(raw)
	if email == "" {
		return "", fmt.Errorf("%s: %w", op, ErrInvalidEmail)
	}

	if _, err := mail.ParseAddress(email); err != nil {
		return "", fmt.Errorf("%s: %w", op, ErrInvalidEmail)
	}

	return strings.ToLower(email), nil
}

// validatePassword проверяет минимальные требования к паролю.
// Политика по умолчанию: длина >= 8, хотя бы одна строчная, заглавная, цифра и спецсимвол.
func validatePassword(pw string) error {
	const op = "service.auth.validatePassword"

	if len(pw) == 0 {
		return fmt.Errorf("%s: %w", op, ErrEmptyPassword)
	}

	if len([]rune(pw)) < 8 {
		return fmt.Errorf("%s: %w", op, ErrWeakPassword)
	}

	var hasLower, hasUpper, hasDigit, hasSpecial bool
	for _, r := range pw {
		switch {
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasSpecial = true
		}
	}

	if !(hasLower && hasUpper && hasDigit && hasSpecial) {
		return fmt.Errorf("%s: %w", op, ErrWeakPassword)
	}

	return nil
}
