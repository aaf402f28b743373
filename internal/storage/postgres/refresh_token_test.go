package postgres

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/pribylovaa/sessions-service/internal/models"
	"github.com/pribylovaa/sessions-service/internal/storage"
)

// Интеграционные тесты леджера refresh-токенов: вставка/выборка по jti,
// CAS-отзыв (в том числе конкурентный) и массовый отзыв по пользователю.
// Инфраструктура поднимается хелпером startPostgres из user_test.go.

// mustSaveToken сохраняет запись леджера для указанного пользователя.
func mustSaveToken(t *testing.T, st *Storage, userID uuid.UUID) *models.RefreshToken {
	t.Helper()

	now := time.Now().UTC()
	tok := &models.RefreshToken{
		JTI:       uuid.New(),
		TokenHash: "bcrypt-of-sha256-digest",
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(168 * time.Hour),
		IP:        "10.0.0.1",
		UserAgent: "integration-test",
	}
	require.NoError(t, st.SaveRefreshToken(context.Background(), tok))

	return tok
}

func TestIntegration_SaveRefreshToken_And_GetByID_OK(t *testing.T) {
	st, cleanup := startPostgres(t)
	defer cleanup()

	user := mustSaveUser(t, st, "rt-owner@example.com")
	tok := mustSaveToken(t, st, user.ID)

	got, err := st.RefreshTokenByID(context.Background(), tok.JTI)
	require.NoError(t, err)
	require.Equal(t, tok.JTI, got.JTI)
	require.Equal(t, tok.TokenHash, got.TokenHash)
	require.Equal(t, user.ID, got.UserID)
	require.Equal(t, tok.IP, got.IP)
	require.Equal(t, tok.UserAgent, got.UserAgent)
	require.Nil(t, got.RevokedAt)
	require.False(t, got.Revoked())
	require.WithinDuration(t, tok.ExpiresAt, got.ExpiresAt, time.Second)
}

func TestIntegration_SaveRefreshToken_EmptyAuditFields(t *testing.T) {
	st, cleanup := startPostgres(t)
	defer cleanup()

	user := mustSaveUser(t, st, "no-audit@example.com")

	now := time.Now().UTC()
	tok := &models.RefreshToken{
		JTI:       uuid.New(),
		TokenHash: "hash",
		UserID:    user.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(time.Hour),
	}
	require.NoError(t, st.SaveRefreshToken(context.Background(), tok))

	got, err := st.RefreshTokenByID(context.Background(), tok.JTI)
	require.NoError(t, err)
	require.Empty(t, got.IP)
	require.Empty(t, got.UserAgent)
}

func TestIntegration_SaveRefreshToken_DuplicateJTI_Violation(t *testing.T) {
	st, cleanup := startPostgres(t)
	defer cleanup()

	user := mustSaveUser(t, st, "dup-jti@example.com")
	tok := mustSaveToken(t, st, user.ID)

	dup := *tok
	dup.TokenHash = "another-hash"
	err := st.SaveRefreshToken(context.Background(), &dup)
	require.ErrorIs(t, err, storage.ErrAlreadyExists)
}

func TestIntegration_SaveRefreshToken_UnknownUser_FKViolation(t *testing.T) {
	st, cleanup := startPostgres(t)
	defer cleanup()

	now := time.Now().UTC()
	tok := &models.RefreshToken{
		JTI:       uuid.New(),
		TokenHash: "hash",
		UserID:    uuid.New(), // нет такого пользователя
		CreatedAt: now,
		ExpiresAt: now.Add(time.Hour),
	}

	err := st.SaveRefreshToken(context.Background(), tok)
	require.Error(t, err)
	require.NotErrorIs(t, err, storage.ErrAlreadyExists)
}

func TestIntegration_RefreshTokenByID_NotFound(t *testing.T) {
	st, cleanup := startPostgres(t)
	defer cleanup()

	_, err := st.RefreshTokenByID(context.Background(), uuid.New())
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestIntegration_RevokeRefreshToken_CAS(t *testing.T) {
	st, cleanup := startPostgres(t)
	defer cleanup()

	user := mustSaveUser(t, st, "revoke@example.com")
	tok := mustSaveToken(t, st, user.ID)

	// Первый отзыв выигрывает.
	revoked, err := st.RevokeRefreshToken(context.Background(), tok.JTI)
	require.NoError(t, err)
	require.True(t, revoked)

	got, err := st.RefreshTokenByID(context.Background(), tok.JTI)
	require.NoError(t, err)
	require.NotNil(t, got.RevokedAt)
	require.True(t, got.Revoked())

	// Повторный отзыв различим: запись есть, но уже погашена.
	revoked, err = st.RevokeRefreshToken(context.Background(), tok.JTI)
	require.NoError(t, err)
	require.False(t, revoked)
}

func TestIntegration_RevokeRefreshToken_NotFound(t *testing.T) {
	st, cleanup := startPostgres(t)
	defer cleanup()

	revoked, err := st.RevokeRefreshToken(context.Background(), uuid.New())
	require.ErrorIs(t, err, storage.ErrNotFound)
	require.False(t, revoked)
}

func TestIntegration_RevokeRefreshToken_Concurrent_ExactlyOneWinner(t *testing.T) {
	st, cleanup := startPostgres(t)
	defer cleanup()

	user := mustSaveUser(t, st, "race@example.com")
	tok := mustSaveToken(t, st, user.ID)

	const workers = 8

	var (
		wg      sync.WaitGroup
		winners int32
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			revoked, err := st.RevokeRefreshToken(context.Background(), tok.JTI)
			require.NoError(t, err)
			if revoked {
				atomic.AddInt32(&winners, 1)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int32(1), winners)
}

func TestIntegration_RevokeAllForUser(t *testing.T) {
	st, cleanup := startPostgres(t)
	defer cleanup()

	user := mustSaveUser(t, st, "bulk@example.com")
	other := mustSaveUser(t, st, "bystander@example.com")

	first := mustSaveToken(t, st, user.ID)
	second := mustSaveToken(t, st, user.ID)
	foreign := mustSaveToken(t, st, other.ID)

	// Один токен уже погашен: повторно он не считается.
	revoked, err := st.RevokeRefreshToken(context.Background(), first.JTI)
	require.NoError(t, err)
	require.True(t, revoked)

	n, err := st.RevokeAllForUser(context.Background(), user.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	got, err := st.RefreshTokenByID(context.Background(), second.JTI)
	require.NoError(t, err)
	require.True(t, got.Revoked())

	// Чужие сессии не затронуты.
	got, err = st.RefreshTokenByID(context.Background(), foreign.JTI)
	require.NoError(t, err)
	require.False(t, got.Revoked())

	// Повторный массовый отзыв ничего не гасит.
	n, err = st.RevokeAllForUser(context.Background(), user.ID)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestIntegration_RevokedRowsAreNeverDeleted(t *testing.T) {
	st, cleanup := startPostgres(t)
	defer cleanup()

	user := mustSaveUser(t, st, "ledger@example.com")
	tok := mustSaveToken(t, st, user.ID)

	_, err := st.RevokeRefreshToken(context.Background(), tok.JTI)
	require.NoError(t, err)

	// Погашенная запись остаётся читаемой: леджер только помечает, не удаляет.
	got, err := st.RefreshTokenByID(context.Background(), tok.JTI)
	require.NoError(t, err)
	require.Equal(t, tok.JTI, got.JTI)
	require.True(t, got.Revoked())
}

func TestIntegration_RefreshTokenQueries_ContextCanceled(t *testing.T) {
	st, cleanup := startPostgres(t)
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := st.RefreshTokenByID(ctx, uuid.New())
	require.ErrorIs(t, err, context.Canceled)

	_, err = st.RevokeRefreshToken(ctx, uuid.New())
	require.ErrorIs(t, err, context.Canceled)
}
