package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/pribylovaa/sessions-service/internal/cache"
	"github.com/pribylovaa/sessions-service/internal/config"
	"github.com/pribylovaa/sessions-service/internal/models"
	"github.com/pribylovaa/sessions-service/internal/tokens"
)

const (
	testEmail    = "user@example.com"
	testPassword = "Str0ng!password"
)

func testAuthConfig() config.AuthConfig {
	return config.AuthConfig{
		AccessSecret:    "service-test-access-secret",
		RefreshSecret:   "service-test-refresh-secret",
		AccessTokenTTL:  time.Hour,
		RefreshTokenTTL: 168 * time.Hour,
		Issuer:          "sessions-service",
		Audience:        []string{"api-gateway"},
	}
}

func newTokenManager(t *testing.T, cfg config.AuthConfig) *tokens.Manager {
	t.Helper()

	tm, err := tokens.New(tokens.Config{
		AccessSecret:  cfg.AccessSecret,
		RefreshSecret: cfg.RefreshSecret,
		AccessTTL:     cfg.AccessTokenTTL,
		RefreshTTL:    cfg.RefreshTokenTTL,
		Issuer:        cfg.Issuer,
		Audience:      cfg.Audience,
	})
	require.NoError(t, err)

	return tm
}

func testUser(t *testing.T) *models.User {
	t.Helper()

	hash, err := hashPassword(testPassword)
	require.NoError(t, err)

	now := time.Now().UTC()
	return &models.User{
		ID:           uuid.New(),
		Email:        testEmail,
		Name:         "Test User",
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// signedRefresh выпускает подписанный refresh-токен и соответствующую ему
// запись леджера, как это сделал бы issueTokenPair.
func signedRefresh(t *testing.T, tm *tokens.Manager, userID uuid.UUID) (string, *models.RefreshToken) {
	t.Helper()

	jti := uuid.New()
	tokenStr, err := tm.NewRefresh(userID, jti)
	require.NoError(t, err)

	var claims tokens.RefreshClaims
	require.NoError(t, tm.Decode(tokenStr, &claims))

	hash, err := hashRefreshString(tokenStr)
	require.NoError(t, err)

	return tokenStr, &models.RefreshToken{
		JTI:       jti,
		TokenHash: hash,
		UserID:    userID,
		CreatedAt: claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}
}

// fakeRefreshCache — потокобезопасная заглушка кэша отзыва для тестов сервиса.
type fakeRefreshCache struct {
	mu      sync.Mutex
	entries map[uuid.UUID]cache.RefreshEntry
}

func newFakeRefreshCache() *fakeRefreshCache {
	return &fakeRefreshCache{entries: make(map[uuid.UUID]cache.RefreshEntry)}
}

func (f *fakeRefreshCache) Get(_ context.Context, jti uuid.UUID) (*cache.RefreshEntry, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	entry, ok := f.entries[jti]
	if !ok {
		return nil, false, nil
	}

	copied := entry
	return &copied, true, nil
}

func (f *fakeRefreshCache) Set(_ context.Context, jti uuid.UUID, entry *cache.RefreshEntry, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.entries[jti] = *entry
	return nil
}

func (f *fakeRefreshCache) MarkRevoked(_ context.Context, jti uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	entry := f.entries[jti]
	entry.Revoked = true
	f.entries[jti] = entry
	return nil
}

func (f *fakeRefreshCache) Close() error { return nil }

var _ cache.RefreshCache = (*fakeRefreshCache)(nil)

// anyCtx — сокращение для матчера контекста.
var anyCtx = gomock.Any()

func requireIssuedPair(t *testing.T, tm *tokens.Manager, pair *models.TokenPair, wantUserID uuid.UUID) {
	t.Helper()

	require.NotNil(t, pair)
	require.Equal(t, models.TokenTypeBearer, pair.TokenType)
	require.False(t, pair.AccessExpiresAt.IsZero())

	accessClaims, err := tm.ParseAccess(pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, wantUserID.String(), accessClaims.UserID)

	refreshClaims, err := tm.ParseRefresh(pair.RefreshToken)
	require.NoError(t, err)
	require.Equal(t, wantUserID.String(), refreshClaims.UserID)
	require.NotEmpty(t, refreshClaims.ID)
}
