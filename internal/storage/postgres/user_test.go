package postgres

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/pribylovaa/sessions-service/internal/models"
	"github.com/pribylovaa/sessions-service/internal/storage"
)

// Интеграционные тесты пакета postgres:
// - поднимают реальный PostgreSQL через testcontainers-go (postgres:16-alpine);
// - применяют миграции из ./migrations;
// - проверяют happy-path, уникальность (citext email, первичные ключи),
//   сценарии отсутствия записей и просачивание ошибок контекста.
//
// Запуск локально:
//   GO_TEST_INTEGRATION=1 go test ./internal/storage/postgres -v -race -count=1

// repoRootFromThisFile определяет корень репозитория относительно текущего файла.
func repoRootFromThisFile() string {
	// internal/storage/postgres -> подняться на 3 уровня до корня.
	_, thisFile, _, _ := runtime.Caller(0)
	return filepath.Clean(filepath.Join(filepath.Dir(thisFile), "..", "..", ".."))
}

// readMigration читает SQL-миграцию из каталога ./migrations.
func readMigration(t *testing.T, name string) string {
	t.Helper()

	path := filepath.Join(repoRootFromThisFile(), "migrations", name)
	b, err := os.ReadFile(path)
	require.NoError(t, err, "read migration %s", path)

	return string(b)
}

// startPostgres поднимает временный PostgreSQL, применяет обе миграции и
// возвращает инициализированное хранилище с функцией очистки.
// Без GO_TEST_INTEGRATION=1 тест пропускается.
func startPostgres(t *testing.T) (*Storage, func()) {
	t.Helper()
	if os.Getenv("GO_TEST_INTEGRATION") == "" {
		t.Skip("integration tests are disabled (set GO_TEST_INTEGRATION=1)")
	}

	ctx := context.Background()
	req := tc.ContainerRequest{
		Image:        "postgres:16-alpine",
		Env:          map[string]string{"POSTGRES_USER": "user", "POSTGRES_PASSWORD": "pass", "POSTGRES_DB": "db"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	require.NoError(t, err)

	host, _ := c.Host(ctx)
	port, _ := c.MappedPort(ctx, "5432/tcp")
	dsn := fmt.Sprintf("postgres://user:pass@%s:%s/db?sslmode=disable", host, port.Port())

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	defer pool.Close()

	_, err = pool.Exec(ctx, readMigration(t, "1_init_users.up.sql"))
	require.NoError(t, err)
	_, err = pool.Exec(ctx, readMigration(t, "2_init_refresh_tokens.up.sql"))
	require.NoError(t, err)

	st, err := New(ctx, dsn)
	require.NoError(t, err)

	cleanup := func() {
		st.Close()
		_ = c.Terminate(context.Background())
	}
	return st, cleanup
}

// mustSaveUser сохраняет пользователя с валидными полями и возвращает его.
func mustSaveUser(t *testing.T, st *Storage, email string) *models.User {
	t.Helper()

	now := time.Now().UTC()
	u := &models.User{
		ID:           uuid.New(),
		Email:        email,
		Name:         "Test User",
		PasswordHash: "bcrypt-hash",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, st.SaveUser(context.Background(), u))

	return u
}

func TestIntegration_SaveUser_And_GetByEmail_And_ByID_OK(t *testing.T) {
	st, cleanup := startPostgres(t)
	defer cleanup()

	now := time.Now().UTC()
	u := &models.User{
		ID:           uuid.New(),
		Email:        "User@Example.Com",
		Name:         "Case Test",
		PasswordHash: "hash",
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	require.NoError(t, st.SaveUser(context.Background(), u))

	gotByEmail, err := st.UserByEmail(context.Background(), strings.ToLower(u.Email))
	require.NoError(t, err)
	require.Equal(t, u.ID, gotByEmail.ID)
	require.Equal(t, u.Name, gotByEmail.Name)
	require.WithinDuration(t, u.CreatedAt, gotByEmail.CreatedAt, time.Second)
	require.Nil(t, gotByEmail.DeletedAt)

	gotByID, err := st.UserByID(context.Background(), u.ID)
	require.NoError(t, err)
	require.Equal(t, u.ID, gotByID.ID)
}

func TestIntegration_SaveUser_UniqueEmail_CaseInsensitive_Violation(t *testing.T) {
	st, cleanup := startPostgres(t)
	defer cleanup()

	mustSaveUser(t, st, "user@example.com")

	now := time.Now().UTC()
	dup := &models.User{
		ID:           uuid.New(),
		Email:        "USER@EXAMPLE.COM", // тот же email, другой регистр
		PasswordHash: "h2",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	err := st.SaveUser(context.Background(), dup)
	require.ErrorIs(t, err, storage.ErrAlreadyExists)
}

func TestIntegration_SaveUser_UniqueID_Violation(t *testing.T) {
	st, cleanup := startPostgres(t)
	defer cleanup()

	u := mustSaveUser(t, st, "a@example.com")

	now := time.Now().UTC()
	dup := &models.User{
		ID:           u.ID, // тот же id
		Email:        "b@example.com",
		PasswordHash: "h2",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	err := st.SaveUser(context.Background(), dup)
	require.ErrorIs(t, err, storage.ErrAlreadyExists)
}

func TestIntegration_UserByEmail_NotFound(t *testing.T) {
	st, cleanup := startPostgres(t)
	defer cleanup()

	_, err := st.UserByEmail(context.Background(), "absent@example.com")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestIntegration_UserByID_NotFound(t *testing.T) {
	st, cleanup := startPostgres(t)
	defer cleanup()

	_, err := st.UserByID(context.Background(), uuid.New())
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestIntegration_SoftDeletedUser_Invisible(t *testing.T) {
	st, cleanup := startPostgres(t)
	defer cleanup()

	u := mustSaveUser(t, st, "gone@example.com")

	_, err := st.db.Exec(context.Background(),
		`UPDATE users SET deleted_at = now() WHERE id = $1`, u.ID)
	require.NoError(t, err)

	_, err = st.UserByEmail(context.Background(), u.Email)
	require.ErrorIs(t, err, storage.ErrNotFound)

	_, err = st.UserByID(context.Background(), u.ID)
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestIntegration_UserQueries_ContextCanceled(t *testing.T) {
	st, cleanup := startPostgres(t)
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := st.UserByEmail(ctx, "user@example.com")
	require.ErrorIs(t, err, context.Canceled)

	_, err = st.UserByID(ctx, uuid.New())
	require.ErrorIs(t, err, context.Canceled)
}

func TestIntegration_SaveUser_ContextDeadlineExceeded(t *testing.T) {
	st, cleanup := startPostgres(t)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 0)
	defer cancel()

	now := time.Now().UTC()
	u := &models.User{
		ID:           uuid.New(),
		Email:        "deadline@example.com",
		PasswordHash: "hash",
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err := st.SaveUser(ctx, u)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
