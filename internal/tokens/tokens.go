// tokens реализует кодек подписанных токенов (JWT, HS256): выпуск и проверку
// access- и refresh-токенов с независимыми секретами и сроками жизни.
//
// Кодек ничего не знает о хранилище: проверка подписи/срока здесь не отвечает
// на вопрос «не отозван ли токен» — это зона ответственности леджера
// (storage.RefreshTokenStorage).
package tokens

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrInvalidToken — подпись/формат/claims токена некорректны.
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenExpired — подпись верна, но срок действия истёк.
	ErrTokenExpired = errors.New("token expired")
)

// minSecretLen — минимальная длина секрета подписи.
const minSecretLen = 8

// leeway — допуск на рассинхронизацию часов при проверке exp/iat.
const leeway = 5 * time.Second

// Config — параметры кодека. Секреты инжектируются снаружи и никогда
// не зашиваются в код; RefreshSecret по умолчанию равен AccessSecret.
type Config struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
	Audience      []string
}

// AccessClaims — клеймы access-токена.
type AccessClaims struct {
	UserID string `json:"uid"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// RefreshClaims — клеймы refresh-токена. Идентификатор токена (jti)
// лежит в RegisteredClaims.ID.
type RefreshClaims struct {
	UserID string `json:"uid"`
	jwt.RegisteredClaims
}

// Manager — кодек токенов. Безопасен для конкурентного использования.
type Manager struct {
	cfg Config
	now func() time.Time
}

// New создаёт кодек, валидируя конфигурацию.
func New(cfg Config) (*Manager, error) {
	return NewWithClock(cfg, func() time.Time { return time.Now().UTC() })
}

// NewWithClock — вариант New с внешним источником времени (для тестов).
func NewWithClock(cfg Config, now func() time.Time) (*Manager, error) {
	const op = "tokens.NewWithClock"

	if len(cfg.AccessSecret) < minSecretLen {
		return nil, fmt.Errorf("%s: access secret shorter than %d bytes", op, minSecretLen)
	}

	if cfg.RefreshSecret == "" {
		cfg.RefreshSecret = cfg.AccessSecret
	}
	if len(cfg.RefreshSecret) < minSecretLen {
		return nil, fmt.Errorf("%s: refresh secret shorter than %d bytes", op, minSecretLen)
	}

	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, fmt.Errorf("%s: token TTL must be positive", op)
	}

	if now == nil {
		return nil, fmt.Errorf("%s: nil clock", op)
	}

	return &Manager{cfg: cfg, now: now}, nil
}

// NewAccess выпускает подписанный access-токен.
func (m *Manager) NewAccess(userID uuid.UUID, email string) (string, error) {
	const op = "tokens.NewAccess"

	now := m.now()
	claims := AccessClaims{
		UserID: userID.String(),
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(m.cfg.AccessTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    m.cfg.Issuer,
			Subject:   userID.String(),
			Audience:  jwt.ClaimStrings(m.cfg.Audience),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(m.cfg.AccessSecret))
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return signed, nil
}

// NewRefresh выпускает подписанный refresh-токен с заданным jti.
func (m *Manager) NewRefresh(userID, jti uuid.UUID) (string, error) {
	const op = "tokens.NewRefresh"

	now := m.now()
	claims := RefreshClaims{
		UserID: userID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.cfg.RefreshTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    m.cfg.Issuer,
			Subject:   userID.String(),
			Audience:  jwt.ClaimStrings(m.cfg.Audience),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(m.cfg.RefreshSecret))
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return signed, nil
}

// ParseAccess проверяет подпись и срок access-токена и возвращает клеймы.
func (m *Manager) ParseAccess(tokenStr string) (*AccessClaims, error) {
	const op = "tokens.ParseAccess"

	claims := &AccessClaims{}
	if err := m.parse(tokenStr, claims, m.cfg.AccessSecret, false); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return claims, nil
}

// ParseRefresh проверяет подпись и срок refresh-токена и возвращает клеймы.
func (m *Manager) ParseRefresh(tokenStr string) (*RefreshClaims, error) {
	const op = "tokens.ParseRefresh"

	claims := &RefreshClaims{}
	if err := m.parse(tokenStr, claims, m.cfg.RefreshSecret, false); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return claims, nil
}

// ParseRefreshLax проверяет только подпись refresh-токена, игнорируя сроки
// и прочие клеймы. Используется в logout: просроченный, но подлинный токен
// всё ещё указывает на запись леджера, которую стоит отозвать.
func (m *Manager) ParseRefreshLax(tokenStr string) (*RefreshClaims, error) {
	const op = "tokens.ParseRefreshLax"

	claims := &RefreshClaims{}
	if err := m.parse(tokenStr, claims, m.cfg.RefreshSecret, true); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return claims, nil
}

// Decode читает клеймы без какой-либо проверки подписи и сроков.
// Применим только к уже проверенным или только что подписанным нами строкам
// (например, чтобы извлечь exp свежего токена для записи в леджер);
// решением об авторизации сам по себе не является.
func (m *Manager) Decode(tokenStr string, claims jwt.Claims) error {
	const op = "tokens.Decode"

	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	if _, _, err := parser.ParseUnverified(tokenStr, claims); err != nil {
		return fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	return nil
}

// parse — общая проверка подписи и клеймов. lax=true отключает валидацию
// клеймов (exp/iss/aud), оставляя только проверку подписи.
func (m *Manager) parse(tokenStr string, claims jwt.Claims, secret string, lax bool) error {
	keyFunc := func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}

		return []byte(secret), nil
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
	}
	if lax {
		opts = append(opts, jwt.WithoutClaimsValidation())
	} else {
		opts = append(opts,
			jwt.WithLeeway(leeway),
			jwt.WithIssuer(m.cfg.Issuer),
			jwt.WithAudience(m.cfg.Audience...),
		)
	}

	token, err := jwt.ParseWithClaims(tokenStr, claims, keyFunc, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrTokenExpired
		}

		return ErrInvalidToken
	}

	if !token.Valid {
		return ErrInvalidToken
	}

	return nil
}
