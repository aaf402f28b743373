// service содержит бизнес-логику sessions-сервиса: регистрацию и
// аутентификацию пользователей, выпуск/ротацию/отзыв refresh-токенов
// и работу с хранилищем через интерфейсы из пакета storage.
//
// Основные аспекты:
//   - Экземпляр Service не хранит состояние запроса и безопасен для
//     конкурентного использования, если потокобезопасно переданное хранилище;
//   - гонка двух Refresh по одному токену разрешается compare-and-set
//     в леджере: выигрывает ровно один, второй получает ErrTokenRevoked;
//   - ошибки возвращаются и далее маппятся транспортом на HTTP-статусы
//     (см. комментарии к переменным ошибок ниже).
package service

import (
	"errors"

	"github.com/pribylovaa/sessions-service/internal/cache"
	"github.com/pribylovaa/sessions-service/internal/config"
	"github.com/pribylovaa/sessions-service/internal/storage"
	"github.com/pribylovaa/sessions-service/internal/tokens"
)

var (
	// ErrInvalidCredentials — пара логин/пароль неверна или пользователь не найден.
	// Наружу оба случая неразличимы (защита от перебора email). HTTP 401.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidToken — токен некорректен по формату/подписи, отсутствует в
	// леджере или его хэш не совпал с сохранённым. HTTP 401.
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired — срок действия токена истёк (по подписи или по леджеру).
	// HTTP 401.
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenRevoked — токен отозван (logout/ротация/replay) и недействителен
	// независимо от срока. HTTP 401.
	ErrTokenRevoked = errors.New("token revoked")

	// ErrEmailTaken — e-mail уже занят активным пользователем. HTTP 409.
	ErrEmailTaken = errors.New("email already taken")

	// ErrUserNotFound — пользователь исчез или деактивирован между проверкой
	// refresh-токена и повторной выборкой. HTTP 404.
	ErrUserNotFound = errors.New("user not found")

	// ErrTokenCollision — повтор jti при выпуске refresh-токена. При 122 битах
	// энтропии это нарушение инварианта, а не рабочая ситуация: выпуск не
	// ретраится. HTTP 500.
	ErrTokenCollision = errors.New("refresh token id collision")

	// ErrInvalidEmail — e-mail имеет некорректный формат. HTTP 400.
	ErrInvalidEmail = errors.New("invalid email format")

	// ErrWeakPassword — пароль не удовлетворяет политике сложности. HTTP 400.
	ErrWeakPassword = errors.New("password is too weak")

	// ErrEmptyPassword — пароль пустой. HTTP 400.
	ErrEmptyPassword = errors.New("password is empty")
)

// RequestContext — транспортный контекст запроса, попадающий в аудит-поля
// леджера. Оба поля опциональны.
type RequestContext struct {
	IP        string
	UserAgent string
}

// Service реализует бизнес-логику sessions-сервиса.
type Service struct {
	storage storage.Storage
	tokens  *tokens.Manager
	cfg     config.AuthConfig
	rcache  cache.RefreshCache // может быть nil, если кэш не сконфигурирован

	// dummyHash — заранее вычисленный bcrypt-хэш для "пустого" сравнения,
	// когда пользователь не найден: выравнивает время ответа логина.
	dummyHash string
}

// New создаёт новый экземпляр Service.
func New(storage storage.Storage, tm *tokens.Manager, cfg config.AuthConfig) *Service {
	// bcrypt с дефолтной стоимостью на корректном входе не возвращает ошибок.
	dummyHash, _ := hashPassword("sessions-service-dummy-password")

	return &Service{
		storage:   storage,
		tokens:    tm,
		cfg:       cfg,
		dummyHash: dummyHash,
	}
}

// SetRefreshCache устанавливает кэш refresh-токенов (опционально).
func (s *Service) SetRefreshCache(c cache.RefreshCache) {
	s.rcache = c
}
