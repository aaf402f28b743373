// handlers содержит HTTP-эндпоинты sessions-сервиса. Здесь выполняется
// только разбор/валидация формы запроса и маппинг данных и ошибок доменного
// слоя (service) в HTTP; бизнес-логика целиком в пакете service.
//
// Принципы:
//   - Контекст запроса прокидывается в сервис без потерь;
//   - Вход валидируется до вызова сервиса: сервис получает уже
//     проверенные формы;
//   - Ошибки сервиса транслируются через httperr; для 500 наружу не
//     утекают детали внутренних ошибок.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"

	"github.com/pribylovaa/sessions-service/internal/service"
	"github.com/pribylovaa/sessions-service/internal/transport/http/httperr"
)

// maxBodyBytes — предел размера тела запроса: формы аутентификации крошечные.
const maxBodyBytes = 1 << 16

// Handlers агрегирует зависимости эндпоинтов.
type Handlers struct {
	service *service.Service
}

// New создаёт набор HTTP-хендлеров поверх сервисного слоя.
func New(s *service.Service) *Handlers {
	return &Handlers{service: s}
}

// writeJSON — единый ответ JSON с нужным Content-Type.
// Ошибки выводятся через httperr.WriteError.
func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

// decodeStrict — строгий JSON-декодер: ограничивает размер тела, запрещает
// неизвестные поля и мусор после первого объекта.
func decodeStrict(w http.ResponseWriter, r *http.Request, value any) error {
	if r.Body == nil {
		return fmt.Errorf("empty body: %w", httperr.ErrBadRequest)
	}
	defer func() { _ = r.Body.Close() }()

	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(value); err != nil {
		return fmt.Errorf("%v: %w", err, httperr.ErrBadRequest)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("extra data after JSON object: %w", httperr.ErrBadRequest)
	}

	return nil
}

// requestContext извлекает аудит-поля (ip, user-agent) из запроса.
// X-Forwarded-For имеет приоритет над RemoteAddr: сервис обычно стоит
// за гейтвеем.
func requestContext(r *http.Request) service.RequestContext {
	ip := r.Header.Get("X-Forwarded-For")
	if ip == "" {
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			ip = host
		} else {
			ip = r.RemoteAddr
		}
	}

	return service.RequestContext{
		IP:        ip,
		UserAgent: r.Header.Get("User-Agent"),
	}
}
