// httperr стандартизирует ответы об ошибках HTTP-слоя.
// На вход принимает ошибку доменного слоя (service), на выход даёт
// корректный HTTP-статус и краткое безопасное message без утечки деталей:
// внутренние различия (подпись/срок/отзыв) остаются в логах и никогда
// не попадают в тело ответа дословно.
package httperr

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/pribylovaa/sessions-service/internal/service"
)

// APIError — единый формат ошибки для клиентов.
// Code — короткий стабильный код для машиночитаемой обработки.
// Message — безопасное человекочитаемое описание.
// RequestID — прокидывается из X-Request-Id, если есть (для трассировки).
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// ErrorResponse — корневой объект в ответе.
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// ErrBadRequest — локальная ошибка разбора запроса на транспортном слое.
var ErrBadRequest = errors.New("bad request")

// ToHTTP конвертирует ошибку доменного слоя в HTTP-статус и унифицированный ответ.
//
// Маппинг:
//   - ErrInvalidEmail/ErrWeakPassword/ErrEmptyPassword, ErrBadRequest -> 400;
//   - ErrInvalidCredentials/ErrInvalidToken/ErrTokenExpired/ErrTokenRevoked -> 401
//     с единым сообщением (невалидный, просроченный и отозванный токены
//     наружу неразличимы — иначе это оракул для атакующего);
//   - ErrUserNotFound -> 404;
//   - ErrEmailTaken -> 409;
//   - прочее (включая ErrTokenCollision) -> 500/internal без деталей.
func ToHTTP(err error) (int, ErrorResponse) {
	switch {
	case err == nil:
		// Программная ошибка вызова: не маскируем багом вида "200 с телом ошибки".
		return http.StatusInternalServerError, newResponse("internal", "internal error")

	case errors.Is(err, ErrBadRequest),
		errors.Is(err, service.ErrInvalidEmail),
		errors.Is(err, service.ErrWeakPassword),
		errors.Is(err, service.ErrEmptyPassword):
		return http.StatusBadRequest, newResponse("invalid_argument", "invalid argument")

	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrInvalidToken),
		errors.Is(err, service.ErrTokenExpired),
		errors.Is(err, service.ErrTokenRevoked):
		return http.StatusUnauthorized, newResponse("unauthenticated", "unauthenticated")

	case errors.Is(err, service.ErrUserNotFound):
		return http.StatusNotFound, newResponse("not_found", "not found")

	case errors.Is(err, service.ErrEmailTaken):
		return http.StatusConflict, newResponse("already_exists", "already exists")

	default:
		return http.StatusInternalServerError, newResponse("internal", "internal error")
	}
}

// WriteError — хелпер для HTTP-хендлеров: пишет статус/тело,
// добавляет request_id из заголовка, если он есть.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := ToHTTP(err)

	if rid := r.Header.Get("X-Request-Id"); rid != "" {
		resp.Error.RequestID = rid
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

func newResponse(code, msg string) ErrorResponse {
	return ErrorResponse{Error: APIError{Code: code, Message: msg}}
}
