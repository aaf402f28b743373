package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/pribylovaa/sessions-service/internal/models"
	"github.com/pribylovaa/sessions-service/internal/service"
	"github.com/pribylovaa/sessions-service/internal/transport/http/httperr"
)

// Register регистрирует пользователя и возвращает пару токенов.
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var in registerRequest
	if err := decodeStrict(w, r, &in); err != nil {
		httperr.WriteError(w, r, err)
		return
	}

	if in.Email == "" || in.Password == "" {
		httperr.WriteError(w, r, fmt.Errorf("email and password are required: %w", httperr.ErrBadRequest))
		return
	}

	pair, uid, err := h.service.RegisterUser(r.Context(), in.Email, in.Password, in.Name, requestContext(r))
	if err != nil {
		httperr.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toAuthResponse(pair, uid))
}

// Login аутентифицирует пользователя и возвращает новую пару токенов.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var in loginRequest
	if err := decodeStrict(w, r, &in); err != nil {
		httperr.WriteError(w, r, err)
		return
	}

	if in.Email == "" || in.Password == "" {
		// Неполная форма отдаётся как 401, а не 400: форма логина не должна
		// подсказывать, какие комбинации "ближе" к существующим учёткам.
		httperr.WriteError(w, r, service.ErrInvalidCredentials)
		return
	}

	pair, uid, err := h.service.LoginUser(r.Context(), in.Email, in.Password, requestContext(r))
	if err != nil {
		httperr.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toAuthResponse(pair, uid))
}

// Refresh гасит предъявленный refresh-токен и выдаёт новую пару.
func (h *Handlers) Refresh(w http.ResponseWriter, r *http.Request) {
	var in refreshRequest
	if err := decodeStrict(w, r, &in); err != nil {
		httperr.WriteError(w, r, err)
		return
	}

	if in.RefreshToken == "" {
		httperr.WriteError(w, r, service.ErrInvalidToken)
		return
	}

	pair, uid, err := h.service.RefreshToken(r.Context(), in.RefreshToken, requestContext(r))
	if err != nil {
		httperr.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toAuthResponse(pair, uid))
}

// Logout отзывает refresh-токен. Всегда отвечает 204: логаут идемпотентен,
// и даже битый/просроченный токен не повод вернуть клиенту ошибку
// (см. service.Logout).
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	var in logoutRequest
	if err := decodeStrict(w, r, &in); err != nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	_ = h.service.Logout(r.Context(), in.RefreshToken)

	w.WriteHeader(http.StatusNoContent)
}

// Validate валидирует access-токен.
// Контракт: при невалидном/просроченном токене HTTP-ошибки нет —
// отдаётся {valid:false}.
func (h *Handlers) Validate(w http.ResponseWriter, r *http.Request) {
	var in validateRequest
	if err := decodeStrict(w, r, &in); err != nil {
		httperr.WriteError(w, r, err)
		return
	}

	uid, email, err := h.service.ValidateToken(r.Context(), in.AccessToken)
	if err != nil {
		if errors.Is(err, service.ErrInvalidToken) || errors.Is(err, service.ErrTokenExpired) {
			writeJSON(w, http.StatusOK, validateResponse{Valid: false})
			return
		}

		httperr.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, validateResponse{
		Valid:  true,
		UserID: uid.String(),
		Email:  email,
	})
}

func toAuthResponse(pair *models.TokenPair, uid uuid.UUID) authResponse {
	return authResponse{
		UserID:          uid.String(),
		AccessToken:     pair.AccessToken,
		TokenType:       pair.TokenType,
		AccessExpiresAt: pair.AccessExpiresAt.Unix(),
		RefreshToken:    pair.RefreshToken,
	}
}
