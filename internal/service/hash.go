package service

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// hashPassword хэширует пароль с помощью bcrypt.
func hashPassword(password string) (string, error) {
	const op = "service.hash.hashPassword"

	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return string(bytes), nil
}

// checkPassword сравнивает пароль с хэшем. Сравнение внутри bcrypt
// константно по времени; битый хэш — это false, а не ошибка.
func checkPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// hashRefreshString хэширует подписанную строку refresh-токена для хранения
// в леджере. bcrypt ограничен 72 байтами входа, а подписанный JWT длиннее,
// поэтому строка сначала сворачивается в sha256-дайджест.
func hashRefreshString(plain string) (string, error) {
	const op = "service.hash.hashRefreshString"

	bytes, err := bcrypt.GenerateFromPassword(refreshDigest(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return string(bytes), nil
}

// checkRefreshString сверяет предъявленную строку refresh-токена с хэшем из леджера.
func checkRefreshString(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), refreshDigest(plain)) == nil
}

func refreshDigest(plain string) []byte {
	sum := sha256.Sum256([]byte(plain))
	return []byte(base64.RawURLEncoding.EncodeToString(sum[:]))
}
