package models

import "time"

// TokenTypeBearer — единственный поддерживаемый тип access-токена.
const TokenTypeBearer = "bearer"

// TokenPair — пара токенов, выдаваемая при регистрации/логине/обновлении.
//
// Описание:
//   - AccessToken — короткоживущий JWT для доступа к API;
//   - RefreshToken — долгоживущий одноразовый JWT для выпуска новой пары;
//   - TokenType — всегда "bearer";
//   - AccessExpiresAt — момент истечения access-токена (UTC), взят из exp
//     самого токена.
type TokenPair struct {
	AccessToken     string
	RefreshToken    string
	TokenType       string
	AccessExpiresAt time.Time
}
