// redact содержит хелперы для безопасного вывода чувствительных значений в логи.
// Секреты (пароли, токены) в логи не попадают никогда; email маскируется
// до первых двух символов локальной части.
package redact

import "strings"

// Email маскирует локальную часть адреса: "alice@x.com" -> "al***@x.com".
func Email(s string) string {
	local, domain, ok := strings.Cut(s, "@")
	if !ok || domain == "" {
		return "***"
	}

	if len(local) > 2 {
		local = local[:2] + "***"
	} else {
		local = "***"
	}

	return local + "@" + domain
}

// Token — плейсхолдер вместо значения любого токена.
func Token() string { return "[REDACTED_TOKEN]" }

// Password — плейсхолдер вместо пароля.
func Password() string { return "[REDACTED_PASSWORD]" }
