package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	logctx "github.com/pribylovaa/sessions-service/internal/pkg/log"
	"github.com/pribylovaa/sessions-service/internal/transport/http/httperr"
)

// Recover перехватывает panic, конвертирует в 500/internal и пишет
// унифицированный ответ. Детали паники не утекают на клиент.
func Recover() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logctx.From(r.Context()).
						LogAttrs(r.Context(), slog.LevelError, "panic_recovered",
							slog.String("path", r.URL.Path),
							slog.Any("reason", rec),
							slog.String("stack", string(debug.Stack())),
						)
					httperr.WriteError(w, r, fmt.Errorf("internal"))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
