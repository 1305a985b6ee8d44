package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/StarecMudrec/CardswoodWebsite/internal/auth"
)

// UserIDHeader carries the authenticated Telegram user id to handlers.
const UserIDHeader = "X-User-Id"

// ValidateAuth builds a middleware that requires a valid bearer token.
// The payment callback endpoint must NOT use it: the gateway cannot sign
// in, its requests are authenticated by MNT_SIGNATURE instead.
func ValidateAuth(secret string) Middleware {
	return func(h http.Handler, sugar *zap.SugaredLogger) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "Authorization header is missing", http.StatusUnauthorized)
				return
			}

			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == authHeader {
				http.Error(w, "Invalid token format", http.StatusUnauthorized)
				return
			}

			userID, err := auth.ValidateJWT(tokenString, secret)
			if err != nil {
				sugar.Errorw("Invalid token", "error", err)
				http.Error(w, "Invalid token", http.StatusUnauthorized)
				return
			}

			r.Header.Set(UserIDHeader, strconv.FormatInt(userID, 10))

			h.ServeHTTP(w, r)
		})
	}
}
