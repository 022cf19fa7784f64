package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/jfelder/stockroom/internal/auth"
	"github.com/jfelder/stockroom/internal/store"
)

// RequireAuth validates the bearer token on the Authorization header and
// populates AuthContext. Expired and unknown tokens get a 401.
func RequireAuth(tokenStore *store.TokenStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				unauthenticated(w)
				return
			}

			t, err := tokenStore.GetByToken(token)
			if err != nil || t == nil {
				unauthenticated(w)
				return
			}

			ac := auth.AuthContext{
				UserID:  t.UserID,
				TokenID: t.ID,
			}

			ctx := auth.WithAuth(r.Context(), ac)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	value, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return ""
	}
	return strings.TrimSpace(value)
}

func unauthenticated(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"message": "Unauthenticated."})
}
