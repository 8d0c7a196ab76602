package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/securecookie"

	"github.com/magpie-software/pical/internal/repository"
)

const SessionCookieName = "pical_session"

// Sessions issues and validates the single-user login cookie. The cookie
// payload is just an "authenticated" marker; securecookie signs it.
type Sessions struct {
	codec *securecookie.SecureCookie
}

func NewSessions(secret string) *Sessions {
	hashKey := []byte(secret)
	return &Sessions{codec: securecookie.New(hashKey, nil)}
}

func (sessions *Sessions) Issue(w http.ResponseWriter) error {
	encoded, err := sessions.codec.Encode(SessionCookieName, map[string]string{"authenticated": "true"})
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    encoded,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().AddDate(0, 1, 0),
	})
	return nil
}

func (sessions *Sessions) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
}

func (sessions *Sessions) Valid(r *http.Request) bool {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return false
	}
	var payload map[string]string
	if err := sessions.codec.Decode(SessionCookieName, cookie.Value, &payload); err != nil {
		return false
	}
	return payload["authenticated"] == "true"
}

func RequireSession(sessions *Sessions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !sessions.Valid(r) {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// APITokenAuth accepts a bearer token whose hash matches a stored,
// unexpired api-scoped token.
func APITokenAuth(tokenRepo repository.APITokenRepository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			tokenHash := repository.HashToken(tokenString)

			token, err := tokenRepo.FindByTokenHash(r.Context(), tokenHash)
			if err != nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			if token.Scope != "api" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			if token.ExpiresAt != nil && token.ExpiresAt.Before(time.Now()) {
				http.Error(w, "Token expired", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
