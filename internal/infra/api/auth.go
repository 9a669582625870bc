package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"esim-storefront/internal/domain/model"
	"esim-storefront/internal/usecase"

	"github.com/golang-jwt/jwt/v5"
)

// SessionClaims is the storefront session token. Subject carries the user id.
type SessionClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// SessionManager signs and verifies HS256 session tokens carried in a cookie or bearer header.
type SessionManager struct {
	secret     []byte
	cookieName string
	ttl        time.Duration
	secure     bool
}

func NewSessionManager(secret, cookieName string, ttl time.Duration, secure bool) *SessionManager {
	if cookieName == "" {
		cookieName = "session"
	}
	return &SessionManager{secret: []byte(secret), cookieName: cookieName, ttl: ttl, secure: secure}
}

func (m *SessionManager) Mint(userID string, role model.UserRole) (string, error) {
	if len(m.secret) == 0 {
		return "", errors.New("session secret not configured")
	}
	now := time.Now()
	claims := SessionClaims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			Subject:   userID,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

func (m *SessionManager) SetCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(m.ttl.Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// FromRequest resolves the caller. A missing or invalid token yields an anonymous session.
func (m *SessionManager) FromRequest(r *http.Request) usecase.Session {
	var raw string
	if hdr := r.Header.Get("Authorization"); len(hdr) > 7 && strings.EqualFold(hdr[:7], "bearer ") {
		raw = strings.TrimSpace(hdr[7:])
	} else if c, err := r.Cookie(m.cookieName); err == nil {
		raw = c.Value
	}
	if raw == "" || len(m.secret) == 0 {
		return usecase.Session{}
	}
	claims, err := m.parse(raw)
	if err != nil {
		return usecase.Session{}
	}
	return usecase.Session{UserID: claims.Subject, Role: model.UserRole(strings.ToUpper(claims.Role))}
}

func (m *SessionManager) parse(tok string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	tkn, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (any, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !tkn.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

type sessionKey struct{}

// Authenticate stores the resolved session on the request context.
func (m *SessionManager) Authenticate() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), sessionKey{}, m.FromRequest(r))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func sessionFrom(ctx context.Context) usecase.Session {
	s, _ := ctx.Value(sessionKey{}).(usecase.Session)
	return s
}
