package httpapi

import (
	"crypto/subtle"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"dukaanpos/backend/internal/domain"
	"dukaanpos/backend/internal/service"
)

// Auth issues and verifies the bearer tokens used by the counter terminals,
// rate limits login attempts and gates destructive actions on a manager PIN.
type Auth struct {
	secret     []byte
	tokenTTL   time.Duration
	managerPIN string
	limiter    *attemptLimiter
	logger     *log.Logger
}

func NewAuth(secret, managerPIN string, tokenTTL time.Duration, logger *log.Logger) *Auth {
	return &Auth{
		secret:     []byte(secret),
		tokenTTL:   tokenTTL,
		managerPIN: managerPIN,
		limiter:    newAttemptLimiter(5, time.Minute),
		logger:     logger,
	}
}

func (a *Auth) IssueToken(user domain.UserAccount) (string, time.Time, error) {
	expires := time.Now().Add(a.tokenTTL)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  user.Username,
		"role": user.Role,
		"iat":  time.Now().Unix(),
		"exp":  expires.Unix(),
	})
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expires, nil
}

func (a *Auth) verifyToken(raw string) (domain.Actor, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return domain.Actor{}, fmt.Errorf("invalid token: %w", err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return domain.Actor{}, fmt.Errorf("invalid token claims")
	}
	sub, _ := claims["sub"].(string)
	role, _ := claims["role"].(string)
	if sub == "" {
		return domain.Actor{}, fmt.Errorf("invalid token subject")
	}
	return domain.Actor{Username: sub, Role: role}, nil
}

// requireAuth authenticates the bearer token and stamps the actor onto the
// request context for audit attribution.
func (a *Auth) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		raw, found := strings.CutPrefix(header, "Bearer ")
		if !found || raw == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		actor, err := a.verifyToken(raw)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}
		next(w, r.WithContext(service.WithActor(r.Context(), actor)))
	}
}

// requireRole additionally restricts a handler to one role.
func (a *Auth) requireRole(role string, next http.HandlerFunc) http.HandlerFunc {
	return a.requireAuth(func(w http.ResponseWriter, r *http.Request) {
		if actor := service.ActorFromContext(r.Context()); actor.Role != role {
			writeError(w, http.StatusForbidden, "insufficient privileges")
			return
		}
		next(w, r)
	})
}

func (a *Auth) checkManagerPIN(pin string) bool {
	if a.managerPIN == "" || pin == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a.managerPIN), []byte(pin)) == 1
}

func (a *Auth) allowLogin(r *http.Request) bool {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return a.limiter.allow(host)
}

// attemptLimiter caps attempts per key inside a sliding window.
type attemptLimiter struct {
	mu       sync.Mutex
	max      int
	window   time.Duration
	attempts map[string][]time.Time
}

func newAttemptLimiter(max int, window time.Duration) *attemptLimiter {
	return &attemptLimiter{
		max:      max,
		window:   window,
		attempts: make(map[string][]time.Time),
	}
}

func (l *attemptLimiter) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	recent := l.attempts[key][:0]
	for _, at := range l.attempts[key] {
		if now.Sub(at) < l.window {
			recent = append(recent, at)
		}
	}
	if len(recent) >= l.max {
		l.attempts[key] = recent
		return false
	}
	l.attempts[key] = append(recent, now)
	return true
}
