package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"cleanline/internal/domain"
)

type jwtClaims struct {
	jwt.RegisteredClaims
	Email string      `json:"email,omitempty"`
	Role  domain.Role `json:"role,omitempty"`
}

func issueToken(secret string, user domain.User, now time.Time, ttl time.Duration) (string, error) {
	claims := jwtClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Email: user.Email,
		Role:  user.Role,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func authenticateJWT(token, secret string) (string, error) {
	if strings.TrimSpace(secret) == "" {
		return "", errors.New("jwt secret not configured")
	}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	claims := &jwtClaims{}
	parsed, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return "", err
	}
	if !parsed.Valid {
		return "", errors.New("invalid token")
	}
	if claims.Subject == "" {
		return "", errors.New("subject claim required")
	}
	return claims.Subject, nil
}

// Authenticate checks credentials and stamps lastLoginAt on success.
func (s *State) Authenticate(email, password string) (domain.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.passwords[email]
	if !ok || password == "" || stored != password {
		return domain.User{}, false
	}
	for id, u := range s.users {
		if u.Email == email {
			if !u.IsActive {
				return domain.User{}, false
			}
			u.LastLoginAt = s.timestamp()
			s.users[id] = u
			return u, true
		}
	}
	return domain.User{}, false
}

func bearerToken(authz string) (string, bool) {
	parts := strings.Fields(authz)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return parts[1], true
}

type principalKey struct{}

func withPrincipal(ctx context.Context, u domain.User) context.Context {
	return context.WithValue(ctx, principalKey{}, u)
}

func principalFromContext(ctx context.Context) (domain.User, bool) {
	u, ok := ctx.Value(principalKey{}).(domain.User)
	return u, ok
}

// openPaths need no bearer token.
var openPaths = map[string]bool{
	"/health":        true,
	"/auth/login":    true,
	"/auth/register": true,
}

func newAuthMiddleware(secret string, st *State, logger *log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if openPaths[req.URL.Path] {
				next.ServeHTTP(w, req)
				return
			}
			authz := strings.TrimSpace(req.Header.Get("Authorization"))
			token, ok := bearerToken(authz)
			if !ok {
				respondUnauthorized(w, "authentication required")
				return
			}
			userID, err := authenticateJWT(token, secret)
			if err != nil {
				if logger != nil {
					logger.Printf("rejected token: %v", err)
				}
				respondUnauthorized(w, "invalid or expired session")
				return
			}
			user, ok := st.UserByID(userID)
			if !ok || !user.IsActive {
				respondUnauthorized(w, "invalid or expired session")
				return
			}
			next.ServeHTTP(w, req.WithContext(withPrincipal(req.Context(), user)))
		})
	}
}

func respondUnauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{"message": msg})
}
