package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/LucasBuchC/takeone-ai/internal/domain"
	"github.com/LucasBuchC/takeone-ai/internal/infra/logging"
	"github.com/LucasBuchC/takeone-ai/internal/usecase"
)

var (
	errMissingToken = errors.New("missing token")
	errInvalidToken = errors.New("invalid token")
)

// Claims is the subset of the auth provider's access token we rely on.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// AuthManager validates HS256 access tokens issued by the auth provider.
type AuthManager struct {
	secret     []byte
	cookieName string
}

func NewAuthManager(secret, cookieName string) *AuthManager {
	return &AuthManager{secret: []byte(secret), cookieName: cookieName}
}

func (a *AuthManager) ParseFromRequest(r *http.Request) (*Claims, error) {
	if hdr := r.Header.Get("Authorization"); hdr != "" {
		if len(hdr) > 7 && strings.EqualFold(hdr[:7], "bearer ") {
			return a.parse(strings.TrimSpace(hdr[7:]))
		}
	}
	if c, err := r.Cookie(a.cookieName); err == nil && c.Value != "" {
		return a.parse(c.Value)
	}
	return nil, errMissingToken
}

func (a *AuthManager) parse(tok string) (*Claims, error) {
	claims := &Claims{}
	tkn, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !tkn.Valid || claims.Subject == "" {
		return nil, errInvalidToken
	}
	return claims, nil
}

type accountKey struct{}

// AccountIDFrom returns the authenticated account id, or "".
func AccountIDFrom(ctx context.Context) string {
	v, _ := ctx.Value(accountKey{}).(string)
	return v
}

// Authenticate rejects requests without a valid token and provisions a
// free-tier profile the first time an account is seen.
func Authenticate(auth *AuthManager, accounts usecase.AccountUseCase, logger *zerolog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := auth.ParseFromRequest(r)
			if err != nil {
				writeError(w, r, logger, domain.ErrUnauthorized)
				return
			}
			if _, err := accounts.Ensure(r.Context(), claims.Subject, claims.Email); err != nil {
				writeError(w, r, logger, err)
				return
			}
			ctx := context.WithValue(r.Context(), accountKey{}, claims.Subject)
			ctx = logging.WithUserID(ctx, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
