package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"opticalfiber-backend/internal/domain"
	"opticalfiber-backend/internal/domain/model"
	"opticalfiber-backend/internal/infra/logging"
)

// StaffClaims identify a staff member. The subject is the staff id.
type StaffClaims struct {
	CompanyID string `json:"company_id"`
	Role      string `json:"role"`
	Name      string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

type AuthManager struct {
	secret []byte
	log    *zerolog.Logger
}

func NewAuthManager(secret string, logger *zerolog.Logger) *AuthManager {
	l := logger.With().Str("component", "api.Auth").Logger()
	return &AuthManager{secret: []byte(secret), log: &l}
}

// Mint signs a bearer token for p. Used by tooling and tests; staff login
// lives outside this service.
func (a *AuthManager) Mint(p *model.Principal, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := StaffClaims{
		CompanyID: p.CompanyID,
		Role:      string(p.Role),
		Name:      p.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Subject:   p.StaffID,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// ParseFromRequest resolves the principal from an Authorization: Bearer header.
func (a *AuthManager) ParseFromRequest(r *http.Request) (*model.Principal, error) {
	hdr := r.Header.Get("Authorization")
	if len(hdr) < 7 || !strings.EqualFold(hdr[:7], "bearer ") {
		return nil, domain.ErrUnauthenticated
	}
	claims := &StaffClaims{}
	tkn, err := jwt.ParseWithClaims(strings.TrimSpace(hdr[7:]), claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !tkn.Valid {
		return nil, errors.Join(domain.ErrUnauthenticated, err)
	}
	return model.NewPrincipal(claims.Subject, claims.CompanyID, model.StaffRole(claims.Role), claims.Name)
}

// Middleware rejects requests without a valid token and stores the
// principal in the request context.
func (a *AuthManager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := a.ParseFromRequest(r)
		if err != nil {
			l := logging.With(r.Context(), a.log)
			l.Debug().Err(err).Msg("request rejected: unauthenticated")
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "unauthenticated", Message: "valid bearer token required"})
			return
		}
		ctx := withPrincipal(r.Context(), p)
		ctx = logging.WithCompanyID(ctx, p.CompanyID)
		ctx = logging.WithStaffID(ctx, p.StaffID)
		scopeRequest(w, ctx)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type principalKey struct{}

func withPrincipal(ctx context.Context, p *model.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the authenticated principal, or nil.
func PrincipalFrom(ctx context.Context) *model.Principal {
	p, _ := ctx.Value(principalKey{}).(*model.Principal)
	return p
}
