package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/HerbHall/devicepulse/pkg/models"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// Authorities carried in the token's scopes claim.
const (
	AuthoritySysAdmin     = "SYS_ADMIN"
	AuthorityTenantAdmin  = "TENANT_ADMIN"
	AuthorityCustomerUser = "CUSTOMER_USER"
)

// Claims is the JWT payload issued to API users.
type Claims struct {
	TenantID   string   `json:"tenantId"`
	CustomerID string   `json:"customerId,omitempty"`
	Authority  string   `json:"authority,omitempty"`
	Scopes     []string `json:"scopes,omitempty"`
	jwt.RegisteredClaims
}

// Identity is the authenticated caller of a request.
type Identity struct {
	Subject    string
	TenantID   models.TenantID
	CustomerID models.CustomerID
	Authority  string
}

type identityKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom returns the identity stored by the auth middleware.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

// Authenticator verifies HS256 bearer tokens.
type Authenticator struct {
	secret []byte
	parser *jwt.Parser
	logger *zap.Logger
}

// NewAuthenticator creates an Authenticator that verifies tokens signed with secret.
func NewAuthenticator(secret []byte, logger *zap.Logger) *Authenticator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Authenticator{
		secret: secret,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
		),
		logger: logger,
	}
}

// Authenticate validates tokenStr and returns the identity it carries.
func (a *Authenticator) Authenticate(tokenStr string) (Identity, error) {
	var claims Claims
	_, err := a.parser.ParseWithClaims(tokenStr, &claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	})
	if err != nil {
		return Identity{}, fmt.Errorf("parse token: %w", err)
	}

	tenantID, err := models.ParseTenantID(claims.TenantID)
	if err != nil {
		return Identity{}, err
	}
	customerID, err := models.ParseCustomerID(claims.CustomerID)
	if err != nil {
		return Identity{}, err
	}
	authority := claims.Authority
	if authority == "" && len(claims.Scopes) > 0 {
		authority = claims.Scopes[0]
	}
	if authority == "" {
		return Identity{}, errors.New("token carries no authority")
	}

	return Identity{
		Subject:    claims.Subject,
		TenantID:   tenantID,
		CustomerID: customerID,
		Authority:  authority,
	}, nil
}

// IssueToken signs a token for id that expires ttl after now.
func (a *Authenticator) IssueToken(id Identity, now time.Time, ttl time.Duration) (string, error) {
	claims := Claims{
		TenantID:  id.TenantID.String(),
		Authority: id.Authority,
		Scopes:    []string{id.Authority},
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.Subject,
			Issuer:    "devicepulse",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if !id.CustomerID.IsZero() {
		claims.CustomerID = id.CustomerID.String()
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Middleware rejects requests without a valid bearer token and stores the
// caller's Identity in the request context.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenStr := bearerToken(r)
		if tokenStr == "" {
			Unauthorized(w, "missing bearer token", r.URL.Path)
			return
		}
		id, err := a.Authenticate(tokenStr)
		if err != nil {
			a.logger.Debug("rejected token", zap.String("path", r.URL.Path), zap.Error(err))
			Unauthorized(w, "invalid token", r.URL.Path)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}

// RequireAuthority allows only callers whose authority is in allowed.
func RequireAuthority(allowed ...string) func(http.Handler) http.Handler {
	set := make(map[string]struct{}, len(allowed))
	for _, a := range allowed {
		set[a] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFrom(r.Context())
			if !ok {
				Unauthorized(w, "unauthenticated", r.URL.Path)
				return
			}
			if _, ok := set[id.Authority]; !ok {
				Forbidden(w, "authority "+id.Authority+" may not access this resource", r.URL.Path)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if len(auth) > 7 && strings.EqualFold(auth[:7], "Bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	// Some dashboards send the token in X-Authorization instead.
	if tok := r.Header.Get("X-Authorization"); len(tok) > 7 && strings.EqualFold(tok[:7], "Bearer ") {
		return strings.TrimSpace(tok[7:])
	}
	return ""
}
