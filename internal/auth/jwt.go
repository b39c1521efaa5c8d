package auth

import (
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/cookiedrop/kitchenhub/pkg/errors"
)

// Identity is who a socket belongs to and which kitchen it may watch
type Identity struct {
	UserID    int64
	KitchenID int64
}

// Authenticator resolves the identity behind an upgrade request
type Authenticator interface {
	Authenticate(r *http.Request) (Identity, error)
}

// Claims is the token payload
type Claims struct {
	UserID    int64 `json:"user_id"`
	KitchenID int64 `json:"kitchen_id"`
	jwt.RegisteredClaims
}

// JWTAuthenticator validates HS256 tokens
type JWTAuthenticator struct {
	secret []byte
	parser *jwt.Parser
}

// NewJWTAuthenticator creates an authenticator for tokens signed with secret.
// A non-empty issuer must match the iss claim. now may be nil.
func NewJWTAuthenticator(secret, issuer string, now func() time.Time) *JWTAuthenticator {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	if now != nil {
		opts = append(opts, jwt.WithTimeFunc(now))
	}

	return &JWTAuthenticator{
		secret: []byte(secret),
		parser: jwt.NewParser(opts...),
	}
}

// Authenticate reads the token from the token query parameter or a Bearer
// Authorization header.
func (a *JWTAuthenticator) Authenticate(r *http.Request) (Identity, error) {
	raw := TokenFromRequest(r)
	if raw == "" {
		return Identity{}, errors.New(errors.ErrorTypeUnauthorized, "TOKEN_REQUIRED", "token is required")
	}

	return a.Verify(raw)
}

// Verify parses a raw token and returns its identity
func (a *JWTAuthenticator) Verify(raw string) (Identity, error) {
	var claims Claims
	_, err := a.parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	})
	if err != nil {
		return Identity{}, errors.Wrap(err, errors.ErrorTypeUnauthorized, "INVALID_TOKEN", "invalid token")
	}

	if claims.UserID == 0 || claims.KitchenID == 0 {
		return Identity{}, errors.New(errors.ErrorTypeUnauthorized, "INVALID_CLAIMS", "token lacks user or kitchen").
			WithDetails("user_id and kitchen_id are required")
	}

	return Identity{UserID: claims.UserID, KitchenID: claims.KitchenID}, nil
}

// TokenFromRequest returns the raw token of a request, or ""
func TokenFromRequest(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return strings.TrimPrefix(token, "Bearer ")
	}

	header := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(token)
	}

	return ""
}

// IssueToken signs a token for identity valid for ttl from now
func IssueToken(secret, issuer string, identity Identity, ttl time.Duration, now time.Time) (string, error) {
	claims := Claims{
		UserID:    identity.UserID,
		KitchenID: identity.KitchenID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeInternal, "SIGN_FAILED", "failed to sign token")
	}
	return signed, nil
}
