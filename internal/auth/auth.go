package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gofrs/uuid"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrNotAdmin     = errors.New("invalid admin credentials")
)

// Identity is the authenticated end user behind a request.
type Identity struct {
	UserID uuid.UUID
	Email  string
}

type Claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Verifier validates end-user access tokens issued by the identity provider.
type Verifier interface {
	Verify(token string) (*Identity, error)
}

type jwtVerifier struct {
	secret []byte
	issuer string
}

func NewJWTVerifier(secret, issuer string) Verifier {
	return &jwtVerifier{secret: []byte(secret), issuer: issuer}
}

func (v *jwtVerifier) Verify(token string) (*Identity, error) {
	if token == "" {
		return nil, ErrMissingToken
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	userID, err := uuid.FromString(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("%w: subject is not a user id", ErrInvalidToken)
	}
	return &Identity{UserID: userID, Email: claims.Email}, nil
}

// AdminChecker compares a presented token to the configured admin secret.
type AdminChecker struct {
	secret string
}

func NewAdminChecker(secret string) *AdminChecker {
	return &AdminChecker{secret: secret}
}

// Check accepts token when it equals the secret, or, when the secret is a
// bcrypt hash, when it matches the hash.
func (a *AdminChecker) Check(token string) error {
	if token == "" || a.secret == "" {
		return ErrNotAdmin
	}
	if strings.HasPrefix(a.secret, "$2") {
		if bcrypt.CompareHashAndPassword([]byte(a.secret), []byte(token)) != nil {
			return ErrNotAdmin
		}
		return nil
	}
	if subtle.ConstantTimeCompare([]byte(a.secret), []byte(token)) != 1 {
		return ErrNotAdmin
	}
	return nil
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

type contextKey struct{}

func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

func FromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(*Identity)
	return id, ok && id != nil
}

// UserID returns the authenticated user id, or nil for anonymous requests.
func UserID(ctx context.Context) *uuid.UUID {
	id, ok := FromContext(ctx)
	if !ok {
		return nil
	}
	userID := id.UserID
	return &userID
}
