package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	RoleAdmin     = "admin"
	RoleDoctor    = "doctor"
	RoleAssistant = "assistant"
)

var (
	ErrMissingToken = errors.New("missing authorization header")
	ErrInvalidToken = errors.New("invalid token")
)

type contextKey string

const identityKey contextKey = "identity"

type Claims struct {
	jwt.RegisteredClaims
	Roles []string `json:"roles"`
}

// Identity is the authenticated caller of a request.
type Identity struct {
	UserID int64
	Roles  []string
}

// HasRole reports whether the caller holds any of roles. Admins hold every role.
func (i Identity) HasRole(roles ...string) bool {
	for _, has := range i.Roles {
		if has == RoleAdmin {
			return true
		}
		for _, want := range roles {
			if has == want {
				return true
			}
		}
	}
	return false
}

func (i Identity) IsAdmin() bool {
	return i.HasRole(RoleAdmin)
}

func (i Identity) IsDoctor() bool {
	for _, r := range i.Roles {
		if r == RoleDoctor {
			return true
		}
	}
	return false
}

// Verifier validates HS256 bearer tokens.
type Verifier struct {
	key    []byte
	issuer string
}

func NewVerifier(secret, issuer string) *Verifier {
	return &Verifier{key: []byte(secret), issuer: issuer}
}

// ParseHeader validates an Authorization header value of the form "Bearer <token>".
func (v *Verifier) ParseHeader(header string) (*Identity, error) {
	if header == "" {
		return nil, ErrMissingToken
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
		return nil, fmt.Errorf("%w: expected Bearer scheme", ErrInvalidToken)
	}

	return v.Parse(strings.TrimSpace(parts[1]))
}

func (v *Verifier) Parse(tokenStr string) (*Identity, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return v.key, nil
	}, opts...)
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: subject must be a numeric user id", ErrInvalidToken)
	}

	return &Identity{UserID: userID, Roles: claims.Roles}, nil
}

// Sign issues a token for a user. Used by the load simulator and tests; the
// service itself never issues tokens.
func (v *Verifier) Sign(userID int64, roles []string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Roles: roles,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.key)
}

func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// FromContext returns the caller identity, or nil for anonymous requests.
func FromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityKey).(*Identity)
	return id
}
