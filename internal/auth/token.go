// Package auth issues and verifies API credentials.
package auth

import (
	"context"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for malformed, expired or mistyped tokens.
var ErrInvalidToken = errors.New("invalid token")

// TokenType distinguishes access tokens from refresh tokens.
type TokenType string

const (
	TokenAccess  TokenType = "access"
	TokenRefresh TokenType = "refresh"
)

// Claims are the JWT claims of both token types. Subject holds the user id.
type Claims struct {
	Staff bool      `json:"staff,omitempty"`
	Type  TokenType `json:"token_type"`
	jwt.RegisteredClaims
}

// Principal is the authenticated caller.
type Principal struct {
	UserID int64
	Staff  bool
}

type principalKey struct{}

// WithPrincipal stores p in ctx.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the caller stored by WithPrincipal.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

// Pair is an access/refresh token pair.
type Pair struct {
	Access           string
	Refresh          string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// Issuer signs and verifies HS256 tokens.
type Issuer struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// IssuerConfig configures an Issuer.
type IssuerConfig struct {
	Secret     string
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// NewIssuer creates an Issuer. The secret must be at least 32 bytes.
func NewIssuer(cfg IssuerConfig) (*Issuer, error) {
	if len(cfg.Secret) < 32 {
		return nil, errors.New("jwt secret must have at least 32 bytes")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("token TTLs must be positive")
	}
	return &Issuer{
		secret:     []byte(cfg.Secret),
		issuer:     cfg.Issuer,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		now:        time.Now,
	}, nil
}

// Issue returns a fresh token pair for the user.
func (i *Issuer) Issue(userID int64, staff bool) (*Pair, error) {
	access, accessExp, err := i.sign(userID, staff, TokenAccess, i.accessTTL)
	if err != nil {
		return nil, errors.Wrap(err, "sign access token")
	}
	refresh, refreshExp, err := i.sign(userID, staff, TokenRefresh, i.refreshTTL)
	if err != nil {
		return nil, errors.Wrap(err, "sign refresh token")
	}
	return &Pair{
		Access:           access,
		Refresh:          refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// Access signs a new access token. Callers exchanging a refresh token pass
// the user's current staff flag, not the one carried by the refresh token.
func (i *Issuer) Access(userID int64, staff bool) (string, time.Time, error) {
	token, exp, err := i.sign(userID, staff, TokenAccess, i.accessTTL)
	if err != nil {
		return "", time.Time{}, errors.Wrap(err, "sign access token")
	}
	return token, exp, nil
}

// Verify parses token and checks it has type want.
func (i *Issuer) Verify(token string, want TokenType) (Principal, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
		jwt.WithExpirationRequired(),
	}
	if i.issuer != "" {
		opts = append(opts, jwt.WithIssuer(i.issuer))
	}

	var claims Claims
	if _, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	}, opts...); err != nil {
		return Principal{}, errors.Wrap(ErrInvalidToken, err.Error())
	}
	if claims.Type != want {
		return Principal{}, errors.Wrapf(ErrInvalidToken, "want %s token, got %q", want, claims.Type)
	}

	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id <= 0 {
		return Principal{}, errors.Wrap(ErrInvalidToken, "bad subject")
	}
	return Principal{UserID: id, Staff: claims.Staff}, nil
}

func (i *Issuer) sign(userID int64, staff bool, typ TokenType, ttl time.Duration) (string, time.Time, error) {
	now := i.now()
	exp := now.Add(ttl)
	claims := Claims{
		Staff: staff,
		Type:  typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return s, exp, nil
}
