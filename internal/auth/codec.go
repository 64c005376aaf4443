package auth

import (
	"errors"

	jwt "github.com/golang-jwt/jwt/v5"
)

// TokenType separates access tokens from refresh tokens. The type is fixed at
// issuance and checked on every validation.
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Claims is the fixed payload schema carried by signed tokens. Username is
// present on access tokens only.
type Claims struct {
	Username  string    `json:"username,omitempty"`
	TokenType TokenType `json:"type"`
	jwt.RegisteredClaims
}

// TokenCodec signs and verifies compact HS256 tokens. It holds no mutable
// state and is safe for concurrent use.
type TokenCodec struct {
	secret []byte
	clock  Clock
}

// NewTokenCodec builds a codec. An empty secret is a configuration error.
func NewTokenCodec(secret string, clock Clock) (*TokenCodec, error) {
	if secret == "" {
		return nil, errors.New("auth: signing secret is required")
	}
	if clock == nil {
		clock = SystemClock()
	}
	return &TokenCodec{secret: []byte(secret), clock: clock}, nil
}

// Encode signs claims into the three-segment compact form.
func (c *TokenCodec) Encode(claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(c.secret)
}

// Decode verifies structure, signature and expiry, and returns the claims.
// Expiry is exact: a token is already expired at its own expiresAt instant.
func (c *TokenCodec) Decode(tokenStr string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (any, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidSignature
		}
		return c.secret, nil
	},
		jwt.WithTimeFunc(c.clock.Now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, classifyParseError(err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || claims.TokenType == "" || claims.Subject == "" {
		return nil, ErrMalformedToken
	}
	return claims, nil
}

func classifyParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, ErrInvalidSignature):
		return ErrInvalidSignature
	default:
		// covers jwt.ErrTokenMalformed and schema problems such as a missing exp
		return ErrMalformedToken
	}
}
