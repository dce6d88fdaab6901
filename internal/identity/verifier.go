// Package identity verifies the bearer tokens issued by the identity provider.
package identity

import (
	"errors"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"

	"membership-service/internal/models"
)

var (
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("token invalid")
)

// Claims are the identity provider's token claims.
type Claims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	PhotoURL string `json:"photo_url,omitempty"`
	jwtv5.RegisteredClaims
}

// Verifier checks HS256 tokens signed with a shared secret.
type Verifier struct {
	secret []byte
	issuer string
}

// NewVerifier constructs a Verifier. An empty issuer accepts any issuer.
func NewVerifier(secret, issuer string) *Verifier {
	return &Verifier{secret: []byte(secret), issuer: issuer}
}

// Verify parses the token and returns the caller it identifies.
func (v *Verifier) Verify(token string) (models.User, error) {
	opts := []jwtv5.ParserOption{jwtv5.WithValidMethods([]string{jwtv5.SigningMethodHS256.Alg()})}
	if v.issuer != "" {
		opts = append(opts, jwtv5.WithIssuer(v.issuer))
	}

	parsed, err := jwtv5.ParseWithClaims(token, &Claims{}, func(t *jwtv5.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwtv5.ErrTokenExpired) {
			return models.User{}, ErrTokenExpired
		}
		return models.User{}, ErrTokenInvalid
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.UserID == "" {
		return models.User{}, ErrTokenInvalid
	}
	return models.User{ID: claims.UserID, Username: claims.Username, PhotoURL: claims.PhotoURL}, nil
}

// Sign issues a token for user. It is used by tests and local tooling; the
// identity provider signs production tokens.
func (v *Verifier) Sign(user models.User, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:   user.ID,
		Username: user.Username,
		PhotoURL: user.PhotoURL,
		RegisteredClaims: jwtv5.RegisteredClaims{
			Issuer:    v.issuer,
			IssuedAt:  jwtv5.NewNumericDate(now),
			ExpiresAt: jwtv5.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims).SignedString(v.secret)
}
