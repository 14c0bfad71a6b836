package security

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/baechuer/meeting-machine/internal/domain"
)

// SessionClaims is what a verified session token carries.
type SessionClaims struct {
	UserID string
	Exp    time.Time
}

// JWTSigner issues and checks HS256 session tokens. Rotating the secret
// invalidates every outstanding token; there is no revocation list.
type JWTSigner struct {
	key    []byte
	issuer string
	parser *jwt.Parser
	now    func() time.Time
}

func NewJWTSigner(secret, issuer string) *JWTSigner {
	return &JWTSigner{
		key:    []byte(secret),
		issuer: issuer,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(issuer),
			jwt.WithExpirationRequired(),
		),
		now: time.Now,
	}
}

// tokenClaims is the JWT body: the user id under "uid" plus registered claims.
type tokenClaims struct {
	UID string `json:"uid"`
	jwt.RegisteredClaims
}

func (s *JWTSigner) SignSessionToken(userID string, ttl time.Duration) (string, error) {
	issued := s.now()
	body := tokenClaims{
		UID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(issued.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, body).SignedString(s.key)
	if err != nil {
		return "", domain.ErrTokenSignFailed(err)
	}
	return signed, nil
}

// VerifySessionToken returns token_expired for a well-signed token past its
// exp and token_invalid for every other failure.
func (s *JWTSigner) VerifySessionToken(token string) (SessionClaims, error) {
	var body tokenClaims
	_, err := s.parser.ParseWithClaims(token, &body, func(*jwt.Token) (any, error) {
		return s.key, nil
	})
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return SessionClaims{}, domain.ErrTokenExpired()
	case err != nil, body.UID == "":
		return SessionClaims{}, domain.ErrTokenInvalid()
	}

	return SessionClaims{UserID: body.UID, Exp: body.ExpiresAt.Time}, nil
}
