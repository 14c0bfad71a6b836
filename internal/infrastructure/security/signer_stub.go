package security

import (
	"strconv"
	"strings"
	"time"

	"github.com/baechuer/meeting-machine/internal/domain"
)

// StubSigner issues readable unsigned tokens for local development and tests.
// Format: "stub.<userID>.<expUnix>"
type StubSigner struct{}

func NewStubSigner() *StubSigner { return &StubSigner{} }

func (s *StubSigner) SignSessionToken(userID string, ttl time.Duration) (string, error) {
	if strings.Contains(userID, ".") {
		return "", domain.ErrTokenSignFailed(nil)
	}
	exp := time.Now().Add(ttl).Unix()
	return "stub." + userID + "." + strconv.FormatInt(exp, 10), nil
}

func (s *StubSigner) VerifySessionToken(token string) (SessionClaims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 || parts[0] != "stub" || parts[1] == "" {
		return SessionClaims{}, domain.ErrTokenInvalid()
	}

	expUnix, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return SessionClaims{}, domain.ErrTokenInvalid()
	}

	exp := time.Unix(expUnix, 0)
	if time.Now().After(exp) {
		return SessionClaims{}, domain.ErrTokenExpired()
	}

	return SessionClaims{UserID: parts[1], Exp: exp}, nil
}
