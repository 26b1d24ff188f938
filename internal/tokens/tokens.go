package tokens

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultStateTTL bounds how long a user may sit on a provider consent page.
const DefaultStateTTL = 10 * time.Minute

var ErrInvalidState = errors.New("invalid oauth state")

// StateClaims bind an OAuth round trip to the browser session that started it.
type StateClaims struct {
	Provider string `json:"provider"`
	SID      string `json:"sid"`
	Nonce    string `json:"nonce,omitempty"`
	jwt.RegisteredClaims
}

// StateSigner issues and checks HS256-signed OAuth state values.
type StateSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewStateSigner(secret string, ttl time.Duration) *StateSigner {
	if ttl <= 0 {
		ttl = DefaultStateTTL
	}
	return &StateSigner{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue creates a signed state for provider bound to session sid. Nonce may be empty.
func (s *StateSigner) Issue(provider, sid, nonce string) (string, error) {
	if len(s.secret) == 0 {
		return "", errors.New("state secret not configured")
	}
	now := s.now()
	claims := StateClaims{
		Provider: provider,
		SID:      sid,
		Nonce:    nonce,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	jt := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return jt.SignedString(s.secret)
}

// Verify checks signature, expiry, provider and session binding.
func (s *StateSigner) Verify(raw, provider, sid string) (*StateClaims, error) {
	var claims StateClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	if claims.Provider != provider {
		return nil, fmt.Errorf("%w: provider mismatch", ErrInvalidState)
	}
	if sid == "" || claims.SID != sid {
		return nil, fmt.Errorf("%w: session mismatch", ErrInvalidState)
	}
	return &claims, nil
}

// NewNonce returns a random hex string for single-use flow markers.
func NewNonce() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
