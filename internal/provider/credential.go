package provider

import (
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const credentialTTL = 15 * time.Minute

// refresh this long before expiry so in-flight requests never carry a token
// that dies mid-call
const credentialSkew = 30 * time.Second

// Credential is a process-wide token source for outbound calls to the
// directory and resource authority. It is initialized once, safe for
// concurrent use, and caches the signed token until near expiry instead of
// minting one per call.
type Credential struct {
	secret  []byte
	subject string

	mu      sync.Mutex
	token   string
	expires time.Time
}

// NewCredential builds a credential from the shared service secret.
func NewCredential(secret, subject string) (*Credential, error) {
	if secret == "" {
		return nil, errors.New("credential: service secret is not configured")
	}
	if subject == "" {
		subject = "zsp-gateway"
	}
	return &Credential{secret: []byte(secret), subject: subject}, nil
}

// Token returns a valid signed token, minting a fresh one when the cached
// token is absent or close to expiry.
func (c *Credential) Token() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now().UTC()
	if c.token != "" && now.Before(c.expires.Add(-credentialSkew)) {
		return c.token, nil
	}

	expires := now.Add(credentialTTL)
	claims := jwt.RegisteredClaims{
		Issuer:    "zsp-gateway",
		Subject:   c.subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expires),
		ID:        uuid.NewString(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", err
	}
	c.token = signed
	c.expires = expires
	return signed, nil
}
