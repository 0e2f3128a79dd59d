// Package pkce generates the PKCE code verifier / code challenge pair
// (RFC 7636) and the opaque nonces used to correlate authorization
// attempts.
package pkce

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"math/big"

	"github.com/mcpconsole/oauth-broker/internal/serviceerr"
)

const MethodS256 = "S256"
const MethodPlain = "plain"

// verifierBytes is the amount of raw entropy per verifier. 32 bytes
// base64url-encode to 43 characters, the RFC 7636 minimum length.
const verifierBytes = 32

type PKCE struct {
	Verifier  string
	Challenge string
	Method    string
}

type Option func(*Source)

// WithReader overrides the randomness source. Used by tests to simulate a
// runtime without secure randomness; there is no insecure fallback.
func WithReader(r io.Reader) Option {
	return func(s *Source) { s.rand = r }
}

// WithPlainFallback permits the "plain" challenge method when no digest
// function is available. Off by default: production deployments must
// guarantee SHA-256 and never downgrade silently.
func WithPlainFallback() Option {
	return func(s *Source) { s.allowPlain = true }
}

// withoutDigest simulates a runtime lacking a secure hash primitive.
func withoutDigest() Option {
	return func(s *Source) { s.sum = nil }
}

type Source struct {
	rand       io.Reader
	sum        func([]byte) []byte
	allowPlain bool
}

func New(opts ...Option) Source {
	s := Source{
		rand: rand.Reader,
		sum: func(b []byte) []byte {
			d := sha256.Sum256(b)
			return d[:]
		},
	}
	for _, opt := range opts {
		opt(&s)
	}

	return s
}

func (s Source) randBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(s.rand, b); err != nil {
		return nil, fmt.Errorf("%w: %w", serviceerr.ErrCryptoUnavailable, err)
	}

	return b, nil
}

func (s Source) randString(n int) (string, error) {
	const letters = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz-"

	ret := make([]byte, n)
	for i := range n {
		num, err := rand.Int(s.rand, big.NewInt(int64(len(letters))))
		if err != nil {
			return "", fmt.Errorf("%w: %w", serviceerr.ErrCryptoUnavailable, err)
		}
		ret[i] = letters[num.Int64()]
	}

	return string(ret), nil
}

// Verifier returns a fresh code verifier: base64url without padding,
// 43 characters of the RFC 7636 unreserved set.
func (s Source) Verifier() (string, error) {
	raw, err := s.randBytes(verifierBytes)
	if err != nil {
		return "", err
	}

	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// Challenge derives the code challenge for a verifier. The method is
// "S256" unless the digest primitive is missing, in which case the
// verifier itself is returned with method "plain" when the source was
// built with WithPlainFallback, and an error otherwise.
func (s Source) Challenge(verifier string) (challenge, method string, err error) {
	if s.sum == nil {
		if !s.allowPlain {
			return "", "", fmt.Errorf("%w: SHA-256 unavailable and plain method not permitted", serviceerr.ErrCryptoUnavailable)
		}

		return verifier, MethodPlain, nil
	}

	return base64.RawURLEncoding.EncodeToString(s.sum([]byte(verifier))), MethodS256, nil
}

// PKCE returns a fresh verifier/challenge pair.
func (s Source) PKCE() (PKCE, error) {
	verifier, err := s.Verifier()
	if err != nil {
		return PKCE{}, err
	}

	challenge, method, err := s.Challenge(verifier)
	if err != nil {
		return PKCE{}, err
	}

	return PKCE{
		Verifier:  verifier,
		Challenge: challenge,
		Method:    method,
	}, nil
}

// Nonce returns an attempt-correlation nonce suitable for use where the
// gateway does not supply its own state value.
func (s Source) Nonce() (string, error) {
	return s.randString(64) // Entropy E = L * log2(63) = 64 * log2(63) = 382.6 bits
}
