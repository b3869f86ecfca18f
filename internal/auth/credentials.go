// Package auth guards the /api routes.
//
// THE ACCOUNT:
// There is exactly one account, configured at startup (AUTH_USERNAME /
// AUTH_PASSWORD). Clients send it on every request with HTTP Basic auth.
// When JWT_SECRET is set, they may instead trade it once for a short-lived
// bearer token at POST /api/token.
//
// WHY BCRYPT FOR A STATIC PASSWORD?
// The plaintext is read from the environment once and hashed immediately;
// only the hash stays in memory. bcrypt.CompareHashAndPassword compares in
// constant time, so response timing says nothing about how close a guess was.
package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCost is the bcrypt work factor used when none is configured.
//
// COST TUNING RULE OF THUMB:
// Every authenticated request pays for one comparison, so the cost here is
// lower than you'd pick for a login-once flow. Raise it via BCRYPT_COST.
const DefaultCost = bcrypt.DefaultCost

// CredentialStore holds the single configured account.
type CredentialStore struct {
	username string
	hash     []byte
}

// NewCredentialStore hashes password and returns a store that accepts only
// (username, password). cost outside bcrypt's range falls back to DefaultCost.
func NewCredentialStore(username, password string, cost int) (*CredentialStore, error) {
	if username == "" {
		return nil, errors.New("auth: username must not be empty")
	}
	if len(password) > 72 {
		// bcrypt silently truncates longer passwords.
		return nil, errors.New("auth: password must be 72 bytes or fewer")
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return nil, fmt.Errorf("auth: hashing password: %w", err)
	}
	return &CredentialStore{username: username, hash: hash}, nil
}

// Username returns the configured account name.
func (c *CredentialStore) Username() string {
	return c.username
}

// Verify reports whether the pair matches the configured account.
//
// Both halves are always checked, so a wrong username costs as much time as
// a wrong password.
func (c *CredentialStore) Verify(username, password string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(c.username)) == 1
	passErr := bcrypt.CompareHashAndPassword(c.hash, []byte(password))
	return userOK && passErr == nil
}
