// Package identity resolves who is calling the ledger and whether that caller
// is the Owner. Callers are wallet addresses; the transport authenticates them
// before they reach the core.
package identity

import (
	"context"
	"errors"
	"strings"
)

// ErrInvalidIdentity is returned when an address is not a 0x-prefixed 20-byte hex string.
var ErrInvalidIdentity = errors.New("invalid identity")

// Identity is a normalized (lower-case) wallet address.
type Identity string

// Parse validates and normalizes an address.
func Parse(raw string) (Identity, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if len(s) != 42 || !strings.HasPrefix(s, "0x") {
		return "", ErrInvalidIdentity
	}
	for _, r := range s[2:] {
		if !(r >= '0' && r <= '9' || r >= 'a' && r <= 'f') {
			return "", ErrInvalidIdentity
		}
	}
	return Identity(s), nil
}

// MustParse is Parse for constants and tests.
func MustParse(raw string) Identity {
	id, err := Parse(raw)
	if err != nil {
		panic("identity: " + raw + ": " + err.Error())
	}
	return id
}

func (i Identity) String() string { return string(i) }

// Authority holds the single Owner identity fixed at startup.
type Authority struct {
	owner Identity
}

// NewAuthority creates an Authority. The owner cannot be changed afterwards.
func NewAuthority(owner Identity) *Authority {
	return &Authority{owner: owner}
}

// Owner returns the privileged identity.
func (a *Authority) Owner() Identity { return a.owner }

// IsOwner reports whether id is the Owner.
func (a *Authority) IsOwner(id Identity) bool {
	return id != "" && id == a.owner
}

type callerKey struct{}

// WithCaller attaches the authenticated caller to ctx.
func WithCaller(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, callerKey{}, id)
}

// CallerFrom returns the caller attached by WithCaller.
func CallerFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(callerKey{}).(Identity)
	return id, ok && id != ""
}
