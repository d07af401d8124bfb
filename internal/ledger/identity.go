package ledger

import (
	"crypto/ed25519"
	"fmt"

	"github.com/mr-tron/base58"
)

// IdentitySize is the byte length of an identity.
const IdentitySize = 32

// Identity is an ed25519 public key naming a principal or an account.
// Its text form is base58.
type Identity [IdentitySize]byte

// SystemIdentity is the all-zero identity. It is never a valid transfer target.
var SystemIdentity Identity

// ParseIdentity decodes a base58 identity.
func ParseIdentity(s string) (Identity, error) {
	var id Identity
	raw, err := base58.Decode(s)
	if err != nil {
		return id, fmt.Errorf("%w: %q: %v", ErrInvalidIdentity, s, err)
	}
	if len(raw) != IdentitySize {
		return id, fmt.Errorf("%w: %q decodes to %d bytes", ErrInvalidIdentity, s, len(raw))
	}
	copy(id[:], raw)
	return id, nil
}

// MustParseIdentity is ParseIdentity for constants; it panics on bad input.
func MustParseIdentity(s string) Identity {
	id, err := ParseIdentity(s)
	if err != nil {
		panic(err)
	}
	return id
}

// IdentityFromPublicKey converts an ed25519 public key.
func IdentityFromPublicKey(pub ed25519.PublicKey) (Identity, error) {
	var id Identity
	if len(pub) != ed25519.PublicKeySize {
		return id, fmt.Errorf("%w: public key has %d bytes", ErrInvalidIdentity, len(pub))
	}
	copy(id[:], pub)
	return id, nil
}

func (id Identity) String() string {
	return base58.Encode(id[:])
}

// IsZero reports whether id is the system identity.
func (id Identity) IsZero() bool {
	return id == SystemIdentity
}

// PublicKey returns id as an ed25519 public key.
func (id Identity) PublicKey() ed25519.PublicKey {
	return ed25519.PublicKey(id[:])
}

// MarshalText implements encoding.TextMarshaler.
func (id Identity) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *Identity) UnmarshalText(text []byte) error {
	parsed, err := ParseIdentity(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
