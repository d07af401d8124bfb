// Package keypair reads and writes ed25519 signing keys in the JSON
// array form used by Solana tooling: the 64 bytes of seed and public key
// as decimal numbers.
package keypair

import (
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"bot-ledger-go/internal/ledger"
)

// ErrMalformed is returned for key files that are not a valid 64-byte keypair.
var ErrMalformed = errors.New("malformed keypair file")

// Keypair is a signing key and the identity it controls.
type Keypair struct {
	Identity   ledger.Identity
	PrivateKey ed25519.PrivateKey
}

// Generate creates a new random keypair.
func Generate() (*Keypair, error) {
	_, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return fromPrivateKey(priv)
}

func fromPrivateKey(priv ed25519.PrivateKey) (*Keypair, error) {
	id, err := ledger.IdentityFromPublicKey(priv.Public().(ed25519.PublicKey))
	if err != nil {
		return nil, err
	}
	return &Keypair{Identity: id, PrivateKey: priv}, nil
}

// Load reads the keypair stored at path. The public half stored in the
// file must match the one derived from the seed.
func Load(path string) (*Keypair, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read keypair: %w", err)
	}

	var nums []int
	if err := json.Unmarshal(raw, &nums); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(nums) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("%w: want %d bytes, got %d", ErrMalformed, ed25519.PrivateKeySize, len(nums))
	}

	buf := make([]byte, ed25519.PrivateKeySize)
	for i, n := range nums {
		if n < 0 || n > 255 {
			return nil, fmt.Errorf("%w: byte %d out of range", ErrMalformed, i)
		}
		buf[i] = byte(n)
	}

	priv := ed25519.NewKeyFromSeed(buf[:ed25519.SeedSize])
	if !priv.Public().(ed25519.PublicKey).Equal(ed25519.PublicKey(buf[ed25519.SeedSize:])) {
		return nil, fmt.Errorf("%w: public key does not match seed", ErrMalformed)
	}
	return fromPrivateKey(priv)
}

// Save writes kp to path. It refuses to replace an existing file.
func Save(path string, kp *Keypair) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("keypair file %s already exists", path)
	}

	nums := make([]int, len(kp.PrivateKey))
	for i, b := range kp.PrivateKey {
		nums[i] = int(b)
	}
	data, err := json.Marshal(nums)
	if err != nil {
		return err
	}
	if err := writeFileAtomic(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write keypair: %w", err)
	}
	return nil
}

// writeFileAtomic writes data to a temp file in the same directory, syncs
// it, and renames it over path.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-keypair-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return err
	}

	// best-effort fsync of the parent directory
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}
	return nil
}
