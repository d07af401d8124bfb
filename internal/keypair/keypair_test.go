package keypair

import (
	"crypto/ed25519"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "id.json")
	kp, err := Generate()
	require.NoError(t, err)

	require.NoError(t, Save(path, kp))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var nums []int
	require.NoError(t, json.Unmarshal(raw, &nums))
	assert.Len(t, nums, ed25519.PrivateKeySize)

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, kp.Identity, loaded.Identity)
	assert.True(t, kp.PrivateKey.Equal(loaded.PrivateKey))

	leftovers, err := filepath.Glob(filepath.Join(filepath.Dir(path), ".tmp-keypair-*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestSaveRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "id.json")
	require.NoError(t, os.WriteFile(path, []byte("keep me"), 0o600))
	kp, err := Generate()
	require.NoError(t, err)

	assert.Error(t, Save(path, kp))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "keep me", string(raw))
}

func TestLoadMalformed(t *testing.T) {
	kp, err := Generate()
	require.NoError(t, err)
	valid := make([]int, ed25519.PrivateKeySize)
	for i, b := range kp.PrivateKey {
		valid[i] = int(b)
	}
	mismatched := append([]int(nil), valid...)
	mismatched[ed25519.SeedSize] ^= 0xFF

	tests := []struct {
		name    string
		content string
	}{
		{"NotJSON", "not json"},
		{"TooShort", "[1,2,3]"},
		{"OutOfRange", mustJSON(t, append(append([]int(nil), valid[:63]...), 256))},
		{"PublicKeyMismatch", mustJSON(t, mismatched)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "id.json")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o600))

			_, err := Load(path)
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrMalformed)
}

func mustJSON(t *testing.T, v any) string {
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}
