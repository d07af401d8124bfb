package ledger

import (
	"crypto/ed25519"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIdentity(t *testing.T) {
	t.Run("RoundTrip", func(t *testing.T) {
		var id Identity
		for i := range id {
			id[i] = 1
		}
		assert.Equal(t, "4vJ9JU1bJJE96FWSJKvHsmmFADCg4gpZQff4P3bkLKi", id.String())

		parsed, err := ParseIdentity(id.String())
		require.NoError(t, err)
		assert.Equal(t, id, parsed)
	})

	t.Run("SystemIdentity", func(t *testing.T) {
		id, err := ParseIdentity("11111111111111111111111111111111")
		require.NoError(t, err)
		assert.True(t, id.IsZero())
	})

	t.Run("WrongLength", func(t *testing.T) {
		_, err := ParseIdentity("abc")
		assert.ErrorIs(t, err, ErrInvalidIdentity)
	})

	t.Run("NotBase58", func(t *testing.T) {
		_, err := ParseIdentity("0OIl")
		assert.ErrorIs(t, err, ErrInvalidIdentity)
	})
}

func TestIdentity_JSON(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	id, err := IdentityFromPublicKey(pub)
	require.NoError(t, err)

	raw, err := json.Marshal(map[string]Identity{"owner": id})
	require.NoError(t, err)
	assert.JSONEq(t, `{"owner":"`+id.String()+`"}`, string(raw))

	var back map[string]Identity
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, id, back["owner"])
	assert.Equal(t, pub, back["owner"].PublicKey())
}

func TestIdentityFromPublicKey_BadSize(t *testing.T) {
	_, err := IdentityFromPublicKey(make([]byte, 31))
	assert.ErrorIs(t, err, ErrInvalidIdentity)
}
