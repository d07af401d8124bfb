package trader

import (
	"errors"
	"fmt"
	"testing"

	"bot-ledger-go/internal/ledger"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	assert.Nil(t, Classify(nil))
	assert.Nil(t, Classify(errors.New("disk full")))

	assert.Equal(t, ErrNotActive, Classify(fmt.Errorf("wrapped: %w", ErrNotActive)))
	assert.Equal(t, uint32(6000), Classify(ErrAlreadyActive).Code)
	assert.Equal(t, uint32(2001), Classify(ErrUnauthorized).Code)

	insufficient := Classify(fmt.Errorf("%w: needs more", ledger.ErrInsufficientFunds))
	if assert.NotNil(t, insufficient) {
		assert.Equal(t, "InsufficientFunds", insufficient.Name)
	}
	assert.Equal(t, "AccountAlreadyInUse", Classify(ErrAllocationExists).Name)
}

func TestBotError_Message(t *testing.T) {
	assert.Equal(t, "AlreadyActive (6000): bot is already active", ErrAlreadyActive.Error())
}
