package trader

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTradeAmount(t *testing.T) {
	testCases := []struct {
		name     string
		amount   uint64
		risk     uint8
		expected uint64
		overflow bool
	}{
		{name: "Quarter", amount: 1000, risk: 25, expected: 250},
		{name: "TruncatesTowardZero", amount: 999, risk: 33, expected: 329},
		{name: "RoundsDownToZero", amount: 1, risk: 99, expected: 0},
		{name: "ZeroRisk", amount: 1_000_000, risk: 0, expected: 0},
		{name: "ZeroAmount", amount: 0, risk: 100, expected: 0},
		{name: "FullRiskMaxAmount", amount: math.MaxUint64, risk: 100, expected: math.MaxUint64},
		// Float sizing would lose precision here: 2^53+1 is not representable.
		{name: "BeyondFloatMantissa", amount: 1<<53 + 1, risk: 100, expected: 1<<53 + 1},
		{name: "LargeOddProduct", amount: math.MaxUint64, risk: 50, expected: math.MaxUint64 / 2},
		{name: "OverHundredFits", amount: 1000, risk: 255, expected: 2550},
		{name: "OverHundredOverflows", amount: math.MaxUint64, risk: 255, overflow: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := TradeAmount(tc.amount, tc.risk)
			if tc.overflow {
				assert.ErrorIs(t, err, ErrArithmeticOverflow)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tc.expected, got)
		})
	}
}
