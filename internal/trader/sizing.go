package trader

import "math/bits"

// TradeAmount sizes a trade as floor(amount * riskPercentage / 100) using
// exact integer arithmetic on a 128-bit product. It fails only when the
// result does not fit in a uint64, which requires riskPercentage > 100.
func TradeAmount(amount uint64, riskPercentage uint8) (uint64, error) {
	hi, lo := bits.Mul64(amount, uint64(riskPercentage))
	if hi >= 100 {
		return 0, ErrArithmeticOverflow
	}
	q, _ := bits.Div64(hi, lo, 100)
	return q, nil
}
