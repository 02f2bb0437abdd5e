package converter

import (
	"math"
	"strconv"
)

// Amounts travel through the engine as integer cents. These helpers sit on
// every boundary where a client-facing decimal value is involved.

func AmountFloatToCents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

func AmountCentsToFloat(amount int64) float64 {
	return float64(amount) / 100
}

func AmountCentsToString(amount int64) string {
	return strconv.FormatFloat(AmountCentsToFloat(amount), 'f', 2, 64)
}

// MultiplyCents applies a payout multiplier to a cent amount, rounding to
// the nearest cent.
func MultiplyCents(amount int64, multiplier float64) int64 {
	return int64(math.Round(float64(amount) * multiplier))
}
