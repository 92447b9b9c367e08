package report

import (
	"fmt"
	"math"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// FormatUSD "$1,234,567.89"; always two decimals, thousands separated
func FormatUSD(v decimal.Decimal) string {
	s := v.StringFixed(2)

	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}

	intPart, frac, _ := strings.Cut(s, ".")
	return "$" + sign + groupThousands(intPart) + "." + frac
}

func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}

	var b strings.Builder
	b.Grow(len(digits) + len(digits)/3)

	head := len(digits) % 3
	if head > 0 {
		b.WriteString(digits[:head])
	}
	for i := head; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}

	return b.String()
}

// PowerOfTwo floor(log2(v)); 0 for v <= 0
func PowerOfTwo(v decimal.Decimal) int {
	if !v.IsPositive() {
		return 0
	}

	f := v.InexactFloat64()
	if math.IsInf(f, 0) || f == 0 {
		return int(math.Floor(log2Exact(v)))
	}
	return int(math.Floor(math.Log2(f)))
}

// log2Exact works off coefficient and exponent for values outside float64 range
func log2Exact(v decimal.Decimal) float64 {
	mant := new(big.Float)
	exp := new(big.Float).SetInt(v.Coefficient()).MantExp(mant)
	m, _ := mant.Float64()

	return float64(exp) + math.Log2(m) + float64(v.Exponent())*math.Log2(10)
}

// MagnitudeLabel ">=2^N"
func MagnitudeLabel(v decimal.Decimal) string {
	return fmt.Sprintf(">=2^%d", PowerOfTwo(v))
}
