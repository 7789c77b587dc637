// Package format renders raw chain values for display. All token and ether
// amounts are 18-decimal fixed-point integers; the compact-notation
// threshold is 100,000 everywhere.
package format

import (
	"fmt"
	"math/big"
	"strings"
	"time"
)

const (
	// Placeholder is rendered wherever a value is missing or unavailable.
	Placeholder = "-"

	// CompactThreshold is the display value above which numbers switch to
	// compact notation.
	CompactThreshold = 100000
)

var weiPerToken = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// Amount renders an 18-decimal fixed-point token amount: up to 4 decimals
// with thousands separators below the compact threshold, compact notation
// above it. Nil renders the placeholder.
func Amount(raw *big.Int) string {
	if raw == nil {
		return Placeholder
	}
	v := new(big.Rat).SetFrac(raw, weiPerToken)
	if belowThreshold(v) {
		return fixed(v, 4)
	}
	return Compact(ratFloat(v))
}

// Ether renders an 18-decimal wei amount: 6 fixed decimals below the
// compact threshold, compact notation above it.
func Ether(raw *big.Int) string {
	if raw == nil {
		return Placeholder
	}
	v := new(big.Rat).SetFrac(raw, weiPerToken)
	if belowThreshold(v) {
		return v.FloatString(6)
	}
	return Compact(ratFloat(v))
}

// Compact renders a float in K/M/B/T notation with up to 2 decimals.
func Compact(v float64) string {
	abs := v
	if abs < 0 {
		abs = -abs
	}
	suffixes := []struct {
		unit   float64
		suffix string
	}{
		{1e12, "T"},
		{1e9, "B"},
		{1e6, "M"},
		{1e3, "K"},
	}
	for _, s := range suffixes {
		if abs >= s.unit {
			return trimZeros(fmt.Sprintf("%.2f", v/s.unit)) + s.suffix
		}
	}
	return trimZeros(fmt.Sprintf("%.2f", v))
}

// ShortAddress truncates an address to first6...last4. Short strings pass
// through, empty renders the placeholder.
func ShortAddress(s string) string {
	if s == "" {
		return Placeholder
	}
	if len(s) <= 10 {
		return s
	}
	return s[:6] + "..." + s[len(s)-4:]
}

// Date renders a unix timestamp in day-first order, matching the dashboard
// locale. Rendered in UTC so output does not depend on server timezone.
func Date(ts int64) string {
	return time.Unix(ts, 0).UTC().Format("02.01.2006, 15:04:05")
}

// HolderCount renders a holder count, or the placeholder when the backing
// schema does not expose one.
func HolderCount(n int64, ok bool) string {
	if !ok {
		return Placeholder
	}
	if n < CompactThreshold {
		return groupDigits(fmt.Sprintf("%d", n))
	}
	return Compact(float64(n))
}

// Ratio renders reserve/minted to exactly 4 decimal places. A zero or
// missing minted total yields "0.0000"; the division-by-zero case is
// explicit, not accidental.
func Ratio(reserve, minted *big.Int) string {
	if minted == nil || minted.Sign() <= 0 || reserve == nil {
		return "0.0000"
	}
	return new(big.Rat).SetFrac(reserve, minted).FloatString(4)
}

// Rate2 renders a float with 2 fixed decimals (oracle ETH/USD, ETH/ILS).
func Rate2(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

// Rate4 renders a float with 4 fixed decimals (oracle USD/ILS).
func Rate4(v float64) string {
	return fmt.Sprintf("%.4f", v)
}

func belowThreshold(v *big.Rat) bool {
	abs := new(big.Rat).Abs(v)
	return abs.Cmp(new(big.Rat).SetInt64(CompactThreshold)) < 0
}

func ratFloat(v *big.Rat) float64 {
	f, _ := v.Float64()
	return f
}

// fixed renders a rational with up to prec decimals, trailing zeros
// trimmed, thousands separators on the integer part.
func fixed(v *big.Rat, prec int) string {
	s := v.FloatString(prec)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	intPart, fracPart, _ := strings.Cut(s, ".")
	fracPart = strings.TrimRight(fracPart, "0")

	out := groupDigits(intPart)
	if fracPart != "" {
		out += "." + fracPart
	}
	if neg {
		out = "-" + out
	}
	return out
}

func trimZeros(s string) string {
	if !strings.Contains(s, ".") {
		return s
	}
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}

func groupDigits(digits string) string {
	n := len(digits)
	if n <= 3 {
		return digits
	}
	var b strings.Builder
	rem := n % 3
	if rem > 0 {
		b.WriteString(digits[:rem])
	}
	for i := rem; i < n; i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
