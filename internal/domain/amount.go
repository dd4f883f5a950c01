package domain

import "math/big"

// MulRatio multiplies an integer amount by a float ratio, rounding toward
// zero. It is the only place amounts and ratios meet; amounts themselves
// never leave big.Int form across component boundaries.
func MulRatio(amount *big.Int, ratio float64) *big.Int {
	if amount == nil {
		return new(big.Int)
	}
	f := new(big.Float).SetInt(amount)
	f.Mul(f, big.NewFloat(ratio))
	out, _ := f.Int(nil)
	return out
}

// SplitAmount divides amount into n near-equal parts whose sum is exactly
// amount; the remainder units go to the first parts.
func SplitAmount(amount *big.Int, n int) []*big.Int {
	if n <= 0 {
		return nil
	}
	q, r := new(big.Int).DivMod(amount, big.NewInt(int64(n)), new(big.Int))
	parts := make([]*big.Int, n)
	rem := r.Int64()
	for i := 0; i < n; i++ {
		p := new(big.Int).Set(q)
		if int64(i) < rem {
			p.Add(p, big.NewInt(1))
		}
		parts[i] = p
	}
	return parts
}

// RatioOf returns a/b as a float64, or 0 when b is zero. Used for scores
// and percentages only.
func RatioOf(a, b *big.Int) float64 {
	if a == nil || b == nil || b.Sign() == 0 {
		return 0
	}
	fa := new(big.Float).SetInt(a)
	fb := new(big.Float).SetInt(b)
	out, _ := new(big.Float).Quo(fa, fb).Float64()
	return out
}
