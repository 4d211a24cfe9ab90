/*
normalize.go - Percentage normalization and status classification

RULES:
  sum == 100  -> weights pass through unchanged
  sum == 0    -> (0, 0, 0), under allocated
  otherwise   -> round(v * 100 / sum) per sector, round-half-up

  The rounded values are NOT renormalized. (50, 50, 50) yields (33, 33, 33)
  and (1, 7, 0) yields (13, 88, 0). Three independent roundings can drift
  from 100 by at most one point in either direction.

PRECISION:
  Division is done with decimal.Decimal. A ratio v*100/sum only lands on
  exactly .5 when 200*v is a multiple of sum, and decimal keeps that exact,
  so the half-up boundary is never decided by float error.
*/
package allocation

import (
	"github.com/shopspring/decimal"
)

const (
	// Target is the total at which an allocation is balanced.
	Target = 100

	MinWeight = 0
	MaxWeight = 100
)

var hundred = decimal.NewFromInt(Target)

// Clamp limits a raw weight to [MinWeight, MaxWeight].
func Clamp(v int) int {
	if v < MinWeight {
		return MinWeight
	}
	if v > MaxWeight {
		return MaxWeight
	}
	return v
}

// Classify maps a total to its status.
func Classify(total int) Status {
	switch {
	case total == Target:
		return StatusBalanced
	case total > Target:
		return StatusOverAllocated
	default:
		return StatusUnderAllocated
	}
}

// Normalize rescales raw weights to percentages. Inputs are clamped first.
func Normalize(raw Weights) (Weights, Status) {
	w := Weights{
		Livelihoods:  Clamp(raw.Livelihoods),
		Industries:   Clamp(raw.Industries),
		GovtProjects: Clamp(raw.GovtProjects),
	}
	sum := w.Sum()
	status := Classify(sum)

	switch sum {
	case Target:
		return w, status
	case 0:
		return Weights{}, status
	}

	total := decimal.NewFromInt(int64(sum))
	return Weights{
		Livelihoods:  percentOf(w.Livelihoods, total),
		Industries:   percentOf(w.Industries, total),
		GovtProjects: percentOf(w.GovtProjects, total),
	}, status
}

// percentOf rounds half away from zero, which is half-up for v >= 0.
func percentOf(v int, total decimal.Decimal) int {
	return int(decimal.NewFromInt(int64(v)).Mul(hundred).Div(total).Round(0).IntPart())
}
