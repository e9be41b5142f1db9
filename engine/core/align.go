package core

import "golang.org/x/exp/constraints"

// Align rounds operand up to the next multiple of granularity.
// Granularity must be a power of two.
func Align[T constraints.Unsigned](operand, granularity T) T {
	return (operand + (granularity - 1)) &^ (granularity - 1)
}
