package scale

import (
	"math"
	"sort"
	"strings"
)

// Stepper models the discrete scale factor control shown next to a recipe.
// Factors move in Step increments and never drop below Floor. A zero Max
// means there is no upper bound.
type Stepper struct {
	Step  float64
	Floor float64
	Max   float64
}

// DefaultStepper returns the control used when nothing is configured
func DefaultStepper() Stepper {
	return Stepper{Step: 0.5, Floor: 0.5, Max: 10}
}

// Clamp snaps factor to the nearest step and bounds it to [Floor, Max].
// NaN and infinite values collapse to the floor.
func (s Stepper) Clamp(factor float64) float64 {
	if math.IsNaN(factor) || math.IsInf(factor, 0) {
		return s.Floor
	}

	if s.Step > 0 {
		factor = math.Round(factor/s.Step) * s.Step
	}
	if factor < s.Floor {
		factor = s.Floor
	}
	if s.Max > 0 && factor > s.Max {
		factor = s.Max
	}
	return factor
}

// Increment returns the next factor up
func (s Stepper) Increment(factor float64) float64 {
	return s.Clamp(factor + s.Step)
}

// Decrement returns the next factor down
func (s Stepper) Decrement(factor float64) float64 {
	return s.Clamp(factor - s.Step)
}

// ShoppingList joins the selected lines with newlines for clipboard copy or
// printing. Indexes are deduplicated, out-of-range ones are ignored, and the
// output keeps the recipe's own ordering.
func ShoppingList(lines []string, selected []int) string {
	idx := make([]int, 0, len(selected))
	seen := make(map[int]bool, len(selected))
	for _, i := range selected {
		if i < 0 || i >= len(lines) || seen[i] {
			continue
		}
		seen[i] = true
		idx = append(idx, i)
	}
	sort.Ints(idx)

	picked := make([]string, 0, len(idx))
	for _, i := range idx {
		picked = append(picked, lines[i])
	}
	return strings.Join(picked, "\n")
}
