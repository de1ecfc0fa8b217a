package scale

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStepperClamp(t *testing.T) {
	s := DefaultStepper()

	tests := []struct {
		name     string
		in       float64
		expected float64
	}{
		{name: "on step", in: 1.5, expected: 1.5},
		{name: "snaps to nearest step", in: 1.3, expected: 1.5},
		{name: "zero raised to floor", in: 0, expected: 0.5},
		{name: "negative raised to floor", in: -3, expected: 0.5},
		{name: "capped at max", in: 25, expected: 10},
		{name: "nan is floor", in: math.NaN(), expected: 0.5},
		{name: "infinity is floor", in: math.Inf(1), expected: 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, s.Clamp(tt.in))
		})
	}
}

func TestStepperIncrementDecrement(t *testing.T) {
	s := DefaultStepper()

	assert.Equal(t, 1.5, s.Increment(1))
	assert.Equal(t, 10.0, s.Increment(10))
	assert.Equal(t, 0.5, s.Decrement(1))
	assert.Equal(t, 0.5, s.Decrement(0.5))

	unbounded := Stepper{Step: 1, Floor: 1}
	assert.Equal(t, 101.0, unbounded.Increment(100))
}

func TestShoppingList(t *testing.T) {
	lines := []string{"2 eggs", "1 cup sugar", "Salt to taste", "3 cups flour"}

	tests := []struct {
		name     string
		selected []int
		expected string
	}{
		{name: "recipe order kept", selected: []int{3, 0}, expected: "2 eggs\n3 cups flour"},
		{name: "duplicates dropped", selected: []int{1, 1}, expected: "1 cup sugar"},
		{name: "out of range ignored", selected: []int{-1, 2, 9}, expected: "Salt to taste"},
		{name: "nothing selected", selected: nil, expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ShoppingList(lines, tt.selected))
		})
	}
}
