package scale

import (
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScaleIngredientWorkedExamples(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		factor   float64
		expected string
	}{
		{name: "half cup doubled", line: "1/2 cup sugar", factor: 2, expected: "1 cup sugar"},
		{name: "mixed number halved", line: "1 1/2 cups flour", factor: 0.5, expected: "3/4 cups flour"},
		{name: "integer times one and a half", line: "2 eggs", factor: 1.5, expected: "3 eggs"},
		{name: "fraction doubled to mixed", line: "3/4 tsp salt", factor: 2, expected: "1 1/2 tsp salt"},
		{name: "no quantity", line: "Salt to taste", factor: 3, expected: "Salt to taste"},
		{name: "decimal doubled", line: "2.5 cups milk", factor: 2, expected: "5 cups milk"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ScaleIngredient(tt.line, tt.factor))
		})
	}
}

func TestScaleIngredientFormatting(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		factor   float64
		expected string
	}{
		{name: "third tripled", line: "1/3 cup oil", factor: 3, expected: "1 cup oil"},
		{name: "third doubled", line: "1/3 cup oil", factor: 2, expected: "2/3 cup oil"},
		{name: "quarter", line: "1 cup stock", factor: 0.25, expected: "1/4 cup stock"},
		{name: "decimal fallback", line: "1 tbsp butter", factor: 0.1, expected: "0.1 tbsp butter"},
		{name: "two decimal places", line: "7 g yeast", factor: 1 / 6.0, expected: "1.17 g yeast"},
		{name: "near-whole snaps up", line: "1 cup rice", factor: 2.995, expected: "3 cup rice"},
		{name: "near fraction snaps", line: "1 cup water", factor: 0.33, expected: "1/3 cup water"},
		{name: "trailing text kept verbatim", line: "1 1/2 cups flour, sifted (about 180g)", factor: 2, expected: "3 cups flour, sifted (about 180g)"},
		{name: "no separator", line: "1/2cup milk", factor: 2, expected: "1cup milk"},
		{name: "tab in mixed number", line: "1\t1/2 cups oats", factor: 2, expected: "3 cups oats"},
		{name: "only a number", line: "4", factor: 0.5, expected: "2"},
		{name: "decimal followed by dot", line: "2.5.3 thing", factor: 2, expected: "5.3 thing"},
		{name: "leading space is not a quantity", line: " 2 eggs", factor: 2, expected: " 2 eggs"},
		{name: "empty line", line: "", factor: 2, expected: ""},
		{name: "unicode fraction is not a quantity", line: "½ cup cream", factor: 2, expected: "½ cup cream"},
		{name: "non-ascii digit is not a quantity", line: "٣ eggs", factor: 2, expected: "٣ eggs"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ScaleIngredient(tt.line, tt.factor))
		})
	}
}

func TestScaleIngredientFactorPolicy(t *testing.T) {
	t.Run("zero factor renders zero", func(t *testing.T) {
		assert.Equal(t, "0 cups flour", ScaleIngredient("1 1/2 cups flour", 0))
	})

	t.Run("negative factor keeps the sign", func(t *testing.T) {
		assert.Equal(t, "-1 1/2 cups flour", ScaleIngredient("1 1/2 cups flour", -1))
		assert.Equal(t, "-3/4 tsp salt", ScaleIngredient("3/4 tsp salt", -1))
	})

	t.Run("non-finite factors pass through", func(t *testing.T) {
		for _, f := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
			assert.Equal(t, "2 eggs", ScaleIngredient("2 eggs", f))
		}
	})

	t.Run("overflowing amount passes through", func(t *testing.T) {
		line := "1" + strings.Repeat("0", 300) + " grains"
		assert.Equal(t, line, ScaleIngredient(line, 1e10))
	})
}

func TestScaleIngredientDegenerateTokens(t *testing.T) {
	lines := []string{
		"0/0 cups nothing",
		"1/0 cups infinity",
		"1 1/0 cups flour",
	}
	for _, line := range lines {
		t.Run(line, func(t *testing.T) {
			assert.Equal(t, line, ScaleIngredient(line, 2))
		})
	}
}

func TestScaleIngredientProperties(t *testing.T) {
	quantityLines := []string{
		"1/2 cup sugar",
		"1 1/2 cups flour",
		"3/4 tsp salt",
		"2 eggs",
		"2.5 cups milk",
		"1/3 cup oil",
		"10 g salt",
		"0.75 l water",
	}
	plainLines := []string{
		"Salt to taste",
		"a pinch of pepper",
		"",
		"  indented 2 cups",
	}
	factors := []float64{0.5, 1, 1.5, 2, 2.5, 3, 0.33, 4}

	t.Run("pass-through", func(t *testing.T) {
		for _, line := range plainLines {
			for _, f := range factors {
				assert.Equal(t, line, ScaleIngredient(line, f))
			}
		}
	})

	t.Run("identity", func(t *testing.T) {
		for _, line := range quantityLines {
			assert.Equal(t, line, ScaleIngredient(line, 1))
		}
	})

	t.Run("linearity and trailing text", func(t *testing.T) {
		for _, line := range quantityLines {
			orig, rest, ok := ParseQuantity(line)
			require.True(t, ok, line)

			for _, f := range factors {
				out := ScaleIngredient(line, f)
				require.True(t, strings.HasSuffix(out, rest), "%q scaled by %v lost %q", line, f, rest)

				got, gotRest, ok := ParseQuantity(out)
				require.True(t, ok, out)
				assert.Equal(t, rest, gotRest)
				assert.InDelta(t, orig.Value*f, got.Value, Tolerance+0.001, "%q scaled by %v", line, f)
			}
		}
	})
}

func TestParseQuantity(t *testing.T) {
	tests := []struct {
		line  string
		kind  Kind
		token string
		value float64
		rest  string
		ok    bool
	}{
		{line: "1 1/2 cups", kind: KindMixed, token: "1 1/2", value: 1.5, rest: " cups", ok: true},
		{line: "3/4 tsp", kind: KindFraction, token: "3/4", value: 0.75, rest: " tsp", ok: true},
		{line: "2.25 kg", kind: KindDecimal, token: "2.25", value: 2.25, rest: " kg", ok: true},
		{line: "12 eggs", kind: KindDecimal, token: "12", value: 12, rest: " eggs", ok: true},
		{line: "2. cups", kind: KindDecimal, token: "2", value: 2, rest: ". cups", ok: true},
		{line: "1 2 eggs", kind: KindDecimal, token: "1", value: 1, rest: " 2 eggs", ok: true},
		{line: "Salt", rest: "Salt", ok: false},
		{line: "0/0", rest: "0/0", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			q, rest, ok := ParseQuantity(tt.line)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.rest, rest)
			if !tt.ok {
				return
			}
			want := Quantity{Kind: tt.kind, Token: tt.token, Value: tt.value}
			if diff := cmp.Diff(want, q, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
				t.Errorf("quantity mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		amount   float64
		expected string
	}{
		{0, "0"},
		{-0.004, "0"},
		{3, "3"},
		{0.25, "1/4"},
		{2.5, "2 1/2"},
		{1.0 / 3, "1/3"},
		{2.0 / 3, "2/3"},
		{5.75, "5 3/4"},
		{0.1, "0.1"},
		{2.05, "2.05"},
		{0.995, "1"},
		{-2.5, "-2 1/2"},
		{1234567, "1234567"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatAmount(tt.amount))
		})
	}
}

func TestScaleIngredientsPreservesOrder(t *testing.T) {
	lines := []string{"2 eggs", "Salt to taste", "1/2 cup sugar"}
	assert.Equal(t, []string{"4 eggs", "Salt to taste", "1 cup sugar"}, ScaleIngredients(lines, 2))
	assert.Empty(t, ScaleIngredients(nil, 2))
}

func TestForServings(t *testing.T) {
	assert.Equal(t, 2.0, ForServings(4, 8))
	assert.Equal(t, 0.5, ForServings(4, 2))
	assert.Equal(t, 1.0, ForServings(0, 2))
	assert.Equal(t, 1.0, ForServings(4, -1))
}
