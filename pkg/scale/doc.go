/*
Package scale rewrites ingredient lines for a different batch size.

A recipe stores its ingredients as free text, one line per ingredient, for
example "1 1/2 cups flour". When a reader asks for the recipe at a
different size, each line is scaled independently: the amount at the very
start of the line is multiplied by the factor and rendered again, and the
rest of the line is copied byte for byte.

# Parsing

Only a quantity at byte 0 is recognised. The first matching rule wins:

	Rule  Pattern                       Example       Value
	────  ────────────────────────────  ────────────  ─────
	 1    <int> <ws> <int>/<int>        "1 1/2 cups"  1.5
	 2    <int>/<int>                   "3/4 tsp"     0.75
	 3    <int> or <int>.<int>          "2.25 kg"     2.25

Digits are ASCII only. A token with a zero denominator ("0/0", "1 1/0") is
not a quantity. Lines that start with anything else ("Salt to taste",
" 2 eggs", "½ cup") pass through unchanged.

# Formatting

The scaled amount is rendered by FormatAmount:

  - a remainder within Tolerance of 0 or 1 gives a whole number ("3")
  - a remainder within Tolerance of a CommonFractions entry gives a
    fraction, with the whole part omitted when zero ("1 1/2", "3/4")
  - anything else gives a decimal with at most DecimalPlaces digits and
    no trailing zeros ("2.5", "1.17")

Negative amounts get a leading "-" on the magnitude form.

# Factors

A factor of exactly 1 returns the line untouched, so "1.50 cups" stays
"1.50 cups". A zero factor yields "0". NaN and infinite factors return the
line unchanged.

# Usage

	line := scale.ScaleIngredient("1/2 cup sugar", 2)
	// "1 cup sugar"

	factor := scale.ForServings(4, 6)
	lines := scale.ScaleIngredients(recipe.Ingredients, factor)

The web UI moves the factor with a Stepper:

	s := scale.DefaultStepper() // step 0.5, floor 0.5, max 10
	next := s.Increment(1)      // 1.5
	prev := s.Decrement(0.5)    // 0.5

ShoppingList joins a selection of scaled lines for printing or copying.
*/
package scale
