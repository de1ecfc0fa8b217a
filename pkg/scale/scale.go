package scale

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

const (
	// Tolerance is the absolute difference allowed when snapping a scaled
	// remainder to a whole number or to one of CommonFractions.
	Tolerance = 0.01

	// DecimalPlaces is the precision of the decimal fallback rendering.
	DecimalPlaces = 2
)

// Fraction is a culinary fraction used when rendering scaled amounts
type Fraction struct {
	Num int
	Den int
}

// Value returns the decimal value of the fraction
func (f Fraction) Value() float64 {
	return float64(f.Num) / float64(f.Den)
}

func (f Fraction) String() string {
	return strconv.Itoa(f.Num) + "/" + strconv.Itoa(f.Den)
}

// CommonFractions is the canonical candidate set, in ascending order.
var CommonFractions = []Fraction{
	{Num: 1, Den: 4},
	{Num: 1, Den: 3},
	{Num: 1, Den: 2},
	{Num: 2, Den: 3},
	{Num: 3, Den: 4},
}

var (
	mixedPattern    = regexp.MustCompile(`^([0-9]+)[ \t]+([0-9]+)/([0-9]+)`)
	fractionPattern = regexp.MustCompile(`^([0-9]+)/([0-9]+)`)
	decimalPattern  = regexp.MustCompile(`^[0-9]+(?:\.[0-9]+)?`)
)

// Kind identifies which grammar rule matched a quantity token
type Kind string

const (
	KindMixed    Kind = "mixed"
	KindFraction Kind = "fraction"
	KindDecimal  Kind = "decimal"
)

// Quantity is the leading amount of an ingredient line
type Quantity struct {
	Kind  Kind
	Token string
	Value float64
}

// ParseQuantity reads the quantity token at the very start of line and
// returns it together with the untouched remainder of the line. Rules are
// tried in order: mixed number, simple fraction, decimal or integer. A token
// with a zero denominator is not a quantity and ok is false, as it is for a
// line that does not start with an ASCII digit.
func ParseQuantity(line string) (q Quantity, rest string, ok bool) {
	if m := mixedPattern.FindStringSubmatch(line); m != nil {
		whole, err1 := strconv.ParseFloat(m[1], 64)
		num, err2 := strconv.ParseFloat(m[2], 64)
		den, err3 := strconv.ParseFloat(m[3], 64)
		if err1 != nil || err2 != nil || err3 != nil || den == 0 {
			return Quantity{}, line, false
		}
		return Quantity{Kind: KindMixed, Token: m[0], Value: whole + num/den}, line[len(m[0]):], true
	}

	if m := fractionPattern.FindStringSubmatch(line); m != nil {
		num, err1 := strconv.ParseFloat(m[1], 64)
		den, err2 := strconv.ParseFloat(m[2], 64)
		if err1 != nil || err2 != nil || den == 0 {
			return Quantity{}, line, false
		}
		return Quantity{Kind: KindFraction, Token: m[0], Value: num / den}, line[len(m[0]):], true
	}

	if token := decimalPattern.FindString(line); token != "" {
		v, err := strconv.ParseFloat(token, 64)
		if err != nil {
			return Quantity{}, line, false
		}
		return Quantity{Kind: KindDecimal, Token: token, Value: v}, line[len(token):], true
	}

	return Quantity{}, line, false
}

// ScaleIngredient multiplies the leading quantity of line by factor and
// re-renders it with FormatAmount. Everything after the quantity token is
// kept verbatim.
//
// The function is total. Lines without a recognised quantity come back
// unchanged, as do all lines when factor is exactly 1 or is not finite.
// A zero factor renders the amount as "0". Negative factors are not
// rejected: the arithmetic runs and the sign is rendered.
func ScaleIngredient(line string, factor float64) string {
	if factor == 1 || math.IsNaN(factor) || math.IsInf(factor, 0) {
		return line
	}

	q, rest, ok := ParseQuantity(line)
	if !ok {
		return line
	}

	scaled := q.Value * factor
	if math.IsNaN(scaled) || math.IsInf(scaled, 0) {
		return line
	}

	return FormatAmount(scaled) + rest
}

// ScaleIngredients scales every line, preserving order
func ScaleIngredients(lines []string, factor float64) []string {
	out := make([]string, len(lines))
	for i, line := range lines {
		out[i] = ScaleIngredient(line, factor)
	}
	return out
}

// FormatAmount renders an amount for display: whole numbers as integers,
// remainders near a common fraction as "<whole> <n>/<d>" (whole omitted
// when zero), anything else as a decimal with at most DecimalPlaces digits
// and no trailing zeros.
func FormatAmount(amount float64) string {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return strconv.FormatFloat(amount, 'f', -1, 64)
	}

	if amount < 0 {
		s := FormatAmount(-amount)
		if s == "0" {
			return s
		}
		return "-" + s
	}

	whole := math.Floor(amount)
	remainder := amount - whole

	if remainder < Tolerance {
		return formatWhole(whole)
	}
	if 1-remainder < Tolerance {
		return formatWhole(whole + 1)
	}

	for _, f := range CommonFractions {
		if math.Abs(remainder-f.Value()) < Tolerance {
			if whole == 0 {
				return f.String()
			}
			return formatWhole(whole) + " " + f.String()
		}
	}

	return formatDecimal(amount)
}

func formatWhole(v float64) string {
	return strconv.FormatFloat(v, 'f', 0, 64)
}

func formatDecimal(v float64) string {
	s := strconv.FormatFloat(v, 'f', DecimalPlaces, 64)
	if strings.Contains(s, ".") {
		s = strings.TrimRight(s, "0")
		s = strings.TrimSuffix(s, ".")
	}
	return s
}

// ForServings returns the factor that turns a recipe written for base
// servings into one for target servings. Non-positive inputs yield 1.
func ForServings(base, target int) float64 {
	if base <= 0 || target <= 0 {
		return 1
	}
	return float64(target) / float64(base)
}
