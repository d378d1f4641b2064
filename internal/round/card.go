package round

import (
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/foxseedlab/planning-poker/internal/apperr"
	"github.com/shopspring/decimal"
)

const (
	CardUnsure = "?"
	CardCoffee = "coffee"

	maxCardRunes = 32
	// maxCardExponent bounds the decimal exponent of a numeric card, so
	// aggregation never rescales to an unbounded number of digits.
	maxCardExponent = 12
)

// DefaultDeck is what clients offer when a session does not bring its own.
// Cards outside it are accepted.
var DefaultDeck = []string{"0", "1", "2", "3", "5", "8", "13", "20", "40", CardUnsure, CardCoffee}

// Card is the face value of a vote. Faces that parse as a decimal number
// within range are numeric; everything else is a marker.
type Card string

func ParseCard(value string) (Card, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", apperr.Invalid("card value is required")
	}
	if utf8.RuneCountInString(value) > maxCardRunes {
		return "", apperr.Invalid("card value must be at most %d characters", maxCardRunes)
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil && (math.IsNaN(f) || math.IsInf(f, 0)) {
		return "", apperr.Invalid("card value %q is not a finite number", value)
	}
	if d, err := decimal.NewFromString(value); err == nil && !inCardRange(d) {
		return "", apperr.Invalid("card value %q is out of range", value)
	}
	return Card(value), nil
}

func inCardRange(d decimal.Decimal) bool {
	exp := d.Exponent()
	return exp >= -maxCardExponent && exp <= maxCardExponent
}

// Numeric reports the card's value. Stored faces outside the card range
// count as markers.
func (c Card) Numeric() (decimal.Decimal, bool) {
	if utf8.RuneCountInString(string(c)) > maxCardRunes {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(string(c))
	if err != nil || !inCardRange(d) {
		return decimal.Decimal{}, false
	}
	return d, true
}

func (c Card) IsNumeric() bool {
	_, ok := c.Numeric()
	return ok
}
