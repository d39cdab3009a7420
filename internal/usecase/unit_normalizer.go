package usecase

import (
	"regexp"
	"sort"
	"strings"
)

// Canonical units
const (
	UnitPound      = "pound"
	UnitOunce      = "ounce"
	UnitKilogram   = "kilogram"
	UnitGram       = "gram"
	UnitCup        = "cup"
	UnitTeaspoon   = "teaspoon"
	UnitTablespoon = "tablespoon"
	UnitEach       = "each"
)

// unitAliases maps raw unit tokens to canonical units
var unitAliases = map[string]string{
	// Weight
	"lb": UnitPound, "lbs": UnitPound, "pound": UnitPound, "pounds": UnitPound,
	"oz": UnitOunce, "ounce": UnitOunce, "ounces": UnitOunce,
	"kg": UnitKilogram, "kgs": UnitKilogram, "kilo": UnitKilogram, "kilos": UnitKilogram,
	"kilogram": UnitKilogram, "kilograms": UnitKilogram,
	"g": UnitGram, "gr": UnitGram, "gram": UnitGram, "grams": UnitGram,
	// Volume
	"cup": UnitCup, "cups": UnitCup, "c": UnitCup,
	"tsp": UnitTeaspoon, "tsps": UnitTeaspoon, "teaspoon": UnitTeaspoon, "teaspoons": UnitTeaspoon,
	"tbsp": UnitTablespoon, "tbsps": UnitTablespoon, "tbs": UnitTablespoon,
	"tablespoon": UnitTablespoon, "tablespoons": UnitTablespoon,
	// Count
	"each": UnitEach, "ea": UnitEach, "piece": UnitEach, "pieces": UnitEach,
	"pc": UnitEach, "pcs": UnitEach, "item": UnitEach, "items": UnitEach,
	"bottle": "bottle", "bottles": "bottle",
	"box": "box", "boxes": "box",
	"can": "can", "cans": "can",
	"bag": "bag", "bags": "bag",
	"jar": "jar", "jars": "jar",
	"pack": "pack", "packs": "pack", "pkg": "pack", "package": "pack", "packages": "pack",
	"bunch": "bunch", "bunches": "bunch",
	"dozen": "dozen", "doz": "dozen",
	"loaf": "loaf", "loaves": "loaf",
	"carton": "carton", "cartons": "carton",
	"gallon": "gallon", "gallons": "gallon", "gal": "gallon",
}

// measurementUnits describe the size of one item rather than how many to buy
var measurementUnits = map[string]bool{
	UnitPound:      true,
	UnitOunce:      true,
	UnitKilogram:   true,
	UnitGram:       true,
	UnitCup:        true,
	UnitTeaspoon:   true,
	UnitTablespoon: true,
}

// NormalizeUnit maps a raw unit token to its canonical form.
// Unknown units pass through lower-cased and trimmed; an empty unit becomes "each".
func NormalizeUnit(raw string) string {
	u := strings.TrimSuffix(strings.ToLower(strings.TrimSpace(raw)), ".")
	if u == "" {
		return UnitEach
	}
	if canonical, ok := unitAliases[u]; ok {
		return canonical
	}
	return u
}

// IsMeasurementUnit reports whether a canonical unit is a weight or volume
func IsMeasurementUnit(unit string) bool {
	return measurementUnits[unit]
}

// unitAlternation is a regex alternation of all known unit tokens, longest first
func unitAlternation() string {
	tokens := make([]string, 0, len(unitAliases))
	for alias := range unitAliases {
		tokens = append(tokens, regexp.QuoteMeta(alias))
	}
	sort.Slice(tokens, func(i, j int) bool {
		if len(tokens[i]) != len(tokens[j]) {
			return len(tokens[i]) > len(tokens[j])
		}
		return tokens[i] < tokens[j]
	})
	return strings.Join(tokens, "|")
}
