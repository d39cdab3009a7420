package usecase

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/cartsmash/resolver/internal/domain"
)

// leadingQuantityPattern splits "<number> <optional-unit> <name>" lines such as
// "2 lbs chicken breast", "1/2 cup sugar" or "3 apples". The unit group only
// accepts known unit tokens, so "2 large eggs" keeps "large" in the name.
var leadingQuantityPattern = regexp.MustCompile(
	`(?i)^\s*(\d+\s*/\s*\d+|\d*\.?\d+)(?:\s*(` + unitAlternation() + `)\.?\s+|\s+)(\S.*)$`,
)

// ParseItem extracts quantity, unit and a clean name from a raw line.
// It never fails: malformed input yields quantity 1 and unit "each".
func ParseItem(item domain.RawItem) domain.ParsedItemDetails {
	cleanName := strings.TrimSpace(item.Name)
	amount := 1.0
	if v, ok := item.Quantity.Value(); ok {
		amount = v
	}
	unit := strings.TrimSpace(item.Unit)

	// An explicit unit wins over anything embedded in the name
	if unit == "" {
		if m := leadingQuantityPattern.FindStringSubmatch(cleanName); m != nil {
			if v, ok := domain.ParseQuantity(strings.ReplaceAll(m[1], " ", "")).Value(); ok {
				amount = v
			}
			unit = m[2]
			cleanName = strings.TrimSpace(m[3])
			if rest, ok := cutPrefixFold(cleanName, "of "); ok && rest != "" {
				cleanName = rest
			}
		}
	}

	canonical := NormalizeUnit(unit)

	parsed := domain.ParsedItemDetails{
		OriginalName: item.Name,
		CleanName:    cleanName,
		Quantity:     amount,
		Measurement:  1,
		Unit:         canonical,
		Category:     item.Category,
		Brand:        item.Brand,
	}
	if IsMeasurementUnit(canonical) {
		parsed.Quantity = 1
		parsed.Measurement = amount
	}

	parsed.SearchQuery = BuildQuery(cleanName)
	if IsMeasurementUnit(canonical) && parsed.Measurement > 1 {
		parsed.SearchQuery = fmt.Sprintf("%s %s %s", formatAmount(parsed.Measurement), canonical, parsed.SearchQuery)
	}

	return parsed
}

// formatAmount prints an amount without trailing zeros
func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func cutPrefixFold(s, prefix string) (string, bool) {
	if len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix) {
		return strings.TrimSpace(s[len(prefix):]), true
	}
	return s, false
}
