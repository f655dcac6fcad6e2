// Package currencyutils holds the amount and currency conversions shared by the
// wire codec, the CLI and the statement export.
package currencyutils

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// WirePrecision is the number of decimal places amounts carry on the wire.
const WirePrecision = 4

var (
	symbolPattern   = regexp.MustCompile(`[€$£¥\s]`)
	currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)
)

// WireAmount renders an amount the way the gateway exchanges it, e.g. "100.0000".
func WireAmount(amount decimal.Decimal) string {
	return amount.StringFixed(WirePrecision)
}

// ParseAmount parses user input such as "1,234.56", "1.234,56", "€100" or "1'000".
// An empty string is zero.
func ParseAmount(amountStr string) (decimal.Decimal, error) {
	if strings.TrimSpace(amountStr) == "" {
		return decimal.Zero, nil
	}
	amount, err := decimal.NewFromString(StandardizeAmount(amountStr))
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse amount '%s': %w", amountStr, err)
	}
	return amount, nil
}

// StandardizeAmount strips symbols and thousands separators so that
// decimal.NewFromString accepts the result.
func StandardizeAmount(amountStr string) string {
	amountStr = symbolPattern.ReplaceAllString(amountStr, "")
	amountStr = strings.ReplaceAll(amountStr, "'", "")

	switch {
	case strings.Contains(amountStr, ",") && strings.Contains(amountStr, "."):
		if strings.LastIndex(amountStr, ".") < strings.LastIndex(amountStr, ",") {
			amountStr = strings.ReplaceAll(amountStr, ".", "")
			amountStr = strings.ReplaceAll(amountStr, ",", ".")
		} else {
			amountStr = strings.ReplaceAll(amountStr, ",", "")
		}
	case strings.Contains(amountStr, ","):
		parts := strings.Split(amountStr, ",")
		if len(parts) == 2 && len(parts[1]) <= 2 {
			amountStr = strings.ReplaceAll(amountStr, ",", ".")
		} else {
			amountStr = strings.ReplaceAll(amountStr, ",", "")
		}
	}
	return amountStr
}

// NormalizeCurrency upper-cases an ISO 4217 code and rejects anything that is
// not three letters.
func NormalizeCurrency(code string) (string, error) {
	c := strings.ToUpper(strings.TrimSpace(code))
	if !currencyPattern.MatchString(c) {
		return "", fmt.Errorf("invalid currency code '%s'", code)
	}
	return c, nil
}
