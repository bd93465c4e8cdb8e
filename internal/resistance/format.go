package resistance

import (
	"strings"

	"github.com/shopspring/decimal"
)

var (
	kilo = decimal.NewFromInt(1_000)
	mega = decimal.NewFromInt(1_000_000)
)

// Format renders ohms with an Ω, kΩ or MΩ suffix. Scaled values carry one
// decimal place with a trailing ".0" removed; plain ohms print as-is.
func Format(ohms decimal.Decimal) string {
	switch {
	case ohms.GreaterThanOrEqual(mega):
		return scaled(ohms.Div(mega)) + "MΩ"
	case ohms.GreaterThanOrEqual(kilo):
		return scaled(ohms.Div(kilo)) + "kΩ"
	default:
		return ohms.String() + "Ω"
	}
}

func scaled(v decimal.Decimal) string {
	return strings.TrimSuffix(v.StringFixed(1), ".0")
}
