package resistance

import (
	"strings"

	"bandscope/internal/faults"

	"github.com/shopspring/decimal"
)

// maxValueExponent bounds the decimal exponent accepted by ParseValue, so
// inputs such as "1e60000000" never expand into huge digit strings.
const maxValueExponent = 30

// ParseValue reads "4.7k", "270", "1M" or "10 kΩ". A trailing K or M
// (any case) scales by 1e3 or 1e6.
func ParseValue(s string) (decimal.Decimal, error) {
	raw := s
	s = strings.ToUpper(strings.TrimSpace(s))
	for _, unit := range []string{"OHMS", "OHM", "Ω"} {
		s = strings.TrimSuffix(s, unit)
	}
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return decimal.Zero, faults.New(faults.KindMalformedInput, "empty resistance value")
	}

	scale := decimal.NewFromInt(1)
	switch s[len(s)-1] {
	case 'K':
		scale = kilo
		s = s[:len(s)-1]
	case 'M':
		scale = mega
		s = s[:len(s)-1]
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, faults.Wrap(faults.KindMalformedInput, err, "parse resistance "+raw)
	}
	if e := v.Exponent(); e > maxValueExponent || e < -maxValueExponent {
		return decimal.Zero, faults.New(faults.KindOutOfRange, "resistance %s is out of range", strings.TrimSpace(raw))
	}
	return v.Mul(scale), nil
}
