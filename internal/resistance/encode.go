package resistance

import (
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"

	"bandscope/internal/colors"
	"bandscope/internal/faults"

	"github.com/shopspring/decimal"
)

// maxEncodableExponent: White (9) is the largest multiplier, so a three band
// code tops out at 99e9.
const maxEncodableExponent = 10

var roundTripSlop = decimal.NewFromFloat(0.01)

// Encode uses the default color table.
func Encode(ohms decimal.Decimal) ([]string, error) {
	return NewCodec(colors.DefaultTable()).Encode(ohms)
}

// EncodeFloat is Encode for plain float inputs. NaN and Inf are malformed.
func (c *Codec) EncodeFloat(ohms float64) ([]string, error) {
	if math.IsNaN(ohms) || math.IsInf(ohms, 0) {
		return nil, faults.New(faults.KindMalformedInput, "resistance %v is not a finite number", ohms)
	}
	return c.Encode(decimal.NewFromFloat(ohms))
}

// Encode returns the standard three band code (two digits and a multiplier)
// for ohms.
func (c *Codec) Encode(ohms decimal.Decimal) ([]string, error) {
	// 量级只看系数位数和指数，不把整数部分格式化成字符串
	if ohms.Sign() <= 0 || magnitude(ohms) < 1 {
		return nil, faults.New(faults.KindValueTooSmall, "cannot encode %sΩ: below 10Ω", boundedString(ohms))
	}
	exp := magnitude(ohms)
	if exp > maxEncodableExponent {
		return nil, faults.New(faults.KindOutOfRange, "cannot encode a value of order 1e%dΩ: above 99e9Ω", exp)
	}
	exponent := int(exp)
	mantissa := ohms.Shift(int32(-(exponent - 1))).Round(0).IntPart()
	if mantissa < 10 || mantissa > 99 {
		return nil, faults.New(faults.KindExtraction, "cannot extract two significant digits from %sΩ", ohms.String())
	}

	tens, ones, power := int(mantissa/10), int(mantissa%10), exponent-1
	names := make([]string, 0, 3)
	for _, v := range []int{tens, ones, power} {
		def, ok := c.table.Digit(v)
		if !ok {
			return nil, faults.New(faults.KindOutOfRange, "no band color for value %d in %sΩ", v, ohms.String())
		}
		names = append(names, def.Name)
	}

	rebuilt := decimal.New(mantissa, int32(power))
	if rebuilt.Sub(ohms).Abs().Div(ohms).GreaterThanOrEqual(roundTripSlop) {
		return nil, faults.New(faults.KindRoundTripMismatch, "%sΩ does not round-trip (got %sΩ)", ohms.String(), rebuilt.String())
	}
	return names, nil
}

// magnitude is floor(log10(d)) for a positive d.
func magnitude(d decimal.Decimal) int64 {
	digits := len(new(big.Int).Abs(d.Coefficient()).String())
	return int64(d.Exponent()) + int64(digits) - 1
}

// boundedString formats d only when its exponent is small enough for the
// text to stay short.
func boundedString(d decimal.Decimal) string {
	if e := d.Exponent(); e > maxValueExponent || e < -maxValueExponent {
		return fmt.Sprintf("%se%d", d.Coefficient().String(), e)
	}
	return d.String()
}

// EncodeWithTolerance appends a tolerance band when tolerance maps onto one.
// An empty, "none" or unmapped tolerance leaves the code at three bands.
func (c *Codec) EncodeWithTolerance(ohms decimal.Decimal, tolerance string) ([]string, error) {
	names, err := c.Encode(ohms)
	if err != nil {
		return nil, err
	}
	if pct, ok := ParseTolerance(tolerance); ok {
		if name, ok := colors.ToleranceColor(pct); ok {
			names = append(names, name)
		}
	}
	return names, nil
}

// ParseTolerance accepts "5", "5%", "±5%" or "0.25". "None" and blanks are
// reported as absent.
func ParseTolerance(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "±")
	s = strings.TrimSuffix(s, "%")
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "none") {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}
