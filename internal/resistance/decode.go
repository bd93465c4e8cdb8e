package resistance

import (
	"strconv"

	"bandscope/internal/colors"
	"bandscope/internal/faults"

	"github.com/shopspring/decimal"
)

// DefaultTolerance applies when the code carries no tolerance band.
const DefaultTolerance = 20.0

// Result is a decoded resistor value.
type Result struct {
	Ohms             decimal.Decimal `json:"ohms"`
	TolerancePercent float64         `json:"tolerance_percent"`
	Bands            []string        `json:"bands"`
}

// String renders e.g. "27kΩ ±20%".
func (r Result) String() string {
	return Format(r.Ohms) + " ±" + strconv.FormatFloat(r.TolerancePercent, 'f', -1, 64) + "%"
}

// Codec decodes band sequences against a color table and encodes values
// back into bands.
type Codec struct {
	table colors.Table
}

// NewCodec binds a codec to table; an empty table falls back to the default.
func NewCodec(table colors.Table) *Codec {
	if table.Len() == 0 {
		table = colors.DefaultTable()
	}
	return &Codec{table: table}
}

// Table returns the color table the codec resolves names against.
func (c *Codec) Table() colors.Table { return c.table }

// Decode uses the default color table.
func Decode(names []string) (Result, error) {
	return NewCodec(colors.DefaultTable()).Decode(names)
}

// layout returns how many leading digit bands a code of n bands has and
// whether a tolerance band follows the multiplier.
func layout(n int) (digits int, hasTolerance bool, ok bool) {
	switch n {
	case 3:
		return 2, false, true
	case 4:
		return 2, true, true
	case 5, 6:
		// 第六环为温度系数，不参与计算
		return 3, true, true
	default:
		return 0, false, false
	}
}

// Decode maps 3 to 6 band names onto a resistance and tolerance.
func (c *Codec) Decode(names []string) (Result, error) {
	digitCount, hasTolerance, ok := layout(len(names))
	if !ok {
		return Result{}, faults.New(faults.KindInvalidSequence, "unsupported band count %d", len(names))
	}
	defs := make([]colors.Definition, len(names))
	for i, name := range names {
		def, found := c.table.Lookup(name)
		if !found {
			return Result{}, faults.New(faults.KindUnknownColor, "unknown color %q at band %d", name, i+1)
		}
		defs[i] = def
	}

	var digits int64
	for i := 0; i < digitCount; i++ {
		if !defs[i].HasValue() {
			return Result{}, faults.New(faults.KindInvalidSequence, "band %d (%s) is not a digit color", i+1, defs[i].Name)
		}
		digits = digits*10 + int64(*defs[i].Value)
	}

	multiplier, err := multiplierOf(defs[digitCount])
	if err != nil {
		return Result{}, err
	}

	tolerance := DefaultTolerance
	if hasTolerance {
		if t := defs[digitCount+1].Tolerance; t != nil {
			tolerance = *t
		}
	}

	return Result{
		Ohms:             decimal.NewFromInt(digits).Mul(multiplier),
		TolerancePercent: tolerance,
		Bands:            append([]string(nil), names...),
	}, nil
}

func multiplierOf(def colors.Definition) (decimal.Decimal, error) {
	if def.Multiplier != nil {
		return decimal.NewFromFloat(*def.Multiplier), nil
	}
	if def.HasValue() {
		return decimal.New(1, int32(*def.Value)), nil
	}
	// 颜色表没写 multiplier 时金银仍按 ×0.1 / ×0.01
	switch def.Name {
	case colors.Gold:
		return decimal.New(1, -1), nil
	case colors.Silver:
		return decimal.New(1, -2), nil
	}
	return decimal.Zero, faults.New(faults.KindInvalidSequence, "%s cannot be used as a multiplier", def.Name)
}
