package resistance

import (
	"errors"
	"testing"
	"time"

	"bandscope/internal/colors"
	"bandscope/internal/faults"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeThreeBandDefaultsTolerance(t *testing.T) {
	res, err := Decode([]string{colors.Red, colors.Violet, colors.Orange})
	require.NoError(t, err)
	assert.True(t, res.Ohms.Equal(decimal.NewFromInt(27000)))
	assert.Equal(t, DefaultTolerance, res.TolerancePercent)
	assert.Equal(t, "27kΩ ±20%", res.String())
}

func TestDecodeFourBand(t *testing.T) {
	res, err := Decode([]string{colors.Yellow, colors.Violet, colors.Brown, colors.Gold})
	require.NoError(t, err)
	assert.Equal(t, "470Ω ±5%", res.String())
}

func TestDecodeFiveAndSixBand(t *testing.T) {
	res, err := Decode([]string{colors.Brown, colors.Black, colors.Black, colors.Red, colors.Brown})
	require.NoError(t, err)
	assert.Equal(t, "10kΩ ±1%", res.String())

	// the temperature coefficient band is ignored
	res, err = Decode([]string{colors.Brown, colors.Black, colors.Black, colors.Red, colors.Brown, colors.Red})
	require.NoError(t, err)
	assert.Equal(t, "10kΩ ±1%", res.String())
}

func TestDecodeFractionalMultiplier(t *testing.T) {
	res, err := Decode([]string{colors.Yellow, colors.Violet, colors.Gold, colors.Gold})
	require.NoError(t, err)
	assert.Equal(t, "4.7Ω ±5%", res.String())

	res, err = Decode([]string{colors.Yellow, colors.Violet, colors.Silver})
	require.NoError(t, err)
	assert.Equal(t, "0.47Ω ±20%", res.String())
}

func TestDecodeGoldSilverWithoutPaletteMultiplier(t *testing.T) {
	var defs []colors.Definition
	for _, def := range colors.DefaultTable().Entries() {
		if def.Name == colors.Gold || def.Name == colors.Silver {
			def.Multiplier = nil
		}
		defs = append(defs, def)
	}
	table, err := colors.NewTable(defs)
	require.NoError(t, err)
	c := NewCodec(table)

	res, err := c.Decode([]string{colors.Yellow, colors.Violet, colors.Gold, colors.Gold})
	require.NoError(t, err)
	assert.Equal(t, "4.7Ω ±5%", res.String())

	res, err = c.Decode([]string{colors.Yellow, colors.Violet, colors.Silver})
	require.NoError(t, err)
	assert.Equal(t, "0.47Ω ±20%", res.String())
}

func TestDecodeErrors(t *testing.T) {
	cases := []struct {
		name  string
		bands []string
		want  error
	}{
		{"too short", []string{colors.Red, colors.Red}, faults.ErrInvalidSequence},
		{"too long", []string{colors.Red, colors.Red, colors.Red, colors.Red, colors.Red, colors.Red, colors.Red}, faults.ErrInvalidSequence},
		{"unknown color", []string{colors.Red, "Magenta", colors.Red}, faults.ErrUnknownColor},
		{"gold as digit", []string{colors.Gold, colors.Red, colors.Red}, faults.ErrInvalidSequence},
		{"body as multiplier", []string{colors.Red, colors.Red, colors.BodyName}, faults.ErrInvalidSequence},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode(tc.bands)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.want), "got %v", err)
			assert.True(t, faults.IsComputation(err))
		})
	}
}

func TestEncode(t *testing.T) {
	got, err := Encode(decimal.NewFromInt(4700))
	require.NoError(t, err)
	assert.Equal(t, []string{colors.Yellow, colors.Violet, colors.Red}, got)

	res, err := Decode(got)
	require.NoError(t, err)
	assert.Equal(t, "4.7kΩ ±20%", res.String())

	got, err = Encode(decimal.NewFromInt(10))
	require.NoError(t, err)
	assert.Equal(t, []string{colors.Brown, colors.Black, colors.Black}, got)

	got, err = Encode(decimal.NewFromInt(1_000_000))
	require.NoError(t, err)
	assert.Equal(t, []string{colors.Brown, colors.Black, colors.Green}, got)
}

func TestEncodeErrors(t *testing.T) {
	_, err := Encode(decimal.NewFromInt(5))
	assert.ErrorIs(t, err, faults.ErrValueTooSmall)

	// 995 rounds to a three digit mantissa
	_, err = Encode(decimal.NewFromInt(995))
	assert.ErrorIs(t, err, faults.ErrExtraction)

	// exponent 11 has no band above White
	_, err = Encode(decimal.New(47, 10))
	assert.ErrorIs(t, err, faults.ErrOutOfRange)

	// 4750 rounds to 4800, more than 1% away
	_, err = Encode(decimal.NewFromInt(4750))
	assert.ErrorIs(t, err, faults.ErrRoundTripMismatch)

	_, err = NewCodec(colors.Table{}).EncodeFloat(0)
	assert.ErrorIs(t, err, faults.ErrValueTooSmall)
}

func TestEncodeHugeExponentFailsFast(t *testing.T) {
	v, err := decimal.NewFromString("1e60000000")
	require.NoError(t, err)

	start := time.Now()
	_, err = Encode(v)
	assert.ErrorIs(t, err, faults.ErrOutOfRange)
	assert.Less(t, time.Since(start), time.Second)
	assert.Less(t, len(err.Error()), 200)

	_, err = Encode(decimal.New(1, 11))
	assert.ErrorIs(t, err, faults.ErrOutOfRange)
	got, err := Encode(decimal.New(99, 9))
	require.NoError(t, err)
	assert.Equal(t, []string{colors.White, colors.White, colors.White}, got)

	tiny, err := decimal.NewFromString("1e-60000000")
	require.NoError(t, err)
	_, err = Encode(tiny)
	assert.ErrorIs(t, err, faults.ErrValueTooSmall)
	assert.Less(t, len(err.Error()), 200)
}

func TestEncodeWithTolerance(t *testing.T) {
	c := NewCodec(colors.DefaultTable())
	got, err := c.EncodeWithTolerance(decimal.NewFromInt(4700), "5")
	require.NoError(t, err)
	assert.Equal(t, []string{colors.Yellow, colors.Violet, colors.Red, colors.Gold}, got)

	got, err = c.EncodeWithTolerance(decimal.NewFromInt(4700), "±0.25%")
	require.NoError(t, err)
	assert.Equal(t, colors.Blue, got[3])

	for _, tol := range []string{"", "None", "20", "abc"} {
		got, err = c.EncodeWithTolerance(decimal.NewFromInt(4700), tol)
		require.NoError(t, err)
		assert.Len(t, got, 3, "tolerance %q", tol)
	}
}

func TestParseValue(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"4.7k", 4700},
		{"4.7K", 4700},
		{"270", 270},
		{"1M", 1_000_000},
		{"10 kΩ", 10_000},
		{"2.2kohm", 2200},
	}
	for _, tc := range cases {
		got, err := ParseValue(tc.in)
		require.NoError(t, err, tc.in)
		assert.True(t, got.Equal(decimal.NewFromInt(tc.want)), "%s -> %s", tc.in, got)
	}

	for _, huge := range []string{"1e60000000", "1e-60000000", "2e31k"} {
		_, err := ParseValue(huge)
		assert.ErrorIs(t, err, faults.ErrOutOfRange, huge)
	}

	for _, bad := range []string{"", "k", "abc", "Ω"} {
		_, err := ParseValue(bad)
		assert.ErrorIs(t, err, faults.ErrMalformedInput, bad)
		assert.True(t, faults.IsClientError(err))
	}
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "470Ω", Format(decimal.NewFromInt(470)))
	assert.Equal(t, "1kΩ", Format(decimal.NewFromInt(1000)))
	assert.Equal(t, "4.7kΩ", Format(decimal.NewFromInt(4700)))
	assert.Equal(t, "2.2MΩ", Format(decimal.NewFromInt(2_200_000)))
	assert.Equal(t, "0.1Ω", Format(decimal.NewFromFloat(0.1)))
}
