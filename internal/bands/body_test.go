package bands

import (
	"testing"

	"bandscope/internal/colors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bandsOf(names []string, widths []int) []Band {
	out := make([]Band, len(names))
	x := 0
	for i, n := range names {
		out[i] = Band{X: x + widths[i]/2, ColorName: n, Width: widths[i]}
		x += widths[i]
	}
	return out
}

func TestNamedFilterDropsBody(t *testing.T) {
	bs := bandsOf([]string{colors.BodyName, colors.Brown, colors.BodyName, colors.Black}, []int{30, 10, 30, 10})
	got := NamedFilter{}.Filter(bs)
	assert.Equal(t, []string{colors.Brown, colors.Black}, Names(got))
}

func TestWidestFilterLimitsCodeLength(t *testing.T) {
	bs := bandsOf(
		[]string{colors.Brown, colors.Black, "Body", colors.Red, colors.Gold},
		[]int{10, 12, 40, 11, 10},
	)
	got := WidestFilter{}.Filter(bs)
	require.Len(t, got, 4)
	assert.Equal(t, []string{colors.Brown, colors.Black, colors.Red, colors.Gold}, Names(got))
	for i := 1; i < len(got); i++ {
		assert.Less(t, got[i-1].X, got[i].X)
	}

	short := bs[:4]
	assert.Equal(t, Names(short), Names(WidestFilter{}.Filter(short)))
}

func TestDropWidestTieKeepsLaterBand(t *testing.T) {
	bs := bandsOf([]string{"A", "B", "C"}, []int{20, 20, 10})
	assert.Equal(t, []string{"B", "C"}, Names(DropWidest(bs, 1)))
	assert.Equal(t, []string{"C"}, Names(DropWidest(bs, 2)))
	assert.Empty(t, DropWidest(bs, 3))
	assert.Equal(t, []string{"A", "B", "C"}, Names(DropWidest(bs, 0)))
}

func TestDominantFilter(t *testing.T) {
	bs := bandsOf(
		[]string{colors.BodyName, colors.Brown, colors.BodyName, colors.Black, colors.BodyName, colors.Red},
		[]int{10, 10, 10, 10, 10, 10},
	)
	got := DominantFilter{}.Filter(bs)
	assert.Equal(t, []string{colors.Brown, colors.Black, colors.Red}, Names(got))

	// nothing repeats, nothing is removed
	distinct := bandsOf([]string{colors.Brown, colors.Black, colors.Red}, []int{10, 10, 10})
	assert.Equal(t, Names(distinct), Names(DominantFilter{}.Filter(distinct)))
}

func TestDominantNameTieGoesToFirst(t *testing.T) {
	name, n := DominantName([]string{"A", "B", "B", "A"})
	assert.Equal(t, "A", name)
	assert.Equal(t, 2, n)

	name, n = DominantName(nil)
	assert.Equal(t, "", name)
	assert.Equal(t, 0, n)
}

func TestNewBodyFilterPolicies(t *testing.T) {
	f, err := NewBodyFilter("named+widest", colors.BodyName, 4)
	require.NoError(t, err)
	assert.Equal(t, "named+widest", f.Name())

	bs := bandsOf(
		[]string{colors.BodyName, colors.Brown, colors.Black, colors.Red, colors.Gold, colors.Violet},
		[]int{50, 10, 10, 10, 10, 30},
	)
	got := f.Filter(bs)
	assert.Equal(t, []string{colors.Brown, colors.Black, colors.Red, colors.Gold}, Names(got))

	f, err = NewBodyFilter("dominant", "", 0)
	require.NoError(t, err)
	assert.Equal(t, "dominant", f.Name())

	f, err = NewBodyFilter("none", "", 0)
	require.NoError(t, err)
	assert.Len(t, f.Filter(bs), len(bs))

	_, err = NewBodyFilter("named+guess", "", 0)
	assert.Error(t, err)
}
