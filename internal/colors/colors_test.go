package colors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToLabReferencePoints(t *testing.T) {
	white := ToLab(RGB{R: 255, G: 255, B: 255})
	assert.InDelta(t, 100, white.L, 0.01)
	assert.InDelta(t, 0, white.A, 0.05)
	assert.InDelta(t, 0, white.B, 0.05)

	black := ToLab(RGB{})
	assert.InDelta(t, 0, black.L, 1e-9)

	red := ToLab(RGB{R: 255})
	assert.InDelta(t, 53.24, red.L, 0.05)
	assert.InDelta(t, 80.09, red.A, 0.1)
	assert.InDelta(t, 67.20, red.B, 0.1)
}

func TestDistanceIsSymmetricAndZeroOnEqual(t *testing.T) {
	a := RGB{R: 10, G: 200, B: 30}
	b := RGB{R: 90, G: 20, B: 130}
	assert.Equal(t, 0.0, Distance(a, a))
	assert.InDelta(t, Distance(a, b), Distance(b, a), 1e-12)
	assert.Greater(t, Distance(a, b), 10.0)
}

func TestClassifyCanonicalEntriesExactly(t *testing.T) {
	table := DefaultTable()
	for _, def := range table.Entries() {
		got := Classify(def.RGB, table, nil)
		assert.Equal(t, def.Name, got.Name, "rgb %v", def.RGB)
	}
}

func TestClassifyIsDeterministic(t *testing.T) {
	table := DefaultTable()
	rules := []Rule{NewRule(Gold, RGB{R: 180, G: 140, B: 20})}
	px := RGB{R: 200, G: 150, B: 40}
	first := Classify(px, table, rules)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Classify(px, table, rules))
	}
}

func TestCustomRuleWinsWithinBias(t *testing.T) {
	table := DefaultTable()
	c := NewClassifier(table)

	observed := RGB{R: 120, G: 80, B: 40}
	rules := []Rule{NewRule(Brown, observed)}
	m := c.Match(observed, rules)
	assert.True(t, m.Custom)
	assert.Equal(t, Brown, m.Definition.Name)
	assert.Equal(t, 0.0, m.Distance)

	// near the rule, far from every canonical entry
	px := RGB{R: 124, G: 82, B: 44}
	m = c.Match(px, rules)
	require.True(t, m.Custom)
	for _, def := range table.Entries() {
		assert.Greater(t, Distance(px, def.RGB), 2*Distance(px, observed))
	}
}

func TestCanonicalWinsWhenMoreThanTwiceAsClose(t *testing.T) {
	table := DefaultTable()
	// a rule labelled Blue sitting on a reddish color; pure red is exact
	rules := []Rule{NewRule(Blue, RGB{R: 230, G: 30, B: 30})}
	got := Classify(RGB{R: 255}, table, rules)
	assert.Equal(t, Red, got.Name)
}

func TestClassifyTieKeepsFirst(t *testing.T) {
	table := DefaultTable()
	rules := []Rule{
		NewRule("First", RGB{R: 1, G: 2, B: 3}),
		NewRule("Second", RGB{R: 1, G: 2, B: 3}),
	}
	assert.Equal(t, "First", Classify(RGB{R: 1, G: 2, B: 3}, table, rules).Name)
}

func TestNewTableValidation(t *testing.T) {
	_, err := NewTable(nil)
	assert.Error(t, err)

	dupDigit := []Definition{
		{Name: Black, Value: intPtr(0)},
		{Name: Brown, Value: intPtr(0)},
	}
	_, err = NewTable(dupDigit)
	assert.ErrorContains(t, err, "already used")

	goldDigit := []Definition{{Name: Gold, Value: intPtr(3)}}
	_, err = NewTable(goldDigit)
	assert.ErrorContains(t, err, "must not carry")

	twoBodies := []Definition{{Name: "A", Body: true}, {Name: "B", Body: true}}
	_, err = NewTable(twoBodies)
	assert.ErrorContains(t, err, "multiple body")
}

func TestTableLookups(t *testing.T) {
	table := DefaultTable()
	assert.Equal(t, 13, table.Len())
	assert.Equal(t, BodyName, table.BodyName())

	d, ok := table.Digit(4)
	require.True(t, ok)
	assert.Equal(t, Yellow, d.Name)

	_, ok = table.Digit(10)
	assert.False(t, ok)

	gold, ok := table.Lookup(" Gold ")
	require.True(t, ok)
	assert.False(t, gold.HasValue())
	require.NotNil(t, gold.Multiplier)
	assert.Equal(t, 0.1, *gold.Multiplier)

	// mutating a copy does not leak into the table
	*gold.Multiplier = 42
	again, _ := table.Lookup(Gold)
	assert.Equal(t, 0.1, *again.Multiplier)
}

func TestToleranceColor(t *testing.T) {
	name, ok := ToleranceColor(5)
	assert.True(t, ok)
	assert.Equal(t, Gold, name)

	name, _ = ToleranceColor(0.25)
	assert.Equal(t, Blue, name)

	_, ok = ToleranceColor(20)
	assert.False(t, ok)
}

func TestHexAndAverage(t *testing.T) {
	assert.Equal(t, "#FF0A00", RGB{R: 255, G: 10}.Hex())
	assert.Equal(t, "1,2,3", RGB{R: 1, G: 2, B: 3}.Key())
	avg := Average([]RGB{{R: 0, G: 0, B: 0}, {R: 1, G: 3, B: 255}})
	assert.Equal(t, RGB{R: 1, G: 2, B: 128}, avg)
	assert.Equal(t, RGB{}, Average(nil))
}
