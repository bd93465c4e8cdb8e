package colors

import (
	"errors"
	"fmt"
	"strings"
)

// Canonical band names.
const (
	Black  = "Black"
	Brown  = "Brown"
	Red    = "Red"
	Orange = "Orange"
	Yellow = "Yellow"
	Green  = "Green"
	Blue   = "Blue"
	Violet = "Violet"
	Gray   = "Gray"
	White  = "White"
	Gold   = "Gold"
	Silver = "Silver"

	BodyName = "Beige (Body)"
)

// Definition 描述色环颜色：数字、倍率、误差。
type Definition struct {
	Name       string   `json:"name" yaml:"name"`
	RGB        RGB      `json:"rgb" yaml:",inline"`
	Value      *int     `json:"value,omitempty" yaml:"value,omitempty"`
	Multiplier *float64 `json:"multiplier,omitempty" yaml:"multiplier,omitempty"`
	Tolerance  *float64 `json:"tolerance,omitempty" yaml:"tolerance,omitempty"`
	Body       bool     `json:"body,omitempty" yaml:"body,omitempty"`
}

// HasValue reports whether the definition is a digit color.
func (d Definition) HasValue() bool { return d.Value != nil }

func (d Definition) Hex() string { return d.RGB.Hex() }

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }

func digit(name string, r, g, b uint8, value int, multiplier float64, tolerance *float64) Definition {
	return Definition{
		Name:       name,
		RGB:        RGB{R: r, G: g, B: b},
		Value:      intPtr(value),
		Multiplier: floatPtr(multiplier),
		Tolerance:  tolerance,
	}
}

func defaultDefinitions() []Definition {
	return []Definition{
		digit(Black, 0, 0, 0, 0, 1, nil),
		digit(Brown, 165, 42, 42, 1, 10, floatPtr(1)),
		digit(Red, 255, 0, 0, 2, 100, floatPtr(2)),
		digit(Orange, 255, 165, 0, 3, 1e3, nil),
		digit(Yellow, 255, 255, 0, 4, 1e4, nil),
		digit(Green, 0, 128, 0, 5, 1e5, floatPtr(0.5)),
		digit(Blue, 0, 0, 255, 6, 1e6, floatPtr(0.25)),
		digit(Violet, 238, 130, 238, 7, 1e7, floatPtr(0.1)),
		digit(Gray, 128, 128, 128, 8, 1e8, floatPtr(0.05)),
		digit(White, 255, 255, 255, 9, 1e9, nil),
		{Name: Gold, RGB: RGB{R: 255, G: 215, B: 0}, Multiplier: floatPtr(0.1), Tolerance: floatPtr(5)},
		{Name: Silver, RGB: RGB{R: 192, G: 192, B: 192}, Multiplier: floatPtr(0.01), Tolerance: floatPtr(10)},
		{Name: BodyName, RGB: RGB{R: 245, G: 245, B: 220}, Body: true},
	}
}

// Table is an ordered, read-only set of canonical colors. Construct it with
// NewTable or DefaultTable; the zero value is empty.
type Table struct {
	entries []Definition
	byName  map[string]int
	digits  [10]int
	body    int
}

// DefaultTable returns the built-in canonical table.
func DefaultTable() Table {
	t, err := NewTable(defaultDefinitions())
	if err != nil {
		panic(fmt.Sprintf("default color table invalid: %v", err))
	}
	return t
}

// NewTable validates defs and builds a Table. Digit colors must carry unique
// values 0-9, Gold/Silver must not carry a value, and at most one body entry
// is allowed. Later entries with a repeated name are kept for matching but
// lookups by name resolve to the first.
func NewTable(defs []Definition) (Table, error) {
	if len(defs) == 0 {
		return Table{}, errors.New("color table is empty")
	}
	t := Table{
		entries: make([]Definition, 0, len(defs)),
		byName:  make(map[string]int, len(defs)),
		body:    -1,
	}
	for i := range t.digits {
		t.digits[i] = -1
	}
	for _, def := range defs {
		def.Name = strings.TrimSpace(def.Name)
		if def.Name == "" {
			return Table{}, fmt.Errorf("color #%d has no name", len(t.entries)+1)
		}
		idx := len(t.entries)
		_, dup := t.byName[def.Name]
		if !dup {
			t.byName[def.Name] = idx
		}
		if def.Value != nil {
			v := *def.Value
			if v < 0 || v > 9 {
				return Table{}, fmt.Errorf("color %s: value %d outside 0-9", def.Name, v)
			}
			if prev := t.digits[v]; prev >= 0 && t.entries[prev].Name != def.Name {
				return Table{}, fmt.Errorf("color %s: value %d already used by %s", def.Name, v, t.entries[prev].Name)
			}
			if t.digits[v] < 0 {
				t.digits[v] = idx
			}
		}
		if (def.Name == Gold || def.Name == Silver) && def.Value != nil {
			return Table{}, fmt.Errorf("color %s must not carry a digit value", def.Name)
		}
		if def.Body {
			if t.body >= 0 && t.entries[t.body].Name != def.Name {
				return Table{}, fmt.Errorf("multiple body colors: %s and %s", t.entries[t.body].Name, def.Name)
			}
			if t.body < 0 {
				t.body = idx
			}
			def.Value = nil
			def.Multiplier = nil
			def.Tolerance = nil
		}
		t.entries = append(t.entries, cloneDefinition(def))
	}
	return t, nil
}

func cloneDefinition(d Definition) Definition {
	out := d
	if d.Value != nil {
		out.Value = intPtr(*d.Value)
	}
	if d.Multiplier != nil {
		out.Multiplier = floatPtr(*d.Multiplier)
	}
	if d.Tolerance != nil {
		out.Tolerance = floatPtr(*d.Tolerance)
	}
	return out
}

// Len returns the number of entries.
func (t Table) Len() int { return len(t.entries) }

// Entries returns a copy of the table in order.
func (t Table) Entries() []Definition {
	out := make([]Definition, len(t.entries))
	for i, d := range t.entries {
		out[i] = cloneDefinition(d)
	}
	return out
}

// Lookup finds the first entry named name.
func (t Table) Lookup(name string) (Definition, bool) {
	idx, ok := t.byName[strings.TrimSpace(name)]
	if !ok {
		return Definition{}, false
	}
	return cloneDefinition(t.entries[idx]), true
}

// Digit returns the color that encodes v (0-9).
func (t Table) Digit(v int) (Definition, bool) {
	if v < 0 || v > 9 || t.entries == nil {
		return Definition{}, false
	}
	idx := t.digits[v]
	if idx < 0 {
		return Definition{}, false
	}
	return cloneDefinition(t.entries[idx]), true
}

// BodyName returns the designated body color name, or "" if none.
func (t Table) BodyName() string {
	if t.entries == nil || t.body < 0 {
		return ""
	}
	return t.entries[t.body].Name
}

// Names lists distinct names in table order.
func (t Table) Names() []string {
	out := make([]string, 0, len(t.byName))
	seen := make(map[string]bool, len(t.byName))
	for _, d := range t.entries {
		if seen[d.Name] {
			continue
		}
		seen[d.Name] = true
		out = append(out, d.Name)
	}
	return out
}

// ToleranceColor maps a tolerance percentage to its band color.
// "None" (20%) and unmapped values return false.
func ToleranceColor(percent float64) (string, bool) {
	for _, tc := range toleranceColors {
		if tc.percent == percent {
			return tc.name, true
		}
	}
	return "", false
}

var toleranceColors = []struct {
	name    string
	percent float64
}{
	{Gold, 5},
	{Silver, 10},
	{Brown, 1},
	{Red, 2},
	{Green, 0.5},
	{Blue, 0.25},
	{Violet, 0.1},
}
