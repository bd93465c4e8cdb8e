package colors

import (
	"math"
	"time"
)

// CustomBias scales the distance of learned rules so a rule wins unless a
// canonical color is more than twice as close.
const CustomBias = 0.5

// Rule is a learned correction: pixels near RGB are named Name.
type Rule struct {
	Name      string    `json:"name"`
	R         uint8     `json:"r"`
	G         uint8     `json:"g"`
	B         uint8     `json:"b"`
	Source    string    `json:"source,omitempty"`
	LearnedAt time.Time `json:"learnedAt,omitempty"`
}

func (r Rule) RGB() RGB { return RGB{R: r.R, G: r.G, B: r.B} }

// Key identifies the rule by its observed color.
func (r Rule) Key() string { return r.RGB().Key() }

// NewRule builds a rule for the observed color c.
func NewRule(name string, c RGB) Rule {
	return Rule{Name: name, R: c.R, G: c.G, B: c.B}
}

// Match is the outcome of a classification.
type Match struct {
	Definition Definition
	Distance   float64
	Custom     bool
}

// Classifier matches pixels against a canonical table.
type Classifier struct {
	Table Table
}

func NewClassifier(table Table) Classifier {
	return Classifier{Table: table}
}

// Classify returns the closest color for px: learned rules first (distance
// scaled by CustomBias), then the canonical table. Ties keep the first found.
func (c Classifier) Classify(px RGB, rules []Rule) Definition {
	return c.Match(px, rules).Definition
}

// Match is Classify with the winning distance and origin.
func (c Classifier) Match(px RGB, rules []Rule) Match {
	target := ToLab(px)
	best := Match{Distance: math.Inf(1)}
	if len(c.Table.entries) > 0 {
		best.Definition = cloneDefinition(c.Table.entries[0])
	}
	for _, rule := range rules {
		d := DistanceLab(target, ToLab(rule.RGB())) * CustomBias
		if d < best.Distance {
			best = Match{
				Definition: Definition{Name: rule.Name, RGB: rule.RGB()},
				Distance:   d,
				Custom:     true,
			}
		}
	}
	for _, def := range c.Table.entries {
		d := DistanceLab(target, ToLab(def.RGB))
		if d < best.Distance {
			best = Match{Definition: cloneDefinition(def), Distance: d}
		}
	}
	return best
}

// Classify is a convenience wrapper around Classifier.
func Classify(px RGB, table Table, rules []Rule) Definition {
	return NewClassifier(table).Classify(px, rules)
}
