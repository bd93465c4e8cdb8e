package bands

import (
	"fmt"
	"sort"
	"strings"

	"bandscope/internal/colors"
)

// DefaultMaxCodeLength is the longest sequence kept by the width heuristic.
const DefaultMaxCodeLength = 4

// BodyFilter removes bands that belong to the resistor body rather than the
// value code. Implementations must not reorder the remaining bands.
type BodyFilter interface {
	Name() string
	Filter(bs []Band) []Band
}

// NamedFilter drops every band classified as the body color.
type NamedFilter struct {
	BodyName string
}

func (f NamedFilter) Name() string { return "named" }

func (f NamedFilter) Filter(bs []Band) []Band {
	body := f.BodyName
	if body == "" {
		body = colors.BodyName
	}
	out := make([]Band, 0, len(bs))
	for _, b := range bs {
		if b.ColorName == body {
			continue
		}
		out = append(out, b)
	}
	return out
}

// WidestFilter drops the single widest band when more than MaxCodeLength
// remain, on the assumption that it is the body.
type WidestFilter struct {
	MaxCodeLength int
}

func (f WidestFilter) Name() string { return "widest" }

func (f WidestFilter) Filter(bs []Band) []Band {
	limit := f.MaxCodeLength
	if limit <= 0 {
		limit = DefaultMaxCodeLength
	}
	if len(bs) <= limit {
		return append([]Band(nil), bs...)
	}
	return DropWidest(bs, 1)
}

// DropWidest removes the n widest bands (first occurrence wins among equal
// widths) and keeps the survivors in x order.
func DropWidest(bs []Band, n int) []Band {
	if n <= 0 {
		return append([]Band(nil), bs...)
	}
	if n >= len(bs) {
		return []Band{}
	}
	idx := make([]int, len(bs))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return bs[idx[a]].Width > bs[idx[b]].Width })
	drop := make(map[int]bool, n)
	for _, i := range idx[:n] {
		drop[i] = true
	}
	out := make([]Band, 0, len(bs)-n)
	for i, b := range bs {
		if !drop[i] {
			out = append(out, b)
		}
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].X < out[b].X })
	return out
}

// DominantFilter drops all bands sharing the most frequent name, provided
// it appears at least MinRepeat times.
type DominantFilter struct {
	MinRepeat int
}

func (f DominantFilter) Name() string { return "dominant" }

func (f DominantFilter) Filter(bs []Band) []Band {
	name, count := DominantName(Names(bs))
	minRepeat := f.MinRepeat
	if minRepeat <= 0 {
		minRepeat = 2
	}
	if name == "" || count < minRepeat {
		return append([]Band(nil), bs...)
	}
	out := make([]Band, 0, len(bs))
	for _, b := range bs {
		if b.ColorName != name {
			out = append(out, b)
		}
	}
	return out
}

// DominantName returns the most frequent name; ties go to the name seen first.
func DominantName(names []string) (string, int) {
	counts := make(map[string]int, len(names))
	order := make([]string, 0, len(names))
	for _, n := range names {
		if _, ok := counts[n]; !ok {
			order = append(order, n)
		}
		counts[n]++
	}
	best, bestCount := "", 0
	for _, n := range order {
		if counts[n] > bestCount {
			best, bestCount = n, counts[n]
		}
	}
	return best, bestCount
}

// ChainFilter applies filters in order.
type ChainFilter []BodyFilter

func (c ChainFilter) Name() string {
	names := make([]string, 0, len(c))
	for _, f := range c {
		if f != nil {
			names = append(names, f.Name())
		}
	}
	return strings.Join(names, "+")
}

func (c ChainFilter) Filter(bs []Band) []Band {
	out := append([]Band(nil), bs...)
	for _, f := range c {
		if f == nil {
			continue
		}
		out = f.Filter(out)
	}
	return out
}

// NewBodyFilter resolves a policy name: named, widest, dominant, or a "+"
// separated chain such as "named+widest".
func NewBodyFilter(policy, bodyName string, maxCodeLength int) (BodyFilter, error) {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(policy)), "+")
	chain := make(ChainFilter, 0, len(parts))
	for _, p := range parts {
		switch strings.TrimSpace(p) {
		case "named":
			chain = append(chain, NamedFilter{BodyName: bodyName})
		case "widest":
			chain = append(chain, WidestFilter{MaxCodeLength: maxCodeLength})
		case "dominant":
			chain = append(chain, DominantFilter{})
		case "", "none":
		default:
			return nil, fmt.Errorf("unknown body policy %q", p)
		}
	}
	if len(chain) == 1 {
		return chain[0], nil
	}
	return chain, nil
}
