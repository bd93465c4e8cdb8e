package bands

import (
	"fmt"
	"strings"

	"bandscope/internal/colors"
)

// Aggregator 将多个切片的色环序列合并为一个共识序列。
type Aggregator interface {
	Name() string
	Aggregate(slices [][]string) []string
}

// ExactSequenceAggregator votes on whole sequences.
type ExactSequenceAggregator struct {
	MinLength int
	// RequireAgreement rejects a winner backed by a single slice when more
	// than one slice took part in the vote.
	RequireAgreement bool
}

func (a ExactSequenceAggregator) Name() string { return "exact" }

func (a ExactSequenceAggregator) Aggregate(slices [][]string) []string {
	minLen := a.MinLength
	if minLen <= 0 {
		minLen = 3
	}
	counts := make(map[string]int)
	order := make([]string, 0, len(slices))
	for _, seq := range slices {
		if len(seq) < minLen {
			continue
		}
		key := strings.Join(seq, ",")
		if _, ok := counts[key]; !ok {
			order = append(order, key)
		}
		counts[key]++
	}
	best, bestCount := "", 0
	for _, key := range order {
		if counts[key] > bestCount {
			best, bestCount = key, counts[key]
		}
	}
	if bestCount == 0 {
		return []string{}
	}
	if a.RequireAgreement && bestCount < 2 && len(slices) > 1 {
		return []string{}
	}
	return strings.Split(best, ",")
}

// PositionalAggregator takes the majority name at each band position.
type PositionalAggregator struct {
	IgnoreName string
}

func (a PositionalAggregator) Name() string { return "positional" }

func (a PositionalAggregator) Aggregate(slices [][]string) []string {
	votes := a.Votes(slices)
	out := make([]string, 0, len(votes))
	for _, pos := range votes {
		if pos.Winner == "" {
			continue
		}
		out = append(out, pos.Winner)
	}
	return out
}

// PositionVotes is the tally for one band position.
type PositionVotes struct {
	Position int            `json:"position"`
	Counts   map[string]int `json:"counts"`
	Winner   string         `json:"winner,omitempty"`
	Support  int            `json:"support"`
	Slices   int            `json:"slices"`
}

// Votes returns per-position tallies; ties go to the first name seen.
func (a PositionalAggregator) Votes(slices [][]string) []PositionVotes {
	ignore := a.IgnoreName
	if ignore == "" {
		ignore = colors.BodyName
	}
	maxLen := 0
	for _, seq := range slices {
		if len(seq) > maxLen {
			maxLen = len(seq)
		}
	}
	out := make([]PositionVotes, 0, maxLen)
	for pos := 0; pos < maxLen; pos++ {
		pv := PositionVotes{Position: pos, Counts: map[string]int{}, Slices: len(slices)}
		var order []string
		for _, seq := range slices {
			if pos >= len(seq) {
				continue
			}
			name := seq[pos]
			if name == "" || name == ignore {
				continue
			}
			if _, ok := pv.Counts[name]; !ok {
				order = append(order, name)
			}
			pv.Counts[name]++
		}
		for _, name := range order {
			if pv.Counts[name] > pv.Support {
				pv.Winner, pv.Support = name, pv.Counts[name]
			}
		}
		out = append(out, pv)
	}
	return out
}

// NewAggregator resolves "positional" (default) or "exact".
func NewAggregator(strategy string, minLength int, bodyName string) (Aggregator, error) {
	switch strings.ToLower(strings.TrimSpace(strategy)) {
	case "", "positional":
		return PositionalAggregator{IgnoreName: bodyName}, nil
	case "exact":
		return ExactSequenceAggregator{MinLength: minLength, RequireAgreement: true}, nil
	default:
		return nil, fmt.Errorf("unknown aggregation strategy %q", strategy)
	}
}
