package learning

import (
	"context"
	"strings"
	"sync"
	"time"

	"bandscope/internal/bands"
	"bandscope/internal/colors"
	"bandscope/internal/faults"
	"bandscope/internal/logger"
	"bandscope/internal/resistance"
	"bandscope/internal/store"
)

// Rule sources.
const (
	SourceManual = "manual"
	SourceValue  = "value"
)

// TableSource supplies the current color table; palette.Registry is one.
type TableSource interface {
	Table() colors.Table
}

// Service 负责学习用户纠正的颜色规则：读取、合并、写回。
type Service struct {
	repo   store.RuleRepository
	tables TableSource
	now    func() time.Time

	// 同一进程内串行化 read-merge-write；跨进程仍为 last-writer-wins。
	mu sync.Mutex
}

func NewService(repo store.RuleRepository, tables TableSource) *Service {
	return &Service{repo: repo, tables: tables, now: time.Now}
}

// Rules returns the stored rules.
func (s *Service) Rules(ctx context.Context) ([]colors.Rule, error) {
	return s.repo.Load(ctx)
}

// Clear forgets every learned rule.
func (s *Service) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.repo.Clear(ctx); err != nil {
		return err
	}
	logger.Infof("learning: cleared custom color rules")
	return nil
}

// Learn stores name as the correct label for the observed color, replacing
// any rule already keyed by the same RGB.
func (s *Service) Learn(ctx context.Context, observed colors.RGB, name string) (colors.Rule, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return colors.Rule{}, faults.New(faults.KindMalformedInput, "correct color name is required")
	}
	def, ok := s.tables.Table().Lookup(name)
	if !ok {
		return colors.Rule{}, faults.New(faults.KindUnknownColor, "unknown color %q", name)
	}
	rule := colors.NewRule(def.Name, observed)
	rule.Source = SourceManual
	rule.LearnedAt = s.now().UTC()
	if err := s.merge(ctx, []colors.Rule{rule}); err != nil {
		return colors.Rule{}, err
	}
	logger.Infof("learning: %s -> %s", rule.Key(), rule.Name)
	return rule, nil
}

// LearnFromValue back-derives rules from a known resistance. Extra detected
// bands beyond the expected code length are treated as body and the widest
// are dropped first.
func (s *Service) LearnFromValue(ctx context.Context, detected []bands.Band, value, tolerance string) ([]colors.Rule, error) {
	if len(detected) == 0 {
		return nil, faults.New(faults.KindMalformedInput, "detected bands are required")
	}
	ohms, err := resistance.ParseValue(value)
	if err != nil {
		return nil, err
	}
	codec := resistance.NewCodec(s.tables.Table())
	want, err := codec.EncodeWithTolerance(ohms, tolerance)
	if err != nil {
		return nil, err
	}

	significant := detected
	if len(detected) > len(want) {
		significant = bands.DropWidest(detected, len(detected)-len(want))
	}
	if len(significant) != len(want) {
		return nil, faults.New(faults.KindInvalidSequence,
			"Band mismatch: Detected %d significant bands, but the correct value corresponds to %d bands.",
			len(significant), len(want))
	}

	learnedAt := s.now().UTC()
	learned := make([]colors.Rule, 0, len(want))
	index := make(map[string]int, len(want))
	for i, name := range want {
		rule := colors.NewRule(name, significant[i].RGB)
		rule.Source = SourceValue
		rule.LearnedAt = learnedAt
		// 同一 RGB 出现两次时以后者为准
		if j, ok := index[rule.Key()]; ok {
			learned[j] = rule
			continue
		}
		index[rule.Key()] = len(learned)
		learned = append(learned, rule)
	}
	if err := s.merge(ctx, learned); err != nil {
		return nil, err
	}
	logger.Infof("learning: %d rules from value %s (%s)", len(learned), value, strings.Join(want, ","))
	return learned, nil
}

func (s *Service) merge(ctx context.Context, incoming []colors.Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, err := s.repo.Load(ctx)
	if err != nil {
		return err
	}
	return s.repo.Save(ctx, Merge(existing, incoming))
}

// Merge upserts incoming into existing by RGB key. Replaced rules keep their
// position; new ones are appended in order.
func Merge(existing, incoming []colors.Rule) []colors.Rule {
	out := append([]colors.Rule(nil), existing...)
	pos := make(map[string]int, len(out))
	for i, r := range out {
		pos[r.Key()] = i
	}
	for _, r := range incoming {
		if i, ok := pos[r.Key()]; ok {
			out[i] = r
			continue
		}
		pos[r.Key()] = len(out)
		out = append(out, r)
	}
	return out
}
