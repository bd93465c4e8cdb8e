package memstore

import (
	"context"
	"sync"

	"bandscope/internal/colors"
	"bandscope/internal/store"
)

// Store is an in-process RuleRepository.
type Store struct {
	mu    sync.RWMutex
	rules []colors.Rule
}

var _ store.RuleRepository = (*Store)(nil)

func New(seed ...colors.Rule) *Store {
	return &Store{rules: append([]colors.Rule(nil), seed...)}
}

func (s *Store) Load(context.Context) ([]colors.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]colors.Rule{}, s.rules...), nil
}

func (s *Store) Save(_ context.Context, rules []colors.Rule) error {
	s.mu.Lock()
	s.rules = append([]colors.Rule(nil), rules...)
	s.mu.Unlock()
	return nil
}

func (s *Store) Clear(context.Context) error {
	s.mu.Lock()
	s.rules = nil
	s.mu.Unlock()
	return nil
}

func (s *Store) Close() error { return nil }
