package learning

import (
	"context"
	"errors"
	"testing"
	"time"

	"bandscope/internal/bands"
	"bandscope/internal/colors"
	"bandscope/internal/faults"
	"bandscope/internal/store/memstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type staticTable struct{}

func (staticTable) Table() colors.Table { return colors.DefaultTable() }

type MockRepo struct {
	mock.Mock
}

func (m *MockRepo) Load(ctx context.Context) ([]colors.Rule, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]colors.Rule), args.Error(1)
}

func (m *MockRepo) Save(ctx context.Context, rules []colors.Rule) error {
	return m.Called(ctx, rules).Error(0)
}

func (m *MockRepo) Clear(ctx context.Context) error { return m.Called(ctx).Error(0) }

func (m *MockRepo) Close() error { return nil }

func newService(repo *memstore.Store) *Service {
	s := NewService(repo, staticTable{})
	s.now = func() time.Time { return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) }
	return s
}

func TestLearnUpsertsByRGB(t *testing.T) {
	ctx := context.Background()
	repo := memstore.New()
	s := newService(repo)

	observed := colors.RGB{R: 120, G: 80, B: 40}
	_, err := s.Learn(ctx, observed, "Red")
	require.NoError(t, err)
	_, err = s.Learn(ctx, colors.RGB{R: 1, G: 2, B: 3}, colors.Black)
	require.NoError(t, err)
	rule, err := s.Learn(ctx, observed, " Brown ")
	require.NoError(t, err)
	assert.Equal(t, colors.Brown, rule.Name)
	assert.Equal(t, SourceManual, rule.Source)

	rules, err := s.Rules(ctx)
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, colors.Brown, rules[0].Name)
	assert.Equal(t, observed, rules[0].RGB())
}

func TestLearnValidatesName(t *testing.T) {
	s := newService(memstore.New())
	_, err := s.Learn(context.Background(), colors.RGB{}, "")
	assert.ErrorIs(t, err, faults.ErrMalformedInput)
	_, err = s.Learn(context.Background(), colors.RGB{}, "Magenta")
	assert.ErrorIs(t, err, faults.ErrUnknownColor)
}

func detected(widths ...int) []bands.Band {
	out := make([]bands.Band, len(widths))
	x := 0
	for i, w := range widths {
		out[i] = bands.Band{X: x + w/2, Width: w, RGB: colors.RGB{R: uint8(10 * (i + 1)), G: 50, B: 60}}
		x += w
	}
	return out
}

func TestLearnFromValueDropsWidest(t *testing.T) {
	ctx := context.Background()
	repo := memstore.New()
	s := newService(repo)

	// five bands, the third (body) is widest
	got, err := s.LearnFromValue(ctx, detected(10, 12, 40, 11, 10), "4.7k", "5")
	require.NoError(t, err)
	require.Len(t, got, 4)

	names := make([]string, len(got))
	for i, r := range got {
		names[i] = r.Name
		assert.Equal(t, SourceValue, r.Source)
	}
	assert.Equal(t, []string{colors.Yellow, colors.Violet, colors.Red, colors.Gold}, names)
	assert.Equal(t, uint8(40), got[2].R, "body band at index 2 skipped")

	stored, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, stored, 4)
}

func TestLearnFromValueMismatch(t *testing.T) {
	s := newService(memstore.New())
	_, err := s.LearnFromValue(context.Background(), detected(10, 10), "4.7k", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, faults.ErrInvalidSequence)
	assert.Contains(t, err.Error(), "Band mismatch")
}

func TestLearnFromValueRejectsBadInput(t *testing.T) {
	s := newService(memstore.New())
	ctx := context.Background()

	_, err := s.LearnFromValue(ctx, nil, "4.7k", "")
	assert.ErrorIs(t, err, faults.ErrMalformedInput)

	_, err = s.LearnFromValue(ctx, detected(10, 10, 10), "abc", "")
	assert.ErrorIs(t, err, faults.ErrMalformedInput)

	_, err = s.LearnFromValue(ctx, detected(10, 10, 10), "5", "")
	assert.ErrorIs(t, err, faults.ErrValueTooSmall)
}

func TestLearnFromValueMergesLastWriterWins(t *testing.T) {
	ctx := context.Background()
	first := detected(10, 10, 10)
	repo := memstore.New(colors.NewRule(colors.Black, first[0].RGB))
	s := newService(repo)

	_, err := s.LearnFromValue(ctx, first, "270", "")
	require.NoError(t, err)

	stored, err := repo.Load(ctx)
	require.NoError(t, err)
	require.Len(t, stored, 3)
	assert.Equal(t, colors.Red, stored[0].Name)
	assert.Equal(t, colors.Violet, stored[1].Name)
	assert.Equal(t, colors.Brown, stored[2].Name)
}

func TestStorageFailureSurfaces(t *testing.T) {
	repo := new(MockRepo)
	boom := faults.Wrap(faults.KindStorage, errors.New("disk full"), "save custom colors")
	repo.On("Load", mock.Anything).Return([]colors.Rule{}, nil)
	repo.On("Save", mock.Anything, mock.Anything).Return(boom)

	s := NewService(repo, staticTable{})
	_, err := s.Learn(context.Background(), colors.RGB{R: 9}, colors.Red)
	assert.ErrorIs(t, err, faults.ErrStorage)
	repo.AssertExpectations(t)
}

func TestMerge(t *testing.T) {
	a := colors.NewRule("A", colors.RGB{R: 1})
	b := colors.NewRule("B", colors.RGB{R: 2})
	a2 := colors.NewRule("A2", colors.RGB{R: 1})
	c := colors.NewRule("C", colors.RGB{R: 3})

	got := Merge([]colors.Rule{a, b}, []colors.Rule{a2, c})
	require.Len(t, got, 3)
	assert.Equal(t, "A2", got[0].Name)
	assert.Equal(t, "B", got[1].Name)
	assert.Equal(t, "C", got[2].Name)
}
