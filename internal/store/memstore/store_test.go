package memstore

import (
	"context"
	"testing"

	"bandscope/internal/colors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := New(colors.NewRule(colors.Red, colors.RGB{R: 170}))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	got[0].Name = "tampered"

	again, _ := s.Load(ctx)
	assert.Equal(t, colors.Red, again[0].Name)

	require.NoError(t, s.Clear(ctx))
	again, _ = s.Load(ctx)
	assert.NotNil(t, again)
	assert.Empty(t, again)
}
