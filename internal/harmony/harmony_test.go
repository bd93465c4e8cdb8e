package harmony

import (
	"testing"

	"bandscope/internal/faults"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateRed(t *testing.T) {
	groups, err := Generate("#FF0000")
	require.NoError(t, err)
	require.Len(t, groups, 4)

	assert.Equal(t, "Complementary", groups[0].Name)
	assert.Equal(t, []string{"#FF0000", "#00FFFF"}, groups[0].Colors)

	assert.Equal(t, "Triadic", groups[2].Name)
	assert.Equal(t, []string{"#FF0000", "#00FF00", "#0000FF"}, groups[2].Colors)

	analogous := groups[1].Colors
	require.Len(t, analogous, 3)
	assert.Equal(t, "#FF0000", analogous[1])
}

func TestGenerateAcceptsBareHex(t *testing.T) {
	a, err := Generate("ff0000")
	require.NoError(t, err)
	b, err := Generate("#FF0000")
	require.NoError(t, err)
	assert.Equal(t, b, a)
}

func TestGenerateRejectsGarbage(t *testing.T) {
	_, err := Generate("#GGHHII")
	assert.ErrorIs(t, err, faults.ErrMalformedInput)
	_, err = Generate("")
	assert.ErrorIs(t, err, faults.ErrMalformedInput)
}
