package types

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePxRoundTrip(t *testing.T) {
	px, err := ParsePx("100.12")
	require.NoError(t, err)
	assert.Equal(t, "100.12", px.String())
}

func TestParsePxRejectsNonPositive(t *testing.T) {
	_, err := ParsePx("0")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidPrice))

	_, err = ParsePx("-1.5")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidPrice))
}

func TestParseSzAllowsZero(t *testing.T) {
	sz, err := ParseSz("0")
	require.NoError(t, err)
	assert.True(t, sz.IsZero())
}

func TestParseSzRejectsNegative(t *testing.T) {
	_, err := ParseSz("-3")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidSize))
}

func TestPxOrdering(t *testing.T) {
	a, _ := ParsePx("100.00")
	b, _ := ParsePx("100.01")
	assert.True(t, a < b)
}

func TestSideString(t *testing.T) {
	assert.Equal(t, "B", Bid.String())
	assert.Equal(t, "A", Ask.String())
}
