package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSatisfiesEmptyConstraintAlwaysTrue(t *testing.T) {
	ok, err := Satisfies("")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSatisfiesMatchingConstraint(t *testing.T) {
	ok, err := Satisfies(">= 1.0.0, < 2.0.0")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSatisfiesNonMatchingConstraint(t *testing.T) {
	ok, err := Satisfies(">= 2.0.0")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSatisfiesInvalidConstraintErrors(t *testing.T) {
	_, err := Satisfies("not a constraint")
	assert.Error(t, err)
}
