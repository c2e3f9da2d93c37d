// SPDX-License-Identifier: MIT

package decimal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExactAvoidsBinaryDrift(t *testing.T) {
	// 0.1+0.2 is the canonical float trap; the boundary must not leak
	// 0.30000000000000004 into storage.
	assert.Equal(t, "0.3", Exact(0.1+0.2))
	assert.Equal(t, "42.37", Exact(42.37))
	assert.Equal(t, "-0.001", Exact(-0.001))
}

func TestExactFixed(t *testing.T) {
	assert.Equal(t, "1250", ExactFixed(1250.4, 0))
	assert.Equal(t, "0.00012340", ExactFixed(0.0001234, 8))
}

func TestParse(t *testing.T) {
	got, err := Parse("007.2500")
	require.NoError(t, err)
	assert.Equal(t, "7.25", got)

	_, err = Parse("1.2e")
	assert.Error(t, err)

	_, err = Parse("")
	assert.Error(t, err)
}

func TestAdd(t *testing.T) {
	got, err := Add("0.1", "0.2")
	require.NoError(t, err)
	assert.Equal(t, "0.3", got)

	_, err = Add("x", "1")
	assert.Error(t, err)
}
