package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLineSubtotal(t *testing.T) {
	assert.Equal(t, 20.00, LineSubtotal(10.00, 0, 2))
	assert.Equal(t, 22.50, LineSubtotal(10.00, 2.50, 3))
	// 0.1+0.2 style drift is rounded away.
	assert.Equal(t, 0.30, LineSubtotal(0.10, 0, 3))
}

func TestFinalAmount(t *testing.T) {
	assert.Equal(t, 15.00, FinalAmount(20.00, 5.00))
	assert.Equal(t, 0.0, FinalAmount(20.00, 25.00))
	assert.Equal(t, 0.0, FinalAmount(0, 0))
}

func TestAmountsEqual(t *testing.T) {
	assert.True(t, AmountsEqual(0.1+0.2, 0.3))
	assert.True(t, AmountsEqual(100.00, 100.004))
	assert.False(t, AmountsEqual(100.00, 100.01))
}
