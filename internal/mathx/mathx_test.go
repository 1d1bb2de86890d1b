package mathx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClamp(t *testing.T) {
	assert.Equal(t, 0, Clamp(-5, 0, 255))
	assert.Equal(t, 255, Clamp(300, 0, 255))
	assert.Equal(t, 42, Clamp(42, 0, 255))
	// swapped bounds
	assert.Equal(t, 10, Clamp(50, 10, 0))
}

func TestMin(t *testing.T) {
	assert.Equal(t, 3, Min(3, 7))
	assert.Equal(t, 3, Min(7, 3))
}

func TestLerp(t *testing.T) {
	assert.Equal(t, 0.0, Lerp(0, 255, 0))
	assert.Equal(t, 255.0, Lerp(0, 255, 1))
	assert.InDelta(t, 127.5, Lerp(0, 255, 0.5), 1e-9)
}
