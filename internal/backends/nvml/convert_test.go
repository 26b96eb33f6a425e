package nvml

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMilliwattsToWatts(t *testing.T) {
	assert.Equal(t, 0.0, milliwattsToWatts(0))
	assert.Equal(t, 285.5, milliwattsToWatts(285500))
	assert.Equal(t, 450.0, milliwattsToWatts(450000))
}
