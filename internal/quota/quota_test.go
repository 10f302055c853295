package quota

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRemainingFreemiumCapped(t *testing.T) {
	assert.Equal(t, 2, remaining(false, 5, 0, 3))
	assert.Equal(t, 0, remaining(false, 5, 0, 9))
}

func TestRemainingPremiumUnlimitedWhenPremiumLimitZero(t *testing.T) {
	assert.Equal(t, UnlimitedSentinel, remaining(true, 5, 0, 1000))
}

func TestRemainingPremiumCappedWhenPremiumLimitSet(t *testing.T) {
	assert.Equal(t, 10, remaining(true, 5, 20, 10))
	assert.Equal(t, 0, remaining(true, 5, 20, 999))
}
