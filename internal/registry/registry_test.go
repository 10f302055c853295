package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInvalidateOnEmptyCacheIsNoop(t *testing.T) {
	r := New(nil, nil, "/tmp")
	assert.NotPanics(t, func() {
		r.InvalidateSession(1)
		r.InvalidateBot(1)
	})
}
