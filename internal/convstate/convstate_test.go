package convstate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoginInProgress(t *testing.T) {
	r := NewRegistry()
	const user = int64(42)

	assert.False(t, r.LoginInProgress(user))

	r.Set(user, LoginPhone{})
	assert.True(t, r.LoginInProgress(user))
	assert.False(t, r.SettingsInProgress(user))

	r.Set(user, LoginCode{Phone: "+1234"})
	assert.True(t, r.LoginInProgress(user))

	r.Clear(user)
	assert.False(t, r.LoginInProgress(user))
}

func TestSettingsInProgress(t *testing.T) {
	r := NewRegistry()
	const user = int64(7)

	r.Set(user, SettingsField{Field: "rename_tag"})
	assert.True(t, r.SettingsInProgress(user))
	assert.False(t, r.LoginInProgress(user))
	assert.False(t, r.BatchInProgress(user))
}

func TestBatchInProgress(t *testing.T) {
	r := NewRegistry()
	const user = int64(9)

	for _, step := range []Step{
		BatchAwaitingStart{},
		BatchAwaitingCount{StartLink: "https://t.me/c/1/1"},
		BatchAwaitingSingle{},
		BatchRunning{},
	} {
		r.Set(user, step)
		assert.True(t, r.BatchInProgress(user))
	}
}

func TestBatchIsRunningOnlyForRunningStep(t *testing.T) {
	r := NewRegistry()
	const user = int64(11)

	r.Set(user, BatchAwaitingCount{StartLink: "l"})
	assert.False(t, r.BatchIsRunning(user), "setup conversation is not a running batch")

	r.Set(user, BatchRunning{})
	assert.True(t, r.BatchIsRunning(user))
}

func TestGetReturnsStoredStep(t *testing.T) {
	r := NewRegistry()
	r.Set(1, BatchAwaitingCount{StartLink: "link"})

	step, ok := r.Get(1)
	assert.True(t, ok)
	bc, isBatchCount := step.(BatchAwaitingCount)
	assert.True(t, isBatchCount)
	assert.Equal(t, "link", bc.StartLink)

	_, ok = r.Get(999)
	assert.False(t, ok)
}
