package batch

import (
	"encoding/json"
	"os"
	"strconv"
	"sync"

	"gatewaybot/internal/logger"
	"gatewaybot/internal/storage"
)

// Progress is the durable per-user batch state: enough to report a restart
// recovery message, though a restarted run is not resumed automatically.
type Progress struct {
	Total           int  `json:"total"`
	Current         int  `json:"current"`
	Success         int  `json:"success"`
	CancelRequested bool `json:"cancel_requested"`
}

// Tracker persists every active user's Progress to a single shared JSON
// file, rewritten atomically after every mutation, so counters survive a
// crash mid-run.
type Tracker struct {
	mu   sync.Mutex
	path string
	data map[string]*Progress
}

// NewTracker loads path if it exists (a missing or unreadable file starts
// empty rather than failing).
func NewTracker(path string) *Tracker {
	t := &Tracker{path: path, data: make(map[string]*Progress)}
	t.load()
	return t
}

func (t *Tracker) load() {
	raw, err := os.ReadFile(t.path)
	if err != nil {
		return
	}
	var data map[string]*Progress
	if err := json.Unmarshal(raw, &data); err != nil {
		logger.Warnf("batch: corrupt active-users file %q: %v", t.path, err)
		return
	}
	t.data = data
}

func (t *Tracker) persistLocked() {
	raw, err := json.Marshal(t.data)
	if err != nil {
		logger.Warnf("batch: marshal active users: %v", err)
		return
	}
	if err := storage.AtomicWriteFile(t.path, raw); err != nil {
		logger.Warnf("batch: write active users file: %v", err)
	}
}

func key(userID int64) string { return strconv.FormatInt(userID, 10) }

// Start registers userID as running a batch of total messages.
func (t *Tracker) Start(userID int64, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data[key(userID)] = &Progress{Total: total}
	t.persistLocked()
}

// Update records the latest current/success counters for userID.
func (t *Tracker) Update(userID int64, current, success int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.data[key(userID)]
	if !ok {
		return
	}
	p.Current = current
	p.Success = success
	t.persistLocked()
}

// RequestCancel flags userID's run for cancellation, reporting whether one
// was active to flag.
func (t *Tracker) RequestCancel(userID int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.data[key(userID)]
	if !ok {
		return false
	}
	p.CancelRequested = true
	t.persistLocked()
	return true
}

// ShouldCancel reports whether userID's run has a pending cancellation.
func (t *Tracker) ShouldCancel(userID int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.data[key(userID)]
	return ok && p.CancelRequested
}

// IsActive reports whether userID has a tracked run.
func (t *Tracker) IsActive(userID int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.data[key(userID)]
	return ok
}

// Remove drops userID's tracked run entirely.
func (t *Tracker) Remove(userID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.data, key(userID))
	t.persistLocked()
}

// Snapshot returns a copy of userID's tracked progress, if any.
func (t *Tracker) Snapshot(userID int64) (Progress, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.data[key(userID)]
	if !ok {
		return Progress{}, false
	}
	return *p, true
}
