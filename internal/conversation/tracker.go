package conversation

import (
	"context"
	"sync"
)

// Intent is the pending step of a two-message flow.
type Intent string

const (
	IntentNone                       Intent = "NONE"
	IntentAwaitingLocationForCurrent Intent = "AWAITING_LOCATION_FOR_CURRENT"
	IntentAwaitingLocationForWeekly  Intent = "AWAITING_LOCATION_FOR_WEEKLY"
)

// Valid reports whether i is a known intent.
func (i Intent) Valid() bool {
	switch i {
	case IntentNone, IntentAwaitingLocationForCurrent, IntentAwaitingLocationForWeekly:
		return true
	}
	return false
}

// Tracker owns the pending intent of every chat. Unseen chats are IntentNone.
type Tracker interface {
	PendingIntent(ctx context.Context, chatID int64) (Intent, error)
	SetPendingIntent(ctx context.Context, chatID int64, intent Intent) error
	ClearPendingIntent(ctx context.Context, chatID int64) error
}

// MemoryTracker keeps pending intents in process memory.
type MemoryTracker struct {
	mu      sync.RWMutex
	pending map[int64]Intent
}

func NewMemoryTracker() *MemoryTracker {
	return &MemoryTracker{pending: make(map[int64]Intent)}
}

func (t *MemoryTracker) PendingIntent(_ context.Context, chatID int64) (Intent, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if intent, ok := t.pending[chatID]; ok {
		return intent, nil
	}
	return IntentNone, nil
}

// SetPendingIntent records intent; IntentNone removes the entry.
func (t *MemoryTracker) SetPendingIntent(_ context.Context, chatID int64, intent Intent) error {
	if !intent.Valid() {
		return &InvalidIntentError{Intent: intent}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if intent == IntentNone {
		delete(t.pending, chatID)
		return nil
	}
	t.pending[chatID] = intent
	return nil
}

func (t *MemoryTracker) ClearPendingIntent(_ context.Context, chatID int64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.pending, chatID)
	return nil
}

// Len returns the number of chats with a pending intent.
func (t *MemoryTracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.pending)
}

// InvalidIntentError is returned when an unknown intent is recorded.
type InvalidIntentError struct {
	Intent Intent
}

func (e *InvalidIntentError) Error() string {
	return "invalid intent " + string(e.Intent)
}
