package client

import (
	"sync"
	"time"
)

// AnswerKey identifies one answer field on a round screen.
type AnswerKey struct {
	QuestionID string
	RoundID    string
}

// Debouncer collapses rapid keystrokes on an answer field into a single
// submit after a quiet period. Flush sends everything pending immediately and
// is what the round-change path calls so no in-flight edit is lost. The
// server side is idempotent last-write-wins, so over-delivery is harmless;
// the debouncer only exists to keep the request rate sane.
type Debouncer struct {
	quiet  time.Duration
	submit func(key AnswerKey, text string)

	mu      sync.Mutex
	pending map[AnswerKey]*pendingAnswer
	stopped bool
}

type pendingAnswer struct {
	text  string
	timer *time.Timer
}

// NewDebouncer wires a debouncer; submit is called outside the lock.
func NewDebouncer(quiet time.Duration, submit func(key AnswerKey, text string)) *Debouncer {
	if quiet <= 0 {
		quiet = 750 * time.Millisecond
	}
	return &Debouncer{
		quiet:   quiet,
		submit:  submit,
		pending: make(map[AnswerKey]*pendingAnswer),
	}
}

// Update records the latest text for a key and restarts its quiet timer.
func (d *Debouncer) Update(key AnswerKey, text string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if entry, ok := d.pending[key]; ok {
		entry.text = text
		entry.timer.Reset(d.quiet)
		return
	}
	entry := &pendingAnswer{text: text}
	entry.timer = time.AfterFunc(d.quiet, func() { d.fire(key) })
	d.pending[key] = entry
}

// Flush submits everything pending right now. Call on round change.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	keys := make([]AnswerKey, 0, len(d.pending))
	for key := range d.pending {
		keys = append(keys, key)
	}
	d.mu.Unlock()
	for _, key := range keys {
		d.fire(key)
	}
}

// Stop cancels all pending timers without submitting.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	for key, entry := range d.pending {
		entry.timer.Stop()
		delete(d.pending, key)
	}
}

// Pending reports how many keys are waiting on their quiet period.
func (d *Debouncer) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

func (d *Debouncer) fire(key AnswerKey) {
	d.mu.Lock()
	entry, ok := d.pending[key]
	if !ok {
		d.mu.Unlock()
		return
	}
	entry.timer.Stop()
	delete(d.pending, key)
	text := entry.text
	d.mu.Unlock()
	d.submit(key, text)
}
