package watcher

import (
	"sync"
	"time"
)

// Debouncer holds each workbook path until writes to it have been quiet
// for the delay, then hands it to the callback once. Spreadsheet editors
// save through several Create and Write events, so acting on the first
// one would read a half-written file.
type Debouncer struct {
	delay time.Duration
	fire  func(path string)

	mu      sync.Mutex
	pending map[string]*quietPeriod
}

// quietPeriod is the timer armed for one path. seq grows on every Add so a
// timer that was already firing when the path was touched again is ignored.
type quietPeriod struct {
	timer *time.Timer
	seq   uint64
}

// NewDebouncer returns a Debouncer calling fire after delay of quiet.
func NewDebouncer(delay time.Duration, fire func(path string)) *Debouncer {
	return &Debouncer{
		delay:   delay,
		fire:    fire,
		pending: make(map[string]*quietPeriod),
	}
}

// Add starts or restarts the quiet period of path.
func (d *Debouncer) Add(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	q, ok := d.pending[path]
	if !ok {
		q = &quietPeriod{}
		d.pending[path] = q
	}
	if q.timer != nil {
		q.timer.Stop()
	}
	q.seq++
	seq := q.seq
	q.timer = time.AfterFunc(d.delay, func() { d.expire(path, seq) })
}

func (d *Debouncer) expire(path string, seq uint64) {
	d.mu.Lock()
	q, ok := d.pending[path]
	if !ok || q.seq != seq {
		d.mu.Unlock()
		return
	}
	delete(d.pending, path)
	d.mu.Unlock()

	// unlocked: fire may call Add
	if d.fire != nil {
		d.fire(path)
	}
}

// Cancel forgets path and reports whether it was waiting.
func (d *Debouncer) Cancel(path string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	q, ok := d.pending[path]
	if !ok {
		return false
	}
	q.timer.Stop()
	delete(d.pending, path)
	return true
}

// CancelAll forgets every waiting path and returns how many there were.
func (d *Debouncer) CancelAll() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	n := len(d.pending)
	for path, q := range d.pending {
		q.timer.Stop()
		delete(d.pending, path)
	}
	return n
}
