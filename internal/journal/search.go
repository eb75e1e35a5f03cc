package journal

import (
	"strings"
	"sync"
	"time"

	"school-journal/internal/model"
)

// SearchFilter debounces free-text input. Each Set supersedes the pending
// one; only the last value inside the delay window is applied.
type SearchFilter struct {
	delay   time.Duration
	onApply func(query string)

	mu      sync.Mutex
	pending string
	applied string
	seq     uint64
	timer   *time.Timer
	stopped bool
}

func NewSearchFilter(delay time.Duration, onApply func(query string)) *SearchFilter {
	if onApply == nil {
		onApply = func(string) {}
	}
	return &SearchFilter{
		delay:   delay,
		onApply: onApply,
	}
}

func (f *SearchFilter) Set(query string) {
	f.mu.Lock()
	if f.stopped {
		f.mu.Unlock()
		return
	}
	f.pending = query
	f.seq++
	seq := f.seq
	if f.timer != nil {
		f.timer.Stop()
		f.timer = nil
	}
	if f.delay <= 0 {
		f.mu.Unlock()
		f.fire(seq)
		return
	}
	f.timer = time.AfterFunc(f.delay, func() { f.fire(seq) })
	f.mu.Unlock()
}

// Query is the last applied value.
func (f *SearchFilter) Query() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.applied
}

func (f *SearchFilter) Pending() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.timer != nil
}

// Flush applies a pending value immediately.
func (f *SearchFilter) Flush() {
	f.mu.Lock()
	if f.timer == nil {
		f.mu.Unlock()
		return
	}
	f.timer.Stop()
	f.timer = nil
	seq := f.seq
	f.mu.Unlock()

	f.fire(seq)
}

func (f *SearchFilter) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.stopped = true
	f.seq++
	if f.timer != nil {
		f.timer.Stop()
		f.timer = nil
	}
}

func (f *SearchFilter) fire(seq uint64) {
	f.mu.Lock()
	if f.seq != seq || f.stopped {
		f.mu.Unlock()
		return
	}
	f.seq++
	f.timer = nil
	f.applied = f.pending
	query := f.applied
	f.mu.Unlock()

	f.onApply(query)
}

// MatchStudents keeps the students whose full name contains query,
// ignoring case. An empty query keeps everyone.
func MatchStudents(students []model.Student, query string) []model.Student {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return students
	}

	out := make([]model.Student, 0, len(students))
	for _, st := range students {
		if strings.Contains(strings.ToLower(st.FullName()), query) {
			out = append(out, st)
		}
	}
	return out
}
