package logging

import (
	"sync"
	"time"
)

// LogEntry is one record kept in the ring buffer. Seq increases by one for
// every entry written to a buffer and never repeats.
type LogEntry struct {
	Seq        uint64         `json:"seq"`
	Timestamp  time.Time      `json:"timestamp"`
	Level      string         `json:"level"`
	Module     string         `json:"module"`
	Message    string         `json:"message"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// RingBuffer keeps the most recent log entries.
type RingBuffer struct {
	mu      sync.RWMutex
	entries []LogEntry
	next    int // slot the next write goes to
	count   int
	seq     uint64
}

// NewRingBuffer creates a buffer holding up to size entries.
func NewRingBuffer(size int) *RingBuffer {
	if size <= 0 {
		size = defaultBufferSize
	}
	return &RingBuffer{entries: make([]LogEntry, size)}
}

// Write stores entry, evicting the oldest when full, and returns it with its
// sequence number set.
func (rb *RingBuffer) Write(entry LogEntry) LogEntry {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.seq++
	entry.Seq = rb.seq
	rb.entries[rb.next] = entry
	rb.next = (rb.next + 1) % len(rb.entries)
	rb.count = min(rb.count+1, len(rb.entries))
	return entry
}

// ReadAll returns every buffered entry, oldest first.
func (rb *RingBuffer) ReadAll() []LogEntry {
	return rb.Since(0)
}

// Since returns the buffered entries with Seq greater than seq, oldest first.
func (rb *RingBuffer) Since(seq uint64) []LogEntry {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	if rb.count == 0 || seq >= rb.seq {
		return nil
	}
	n := min(rb.count, int(rb.seq-seq))
	out := make([]LogEntry, n)
	start := rb.next - n
	if start < 0 {
		start += len(rb.entries)
	}
	for i := range out {
		out[i] = rb.entries[(start+i)%len(rb.entries)]
	}
	return out
}

// Tail returns up to n of the most recent entries, optionally limited to one
// module, oldest first. n <= 0 means no limit.
func (rb *RingBuffer) Tail(n int, module string) []LogEntry {
	all := rb.ReadAll()
	if module != "" {
		filtered := all[:0]
		for _, e := range all {
			if e.Module == module {
				filtered = append(filtered, e)
			}
		}
		all = filtered
	}
	if n > 0 && len(all) > n {
		all = all[len(all)-n:]
	}
	return all
}

// Count returns the number of buffered entries.
func (rb *RingBuffer) Count() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.count
}

// LastSeq returns the sequence number of the newest entry, 0 if none.
func (rb *RingBuffer) LastSeq() uint64 {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.seq
}
