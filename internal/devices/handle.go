package devices

import "fmt"

// Handle is an opaque, non-owning reference to a device record. The zero
// Handle is never valid.
type Handle uint64

func newHandle(slot int, gen uint32) Handle {
	return Handle(uint64(gen)<<32 | uint64(uint32(slot+1)))
}

func (h Handle) slot() int      { return int(uint32(h)) - 1 }
func (h Handle) gen() uint32    { return uint32(h >> 32) }
func (h Handle) String() string { return fmt.Sprintf("%#x", uint64(h)) }

// arenaSlot is one entry of the handle arena. gen is bumped every time the
// slot is released so stale handles can be told apart from live ones.
type arenaSlot struct {
	gen  uint32
	rec  *record
	live bool
}

// arena issues handles from a slice of reusable slots.
type arena struct {
	slots []arenaSlot
	free  []int
}

func (a *arena) issue(rec *record) Handle {
	var idx int
	if n := len(a.free); n > 0 {
		idx = a.free[n-1]
		a.free = a.free[:n-1]
	} else {
		a.slots = append(a.slots, arenaSlot{gen: 1})
		idx = len(a.slots) - 1
	}
	s := &a.slots[idx]
	s.rec = rec
	s.live = true
	rec.handles++
	return newHandle(idx, s.gen)
}

// lookup resolves h to its record. ok is false for zero, unknown or stale handles.
func (a *arena) lookup(h Handle) (*record, bool) {
	idx := h.slot()
	if h == 0 || idx < 0 || idx >= len(a.slots) {
		return nil, false
	}
	s := &a.slots[idx]
	if !s.live || s.gen != h.gen() {
		return nil, false
	}
	return s.rec, true
}

func (a *arena) release(h Handle) {
	idx := h.slot()
	s := &a.slots[idx]
	s.rec.handles--
	s.rec = nil
	s.live = false
	s.gen++
	if s.gen == 0 {
		s.gen = 1
	}
	a.free = append(a.free, idx)
}

// releaseAll invalidates every live handle that points at rec.
func (a *arena) releaseAll(rec *record) {
	for i := range a.slots {
		if a.slots[i].live && a.slots[i].rec == rec {
			a.release(newHandle(i, a.slots[i].gen))
		}
	}
}

func (a *arena) reset() {
	for i := range a.slots {
		if a.slots[i].live {
			a.release(newHandle(i, a.slots[i].gen))
		}
	}
}
