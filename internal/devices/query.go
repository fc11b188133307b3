package devices

// Criterion selects devices for a Query.
type Criterion func(Info) bool

// Built-in criteria.
var (
	Cameras                 Criterion = func(i Info) bool { return i.Kind == KindCamera }
	Microphones             Criterion = func(i Info) bool { return i.Kind == KindMicrophone }
	InternalDevices         Criterion = func(i Info) bool { return i.Type() == TypeInternal }
	ExternalDevices         Criterion = func(i Info) bool { return i.Type() == TypeExternal }
	FrontCamera             Criterion = func(i Info) bool { return i.Kind == KindCamera && i.Flags.FrontFacing() }
	RearCamera              Criterion = func(i Info) bool { return i.Kind == KindCamera && !i.Flags.FrontFacing() }
	TorchCapable            Criterion = func(i Info) bool { return i.Kind == KindCamera && i.Flags.Torch() }
	EchoCancellationCapable Criterion = func(i Info) bool {
		return i.Kind == KindMicrophone && i.Flags.EchoCancellation()
	}
)

// Any matches devices that satisfy at least one criterion.
func Any(criteria ...Criterion) Criterion {
	return func(i Info) bool {
		for _, c := range criteria {
			if c(i) {
				return true
			}
		}
		return false
	}
}

// All matches devices that satisfy every criterion.
func All(criteria ...Criterion) Criterion {
	return func(i Info) bool {
		for _, c := range criteria {
			if !c(i) {
				return false
			}
		}
		return true
	}
}

// Query is a snapshot of the devices that matched a set of criteria when it
// was created, with a cursor that cycles through them. The query owns one
// handle per matched device until Close.
type Query struct {
	reg     *Registry
	handles []Handle
	infos   []Info
	cursor  int
}

// NewQuery snapshots every device matching all criteria, cameras first,
// each kind in discovery order.
func NewQuery(reg *Registry, criteria ...Criterion) *Query {
	match := All(criteria...)
	q := &Query{reg: reg}

	for _, kind := range []Kind{KindCamera, KindMicrophone} {
		buf := make([]Handle, reg.Count(kind))
		n := reg.Enumerate(kind, buf)
		for _, h := range buf[:n] {
			info, err := reg.Info(h)
			if err != nil || !match(info) {
				_ = reg.Release(h)
				continue
			}
			q.handles = append(q.handles, h)
			q.infos = append(q.infos, info)
		}
	}
	return q
}

// Count returns the number of matched devices.
func (q *Query) Count() int { return len(q.handles) }

// At returns the handle and snapshot of the i-th matched device.
func (q *Query) At(i int) (Handle, Info, bool) {
	if i < 0 || i >= len(q.handles) {
		return 0, Info{}, false
	}
	return q.handles[i], q.infos[i], true
}

// Current returns the device under the cursor.
func (q *Query) Current() (Handle, Info, bool) {
	return q.At(q.cursor)
}

// Advance moves the cursor to the next device, wrapping around.
func (q *Query) Advance() {
	if len(q.handles) == 0 {
		return
	}
	q.cursor = (q.cursor + 1) % len(q.handles)
}

// Close releases the query's handles. A handle that is the last one of a
// running device cannot be released and stays valid.
func (q *Query) Close() {
	for _, h := range q.handles {
		_ = q.reg.Release(h)
	}
	q.handles = nil
	q.infos = nil
	q.cursor = 0
}
