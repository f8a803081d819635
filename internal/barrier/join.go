// File: internal/barrier/join.go (complete file)

package barrier

import "sync"

// Join fires a continuation once every one of its slots has arrived.
// Each slot counts at most once; repeated arrivals on a slot are ignored.
type Join struct {
	mu      sync.Mutex
	arrived []bool
	pending int
	fired   bool
	fn      func()
}

func New(slots int, fn func()) *Join {
	if slots < 1 {
		slots = 1
	}
	return &Join{
		arrived: make([]bool, slots),
		pending: slots,
		fn:      fn,
	}
}

// Arrive marks slot as done. It reports whether this call completed the join
// (and therefore ran the continuation). Out-of-range slots are ignored.
func (j *Join) Arrive(slot int) bool {
	j.mu.Lock()
	if slot < 0 || slot >= len(j.arrived) || j.arrived[slot] || j.fired {
		j.mu.Unlock()
		return false
	}
	j.arrived[slot] = true
	j.pending--
	if j.pending > 0 {
		j.mu.Unlock()
		return false
	}
	j.fired = true
	fn := j.fn
	j.mu.Unlock()

	if fn != nil {
		fn()
	}
	return true
}

func (j *Join) Arrived(slot int) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return slot >= 0 && slot < len(j.arrived) && j.arrived[slot]
}

func (j *Join) Done() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.fired
}

// Reset clears every slot so the join can be reused for the next cycle.
func (j *Join) Reset() {
	j.mu.Lock()
	defer j.mu.Unlock()
	for i := range j.arrived {
		j.arrived[i] = false
	}
	j.pending = len(j.arrived)
	j.fired = false
}
