// Package indexpool provides a fixed-capacity pool of free slot indices.
//
// The pool does no locking; the registry guards it with its own mutex.
package indexpool

// Pool hands out indices in [0, Capacity()). It never grows.
type Pool struct {
	free  []uint32
	inUse []bool
}

// New returns a pool with every index in [0, capacity) free. Lower indices
// are handed out first.
func New(capacity int) *Pool {
	if capacity < 0 {
		capacity = 0
	}
	p := &Pool{
		free:  make([]uint32, capacity),
		inUse: make([]bool, capacity),
	}
	for i := range p.free {
		p.free[i] = uint32(capacity - 1 - i)
	}
	return p
}

// Pop takes a free index. ok is false when the pool is exhausted.
func (p *Pool) Pop() (index uint32, ok bool) {
	n := len(p.free)
	if n == 0 {
		return 0, false
	}
	index = p.free[n-1]
	p.free = p.free[:n-1]
	p.inUse[index] = true
	return index, true
}

// Push returns index to the pool. It reports false for an index that is out
// of range or already free, leaving the pool unchanged.
func (p *Pool) Push(index uint32) bool {
	if int(index) >= len(p.inUse) || !p.inUse[index] {
		return false
	}
	p.inUse[index] = false
	p.free = append(p.free, index)
	return true
}

// Capacity is the fixed number of indices managed by the pool.
func (p *Pool) Capacity() int { return len(p.inUse) }

// Remaining is the number of indices that can still be popped.
func (p *Pool) Remaining() int { return len(p.free) }

// InUse is the number of indices currently handed out.
func (p *Pool) InUse() int { return len(p.inUse) - len(p.free) }
