package runtime

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/drblury/socketbus/internal/runtime/handle"
)

// socket is a named channel owning a FIFO list of envelopes. The list belongs
// to the socket until detach hands it to a single dispatcher.
type socket struct {
	name      string
	nameHash  uint32
	version   uint32
	createdAt time.Time

	mu     sync.Mutex
	head   *envelope
	tail   *envelope
	queued int

	posted     atomic.Uint64
	dispatched atomic.Uint64
}

// push appends env in O(1) and returns the queue length after the append.
func (s *socket) push(env *envelope) int {
	s.mu.Lock()
	if s.tail == nil {
		s.head = env
	} else {
		s.tail.next = env
	}
	s.tail = env
	s.queued++
	n := s.queued
	s.mu.Unlock()

	s.posted.Add(1)
	return n
}

// detach empties the queue and returns its former head. Messages pushed after
// detach returns start a new list and are not reachable from the result.
func (s *socket) detach() (head *envelope, n int) {
	s.mu.Lock()
	head, n = s.head, s.queued
	s.head, s.tail, s.queued = nil, nil, 0
	s.mu.Unlock()
	return head, n
}

func (s *socket) pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queued
}

// SocketInfo is a point-in-time view of a live socket.
type SocketInfo struct {
	Name       string    `json:"name"`
	Handle     string    `json:"handle"`
	Slot       uint32    `json:"slot"`
	Version    uint32    `json:"version"`
	Pending    int       `json:"pending"`
	Posted     uint64    `json:"posted"`
	Dispatched uint64    `json:"dispatched"`
	CreatedAt  time.Time `json:"created_at"`
}

func (s *socket) info(slot uint32) SocketInfo {
	h := handle.Encode(slot, s.version)
	return SocketInfo{
		Name:       s.name,
		Handle:     h.String(),
		Slot:       slot,
		Version:    s.version,
		Pending:    s.pending(),
		Posted:     s.posted.Load(),
		Dispatched: s.dispatched.Load(),
		CreatedAt:  s.createdAt,
	}
}
