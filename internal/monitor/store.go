package monitor

import (
	"sync"
	"time"

	"github.com/HenGPlayZ/lavalink-status/internal/lavalink"
)

// Liveness is the monitor's view of a node.
type Liveness string

const (
	Unknown Liveness = "unknown"
	Online  Liveness = "online"
	Offline Liveness = "offline"
)

// NodeStatus is a point-in-time copy of one node's entry in the Store.
type NodeStatus struct {
	Liveness  Liveness  `json:"status"`
	ChangedAt time.Time `json:"changed_at,omitzero"`
	CheckedAt time.Time `json:"checked_at,omitzero"`
}

// Store holds one liveness flag per node. It is written by the monitor and
// read concurrently by request handlers.
type Store struct {
	mu    sync.RWMutex
	nodes map[lavalink.Version]*NodeStatus
}

// NewStore creates a Store with every given version in the Unknown state.
func NewStore(versions ...lavalink.Version) *Store {
	s := &Store{nodes: make(map[lavalink.Version]*NodeStatus, len(versions))}
	for _, v := range versions {
		s.nodes[v] = &NodeStatus{Liveness: Unknown}
	}
	return s
}

// Get returns the current flag for a node. Untracked nodes are Unknown.
func (s *Store) Get(v lavalink.Version) Liveness {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if st, ok := s.nodes[v]; ok {
		return st.Liveness
	}
	return Unknown
}

// Online reports whether the last completed check found the node online.
func (s *Store) Online(v lavalink.Version) bool {
	return s.Get(v) == Online
}

// Set records the outcome of a check. Only Online and Offline are accepted;
// a node never returns to Unknown. It reports whether the flag changed.
func (s *Store) Set(v lavalink.Version, l Liveness) bool {
	if l != Online && l != Offline {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	st, ok := s.nodes[v]
	if !ok {
		st = &NodeStatus{Liveness: Unknown}
		s.nodes[v] = st
	}
	st.CheckedAt = now
	if st.Liveness == l {
		return false
	}
	st.Liveness = l
	st.ChangedAt = now
	return true
}

// Snapshot returns a copy of every tracked node's status.
func (s *Store) Snapshot() map[lavalink.Version]NodeStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[lavalink.Version]NodeStatus, len(s.nodes))
	for v, st := range s.nodes {
		out[v] = *st
	}
	return out
}
