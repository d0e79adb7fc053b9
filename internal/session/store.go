package session

import (
	"sort"
	"time"
)

// Store holds the live session map and the bounded closed-session ring.
// It is not safe for concurrent use — it is owned exclusively by the
// event-loop actor, which is the single mutator of all session state
// (see internal/actor). No method here takes a lock.
type Store struct {
	live       map[string]*Session
	closed     []*Session // FIFO ring, oldest at index 0
	ringSize   int
	idleThresh time.Duration
}

// NewStore creates a Store with the given closed-ring capacity and idle
// threshold (used only for sort-order classification, not eviction).
func NewStore(ringSize int, idleThreshold time.Duration) *Store {
	if ringSize <= 0 {
		ringSize = DefaultClosedRingSize
	}
	return &Store{
		live:       make(map[string]*Session),
		ringSize:   ringSize,
		idleThresh: idleThreshold,
	}
}

// SetIdleThreshold updates the idle threshold used for Inactive
// classification. Hot-reloadable.
func (st *Store) SetIdleThreshold(d time.Duration) { st.idleThresh = d }

// SetRingSize updates the closed-ring capacity. If the new size is smaller
// than the current ring, the oldest entries are evicted immediately.
func (st *Store) SetRingSize(n int) {
	if n <= 0 {
		n = DefaultClosedRingSize
	}
	st.ringSize = n
	for len(st.closed) > st.ringSize {
		st.closed = st.closed[1:]
	}
}

// Get returns the live session with id, if any.
func (st *Store) Get(id string) (*Session, bool) {
	s, ok := st.live[id]
	return s, ok
}

// InClosedRing reports whether id is currently in the closed ring, and
// returns its index if so.
func (st *Store) InClosedRing(id string) (int, bool) {
	for i, s := range st.closed {
		if s.ID == id {
			return i, true
		}
	}
	return 0, false
}

// Upsert implements the "Set"/"Update session" operation: creates the
// session if unseen, updates in place otherwise, reviving it from the
// closed ring if it was there. fields is applied by the caller via the
// mutate callback so that per-field truncation and defaulting stay at the
// call site (internal/actor). Returns the resulting session and whether it
// was newly created (including revival).
func (st *Store) Upsert(id string, now time.Time, mutate func(s *Session, revived bool)) (*Session, bool) {
	id = TruncateSessionID(id)
	if s, ok := st.live[id]; ok {
		mutate(s, false)
		return s, false
	}
	if idx, ok := st.InClosedRing(id); ok {
		s := st.closed[idx]
		st.closed = append(st.closed[:idx], st.closed[idx+1:]...)
		mutate(s, true)
		st.live[id] = s
		return s, true
	}
	s := NewSession(id, now)
	mutate(s, true)
	st.live[id] = s
	return s, true
}

// Close moves a live session into the closed ring, evicting the oldest
// ring entry if full. The session stops existing entirely once evicted
// from the ring. Returns the closed session, or nil if id wasn't live.
func (st *Store) Close(id string) *Session {
	s, ok := st.live[id]
	if !ok {
		return nil
	}
	delete(st.live, id)
	st.closed = append(st.closed, s)
	for len(st.closed) > st.ringSize {
		st.closed = st.closed[1:]
	}
	return s
}

// Remove deletes a live session outright (the "Remove session" operation).
// It is never added to the closed ring. Returns false if id wasn't live.
func (st *Store) Remove(id string) bool {
	if _, ok := st.live[id]; !ok {
		return false
	}
	delete(st.live, id)
	return true
}

// Reopen moves a session from the closed ring back to the live map with
// the given status (the "Reopen session" operation). Returns the revived
// session, or nil if id wasn't in the ring.
func (st *Store) Reopen(id string, status Status, now time.Time) *Session {
	idx, ok := st.InClosedRing(id)
	if !ok {
		return nil
	}
	s := st.closed[idx]
	st.closed = append(st.closed[:idx], st.closed[idx+1:]...)
	s.SetStatus(status, now)
	st.live[id] = s
	return s
}

// LiveCount returns the number of live sessions.
func (st *Store) LiveCount() int { return len(st.live) }

// ClosedCount returns the number of sessions currently in the closed ring.
func (st *Store) ClosedCount() int { return len(st.closed) }

// LiveSessions returns all live sessions, unsorted.
func (st *Store) LiveSessions() []*Session {
	out := make([]*Session, 0, len(st.live))
	for _, s := range st.live {
		out = append(out, s)
	}
	return out
}

// ClosedSessions returns the closed ring, oldest first.
func (st *Store) ClosedSessions() []*Session {
	return append([]*Session(nil), st.closed...)
}

// EvictHistories runs the periodic history-eviction pass over every
// tracked session, live and closed.
func (st *Store) EvictHistories(now time.Time) {
	for _, s := range st.live {
		s.EvictHistory(now)
	}
	for _, s := range st.closed {
		s.EvictHistory(now)
	}
}

// SortedSnapshot returns the live sessions and closed ring as wire
// snapshots, each list sorted in the spec's total order.
func (st *Store) SortedSnapshot(now time.Time) (live []Snapshot, closed []Snapshot) {
	live = make([]Snapshot, 0, len(st.live))
	for _, s := range st.live {
		live = append(live, s.ToSnapshot(now))
	}
	sort.Slice(live, func(i, j int) bool { return Less(live[i], live[j], st.idleThresh) })

	closed = make([]Snapshot, 0, len(st.closed))
	for _, s := range st.closed {
		closed = append(closed, s.ToSnapshot(now))
	}
	sort.Slice(closed, func(i, j int) bool { return Less(closed[i], closed[j], st.idleThresh) })
	return live, closed
}
