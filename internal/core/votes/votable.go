package votes

import (
	"sync"
)

// Votable is the in-memory view state of a post or comment: its viewer vote
// and score. The server supplies the baseline; controllers mutate it
// optimistically and roll it back on failure.
//
// In-flight votes are kept in the order they were applied. While any are
// pending, the current value is the last one's applied snapshot, and each
// pending vote's previous snapshot is the value it was applied on top of,
// with failed predecessors spliced out. Rolling back the last one therefore
// lands on a value no failed call produced.
type Votable struct {
	subject Subject

	mu      sync.Mutex
	state   VoteState
	score   int
	version uint64 // bumped on every change, orders deliveries
	pending []*pendingVote

	subsMu  sync.Mutex
	subs    map[uint64]*subscription
	nextSub uint64
}

// pendingVote is held while a remote vote is in flight
type pendingVote struct {
	owner    *Controller
	previous Snapshot
	applied  Snapshot
}

// NewVotable creates a Votable from server-confirmed values.
// An invalid state is treated as None.
func NewVotable(subject Subject, state VoteState, score int) *Votable {
	if !state.Valid() {
		state = None
	}
	return &Votable{
		subject: subject,
		state:   state,
		score:   score,
		subs:    make(map[uint64]*subscription),
	}
}

// ID returns the entity's stable identifier
func (v *Votable) ID() string {
	return v.subject.ID
}

// Subject returns the reference used for remote votes
func (v *Votable) Subject() Subject {
	return v.subject
}

// Snapshot returns the current (state, score) pair
func (v *Votable) Snapshot() Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	return Snapshot{State: v.state, Score: v.score}
}

// VoteState returns the current viewer vote
func (v *Votable) VoteState() VoteState {
	return v.Snapshot().State
}

// Score returns the current score
func (v *Votable) Score() int {
	return v.Snapshot().Score
}

// Subscribe registers fn to receive published snapshots.
// Calls to fn are never concurrent and never out of order; if several
// changes land while fn runs, only the newest is delivered next.
// fn may vote on or reset this Votable.
// The returned function removes the subscription.
func (v *Votable) Subscribe(fn func(Snapshot)) func() {
	sub := &subscription{fn: fn}

	v.subsMu.Lock()
	id := v.nextSub
	v.nextSub++
	v.subs[id] = sub
	v.subsMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			v.subsMu.Lock()
			delete(v.subs, id)
			v.subsMu.Unlock()
			sub.cancel()
		})
	}
}

// Reset installs a new server-confirmed baseline and drops every
// in-flight vote, so none of them can roll back over it.
func (v *Votable) Reset(state VoteState, score int) {
	if !state.Valid() {
		state = None
	}
	v.mu.Lock()
	v.state = state
	v.score = score
	v.pending = nil
	v.version++
	v.mu.Unlock()

	v.publish()
}

// apply runs the transition against the latest value and publishes it.
// owner's closed flag is checked under mu so Close and apply cannot interleave.
func (v *Votable) apply(owner *Controller, direction Direction) (*pendingVote, error) {
	v.mu.Lock()
	if owner.closed.Load() {
		v.mu.Unlock()
		return nil, ErrControllerClosed
	}
	previous := Snapshot{State: v.state, Score: v.score}
	next, delta, err := Transition(previous.State, direction)
	if err != nil {
		v.mu.Unlock()
		return nil, err
	}
	v.state = next
	v.score = previous.Score + delta
	v.version++
	p := &pendingVote{
		owner:    owner,
		previous: previous,
		applied:  Snapshot{State: v.state, Score: v.score},
	}
	v.pending = append(v.pending, p)
	v.mu.Unlock()

	v.publish()
	return p, nil
}

// confirm records that p was accepted. Earlier pending votes are dropped:
// their outcome no longer decides what the screen should show.
func (v *Votable) confirm(p *pendingVote) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if i := v.indexLocked(p); i >= 0 {
		v.pending = v.pending[i+1:]
	}
}

// restore undoes p after its remote call failed.
// If p is the newest pending vote the value goes back to p's previous
// snapshot, which is returned with true. Otherwise nothing visible changes:
// the next pending vote inherits p's previous snapshot and false is returned.
// A p that was confirmed past, reset or abandoned is ignored.
func (v *Votable) restore(p *pendingVote) (Snapshot, bool) {
	v.mu.Lock()
	i := v.indexLocked(p)
	if i < 0 {
		v.mu.Unlock()
		return Snapshot{}, false
	}
	if i < len(v.pending)-1 {
		v.pending[i+1].previous = p.previous
		v.pending = append(v.pending[:i], v.pending[i+1:]...)
		v.mu.Unlock()
		return Snapshot{}, false
	}

	v.pending = v.pending[:i]
	v.state = p.previous.State
	v.score = p.previous.Score
	v.version++
	v.mu.Unlock()

	v.publish()
	return p.previous, true
}

// abandon drops owner's pending votes without touching the value
func (v *Votable) abandon(owner *Controller) {
	v.mu.Lock()
	defer v.mu.Unlock()

	kept := v.pending[:0]
	for _, p := range v.pending {
		if p.owner != owner {
			kept = append(kept, p)
		}
	}
	clear(v.pending[len(kept):])
	v.pending = kept
}

// indexLocked must be called with mu held
func (v *Votable) indexLocked(p *pendingVote) int {
	for i, q := range v.pending {
		if q == p {
			return i
		}
	}
	return -1
}

// publish offers the current snapshot to every subscriber. No lock is
// held while subscriber code runs.
func (v *Votable) publish() {
	v.mu.Lock()
	snap := Snapshot{State: v.state, Score: v.score}
	version := v.version
	v.mu.Unlock()

	v.subsMu.Lock()
	subs := make([]*subscription, 0, len(v.subs))
	for _, sub := range v.subs {
		subs = append(subs, sub)
	}
	v.subsMu.Unlock()

	for _, sub := range subs {
		sub.offer(snap, version)
	}
}

// subscription delivers snapshots to one callback. Whoever finds it idle
// becomes the deliverer and drains newer snapshots queued meanwhile,
// including ones published from inside the callback.
type subscription struct {
	fn func(Snapshot)

	mu        sync.Mutex
	running   bool
	cancelled bool
	hasNext   bool
	next      Snapshot
	latest    uint64 // newest version queued or delivered
}

func (s *subscription) offer(snap Snapshot, version uint64) {
	s.mu.Lock()
	if s.cancelled || version <= s.latest {
		s.mu.Unlock()
		return
	}
	s.latest = version
	s.next = snap
	s.hasNext = true
	if s.running {
		s.mu.Unlock()
		return
	}

	s.running = true
	for s.hasNext && !s.cancelled {
		snap := s.next
		s.hasNext = false
		s.mu.Unlock()
		s.fn(snap)
		s.mu.Lock()
	}
	s.running = false
	s.mu.Unlock()
}

func (s *subscription) cancel() {
	s.mu.Lock()
	s.cancelled = true
	s.hasNext = false
	s.mu.Unlock()
}
