package votes

// step is one cell of the transition table
type step struct {
	next  VoteState
	delta int
}

// transitions[current][requested] holds the toggle table.
// Requesting the active direction clears the vote.
var transitions = map[VoteState]map[Direction]step{
	None: {
		Up:   {next: Upvote, delta: +1},
		Down: {next: Downvote, delta: -1},
	},
	Upvote: {
		Up:   {next: None, delta: -1},
		Down: {next: Downvote, delta: -2},
	},
	Downvote: {
		Up:   {next: Upvote, delta: +2},
		Down: {next: None, delta: +1},
	},
}

// Transition returns the vote state and score change produced by requesting
// direction while the viewer's vote is current. It has no side effects.
func Transition(current VoteState, requested Direction) (VoteState, int, error) {
	if !requested.Valid() {
		return current, 0, ErrInvalidDirection
	}
	row, ok := transitions[current]
	if !ok {
		return current, 0, ErrInvalidVoteState
	}
	s := row[requested]
	return s.next, s.delta, nil
}

// Inverse returns the score change that undoes appliedDelta.
// Rollback restores the captured snapshot instead; Inverse exists for display
// arithmetic such as animating a reverted score.
func Inverse(appliedDelta int) int {
	return -appliedDelta
}
