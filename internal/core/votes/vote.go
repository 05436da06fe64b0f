package votes

import "fmt"

// VoteState is the viewer's current vote on a post or comment
type VoteState int

const (
	// None means the viewer has not voted
	None VoteState = iota
	// Upvote means the viewer's vote counts +1
	Upvote
	// Downvote means the viewer's vote counts -1
	Downvote
)

// String returns the display name of the state
func (s VoteState) String() string {
	switch s {
	case None:
		return "none"
	case Upvote:
		return "upvote"
	case Downvote:
		return "downvote"
	default:
		return fmt.Sprintf("VoteState(%d)", int(s))
	}
}

// Valid reports whether s is one of None, Upvote or Downvote
func (s VoteState) Valid() bool {
	return s == None || s == Upvote || s == Downvote
}

// ParseVoteState maps a lexicon viewer vote ("up", "down" or empty) to a VoteState
func ParseVoteState(vote string) (VoteState, error) {
	switch vote {
	case "":
		return None, nil
	case "up":
		return Upvote, nil
	case "down":
		return Downvote, nil
	default:
		return None, fmt.Errorf("%w: %q", ErrInvalidVoteState, vote)
	}
}

// Direction is a vote the user asks for. There is no "none" direction:
// un-voting happens by requesting the direction that is already active.
type Direction int

const (
	// Up requests an upvote (or clears an active upvote)
	Up Direction = iota + 1
	// Down requests a downvote (or clears an active downvote)
	Down
)

// Valid reports whether d is Up or Down
func (d Direction) Valid() bool {
	return d == Up || d == Down
}

// String returns the lexicon value sent to the AppView: "up" or "down"
func (d Direction) String() string {
	switch d {
	case Up:
		return "up"
	case Down:
		return "down"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// ParseDirection parses "up" or "down"
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "up":
		return Up, nil
	case "down":
		return Down, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidDirection, s)
	}
}

// Kind identifies which sort of entity a Votable is
type Kind int

const (
	KindPost Kind = iota + 1
	KindComment
)

func (k Kind) String() string {
	switch k {
	case KindPost:
		return "post"
	case KindComment:
		return "comment"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Subject identifies the entity a vote is cast on.
// ID is the record's AT-URI; CID pins the exact record version for the strong reference.
type Subject struct {
	ID   string
	CID  string
	Kind Kind
}

// Snapshot is the jointly consistent (state, score) pair shown to the viewer
type Snapshot struct {
	State VoteState
	Score int
}
