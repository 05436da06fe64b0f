package votes

import "errors"

var (
	// ErrUnauthenticated indicates the viewer must log in before voting.
	// Nothing was mutated and no remote call was made.
	ErrUnauthenticated = errors.New("login required to vote")

	// ErrRemoteVoteFailed indicates the AppView did not accept the vote.
	// The optimistic change has already been rolled back when this is reported.
	ErrRemoteVoteFailed = errors.New("remote vote failed")

	// ErrInvalidDirection indicates a vote direction other than up or down
	ErrInvalidDirection = errors.New("invalid vote direction: must be 'up' or 'down'")

	// ErrInvalidVoteState indicates a viewer vote value that is not up, down or empty
	ErrInvalidVoteState = errors.New("invalid vote state")

	// ErrControllerClosed indicates the controller was detached from its screen
	ErrControllerClosed = errors.New("vote controller closed")
)

// IsLoginRequired checks if an error means the UI should prompt for login
func IsLoginRequired(err error) bool {
	return errors.Is(err, ErrUnauthenticated)
}
