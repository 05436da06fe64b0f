package comments

import (
	"context"
	"sync/atomic"
	"time"

	"Tally/internal/core/posts"
	"Tally/internal/core/votes"
)

// Node is one comment on screen.
// Its shape is fixed once built; only score, vote and collapsed change.
type Node struct {
	*votes.Votable

	CreatedAt  time.Time
	Content    string
	Author     posts.Author
	ReplyCount int
	Deleted    bool
	HasMore    bool // The AppView has replies beyond the fetched depth

	parent   *Node
	children []*Node
	depth    int

	collapsed  atomic.Bool
	controller *votes.Controller
}

// Children returns direct replies in server order
func (n *Node) Children() []*Node {
	out := make([]*Node, len(n.children))
	copy(out, n.children)
	return out
}

// Parent returns the parent comment, or nil for a top-level comment
func (n *Node) Parent() *Node {
	return n.parent
}

// Depth is 0 for top-level comments
func (n *Node) Depth() int {
	return n.depth
}

// Collapsed reports this node's own flag. A node under a collapsed
// ancestor is hidden even when its own flag is false.
func (n *Node) Collapsed() bool {
	return n.collapsed.Load()
}

// Vote requests direction on this comment only; parents and replies are untouched
func (n *Node) Vote(ctx context.Context, direction votes.Direction) error {
	if n.Deleted {
		return ErrCommentDeleted
	}
	return n.controller.RequestVote(ctx, direction)
}

// Upvote requests an upvote, or clears an active one
func (n *Node) Upvote(ctx context.Context) error {
	return n.Vote(ctx, votes.Up)
}

// Downvote requests a downvote, or clears an active one
func (n *Node) Downvote(ctx context.Context) error {
	return n.Vote(ctx, votes.Down)
}
