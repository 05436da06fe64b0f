package comments

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bluesky-social/indigo/atproto/syntax"

	"Tally/internal/atproto/appview"
	"Tally/internal/core/posts"
	"Tally/internal/core/votes"
)

// Tree holds a post's comment thread.
// Nodes own their replies; index maps every id to its node so lookups
// don't walk the tree.
type Tree struct {
	roots []*Node
	index map[string]*Node
}

// Build creates a tree from the AppView's threaded comments.
// Every node gets its own vote controller from factory.
func Build(threads []*appview.ThreadViewComment, factory *votes.ControllerFactory) (*Tree, error) {
	b := &builder{
		factory: factory,
		logger:  factory.Logger,
		tree:    &Tree{index: make(map[string]*Node)},
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}

	roots, err := b.build(threads, nil, 0)
	if err != nil {
		return nil, err
	}
	b.tree.roots = roots
	return b.tree, nil
}

type builder struct {
	factory *votes.ControllerFactory
	logger  *slog.Logger
	tree    *Tree
}

func (b *builder) build(threads []*appview.ThreadViewComment, parent *Node, depth int) ([]*Node, error) {
	nodes := make([]*Node, 0, len(threads))
	for _, thread := range threads {
		if thread == nil || thread.Comment == nil {
			return nil, invalidComment("comment", "required")
		}

		n, err := b.node(thread, parent, depth)
		if err != nil {
			return nil, err
		}

		children, err := b.build(thread.Replies, n, depth+1)
		if err != nil {
			return nil, err
		}
		n.children = children
		nodes = append(nodes, n)
	}
	return nodes, nil
}

func (b *builder) node(thread *appview.ThreadViewComment, parent *Node, depth int) (*Node, error) {
	view := thread.Comment

	if _, err := syntax.ParseATURI(view.URI); err != nil {
		return nil, invalidComment("uri", "%v", err)
	}
	if view.CID == "" && !view.IsDeleted {
		return nil, invalidComment("cid", "required for %s", view.URI)
	}
	if _, exists := b.tree.index[view.URI]; exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateComment, view.URI)
	}

	score := 0
	replyCount := 0
	if view.Stats != nil {
		score = view.Stats.Score
		replyCount = view.Stats.ReplyCount
	}

	var viewerVote string
	if view.Viewer != nil && view.Viewer.Vote != nil {
		viewerVote = *view.Viewer.Vote
	}
	state, err := votes.ParseVoteState(viewerVote)
	if err != nil {
		b.logger.Warn("ignoring unknown viewer vote on comment", "uri", view.URI, "error", err)
	}

	n := &Node{
		Votable: votes.NewVotable(votes.Subject{
			ID:   view.URI,
			CID:  view.CID,
			Kind: votes.KindComment,
		}, state, score),
		Content:    view.Content,
		Author:     posts.AuthorFromView(view.Author),
		ReplyCount: replyCount,
		Deleted:    view.IsDeleted,
		HasMore:    thread.HasMore,
		parent:     parent,
		depth:      depth,
	}
	if t, err := time.Parse(time.RFC3339, view.CreatedAt); err == nil {
		n.CreatedAt = t
	}
	n.controller = b.factory.New(n.Votable)

	b.tree.index[view.URI] = n
	return n, nil
}

// Roots returns top-level comments in server order
func (t *Tree) Roots() []*Node {
	out := make([]*Node, len(t.roots))
	copy(out, t.roots)
	return out
}

// Len returns the number of comments in the tree
func (t *Tree) Len() int {
	return len(t.index)
}

// Find returns the node with id, including nodes hidden under a collapsed ancestor
func (t *Tree) Find(id string) (*Node, bool) {
	n, ok := t.index[id]
	return n, ok
}

// SetCollapsed sets the flag on exactly the node with id.
// Descendants keep their own flags, so expanding restores them as they were.
func (t *Tree) SetCollapsed(id string, collapsed bool) error {
	n, ok := t.index[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrCommentNotFound, id)
	}
	n.collapsed.Store(collapsed)
	return nil
}

// ToggleCollapsed flips the node's flag and returns the new value
func (t *Tree) ToggleCollapsed(id string) (bool, error) {
	n, ok := t.index[id]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrCommentNotFound, id)
	}
	for {
		old := n.collapsed.Load()
		if n.collapsed.CompareAndSwap(old, !old) {
			return !old, nil
		}
	}
}

// Visible returns the nodes to display, depth-first in server order.
// A collapsed node is shown; everything beneath it is not.
func (t *Tree) Visible() []*Node {
	var out []*Node
	stack := reversed(t.roots)
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		out = append(out, n)
		if n.Collapsed() {
			continue
		}
		stack = append(stack, reversed(n.children)...)
	}
	return out
}

// Walk visits every node depth-first in server order, hidden or not.
// It stops early when fn returns false.
func (t *Tree) Walk(fn func(n *Node) bool) {
	stack := reversed(t.roots)
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if !fn(n) {
			return
		}
		stack = append(stack, reversed(n.children)...)
	}
}

// Vote requests direction on the comment with id
func (t *Tree) Vote(ctx context.Context, id string, direction votes.Direction) error {
	n, ok := t.index[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrCommentNotFound, id)
	}
	return n.Vote(ctx, direction)
}

// Wait blocks until every node's in-flight votes resolve
func (t *Tree) Wait() {
	for _, n := range t.index {
		n.controller.Wait()
	}
}

// Close detaches every node's controller
func (t *Tree) Close() {
	for _, n := range t.index {
		n.controller.Close()
	}
}

func reversed(nodes []*Node) []*Node {
	out := make([]*Node, len(nodes))
	for i, n := range nodes {
		out[len(nodes)-1-i] = n
	}
	return out
}
