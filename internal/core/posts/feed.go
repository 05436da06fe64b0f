package posts

import (
	"context"
	"fmt"

	"Tally/internal/atproto/appview"
	"Tally/internal/core/votes"
)

// Feed is an ordered list of posts with lookup by id
type Feed struct {
	posts []*Post
	index map[string]*Post
}

// NewFeed builds posts in server order. Every post gets its own controller.
func NewFeed(views []*appview.PostView, factory *votes.ControllerFactory) (*Feed, error) {
	f := &Feed{
		posts: make([]*Post, 0, len(views)),
		index: make(map[string]*Post, len(views)),
	}
	for i, view := range views {
		p, err := FromView(view, factory)
		if err != nil {
			return nil, fmt.Errorf("feed item %d: %w", i, err)
		}
		if _, exists := f.index[p.ID()]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicatePost, p.ID())
		}
		f.posts = append(f.posts, p)
		f.index[p.ID()] = p
	}
	return f, nil
}

// Posts returns the posts in server order
func (f *Feed) Posts() []*Post {
	out := make([]*Post, len(f.posts))
	copy(out, f.posts)
	return out
}

// Len returns the number of posts
func (f *Feed) Len() int {
	return len(f.posts)
}

// Find returns the post with id
func (f *Feed) Find(id string) (*Post, bool) {
	p, ok := f.index[id]
	return p, ok
}

// Vote requests direction on the post with id
func (f *Feed) Vote(ctx context.Context, id string, direction votes.Direction) error {
	p, ok := f.index[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return p.Vote(ctx, direction)
}

// Wait blocks until every post's in-flight votes resolve
func (f *Feed) Wait() {
	for _, p := range f.posts {
		p.Wait()
	}
}

// Close detaches every post's controller
func (f *Feed) Close() {
	for _, p := range f.posts {
		p.Close()
	}
}
