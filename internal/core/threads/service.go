// Package threads loads a post with its comments and wires every item
// to its own vote controller.
package threads

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bluesky-social/indigo/atproto/syntax"

	"Tally/internal/atproto/appview"
	"Tally/internal/core/comments"
	"Tally/internal/core/posts"
	"Tally/internal/core/votes"
)

// Thread is one post screen: the post, its comment tree and the paging cursor
type Thread struct {
	Post     *posts.Post
	Comments *comments.Tree
	Cursor   *string
}

// Wait blocks until every vote on the screen has resolved
func (t *Thread) Wait() {
	t.Post.Wait()
	t.Comments.Wait()
}

// Close detaches the post and every comment from late vote results
func (t *Thread) Close() {
	t.Post.Close()
	t.Comments.Close()
}

// Vote requests direction on the post or any comment by id
func (t *Thread) Vote(ctx context.Context, id string, direction votes.Direction) error {
	if id == t.Post.ID() {
		return t.Post.Vote(ctx, direction)
	}
	return t.Comments.Vote(ctx, id, direction)
}

// Options control how much of the thread is fetched
type Options struct {
	Sort  string
	Depth int
	Limit int
}

// Page is one page of the front feed
type Page struct {
	Feed   *posts.Feed
	Cursor *string
}

// Service opens post threads and feed pages
type Service interface {
	Open(ctx context.Context, postURI string) (*Thread, error)
	Discover(ctx context.Context, cursor string) (*Page, error)
}

type threadService struct {
	client  appview.Client
	factory *votes.ControllerFactory
	opts    Options
	logger  *slog.Logger
}

// NewService creates a thread service.
// factory decides where votes go and who may cast them.
func NewService(client appview.Client, factory *votes.ControllerFactory, opts Options, logger *slog.Logger) Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &threadService{
		client:  client,
		factory: factory,
		opts:    opts,
		logger:  logger,
	}
}

func (s *threadService) Open(ctx context.Context, postURI string) (*Thread, error) {
	if _, err := syntax.ParseATURI(postURI); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPostURI, err)
	}

	resp, err := s.client.GetComments(ctx, appview.GetCommentsParams{
		PostURI: postURI,
		Sort:    s.opts.Sort,
		Depth:   s.opts.Depth,
		Limit:   s.opts.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load thread: %w", err)
	}
	if resp.Post == nil {
		return nil, fmt.Errorf("%w: %s", ErrMissingPost, postURI)
	}

	post, err := posts.FromView(resp.Post, s.factory)
	if err != nil {
		return nil, fmt.Errorf("invalid post: %w", err)
	}

	tree, err := comments.Build(resp.Comments, s.factory)
	if err != nil {
		post.Close()
		return nil, fmt.Errorf("invalid comments: %w", err)
	}

	s.logger.Debug("thread opened",
		"post", postURI,
		"comments", tree.Len(),
		"has_cursor", resp.Cursor != nil)

	return &Thread{
		Post:     post,
		Comments: tree,
		Cursor:   resp.Cursor,
	}, nil
}

func (s *threadService) Discover(ctx context.Context, cursor string) (*Page, error) {
	resp, err := s.client.GetDiscover(ctx, appview.GetFeedParams{
		Sort:   s.opts.Sort,
		Limit:  s.opts.Limit,
		Cursor: cursor,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load feed: %w", err)
	}

	views := make([]*appview.PostView, 0, len(resp.Feed))
	for _, item := range resp.Feed {
		if item == nil || item.Post == nil {
			continue
		}
		views = append(views, item.Post)
	}

	feed, err := posts.NewFeed(views, s.factory)
	if err != nil {
		return nil, fmt.Errorf("invalid feed: %w", err)
	}

	s.logger.Debug("feed page loaded", "posts", feed.Len(), "has_cursor", resp.Cursor != nil)

	return &Page{Feed: feed, Cursor: resp.Cursor}, nil
}
