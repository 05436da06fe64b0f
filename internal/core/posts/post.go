package posts

import (
	"context"
	"log/slog"
	"time"

	"github.com/bluesky-social/indigo/atproto/syntax"

	"Tally/internal/atproto/appview"
	"Tally/internal/core/votes"
)

// Post is the view state of one post on screen.
// Score and vote come from the embedded Votable; everything else is display-only.
type Post struct {
	*votes.Votable

	CreatedAt    time.Time
	Title        string
	Text         string
	Author       Author
	Community    Community
	CommentCount int

	controller *votes.Controller
}

// Author is who wrote a post or comment
type Author struct {
	DID         string
	Handle      string
	DisplayName string
}

// Community is where a post lives
type Community struct {
	DID    string
	Handle string
	Name   string
}

// FromView builds a Post from the AppView's postView and gives it its own vote controller
func FromView(view *appview.PostView, factory *votes.ControllerFactory) (*Post, error) {
	if view == nil {
		return nil, NewValidationError("post", "required")
	}
	if _, err := syntax.ParseATURI(view.URI); err != nil {
		return nil, NewValidationError("uri", err.Error())
	}
	if view.CID == "" {
		return nil, NewValidationError("cid", "required")
	}

	logger := factory.Logger
	if logger == nil {
		logger = slog.Default()
	}

	score := 0
	if view.Stats != nil {
		score = view.Stats.Score
	}

	var viewerVote string
	if view.Viewer != nil && view.Viewer.Vote != nil {
		viewerVote = *view.Viewer.Vote
	}
	state, err := votes.ParseVoteState(viewerVote)
	if err != nil {
		// Unknown viewer values render as not voted rather than hiding the post
		logger.Warn("ignoring unknown viewer vote on post", "uri", view.URI, "error", err)
	}

	p := &Post{
		Votable: votes.NewVotable(votes.Subject{
			ID:   view.URI,
			CID:  view.CID,
			Kind: votes.KindPost,
		}, state, score),
		Author:    AuthorFromView(view.Author),
		Title:     deref(view.Title),
		Text:      deref(view.Text),
		CreatedAt: parseTime(view.CreatedAt),
	}
	if view.Stats != nil {
		p.CommentCount = view.Stats.CommentCount
	}
	if view.Community != nil {
		p.Community = Community{
			DID:    view.Community.DID,
			Handle: view.Community.Handle,
			Name:   view.Community.Name,
		}
	}
	p.controller = factory.New(p.Votable)

	return p, nil
}

// AuthorFromView converts the AppView author summary
func AuthorFromView(view *appview.AuthorView) Author {
	if view == nil {
		return Author{}
	}
	return Author{
		DID:         view.DID,
		Handle:      view.Handle,
		DisplayName: deref(view.DisplayName),
	}
}

// Vote requests direction on this post. See votes.Controller.RequestVote.
func (p *Post) Vote(ctx context.Context, direction votes.Direction) error {
	return p.controller.RequestVote(ctx, direction)
}

// Upvote requests an upvote, or clears an active one
func (p *Post) Upvote(ctx context.Context) error {
	return p.Vote(ctx, votes.Up)
}

// Downvote requests a downvote, or clears an active one
func (p *Post) Downvote(ctx context.Context) error {
	return p.Vote(ctx, votes.Down)
}

// Wait blocks until this post's in-flight votes resolve
func (p *Post) Wait() {
	p.controller.Wait()
}

// Close detaches the post's controller from the screen
func (p *Post) Close() {
	p.controller.Close()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
