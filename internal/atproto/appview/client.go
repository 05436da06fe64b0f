// Package appview provides the XRPC client this app uses to talk to a Coves AppView.
// It wraps indigo's atclient.APIClient and maps XRPC failures to typed errors.
package appview

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/bluesky-social/indigo/atproto/atclient"
	"github.com/bluesky-social/indigo/atproto/syntax"
	"github.com/ipfs/go-cid"

	"Tally/internal/core/votes"
)

const (
	// nsidCreateVote creates, replaces or toggles off the viewer's vote
	nsidCreateVote = syntax.NSID("social.coves.feed.vote.create")

	// nsidGetComments returns a post and its threaded comments
	nsidGetComments = syntax.NSID("social.coves.community.comment.getComments")

	// nsidGetDiscover returns the public feed across all communities
	nsidGetDiscover = syntax.NSID("social.coves.feed.getDiscover")
)

// TokenSource supplies the current access token, or "" when logged out
type TokenSource interface {
	AccessToken() string
}

// Client provides access to the AppView endpoints the feed screens use
type Client interface {
	// CastVote sends the requested direction for subject.
	// The AppView toggles: the active direction clears the vote, the other one replaces it.
	CastVote(ctx context.Context, subject votes.Subject, direction votes.Direction) error

	// GetComments fetches a post and its comment tree
	GetComments(ctx context.Context, params GetCommentsParams) (*GetCommentsResponse, error)

	// GetDiscover fetches the public front page
	GetDiscover(ctx context.Context, params GetFeedParams) (*FeedResponse, error)
}

// client implements Client using indigo's APIClient
type client struct {
	apiClient *atclient.APIClient
}

// Ensure client implements Client and votes.Caster.
var (
	_ Client       = (*client)(nil)
	_ votes.Caster = (*client)(nil)
)

// NewClient creates an AppView client.
// Requests carry a Bearer token from tokens whenever one is available.
// httpClient may be nil to use atclient's default.
func NewClient(host string, tokens TokenSource, httpClient *http.Client) (Client, error) {
	if host == "" {
		return nil, fmt.Errorf("host is required")
	}

	apiClient := atclient.NewAPIClient(host)
	if httpClient != nil {
		apiClient.Client = httpClient
	}
	if tokens != nil {
		apiClient.Auth = &bearerAuth{tokens: tokens}
	}

	return &client{
		apiClient: apiClient,
	}, nil
}

// wrapAPIError inspects an error from atclient and wraps it with our typed errors.
func wrapAPIError(err error, operation string) error {
	if err == nil {
		return nil
	}

	var apiErr *atclient.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 400:
			return fmt.Errorf("%s: %w: %s", operation, ErrBadRequest, apiErr.Message)
		case 401:
			return fmt.Errorf("%s: %w: %s", operation, ErrUnauthorized, apiErr.Message)
		case 403:
			return fmt.Errorf("%s: %w: %s", operation, ErrForbidden, apiErr.Message)
		case 404:
			return fmt.Errorf("%s: %w: %s", operation, ErrNotFound, apiErr.Message)
		case 409:
			return fmt.Errorf("%s: %w: %s", operation, ErrConflict, apiErr.Message)
		case 429:
			return fmt.Errorf("%s: %w: %s", operation, ErrRateLimited, apiErr.Message)
		}
	}

	return fmt.Errorf("%s failed: %w", operation, err)
}

// CastVote sends a vote per social.coves.feed.vote.create
func (c *client) CastVote(ctx context.Context, subject votes.Subject, direction votes.Direction) error {
	if !direction.Valid() {
		return votes.ErrInvalidDirection
	}
	if err := validateSubject(subject); err != nil {
		return err
	}

	payload := map[string]any{
		"subject": map[string]any{
			"uri": subject.ID,
			"cid": subject.CID,
		},
		"direction": direction.String(),
	}

	// The body differs between create and toggle-off; only the status matters here
	if err := c.apiClient.Post(ctx, nsidCreateVote, payload, nil); err != nil {
		return wrapAPIError(err, "createVote")
	}

	return nil
}

// GetComments fetches a post thread per social.coves.community.comment.getComments
func (c *client) GetComments(ctx context.Context, params GetCommentsParams) (*GetCommentsResponse, error) {
	if _, err := syntax.ParseATURI(params.PostURI); err != nil {
		return nil, fmt.Errorf("%w: post %q: %v", ErrBadRequest, params.PostURI, err)
	}

	query := map[string]any{
		"post": params.PostURI,
	}
	if params.Sort != "" {
		query["sort"] = params.Sort
	}
	if params.Depth > 0 {
		query["depth"] = params.Depth
	}
	if params.Limit > 0 {
		query["limit"] = params.Limit
	}
	if params.Cursor != "" {
		query["cursor"] = params.Cursor
	}

	var result GetCommentsResponse
	if err := c.apiClient.Get(ctx, nsidGetComments, query, &result); err != nil {
		return nil, wrapAPIError(err, "getComments")
	}

	return &result, nil
}

// GetDiscover fetches a feed page per social.coves.feed.getDiscover
func (c *client) GetDiscover(ctx context.Context, params GetFeedParams) (*FeedResponse, error) {
	query := map[string]any{}
	if params.Sort != "" {
		query["sort"] = params.Sort
	}
	if params.Limit > 0 {
		query["limit"] = params.Limit
	}
	if params.Cursor != "" {
		query["cursor"] = params.Cursor
	}

	var result FeedResponse
	if err := c.apiClient.Get(ctx, nsidGetDiscover, query, &result); err != nil {
		return nil, wrapAPIError(err, "getDiscover")
	}

	return &result, nil
}

// validateSubject checks the strong reference before it goes on the wire
func validateSubject(subject votes.Subject) error {
	if _, err := syntax.ParseATURI(subject.ID); err != nil {
		return fmt.Errorf("%w: uri %q: %v", ErrInvalidSubject, subject.ID, err)
	}
	if subject.CID == "" {
		return fmt.Errorf("%w: cid is required", ErrInvalidSubject)
	}
	if _, err := cid.Decode(subject.CID); err != nil {
		return fmt.Errorf("%w: cid %q: %v", ErrInvalidSubject, subject.CID, err)
	}
	return nil
}

// bearerAuth implements atclient.AuthMethod with the session's current token.
// The token is read per request so logging out takes effect immediately.
type bearerAuth struct {
	tokens TokenSource
}

// Ensure bearerAuth implements atclient.AuthMethod.
var _ atclient.AuthMethod = (*bearerAuth)(nil)

// DoWithAuth adds the Bearer token, if any, and executes the request.
func (b *bearerAuth) DoWithAuth(c *http.Client, req *http.Request, _ syntax.NSID) (*http.Response, error) {
	if token := b.tokens.AccessToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return c.Do(req)
}
