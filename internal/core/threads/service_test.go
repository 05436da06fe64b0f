package threads

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jonboulle/clockwork"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Tally/internal/atproto/appview"
	"Tally/internal/atproto/session"
	"Tally/internal/core/votes"
)

const (
	testPostURI = "at://did:plc:community123/social.coves.community.post/3kpost"
	testCID     = "bafybeigdyrzt5sfp7udm7hu76uh7y26nf3efuylqabf3oclgtqy55fbzdi"
	viewerDID   = "did:plc:viewer123"

	otherPostURI = "at://did:plc:community123/social.coves.community.post/3kother"
)

var epoch = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func strPtr(s string) *string { return &s }

func commentURI(rkey string) string {
	return "at://did:plc:commenter/social.coves.community.comment/" + rkey
}

// fakeAppView serves a fixed thread and records vote requests
type fakeAppView struct {
	mu        sync.Mutex
	votes     []map[string]any
	auth      []string
	failVotes bool
	noPost    bool
}

func (f *fakeAppView) router(t *testing.T) http.Handler {
	r := chi.NewRouter()

	r.Get("/xrpc/social.coves.community.comment.getComments", func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Query().Get("post") != testPostURI {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "NotFound", "message": "post not found"})
			return
		}

		f.mu.Lock()
		noPost := f.noPost
		f.mu.Unlock()

		resp := appview.GetCommentsResponse{
			Cursor: strPtr("page-2"),
			Comments: []*appview.ThreadViewComment{
				{
					Comment: &appview.CommentView{
						URI:     commentURI("root"),
						CID:     testCID,
						Content: "first",
						Stats:   &appview.CommentStats{Score: 4, ReplyCount: 1},
						Viewer:  &appview.CommentViewerState{Vote: strPtr("up")},
					},
					Replies: []*appview.ThreadViewComment{{
						Comment: &appview.CommentView{
							URI:     commentURI("reply"),
							CID:     testCID,
							Content: "second",
							Stats:   &appview.CommentStats{Score: 1},
						},
					}},
				},
			},
		}
		if !noPost {
			resp.Post = &appview.PostView{
				URI:   testPostURI,
				CID:   testCID,
				Title: strPtr("Weekly thread"),
				Stats: &appview.PostStats{Score: 10, CommentCount: 2},
			}
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	})

	r.Get("/xrpc/social.coves.feed.getDiscover", func(w http.ResponseWriter, req *http.Request) {
		resp := appview.FeedResponse{
			Feed: []*appview.FeedViewPost{
				{Post: &appview.PostView{
					URI:    testPostURI,
					CID:    testCID,
					Title:  strPtr("Weekly thread"),
					Stats:  &appview.PostStats{Score: 10},
					Viewer: &appview.ViewerState{Vote: strPtr("up")},
				}},
				{Post: &appview.PostView{
					URI:   otherPostURI,
					CID:   testCID,
					Stats: &appview.PostStats{Score: -2},
				}},
			},
		}
		if req.URL.Query().Get("cursor") == "" {
			resp.Cursor = strPtr("page-2")
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	})

	r.Post("/xrpc/social.coves.feed.vote.create", func(w http.ResponseWriter, req *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(req.Body).Decode(&body))

		f.mu.Lock()
		f.votes = append(f.votes, body)
		f.auth = append(f.auth, req.Header.Get("Authorization"))
		fail := f.failVotes
		f.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if fail {
			w.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "InternalError", "message": "database unavailable"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{
			"uri": "at://did:plc:viewer123/social.coves.feed.vote/3kvote",
			"cid": testCID,
		})
	})

	return r
}

func (f *fakeAppView) set(fn func(f *fakeAppView)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func (f *fakeAppView) voteCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.votes)
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok, err := jwt.NewBuilder().Subject(viewerDID).Expiration(exp).Build()
	require.NoError(t, err)
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, []byte("test-secret")))
	require.NoError(t, err)
	return string(signed)
}

type harness struct {
	appview  *fakeAppView
	clock    *clockwork.FakeClock
	session  *session.Session
	service  Service
	mu       sync.Mutex
	failures []error
	logins   int
}

func newHarness(t *testing.T, loggedIn bool) *harness {
	t.Helper()

	h := &harness{
		appview: &fakeAppView{},
		clock:   clockwork.NewFakeClockAt(epoch),
	}
	server := httptest.NewServer(h.appview.router(t))
	t.Cleanup(server.Close)

	h.session = session.New(h.clock, nil)
	if loggedIn {
		require.NoError(t, h.session.Login(viewerDID, signedToken(t, epoch.Add(time.Hour))))
	}

	client, err := appview.NewClient(server.URL, h.session, nil)
	require.NoError(t, err)

	factory := &votes.ControllerFactory{
		Caster: client,
		Auth:   h.session,
		Options: votes.ControllerOptions{
			Timeout: 5 * time.Second,
			Hooks: votes.Hooks{
				OnLoginRequired: func() {
					h.mu.Lock()
					h.logins++
					h.mu.Unlock()
				},
				OnFailure: func(_ votes.Subject, err error) {
					h.mu.Lock()
					h.failures = append(h.failures, err)
					h.mu.Unlock()
				},
			},
		},
	}
	h.service = NewService(client, factory, Options{Depth: 5}, nil)
	return h
}

func TestOpen(t *testing.T) {
	h := newHarness(t, true)

	thread, err := h.service.Open(context.Background(), testPostURI)
	require.NoError(t, err)
	defer thread.Close()

	assert.Equal(t, testPostURI, thread.Post.ID())
	assert.Equal(t, votes.Snapshot{State: votes.None, Score: 10}, thread.Post.Snapshot())
	require.NotNil(t, thread.Cursor)
	assert.Equal(t, "page-2", *thread.Cursor)

	assert.Equal(t, 2, thread.Comments.Len())
	root, ok := thread.Comments.Find(commentURI("root"))
	require.True(t, ok)
	assert.Equal(t, votes.Snapshot{State: votes.Upvote, Score: 4}, root.Snapshot())
}

func TestOpen_Errors(t *testing.T) {
	h := newHarness(t, true)

	_, err := h.service.Open(context.Background(), "not-a-uri")
	assert.ErrorIs(t, err, ErrInvalidPostURI)

	_, err = h.service.Open(context.Background(), "at://did:plc:community123/social.coves.community.post/missing")
	assert.True(t, appview.IsNotFound(err))

	h.appview.set(func(f *fakeAppView) { f.noPost = true })
	_, err = h.service.Open(context.Background(), testPostURI)
	assert.ErrorIs(t, err, ErrMissingPost)
}

func TestThread_VoteConfirmed(t *testing.T) {
	h := newHarness(t, true)
	thread, err := h.service.Open(context.Background(), testPostURI)
	require.NoError(t, err)
	defer thread.Close()

	// Upvote on an upvoted comment clears it
	require.NoError(t, thread.Vote(context.Background(), commentURI("root"), votes.Up))
	require.NoError(t, thread.Vote(context.Background(), testPostURI, votes.Down))
	thread.Wait()

	root, _ := thread.Comments.Find(commentURI("root"))
	assert.Equal(t, votes.Snapshot{State: votes.None, Score: 3}, root.Snapshot())
	assert.Equal(t, votes.Snapshot{State: votes.Downvote, Score: 9}, thread.Post.Snapshot())

	reply, _ := thread.Comments.Find(commentURI("reply"))
	assert.Equal(t, votes.Snapshot{State: votes.None, Score: 1}, reply.Snapshot())

	h.appview.mu.Lock()
	defer h.appview.mu.Unlock()
	require.Len(t, h.appview.votes, 2)
	for _, auth := range h.appview.auth {
		assert.Contains(t, auth, "Bearer ")
	}

	directions := map[string]any{}
	for _, body := range h.appview.votes {
		subject := body["subject"].(map[string]any)
		directions[subject["uri"].(string)] = body["direction"]
	}
	assert.Equal(t, "up", directions[commentURI("root")])
	assert.Equal(t, "down", directions[testPostURI])
	assert.Empty(t, h.failures)
}

func TestThread_VoteFailureRollsBack(t *testing.T) {
	h := newHarness(t, true)
	h.appview.set(func(f *fakeAppView) { f.failVotes = true })

	thread, err := h.service.Open(context.Background(), testPostURI)
	require.NoError(t, err)
	defer thread.Close()

	require.NoError(t, thread.Post.Upvote(context.Background()))
	assert.Equal(t, votes.Snapshot{State: votes.Upvote, Score: 11}, thread.Post.Snapshot())

	thread.Wait()
	assert.Equal(t, votes.Snapshot{State: votes.None, Score: 10}, thread.Post.Snapshot())

	h.mu.Lock()
	defer h.mu.Unlock()
	require.Len(t, h.failures, 1)
	assert.ErrorIs(t, h.failures[0], votes.ErrRemoteVoteFailed)
}

func TestThread_LoggedOutNeverCalls(t *testing.T) {
	h := newHarness(t, false)
	thread, err := h.service.Open(context.Background(), testPostURI)
	require.NoError(t, err)
	defer thread.Close()

	err = thread.Vote(context.Background(), commentURI("reply"), votes.Up)
	assert.ErrorIs(t, err, votes.ErrUnauthenticated)
	thread.Wait()

	reply, _ := thread.Comments.Find(commentURI("reply"))
	assert.Equal(t, votes.Snapshot{State: votes.None, Score: 1}, reply.Snapshot())
	assert.Equal(t, 0, h.appview.voteCount())
	h.mu.Lock()
	defer h.mu.Unlock()
	assert.Equal(t, 1, h.logins)
}

func TestThread_ExpiredSessionActsLoggedOut(t *testing.T) {
	h := newHarness(t, true)
	thread, err := h.service.Open(context.Background(), testPostURI)
	require.NoError(t, err)
	defer thread.Close()

	h.clock.Advance(2 * time.Hour)

	err = thread.Post.Downvote(context.Background())
	assert.ErrorIs(t, err, votes.ErrUnauthenticated)
	assert.Equal(t, votes.Snapshot{State: votes.None, Score: 10}, thread.Post.Snapshot())
	assert.Equal(t, 0, h.appview.voteCount())
}

func TestDiscover(t *testing.T) {
	h := newHarness(t, true)

	page, err := h.service.Discover(context.Background(), "")
	require.NoError(t, err)
	defer page.Feed.Close()

	require.NotNil(t, page.Cursor)
	assert.Equal(t, "page-2", *page.Cursor)
	require.Equal(t, 2, page.Feed.Len())
	assert.Equal(t, testPostURI, page.Feed.Posts()[0].ID())

	// Upvoting an upvoted post clears it; the other post is untouched
	require.NoError(t, page.Feed.Vote(context.Background(), testPostURI, votes.Up))
	page.Feed.Wait()

	first, _ := page.Feed.Find(testPostURI)
	assert.Equal(t, votes.Snapshot{State: votes.None, Score: 9}, first.Snapshot())
	other, _ := page.Feed.Find(otherPostURI)
	assert.Equal(t, votes.Snapshot{State: votes.None, Score: -2}, other.Snapshot())
	assert.Equal(t, 1, h.appview.voteCount())

	next, err := h.service.Discover(context.Background(), *page.Cursor)
	require.NoError(t, err)
	defer next.Feed.Close()
	assert.Nil(t, next.Cursor)
}
