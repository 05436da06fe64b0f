package votes

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultVoteTimeout bounds a single remote vote call
const DefaultVoteTimeout = 30 * time.Second

// Hooks let the UI react to outcomes the controller handles silently
type Hooks struct {
	// OnLoginRequired is called when a vote is requested while logged out
	OnLoginRequired func()

	// OnFailure is called after a failed vote has been rolled back.
	// err wraps ErrRemoteVoteFailed and the remote error.
	OnFailure func(subject Subject, err error)
}

// ControllerOptions configures a Controller
type ControllerOptions struct {
	Hooks   Hooks
	Timeout time.Duration // Zero means DefaultVoteTimeout
}

// Controller runs optimistic votes for one Votable:
// apply locally, call the backend, roll back on failure.
//
// Calls are not queued. Each RequestVote applies against the latest
// optimistic value. A failure rolls back only when it is the newest
// pending vote, and then past any older votes that already failed.
type Controller struct {
	votable *Votable
	caster  Caster
	auth    Authenticator
	hooks   Hooks
	timeout time.Duration
	logger  *slog.Logger

	inflight inflightCounter
	closed   atomic.Bool
}

// NewController creates a controller for votable
func NewController(votable *Votable, caster Caster, auth Authenticator, opts ControllerOptions, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultVoteTimeout
	}
	return &Controller{
		votable: votable,
		caster:  caster,
		auth:    auth,
		hooks:   opts.Hooks,
		timeout: timeout,
		logger:  logger,
	}
}

// Votable returns the entity this controller mutates
func (c *Controller) Votable() *Votable {
	return c.votable
}

// RequestVote applies direction optimistically and confirms it in the background.
// It returns ErrUnauthenticated (after calling OnLoginRequired) when logged out,
// without mutating anything. Remote failures are never returned here: they
// surface as the state reverting and through Hooks.OnFailure.
//
// The remote call is detached from ctx cancellation; once issued it runs
// to completion.
func (c *Controller) RequestVote(ctx context.Context, direction Direction) error {
	if !direction.Valid() {
		return ErrInvalidDirection
	}

	if c.auth == nil || !c.auth.IsAuthenticated() {
		if c.hooks.OnLoginRequired != nil {
			c.hooks.OnLoginRequired()
		}
		return ErrUnauthenticated
	}

	if c.closed.Load() {
		return ErrControllerClosed
	}

	pending, err := c.votable.apply(c, direction)
	if err != nil {
		return err
	}

	c.logger.Debug("vote applied optimistically",
		"subject", c.votable.ID(),
		"kind", c.votable.Subject().Kind,
		"direction", direction,
		"from", pending.previous.State,
		"to", pending.applied.State,
		"score", pending.applied.Score)

	c.inflight.add()
	go c.confirm(context.WithoutCancel(ctx), direction, pending)

	return nil
}

// Upvote requests Up
func (c *Controller) Upvote(ctx context.Context) error {
	return c.RequestVote(ctx, Up)
}

// Downvote requests Down
func (c *Controller) Downvote(ctx context.Context) error {
	return c.RequestVote(ctx, Down)
}

func (c *Controller) confirm(ctx context.Context, direction Direction, pending *pendingVote) {
	defer c.inflight.done()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	subject := c.votable.Subject()
	castErr := c.caster.CastVote(ctx, subject, direction)
	if castErr == nil {
		c.votable.confirm(pending)
		c.logger.Debug("vote confirmed",
			"subject", subject.ID,
			"direction", direction,
			"state", pending.applied.State)
		return
	}

	restored, ok := c.votable.restore(pending)
	if !ok {
		c.logger.Debug("vote failed without visible rollback",
			"subject", subject.ID,
			"direction", direction,
			"closed", c.closed.Load(),
			"error", castErr)
		return
	}

	c.logger.Warn("vote failed, rolled back",
		"subject", subject.ID,
		"kind", subject.Kind,
		"direction", direction,
		"state", restored.State,
		"score", restored.Score,
		"error", castErr)

	if c.hooks.OnFailure != nil {
		c.hooks.OnFailure(subject, fmt.Errorf("%w: %w", ErrRemoteVoteFailed, castErr))
	}
}

// Wait blocks until every in-flight vote has resolved.
// It is safe to call while other goroutines request votes; it returns the
// first time nothing is in flight.
func (c *Controller) Wait() {
	c.inflight.wait()
}

// Close detaches the controller from its screen. In-flight votes still
// complete on the backend, but their results no longer touch the Votable.
func (c *Controller) Close() {
	c.closed.Store(true)
	c.votable.abandon(c)
}

// ControllerFactory builds controllers that share one backend and login gate
type ControllerFactory struct {
	Caster  Caster
	Auth    Authenticator
	Options ControllerOptions
	Logger  *slog.Logger
}

// New creates a controller for votable
func (f *ControllerFactory) New(votable *Votable) *Controller {
	return NewController(votable, f.Caster, f.Auth, f.Options, f.Logger)
}

// inflightCounter counts running remote calls. Unlike sync.WaitGroup, add
// may race with wait.
type inflightCounter struct {
	mu   sync.Mutex
	cond *sync.Cond
	n    int
}

func (f *inflightCounter) add() {
	f.mu.Lock()
	f.n++
	f.mu.Unlock()
}

func (f *inflightCounter) done() {
	f.mu.Lock()
	f.n--
	if f.n == 0 && f.cond != nil {
		f.cond.Broadcast()
	}
	f.mu.Unlock()
}

func (f *inflightCounter) wait() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cond == nil {
		f.cond = sync.NewCond(&f.mu)
	}
	for f.n > 0 {
		f.cond.Wait()
	}
}
