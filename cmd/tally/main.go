package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jonboulle/clockwork"

	"Tally/internal/atproto/appview"
	"Tally/internal/atproto/session"
	"Tally/internal/config"
	"Tally/internal/core/comments"
	"Tally/internal/core/posts"
	"Tally/internal/core/threads"
	"Tally/internal/core/votes"
)

func main() {
	postURI := flag.String("post", "", "at:// URI of the post to open; the front feed is listed when empty")
	vote := flag.String("vote", "", "vote to cast: up or down")
	target := flag.String("target", "", "post or comment URI to vote on (defaults to the post)")
	collapse := flag.String("collapse", "", "comma-separated comment URIs to collapse before printing")
	envFile := flag.String("env", config.DefaultEnvFile, "env file to read")
	flag.Parse()

	if *vote != "" && *postURI == "" && *target == "" {
		fmt.Fprintln(os.Stderr, "usage: tally [-post at://...] [-vote up|down -target at://...]")
		os.Exit(2)
	}

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, *postURI, *vote, *target, *collapse); err != nil {
		logger.Error("tally failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, postURI, vote, target, collapse string) error {
	clock := clockwork.NewRealClock()
	sess := session.New(clock, logger)
	if cfg.LoggedIn() {
		if err := sess.Login(cfg.UserDID, cfg.AccessToken); err != nil {
			return fmt.Errorf("login: %w", err)
		}
	}

	client, err := appview.NewClient(cfg.AppViewURL, sess, nil)
	if err != nil {
		return fmt.Errorf("appview client: %w", err)
	}

	breaker := votes.NewCircuitBreaker(client, clock, votes.BreakerOptions{
		Counts: func(err error) bool {
			return !appview.IsClientError(err) && !errors.Is(err, context.Canceled)
		},
	}, logger)

	factory := &votes.ControllerFactory{
		Caster: breaker,
		Auth:   sess,
		Logger: logger,
		Options: votes.ControllerOptions{
			Timeout: cfg.VoteTimeout,
			Hooks: votes.Hooks{
				OnLoginRequired: func() {
					fmt.Println("Log in to vote: set USER_DID and ACCESS_TOKEN")
				},
				OnFailure: func(subject votes.Subject, err error) {
					fmt.Printf("Vote on %s failed and was undone: %v\n", subject.ID, err)
				},
			},
		},
	}

	svc := threads.NewService(client, factory, threads.Options{
		Sort:  cfg.CommentSort,
		Depth: cfg.CommentDepth,
	}, logger)

	if postURI == "" {
		return runFeed(ctx, svc, vote, target)
	}

	thread, err := svc.Open(ctx, postURI)
	if err != nil {
		return err
	}
	defer thread.Close()

	for _, id := range splitList(collapse) {
		if err := thread.Comments.SetCollapsed(id, true); err != nil {
			return err
		}
	}

	printThread(thread)

	if vote == "" {
		return nil
	}

	direction, err := votes.ParseDirection(vote)
	if err != nil {
		return err
	}
	if target == "" {
		target = postURI
	}

	unsubscribe, err := watch(thread, target)
	if err != nil {
		return err
	}
	defer unsubscribe()

	if err := thread.Vote(ctx, target, direction); err != nil {
		if votes.IsLoginRequired(err) {
			return nil
		}
		return err
	}
	thread.Wait()
	return nil
}

// runFeed lists the front feed and optionally votes on one of its posts
func runFeed(ctx context.Context, svc threads.Service, vote, target string) error {
	page, err := svc.Discover(ctx, "")
	if err != nil {
		return err
	}
	defer page.Feed.Close()

	for _, p := range page.Feed.Posts() {
		fmt.Printf("[%+d %s] %s by @%s in %s\n  %s\n", p.Score(), p.VoteState(), p.Title, p.Author.Handle, p.Community.Name, p.ID())
	}
	if page.Cursor != nil {
		fmt.Println("(more posts available)")
	}

	if vote == "" {
		return nil
	}

	direction, err := votes.ParseDirection(vote)
	if err != nil {
		return err
	}
	p, ok := page.Feed.Find(target)
	if !ok {
		return fmt.Errorf("%w: %s", posts.ErrNotFound, target)
	}
	unsubscribe := p.Subscribe(func(s votes.Snapshot) {
		fmt.Printf("  %s -> %s (%d)\n", target, s.State, s.Score)
	})
	defer unsubscribe()

	if err := page.Feed.Vote(ctx, target, direction); err != nil {
		if votes.IsLoginRequired(err) {
			return nil
		}
		return err
	}
	page.Feed.Wait()
	return nil
}

// watch prints every snapshot the target publishes
func watch(thread *threads.Thread, id string) (func(), error) {
	show := func(s votes.Snapshot) {
		fmt.Printf("  %s -> %s (%d)\n", id, s.State, s.Score)
	}
	if id == thread.Post.ID() {
		return thread.Post.Subscribe(show), nil
	}
	n, ok := thread.Comments.Find(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", comments.ErrCommentNotFound, id)
	}
	return n.Subscribe(show), nil
}

func printThread(thread *threads.Thread) {
	p := thread.Post
	fmt.Printf("[%+d %s] %s by @%s\n", p.Score(), p.VoteState(), p.Title, p.Author.Handle)

	for _, n := range thread.Comments.Visible() {
		indent := strings.Repeat("  ", n.Depth()+1)
		marker := "-"
		if n.Collapsed() {
			marker = "+"
		}
		content := n.Content
		if n.Deleted {
			content = "[deleted]"
		}
		fmt.Printf("%s%s [%+d %s] @%s: %s\n", indent, marker, n.Score(), n.VoteState(), n.Author.Handle, content)
		if n.HasMore && !n.Collapsed() {
			fmt.Printf("%s  ... more replies\n", indent)
		}
	}

	if thread.Cursor != nil {
		fmt.Println("(more comments available)")
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
