package actors

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/google/uuid"

	"inkgate/internal/database"
	"inkgate/internal/models"
	"inkgate/internal/utils"
)

// Message types for blog operations
type (
	CreateBlogMsg struct {
		Title    string
		Content  string
		ImageURL string
	}

	GetBlogMsg struct {
		PostID string
	}

	ListBlogsMsg struct{}

	ToggleLikeMsg struct {
		PostID   string
		ViewerID string
	}

	// AddPaidUserMsg grants a viewer access to a post. Sent by the
	// PaymentActor after a confirmed payment; never by handlers directly,
	// so membership in the paid-user set can only come from a payment.
	AddPaidUserMsg struct {
		PostID   string
		ViewerID string
	}

	GetCountsMsg struct{}
)

const storeTimeout = 5 * time.Second

// BlogActor owns blog post state and serializes all mutations to it. It
// mirrors the store in memory so reads and tests work without a database;
// with a database attached, the store stays authoritative.
type BlogActor struct {
	postsByID map[string]*models.BlogPost
	metrics   *utils.MetricsCollector
	db        *database.MongoDB
}

// NewBlogActor creates a new BlogActor instance. db may be nil, in which
// case the actor runs purely in memory.
func NewBlogActor(metrics *utils.MetricsCollector, db *database.MongoDB) actor.Actor {
	return &BlogActor{
		postsByID: make(map[string]*models.BlogPost),
		metrics:   metrics,
		db:        db,
	}
}

// Receive handles incoming messages
func (a *BlogActor) Receive(context actor.Context) {
	switch msg := context.Message().(type) {
	case *actor.Started:
		slog.Info("BlogActor started")
	case *actor.Stopping:
		slog.Info("BlogActor stopping")
	case *actor.Restarting:
		slog.Info("BlogActor restarting")
	case *CreateBlogMsg:
		a.handleCreateBlog(context, msg)
	case *GetBlogMsg:
		a.handleGetBlog(context, msg)
	case *ListBlogsMsg:
		a.handleListBlogs(context)
	case *ToggleLikeMsg:
		a.handleToggleLike(context, msg)
	case *AddPaidUserMsg:
		a.handleAddPaidUser(context, msg)
	case *GetCountsMsg:
		context.Respond(len(a.postsByID))
	}
}

func (a *BlogActor) handleCreateBlog(ctx actor.Context, msg *CreateBlogMsg) {
	startTime := time.Now()

	if strings.TrimSpace(msg.Title) == "" {
		ctx.Respond(utils.NewAppError(utils.ErrInvalidInput, "Title must not be empty", nil))
		return
	}

	now := time.Now().UTC()
	newPost := &models.BlogPost{
		ID:        uuid.NewString(),
		Title:     msg.Title,
		Content:   msg.Content,
		ImageURL:  msg.ImageURL,
		CreatedAt: &now,
		Likes:     map[string]bool{},
		PaidUsers: []string{},
	}
	if newPost.ImageURL == "" {
		newPost.ImageURL = models.PlaceholderImageURL
	}

	if a.db != nil {
		storeCtx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		if err := a.db.CreateBlog(storeCtx, newPost); err != nil {
			ctx.Respond(err)
			return
		}
	}

	a.postsByID[newPost.ID] = newPost

	a.metrics.AddOperationLatency("create_blog", time.Since(startTime))
	ctx.Respond(newPost.Copy())
}

func (a *BlogActor) handleGetBlog(ctx actor.Context, msg *GetBlogMsg) {
	post, err := a.lookupPost(msg.PostID)
	if err != nil {
		ctx.Respond(err)
		return
	}
	ctx.Respond(post.Copy())
}

func (a *BlogActor) handleListBlogs(ctx actor.Context) {
	startTime := time.Now()

	if a.db != nil {
		storeCtx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()

		posts, err := a.db.GetAllBlogs(storeCtx)
		if err != nil {
			ctx.Respond(err)
			return
		}
		// Refresh the in-memory mirror from the authoritative read. The
		// response carries copies: the mirror's maps and slices stay owned
		// by this actor, never shared with handler goroutines.
		a.postsByID = make(map[string]*models.BlogPost, len(posts))
		shared := make([]*models.BlogPost, 0, len(posts))
		for _, post := range posts {
			a.postsByID[post.ID] = post
			shared = append(shared, post.Copy())
		}
		a.metrics.AddOperationLatency("list_blogs", time.Since(startTime))
		ctx.Respond(shared)
		return
	}

	posts := make([]*models.BlogPost, 0, len(a.postsByID))
	for _, post := range a.postsByID {
		posts = append(posts, post.Copy())
	}
	a.metrics.AddOperationLatency("list_blogs", time.Since(startTime))
	ctx.Respond(posts)
}

func (a *BlogActor) handleToggleLike(ctx actor.Context, msg *ToggleLikeMsg) {
	startTime := time.Now()

	// Reject before any store access; a missing identity must never no-op.
	if msg.ViewerID == "" {
		ctx.Respond(utils.NewUnauthorizedError("like requires an authenticated viewer"))
		return
	}

	post, err := a.lookupPost(msg.PostID)
	if err != nil {
		ctx.Respond(err)
		return
	}

	if a.db != nil {
		storeCtx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()

		liked, err := a.db.ToggleLike(storeCtx, msg.PostID, msg.ViewerID)
		if err != nil {
			// The in-memory mirror is only updated on confirmed writes, so a
			// failure here leaves no divergent optimistic state behind.
			ctx.Respond(err)
			return
		}
		post.Likes[msg.ViewerID] = liked
	} else {
		post.Likes[msg.ViewerID] = !post.Likes[msg.ViewerID]
	}

	a.metrics.AddOperationLatency("toggle_like", time.Since(startTime))
	ctx.Respond(post.Copy())
}

func (a *BlogActor) handleAddPaidUser(ctx actor.Context, msg *AddPaidUserMsg) {
	startTime := time.Now()

	if msg.ViewerID == "" {
		ctx.Respond(utils.NewUnauthorizedError("payment grant requires a viewer identity"))
		return
	}

	post, err := a.lookupPost(msg.PostID)
	if err != nil {
		ctx.Respond(err)
		return
	}

	if a.db != nil {
		storeCtx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()

		// Atomic set-union at the store: concurrent grants for different
		// viewers both survive, and replays are no-ops.
		if err := a.db.AddPaidUser(storeCtx, msg.PostID, msg.ViewerID); err != nil {
			ctx.Respond(err)
			return
		}
	}

	alreadyPaid := false
	for _, id := range post.PaidUsers {
		if id == msg.ViewerID {
			alreadyPaid = true
			break
		}
	}
	if !alreadyPaid {
		post.PaidUsers = append(post.PaidUsers, msg.ViewerID)
	}

	a.metrics.AddOperationLatency("add_paid_user", time.Since(startTime))
	ctx.Respond(post.Copy())
}

// lookupPost finds a post in the mirror, falling back to the store.
func (a *BlogActor) lookupPost(postID string) (*models.BlogPost, *utils.AppError) {
	if post, exists := a.postsByID[postID]; exists {
		return post, nil
	}

	if a.db != nil {
		storeCtx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()

		post, err := a.db.GetBlog(storeCtx, postID)
		if err != nil {
			if appErr, ok := err.(*utils.AppError); ok {
				return nil, appErr
			}
			return nil, utils.NewAppError(utils.ErrDatabase, "Failed to load post", err)
		}
		a.postsByID[post.ID] = post
		return post, nil
	}

	return nil, utils.NewPostNotFoundError(postID)
}
