package actors

import (
	"testing"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inkgate/internal/models"
	"inkgate/internal/utils"
)

const testTimeout = 5 * time.Second

func spawnBlogActor(t *testing.T) (*actor.ActorSystem, *actor.PID) {
	t.Helper()
	system := actor.NewActorSystem()
	props := actor.PropsFromProducer(func() actor.Actor {
		return NewBlogActor(utils.NewMetricsCollector(), nil)
	})
	return system, system.Root.Spawn(props)
}

func createPost(t *testing.T, system *actor.ActorSystem, pid *actor.PID, title string) *models.BlogPost {
	t.Helper()
	future := system.Root.RequestFuture(pid, &CreateBlogMsg{
		Title:   title,
		Content: "<p>full content</p>",
	}, testTimeout)

	result, err := future.Result()
	require.NoError(t, err)

	post, ok := result.(*models.BlogPost)
	require.True(t, ok, "expected a post, got %T: %v", result, result)
	return post
}

func TestCreateBlog(t *testing.T) {
	system, pid := spawnBlogActor(t)

	post := createPost(t, system, pid, "First post")

	assert.NotEmpty(t, post.ID)
	assert.Equal(t, "First post", post.Title)
	assert.NotNil(t, post.CreatedAt)
	assert.Empty(t, post.Likes)
	assert.Empty(t, post.PaidUsers)
	assert.Equal(t, models.PlaceholderImageURL, post.ImageURL, "missing image falls back to the placeholder")
}

func TestCreateBlogRejectsEmptyTitle(t *testing.T) {
	system, pid := spawnBlogActor(t)

	future := system.Root.RequestFuture(pid, &CreateBlogMsg{Title: "   "}, testTimeout)
	result, err := future.Result()
	require.NoError(t, err)

	appErr, ok := result.(*utils.AppError)
	require.True(t, ok)
	assert.Equal(t, utils.ErrInvalidInput, appErr.Code)
}

func TestToggleLikeFlipsAndRestores(t *testing.T) {
	system, pid := spawnBlogActor(t)
	post := createPost(t, system, pid, "Likeable")

	toggle := func() *models.BlogPost {
		future := system.Root.RequestFuture(pid, &ToggleLikeMsg{
			PostID:   post.ID,
			ViewerID: "u2",
		}, testTimeout)
		result, err := future.Result()
		require.NoError(t, err)
		updated, ok := result.(*models.BlogPost)
		require.True(t, ok, "unexpected response %T: %v", result, result)
		return updated
	}

	liked := toggle()
	assert.True(t, liked.Likes["u2"])
	assert.Equal(t, 1, liked.LikeCount())

	// Toggling twice in succession returns the flag to its original state.
	unliked := toggle()
	assert.False(t, unliked.Likes["u2"])
	assert.Equal(t, 0, unliked.LikeCount(), "an explicit false entry is not counted")
}

func TestToggleLikeRequiresViewer(t *testing.T) {
	system, pid := spawnBlogActor(t)
	post := createPost(t, system, pid, "Gated")

	future := system.Root.RequestFuture(pid, &ToggleLikeMsg{PostID: post.ID}, testTimeout)
	result, err := future.Result()
	require.NoError(t, err)

	appErr, ok := result.(*utils.AppError)
	require.True(t, ok, "anonymous like must be rejected, got %T", result)
	assert.Equal(t, utils.ErrUnauthorized, appErr.Code)
}

func TestToggleLikeUnknownPost(t *testing.T) {
	system, pid := spawnBlogActor(t)

	future := system.Root.RequestFuture(pid, &ToggleLikeMsg{
		PostID:   "missing",
		ViewerID: "u2",
	}, testTimeout)
	result, err := future.Result()
	require.NoError(t, err)

	appErr, ok := result.(*utils.AppError)
	require.True(t, ok)
	assert.Equal(t, utils.ErrNotFound, appErr.Code)
}

func TestAddPaidUserIsSetLike(t *testing.T) {
	system, pid := spawnBlogActor(t)
	post := createPost(t, system, pid, "Premium")

	grant := func(viewerID string) *models.BlogPost {
		future := system.Root.RequestFuture(pid, &AddPaidUserMsg{
			PostID:   post.ID,
			ViewerID: viewerID,
		}, testTimeout)
		result, err := future.Result()
		require.NoError(t, err)
		updated, ok := result.(*models.BlogPost)
		require.True(t, ok, "unexpected response %T: %v", result, result)
		return updated
	}

	assert.Equal(t, []string{"u2"}, grant("u2").PaidUsers)
	assert.Equal(t, []string{"u2", "u3"}, grant("u3").PaidUsers)

	// Replaying a grant must not duplicate the membership.
	assert.Equal(t, []string{"u2", "u3"}, grant("u2").PaidUsers)
}

func TestListBlogs(t *testing.T) {
	system, pid := spawnBlogActor(t)
	createPost(t, system, pid, "one")
	createPost(t, system, pid, "two")

	future := system.Root.RequestFuture(pid, &ListBlogsMsg{}, testTimeout)
	result, err := future.Result()
	require.NoError(t, err)

	posts, ok := result.([]*models.BlogPost)
	require.True(t, ok)
	assert.Len(t, posts, 2)
}

func TestListBlogsRespondsDetachedCopies(t *testing.T) {
	system, pid := spawnBlogActor(t)
	post := createPost(t, system, pid, "Shared state")

	list := func() []*models.BlogPost {
		future := system.Root.RequestFuture(pid, &ListBlogsMsg{}, testTimeout)
		result, err := future.Result()
		require.NoError(t, err)
		posts, ok := result.([]*models.BlogPost)
		require.True(t, ok, "unexpected response %T: %v", result, result)
		return posts
	}

	first := list()
	require.Len(t, first, 1)

	// A caller scribbling on the response must not reach the actor's state;
	// the listing is read concurrently by handler goroutines.
	first[0].Likes["intruder"] = true
	first[0].PaidUsers = append(first[0].PaidUsers, "intruder")

	second := list()
	require.Len(t, second, 1)
	assert.Empty(t, second[0].Likes, "listing must respond with detached copies")
	assert.Empty(t, second[0].PaidUsers, "listing must respond with detached copies")
	assert.Equal(t, post.ID, second[0].ID)
}

func TestListBlogsRecordsLatency(t *testing.T) {
	metrics := utils.NewMetricsCollector()
	system := actor.NewActorSystem()
	pid := system.Root.Spawn(actor.PropsFromProducer(func() actor.Actor {
		return NewBlogActor(metrics, nil)
	}))

	future := system.Root.RequestFuture(pid, &ListBlogsMsg{}, testTimeout)
	_, err := future.Result()
	require.NoError(t, err)

	_, ok := metrics.Snapshot()["list_blogs"]
	assert.True(t, ok, "listing records an operation latency like the other handlers")
}
