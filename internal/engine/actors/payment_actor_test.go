package actors

import (
	"testing"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inkgate/internal/access"
	"inkgate/internal/utils"
)

func spawnEngineActors(t *testing.T) (*actor.ActorSystem, *actor.PID, *actor.PID) {
	t.Helper()
	system := actor.NewActorSystem()
	metrics := utils.NewMetricsCollector()

	blogPID := system.Root.Spawn(actor.PropsFromProducer(func() actor.Actor {
		return NewBlogActor(metrics, nil)
	}))
	paymentPID := system.Root.Spawn(actor.PropsFromProducer(func() actor.Actor {
		return NewPaymentActor(metrics, nil, blogPID)
	}))
	return system, blogPID, paymentPID
}

func TestRecordPaymentGrantsAccess(t *testing.T) {
	system, blogPID, paymentPID := spawnEngineActors(t)
	post := createPost(t, system, blogPID, "Premium strategy guide")

	assert.False(t, access.CanViewFullContent(post, "u2"))

	future := system.Root.RequestFuture(paymentPID, &RecordPaymentMsg{
		PostID:   post.ID,
		ViewerID: "u2",
		Amount:   499,
		Currency: "USD",
	}, testTimeout)

	result, err := future.Result()
	require.NoError(t, err)

	paid, ok := result.(*PaymentResult)
	require.True(t, ok, "expected a payment result, got %T: %v", result, result)

	assert.Equal(t, post.ID, paid.Receipt.PostID)
	assert.Equal(t, "u2", paid.Receipt.ViewerID)
	assert.Equal(t, int64(499), paid.Receipt.Amount)
	require.NotNil(t, paid.Post)
	assert.True(t, access.CanViewFullContent(paid.Post, "u2"))
	assert.False(t, access.CanViewFullContent(paid.Post, "u5"))
}

func TestRecordPaymentReplayIsHarmless(t *testing.T) {
	system, blogPID, paymentPID := spawnEngineActors(t)
	post := createPost(t, system, blogPID, "Premium")

	pay := func() *PaymentResult {
		future := system.Root.RequestFuture(paymentPID, &RecordPaymentMsg{
			PostID:   post.ID,
			ViewerID: "u2",
			Amount:   499,
			Currency: "USD",
		}, testTimeout)
		result, err := future.Result()
		require.NoError(t, err)
		paid, ok := result.(*PaymentResult)
		require.True(t, ok, "unexpected response %T: %v", result, result)
		return paid
	}

	first := pay()
	second := pay()
	assert.Equal(t, first.Post.PaidUsers, second.Post.PaidUsers, "replaying the completion call must not duplicate the grant")
}

func TestRecordPaymentRequiresViewer(t *testing.T) {
	system, _, paymentPID := spawnEngineActors(t)

	future := system.Root.RequestFuture(paymentPID, &RecordPaymentMsg{
		PostID: "a1",
	}, testTimeout)
	result, err := future.Result()
	require.NoError(t, err)

	appErr, ok := result.(*utils.AppError)
	require.True(t, ok)
	assert.Equal(t, utils.ErrUnauthorized, appErr.Code)
}

func TestRecordPaymentUnknownPost(t *testing.T) {
	system, _, paymentPID := spawnEngineActors(t)

	future := system.Root.RequestFuture(paymentPID, &RecordPaymentMsg{
		PostID:   "missing",
		ViewerID: "u2",
		Amount:   499,
		Currency: "USD",
	}, testTimeout)
	result, err := future.Result()
	require.NoError(t, err)

	appErr, ok := result.(*utils.AppError)
	require.True(t, ok)
	assert.Equal(t, utils.ErrNotFound, appErr.Code)
}
