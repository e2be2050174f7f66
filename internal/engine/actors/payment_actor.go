package actors

import (
	"context"
	"log/slog"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/google/uuid"

	"inkgate/internal/database"
	"inkgate/internal/models"
	"inkgate/internal/utils"
)

// RecordPaymentMsg is the single entry point for the external payment
// widget's success callback. By the time it arrives, the provider has
// already confirmed the payment; amount and currency are recorded as
// reported, not verified.
type RecordPaymentMsg struct {
	PostID   string
	ViewerID string
	Amount   int64
	Currency string
}

// PaymentResult is the response to a successfully finalized payment.
type PaymentResult struct {
	Receipt *models.PaymentReceipt
	Post    *models.BlogPost
}

// PaymentActor records payment receipts and requests the access grant from
// the BlogActor, which owns post state.
type PaymentActor struct {
	metrics      *utils.MetricsCollector
	db           *database.MongoDB
	blogActor    *actor.PID
	grantTimeout time.Duration
}

// NewPaymentActor creates a new PaymentActor instance. db may be nil for
// in-memory operation.
func NewPaymentActor(metrics *utils.MetricsCollector, db *database.MongoDB, blogActor *actor.PID) actor.Actor {
	return &PaymentActor{
		metrics:      metrics,
		db:           db,
		blogActor:    blogActor,
		grantTimeout: 5 * time.Second,
	}
}

// Receive handles incoming messages
func (a *PaymentActor) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		slog.Info("PaymentActor started")
	case *actor.Stopping:
		slog.Info("PaymentActor stopping")
	case *RecordPaymentMsg:
		a.handleRecordPayment(ctx, msg)
	}
}

func (a *PaymentActor) handleRecordPayment(ctx actor.Context, msg *RecordPaymentMsg) {
	startTime := time.Now()

	if msg.ViewerID == "" {
		ctx.Respond(utils.NewUnauthorizedError("payment completion requires a viewer identity"))
		return
	}
	if msg.PostID == "" {
		ctx.Respond(utils.NewAppError(utils.ErrInvalidInput, "Post id is required", nil))
		return
	}

	receipt := &models.PaymentReceipt{
		ID:        uuid.NewString(),
		PostID:    msg.PostID,
		ViewerID:  msg.ViewerID,
		Amount:    msg.Amount,
		Currency:  msg.Currency,
		CreatedAt: time.Now().UTC(),
	}

	if a.db != nil {
		storeCtx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()

		// The receipt goes in first. If anything after this point fails, the
		// viewer has a paper trail and the completion call can be replayed.
		if err := a.db.SavePaymentReceipt(storeCtx, receipt); err != nil {
			ctx.Respond(utils.NewPaymentNotFinalizedError(msg.PostID, err))
			return
		}
	}

	future := ctx.RequestFuture(a.blogActor, &AddPaidUserMsg{
		PostID:   msg.PostID,
		ViewerID: msg.ViewerID,
	}, a.grantTimeout)

	result, err := future.Result()
	if err != nil {
		ctx.Respond(utils.NewPaymentNotFinalizedError(msg.PostID, err))
		return
	}

	if appErr, ok := result.(*utils.AppError); ok {
		if appErr.Code == utils.ErrNotFound {
			// The paid-for post does not exist; nothing to finalize.
			ctx.Respond(appErr)
			return
		}
		slog.Error("payment confirmed but access grant failed",
			"post", msg.PostID, "viewer", msg.ViewerID, "error", appErr)
		ctx.Respond(utils.NewPaymentNotFinalizedError(msg.PostID, appErr))
		return
	}

	post, _ := result.(*models.BlogPost)

	a.metrics.AddOperationLatency("record_payment", time.Since(startTime))
	ctx.Respond(&PaymentResult{Receipt: receipt, Post: post})
}
