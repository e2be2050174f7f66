package engine

import (
	"github.com/asynkron/protoactor-go/actor"

	"inkgate/internal/database"
	"inkgate/internal/engine/actors"
	"inkgate/internal/utils"
)

// Engine coordinates communication between actors
type Engine struct {
	blogActor    *actor.PID
	paymentActor *actor.PID
}

func NewEngine(system *actor.ActorSystem, metrics *utils.MetricsCollector, db *database.MongoDB) *Engine {
	context := system.Root

	// Spawn blog actor
	blogProps := actor.PropsFromProducer(func() actor.Actor {
		return actors.NewBlogActor(metrics, db)
	})
	blogPID := context.Spawn(blogProps)

	// Spawn payment actor; it grants access through the blog actor.
	paymentProps := actor.PropsFromProducer(func() actor.Actor {
		return actors.NewPaymentActor(metrics, db, blogPID)
	})
	paymentPID := context.Spawn(paymentProps)

	return &Engine{
		blogActor:    blogPID,
		paymentActor: paymentPID,
	}
}

// GetBlogActor returns the PID of the blog actor
func (e *Engine) GetBlogActor() *actor.PID {
	return e.blogActor
}

// GetPaymentActor returns the PID of the payment actor
func (e *Engine) GetPaymentActor() *actor.PID {
	return e.paymentActor
}
