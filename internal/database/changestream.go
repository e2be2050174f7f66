// internal/database/changestream.go
package database

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"

	"inkgate/internal/models"
	"inkgate/internal/utils"
)

// BlogUpdateFunc receives the complete, freshly normalized post list after
// every server-side change. Full replace, never a diff.
type BlogUpdateFunc func(posts []*models.BlogPost)

// SubscriptionErrorFunc receives the failure that ended a subscription.
type SubscriptionErrorFunc func(err error)

// BlogSubscription is a handle on one live change-stream watch.
type BlogSubscription struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Unsubscribe releases the change stream. It is the only cancellation
// primitive; callbacks already in flight may still complete.
func (s *BlogSubscription) Unsubscribe() {
	s.cancel()
	<-s.done
}

// SubscribeBlogs opens a change stream on the blogs collection and invokes
// onUpdate with the full normalized list on every change, starting with one
// initial snapshot. There is no automatic retry: when the stream fails,
// onError fires exactly once and the subscription is dead. Reconnecting is
// the caller's decision, by subscribing again.
func (m *MongoDB) SubscribeBlogs(ctx context.Context, onUpdate BlogUpdateFunc, onError SubscriptionErrorFunc) (*BlogSubscription, error) {
	stream, err := m.Blogs.Watch(ctx, mongo.Pipeline{})
	if err != nil {
		return nil, utils.NewAppError(utils.ErrDatabase, "Failed to open blog change stream", err)
	}

	posts, err := m.GetAllBlogs(ctx)
	if err != nil {
		_ = stream.Close(ctx)
		return nil, err
	}
	onUpdate(posts)

	streamCtx, cancel := context.WithCancel(ctx)
	sub := &BlogSubscription{
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(sub.done)
		defer func() {
			_ = stream.Close(context.Background())
		}()

		for stream.Next(streamCtx) {
			// Any change to any document invalidates the whole listing;
			// re-read and push the full replace.
			posts, err := m.GetAllBlogs(streamCtx)
			if err != nil {
				if streamCtx.Err() == nil {
					onError(err)
				}
				return
			}
			onUpdate(posts)
		}

		if err := stream.Err(); err != nil && streamCtx.Err() == nil {
			onError(utils.NewAppError(utils.ErrDatabase, "Blog change stream failed", err))
		}
	}()

	return sub, nil
}
