// Package revalidate signals front-end renderers that a cached page is stale.
package revalidate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/M-STRONG/Evently-app/pkg/events"
	"github.com/M-STRONG/Evently-app/pkg/pubsub"
)

// Publisher appends an event to a stream; *events.Publisher satisfies it.
type Publisher interface {
	Publish(ctx context.Context, stream, eventType string, data any) error
}

// StreamRevalidator writes a PathRevalidated event for each request.
type StreamRevalidator struct {
	pub Publisher
	now func() time.Time
}

// NewStreamRevalidator publishes revalidation requests on pubsub.TopicSiteRevalidate.
func NewStreamRevalidator(pub Publisher) *StreamRevalidator {
	return &StreamRevalidator{pub: pub, now: time.Now}
}

// Revalidate requests that cached output for path be rebuilt. path must be absolute.
func (r *StreamRevalidator) Revalidate(ctx context.Context, path string) error {
	if !strings.HasPrefix(path, "/") {
		return fmt.Errorf("revalidate: path %q must start with /", path)
	}
	return r.pub.Publish(ctx, pubsub.TopicSiteRevalidate, events.TypePathRevalidated, events.PathRevalidated{
		Path:        path,
		RequestedAt: r.now().UTC(),
	})
}

// Noop discards revalidation requests.
type Noop struct{}

// Revalidate implements user.Revalidator.
func (Noop) Revalidate(context.Context, string) error { return nil }
