package client

import (
	"context"
	"time"
)

// DefaultTimeout bounds a model call when the caller's context has no deadline.
// CPU-only vision models can take minutes per image.
const DefaultTimeout = 300 * time.Second

// VisionClient sends a prompt plus one base64 image to a vision model and
// returns the model's raw text reply
type VisionClient interface {
	Query(ctx context.Context, model, prompt, imgB64 string) (string, error)
}

// WithDefaultTimeout applies DefaultTimeout unless ctx already has a deadline
func WithDefaultTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, DefaultTimeout)
}
