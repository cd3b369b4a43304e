package reel

import "context"

type frameKey struct{}

type frameInfo struct {
	name  string
	index int
}

// WithFrame tags ctx with the frame being sent.
func WithFrame(ctx context.Context, name string, index int) context.Context {
	return context.WithValue(ctx, frameKey{}, frameInfo{name: name, index: index})
}

// FrameFromContext returns the frame a Send call belongs to. Senders use it
// for logging; scripted senders use it to pick a canned response.
func FrameFromContext(ctx context.Context) (name string, index int, ok bool) {
	fi, ok := ctx.Value(frameKey{}).(frameInfo)
	return fi.name, fi.index, ok
}
