package application

import "context"

type inboundOriginKey struct{}

type commentFollowsKey struct{}

// WithInboundOrigin marks mutations applied from an inbound event. Marked
// mutations are never published back to the broker.
func WithInboundOrigin(ctx context.Context) context.Context {
	return context.WithValue(ctx, inboundOriginKey{}, true)
}

func IsInboundOrigin(ctx context.Context) bool {
	v, _ := ctx.Value(inboundOriginKey{}).(bool)
	return v
}

// withCommentToFollow declares that the issue created under ctx will be
// followed by a companion comment, so its creation event is deferred.
func withCommentToFollow(ctx context.Context) context.Context {
	return context.WithValue(ctx, commentFollowsKey{}, true)
}

func commentFollows(ctx context.Context) bool {
	v, _ := ctx.Value(commentFollowsKey{}).(bool)
	return v
}
