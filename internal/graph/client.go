package graph

import "context"

// Client is the narrow mail-API surface required by the controller.
type Client interface {
	ListUnread(ctx context.Context) ([]Message, error)
	MarkRead(ctx context.Context, id MessageID) error
}

// TokenSource supplies a bearer token for authenticated calls.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}
