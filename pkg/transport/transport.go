// Package transport declares the narrow contracts the relay consumes
// from the hosting chat transport. The transport itself (message
// delivery, typing indicators, rich-text rendering) lives outside this
// repo; the relay only ever calls through these interfaces.
package transport

import (
	"context"
	"time"
)

// Target identifies where a reply goes: the room, and the message the
// reply may be threaded under.
type Target struct {
	RoomID    string
	MessageID string
}

// Messenger delivers text and ephemeral hints into a room.
//
// SendText renders lightweight markup to the room's native format and
// optionally threads the message as a reply; that rendering is the
// transport's concern. SignalComposing, ClearComposing and MarkRead are
// best-effort hints: the relay logs their errors and moves on.
type Messenger interface {
	SendText(ctx context.Context, target Target, body string, asReply bool) error
	SignalComposing(ctx context.Context, target Target, timeout time.Duration) error
	ClearComposing(ctx context.Context, target Target) error
	MarkRead(ctx context.Context, target Target) error

	// DisplayName returns the bot account's current display name, used
	// for the persona gate.
	DisplayName(ctx context.Context) (string, error)
}
