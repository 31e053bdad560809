package repo

import "context"

// MessageRepo is the outbound messaging interface
// Implemented per transport (Twilio SMS, Feishu IM)
type MessageRepo interface {
	// SendText sends a text message to the sender identified by to
	SendText(ctx context.Context, to, text string) error
}
