package application

import "context"

// Facade is the surface the chat transport drives. The transport normalizes
// raw updates into InboundEvents and hands them off; replies travel back over
// the chat adapter the facade was built with.
type Facade interface {
	Dispatch(ctx context.Context, ev InboundEvent)
	// HandleCancel is exposed separately so the transport can wire it to a
	// dedicated cancel button as well as the /cancel command.
	HandleCancel(ctx context.Context, userID, chatID int64) error
}
