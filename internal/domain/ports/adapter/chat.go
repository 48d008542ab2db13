package adapter

import "context"

// Button is one inline control. URL buttons open a link; Data buttons send
// the payload back as a callback.
type Button struct {
	Text string
	Data string
	URL  string
}

// ChatBotAdapter is the outbound send capability of the host chat framework.
// Photo/document variants attach a stored asset by its local path so admin
// notifications can carry the evidence inline.
type ChatBotAdapter interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
	SendButtons(ctx context.Context, chatID int64, text string, rows [][]Button) error
	SendPhoto(ctx context.Context, chatID int64, assetPath, caption string, rows [][]Button) error
	SendDocument(ctx context.Context, chatID int64, assetPath, caption string, rows [][]Button) error
}
