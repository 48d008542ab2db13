package application

// EventKind discriminates the inbound event union.
type EventKind int

const (
	EventCommand EventKind = iota
	EventCallback
	EventText
	EventPhoto
	EventDocument
)

// InboundEvent is one normalized update from the chat transport. Exactly the
// fields for its Kind are set; the rest stay zero.
type InboundEvent struct {
	Kind   EventKind
	UserID int64
	ChatID int64

	// EventCommand
	Command string // lower case, no leading slash
	Args    string // raw remainder after the command, trimmed

	// EventCallback
	Callback string

	// EventText
	Text string

	// EventPhoto / EventDocument. For photos the transport picks the largest
	// size variant before building the event.
	FileID   string
	MIMEType string
}
