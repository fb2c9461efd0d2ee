package mailbox

import "time"

// MessageProperties travel with a message body when it moves between
// the server and the engine: they are needed to recreate the message
// exactly as it was (minus the stripped parts).
type MessageProperties struct {
	// The message flags.
	Flags []string
	// The date the message was received by the server.
	InternalDate time.Time
	// The message size.
	Size uint32
}

// Message is a transient in-memory copy of one mail item. The engine
// discards it as soon as the message has been processed.
type Message struct {
	MessageProperties
	// The server-assigned unique identifier, stable within a folder.
	Uid MessageID
	// The raw message content in RFC 822 serialization.
	Body []byte
}
