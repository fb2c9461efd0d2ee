package mailbox

// Status of a selected folder.
type Status struct {
	// The folder name.
	Name string

	// The folder flags.
	Flags []string

	// The number of messages in this folder.
	Messages uint32
	// The number of unread messages.
	Unseen uint32
	// Together with a UID, it is a unique identifier for a message.
	// Must be greater than or equal to 1.
	UidValidity uint32
}
