package mailbox

// Info identifies a folder on the mail store.
type Info struct {
	// The server's path separator.
	Delimiter string
	// The folder name.
	Name string
}
