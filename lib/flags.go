package lib

import "github.com/emersion/go-imap"

// StripRecentFlag removes the \Recent flag from a set of message flags:
// it is a read-only attribute and IMAP servers reject it on APPEND.
func StripRecentFlag(source []string) []string {
	output := make([]string, 0, len(source))
	for _, flag := range source {
		if flag == imap.RecentFlag {
			continue
		}
		output = append(output, flag)
	}
	return output
}
