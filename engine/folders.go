package engine

import "strings"

// system folders never worth scanning for attachments
var ignoredFolderPrefixes = []string{
	"Contacts",
	"Calendar",
	"Trash",
	"Deleted",
	"Tasks",
	"[Gmail]",
}

func ignoredFolder(name string) bool {
	for _, prefix := range ignoredFolderPrefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}
