package lib

import "errors"

var (
	ErrFolderNotFound    = errors.New("folder not found")
	ErrNotSelected       = errors.New("no folder selected")
	ErrMessageNotFound   = errors.New("message not found")
	ErrAppendNotVerified = errors.New("append reported success but could not be verified")
	ErrUnknownFormat     = errors.New("unknown message file format")
)
