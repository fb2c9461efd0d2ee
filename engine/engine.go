package engine

import (
	"github.com/creativeprojects/mailstrip/cache"
	"github.com/creativeprojects/mailstrip/lib"
	"github.com/creativeprojects/mailstrip/mailbox"
	"github.com/creativeprojects/mailstrip/mimetree"
)

// Transport is the mail store the engine works on. *remote.Imap is the
// production implementation.
type Transport interface {
	// SupportMessageID indicates Append reports the UID of new messages
	SupportMessageID() bool
	ListFolders() ([]mailbox.Info, error)
	SelectFolder(name string, readOnly bool) (*mailbox.Status, error)
	SearchAll() ([]uint32, error)
	SearchHeader(field, value string) ([]uint32, error)
	Fetch(uid uint32) (*mailbox.Message, error)
	Append(folder string, props mailbox.MessageProperties, body []byte) (mailbox.MessageID, error)
	AddDeletedFlag(uid uint32) error
	Expunge() error
}

type Options struct {
	// Folders to work on, ignored when AllFolders is set
	Folders []string
	// AllFolders processes every folder of the account, minus the
	// well-known system folders
	AllFolders bool
	// Threshold selects which attachments qualify
	Threshold mimetree.Threshold
	// Download saves qualifying attachments to the content store
	Download bool
	// Detach replaces qualifying attachments with a placeholder and
	// rewrites the message on the server
	Detach bool
	// ReadOnly prevents any change on the server, messages are still
	// fetched and attachments still downloaded
	ReadOnly bool
	// CacheDownloads also records messages as processed when running
	// in download-only mode
	CacheDownloads bool
	// Progress is called before each message is processed, it can be
	// nil
	Progress func(folder string, current, total int)
}

// Engine walks mail folders and applies the attachment policy to every
// message, exactly once per message thanks to the processed cache.
type Engine struct {
	transport Transport
	cache     *cache.Cache
	saver     mimetree.Saver
	options   Options
	log       lib.Logger
}

func New(transport Transport, processed *cache.Cache, saver mimetree.Saver, options Options, logger lib.Logger) *Engine {
	if logger == nil {
		logger = &lib.NoLog{}
	}
	return &Engine{
		transport: transport,
		cache:     processed,
		saver:     saver,
		options:   options,
		log:       logger,
	}
}

func (e *Engine) policy() mimetree.Policy {
	return mimetree.Policy{
		Threshold: e.options.Threshold,
		Download:  e.options.Download,
		Detach:    e.options.Detach,
	}
}
