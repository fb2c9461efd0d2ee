package archive

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/creativeprojects/mailstrip/lib"
	"github.com/creativeprojects/mailstrip/mailbox"
	"github.com/emersion/go-message"
	"github.com/emersion/go-message/mail"
)

// Reader delivers the messages of a local mail archive one at a time.
//
// The archive can be a maildir, a single message file, or a directory
// of message files in eml or Apple Mail emlx format. Messages are
// loaded lazily: a file that cannot be read only fails its own Next
// call.
type Reader struct {
	entries []loader
	index   int
	log     lib.Logger
}

type loader func() (*mailbox.Message, error)

func NewReader(path string, logger lib.Logger) (*Reader, error) {
	if logger == nil {
		logger = &lib.NoLog{}
	}
	reader := &Reader{log: logger}

	stat, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open archive %q: %w", path, err)
	}
	if !stat.IsDir() {
		reader.entries = append(reader.entries, reader.fileLoader(path))
		return reader, nil
	}

	if isMaildir(path) {
		err = reader.loadMaildir(path)
		if err != nil {
			return nil, err
		}
		return reader, nil
	}

	files := make([]string, 0)
	err = filepath.WalkDir(path, func(name string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		if isMessageFile(name) {
			files = append(files, name)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("cannot read archive %q: %w", path, err)
	}
	sort.Strings(files)
	for _, file := range files {
		reader.entries = append(reader.entries, reader.fileLoader(file))
	}
	logger.Printf("found %d message files in %q", len(files), path)
	return reader, nil
}

// Next returns the next message, or io.EOF after the last one.
func (r *Reader) Next() (*mailbox.Message, error) {
	if r.index >= len(r.entries) {
		return nil, io.EOF
	}
	load := r.entries[r.index]
	r.index++
	return load()
}

func (r *Reader) Close() error {
	r.entries = nil
	return nil
}

func isMessageFile(name string) bool {
	return strings.HasSuffix(name, ".eml") || strings.HasSuffix(name, ".emlx")
}

func isMaildir(path string) bool {
	for _, sub := range []string{"cur", "new", "tmp"} {
		stat, err := os.Stat(filepath.Join(path, sub))
		if err != nil || !stat.IsDir() {
			return false
		}
	}
	return true
}

func (r *Reader) fileLoader(path string) loader {
	return func() (*mailbox.Message, error) {
		message, err := readMessageFile(path)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", path, err)
		}
		r.log.Printf("loaded %q (%d bytes)", path, len(message.Body))
		return message, nil
	}
}

func readMessageFile(path string) (*mailbox.Message, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	switch {
	case strings.HasSuffix(path, ".partial.emlx"):
		data, err = decodePartialEmlx(path, data)
	case strings.HasSuffix(path, ".emlx"):
		data, _, err = decodeEmlx(data)
	case strings.HasSuffix(path, ".eml"):
		// already a raw message
	default:
		err = lib.ErrUnknownFormat
	}
	if err != nil {
		return nil, err
	}

	stat, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	return newArchivedMessage(data, filepath.Base(path), nil, stat.ModTime()), nil
}

// newArchivedMessage builds a message from raw bytes. The message
// identifier comes from the Message-Id header, with the file name (or
// maildir key) as a fallback, and the Date header takes precedence
// over the file modification time.
func newArchivedMessage(data []byte, fallbackID string, flags []string, modTime time.Time) *mailbox.Message {
	id := fallbackID
	date := modTime

	entity, err := message.Read(bytes.NewReader(data))
	if err == nil || message.IsUnknownCharset(err) || message.IsUnknownEncoding(err) {
		header := mail.Header{Header: entity.Header}
		if messageID, err := header.MessageID(); err == nil && messageID != "" {
			id = "<" + messageID + ">"
		}
		if headerDate, err := header.Date(); err == nil && !headerDate.IsZero() {
			date = headerDate
		}
	}

	return &mailbox.Message{
		MessageProperties: mailbox.MessageProperties{
			Flags:        flags,
			InternalDate: date,
			Size:         uint32(len(data)),
		},
		Uid:  mailbox.NewMessageIDFromString(id),
		Body: data,
	}
}
