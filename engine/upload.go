package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/creativeprojects/mailstrip/cache"
	"github.com/creativeprojects/mailstrip/lib"
	"github.com/creativeprojects/mailstrip/mailbox"
	"github.com/creativeprojects/mailstrip/mimetree"
)

// MessageSource delivers archived messages one at a time, Next returns
// io.EOF after the last one. *archive.Reader is the production
// implementation.
type MessageSource interface {
	Next() (*mailbox.Message, error)
	Close() error
}

// Upload moves messages from a local archive back into a folder on the
// server. A message already on the server (same Message-Id header) is
// not uploaded twice, and the processed cache remembers uploaded
// messages across runs.
func (e *Engine) Upload(ctx context.Context, source MessageSource, folder string) (*Report, error) {
	report := &Report{Folders: 1}

	_, err := e.transport.SelectFolder(folder, e.options.ReadOnly)
	if err != nil {
		return report, err
	}
	cacheFolder := "upload:" + folder

	for {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		message, err := source.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			report.addError(err)
			continue
		}
		report.Messages++

		err = e.uploadMessage(cacheFolder, folder, message, report)
		if err != nil {
			storageErr := &StorageError{}
			if errors.As(err, &storageErr) {
				return report, err
			}
			e.log.Printf("upload %q: %s", message.Uid, err)
			report.addError(fmt.Errorf("message %q: %w", message.Uid, err))
		}
	}
	return report, nil
}

func (e *Engine) uploadMessage(cacheFolder, folder string, message *mailbox.Message, report *Report) error {
	id := message.Uid.String()
	if entry, found := e.cache.Get(cacheFolder, id); found {
		e.log.Printf("skipping %q, already uploaded: %q", id, entry.Subject)
		report.Skipped++
		return nil
	}

	tree, err := mimetree.Classify(message.Body)
	if err != nil {
		return fmt.Errorf("cannot parse message: %w", err)
	}
	subject := lib.ShortenSubject(tree.Subject())

	// archived messages go through the same attachment policy before
	// they reach the server
	body := message.Body
	if e.options.Detach || e.options.Download {
		stripper := mimetree.NewStripper(e.policy(), e.saver, e.log)
		rewritten, records, changed, err := stripper.Strip(tree, message.InternalDate)
		if err != nil {
			return &StorageError{Err: err}
		}
		for _, record := range records {
			if record.StoredPath != "" {
				e.log.Printf("saved %q (%d bytes) to %q", record.Filename, record.Size, record.StoredPath)
				report.Downloaded++
			}
		}
		if changed {
			body, err = mimetree.Serialize(rewritten)
			if err != nil {
				return fmt.Errorf("cannot rebuild message: %w", err)
			}
		}
	}

	// a message carrying a Message-Id may already be on the server
	messageID := tree.MessageID()
	if messageID != "" {
		found, err := e.transport.SearchHeader("Message-Id", messageID)
		if err != nil {
			return fmt.Errorf("cannot search for duplicates: %w", err)
		}
		if len(found) > 0 {
			e.log.Printf("%q is already on the server, not uploading", subject)
			report.Duplicates++
			if e.options.ReadOnly {
				return nil
			}
			return e.markUploaded(cacheFolder, id, subject, message.InternalDate, body)
		}
	}

	if e.options.ReadOnly {
		e.log.Printf("dry-run: would upload %q to %q", subject, folder)
		return nil
	}

	props := message.MessageProperties
	props.Size = uint32(len(body))
	_, err = e.transport.Append(folder, props, body)
	if err != nil {
		return err
	}
	e.log.Printf("uploaded %q (%d bytes) to %q", subject, len(body), folder)
	report.Uploaded++

	return e.markUploaded(cacheFolder, id, subject, message.InternalDate, body)
}

func (e *Engine) markUploaded(cacheFolder, id, subject string, date time.Time, body []byte) error {
	return e.cache.MarkProcessed(cacheFolder, id, cache.Entry{
		Subject:     subject,
		Date:        date,
		Fingerprint: lib.ContentKey(body),
	})
}
