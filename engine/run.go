package engine

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/creativeprojects/mailstrip/cache"
	"github.com/creativeprojects/mailstrip/lib"
	"github.com/creativeprojects/mailstrip/mailbox"
	"github.com/creativeprojects/mailstrip/mimetree"
)

// Run applies the attachment policy to every message of the selected
// folders. Messages recorded in the processed cache are skipped.
//
// An error on a single message is recorded in the report and the run
// carries on with the next message. Only errors from the content store
// or from the folder itself abort the run.
func (e *Engine) Run(ctx context.Context) (*Report, error) {
	report := &Report{}

	folders, err := e.selectFolders()
	if err != nil {
		return report, err
	}

	for _, folder := range folders {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Folders++
		err = e.processFolder(ctx, folder, report)
		if err != nil {
			return report, fmt.Errorf("folder %q: %w", folder, err)
		}
	}
	return report, nil
}

func (e *Engine) selectFolders() ([]string, error) {
	if !e.options.AllFolders {
		return e.options.Folders, nil
	}
	all, err := e.transport.ListFolders()
	if err != nil {
		return nil, err
	}
	folders := make([]string, 0, len(all))
	for _, info := range all {
		if ignoredFolder(info.Name) {
			e.log.Printf("ignoring folder %q", info.Name)
			continue
		}
		folders = append(folders, info.Name)
	}
	return folders, nil
}

func (e *Engine) processFolder(ctx context.Context, folder string, report *Report) error {
	// select read-only when we won't touch the messages
	readOnly := e.options.ReadOnly || !e.options.Detach
	status, err := e.transport.SelectFolder(folder, readOnly)
	if err != nil {
		return err
	}
	// uids are only unique within one generation of the folder
	cacheFolder := fmt.Sprintf("%s:%d", folder, status.UidValidity)

	uids, err := e.transport.SearchAll()
	if err != nil {
		return err
	}

	deleted := 0
	for index, uid := range uids {
		if err := ctx.Err(); err != nil {
			return err
		}
		if e.options.Progress != nil {
			e.options.Progress(folder, index+1, len(uids))
		}
		report.Messages++

		id := strconv.FormatUint(uint64(uid), 10)
		if entry, found := e.cache.Get(cacheFolder, id); found {
			e.log.Printf("skipping uid %d, already processed: %q", uid, entry.Subject)
			report.Skipped++
			continue
		}

		removed, err := e.processMessage(cacheFolder, folder, uid, report)
		if err != nil {
			storageErr := &StorageError{}
			if errors.As(err, &storageErr) {
				return err
			}
			e.log.Printf("uid %d: %s", uid, err)
			report.addError(fmt.Errorf("folder %q uid %d: %w", folder, uid, err))
			continue
		}
		if removed {
			deleted++
		}
	}

	if deleted > 0 {
		e.log.Printf("expunging %d replaced messages from %q", deleted, folder)
		err = e.transport.Expunge()
		if err != nil {
			return fmt.Errorf("cannot expunge folder: %w", err)
		}
	}
	return nil
}

// processMessage fetches one message, downloads and/or strips its
// attachments, and replaces it on the server when it was rewritten. It
// returns true when the original message was marked for deletion.
func (e *Engine) processMessage(cacheFolder, folder string, uid uint32, report *Report) (bool, error) {
	message, err := e.transport.Fetch(uid)
	if err != nil {
		return false, err
	}

	tree, err := mimetree.Classify(message.Body)
	if err != nil {
		return false, fmt.Errorf("cannot parse message: %w", err)
	}
	subject := lib.ShortenSubject(tree.Subject())

	stripper := mimetree.NewStripper(e.policy(), e.saver, e.log)
	rewritten, records, changed, err := stripper.Strip(tree, message.InternalDate)
	if err != nil {
		// a content store failure is not recoverable, abort the run
		// before it repeats on every message
		return false, &StorageError{Err: err}
	}
	for _, record := range records {
		if record.StoredPath != "" {
			e.log.Printf("saved %q (%d bytes) to %q", record.Filename, record.Size, record.StoredPath)
			report.Downloaded++
		}
	}

	if e.options.ReadOnly {
		if changed {
			e.log.Printf("dry-run: would replace message %q", subject)
		}
		return false, nil
	}

	if !changed {
		if e.options.Detach || e.options.CacheDownloads {
			err = e.cache.MarkProcessed(cacheFolder, strconv.FormatUint(uint64(uid), 10), cache.Entry{
				Subject:     subject,
				Date:        message.InternalDate,
				Fingerprint: lib.ContentKey(message.Body),
			})
			if err != nil {
				return false, err
			}
		}
		return false, nil
	}

	// the replacement is verified through the UID reported by UIDPLUS,
	// or failing that through its Message-Id header. Servers are allowed
	// to omit the UID, so a message without Message-Id can never be
	// safely rewritten.
	if tree.MessageID() == "" {
		return false, fmt.Errorf("%w: no Message-Id header to verify the replacement", lib.ErrAppendNotVerified)
	}

	newBody, err := mimetree.Serialize(rewritten)
	if err != nil {
		return false, fmt.Errorf("cannot rebuild message: %w", err)
	}

	newID, err := e.transport.Append(folder, message.MessageProperties, newBody)
	if err != nil {
		return false, err
	}
	err = e.verifyAppend(newID, tree.MessageID())
	if err != nil {
		// the original message stays untouched
		return false, err
	}
	e.log.Printf("replaced message %q: %d -> %d bytes", subject, len(message.Body), len(newBody))
	report.Rewritten++

	err = e.transport.AddDeletedFlag(uid)
	if err != nil {
		return false, fmt.Errorf("replacement saved but cannot delete original: %w", err)
	}

	if newID.IsUint() {
		err = e.cache.MarkProcessed(cacheFolder, newID.String(), cache.Entry{
			Subject:     subject,
			Date:        message.InternalDate,
			Fingerprint: lib.ContentKey(newBody),
		})
		if err != nil {
			return true, err
		}
	}
	return true, nil
}

// verifyAppend makes sure the replacement really made it to the server
// before the original gets deleted.
func (e *Engine) verifyAppend(newID mailbox.MessageID, messageID string) error {
	if newID.IsUint() {
		// the server confirmed the new message through UIDPLUS
		return nil
	}
	if e.transport.SupportMessageID() {
		e.log.Printf("server did not report the UID of the new message")
	}
	found, err := e.transport.SearchHeader("Message-Id", messageID)
	if err != nil {
		return fmt.Errorf("%w: %s", lib.ErrAppendNotVerified, err)
	}
	// original and replacement share the same Message-Id until expunge
	if len(found) < 2 {
		return fmt.Errorf("%w: replacement not found on server", lib.ErrAppendNotVerified)
	}
	return nil
}

// StorageError aborts a run: when the content store fails once it will
// fail for every message after it.
type StorageError struct {
	Err error
}

func (s *StorageError) Error() string {
	return fmt.Sprintf("content store: %s", s.Err)
}

func (s *StorageError) Unwrap() error {
	return s.Err
}
