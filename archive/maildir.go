package archive

import (
	"fmt"
	"io"
	"os"

	"github.com/creativeprojects/mailstrip/mailbox"
	"github.com/emersion/go-imap"
	"github.com/emersion/go-maildir"
)

func (r *Reader) loadMaildir(path string) error {
	mbox := maildir.Dir(path)
	messages, err := mbox.Messages()
	if err != nil {
		return fmt.Errorf("cannot read maildir %q: %w", path, err)
	}
	r.log.Printf("found %d messages in maildir %q", len(messages), path)
	for _, msg := range messages {
		r.entries = append(r.entries, r.maildirLoader(msg))
	}
	return nil
}

func (r *Reader) maildirLoader(msg *maildir.Message) loader {
	return func() (*mailbox.Message, error) {
		file, err := msg.Open()
		if err != nil {
			return nil, fmt.Errorf("cannot open maildir key %q: %w", msg.Key(), err)
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			return nil, fmt.Errorf("cannot read maildir key %q: %w", msg.Key(), err)
		}
		stat, err := os.Stat(msg.Filename())
		if err != nil {
			return nil, err
		}
		return newArchivedMessage(data, msg.Key(), fromFlags(msg.Flags()), stat.ModTime()), nil
	}
}

func fromFlags(source []maildir.Flag) []string {
	flags := make([]string, 0, len(source))
	for _, sourceFlag := range source {
		switch sourceFlag {
		case maildir.FlagSeen:
			flags = append(flags, imap.SeenFlag)

		case maildir.FlagReplied:
			flags = append(flags, imap.AnsweredFlag)

		case maildir.FlagFlagged:
			flags = append(flags, imap.FlaggedFlag)

		case maildir.FlagTrashed:
			flags = append(flags, imap.DeletedFlag)

		case maildir.FlagDraft:
			flags = append(flags, imap.DraftFlag)
		}
	}
	return flags
}
