package mimetree

import (
	"fmt"
	"time"

	"github.com/creativeprojects/mailstrip/lib"
	"github.com/emersion/go-message"
)

// Saver is where extracted attachment bytes are sent. Implemented by
// content.Store.
type Saver interface {
	Save(filename string, data []byte, modTime time.Time) (string, error)
}

// Op is the comparison applied to the part size against the threshold.
type Op int

const (
	// Above strips parts larger than the bound (reclaims space).
	Above Op = iota
	// Below strips parts smaller than the bound.
	Below
)

// Threshold is the size rule a leaf has to cross to qualify.
type Threshold struct {
	Op    Op
	Bytes int64
}

func (t Threshold) Match(size int64) bool {
	if t.Op == Below {
		return size < t.Bytes
	}
	return size > t.Bytes
}

// Policy tells the stripper what to do with qualifying attachments.
type Policy struct {
	Threshold Threshold
	// Download saves qualifying attachments to the store.
	Download bool
	// Detach replaces qualifying attachments with a placeholder in the
	// rewritten tree. With Detach false the tree is returned unmodified.
	Detach bool
}

// Attachment describes one attachment qualifying under the policy.
type Attachment struct {
	// Filename as declared by the message (decoded).
	Filename string
	// StoredPath is the final path on disk after collision resolution,
	// empty when downloading was disabled.
	StoredPath string
	// Size of the decoded payload in bytes.
	Size int64
	// Key is the content fingerprint of the payload.
	Key []byte
	// Media family tag (image, text, application...), only for reporting.
	Media string
}

const placeholderText = `
===========================================================
This message contained an attachment that was stripped out.
The attachment was stored using the file name: %q.
The original file name was: %q.
The original size was: %d KB.
The original type was: %s.
===========================================================
`

// Stripper produces rewritten trees with qualifying attachments removed.
type Stripper struct {
	policy Policy
	saver  Saver
	log    lib.Logger
}

func NewStripper(policy Policy, saver Saver, logger lib.Logger) *Stripper {
	if logger == nil {
		logger = &lib.NoLog{}
	}
	return &Stripper{
		policy: policy,
		saver:  saver,
		log:    logger,
	}
}

// Strip walks the tree depth-first in pre-order and extracts every
// qualifying attachment leaf. It returns a new tree, leaving the input
// untouched: when nothing qualified the returned tree is the input and
// changed is false.
//
// Unknown leaves are carried through verbatim, whatever their size.
func (s *Stripper) Strip(root *Part, date time.Time) (rewritten *Part, records []Attachment, changed bool, err error) {
	records = make([]Attachment, 0)
	rewritten, err = s.strip(root, date, &records, &changed)
	if err != nil {
		return nil, nil, false, err
	}
	return rewritten, records, changed, nil
}

func (s *Stripper) strip(part *Part, date time.Time, records *[]Attachment, changed *bool) (*Part, error) {
	s.log.Printf("part: %d KB / %d KB (type: %s, kind: %s)",
		part.Size/1024, s.policy.Threshold.Bytes/1024, part.ContentType(), part.Kind)

	if part.Kind == KindContainer {
		children := make([]*Part, 0, len(part.Children))
		for _, child := range part.Children {
			rewritten, err := s.strip(child, date, records, changed)
			if err != nil {
				return nil, err
			}
			children = append(children, rewritten)
		}
		return &Part{
			Header:   part.Header,
			Kind:     KindContainer,
			Children: children,
		}, nil
	}

	if part.Kind != KindAttachment || !s.policy.Threshold.Match(part.Size) {
		return part, nil
	}
	if part.Filename == "" {
		s.log.Printf("skipping unnamed attachment (%s)", part.ContentType())
		return part, nil
	}

	record := Attachment{
		Filename: part.Filename,
		Size:     part.Size,
		Key:      lib.ContentKey(part.Body),
		Media:    part.MediaFamily(),
	}
	if s.policy.Download {
		path, err := s.saver.Save(part.Filename, part.Body, date)
		if err != nil {
			return nil, fmt.Errorf("cannot save attachment %q: %w", part.Filename, err)
		}
		record.StoredPath = path
	} else {
		s.log.Printf("download skipped (disabled): %q", part.Filename)
	}
	*records = append(*records, record)

	if !s.policy.Detach {
		s.log.Print("detaching skipped (disabled)")
		return part, nil
	}

	s.log.Printf("detaching %q (saved as %q)", part.Filename, record.StoredPath)
	*changed = true
	return s.placeholder(part, record), nil
}

// placeholder builds the small text leaf replacing a detached
// attachment. An attachment originally displayed as a file keeps an
// attachment disposition under a "removed-" name, everything else
// becomes inline text so mail clients show the note in the body.
func (s *Stripper) placeholder(part *Part, record Attachment) *Part {
	note := fmt.Sprintf(placeholderText,
		record.StoredPath, record.Filename, record.Size/1024, part.ContentType())

	var header message.Header
	header.SetContentType("text/plain", map[string]string{"charset": "utf-8"})

	disposition, _, _ := part.Header.ContentDisposition()
	if disposition == "attachment" {
		header.SetContentDisposition("inline", nil)
	} else {
		removed := "removed-" + record.Filename + ".txt"
		header.SetContentDisposition("attachment", map[string]string{"filename": removed})
		header.Set("Content-Description", removed)
	}

	return &Part{
		Header: header,
		Kind:   KindText,
		Size:   int64(len(note)),
		Body:   []byte(note),
	}
}
