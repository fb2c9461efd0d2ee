package mimetree

import (
	"strings"

	"github.com/emersion/go-message"
)

// Kind is the classification of a MIME part, computed once when the
// message is parsed.
type Kind int

const (
	// KindContainer is a multipart node: it has children and no payload.
	KindContainer Kind = iota
	// KindText is an inline leaf (message text, html alternative...).
	KindText
	// KindAttachment is a leaf that is a candidate for extraction.
	KindAttachment
	// KindUnknown is a leaf that could not be decoded. It is carried
	// through verbatim and never stripped.
	KindUnknown
)

func (k Kind) String() string {
	switch k {
	case KindContainer:
		return "container"
	case KindText:
		return "text"
	case KindAttachment:
		return "attachment"
	default:
		return "unknown"
	}
}

// Part is a node in the message content tree. Container nodes have
// children and no payload, leaf nodes have a payload and no children.
// The order of children is meaningful and preserved across rewriting.
type Part struct {
	Header   message.Header
	Kind     Kind
	Filename string // decoded attachment file name, empty when not declared
	Size     int64  // decoded payload size in bytes, zero for containers
	Body     []byte // decoded payload, nil for containers
	Children []*Part
}

func (p *Part) IsLeaf() bool {
	return p.Kind != KindContainer
}

// Leaves counts the leaf parts of the tree.
func (p *Part) Leaves() int {
	if p.IsLeaf() {
		return 1
	}
	total := 0
	for _, child := range p.Children {
		total += child.Leaves()
	}
	return total
}

// MediaFamily returns the main content type of the part (image, text,
// multipart, application...). Only used for reporting.
func (p *Part) MediaFamily() string {
	contentType, _, err := p.Header.ContentType()
	if err != nil || contentType == "" {
		return "unknown"
	}
	if index := strings.Index(contentType, "/"); index > 0 {
		return contentType[:index]
	}
	return contentType
}

// ContentType returns the full media type of the part.
func (p *Part) ContentType() string {
	contentType, _, _ := p.Header.ContentType()
	return contentType
}

// Subject returns the decoded Subject header of a root part.
func (p *Part) Subject() string {
	subject, err := p.Header.Text("Subject")
	if err != nil || subject == "" {
		// very rarely messages have no subject
		subject = p.Header.Get("Subject")
	}
	return subject
}

// MessageID returns the Message-Id header of a root part.
func (p *Part) MessageID() string {
	return strings.TrimSpace(p.Header.Get("Message-Id"))
}
