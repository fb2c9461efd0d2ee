package mimetree

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/creativeprojects/mailstrip/lib"
	"github.com/emersion/go-message"

	// charsets not covered by the standard library (iso-8859-*, windows-125*, ...)
	_ "github.com/emersion/go-message/charset"
)

// Classify parses a raw message into its part tree. Headers are kept
// verbatim so the tree can be serialized back without semantic loss.
// Parts that cannot be decoded are classified KindUnknown instead of
// failing the whole message, but a structural failure (a part that
// cannot be read at all) fails the message: a partial tree would drop
// the remaining parts on rewrite.
func Classify(raw []byte) (*Part, error) {
	entity, err := message.Read(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) && !message.IsUnknownEncoding(err) {
		return nil, fmt.Errorf("cannot parse message: %w", err)
	}
	return classifyEntity(entity, err != nil)
}

func classifyEntity(entity *message.Entity, undecodable bool) (*Part, error) {
	if multipart := entity.MultipartReader(); multipart != nil {
		part := &Part{
			Header: entity.Header,
			Kind:   KindContainer,
		}
		for {
			sub, err := multipart.NextPart()
			if err == io.EOF {
				break
			}
			broken := false
			if err != nil {
				if !message.IsUnknownCharset(err) && !message.IsUnknownEncoding(err) {
					// the parts after this one cannot be recovered, and a
					// truncated tree must never replace the original message
					return nil, fmt.Errorf("cannot read part %d: %w", len(part.Children)+1, err)
				}
				broken = true
			}
			child, err := classifyEntity(sub, broken)
			if err != nil {
				return nil, err
			}
			part.Children = append(part.Children, child)
		}
		return part, nil
	}

	body, err := io.ReadAll(entity.Body)
	part := &Part{
		Header: entity.Header,
		Size:   int64(len(body)),
		Body:   body,
	}
	switch {
	case undecodable || err != nil:
		part.Kind = KindUnknown
	default:
		part.Kind = classifyLeaf(entity.Header)
	}
	part.Filename = partFilename(entity.Header)
	return part, nil
}

// classifyLeaf marks a leaf as attachment candidate when the content
// disposition says so, or when it declares a file name with a non-text
// content type. Everything else is inline text.
func classifyLeaf(header message.Header) Kind {
	disposition, _, _ := header.ContentDisposition()
	if strings.EqualFold(disposition, "attachment") {
		return KindAttachment
	}
	contentType, _, _ := header.ContentType()
	if partFilename(header) != "" && !strings.HasPrefix(contentType, "text/") {
		return KindAttachment
	}
	return KindText
}

func partFilename(header message.Header) string {
	_, dispositionParams, _ := header.ContentDisposition()
	if name := dispositionParams["filename"]; name != "" {
		return lib.DecodeFilename(name)
	}
	_, typeParams, _ := header.ContentType()
	if name := typeParams["name"]; name != "" {
		return lib.DecodeFilename(name)
	}
	return ""
}
