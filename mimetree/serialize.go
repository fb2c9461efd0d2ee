package mimetree

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/emersion/go-message"
)

// Serialize writes the part tree back to a byte-valid RFC 822 message.
// Headers read from the original message are written back verbatim, so
// non-payload structure survives a classify/serialize round trip.
func Serialize(root *Part) ([]byte, error) {
	buffer := &bytes.Buffer{}
	writer, err := message.CreateWriter(buffer, writableHeader(root))
	if err != nil {
		return nil, fmt.Errorf("cannot write message header: %w", err)
	}
	err = writeContent(writer, root)
	if closeErr := writer.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return nil, fmt.Errorf("cannot serialize message: %w", err)
	}
	return buffer.Bytes(), nil
}

func writeContent(writer *message.Writer, part *Part) error {
	if part.Kind == KindContainer {
		for _, child := range part.Children {
			sub, err := writer.CreatePart(writableHeader(child))
			if err != nil {
				return err
			}
			err = writeContent(sub, child)
			if closeErr := sub.Close(); err == nil {
				err = closeErr
			}
			if err != nil {
				return err
			}
		}
		return nil
	}
	_, err := writer.Write(part.Body)
	return err
}

// writableHeader returns the part header as it should be written out.
// An unknown leaf kept its payload in the original (undecoded) form: its
// transfer encoding header is dropped when the writer wouldn't be able
// to reproduce it, so the payload goes out exactly as it came in. The
// receiving client loses the encoding declaration, there is no way to
// write a header the library cannot encode for.
func writableHeader(part *Part) message.Header {
	if part.Kind != KindUnknown {
		return part.Header
	}
	encoding := strings.ToLower(part.Header.Get("Content-Transfer-Encoding"))
	switch encoding {
	case "", "quoted-printable", "base64", "7bit", "8bit", "binary":
		return part.Header
	}
	header := message.Header{Header: part.Header.Header.Copy()}
	header.Del("Content-Transfer-Encoding")
	return header
}
