package archive

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/creativeprojects/mailstrip/lib"
	"github.com/creativeprojects/mailstrip/mimetree"
)

// Apple Mail marks a part whose payload was moved out of the message
// with this header, the payload lives in the Attachments directory.
const appleContentLengthHeader = "X-Apple-Content-Length"

// decodeEmlx splits an Apple Mail emlx file into the raw message and
// the trailing property list. The file starts with the message length
// in bytes on its own line.
func decodeEmlx(data []byte) ([]byte, []byte, error) {
	index := bytes.IndexByte(data, '\n')
	if index <= 0 {
		return nil, nil, fmt.Errorf("%w: missing length prefix", lib.ErrUnknownFormat)
	}
	length, err := strconv.Atoi(strings.TrimSpace(string(data[:index])))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: invalid length prefix: %s", lib.ErrUnknownFormat, err)
	}
	if length < 0 || index+1+length > len(data) {
		return nil, nil, fmt.Errorf("%w: length prefix of %d bytes outside of file", lib.ErrUnknownFormat, length)
	}
	return data[index+1 : index+1+length], data[index+1+length:], nil
}

// decodePartialEmlx rebuilds a complete message from a partial emlx
// file: each part carrying an X-Apple-Content-Length header has an
// empty body, with the payload stored as a plain file under the
// Attachments directory next to the Messages directory.
func decodePartialEmlx(path string, data []byte) ([]byte, error) {
	raw, _, err := decodeEmlx(data)
	if err != nil {
		return nil, err
	}

	tree, err := mimetree.Classify(raw)
	if err != nil {
		return nil, fmt.Errorf("cannot parse message: %w", err)
	}

	number := strings.TrimSuffix(filepath.Base(path), ".partial.emlx")
	attachmentsDir, err := findAttachmentsDir(filepath.Dir(path), number)
	if err != nil {
		return nil, err
	}

	err = fillExternalParts(tree, attachmentsDir, "")
	if err != nil {
		return nil, err
	}
	return mimetree.Serialize(tree)
}

func findAttachmentsDir(messagesDir, number string) (string, error) {
	candidates := []string{
		filepath.Join(messagesDir, "..", "Attachments", number),
		filepath.Join(messagesDir, "Attachments", number),
	}
	for _, candidate := range candidates {
		if stat, err := os.Stat(candidate); err == nil && stat.IsDir() {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("cannot find the Attachments directory for message %s", number)
}

// fillExternalParts walks the message tree and loads the payload of
// every externalized part. Parts are numbered the IMAP way: top level
// children are 1, 2, ... and nested parts use a dotted path.
func fillExternalParts(part *mimetree.Part, dir string, number string) error {
	if !part.IsLeaf() {
		for i, child := range part.Children {
			childNumber := strconv.Itoa(i + 1)
			if number != "" {
				childNumber = number + "." + childNumber
			}
			err := fillExternalParts(child, dir, childNumber)
			if err != nil {
				return err
			}
		}
		return nil
	}

	if part.Header.Get(appleContentLengthHeader) == "" {
		return nil
	}
	payload, err := readExternalPayload(filepath.Join(dir, number), part.Filename)
	if err != nil {
		return err
	}
	part.Body = payload
	part.Size = int64(len(payload))
	part.Header.Del(appleContentLengthHeader)
	return nil
}

func readExternalPayload(dir, filename string) ([]byte, error) {
	if filename != "" {
		payload, err := os.ReadFile(filepath.Join(dir, filename))
		if err == nil {
			return payload, nil
		}
	}
	// the stored file name doesn't always match the part header,
	// accept a single file of any name
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot read attachment payload from %q: %w", dir, err)
	}
	files := make([]string, 0, 1)
	for _, entry := range entries {
		if !entry.IsDir() {
			files = append(files, entry.Name())
		}
	}
	if len(files) != 1 {
		return nil, fmt.Errorf("expected one attachment payload in %q, found %d", dir, len(files))
	}
	return os.ReadFile(filepath.Join(dir, files[0]))
}
