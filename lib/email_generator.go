package lib

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"math/rand"
	"time"
)

const charset = "abcdefghijklmnopqrstuvwxyz " +
	"ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789 " +
	",./;'\\ \" []{}<>?:|!@£$%^&*()_+-= " +
	"\r\n\r\n\r\n "

const plainTemplate = "From: %s\r\n" +
	"To: %s\r\n" +
	"Subject: A little message, just for you\r\n" +
	"Date: Wed, 11 May 2016 14:31:59 +0000\r\n" +
	"Message-ID: <%d@localhost/>\r\n" +
	"Content-Type: text/plain\r\n" +
	"\r\n%s"

const multipartTemplate = "From: %s\r\n" +
	"To: %s\r\n" +
	"Subject: A message with a file attached\r\n" +
	"Date: Wed, 11 May 2016 14:31:59 +0000\r\n" +
	"Message-ID: <%d@localhost/>\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: multipart/mixed; boundary=\"boundary-%d\"\r\n" +
	"\r\n" +
	"--boundary-%d\r\n" +
	"Content-Type: text/plain; charset=\"utf-8\"\r\n" +
	"\r\n" +
	"%s\r\n" +
	"--boundary-%d\r\n" +
	"Content-Type: application/octet-stream\r\n" +
	"Content-Disposition: attachment; filename=\"%s\"\r\n" +
	"Content-Transfer-Encoding: base64\r\n" +
	"\r\n" +
	"%s\r\n" +
	"--boundary-%d--\r\n"

var seededRand *rand.Rand = rand.New(
	rand.NewSource(time.Now().UnixMilli()))

func stringWithCharset(length int, charset string) string {
	b := make([]byte, length)
	for i := range b {
		b[i] = charset[seededRand.Intn(len(charset))]
	}
	return string(b)
}

// GenerateEmail returns a random plain text message.
func GenerateEmail(from, to string, uid uint32) []byte {
	length := seededRand.Intn(300000)
	msg := fmt.Sprintf(plainTemplate, from, to, uid, stringWithCharset(length, charset))
	return []byte(msg)
}

// GenerateEmailWithAttachment returns a multipart message carrying a
// short text part and one attachment of exactly attachmentSize bytes.
// The attachment content only depends on its size, so two generated
// messages with the same size attach identical payloads.
func GenerateEmailWithAttachment(from, to string, uid uint32, filename string, attachmentSize int) []byte {
	payload := AttachmentPayload(attachmentSize)
	encoded := wrapBase64(base64.StdEncoding.EncodeToString(payload))
	msg := fmt.Sprintf(multipartTemplate,
		from, to, uid, uid,
		uid, stringWithCharset(200, charset),
		uid, filename, encoded,
		uid)
	return []byte(msg)
}

// AttachmentPayload returns size deterministic bytes.
func AttachmentPayload(size int) []byte {
	payload := make([]byte, size)
	for i := range payload {
		payload[i] = byte(i % 251)
	}
	return payload
}

func wrapBase64(encoded string) string {
	buffer := &bytes.Buffer{}
	for len(encoded) > 76 {
		buffer.WriteString(encoded[:76])
		buffer.WriteString("\r\n")
		encoded = encoded[76:]
	}
	buffer.WriteString(encoded)
	return buffer.String()
}
