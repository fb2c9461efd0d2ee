package lib

import (
	"mime"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// UnknownFilename is used when an attachment doesn't declare a file name,
// or when its name cannot be decoded.
const UnknownFilename = "unknown"

// same as \w but including all unicode letters and digits
var unsafeChars = regexp.MustCompile(`[^.\p{L}\p{N}_\s-]`)

// DecodeFilename decodes a possibly RFC 2047 encoded attachment file name
// and makes it safe to use as a local file name.
func DecodeFilename(raw string) string {
	if raw == "" {
		return UnknownFilename
	}
	decoder := &mime.WordDecoder{}
	decoded, err := decoder.DecodeHeader(raw)
	if err != nil {
		decoded = raw
	}
	decoded = strings.ReplaceAll(decoded, "\r", "")
	decoded = strings.ReplaceAll(decoded, "\n", "")
	return SlugifyFilename(decoded)
}

// SlugifyFilename replaces characters that are not safe in a file name.
func SlugifyFilename(value string) string {
	value = norm.NFKC.String(value)
	return unsafeChars.ReplaceAllString(value, "_")
}

// ShortenSubject trims a message subject for display.
func ShortenSubject(subject string) string {
	subject = strings.ReplaceAll(subject, "\r\n", "")
	subject = strings.ReplaceAll(subject, "\t", " ")
	if len(subject) > 75 {
		subject = subject[:75] + "..."
	}
	return subject
}
