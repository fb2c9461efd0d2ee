package lib

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeFilename(t *testing.T) {
	testCases := []struct {
		raw      string
		expected string
	}{
		{"", "unknown"},
		{"report.pdf", "report.pdf"},
		{"weird/name.pdf", "weird_name.pdf"},
		{"..\\..\\escape.exe", ".._.._escape.exe"},
		{"=?utf-8?q?caf=C3=A9.txt?=", "café.txt"},
		{"line\r\nbreak.txt", "linebreak.txt"},
		{"photo (1).jpg", "photo _1_.jpg"},
	}
	for _, testCase := range testCases {
		t.Run(testCase.raw, func(t *testing.T) {
			assert.Equal(t, testCase.expected, DecodeFilename(testCase.raw))
		})
	}
}

func TestShortenSubject(t *testing.T) {
	long := ""
	for i := 0; i < 100; i++ {
		long += "x"
	}
	assert.Len(t, ShortenSubject(long), 78)
	assert.Equal(t, "short", ShortenSubject("short"))
	assert.Equal(t, "two lines", ShortenSubject("two\r\nlines"))
}
