package archive

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/creativeprojects/mailstrip/lib"
	"github.com/emersion/go-imap"
	"github.com/emersion/go-maildir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadDirectoryOfEmlFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "first.eml"), lib.GenerateEmail("a@example.org", "b@example.org", 1), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "second.eml"), lib.GenerateEmail("a@example.org", "b@example.org", 2), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("not a message"), 0600))

	reader, err := NewReader(dir, lib.NewTestLogger(t, "archive"))
	require.NoError(t, err)
	defer reader.Close()

	first, err := reader.Next()
	require.NoError(t, err)
	assert.Equal(t, "<1@localhost/>", first.Uid.String())
	// the Date header wins over the file modification time
	assert.Equal(t, time.Date(2016, 5, 11, 14, 31, 59, 0, time.UTC), first.InternalDate.UTC())
	assert.Equal(t, uint32(len(first.Body)), first.Size)

	second, err := reader.Next()
	require.NoError(t, err)
	assert.Equal(t, "<2@localhost/>", second.Uid.String())

	_, err = reader.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestReadSingleFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "message.eml")
	require.NoError(t, os.WriteFile(file, lib.GenerateEmail("a@example.org", "b@example.org", 7), 0600))

	reader, err := NewReader(file, nil)
	require.NoError(t, err)

	message, err := reader.Next()
	require.NoError(t, err)
	assert.Equal(t, "<7@localhost/>", message.Uid.String())

	_, err = reader.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestMessageWithoutMessageIDFallsBackToFilename(t *testing.T) {
	body := "From: a@example.org\r\n" +
		"To: b@example.org\r\n" +
		"Subject: no id\r\n" +
		"\r\n" +
		"short one\r\n"
	file := filepath.Join(t.TempDir(), "orphan.eml")
	require.NoError(t, os.WriteFile(file, []byte(body), 0600))

	reader, err := NewReader(file, nil)
	require.NoError(t, err)

	message, err := reader.Next()
	require.NoError(t, err)
	assert.Equal(t, "orphan.eml", message.Uid.String())
}

func TestBrokenFileOnlyFailsItsOwnNext(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.emlx"), []byte("no length prefix here"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "good.eml"), lib.GenerateEmail("a@example.org", "b@example.org", 3), 0600))

	reader, err := NewReader(dir, nil)
	require.NoError(t, err)

	_, err = reader.Next()
	require.ErrorIs(t, err, lib.ErrUnknownFormat)

	message, err := reader.Next()
	require.NoError(t, err)
	assert.Equal(t, "<3@localhost/>", message.Uid.String())
}

func TestReadMaildir(t *testing.T) {
	dir := t.TempDir()
	mbox := maildir.Dir(dir)
	require.NoError(t, mbox.Init())

	body := lib.GenerateEmail("a@example.org", "b@example.org", 9)
	_, writer, err := mbox.Create([]maildir.Flag{maildir.FlagSeen})
	require.NoError(t, err)
	_, err = writer.Write(body)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	reader, err := NewReader(dir, lib.NewTestLogger(t, "archive"))
	require.NoError(t, err)

	message, err := reader.Next()
	require.NoError(t, err)
	assert.Equal(t, "<9@localhost/>", message.Uid.String())
	assert.Equal(t, []string{imap.SeenFlag}, message.Flags)
	assert.Equal(t, body, message.Body)

	_, err = reader.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestMissingArchive(t *testing.T) {
	_, err := NewReader(filepath.Join(t.TempDir(), "no-such-dir"), nil)
	assert.Error(t, err)
}
