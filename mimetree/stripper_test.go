package mimetree

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/creativeprojects/mailstrip/content"
	"github.com/creativeprojects/mailstrip/lib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T) *content.Store {
	t.Helper()
	store, err := content.NewStoreWithLogger(t.TempDir(), lib.NewTestLogger(t, "store"))
	require.NoError(t, err)
	return store
}

func TestThreshold(t *testing.T) {
	above := Threshold{Op: Above, Bytes: 20 * 1024}
	assert.True(t, above.Match(37*1024))
	assert.False(t, above.Match(1024))
	assert.False(t, above.Match(20*1024))

	below := Threshold{Op: Below, Bytes: 1024}
	assert.True(t, below.Match(100))
	assert.False(t, below.Match(4096))
}

func TestDetachLargeAttachment(t *testing.T) {
	store := testStore(t)
	raw := lib.GenerateEmailWithAttachment("a@example.org", "b@example.org", 1, "photo.jpg", 37*1024)
	tree, err := Classify(raw)
	require.NoError(t, err)
	require.Equal(t, 2, tree.Leaves())

	stripper := NewStripper(Policy{
		Threshold: Threshold{Op: Above, Bytes: 20 * 1024},
		Download:  true,
		Detach:    true,
	}, store, lib.NewTestLogger(t, "strip"))

	date := time.Date(2021, 6, 1, 8, 0, 0, 0, time.UTC)
	rewritten, records, changed, err := stripper.Strip(tree, date)
	require.NoError(t, err)
	assert.True(t, changed)

	// one leaf was replaced, not removed
	assert.Equal(t, 2, rewritten.Leaves())
	require.Len(t, records, 1)
	assert.Equal(t, "photo.jpg", records[0].Filename)
	assert.Equal(t, int64(37*1024), records[0].Size)
	assert.Equal(t, filepath.Join(store.Dir(), "photo.jpg"), records[0].StoredPath)
	assert.Equal(t, "application", records[0].Media)

	// the file landed in the store with the message date
	info, err := os.Stat(records[0].StoredPath)
	require.NoError(t, err)
	assert.Equal(t, int64(37*1024), info.Size())
	assert.True(t, date.Equal(info.ModTime()))

	// text part untouched, image part replaced with the placeholder
	assert.Same(t, tree.Children[0], rewritten.Children[0])
	placeholder := rewritten.Children[1]
	assert.Equal(t, KindText, placeholder.Kind)
	assert.Contains(t, string(placeholder.Body), `"photo.jpg"`)
	assert.Contains(t, string(placeholder.Body), "stripped out")

	// original attachment had an attachment disposition: note is shown inline
	disposition, _, err := placeholder.Header.ContentDisposition()
	require.NoError(t, err)
	assert.Equal(t, "inline", disposition)

	// input tree not mutated
	assert.Equal(t, KindAttachment, tree.Children[1].Kind)
}

func TestSmallAttachmentDoesNotQualify(t *testing.T) {
	store := testStore(t)
	raw := lib.GenerateEmailWithAttachment("a@example.org", "b@example.org", 2, "icon.png", 2*1024)
	tree, err := Classify(raw)
	require.NoError(t, err)

	stripper := NewStripper(Policy{
		Threshold: Threshold{Op: Above, Bytes: 20 * 1024},
		Download:  true,
		Detach:    true,
	}, store, nil)

	rewritten, records, changed, err := stripper.Strip(tree, time.Now())
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Empty(t, records)
	assert.Same(t, tree.Children[1], rewritten.Children[1])

	entries, err := os.ReadDir(store.Dir())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStripSmallPartsPolicy(t *testing.T) {
	store := testStore(t)
	raw := lib.GenerateEmailWithAttachment("a@example.org", "b@example.org", 3, "tracker.gif", 512)
	tree, err := Classify(raw)
	require.NoError(t, err)

	stripper := NewStripper(Policy{
		Threshold: Threshold{Op: Below, Bytes: 1024},
		Download:  false,
		Detach:    true,
	}, store, nil)

	rewritten, records, changed, err := stripper.Strip(tree, time.Now())
	require.NoError(t, err)
	assert.True(t, changed)
	require.Len(t, records, 1)
	// nothing written when downloading is disabled
	assert.Empty(t, records[0].StoredPath)
	entries, err := os.ReadDir(store.Dir())
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Equal(t, KindText, rewritten.Children[1].Kind)
}

func TestDownloadOnlyKeepsTreeUnmodified(t *testing.T) {
	store := testStore(t)
	raw := lib.GenerateEmailWithAttachment("a@example.org", "b@example.org", 4, "backup.zip", 30*1024)
	tree, err := Classify(raw)
	require.NoError(t, err)

	stripper := NewStripper(Policy{
		Threshold: Threshold{Op: Above, Bytes: 20 * 1024},
		Download:  true,
		Detach:    false,
	}, store, nil)

	rewritten, records, changed, err := stripper.Strip(tree, time.Now())
	require.NoError(t, err)
	assert.False(t, changed)
	require.Len(t, records, 1)
	assert.NotEmpty(t, records[0].StoredPath)
	assert.Same(t, tree.Children[1], rewritten.Children[1])
}

func TestIdenticalAttachmentsShareOneFile(t *testing.T) {
	store := testStore(t)
	stripper := NewStripper(Policy{
		Threshold: Threshold{Op: Above, Bytes: 10 * 1024},
		Download:  true,
		Detach:    true,
	}, store, nil)

	var paths []string
	for uid := uint32(1); uid <= 2; uid++ {
		raw := lib.GenerateEmailWithAttachment("a@example.org", "b@example.org", uid, "logo.png", 20*1024)
		tree, err := Classify(raw)
		require.NoError(t, err)
		_, records, _, err := stripper.Strip(tree, time.Now())
		require.NoError(t, err)
		require.Len(t, records, 1)
		paths = append(paths, records[0].StoredPath)
	}
	assert.Equal(t, paths[0], paths[1])

	entries, err := os.ReadDir(store.Dir())
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestUnnamedAttachmentIsSkipped(t *testing.T) {
	raw := "From: contact@example.org\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: multipart/mixed; boundary=\"frontier\"\r\n" +
		"\r\n" +
		"--frontier\r\n" +
		"Content-Type: application/octet-stream\r\n" +
		"Content-Disposition: attachment\r\n" +
		"\r\n" +
		strings.Repeat("data ", 10000) + "\r\n" +
		"--frontier--\r\n"
	tree, err := Classify([]byte(raw))
	require.NoError(t, err)
	require.Equal(t, KindAttachment, tree.Children[0].Kind)

	stripper := NewStripper(Policy{
		Threshold: Threshold{Op: Above, Bytes: 1024},
		Download:  true,
		Detach:    true,
	}, testStore(t), lib.NewTestLogger(t, "strip"))

	_, records, changed, err := stripper.Strip(tree, time.Now())
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Empty(t, records)
}

func TestInlineNamedAttachmentPlaceholderDisposition(t *testing.T) {
	raw := "From: contact@example.org\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: multipart/mixed; boundary=\"frontier\"\r\n" +
		"\r\n" +
		"--frontier\r\n" +
		"Content-Type: image/jpeg; name=\"inline.jpg\"\r\n" +
		"\r\n" +
		strings.Repeat("x", 4096) + "\r\n" +
		"--frontier--\r\n"
	tree, err := Classify([]byte(raw))
	require.NoError(t, err)

	stripper := NewStripper(Policy{
		Threshold: Threshold{Op: Above, Bytes: 1024},
		Download:  true,
		Detach:    true,
	}, testStore(t), nil)

	rewritten, _, changed, err := stripper.Strip(tree, time.Now())
	require.NoError(t, err)
	require.True(t, changed)

	placeholder := rewritten.Children[0]
	disposition, params, err := placeholder.Header.ContentDisposition()
	require.NoError(t, err)
	assert.Equal(t, "attachment", disposition)
	assert.Equal(t, "removed-inline.jpg.txt", params["filename"])
	assert.Equal(t, "removed-inline.jpg.txt", placeholder.Header.Get("Content-Description"))
}
