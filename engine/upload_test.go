package engine

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/creativeprojects/mailstrip/lib"
	"github.com/creativeprojects/mailstrip/mailbox"
	"github.com/creativeprojects/mailstrip/mimetree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	messages []*mailbox.Message
	closed   bool
}

func (f *fakeSource) Next() (*mailbox.Message, error) {
	if len(f.messages) == 0 {
		return nil, io.EOF
	}
	message := f.messages[0]
	f.messages = f.messages[1:]
	return message, nil
}

func (f *fakeSource) Close() error {
	f.closed = true
	return nil
}

func archivedMessage(uid uint32) *mailbox.Message {
	body := lib.GenerateEmail("a@example.org", "b@example.org", uid)
	return &mailbox.Message{
		MessageProperties: mailbox.MessageProperties{
			InternalDate: time.Date(2016, 5, 11, 14, 31, 59, 0, time.UTC),
			Size:         uint32(len(body)),
		},
		Uid:  mailbox.NewMessageIDFromString(fmt.Sprintf("<%d@localhost/>", uid)),
		Body: body,
	}
}

func TestUploadNewMessages(t *testing.T) {
	transport := newFakeTransport(true)
	transport.folders["Archive"] = nil

	engine, processed, _ := newTestEngine(t, transport, Options{})
	source := &fakeSource{messages: []*mailbox.Message{archivedMessage(1), archivedMessage(2)}}

	report, err := engine.Upload(context.Background(), source, "Archive")
	require.NoError(t, err)
	assert.Equal(t, 2, report.Messages)
	assert.Equal(t, 2, report.Uploaded)
	assert.Equal(t, 0, report.Duplicates)
	assert.Empty(t, report.Errors)
	assert.Len(t, transport.folders["Archive"], 2)
	assert.Equal(t, 2, processed.Count())
}

func TestUploadSkipsMessagesAlreadyOnServer(t *testing.T) {
	transport := newFakeTransport(true)
	transport.addMessage("Archive", lib.GenerateEmail("a@example.org", "b@example.org", 1))

	engine, _, _ := newTestEngine(t, transport, Options{})
	source := &fakeSource{messages: []*mailbox.Message{archivedMessage(1), archivedMessage(2)}}

	report, err := engine.Upload(context.Background(), source, "Archive")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Uploaded)
	assert.Equal(t, 1, report.Duplicates)
	assert.Len(t, transport.folders["Archive"], 2)
}

func TestUploadIsIdempotent(t *testing.T) {
	transport := newFakeTransport(true)
	transport.folders["Archive"] = nil

	engine, _, _ := newTestEngine(t, transport, Options{})

	report, err := engine.Upload(context.Background(), &fakeSource{messages: []*mailbox.Message{archivedMessage(1)}}, "Archive")
	require.NoError(t, err)
	require.Equal(t, 1, report.Uploaded)

	report, err = engine.Upload(context.Background(), &fakeSource{messages: []*mailbox.Message{archivedMessage(1)}}, "Archive")
	require.NoError(t, err)
	assert.Equal(t, 0, report.Uploaded)
	assert.Equal(t, 1, report.Skipped)
	assert.Len(t, transport.folders["Archive"], 1)
}

func TestUploadDryRun(t *testing.T) {
	transport := newFakeTransport(true)
	transport.addMessage("Archive", lib.GenerateEmail("a@example.org", "b@example.org", 1))

	engine, processed, _ := newTestEngine(t, transport, Options{ReadOnly: true})
	source := &fakeSource{messages: []*mailbox.Message{archivedMessage(1), archivedMessage(2)}}
	report, err := engine.Upload(context.Background(), source, "Archive")
	require.NoError(t, err)
	assert.Equal(t, 0, report.Uploaded)
	assert.Equal(t, 1, report.Duplicates)
	assert.Len(t, transport.folders["Archive"], 1)
	// a dry run never writes to the processed cache, duplicates included
	assert.Equal(t, 0, processed.Count())
}

func TestUploadStripsLargeAttachments(t *testing.T) {
	transport := newFakeTransport(true)
	transport.folders["Archive"] = nil

	body := lib.GenerateEmailWithAttachment("a@example.org", "b@example.org", 5, "big.bin", 37*1024)
	source := &fakeSource{messages: []*mailbox.Message{{
		MessageProperties: mailbox.MessageProperties{
			InternalDate: time.Date(2016, 5, 11, 14, 31, 59, 0, time.UTC),
			Size:         uint32(len(body)),
		},
		Uid:  mailbox.NewMessageIDFromString("<5@localhost/>"),
		Body: body,
	}}}

	options := Options{
		Threshold: mimetree.Threshold{Op: mimetree.Above, Bytes: 16 * 1024},
		Download:  true,
		Detach:    true,
	}
	engine, _, store := newTestEngine(t, transport, options)
	report, err := engine.Upload(context.Background(), source, "Archive")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Uploaded)
	assert.Equal(t, 1, report.Downloaded)

	// the uploaded copy carries the placeholder, not the payload
	require.Len(t, transport.folders["Archive"], 1)
	uploaded := transport.folders["Archive"][0]
	assert.Less(t, len(uploaded.body), len(body))
	tree, err := mimetree.Classify(uploaded.body)
	require.NoError(t, err)
	require.Len(t, tree.Children, 2)
	assert.Contains(t, string(tree.Children[1].Body), "stripped out")

	assert.True(t, store.Exists("big.bin", lib.ContentKey(lib.AttachmentPayload(37*1024))))
}

func TestUploadBrokenMessageDoesNotStopTheRun(t *testing.T) {
	transport := newFakeTransport(true)
	transport.folders["Archive"] = nil

	broken := &mailbox.Message{
		Uid:  mailbox.NewMessageIDFromString("broken.eml"),
		Body: []byte("this is not an email at all"),
	}
	engine, _, _ := newTestEngine(t, transport, Options{})
	report, err := engine.Upload(context.Background(), &fakeSource{messages: []*mailbox.Message{broken, archivedMessage(2)}}, "Archive")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Uploaded)
	require.Len(t, report.Errors, 1)
	assert.Contains(t, report.Errors[0].Error(), "broken.eml")
}
