package remote

import (
	"bytes"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/creativeprojects/mailstrip/lib"
	"github.com/creativeprojects/mailstrip/limitio"
	"github.com/creativeprojects/mailstrip/mailbox"
	"github.com/emersion/go-imap"
	uidplus "github.com/emersion/go-imap-uidplus"
	"github.com/emersion/go-imap/client"
)

const (
	// sometimes IMAP servers return an empty body, so try again
	fetchAttempts = 2
	retryDelay    = 2 * time.Second
)

type Config struct {
	ServerURL           string
	Username            string
	Password            string
	DebugLogger         lib.Logger
	NoTLS               bool
	SkipTLSVerification bool
	// BandwidthLimit in bytes per second applied to message bodies
	// moving in both directions, zero means no limit.
	BandwidthLimit float64
}

// Imap is the mail-transport collaborator: one logical connection to an
// IMAP server, used sequentially.
type Imap struct {
	client         *client.Client
	uidplusClient  *uidplus.Client
	log            lib.Logger
	selected       *mailbox.Status
	bandwidthLimit float64
}

func NewImap(cfg Config) (*Imap, error) {
	log := cfg.DebugLogger
	if log == nil {
		log = &lib.NoLog{}
	}
	if cfg.ServerURL == "" || cfg.Username == "" || cfg.Password == "" {
		return nil, errors.New("missing information from Config object")
	}

	var imapClient *client.Client
	var err error
	log.Printf("Connecting to server %s...", cfg.ServerURL)
	if cfg.NoTLS {
		imapClient, err = client.Dial(cfg.ServerURL)
	} else {
		tlsConfig := &tls.Config{}
		if cfg.SkipTLSVerification {
			tlsConfig.InsecureSkipVerify = true
		}
		imapClient, err = client.DialTLS(cfg.ServerURL, tlsConfig)
	}
	if err != nil {
		return nil, fmt.Errorf("cannot connect to server %s: %w", cfg.ServerURL, err)
	}
	log.Print("Connected")

	if err := imapClient.Login(cfg.Username, cfg.Password); err != nil {
		return nil, fmt.Errorf("authentication failure: %w", err)
	}
	log.Printf("Logged in as %s", cfg.Username)

	if caps, err := imapClient.Capability(); err == nil {
		log.Printf("capabilities: %+v", caps)
	}

	// try to enable UIDPLUS extension
	uidExt := uidplus.NewClient(imapClient)
	supported, err := uidExt.SupportUidPlus()
	if err != nil || !supported {
		log.Print("IMAP server does NOT support UIDPLUS extension")
		uidExt = nil
	}

	return &Imap{
		client:         imapClient,
		uidplusClient:  uidExt,
		log:            log,
		bandwidthLimit: cfg.BandwidthLimit,
	}, nil
}

func (i *Imap) Close() error {
	i.log.Print("Closing connection")
	return i.client.Logout()
}

// SupportMessageID indicates the server supports the UIDPLUS extension,
// so an append can report back the UID of the new message.
func (i *Imap) SupportMessageID() bool {
	return i.uidplusClient != nil
}

func (i *Imap) ListFolders() ([]mailbox.Info, error) {
	mailboxes := make(chan *imap.MailboxInfo, 10)
	done := make(chan error, 1)
	go func() {
		done <- i.client.List("", "*", mailboxes)
	}()

	i.log.Print("Listing folders:")
	info := make([]mailbox.Info, 0, 10)
	for m := range mailboxes {
		i.log.Printf("* %q: %+v (delimiter = %q)", m.Name, m.Attributes, m.Delimiter)
		info = append(info, mailbox.Info{
			Delimiter: m.Delimiter,
			Name:      m.Name,
		})
	}

	if err := <-done; err != nil {
		return nil, err
	}
	return info, nil
}

func (i *Imap) SelectFolder(name string, readOnly bool) (*mailbox.Status, error) {
	i.log.Printf("Selecting folder %q (read-only: %v)", name, readOnly)
	status, err := i.client.Select(name, readOnly)
	if err != nil {
		return nil, err
	}
	i.selected = &mailbox.Status{
		Name:        status.Name,
		Messages:    status.Messages,
		Unseen:      status.Unseen,
		UidValidity: status.UidValidity,
	}
	return i.selected, nil
}

func (i *Imap) UnselectFolder() error {
	i.selected = nil
	return i.client.Unselect()
}

// SearchAll returns the UID of every message in the selected folder.
func (i *Imap) SearchAll() ([]uint32, error) {
	if i.selected == nil {
		return nil, lib.ErrNotSelected
	}
	uids, err := i.client.UidSearch(imap.NewSearchCriteria())
	if err != nil {
		return nil, fmt.Errorf("cannot search folder %q: %w", i.selected.Name, err)
	}
	i.log.Printf("Found %d messages in %q", len(uids), i.selected.Name)
	return uids, nil
}

// SearchHeader returns the UID of the messages carrying this exact
// header value, used to detect duplicates before an upload.
func (i *Imap) SearchHeader(field, value string) ([]uint32, error) {
	if i.selected == nil {
		return nil, lib.ErrNotSelected
	}
	criteria := imap.NewSearchCriteria()
	criteria.Header.Add(field, value)
	return i.client.UidSearch(criteria)
}

// Fetch retrieves one message with its flags and internal date. The
// body is fetched with BODY.PEEK so the seen flag is not affected.
func (i *Imap) Fetch(uid uint32) (*mailbox.Message, error) {
	var lastErr error
	for attempt := 1; attempt <= fetchAttempts; attempt++ {
		message, err := i.fetch(uid)
		if err == nil {
			return message, nil
		}
		lastErr = err
		if errors.Is(err, lib.ErrNotSelected) || errors.Is(err, lib.ErrMessageNotFound) {
			break
		}
		if attempt < fetchAttempts {
			i.log.Printf("Fetch of uid %d failed, retrying in a few seconds: %s", uid, err)
			time.Sleep(retryDelay)
		}
	}
	return nil, lastErr
}

func (i *Imap) fetch(uid uint32) (*mailbox.Message, error) {
	if i.selected == nil {
		return nil, lib.ErrNotSelected
	}
	seqset := new(imap.SeqSet)
	seqset.AddNum(uid)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{section.FetchItem(), imap.FetchFlags, imap.FetchUid, imap.FetchInternalDate, imap.FetchRFC822Size}

	receiver := make(chan *imap.Message, 1)
	done := make(chan error, 1)
	go func() {
		done <- i.client.UidFetch(seqset, items, receiver)
	}()

	var found *imap.Message
	for msg := range receiver {
		found = msg
	}
	if err := <-done; err != nil {
		return nil, fmt.Errorf("cannot fetch message uid %d: %w", uid, err)
	}
	if found == nil {
		return nil, fmt.Errorf("uid %d: %w", uid, lib.ErrMessageNotFound)
	}
	bodyReader := found.GetBody(section)
	if bodyReader == nil {
		return nil, fmt.Errorf("uid %d: empty message body", uid)
	}
	reader := limitio.NewReader(bodyReader)
	if i.bandwidthLimit > 0 {
		reader.SetRateLimit(i.bandwidthLimit, 16*1024)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("cannot read message body uid %d: %w", uid, err)
	}
	i.log.Printf("Received message uid=%d size=%d flags=%+v date=%q", uid, len(body), found.Flags, found.InternalDate)

	return &mailbox.Message{
		MessageProperties: mailbox.MessageProperties{
			Flags:        lib.StripRecentFlag(found.Flags),
			InternalDate: found.InternalDate,
			Size:         uint32(len(body)),
		},
		Uid:  mailbox.NewMessageIDFromUint(found.Uid),
		Body: body,
	}, nil
}

// Append saves a new message into the folder, keeping the flags and
// internal date of the original. A nil error is the server-reported
// success status; with UIDPLUS the new UID is returned as well.
func (i *Imap) Append(folder string, props mailbox.MessageProperties, body []byte) (mailbox.MessageID, error) {
	// IMAP servers cannot accept the recent flag
	flags := lib.StripRecentFlag(props.Flags)

	var err error
	var uid uint32
	if i.uidplusClient != nil {
		_, uid, err = i.uidplusClient.Append(folder, flags, props.InternalDate, i.literal(body))
	} else {
		err = i.client.Append(folder, flags, props.InternalDate, i.literal(body))
	}
	if err != nil {
		return mailbox.EmptyMessageID,
			fmt.Errorf("cannot append new message to IMAP server (folder=%q size=%d flags=%v): %w",
				folder, len(body), flags, err,
			)
	}
	i.log.Printf("Message saved: folder=%q uid=%v size=%d flags=%v date=%q", folder, uid, len(body), flags, props.InternalDate)

	return mailbox.NewMessageIDFromUint(uid), nil
}

// AddDeletedFlag marks a message for deletion at the next expunge.
func (i *Imap) AddDeletedFlag(uid uint32) error {
	if i.selected == nil {
		return lib.ErrNotSelected
	}
	seqset := new(imap.SeqSet)
	seqset.AddNum(uid)
	item := imap.FormatFlagsOp(imap.AddFlags, true)
	return i.client.UidStore(seqset, item, []interface{}{imap.DeletedFlag}, nil)
}

// Expunge permanently removes the messages marked for deletion from the
// selected folder.
func (i *Imap) Expunge() error {
	if i.selected == nil {
		return lib.ErrNotSelected
	}
	return i.client.Expunge(nil)
}

// literal wraps a message body into an imap.Literal, rate limited when
// a bandwidth limit is configured.
func (i *Imap) literal(body []byte) imap.Literal {
	reader := limitio.NewReader(bytes.NewReader(body))
	if i.bandwidthLimit > 0 {
		reader.SetRateLimit(i.bandwidthLimit, 16*1024)
	}
	return &literal{
		reader: reader,
		size:   len(body),
	}
}

type literal struct {
	reader io.Reader
	size   int
}

func (l *literal) Read(p []byte) (int, error) {
	return l.reader.Read(p)
}

func (l *literal) Len() int {
	return l.size
}
