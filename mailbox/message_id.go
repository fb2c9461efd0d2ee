package mailbox

import "strconv"

var (
	EmptyMessageID MessageID
)

// MessageID is a message identifier on its mail store: a numeric UID for
// IMAP messages, or a string key (like the Message-Id header) for messages
// read from local archive files.
type MessageID struct {
	uid uint32
	key string
}

func NewMessageIDFromUint(uid uint32) MessageID {
	return MessageID{
		uid: uid,
	}
}

func NewMessageIDFromString(key string) MessageID {
	return MessageID{
		key: key,
	}
}

func (i MessageID) IsZero() bool {
	return i.uid == 0 && i.key == ""
}

func (i MessageID) IsUint() bool {
	return i.uid > 0
}

func (i MessageID) AsUint() uint32 {
	return i.uid
}

func (i MessageID) String() string {
	if i.IsUint() {
		return strconv.FormatUint(uint64(i.uid), 10)
	}
	return i.key
}
