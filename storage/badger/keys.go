package badger

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/poiesic/docreview/core"
)

// Key prefixes for different data types
const (
	documentRecordPrefix = "docrec"
	questionRecordPrefix = "qusrec"
	questionOwnerPrefix  = "qusown"
	sessionRecordPrefix  = "sesrec"
)

// keySeparator terminates variable-length key components (chat and owner
// IDs) so that "chat1" never prefixes into "chat10".
const keySeparator = 0x00

// makeDocumentKey generates the record key for a document.
// Format: prefix:chatID\x00timestamp. The timestamp is BigEndian so
// documents within a chat sort by upload time.
func makeDocumentKey(key core.DocumentKey) []byte {
	prefix := documentRecordPrefix + ":"
	buf := make([]byte, len(prefix)+len(key.ChatID)+1+8)
	offset := copy(buf, prefix)
	offset += copy(buf[offset:], key.ChatID)
	buf[offset] = keySeparator
	offset++
	binary.BigEndian.PutUint64(buf[offset:], uint64(key.UploadedAt.UnixMicro()))
	return buf
}

// makeDocumentChatPrefix generates the scan prefix for all documents in a chat.
func makeDocumentChatPrefix(chatID string) []byte {
	prefix := documentRecordPrefix + ":"
	buf := make([]byte, len(prefix)+len(chatID)+1)
	offset := copy(buf, prefix)
	offset += copy(buf[offset:], chatID)
	buf[offset] = keySeparator
	return buf
}

// makeQuestionKey generates the record key for a question by ID.
func makeQuestionKey(id core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%d", questionRecordPrefix, id))
}

// makeQuestionOwnerKey generates a composite key for the owner index.
// Format: prefix:ownerID\x00seq:id. The sequence number preserves
// insertion order within an owner.
func makeQuestionOwnerKey(ownerID string, seq uint64, id core.ID) []byte {
	prefix := questionOwnerPrefix + ":"
	buf := make([]byte, len(prefix)+len(ownerID)+1+16)
	offset := copy(buf, prefix)
	offset += copy(buf[offset:], ownerID)
	buf[offset] = keySeparator
	offset++
	binary.BigEndian.PutUint64(buf[offset:], seq)
	offset += 8
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	return buf
}

// makeQuestionOwnerPrefix generates the scan prefix for an owner's questions.
func makeQuestionOwnerPrefix(ownerID string) []byte {
	prefix := questionOwnerPrefix + ":"
	buf := make([]byte, len(prefix)+len(ownerID)+1)
	offset := copy(buf, prefix)
	offset += copy(buf[offset:], ownerID)
	buf[offset] = keySeparator
	return buf
}

// makeSessionKey generates the record key for a scoring session.
// Format: prefix:ownerID\x00timestamp.
func makeSessionKey(ownerID string, createdAt time.Time) []byte {
	prefix := sessionRecordPrefix + ":"
	buf := make([]byte, len(prefix)+len(ownerID)+1+8)
	offset := copy(buf, prefix)
	offset += copy(buf[offset:], ownerID)
	buf[offset] = keySeparator
	offset++
	binary.BigEndian.PutUint64(buf[offset:], uint64(createdAt.UnixMicro()))
	return buf
}
