package mailbox

import (
	"encoding/binary"
	"fmt"
	"io"
)

const (
	// headerWords is the buffer header (size, code) plus the tag header
	// (tag, value buffer size, request/response length).
	headerWords = 5
	// trailerWords is the end tag.
	trailerWords = 1

	codeRequest = 0x00000000
)

const (
	// CodeResponseSuccess is the response code of a processed buffer.
	CodeResponseSuccess = 0x80000000
	// CodeResponseError is the response code of a buffer the firmware could
	// not parse.
	CodeResponseError = 0x80000001
	// ResponseFlag is set by the firmware in the tag's length word, once the
	// tag has been processed.
	ResponseFlag = 0x80000000
)

// Message is a single-tag property mailbox buffer. Requests and responses
// share the same words: the firmware overwrites the value area in place.
//
// The layout is the wire format, and must not be changed.
type Message struct {
	words []uint32
}

// NewMessage builds a request for tag, with the given request words, and room
// for responseWords words of response. Unused value words are zero.
func NewMessage(tag Tag, request []uint32, responseWords int) *Message {
	length := max(len(request), responseWords)
	words := make([]uint32, headerWords+length+trailerWords)
	words[0] = uint32(len(words) * 4)
	words[1] = codeRequest
	words[2] = uint32(tag)
	words[3] = uint32(length * 4)
	words[4] = uint32(len(request) * 4)
	copy(words[headerWords:], request)
	// end tag, already zero
	return &Message{words: words}
}

// NewQuery builds a read-only query for tag, with responseWords zero-filled
// placeholder words.
func NewQuery(tag Tag, responseWords int) *Message {
	return NewMessage(tag, make([]uint32, responseWords), responseWords)
}

// Words returns the underlying buffer, which is what is passed to the
// firmware.
func (m *Message) Words() []uint32 {
	return m.words
}

// Tag returns the message's tag.
func (m *Message) Tag() Tag {
	return Tag(m.words[2])
}

// Len returns the number of value words.
func (m *Message) Len() int {
	return len(m.words) - headerWords - trailerWords
}

// Content returns value word i, which after a call holds the response.
func (m *Message) Content(i int) uint32 {
	if i < 0 || i >= m.Len() {
		panic(fmt.Sprintf("mailbox: content index %d out of range [0, %d)", i, m.Len()))
	}
	return m.words[headerWords+i]
}

// ResponseCode returns the buffer's request/response code word.
func (m *Message) ResponseCode() uint32 {
	return m.words[1]
}

// Succeeded reports whether the firmware processed the buffer successfully.
func (m *Message) Succeeded() bool {
	return checkReturnValue(m.words[1])
}

// TagResponded reports whether the firmware has set the response flag in the
// tag's length word.
func (m *Message) TagResponded() bool {
	return m.words[4]&ResponseFlag != 0
}

// ResponseLength returns the length in bytes of the response the firmware
// wrote, valid only if [Message.TagResponded].
func (m *Message) ResponseLength() uint32 {
	return m.words[4] &^ ResponseFlag
}

// MarshalBinary encodes the buffer in native byte order, exactly as it is
// handed to the kernel.
func (m *Message) MarshalBinary() ([]byte, error) {
	b := make([]byte, 0, len(m.words)*4)
	for _, w := range m.words {
		b = binary.NativeEndian.AppendUint32(b, w)
	}
	return b, nil
}

// Dump writes one line per word, in the format "offset: value".
func (m *Message) Dump(w io.Writer) error {
	for i, v := range m.words {
		if _, err := fmt.Fprintf(w, "%04x: 0x%08x\n", i*4, v); err != nil {
			return err
		}
	}
	return nil
}

// checkReturnValue interprets a response code: 0x80000000 is success,
// 0x80000001 is a firmware parse error, anything else is not a response.
func checkReturnValue(value uint32) bool {
	if value>>31 != 0 {
		return value == CodeResponseSuccess
	}
	return false
}
