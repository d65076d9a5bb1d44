package mailbox

import (
	"encoding/binary"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMessage_layout(t *testing.T) {
	msg := NewMessage(TagAllocateMemory, []uint32{4096, 4096, uint32(MemFlagDirect)}, 1)

	assert.Equal(t, []uint32{
		36,                 // total size in bytes
		0,                  // request code
		0x3000C,            // tag
		12,                 // value buffer size
		12,                 // request length
		4096, 4096, 1 << 2, // values
		0, // end tag
	}, msg.Words())
	assert.Equal(t, TagAllocateMemory, msg.Tag())
	assert.Equal(t, 3, msg.Len())
	assert.False(t, msg.Succeeded())
	assert.False(t, msg.TagResponded())
}

func TestNewMessage_responseLongerThanRequest(t *testing.T) {
	msg := NewMessage(TagClockRate, []uint32{uint32(ClockV3D)}, 2)
	assert.Equal(t, []uint32{32, 0, 0x30002, 8, 4, 5, 0, 0}, msg.Words())
}

func TestNewQuery(t *testing.T) {
	msg := NewQuery(TagVCMemory, 2)
	assert.Equal(t, []uint32{32, 0, 0x10006, 8, 8, 0, 0, 0}, msg.Words())
}

func TestMessage_Content_outOfRange(t *testing.T) {
	msg := NewQuery(TagFirmwareRevision, 1)
	assert.Panics(t, func() { msg.Content(1) })
	assert.Panics(t, func() { msg.Content(-1) })
	assert.NotPanics(t, func() { msg.Content(0) })
}

func TestCheckReturnValue(t *testing.T) {
	for _, tc := range []struct {
		value uint32
		want  bool
	}{
		{0x80000000, true},
		{0x80000001, false},
		{0, false},
		{0x7FFFFFFF, false},
		{0xFFFFFFFF, false},
	} {
		if got := checkReturnValue(tc.value); got != tc.want {
			t.Errorf("checkReturnValue(0x%08x) = %v, want %v", tc.value, got, tc.want)
		}
	}
}

func TestMessage_response(t *testing.T) {
	msg := NewQuery(TagFirmwareRevision, 1)
	words := msg.Words()
	words[1] = CodeResponseSuccess
	words[4] = ResponseFlag | 4
	words[5] = 0xCAFE

	assert.True(t, msg.Succeeded())
	assert.True(t, msg.TagResponded())
	assert.Equal(t, uint32(4), msg.ResponseLength())
	assert.Equal(t, uint32(0xCAFE), msg.Content(0))

	words[1] = CodeResponseError
	assert.False(t, msg.Succeeded())
}

func TestMessage_MarshalBinary(t *testing.T) {
	msg := NewQuery(TagBoardRevision, 1)
	b, err := msg.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, b, 28)
	for i, w := range msg.Words() {
		assert.Equal(t, w, binary.NativeEndian.Uint32(b[i*4:]), "word %d", i)
	}
}

func TestMessage_Dump(t *testing.T) {
	var s strings.Builder
	require.NoError(t, NewQuery(TagBoardModel, 1).Dump(&s))
	assert.Equal(t, ""+
		"0000: 0x0000001c\n"+
		"0004: 0x00000000\n"+
		"0008: 0x00010001\n"+
		"000c: 0x00000004\n"+
		"0010: 0x00000004\n"+
		"0014: 0x00000000\n"+
		"0018: 0x00000000\n", s.String())
}

func TestBusToPhysical(t *testing.T) {
	assert.Equal(t, uint32(0x1E000000), BusToPhysical(0xDE000000))
	assert.Equal(t, uint32(0x1E000000), BusToPhysical(0x5E000000))
	assert.Equal(t, uint32(0x1E000000), BusToPhysical(0x1E000000))
}

func TestTag_String(t *testing.T) {
	assert.Equal(t, "EXECUTE_QPU", TagExecuteQPU.String())
	assert.Equal(t, "TAG(0x00012345)", Tag(0x12345).String())
}

func TestWithPageSize_invalid(t *testing.T) {
	for _, size := range []uint32{0, 3, 4097} {
		_, err := resolveOptions([]Option{WithPageSize(size)})
		assert.ErrorIs(t, err, errInvalidPageSize, "size %d", size)
	}
	cfg, err := resolveOptions([]Option{nil, WithPageSize(1 << 16)})
	require.NoError(t, err)
	assert.Equal(t, uint32(1<<16), cfg.pageSize)
}

func TestClockID_values(t *testing.T) {
	ids := []ClockID{ClockEMMC, ClockUART, ClockARM, ClockCore, ClockV3D, ClockH264, ClockISP, ClockSDRAM, ClockPixel, ClockPWM}
	for i, id := range ids {
		assert.Equal(t, ClockID(i+1), id)
	}
}
