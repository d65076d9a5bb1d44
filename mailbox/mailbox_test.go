package mailbox_test

import (
	"bytes"
	"errors"
	"math"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/joeycumines/go-vc4cl/mailbox"
	"github.com/joeycumines/go-vc4cl/mailbox/mailboxtest"
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openMailbox(t *testing.T, opts ...mailbox.Option) (*mailboxtest.Firmware, *mailbox.Mailbox) {
	t.Helper()
	fw := mailboxtest.New()
	mb, err := fw.Open(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = mb.Close() })
	return fw, mb
}

func TestNew_enablesQPUs(t *testing.T) {
	fw, mb := openMailbox(t)
	assert.Equal(t, 1, fw.Enabled())
	assert.Equal(t, uint32(4096), mb.PageSize())

	require.NoError(t, mb.Close())
	assert.Equal(t, 0, fw.Enabled())
	// transport and mapper
	assert.Equal(t, 2, fw.Closed())

	// idempotent
	require.NoError(t, mb.Close())
	assert.Equal(t, 2, fw.Closed())
	assert.Equal(t, 2, fw.CallCount(mailbox.TagEnableQPU))
}

func TestNew_enableRejected(t *testing.T) {
	fw := mailboxtest.New()
	fw.Reject(mailbox.TagEnableQPU, true)
	mb, err := fw.Open()
	assert.Nil(t, mb)
	assert.Error(t, err)
	assert.Equal(t, 2, fw.Closed())
}

func TestNew_enableCallFailed(t *testing.T) {
	fw := mailboxtest.New()
	fw.FailCalls(syscall.EIO)
	mb, err := fw.Open()
	assert.Nil(t, mb)
	assert.ErrorIs(t, err, syscall.EIO)
	var callErr *mailbox.CallError
	require.ErrorAs(t, err, &callErr)
	assert.Equal(t, mailbox.TagEnableQPU, callErr.Tag)
}

func TestNew_nilArguments(t *testing.T) {
	fw := mailboxtest.New()
	_, err := mailbox.New(nil, fw)
	assert.Error(t, err)
	_, err = mailbox.New(fw, nil)
	assert.Error(t, err)
	assert.Equal(t, 1, fw.Closed())
}

func TestEnableQPU_sentinelIsSuccess(t *testing.T) {
	fw, mb := openMailbox(t)

	// already enabled, by the mailbox itself
	ok, err := mb.EnableQPU(true)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 2, fw.Enabled())

	// still in use
	ok, err = mb.EnableQPU(false)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, fw.Enabled())
}

func TestCall_closed(t *testing.T) {
	fw, mb := openMailbox(t)
	require.NoError(t, mb.Close())
	calls := len(fw.Calls())

	_, err := mb.FirmwareRevision()
	assert.ErrorIs(t, err, mailbox.ErrClosed)
	_, err = mb.AllocateBuffer(4096, 4096, mailbox.MemFlagDirect)
	assert.ErrorIs(t, err, mailbox.ErrClosed)
	assert.Len(t, fw.Calls(), calls)
}

func TestCall_error(t *testing.T) {
	fw, mb := openMailbox(t)
	fw.FailCalls(syscall.ENOTTY)

	_, err := mb.MemAlloc(4096, 4096, mailbox.MemFlagDirect)
	require.Error(t, err)
	var callErr *mailbox.CallError
	require.ErrorAs(t, err, &callErr)
	assert.Equal(t, mailbox.TagAllocateMemory, callErr.Tag)
	assert.Equal(t, syscall.ENOTTY, callErr.Errno())
	assert.Contains(t, err.Error(), "ALLOCATE_MEMORY")

	fw.FailCalls(errors.New("some failure"))
	_, err = mb.BoardRevision()
	require.ErrorAs(t, err, &callErr)
	assert.Equal(t, syscall.Errno(0), callErr.Errno())

	fw.FailCalls(nil)
}

func TestQueries(t *testing.T) {
	_, mb := openMailbox(t)

	v, err := mb.FirmwareRevision()
	require.NoError(t, err)
	assert.Equal(t, uint32(mailboxtest.DefaultFirmwareRevision), v)

	v, err = mb.BoardRevision()
	require.NoError(t, err)
	assert.Equal(t, uint32(mailboxtest.DefaultBoardRevision), v)

	serial, err := mb.BoardSerial()
	require.NoError(t, err)
	assert.Equal(t, uint64(mailboxtest.DefaultBoardSerial), serial)

	r, err := mb.VCMemory()
	require.NoError(t, err)
	assert.Equal(t, mailbox.MemoryRange{Base: mailboxtest.DefaultVCMemoryBase, Size: mailboxtest.DefaultVCMemorySize}, r)

	r, err = mb.ARMMemory()
	require.NoError(t, err)
	assert.Equal(t, mailbox.MemoryRange{Size: mailboxtest.DefaultARMMemorySize}, r)

	v, err = mb.ClockRate(mailbox.ClockV3D)
	require.NoError(t, err)
	assert.Equal(t, uint32(mailboxtest.DefaultV3DClockRate), v)

	v, err = mb.MaxClockRate(mailbox.ClockV3D)
	require.NoError(t, err)
	assert.Equal(t, uint32(mailboxtest.DefaultV3DClockRate), v)

	v, err = mb.Temperature()
	require.NoError(t, err)
	assert.Equal(t, uint32(mailboxtest.DefaultTemperature), v)

	v, err = mb.MaxTemperature()
	require.NoError(t, err)
	assert.Equal(t, uint32(mailboxtest.DefaultMaxTemperature), v)
}

func TestQueries_rejected(t *testing.T) {
	fw, mb := openMailbox(t)
	fw.Reject(mailbox.TagFirmwareRevision, true)
	fw.Reject(mailbox.TagVCMemory, true)

	v, err := mb.FirmwareRevision()
	assert.NoError(t, err)
	assert.Zero(t, v)

	r, err := mb.VCMemory()
	assert.NoError(t, err)
	assert.Zero(t, r)

	total, err := mb.TotalGPUMemory()
	assert.NoError(t, err)
	assert.Zero(t, total)
}

func TestTotalGPUMemory(t *testing.T) {
	_, mb := openMailbox(t)
	total, err := mb.TotalGPUMemory()
	require.NoError(t, err)
	assert.Equal(t, uint32(mailboxtest.DefaultVCMemorySize/2), total)
}

func TestExecuteCode(t *testing.T) {
	fw, mb := openMailbox(t)

	ok, err := mb.ExecuteCode(0xDE000000, 1, 2, 3)
	require.NoError(t, err)
	assert.True(t, ok)

	calls := fw.Calls()
	last := calls[len(calls)-1]
	assert.Equal(t, mailbox.TagExecuteCode, last.Tag)
	assert.Equal(t, []uint32{0xDE000000, 1, 2, 3, 0, 0, 0}, last.Request)

	fw.Reject(mailbox.TagExecuteCode, true)
	ok, err = mb.ExecuteCode(0xDE000000)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestExecuteCode_tooManyArguments(t *testing.T) {
	fw, mb := openMailbox(t)
	before := fw.CallCount(mailbox.TagExecuteCode)
	ok, err := mb.ExecuteCode(0xDE000000, 1, 2, 3, 4, 5, 6, 7)
	assert.ErrorIs(t, err, mailbox.ErrTooManyArguments)
	assert.False(t, ok)
	assert.Equal(t, before, fw.CallCount(mailbox.TagExecuteCode))
}

func TestExecuteQPU(t *testing.T) {
	fw, mb := openMailbox(t)

	control := mailbox.ControlList{
		Host:    []uint32{0xDE001000, 0xDE002000, 0xDE001100, 0xDE002000},
		Address: 0xDE000000,
	}
	ok, err := mb.ExecuteQPU(2, control, true, 10*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = mb.ExecuteQPU(2, control, false, math.MaxUint32*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Equal(t, []mailboxtest.Execution{
		{NumQPUs: 2, Control: 0xDE000000, NoFlush: 0, Timeout: 10000},
		{NumQPUs: 2, Control: 0xDE000000, NoFlush: 1, Timeout: math.MaxUint32},
	}, fw.Executions())

	fw.SetQPUResult(0x80000000)
	ok, err = mb.ExecuteQPU(1, mailbox.ControlList{Address: 0xDE000000}, true, time.Second)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestExecuteQPU_invalidArguments(t *testing.T) {
	fw, mb := openMailbox(t)

	ok, err := mb.ExecuteQPU(1, mailbox.ControlList{Address: 0xDE000000}, true, 0x1_0000_0000*time.Millisecond)
	assert.ErrorIs(t, err, mailbox.ErrTimeoutOutOfRange)
	assert.False(t, ok)

	ok, err = mb.ExecuteQPU(1, mailbox.ControlList{Address: 0xDE000000}, true, -time.Millisecond)
	assert.ErrorIs(t, err, mailbox.ErrTimeoutOutOfRange)
	assert.False(t, ok)

	ok, err = mb.ExecuteQPU(2, mailbox.ControlList{Host: make([]uint32, 3), Address: 0xDE000000}, true, time.Second)
	assert.ErrorIs(t, err, mailbox.ErrControlListTooShort)
	assert.False(t, ok)

	assert.Empty(t, fw.Executions())
}

func TestWithLogger_dumpsBuffers(t *testing.T) {
	var buf bytes.Buffer
	logger := stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(&buf)),
		stumpy.L.WithLevel(logiface.LevelTrace),
	).Logger()

	_, mb := openMailbox(t, mailbox.WithLogger(logger))
	_, err := mb.BoardModel()
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "mailbox: buffer before")
	assert.Contains(t, out, "mailbox: buffer after")
	assert.Contains(t, out, "BOARD_MODEL")
	assert.Contains(t, out, "mailbox: opened")
}

func TestMailbox_concurrentCalls(t *testing.T) {
	fw, mb := openMailbox(t)

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 8 {
				buf, err := mb.AllocateBuffer(4096, 0, mailbox.MemFlagDirect)
				if !assert.NoError(t, err) || !assert.NotNil(t, buf) {
					return
				}
				assert.NoError(t, buf.Release())
			}
		}()
	}
	wg.Wait()

	assert.Zero(t, fw.Allocations())
	assert.Zero(t, fw.Mapped())
}
