package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/joeycumines/go-vc4cl/mailbox"
	"github.com/joeycumines/go-vc4cl/mailbox/mailboxtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func fakeOpener(fw *mailboxtest.Firmware) opener {
	return func(devicePath, memoryPath string, opts ...mailbox.Option) func() (*mailbox.Mailbox, error) {
		return func() (*mailbox.Mailbox, error) {
			return fw.Open(opts...)
		}
	}
}

func execute(t *testing.T, fw *mailboxtest.Firmware, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCmd(fakeOpener(fw))
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestInfoCmd_text(t *testing.T) {
	fw := mailboxtest.New()
	out, _, err := execute(t, fw, "info")
	require.NoError(t, err)

	assert.Contains(t, out, "Firmware revision:  0x5f6e1d4a\n")
	assert.Contains(t, out, "Board revision:     0x00a02082\n")
	assert.Contains(t, out, "VideoCore memory:   0x3b400000 +76 MiB\n")
	assert.Contains(t, out, "GPU memory:         38 MiB\n")
	assert.Contains(t, out, "V3D clock:          250 MHz (max 250 MHz)\n")
	assert.Contains(t, out, "Temperature:        48.3 C (max 85.0 C)\n")

	// the mailbox was closed
	assert.Zero(t, fw.Enabled())
	assert.Equal(t, 2, fw.Closed())
}

func TestInfoCmd_yaml(t *testing.T) {
	fw := mailboxtest.New()
	out, _, err := execute(t, fw, "info", "--format", "yaml")
	require.NoError(t, err)

	var info boardInfo
	require.NoError(t, yaml.Unmarshal([]byte(out), &info))
	assert.Equal(t, boardInfo{
		FirmwareRevision: mailboxtest.DefaultFirmwareRevision,
		BoardModel:       mailboxtest.DefaultBoardModel,
		BoardRevision:    mailboxtest.DefaultBoardRevision,
		BoardSerial:      mailboxtest.DefaultBoardSerial,
		ARMMemory:        mailbox.MemoryRange{Size: mailboxtest.DefaultARMMemorySize},
		VCMemory:         mailbox.MemoryRange{Base: mailboxtest.DefaultVCMemoryBase, Size: mailboxtest.DefaultVCMemorySize},
		GPUMemory:        mailboxtest.DefaultVCMemorySize / 2,
		V3DClockRate:     mailboxtest.DefaultV3DClockRate,
		V3DMaxClockRate:  mailboxtest.DefaultV3DClockRate,
		Temperature:      mailboxtest.DefaultTemperature,
		MaxTemperature:   mailboxtest.DefaultMaxTemperature,
	}, info)
	assert.True(t, strings.HasPrefix(out, "firmware_revision: "))
}

func TestInfoCmd_invalidFormat(t *testing.T) {
	fw := mailboxtest.New()
	_, _, err := execute(t, fw, "info", "--format", "json")
	assert.ErrorContains(t, err, "invalid format")
	assert.Empty(t, fw.Calls())
}

func TestInfoCmd_rejectedQueriesAreZero(t *testing.T) {
	fw := mailboxtest.New()
	fw.Reject(mailbox.TagTemperature, true)
	out, _, err := execute(t, fw, "info")
	require.NoError(t, err)
	assert.Contains(t, out, "Temperature:        0.0 C (max 85.0 C)\n")
}

func TestAllocCmd(t *testing.T) {
	fw := mailboxtest.New()
	out, _, err := execute(t, fw, "alloc", "--size", "64", "--pattern", "90", "--dump")
	require.NoError(t, err)

	assert.Contains(t, out, "allocated 64 bytes, handle 1, bus address 0xde000000\n")
	assert.Contains(t, out, "verified fill and read back of 0x5a in ")
	assert.Contains(t, out, "\nde000000: 5a5a5a5a 5a5a5a5a")
	assert.Contains(t, out, "\nde000020: 5a5a5a5a")

	assert.Zero(t, fw.Allocations())
	assert.Zero(t, fw.Mapped())
	assert.Zero(t, fw.Enabled())
}

func TestAllocCmd_rejected(t *testing.T) {
	fw := mailboxtest.New()
	fw.Reject(mailbox.TagAllocateMemory, true)
	_, _, err := execute(t, fw, "alloc")
	assert.ErrorIs(t, err, errAllocationRejected)
	assert.Zero(t, fw.Enabled())
}

func TestAllocCmd_zeroSize(t *testing.T) {
	fw := mailboxtest.New()
	_, _, err := execute(t, fw, "alloc", "--size", "0")
	assert.Error(t, err)
	assert.Empty(t, fw.Calls())
}

func TestLogLevel(t *testing.T) {
	fw := mailboxtest.New()
	_, stderr, err := execute(t, fw, "--log-level", "debug", "alloc", "--size", "16")
	require.NoError(t, err)
	assert.Contains(t, stderr, "mailbox: opened")
	assert.Contains(t, stderr, "mailbox: allocated buffer")
	assert.Contains(t, stderr, "cmdqueue: queue created")

	_, stderr, err = execute(t, mailboxtest.New(), "info")
	require.NoError(t, err)
	assert.Empty(t, stderr)

	_, _, err = execute(t, mailboxtest.New(), "--log-level", "loud", "info")
	assert.ErrorContains(t, err, "invalid log level")
}

func TestParseLevel(t *testing.T) {
	level, err := parseLevel("TRACE")
	require.NoError(t, err)
	assert.Equal(t, "trace", level.String())
	level, err = parseLevel("disabled")
	require.NoError(t, err)
	assert.False(t, level.Enabled())
}
