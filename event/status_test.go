package event

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatus_String(t *testing.T) {
	for _, tc := range []struct {
		status Status
		want   string
	}{
		{Complete, "COMPLETE"},
		{Running, "RUNNING"},
		{Submitted, "SUBMITTED"},
		{Queued, "QUEUED"},
		{Unset, "UNSET"},
		{Status(ErrInvalidValue), "CL_INVALID_VALUE"},
		{Status(-1000), "CL_ERROR(-1000)"},
		{Status(7), "STATUS(7)"},
	} {
		if got := tc.status.String(); got != tc.want {
			t.Errorf("%d.String() = %q, want %q", int32(tc.status), got, tc.want)
		}
	}
}

func TestStatus_IsTerminal(t *testing.T) {
	assert.True(t, Complete.IsTerminal())
	assert.True(t, Status(-1).IsTerminal())
	assert.False(t, Running.IsTerminal())
	assert.False(t, Submitted.IsTerminal())
	assert.False(t, Queued.IsTerminal())
	assert.False(t, Unset.IsTerminal())
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, Complete, CodeOf(nil))
	assert.Equal(t, Status(-30), CodeOf(ErrInvalidValue))
	assert.Equal(t, Status(-59), CodeOf(fmt.Errorf("wrapped: %w", ErrInvalidOperation)))
	assert.Equal(t, Status(-5), CodeOf(errors.New("other")))
	assert.Equal(t, Status(-5), CodeOf(ErrorCode(0)))
}

func TestStatus_Err(t *testing.T) {
	assert.NoError(t, Complete.Err())
	assert.NoError(t, Unset.Err())
	assert.ErrorIs(t, Status(-58).Err(), ErrInvalidEvent)
}

func TestCommandType(t *testing.T) {
	assert.Equal(t, "READ_BUFFER", CommandReadBuffer.String())
	assert.Equal(t, "SVM_MEMFILL_ARM", CommandSVMMemFill.String())
	assert.True(t, CommandUser.Valid())
	assert.False(t, CommandType(0x11FF).Valid())
	assert.Equal(t, "COMMAND(0x11ff)", CommandType(0x11FF).String())
}
