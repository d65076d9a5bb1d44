package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/joeycumines/go-vc4cl/cmdqueue"
	"github.com/joeycumines/go-vc4cl/event"
	"github.com/joeycumines/go-vc4cl/mailbox"
	"github.com/spf13/cobra"
)

var errAllocationRejected = errors.New("firmware rejected the allocation")

type allocOptions struct {
	size    uint32
	align   uint32
	pattern uint8
	dump    bool
}

// verifyBuffer fills buf with the pattern, then reads it back, through a
// queue, returning the duration of both commands.
func verifyBuffer(q *cmdqueue.Queue, buf *mailbox.DeviceBuffer, pattern byte) (time.Duration, error) {
	fill, err := q.Enqueue(event.CommandFillBuffer, cmdqueue.NewFillBufferAction(buf, []byte{pattern}, 0, buf.Size()))
	if err != nil {
		return 0, err
	}
	defer func() { _ = fill.Release() }()

	dst := make([]byte, buf.Size())
	read, err := q.Enqueue(event.CommandReadBuffer, cmdqueue.NewReadBufferAction(buf, 0, dst), fill)
	if err != nil {
		return 0, err
	}
	defer func() { _ = read.Release() }()

	if status := read.WaitFor(); status != event.Complete {
		return 0, fmt.Errorf("read back failed: %w", status.Err())
	}
	for i, b := range dst {
		if b != pattern {
			return 0, fmt.Errorf("read back mismatch at offset %d: 0x%02x", i, b)
		}
	}

	start, err := fill.Profile()
	if err != nil {
		return 0, err
	}
	end, err := read.Profile()
	if err != nil {
		return 0, err
	}
	return time.Duration(end.Ended - start.Queued), nil
}

func runAlloc(cmd *cobra.Command, a *app, opts *allocOptions) (err error) {
	ctx := a.newContext()
	defer func() { err = errors.Join(err, ctx.Release()) }()

	mb, err := ctx.Mailbox()
	if err != nil {
		return err
	}

	buf, err := mb.AllocateBuffer(opts.size, opts.align, mailbox.MemFlagDirect|mailbox.MemFlagZero)
	if err != nil {
		return err
	}
	if buf == nil {
		return errAllocationRejected
	}
	defer func() { err = errors.Join(err, buf.Release()) }()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "allocated %d bytes, handle %d, bus address %s\n", buf.Size(), buf.Handle(), buf.Device())

	q, err := cmdqueue.New(ctx, cmdqueue.WithProfiling(true))
	if err != nil {
		return err
	}
	elapsed, err := verifyBuffer(q, buf, opts.pattern)
	if closeErr := q.Close(context.Background()); closeErr != nil {
		err = errors.Join(err, closeErr)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "verified fill and read back of 0x%02x in %s\n", opts.pattern, elapsed)

	if opts.dump {
		if err := buf.Dump(out); err != nil {
			return err
		}
	}

	return nil
}

// newAllocCmd creates the "vc4mbox alloc" subcommand.
func newAllocCmd(a *app) *cobra.Command {
	var opts allocOptions
	cmd := &cobra.Command{
		Use:   "alloc",
		Short: "Allocate, verify, and release a GPU buffer",
		Long:  "Allocates and locks GPU memory, maps it into the process, fills it and reads it\nback through a command queue, then releases it.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.size == 0 {
				return errors.New("size must be greater than zero")
			}
			return runAlloc(cmd, a, &opts)
		},
	}
	flags := cmd.Flags()
	flags.Uint32Var(&opts.size, "size", 4096, "size of the buffer, in bytes")
	flags.Uint32Var(&opts.align, "align", 0, "alignment of the buffer, raised to at least the page size")
	flags.Uint8Var(&opts.pattern, "pattern", 0xA5, "byte to fill the buffer with")
	flags.BoolVar(&opts.dump, "dump", false, "dump the content of the buffer")
	return cmd
}
