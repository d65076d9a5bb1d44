package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/joeycumines/go-vc4cl/cmdqueue"
	"github.com/joeycumines/go-vc4cl/mailbox"
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
	"github.com/spf13/cobra"
)

// opener matches [mailbox.DefaultOpener].
type opener func(devicePath, memoryPath string, opts ...mailbox.Option) func() (*mailbox.Mailbox, error)

// app is the state shared by all commands.
type app struct {
	open       opener
	logger     *logiface.Logger[logiface.Event]
	devicePath string
	memoryPath string
	logLevel   string
}

// newContext opens a context, the mailbox is opened on first use.
func (a *app) newContext() *cmdqueue.Context {
	lazy := mailbox.NewLazy(a.open(a.devicePath, a.memoryPath, mailbox.WithLogger(a.logger)))
	return cmdqueue.NewContext(lazy, cmdqueue.WithLogger(a.logger))
}

func parseLevel(s string) (logiface.Level, error) {
	for level := logiface.LevelDisabled; level <= logiface.LevelTrace; level++ {
		if strings.EqualFold(s, level.String()) {
			return level, nil
		}
	}
	return logiface.LevelDisabled, fmt.Errorf("invalid log level %q", s)
}

func newLogger(w io.Writer, level logiface.Level) *logiface.Logger[logiface.Event] {
	return stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(w)),
		stumpy.L.WithLevel(level),
	).Logger()
}

// newRootCmd creates the root vc4mbox command with all subcommands attached.
func newRootCmd(open opener) *cobra.Command {
	a := &app{open: open}

	cmd := &cobra.Command{
		Use:           "vc4mbox",
		Short:         "VideoCore IV mailbox diagnostics",
		Long:          "vc4mbox talks to the VideoCore IV firmware through the property mailbox,\nreporting board information, and exercising GPU memory allocation.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := parseLevel(a.logLevel)
			if err != nil {
				return err
			}
			a.logger = newLogger(cmd.ErrOrStderr(), level)
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&a.devicePath, "device", mailbox.DefaultDevicePath, "mailbox character device")
	flags.StringVar(&a.memoryPath, "mem", mailbox.DefaultMemoryPath, "physical memory device, used to map GPU memory")
	flags.StringVar(&a.logLevel, "log-level", logiface.LevelWarning.String(), "log level, one of disabled, emerg, alert, crit, err, warning, notice, info, debug, trace")

	cmd.AddCommand(
		newInfoCmd(a),
		newAllocCmd(a),
	)

	return cmd
}
