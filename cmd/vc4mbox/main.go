// Command vc4mbox inspects, and exercises, the VideoCore IV property mailbox
// of a Raspberry Pi.
package main

import (
	"fmt"
	"os"

	"github.com/joeycumines/go-vc4cl/mailbox"
)

func main() {
	if err := newRootCmd(mailbox.DefaultOpener).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "vc4mbox:", err)
		os.Exit(1)
	}
}
