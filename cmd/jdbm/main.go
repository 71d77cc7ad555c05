// Command jdbm is a journaling key-value store on the command line.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd(os.Stdin, os.Stdout, os.Stderr).Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "jdbm:", err)
		os.Exit(1)
	}
}
