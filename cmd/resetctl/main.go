// Command resetctl runs and inspects the daily streak reset from the command
// line, for hosts that schedule it externally.
package main

import (
	"errors"
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		var ee *exitError
		if !errors.As(err, &ee) {
			fmt.Fprintf(os.Stderr, "resetctl: %v\n", err)
		}
		os.Exit(1)
	}
}

// exitError fails the process without printing anything more; the command
// already wrote its result.
type exitError struct {
	status int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("daily reset finished with status %d", e.status)
}
