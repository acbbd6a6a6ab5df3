package util

import (
	"fmt"
	"io"
	"os"
	"runtime/debug"

	log "github.com/sirupsen/logrus"

	"github.com/sidkik/rdmstage/pkg/errors"
)

// Mocked for unit testing.
var (
	exit             = os.Exit
	stderr io.Writer = os.Stderr
)

// HandleFatalError handles errors that are severe enough to terminate the
// program.
func HandleFatalError(err error) {
	if friendlyErr, ok := errors.GetFriendlyError(err); ok {
		fmt.Fprintln(stderr, friendlyErr.FriendlyMessage())
	} else {
		fmt.Fprintf(stderr, "Fatal error: %s\n", err)
	}
	log.WithError(err).Debug("Exiting due to fatal error")
	exit(1)
}

// HandlePanic logs the stack of a panicking goroutine before letting the
// panic continue. It must be deferred.
func HandlePanic() {
	if r := recover(); r != nil {
		log.WithFields(log.Fields{
			"panic": r,
			"stack": string(debug.Stack()),
		}).Error("Unexpected panic")
		panic(r)
	}
}
