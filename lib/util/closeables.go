package util

import (
	"io"
	"sync"

	"go.uber.org/multierr"
)

var (
	closeOnExit []io.Closer
	closeMutex  sync.Mutex
)

// RegisterCloser registers c to be closed by CloseAll.
func RegisterCloser(c io.Closer) {
	closeMutex.Lock()
	defer closeMutex.Unlock()
	closeOnExit = append(closeOnExit, c)
	log.WithField("count", len(closeOnExit)).Debug("Registered closer")
}

// CloseAll closes every registered closer, most recent first, clears the list
// and returns the combined errors.
func CloseAll() error {
	closeMutex.Lock()
	defer closeMutex.Unlock()

	log.WithField("count", len(closeOnExit)).Debug("Closing all registered closers")

	var err error
	for i := len(closeOnExit) - 1; i >= 0; i-- {
		if cerr := closeOnExit[i].Close(); cerr != nil {
			log.WithError(cerr).Warn("Error closing resource")
			err = multierr.Append(err, cerr)
		}
	}
	closeOnExit = nil
	return err
}
