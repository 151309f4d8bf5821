package signals

import "context"

// InterruptContext returns a context that is cancelled on the first SIGINT or
// SIGTERM, or when the returned cancel function is called. Handle must be
// running for signals to be observed.
func InterruptContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	RegisterInterruptHandler(Handler(cancel))
	return ctx, cancel
}
