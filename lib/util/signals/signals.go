package signals

import (
	"os"
	"os/signal"
	"sync"

	"github.com/go-i2p/logger"
)

var log = logger.GetGoI2PLogger()

// sigChan is buffered so a signal delivered while Handle is busy is not lost.
var sigChan = make(chan os.Signal, 1)

// Handler is called when a signal is received.
type Handler func()

var (
	mu           sync.RWMutex
	reloaders    []Handler
	interrupters []Handler
	stopOnce     sync.Once
)

// RegisterReloadHandler registers f to run on SIGHUP. Nil handlers are ignored.
func RegisterReloadHandler(f Handler) {
	if f == nil {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	reloaders = append(reloaders, f)
}

// RegisterInterruptHandler registers f to run on SIGINT or SIGTERM. Handlers
// run in registration order. Nil handlers are ignored.
func RegisterInterruptHandler(f Handler) {
	if f == nil {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	interrupters = append(interrupters, f)
}

func handleReload() {
	mu.RLock()
	snapshot := append([]Handler(nil), reloaders...)
	mu.RUnlock()
	runAll("reload", snapshot)
}

func handleInterrupted() {
	mu.RLock()
	snapshot := append([]Handler(nil), interrupters...)
	mu.RUnlock()
	runAll("interrupt", snapshot)
}

func runAll(kind string, handlers []Handler) {
	for _, h := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.WithFields(logger.Fields{
						"at":     "signals.runAll",
						"kind":   kind,
						"reason": r,
					}).Error("Signal handler panicked")
				}
			}()
			h()
		}()
	}
}

// StopHandle stops signal delivery and makes Handle return. Only the first
// call has an effect.
func StopHandle() {
	stopOnce.Do(func() {
		signal.Stop(sigChan)
		close(sigChan)
	})
}
