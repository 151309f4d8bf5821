package signals

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetHandlers(t *testing.T) {
	t.Helper()
	mu.Lock()
	savedReload, savedInterrupt := reloaders, interrupters
	reloaders, interrupters = nil, nil
	mu.Unlock()
	t.Cleanup(func() {
		mu.Lock()
		reloaders, interrupters = savedReload, savedInterrupt
		mu.Unlock()
	})
}

func TestInterruptHandlersRunInOrder(t *testing.T) {
	resetHandlers(t)

	var calls []int
	RegisterInterruptHandler(func() { calls = append(calls, 1) })
	RegisterInterruptHandler(nil)
	RegisterInterruptHandler(func() { calls = append(calls, 2) })

	handleInterrupted()
	assert.Equal(t, []int{1, 2}, calls)
}

func TestReloadHandlers(t *testing.T) {
	resetHandlers(t)

	reloaded := 0
	RegisterReloadHandler(func() { reloaded++ })
	RegisterReloadHandler(nil)

	handleReload()
	handleReload()
	assert.Equal(t, 2, reloaded)

	handleInterrupted()
	assert.Equal(t, 2, reloaded, "interrupts do not run reload handlers")
}

func TestPanickingHandlerDoesNotStopOthers(t *testing.T) {
	resetHandlers(t)

	ran := false
	RegisterInterruptHandler(func() { panic("boom") })
	RegisterInterruptHandler(func() { ran = true })

	assert.NotPanics(t, handleInterrupted)
	assert.True(t, ran)
}

func TestInterruptContext(t *testing.T) {
	resetHandlers(t)

	ctx, cancel := InterruptContext(context.Background())
	defer cancel()
	require.NoError(t, ctx.Err())

	handleInterrupted()

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("context was not cancelled by an interrupt")
	}
}

func TestStopHandle(t *testing.T) {
	done := make(chan struct{})
	go func() {
		Handle()
		close(done)
	}()

	StopHandle()
	StopHandle()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Handle did not return after StopHandle")
	}
}
