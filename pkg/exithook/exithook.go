// Package exithook runs a cleanup function once when the process is
// interrupted, panics, or finishes normally.
package exithook

import (
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// Hook owns one cleanup function.
type Hook struct {
	fn   func()
	once sync.Once

	mu      sync.Mutex
	signals chan os.Signal
	stop    chan struct{}

	// exit ends the process after a signal
	exit func(code int)
}

// New returns a hook for fn. Nothing is installed until Register.
func New(fn func()) *Hook {
	return &Hook{fn: fn, exit: os.Exit}
}

// Register runs the cleanup and exits when SIGINT or SIGTERM arrives.
// Registering twice is a no-op.
func (h *Hook) Register() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.signals != nil {
		return
	}

	h.signals = make(chan os.Signal, 1)
	h.stop = make(chan struct{})
	signal.Notify(h.signals, os.Interrupt, syscall.SIGTERM)

	go func(signals <-chan os.Signal, stop <-chan struct{}) {
		select {
		case sig := <-signals:
			h.Run()
			h.exit(exitCode(sig))
		case <-stop:
		}
	}(h.signals, h.stop)
}

// Run runs the cleanup if it has not run yet. Safe to call from any
// goroutine, any number of times.
func (h *Hook) Run() {
	h.once.Do(h.fn)
}

// Recover is deferred in main: on panic it runs the cleanup and panics
// again, otherwise it does nothing.
func (h *Hook) Recover() {
	if r := recover(); r != nil {
		h.Run()
		panic(r)
	}
}

// Stop removes the signal handling installed by Register.
func (h *Hook) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.signals == nil {
		return
	}
	signal.Stop(h.signals)
	close(h.stop)
	h.signals = nil
}

func exitCode(sig os.Signal) int {
	if s, ok := sig.(syscall.Signal); ok {
		return 128 + int(s)
	}
	return 1
}
