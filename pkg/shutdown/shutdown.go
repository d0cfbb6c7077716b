package shutdown

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/psantana5/stratum/pkg/logging"
)

// Hook releases one resource during shutdown
type Hook struct {
	Name string
	Fn   func(context.Context) error
}

// Manager runs registered hooks in reverse registration order
type Manager struct {
	mu      sync.Mutex
	hooks   []Hook
	timeout time.Duration
	log     *logging.Logger
	once    sync.Once
}

// New creates a shutdown manager that gives hooks timeout in total
func New(timeout time.Duration, log *logging.Logger) *Manager {
	if log == nil {
		log = logging.Nop()
	}
	return &Manager{timeout: timeout, log: log}
}

// Register adds a named hook
func (m *Manager) Register(name string, fn func(context.Context) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = append(m.hooks, Hook{Name: name, Fn: fn})
}

// Wait blocks until SIGINT, SIGTERM or ctx cancellation, then runs Shutdown
func (m *Manager) Wait(ctx context.Context) error {
	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	<-sigCtx.Done()
	m.log.Info("Initiating graceful shutdown")
	return m.Shutdown()
}

// Shutdown runs every hook once. Later calls are no-ops.
func (m *Manager) Shutdown() error {
	var errs []error
	m.once.Do(func() {
		m.mu.Lock()
		hooks := append([]Hook(nil), m.hooks...)
		m.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
		defer cancel()

		for i := len(hooks) - 1; i >= 0; i-- {
			h := hooks[i]
			if err := h.Fn(ctx); err != nil {
				m.log.Error("Shutdown hook failed", logging.Fields{"hook": h.Name, "error": err.Error()})
				errs = append(errs, fmt.Errorf("%s: %w", h.Name, err))
				continue
			}
			m.log.Debug("Shutdown hook complete", logging.Fields{"hook": h.Name})
		}
		m.log.Info("Graceful shutdown complete")
	})
	return errors.Join(errs...)
}

// StopHTTPServer adapts a server's Shutdown method to a hook
func StopHTTPServer(server interface{ Shutdown(context.Context) error }) func(context.Context) error {
	return server.Shutdown
}

// CloseResource adapts an io.Closer to a hook
func CloseResource(closer interface{ Close() error }) func(context.Context) error {
	return func(context.Context) error {
		return closer.Close()
	}
}
