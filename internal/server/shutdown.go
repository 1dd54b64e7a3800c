package server

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// ShutdownHandler coordinates graceful teardown of the API server and its
// dependencies. Hooks run in priority order, lower first.
type ShutdownHandler struct {
	mu           sync.Mutex
	hooks        []ShutdownHook
	timeout      time.Duration
	signals      []os.Signal
	log          *slog.Logger
	shutdownCh   chan struct{}
	doneCh       chan struct{}
	started      bool
	shutdownOnce sync.Once
	doneOnce     sync.Once
}

// ShutdownHook is one teardown step.
type ShutdownHook struct {
	Name     string
	Priority int
	Fn       func(ctx context.Context) error
}

// NewShutdownHandler creates a handler listening for SIGTERM and SIGINT.
func NewShutdownHandler(timeout time.Duration, log *slog.Logger) *ShutdownHandler {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &ShutdownHandler{
		timeout:    timeout,
		signals:    []os.Signal{syscall.SIGTERM, syscall.SIGINT},
		log:        log,
		shutdownCh: make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
}

// RegisterHook adds a teardown step. Lower priority runs first.
func (s *ShutdownHandler) RegisterHook(name string, priority int, fn func(ctx context.Context) error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.hooks = append(s.hooks, ShutdownHook{Name: name, Priority: priority, Fn: fn})
	for i := len(s.hooks) - 1; i > 0; i-- {
		if s.hooks[i].Priority < s.hooks[i-1].Priority {
			s.hooks[i], s.hooks[i-1] = s.hooks[i-1], s.hooks[i]
		}
	}
}

// Start begins listening for shutdown signals.
func (s *ShutdownHandler) Start() {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, s.signals...)

	go func() {
		select {
		case sig := <-sigCh:
			signal.Stop(sigCh)
			s.log.Info("shutdown signal received", "signal", sig.String())
		case <-s.shutdownCh:
			signal.Stop(sigCh)
		}
		s.runHooks()
	}()
}

// Shutdown triggers teardown without a signal.
func (s *ShutdownHandler) Shutdown() {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if !started {
		return
	}
	s.shutdownOnce.Do(func() { close(s.shutdownCh) })
}

// Wait blocks until all hooks have run.
func (s *ShutdownHandler) Wait() {
	<-s.doneCh
}

// Done returns a channel that closes when teardown is complete.
func (s *ShutdownHandler) Done() <-chan struct{} {
	return s.doneCh
}

// ShutdownCh returns a channel that closes when teardown starts.
func (s *ShutdownHandler) ShutdownCh() <-chan struct{} {
	return s.shutdownCh
}

func (s *ShutdownHandler) runHooks() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	s.mu.Lock()
	hooks := make([]ShutdownHook, len(s.hooks))
	copy(hooks, s.hooks)
	s.mu.Unlock()

	for _, hook := range hooks {
		if err := hook.Fn(ctx); err != nil {
			s.log.Error("shutdown hook failed", "hook", hook.Name, "error", err)
		}
	}

	s.doneOnce.Do(func() { close(s.doneCh) })
}
