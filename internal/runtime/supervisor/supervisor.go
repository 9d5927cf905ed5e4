package supervisor

import (
	"context"
	"runtime/debug"
	"sync"
	"time"

	"birthdayd/pkg/logx"
)

// Supervisor runs named goroutines tied to a shared context, with panic
// recovery and timeout-aware graceful shutdown.
type Supervisor struct {
	ctx    context.Context
	cancel context.CancelFunc

	log logx.Logger
	wg  sync.WaitGroup
}

func New(parent context.Context, log logx.Logger) *Supervisor {
	ctx, cancel := context.WithCancel(parent)
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Supervisor{ctx: ctx, cancel: cancel, log: log}
}

func (s *Supervisor) Context() context.Context { return s.ctx }

// Go starts fn under the supervisor. A panic is logged, never propagated.
func (s *Supervisor) Go(name string, fn func(ctx context.Context) error) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				s.log.Error("panic in goroutine",
					logx.String("name", name),
					logx.Any("panic", r),
					logx.String("stack", string(debug.Stack())))
			}
		}()
		start := time.Now()
		s.log.Debug("goroutine started", logx.String("name", name))
		err := fn(s.ctx)
		if err != nil && !isCanceled(err, s.ctx) {
			s.log.Warn("goroutine exited with error",
				logx.String("name", name),
				logx.Err(err),
				logx.Duration("ran", time.Since(start)))
			return
		}
		s.log.Debug("goroutine stopped",
			logx.String("name", name),
			logx.Duration("ran", time.Since(start)))
	}()
}

func isCanceled(err error, ctx context.Context) bool {
	return ctx.Err() != nil && err == ctx.Err()
}

// Stop cancels the shared context and waits for all goroutines, up to the
// deadline of ctx. Returns false if the wait timed out.
func (s *Supervisor) Stop(ctx context.Context) bool {
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-ctx.Done():
		s.log.Warn("supervisor stop timed out; goroutines left running")
		return false
	}
}
