package app

import (
	"context"
	"log/slog"
	"time"

	"waybill/cmd/internal/auth/reset"
	"waybill/cmd/internal/auth/session"
)

// Sweeper periodically removes expired session and reset-token rows.
// Expired rows are already invisible to lookups; the sweep is purely about
// keeping the tables bounded.
type Sweeper struct {
	log          *slog.Logger
	interval     time.Duration
	initialDelay time.Duration

	sessions *session.Service
	resets   *reset.Service

	done chan struct{}
}

// NewSweeper constructs a Sweeper. It does not start until Start is called.
func NewSweeper(log *slog.Logger, interval, initialDelay time.Duration, sessions *session.Service, resets *reset.Service) *Sweeper {
	if log == nil {
		log = slog.Default()
	}
	return &Sweeper{
		log:          log,
		interval:     interval,
		initialDelay: initialDelay,
		sessions:     sessions,
		resets:       resets,
		done:         make(chan struct{}),
	}
}

// Start launches the sweep loop. The loop exits when ctx is canceled.
func (s *Sweeper) Start(ctx context.Context) {
	go func() {
		defer close(s.done)

		select {
		case <-ctx.Done():
			return
		case <-time.After(s.initialDelay):
		}
		s.sweep(ctx)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.sweep(ctx)
			}
		}
	}()
}

// Wait blocks until the sweep loop has exited.
func (s *Sweeper) Wait() {
	<-s.done
}

func (s *Sweeper) sweep(ctx context.Context) {
	now := time.Now().UTC()

	if _, err := s.sessions.Cleanup(ctx, now); err != nil {
		s.log.ErrorContext(ctx, "sweep.sessions.fail", "err", err)
	}
	if n, err := s.resets.Cleanup(ctx, now); err != nil {
		s.log.ErrorContext(ctx, "sweep.resets.fail", "err", err)
	} else if n > 0 {
		s.log.InfoContext(ctx, "sweep.resets", "removed", n)
	}
}
