package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/pkg/errors"
)

// listens for interrupts, cancelling the run. Subprocesses are started
// with the run's context, so they are killed too.
type signalListener struct {
	sigChannel chan os.Signal
	stop       chan struct{}
	cancel     context.CancelFunc
	logger     log.Logger
	once       sync.Once
}

func newSignalListener(sigChannel chan os.Signal, cancel context.CancelFunc, logger log.Logger) *signalListener {
	return &signalListener{
		sigChannel: sigChannel,
		stop:       make(chan struct{}),
		cancel:     cancel,
		logger:     log.With(logger, "component", "signal_listener"),
	}
}

func (s *signalListener) Execute() error {
	signal.Notify(s.sigChannel, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(s.sigChannel)

	select {
	case sig := <-s.sigChannel:
		level.Info(s.logger).Log(
			"msg", "beginning shutdown via signal",
			"signal_received", sig,
		)
		return errors.Errorf("interrupted by %s", sig)
	case <-s.stop:
		return nil
	}
}

func (s *signalListener) Interrupt(_ error) {
	// Only perform shutdown tasks on first call to interrupt
	s.once.Do(func() {
		s.cancel()
		close(s.stop)
	})
}
