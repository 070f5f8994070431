package services

import (
	"context"
	"time"

	"github.com/juju/clock"
	"github.com/rs/zerolog"
	"gopkg.in/tomb.v2"

	"github.com/example/marketplace/internal/logging"
)

// SessionSweeper periodically runs the expired-session cleanup.
type SessionSweeper struct {
	tomb     tomb.Tomb
	auth     *AuthService
	clock    clock.Clock
	interval time.Duration
	logger   zerolog.Logger
}

// StartSessionSweeper launches the sweep loop. Stop it with Stop.
func StartSessionSweeper(auth *AuthService, clk clock.Clock, interval time.Duration) *SessionSweeper {
	s := &SessionSweeper{
		auth:     auth,
		clock:    clk,
		interval: interval,
		logger:   logging.Component("session_sweeper"),
	}
	s.tomb.Go(s.loop)
	return s
}

func (s *SessionSweeper) loop() error {
	s.logger.Info().Dur("interval", s.interval).Msg("session sweeper started")
	for {
		select {
		case <-s.tomb.Dying():
			return nil
		case <-s.clock.After(s.interval):
			ctx := s.tomb.Context(context.Background())
			if _, err := s.auth.CleanupExpiredSessions(ctx, nil); err != nil {
				s.logger.Error().Err(err).Msg("session sweep failed")
			}
		}
	}
}

// Stop ends the loop and waits for an in-flight sweep to finish.
func (s *SessionSweeper) Stop() error {
	s.tomb.Kill(nil)
	return s.tomb.Wait()
}
