package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ExpireStalePending cancels pending requests whose start time has passed
// without confirmation. It is called periodically by the expiry worker and
// returns how many requests were cancelled.
func (s *Service) ExpireStalePending(ctx context.Context) (int, error) {
	now := s.now()
	stale, err := s.repo.FindStalePending(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("find stale pending appointments: %w", err)
	}

	expired := 0
	for i := range stale {
		appt := &stale[i]
		_, err := s.applyTransition(ctx, SystemActor, appt, StatusCancelled, EventAppointmentExpired)
		s.metrics.ObserveSweep(Outcome(err))
		if err != nil {
			if errors.Is(err, ErrInvalidTransition) || errors.Is(err, ErrAppointmentNotFound) {
				// confirmed or cancelled since FindStalePending
				continue
			}
			s.log.Error().Err(err).Str("appointment_id", appt.ID.String()).Msg("failed to expire appointment")
			continue
		}
		expired++
	}
	return expired, nil
}

// RunExpiryLoop sweeps once immediately and then every interval until ctx is
// done.
func (s *Service) RunExpiryLoop(ctx context.Context, interval time.Duration) {
	s.expireOnce(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("stopping expiry loop")
			return
		case <-ticker.C:
			s.expireOnce(ctx)
		}
	}
}

func (s *Service) expireOnce(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	n, err := s.ExpireStalePending(runCtx)
	if err != nil {
		s.log.Error().Err(err).Msg("expiry run failed")
		return
	}
	s.log.Info().Int("expired", n).Dur("duration", time.Since(start)).Msg("expiry run complete")
}
