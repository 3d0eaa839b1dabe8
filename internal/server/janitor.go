package server

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// StartJanitor schedules preview expiry on a cron spec such as "@every 5m".
// Stop the returned scheduler on shutdown.
func (s *Server) StartJanitor(spec string, ttl time.Duration) (*cron.Cron, error) {
	c := cron.New(cron.WithLocation(time.UTC))
	_, err := c.AddFunc(spec, func() { s.sweep(ttl) })
	if err != nil {
		return nil, fmt.Errorf("scheduling preview expiry %q: %w", spec, err)
	}
	c.Start()
	s.logger.Info("preview janitor started", "schedule", spec, "ttl", ttl)
	return c, nil
}

func (s *Server) sweep(ttl time.Duration) {
	if n := s.store.Expire(ttl); n > 0 {
		s.logger.Info("expired previews", "count", n)
	}
}
