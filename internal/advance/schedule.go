package advance

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	appLog "countdown/internal/log"
)

// NewScheduler returns a cron scheduler, evaluated in loc, that runs Sweep
// on spec (standard five-field syntax). The caller starts and stops it.
func NewScheduler(ctx context.Context, spec string, loc *time.Location, s *Service, l Lister) (*cron.Cron, error) {
	c := cron.New(cron.WithLocation(loc))
	_, err := c.AddFunc(spec, func() {
		n, err := s.Sweep(ctx, l)
		if err != nil {
			appLog.Warn("scheduled auto-advance finished with errors", "advanced", n, "err", err)
			return
		}
		appLog.Info("scheduled auto-advance finished", "advanced", n)
	})
	if err != nil {
		return nil, fmt.Errorf("invalid advance schedule %q: %w", spec, err)
	}
	return c, nil
}
