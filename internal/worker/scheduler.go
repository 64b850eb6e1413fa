package worker

import (
	"context"

	"github.com/robfig/cron/v3"

	"github.com/rescuemate/alertsync/internal/bridge"
	"github.com/rescuemate/alertsync/internal/pkg/logger"
	syncops "github.com/rescuemate/alertsync/internal/sync"
)

// Scheduler periodically refreshes the local alert cache so it converges
// even when no push arrives. Each run broadcasts the completion signal.
type Scheduler struct {
	cron   *cron.Cron
	logger *logger.Logger
}

// NewScheduler creates a scheduler with the given cron expression
func NewScheduler(ops *syncops.Operations, hub Broadcaster, schedule string, log *logger.Logger) (*Scheduler, error) {
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		ctx := context.Background()
		if _, err := ops.FetchAndCacheAlerts(ctx, false); err != nil {
			log.ErrorWithErr(err, "scheduled refresh failed")
			return
		}
		hub.Broadcast(bridge.Message{Type: bridge.MessageSyncComplete})
		log.Debug("scheduled refresh completed")
	})
	if err != nil {
		return nil, err
	}
	return &Scheduler{cron: c, logger: log}, nil
}

// Start begins the schedule
func (s *Scheduler) Start() {
	s.logger.Info("starting refresh scheduler")
	s.cron.Start()
}

// Stop halts the schedule, waiting for a running job to finish
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
