package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/leakmonitor/leakmonitor/internal/monitoring"
)

// Service runs the recurring background jobs: polling due monitors and
// sweeping expired ones.
type Service struct {
	monitoringService *monitoring.Service
	cron              *cron.Cron
}

// NewService creates a new scheduler service
func NewService(monitoringService *monitoring.Service) *Service {
	return &Service{
		monitoringService: monitoringService,
		cron:              cron.New(cron.WithSeconds()),
	}
}

// Start begins the scheduled jobs. Due monitors are checked hourly; each
// monitor's own poll interval decides whether it actually runs. Expiry
// sweeps run daily at 1 AM UTC.
func (s *Service) Start() error {
	_, err := s.cron.AddFunc("0 0 * * * *", func() {
		logrus.Info("Starting scheduled poll of due monitors")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()
		results := s.monitoringService.PollDue(ctx, time.Now().UTC())
		logrus.Infof("Scheduled poll complete, %d monitors polled", len(results))
	})
	if err != nil {
		return err
	}

	_, err = s.cron.AddFunc("0 0 1 * * *", func() {
		logrus.Info("Starting monitor expiry sweep")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if _, err := s.monitoringService.ExpireMonitors(ctx, time.Now().UTC()); err != nil {
			logrus.Errorf("Monitor expiry sweep failed: %v", err)
		}
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	logrus.Info("Scheduler started (hourly due-monitor polls, daily expiry sweep)")
	return nil
}

// Stop stops the scheduler
func (s *Service) Stop() {
	if s.cron != nil {
		s.cron.Stop()
		logrus.Info("Scheduler stopped")
	}
}
