package service

import (
	"context"

	"domaincheck/internal/utils"

	"github.com/robfig/cron/v3"
)

// Sweeper is anything holding expiring state that must be pruned periodically.
type Sweeper interface {
	Sweep() int
}

type Scheduler struct {
	Cron     *cron.Cron
	Sessions Sweeper
	Spec     string
}

func NewScheduler(sessions Sweeper) *Scheduler {
	return &Scheduler{
		Cron:     cron.New(),
		Sessions: sessions,
		Spec:     "@every 1m",
	}
}

func (s *Scheduler) Start() error {
	_, err := s.Cron.AddFunc(s.Spec, s.sweep)
	if err != nil {
		return err
	}
	s.Cron.Start()
	utils.Log.Info("scheduler started", utils.Field("schedule", s.Spec))
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish or ctx to end.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.Cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}

func (s *Scheduler) sweep() {
	remaining := s.Sessions.Sweep()
	utils.Log.Debug("sessions swept", utils.Field("remaining", remaining))
}
