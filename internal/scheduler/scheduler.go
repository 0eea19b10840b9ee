package scheduler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"github.com/squadops/squadconf/internal/config"
	"github.com/squadops/squadconf/internal/notify"
	"github.com/squadops/squadconf/internal/service"
)

// Scheduler runs the periodic jobs: expiry sweeps, local admin config
// writes, and local rotation writes. Cron expressions come from the
// jobs section of the configuration.
type Scheduler struct {
	cron     *cron.Cron
	db       *gorm.DB
	cfg      *config.Config
	notifier notify.Notifier
}

func New(db *gorm.DB, cfg *config.Config, notifier notify.Notifier) *Scheduler {
	return &Scheduler{
		cron:     cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger))),
		db:       db,
		cfg:      cfg,
		notifier: notifier,
	}
}

// Start registers the jobs and starts the cron loop.
func (s *Scheduler) Start() error {
	jobs := []struct {
		name string
		spec string
		run  func()
	}{
		{"expiry_sweep", s.cfg.Jobs.ExpirySweep, s.runExpirySweep},
		{"admin_configs", s.cfg.Jobs.AdminConfigs, s.runAdminConfigs},
		{"rotation_configs", s.cfg.Jobs.RotationConfigs, s.runRotationConfigs},
	}

	for _, job := range jobs {
		if job.spec == "" {
			slog.Info("job disabled", "job", job.name)
			continue
		}
		if _, err := s.cron.AddFunc(job.spec, job.run); err != nil {
			return fmt.Errorf("failed to schedule %s (%q): %w", job.name, job.spec, err)
		}
		slog.Info("job scheduled", "job", job.name, "cron", job.spec)
	}

	s.cron.Start()
	return nil
}

// Stop stops the cron loop and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	slog.Info("scheduler stopped")
}

func (s *Scheduler) runExpirySweep() {
	ctx := context.Background()
	if err := service.DeactivateExpiredGrants(ctx, s.db, s.notifier); err != nil {
		slog.Error("expiry sweep failed for grants", "error", err)
	}
	if err := service.DeactivateExpiredPrivileged(ctx, s.db, s.notifier); err != nil {
		slog.Error("expiry sweep failed for privileged users", "error", err)
	}
	if err := service.DeactivateExpiredPacks(ctx, s.db, s.notifier); err != nil {
		slog.Error("expiry sweep failed for packs", "error", err)
	}
}

func (s *Scheduler) runAdminConfigs() {
	if err := service.WriteLocalServerConfigs(s.db, s.cfg.Output.AdminConfigsDir); err != nil {
		slog.Error("local admin config write failed", "error", err)
	}
}

func (s *Scheduler) runRotationConfigs() {
	if err := service.WriteLocalRotationConfigs(s.db, s.cfg.Output.RotationsDir); err != nil {
		slog.Error("local rotation write failed", "error", err)
	}
}
