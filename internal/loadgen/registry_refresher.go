package loadgen

import (
	"context"
	"fmt"
	"log/slog"

	"sensor-bridge/internal/shared_kernel/domain"

	"github.com/robfig/cron/v3"
)

var scheduleParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ValidateSchedule reports whether schedule is a five field cron expression
// or a descriptor such as "@every 5m". An empty schedule is valid and means
// the registry is never re-announced.
func ValidateSchedule(schedule string) error {
	if schedule == "" {
		return nil
	}
	if _, err := scheduleParser.Parse(schedule); err != nil {
		return fmt.Errorf("parsing cron schedule: %w", err)
	}
	return nil
}

func NewRegistryRefresher(schedule string, publisher *RegistryPublisher, registry domain.SensorRegistry) (*RegistryRefresher, error) {
	if err := ValidateSchedule(schedule); err != nil {
		return nil, err
	}
	return &RegistryRefresher{
		schedule:  schedule,
		publisher: publisher,
		registry:  registry,
		cron:      cron.New(cron.WithParser(scheduleParser)),
	}, nil
}

// RegistryRefresher re-announces the same registry on a schedule so consumers
// that joined after the first announcement learn the topology too.
type RegistryRefresher struct {
	schedule  string
	publisher *RegistryPublisher
	registry  domain.SensorRegistry
	cron      *cron.Cron
}

func (r *RegistryRefresher) Enabled() bool {
	return r.schedule != ""
}

// Start schedules the announcements. Runs stop once ctx is done or Stop is
// called, whichever comes first.
func (r *RegistryRefresher) Start(ctx context.Context) error {
	if !r.Enabled() {
		return nil
	}

	_, err := r.cron.AddFunc(r.schedule, func() {
		if ctx.Err() != nil {
			return
		}
		if err := r.publisher.Publish(ctx, r.registry); err != nil {
			slog.Error("re-announcing sensor registry", slog.Any("error", err))
		}
	})
	if err != nil {
		return fmt.Errorf("scheduling registry refresh: %w", err)
	}

	r.cron.Start()
	slog.Info("registry refresh scheduled", slog.String("schedule", r.schedule))
	return nil
}

// Stop halts the scheduler and waits for a running announcement to finish.
func (r *RegistryRefresher) Stop() {
	if !r.Enabled() {
		return
	}
	<-r.cron.Stop().Done()
}
