package eventrun

import (
	"context"
	"time"

	"go.temporal.io/sdk/activity"

	"github.com/kairon-labs/kairon-backend/internal/events"
	"github.com/kairon-labs/kairon-backend/internal/platform/logger"
)

type Activities struct {
	Manager *events.Manager
	Log     *logger.Logger
}

// Run decodes the job pair list and drives it through the manager. Heartbeats
// keep the activity alive for long trainings.
func (a *Activities) Run(ctx context.Context, args []events.EnvPair) error {
	job, err := events.DecodeJobArgs(args)
	if err != nil {
		return err
	}
	stop := a.startHeartbeat(ctx)
	defer stop()

	a.Log.Info("Running event", "event_class", string(job.Class), "executor_log_id", job.ExecutorLogID)
	return a.Manager.Run(ctx, job)
}

func (a *Activities) startHeartbeat(ctx context.Context) func() {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				activity.RecordHeartbeat(ctx)
			}
		}
	}()
	return func() { close(done) }
}
