// Package eventrun is the Temporal side of the event fabric: one workflow per
// queued execution, running the event through a single long activity.
package eventrun

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/kairon-labs/kairon-backend/internal/events"
)

const ActivityRun = "RunEventActivity"

// Workflow executes one queued event. Retries are not delegated to Temporal:
// the executor log is append-only and a re-run would duplicate lifecycle rows,
// so a failed activity fails the workflow and the failure row stands.
func Workflow(ctx workflow.Context, args []events.EnvPair) error {
	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Hour,
		HeartbeatTimeout:    time.Minute,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1},
	})
	return workflow.ExecuteActivity(ctx, ActivityRun, args).Get(ctx, nil)
}
