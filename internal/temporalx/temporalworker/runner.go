// Package temporalworker runs the event worker: it polls the task queue and
// executes queued events via the manager.
package temporalworker

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/activity"
	temporalsdkclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/kairon-labs/kairon-backend/internal/events"
	"github.com/kairon-labs/kairon-backend/internal/platform/logger"
	"github.com/kairon-labs/kairon-backend/internal/temporalx"
	"github.com/kairon-labs/kairon-backend/internal/temporalx/eventrun"
)

type Runner struct {
	log     *logger.Logger
	tc      temporalsdkclient.Client
	manager *events.Manager
}

func NewRunner(log *logger.Logger, tc temporalsdkclient.Client, manager *events.Manager) (*Runner, error) {
	if tc == nil {
		return nil, fmt.Errorf("temporal client is not configured")
	}
	if manager == nil {
		return nil, fmt.Errorf("event manager is not configured")
	}
	return &Runner{log: log, tc: tc, manager: manager}, nil
}

func (r *Runner) Start(ctx context.Context) error {
	cfg := temporalx.LoadConfig()
	r.log.Info("Starting event worker", "namespace", cfg.Namespace, "task_queue", cfg.TaskQueue)

	w := worker.New(r.tc, cfg.TaskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize:     4,
		MaxConcurrentWorkflowTaskExecutionSize: 4,
	})

	acts := &eventrun.Activities{Manager: r.manager, Log: r.log}
	w.RegisterWorkflowWithOptions(eventrun.Workflow, workflow.RegisterOptions{Name: events.EventWorkflowName})
	w.RegisterActivityWithOptions(acts.Run, activity.RegisterOptions{Name: eventrun.ActivityRun})

	if err := w.Start(); err != nil {
		return err
	}
	if ctx != nil {
		go func() {
			<-ctx.Done()
			w.Stop()
		}()
	}
	return nil
}
