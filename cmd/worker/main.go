package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kairon-labs/kairon-backend/internal/app"
	"github.com/kairon-labs/kairon-backend/internal/temporalx/temporalworker"
)

// The worker shares the API's wiring; which queue it drains follows
// EVENT_EXECUTOR. Standalone deployments run events inside the API process
// and have no worker to start.
func main() {
	a, err := app.New()
	if err != nil {
		fmt.Printf("Failed to start: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	switch a.Cfg.EventExecutor {
	case "broker":
		sub, err := a.Services.Broker.ConsumeJobs(ctx, a.Services.Events, a.Cfg.WorkerDurable)
		if err != nil {
			a.Log.Error("Event consumer failed", "error", err)
			os.Exit(1)
		}
		defer func() { _ = sub.Drain() }()
	case "workflow":
		runner, err := temporalworker.NewRunner(a.Log, a.Services.Temporal, a.Services.Events)
		if err != nil {
			a.Log.Error("Worker init failed", "error", err)
			os.Exit(1)
		}
		if err := runner.Start(ctx); err != nil {
			a.Log.Error("Worker start failed", "error", err)
			os.Exit(1)
		}
	default:
		a.Log.Error("No worker runtime for executor", "executor", a.Cfg.EventExecutor)
		os.Exit(1)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	sig := <-stop
	a.Log.Info("Worker shutting down", "signal", sig.String())
}
