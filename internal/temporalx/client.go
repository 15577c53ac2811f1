// Package temporalx holds the Temporal client setup shared by the API and
// the worker binaries.
package temporalx

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	temporalsdkclient "go.temporal.io/sdk/client"

	"github.com/kairon-labs/kairon-backend/internal/platform/logger"
)

type Config struct {
	Address   string
	Namespace string
	TaskQueue string
}

func LoadConfig() Config {
	cfg := Config{
		Address:   strings.TrimSpace(os.Getenv("TEMPORAL_ADDRESS")),
		Namespace: strings.TrimSpace(os.Getenv("TEMPORAL_NAMESPACE")),
		TaskQueue: strings.TrimSpace(os.Getenv("TEMPORAL_TASK_QUEUE")),
	}
	if cfg.Namespace == "" {
		cfg.Namespace = "default"
	}
	if cfg.TaskQueue == "" {
		cfg.TaskQueue = "kairon-events"
	}
	return cfg
}

// NewClient dials Temporal with a bounded retry loop so the binary survives a
// broker that comes up after it. Returns (nil, nil) when no address is
// configured, in which case callers fall back to the standalone executor.
func NewClient(log *logger.Logger) (temporalsdkclient.Client, error) {
	cfg := LoadConfig()
	if cfg.Address == "" {
		if log != nil {
			log.Warn("TEMPORAL_ADDRESS not set; durable event executor disabled")
		}
		return nil, nil
	}

	opts := temporalsdkclient.Options{
		HostPort:  cfg.Address,
		Namespace: cfg.Namespace,
		Logger:    log,
	}

	deadline := time.Now().Add(60 * time.Second)
	backoff := 250 * time.Millisecond
	for attempt := 1; ; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		c, err := temporalsdkclient.DialContext(ctx, opts)
		cancel()
		if err == nil {
			if log != nil && attempt > 1 {
				log.Info("Connected to Temporal", "address", cfg.Address, "namespace", cfg.Namespace, "attempts", attempt)
			}
			return c, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("temporal dial failed (address=%s namespace=%s): %w", cfg.Address, cfg.Namespace, err)
		}
		if log != nil {
			log.Warn("Temporal not reachable; retrying", "address", cfg.Address, "attempt", attempt, "error", err)
		}
		time.Sleep(backoff)
		if backoff < 5*time.Second {
			backoff *= 2
		}
	}
}
