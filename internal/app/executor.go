package app

import (
	"fmt"

	"github.com/kairon-labs/kairon-backend/internal/broker"
	"github.com/kairon-labs/kairon-backend/internal/events"
	"github.com/kairon-labs/kairon-backend/internal/platform/logger"
	"github.com/kairon-labs/kairon-backend/internal/temporalx"
)

// wireExecutor picks the event runtime. The standalone executor needs a
// Bind call once the manager exists, so it is returned separately.
func wireExecutor(cfg Config, b *broker.Broker, s *Services, log *logger.Logger) (events.Executor, *events.StandaloneExecutor, error) {
	switch cfg.EventExecutor {
	case "", "standalone":
		standalone := events.NewStandaloneExecutor()
		return standalone, standalone, nil
	case "broker":
		if b == nil {
			return nil, nil, fmt.Errorf("broker executor selected but broker is not connected")
		}
		return events.NewBrokerExecutor(b, cfg.EventSubjectPrefix), nil, nil
	case "workflow":
		tc, err := temporalx.NewClient(log)
		if err != nil {
			return nil, nil, fmt.Errorf("connect temporal: %w", err)
		}
		if tc == nil {
			log.Warn("Workflow executor selected without TEMPORAL_ADDRESS; falling back to standalone")
			standalone := events.NewStandaloneExecutor()
			return standalone, standalone, nil
		}
		s.Temporal = tc
		return events.NewWorkflowExecutor(tc, temporalx.LoadConfig().TaskQueue), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown event executor %q", cfg.EventExecutor)
	}
}
