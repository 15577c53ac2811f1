package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"

	"github.com/kairon-labs/kairon-backend/internal/domain"
	"github.com/kairon-labs/kairon-backend/internal/pkg/apperr"
)

// StandaloneExecutor runs jobs in-process, synchronously with the queue
// call. Used by tests and single-node deployments.
type StandaloneExecutor struct {
	manager *Manager
}

func NewStandaloneExecutor() *StandaloneExecutor { return &StandaloneExecutor{} }

// Bind wires the executor to its manager after both exist.
func (e *StandaloneExecutor) Bind(m *Manager) { e.manager = m }

func (e *StandaloneExecutor) Submit(ctx context.Context, job *Job) (interface{}, error) {
	if e.manager == nil {
		return nil, apperr.Internal("standalone executor is not bound", nil)
	}
	return nil, e.manager.Run(ctx, job)
}

// Publisher is the durable-queue side of the broker executor.
type Publisher interface {
	PublishJob(subject string, payload []byte) (messageID string, err error)
}

// BrokerExecutor hands jobs to a durable message broker. The message id and
// publish timestamp become the executor response.
type BrokerExecutor struct {
	pub           Publisher
	subjectPrefix string
}

func NewBrokerExecutor(pub Publisher, subjectPrefix string) *BrokerExecutor {
	if subjectPrefix == "" {
		subjectPrefix = "events"
	}
	return &BrokerExecutor{pub: pub, subjectPrefix: subjectPrefix}
}

func (e *BrokerExecutor) Submit(_ context.Context, job *Job) (interface{}, error) {
	payload, err := json.Marshal(job)
	if err != nil {
		return nil, apperr.Internal("encode job", err)
	}
	messageID, err := e.pub.PublishJob(e.subjectPrefix+"."+string(job.Class), payload)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindProvider, "Failed to enqueue event", err)
	}
	return map[string]interface{}{
		"message_id": messageID,
		"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
	}, nil
}

// EventWorkflowName is the workflow type executed per queued job on the
// durable remote executor.
const EventWorkflowName = "ExecuteEventWorkflow"

// EnvPair is one payload argument in the name/value list convention the
// remote runtime expects.
type EnvPair struct {
	Name  string      `json:"name"`
	Value interface{} `json:"value"`
}

// WorkflowExecutor starts one durable workflow per job. The workflow and run
// ids become the executor response.
type WorkflowExecutor struct {
	client    client.Client
	taskQueue string
}

func NewWorkflowExecutor(c client.Client, taskQueue string) *WorkflowExecutor {
	return &WorkflowExecutor{client: c, taskQueue: taskQueue}
}

func (e *WorkflowExecutor) Submit(ctx context.Context, job *Job) (interface{}, error) {
	options := client.StartWorkflowOptions{
		ID:                    string(job.Class) + "_" + job.ExecutorLogID,
		TaskQueue:             e.taskQueue,
		WorkflowIDReusePolicy: enums.WORKFLOW_ID_REUSE_POLICY_REJECT_DUPLICATE,
	}
	run, err := e.client.ExecuteWorkflow(ctx, options, EventWorkflowName, EncodeJobArgs(job))
	if err != nil {
		if _, ok := err.(*serviceerror.WorkflowExecutionAlreadyStarted); ok {
			return nil, apperr.Wrap(apperr.KindEventInProgress, apperr.MsgEventInProgress, err)
		}
		return nil, apperr.Wrap(apperr.KindProvider, "Failed to start event workflow", err)
	}
	return map[string]interface{}{
		"workflow_id": run.GetID(),
		"run_id":      run.GetRunID(),
	}, nil
}

// EncodeJobArgs flattens a job into the name/value pair list convention.
func EncodeJobArgs(job *Job) []EnvPair {
	pairs := []EnvPair{
		{Name: "event_class", Value: string(job.Class)},
		{Name: "executor_log_id", Value: job.ExecutorLogID},
		{Name: "bot", Value: job.Bot.String()},
		{Name: "user", Value: job.User},
	}
	for key, value := range job.Payload {
		pairs = append(pairs, EnvPair{Name: key, Value: value})
	}
	return pairs
}

// DecodeJobArgs rebuilds a job from its pair list on the worker side.
func DecodeJobArgs(pairs []EnvPair) (*Job, error) {
	job := &Job{Payload: Payload{}}
	for _, pair := range pairs {
		switch pair.Name {
		case "event_class":
			if s, ok := pair.Value.(string); ok {
				job.Class = domain.EventClass(s)
			}
		case "executor_log_id":
			if s, ok := pair.Value.(string); ok {
				job.ExecutorLogID = s
			}
		case "bot":
			s, ok := pair.Value.(string)
			if !ok {
				return nil, apperr.Validation("Invalid bot id in job payload")
			}
			bot, err := uuid.Parse(s)
			if err != nil {
				return nil, apperr.Validation("Invalid bot id in job payload")
			}
			job.Bot = bot
		case "user":
			if s, ok := pair.Value.(string); ok {
				job.User = s
			}
		default:
			job.Payload[pair.Name] = pair.Value
		}
	}
	if !job.Class.Valid() || job.ExecutorLogID == "" {
		return nil, apperr.Validation("Incomplete job payload")
	}
	return job, nil
}
