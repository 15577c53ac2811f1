package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	corpusrepo "github.com/kairon-labs/kairon-backend/internal/data/repos/corpus"
	eventsrepo "github.com/kairon-labs/kairon-backend/internal/data/repos/events"
	"github.com/kairon-labs/kairon-backend/internal/domain"
	"github.com/kairon-labs/kairon-backend/internal/pkg/apperr"
	"github.com/kairon-labs/kairon-backend/internal/pkg/dbctx"
	"github.com/kairon-labs/kairon-backend/internal/platform/logger"
)

// Job is one queued execution handed to an executor.
type Job struct {
	Class         domain.EventClass `json:"event_class"`
	ExecutorLogID string            `json:"executor_log_id"`
	Bot           uuid.UUID         `json:"bot"`
	User          string            `json:"user"`
	Payload       Payload           `json:"payload,omitempty"`
}

// Executor delivers a job to its runtime. A non-nil response identifies the
// remote submission (broker message, workflow run) and is appended to the
// executor log; the standalone executor runs the job inline and returns nil.
type Executor interface {
	Submit(ctx context.Context, job *Job) (interface{}, error)
}

// Manager owns the scheduling gate and the append-only executor log
// lifecycle around the event registry.
type Manager struct {
	logs     eventsrepo.ExecutorLogRepo
	settings corpusrepo.BotSettingsRepo
	deps     *Deps
	executor Executor
	registry map[domain.EventClass]Factory
	log      *logger.Logger
}

func NewManager(logs eventsrepo.ExecutorLogRepo, settings corpusrepo.BotSettingsRepo, deps *Deps, executor Executor, baseLog *logger.Logger) *Manager {
	return &Manager{
		logs:     logs,
		settings: settings,
		deps:     deps,
		executor: executor,
		registry: Registry(),
		log:      baseLog.With("service", "EventManager"),
	}
}

// Queue validates the request, applies the per-bot gate and daily quota,
// writes the Enqueued log row and hands the job to the executor. It returns
// the executor log id shared by every row of this execution.
func (m *Manager) Queue(ctx context.Context, class domain.EventClass, bot uuid.UUID, user string, payload Payload) (string, error) {
	event, err := build(m.registry, m.deps, class, bot, user, payload)
	if err != nil {
		return "", err
	}
	if err := event.Validate(ctx); err != nil {
		return "", err
	}
	dbc := dbctx.New(ctx)
	inProgress, err := m.logs.InProgress(dbc, bot)
	if err != nil {
		return "", err
	}
	if inProgress {
		return "", apperr.EventInProgress()
	}
	limit, err := m.dailyLimit(dbc, bot, class)
	if err != nil {
		return "", err
	}
	count, err := m.logs.CountSinceMidnight(dbc, bot, class)
	if err != nil {
		return "", err
	}
	if count >= int64(limit) {
		return "", apperr.LimitExceeded()
	}

	executorLogID := uuid.NewString()
	if err := m.appendLog(dbc, &logEntry{
		executorLogID: executorLogID,
		class:         class,
		bot:           bot,
		user:          user,
		status:        domain.StatusEnqueued,
		data:          payload,
	}); err != nil {
		return "", err
	}
	m.log.Info("Event enqueued", "event_class", string(class), "bot", bot.String(), "executor_log_id", executorLogID)

	job := &Job{Class: class, ExecutorLogID: executorLogID, Bot: bot, User: user, Payload: payload}
	response, err := m.executor.Submit(ctx, job)
	if err != nil {
		_ = m.appendLog(dbc, &logEntry{
			executorLogID: executorLogID,
			class:         class,
			bot:           bot,
			user:          user,
			status:        domain.StatusFail,
			exception:     err.Error(),
		})
		return "", err
	}
	if response != nil {
		// Remote submission identity, kept on its own row so the enqueue
		// row itself stays the quota marker.
		_ = m.appendLog(dbc, &logEntry{
			executorLogID: executorLogID,
			class:         class,
			bot:           bot,
			user:          user,
			status:        domain.StatusEnqueued,
			response:      response,
			fromExecutor:  true,
		})
	}
	return executorLogID, nil
}

// Run executes a job on the worker side: Initiated row, execute, then a
// Completed or Fail row carrying the response and elapsed milliseconds.
// A job whose latest row was flipped to Aborted is skipped.
func (m *Manager) Run(ctx context.Context, job *Job) error {
	dbc := dbctx.New(ctx)
	latest, err := m.logs.LatestByExecutorLogID(dbc, job.ExecutorLogID)
	if err != nil && err != gorm.ErrRecordNotFound {
		return err
	}
	if latest != nil && latest.Status == domain.StatusAborted {
		m.log.Info("Skipping aborted event", "executor_log_id", job.ExecutorLogID)
		return nil
	}
	event, err := build(m.registry, m.deps, job.Class, job.Bot, job.User, job.Payload)
	if err != nil {
		return err
	}
	if err := m.appendLog(dbc, &logEntry{
		executorLogID: job.ExecutorLogID,
		class:         job.Class,
		bot:           job.Bot,
		user:          job.User,
		status:        domain.StatusInitiated,
		fromExecutor:  true,
	}); err != nil {
		return err
	}

	start := time.Now()
	response, execErr := event.Execute(ctx)
	elapsed := float64(time.Since(start).Milliseconds())
	if execErr != nil {
		m.log.Error("Event failed", "event_class", string(job.Class), "executor_log_id", job.ExecutorLogID, "error", execErr)
		return m.appendLog(dbc, &logEntry{
			executorLogID: job.ExecutorLogID,
			class:         job.Class,
			bot:           job.Bot,
			user:          job.User,
			status:        domain.StatusFail,
			exception:     execErr.Error(),
			elapsed:       elapsed,
			fromExecutor:  true,
		})
	}
	m.log.Info("Event completed", "event_class", string(job.Class), "executor_log_id", job.ExecutorLogID, "elapsed_ms", elapsed)
	return m.appendLog(dbc, &logEntry{
		executorLogID: job.ExecutorLogID,
		class:         job.Class,
		bot:           job.Bot,
		user:          job.User,
		status:        domain.StatusCompleted,
		response:      response,
		elapsed:       elapsed,
		fromExecutor:  true,
	})
}

// Abort flips the most recent row of an execution to Aborted. Workers check
// this state before starting work.
func (m *Manager) Abort(ctx context.Context, executorLogID, user string) error {
	dbc := dbctx.New(ctx)
	latest, err := m.logs.LatestByExecutorLogID(dbc, executorLogID)
	if err != nil {
		return apperr.FromDB(err, "Execution not found")
	}
	for _, terminal := range domain.TerminalStatuses() {
		if latest.Status == terminal {
			return apperr.Conflict("Event is already finished")
		}
	}
	return m.appendLog(dbc, &logEntry{
		executorLogID: executorLogID,
		class:         latest.EventClass,
		bot:           latest.Bot,
		user:          user,
		status:        domain.StatusAborted,
	})
}

// History lists every row of one execution in order.
func (m *Manager) History(ctx context.Context, executorLogID string) ([]*domain.ExecutorLog, error) {
	return m.logs.ListByExecutorLogID(dbctx.New(ctx), executorLogID)
}

// ListForBot returns the newest log rows of a bot.
func (m *Manager) ListForBot(ctx context.Context, bot uuid.UUID, limit int) ([]*domain.ExecutorLog, error) {
	return m.logs.ListForBot(dbctx.New(ctx), bot, limit)
}

// dailyLimit maps the event class to its per-day quota from BotSettings.
func (m *Manager) dailyLimit(dbc dbctx.Context, bot uuid.UUID, class domain.EventClass) (int, error) {
	settings, err := m.settings.Get(dbc, bot)
	if err != nil && err != gorm.ErrRecordNotFound {
		return 0, err
	}
	if settings == nil {
		settings = &domain.BotSettings{
			TrainingLimitPerDay: 5,
			TestLimitPerDay:     5,
			ImportLimitPerDay:   5,
			EventLimitPerDay:    10,
		}
	}
	switch class {
	case domain.EventModelTraining:
		return settings.TrainingLimitPerDay, nil
	case domain.EventModelTesting:
		return settings.TestLimitPerDay, nil
	case domain.EventDataImporter:
		return settings.ImportLimitPerDay, nil
	default:
		return settings.EventLimitPerDay, nil
	}
}

type logEntry struct {
	executorLogID string
	class         domain.EventClass
	bot           uuid.UUID
	user          string
	status        domain.EventStatus
	data          Payload
	response      interface{}
	exception     string
	elapsed       float64
	fromExecutor  bool
}

func (m *Manager) appendLog(dbc dbctx.Context, entry *logEntry) error {
	row := &domain.ExecutorLog{
		ID:            uuid.New(),
		ExecutorLogID: entry.executorLogID,
		EventClass:    entry.class,
		TaskType:      domain.TaskEvent,
		Status:        entry.status,
		Exception:     entry.exception,
		ElapsedTime:   entry.elapsed,
		FromExecutor:  entry.fromExecutor,
		Bot:           entry.bot,
		User:          entry.user,
		Timestamp:     time.Now().UTC(),
	}
	if entry.data != nil {
		if b, err := json.Marshal(entry.data); err == nil {
			row.Data = datatypes.JSON(b)
		}
	}
	if entry.response != nil {
		if b, err := json.Marshal(entry.response); err == nil {
			row.Response = datatypes.JSON(b)
		}
	}
	return m.logs.Append(dbc, row)
}
