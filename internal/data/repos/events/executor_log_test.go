package events

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/kairon-labs/kairon-backend/internal/data/repos/testutil"
	"github.com/kairon-labs/kairon-backend/internal/domain"
	"github.com/kairon-labs/kairon-backend/internal/pkg/dbctx"
)

func logRow(bot uuid.UUID, execID string, status domain.EventStatus, ts time.Time) *domain.ExecutorLog {
	return &domain.ExecutorLog{
		ID:            uuid.New(),
		ExecutorLogID: execID,
		EventClass:    domain.EventModelTraining,
		TaskType:      domain.TaskEvent,
		Data:          datatypes.JSON([]byte(`{}`)),
		Status:        status,
		Bot:           bot,
		User:          "tester@kairon.ai",
		Timestamp:     ts,
	}
}

func TestExecutorLogRepoLifecycle(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.WithTx(context.Background(), tx)

	bot := testutil.SeedBot(t, tx)
	repo := NewExecutorLogRepo(db, testutil.Logger(t))

	execID := uuid.NewString()
	now := time.Now().UTC()

	for i, status := range []domain.EventStatus{domain.StatusEnqueued, domain.StatusInitiated} {
		if err := repo.Append(dbc, logRow(bot, execID, status, now.Add(time.Duration(i)*time.Second))); err != nil {
			t.Fatalf("Append(%s): %v", status, err)
		}
	}

	inProgress, err := repo.InProgress(dbc, bot)
	if err != nil {
		t.Fatalf("InProgress: %v", err)
	}
	if !inProgress {
		t.Fatalf("InProgress: expected true while Initiated")
	}

	if err := repo.Append(dbc, logRow(bot, execID, domain.StatusCompleted, now.Add(5*time.Second))); err != nil {
		t.Fatalf("Append(Completed): %v", err)
	}

	inProgress, err = repo.InProgress(dbc, bot)
	if err != nil {
		t.Fatalf("InProgress after completion: %v", err)
	}
	if inProgress {
		t.Fatalf("InProgress: expected false after Completed")
	}

	latest, err := repo.LatestByExecutorLogID(dbc, execID)
	if err != nil {
		t.Fatalf("LatestByExecutorLogID: %v", err)
	}
	if latest.Status != domain.StatusCompleted {
		t.Fatalf("LatestByExecutorLogID: expected Completed, got %s", latest.Status)
	}

	// every transition is preserved as its own row
	history, err := repo.ListByExecutorLogID(dbc, execID)
	if err != nil || len(history) != 3 {
		t.Fatalf("ListByExecutorLogID: err=%v len=%d", err, len(history))
	}
}

func TestExecutorLogRepoDailyCount(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.WithTx(context.Background(), tx)

	bot := testutil.SeedBot(t, tx)
	repo := NewExecutorLogRepo(db, testutil.Logger(t))

	now := time.Now().UTC()
	yesterday := now.Add(-26 * time.Hour)

	// two enqueues today, one yesterday
	for _, ts := range []time.Time{now.Add(-2 * time.Hour), now.Add(-1 * time.Hour), yesterday} {
		if err := repo.Append(dbc, logRow(bot, uuid.NewString(), domain.StatusEnqueued, ts)); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	// non-enqueue transitions do not count against the quota
	if err := repo.Append(dbc, logRow(bot, uuid.NewString(), domain.StatusInitiated, now)); err != nil {
		t.Fatalf("Append: %v", err)
	}

	count, err := repo.CountSinceMidnight(dbc, bot, domain.EventModelTraining)
	if err != nil {
		t.Fatalf("CountSinceMidnight: %v", err)
	}
	// rows timestamped before today's midnight are outside the window; with
	// the two recent rows the count is at most 2 and at least 1 depending on
	// how close midnight is.
	if count < 1 || count > 2 {
		t.Fatalf("CountSinceMidnight: expected 1..2, got %d", count)
	}
}
