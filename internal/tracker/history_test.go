package tracker

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/kairon-labs/kairon-backend/internal/domain"
)

func seedTurn(t *testing.T, tx *gorm.DB, bot uuid.UUID, sender string, ts float64, input string, actions ...string) {
	t.Helper()
	row := &domain.ConversationEvent{
		ID:       uuid.New(),
		Bot:      bot,
		SenderID: sender,
		Type:     domain.ConversationTypeFlattened,
		Tag:      domain.TrackerStoreTag,
		Data: domain.Object(domain.FlattenedTurn{
			UserInput: input,
			Intent:    "greet",
			Action:    actions,
		}),
		Timestamp: ts,
	}
	require.NoError(t, tx.Create(row).Error)
}

func seedHistory(t *testing.T, tx *gorm.DB, bot uuid.UUID) {
	t.Helper()
	now := float64(time.Now().Unix())
	old := float64(time.Now().AddDate(0, 0, -40).Unix())

	seedTurn(t, tx, bot, "alice", now-300, "Hi", "utter_greet")
	seedTurn(t, tx, bot, "alice", now-200, "gibberish", "utter_please_rephrase")
	seedTurn(t, tx, bot, "bob", now-100, "order status", "action_order_status")
	seedTurn(t, tx, bot, "carol", old, "Hi", "utter_greet")
	seedTurn(t, tx, bot, "carol", now-50, "Hi again", "utter_greet")
}

func TestHistoryWindowValidation(t *testing.T) {
	svc, _, _, bot := newTestTracker(t)
	ctx := context.Background()

	for _, month := range []int{0, 7, -1} {
		users, message := svc.FetchChatUsers(ctx, bot, month)
		assert.Empty(t, users)
		assert.Equal(t, "Month should be between 1 and 6", message)
	}
}

func TestFetchChatUsersAndFallback(t *testing.T) {
	svc, _, tx, bot := newTestTracker(t)
	seedHistory(t, tx, bot)
	ctx := context.Background()

	users, message := svc.FetchChatUsers(ctx, bot, 1)
	require.Empty(t, message)
	assert.Equal(t, []string{"alice", "bob", "carol"}, users)

	metrics, message := svc.VisitorHitFallback(ctx, bot, 1)
	require.Empty(t, message)
	assert.Equal(t, FallbackMetrics{FallbackCount: 1, TotalCount: 4}, metrics)
}

func TestConversationStepsAndTime(t *testing.T) {
	svc, _, tx, bot := newTestTracker(t)
	seedHistory(t, tx, bot)
	ctx := context.Background()

	steps, message := svc.ConversationSteps(ctx, bot, 1)
	require.Empty(t, message)
	assert.Equal(t, []UserMetric{
		{SenderID: "alice", Steps: 2},
		{SenderID: "bob", Steps: 1},
		{SenderID: "carol", Steps: 1},
	}, steps)

	times, message := svc.ConversationTime(ctx, bot, 1)
	require.Empty(t, message)
	require.Len(t, times, 3)
	assert.Equal(t, "alice", times[0].SenderID)
	assert.InDelta(t, 100, times[0].TimeSpent, 1e-9)
	assert.Zero(t, times[1].TimeSpent)
}

func TestEngagedAndNewUsers(t *testing.T) {
	svc, _, tx, bot := newTestTracker(t)
	seedHistory(t, tx, bot)
	ctx := context.Background()

	engaged, message := svc.EngagedUsers(ctx, bot, 1, 2)
	require.Empty(t, message)
	assert.Equal(t, 1, engaged)

	fresh, message := svc.NewUsers(ctx, bot, 1)
	require.Empty(t, message)
	assert.Equal(t, 2, fresh)
}

func TestSuccessfulConversationsAndRetention(t *testing.T) {
	svc, _, tx, bot := newTestTracker(t)
	seedHistory(t, tx, bot)
	ctx := context.Background()

	successful, message := svc.SuccessfulConversations(ctx, bot, 1)
	require.Empty(t, message)
	assert.Equal(t, 2, successful)

	retention, message := svc.UserRetention(ctx, bot, 1)
	require.Empty(t, message)
	assert.InDelta(t, 100.0/3, retention, 1e-6)
}

func TestUserWithMetrics(t *testing.T) {
	svc, _, tx, bot := newTestTracker(t)
	seedHistory(t, tx, bot)

	metrics, message := svc.UserWithMetrics(context.Background(), bot, 1)
	require.Empty(t, message)
	require.Len(t, metrics, 3)
	assert.Equal(t, UserMetrics{SenderID: "alice", Steps: 2, TimeSpent: 100}, metrics[0])
}

func TestFetchChatHistoryAnnotation(t *testing.T) {
	svc, _, tx, bot := newTestTracker(t)
	seedHistory(t, tx, bot)
	ctx := context.Background()

	example := &domain.TrainingExample{
		ID:        uuid.New(),
		Intent:    "greet",
		Text:      "Hi",
		Bot:       bot,
		User:      "tester@kairon.ai",
		Status:    true,
		Timestamp: time.Now().UTC(),
	}
	require.NoError(t, tx.Create(example).Error)

	turns, message := svc.FetchChatHistory(ctx, bot, "alice", 1)
	require.Empty(t, message)
	require.Len(t, turns, 2)
	assert.Equal(t, "Hi", turns[0].UserInput)
	assert.True(t, turns[0].IsTrainingExample)
	assert.False(t, turns[1].IsTrainingExample)
}
