package tracker

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	corpusrepo "github.com/kairon-labs/kairon-backend/internal/data/repos/corpus"
	trackerrepo "github.com/kairon-labs/kairon-backend/internal/data/repos/tracker"
	"github.com/kairon-labs/kairon-backend/internal/data/repos/testutil"
	"github.com/kairon-labs/kairon-backend/internal/domain"
)

type captureStream struct {
	subjects []string
}

func (c *captureStream) Publish(subject string, _ []byte) error {
	c.subjects = append(c.subjects, subject)
	return nil
}

func newTestTracker(t *testing.T) (*Service, *captureStream, *gorm.DB, uuid.UUID) {
	t.Helper()
	gdb := testutil.DB(t)
	tx := testutil.Tx(t, gdb)
	bot := testutil.SeedBot(t, tx)
	log := testutil.Logger(t)
	stream := &captureStream{}
	svc := NewService(
		trackerrepo.NewTrackerRepo(tx, log),
		corpusrepo.NewTrainingExampleRepo(tx, log),
		stream,
		log,
	)
	return svc, stream, tx, bot
}

func conversationSnapshot(sender string, base float64) *Snapshot {
	confidence := 0.92
	return &Snapshot{
		SenderID:       sender,
		ConversationID: "conv-" + sender,
		Events: []domain.EventEntry{
			{Event: domain.EventSessionStarted, Timestamp: base},
			{Event: domain.EventAction, Name: "action_listen", Timestamp: base + 1},
			{
				Event:     domain.EventUser,
				Text:      "Hi",
				Timestamp: base + 2,
				Intent:    map[string]interface{}{"name": "greet", "confidence": confidence},
				Metadata:  map[string]interface{}{"channel": "slack"},
			},
			{Event: domain.EventAction, Name: "utter_greet", Timestamp: base + 3},
			{
				Event:     domain.EventBot,
				Text:      "Hello!",
				Timestamp: base + 4,
				Data:      map[string]interface{}{"utter_action": "utter_greet"},
			},
		},
	}
}

func countRows(t *testing.T, tx *gorm.DB, bot uuid.UUID, rowType string) int64 {
	t.Helper()
	var count int64
	require.NoError(t, tx.Model(&domain.ConversationEvent{}).
		Where("bot = ? AND type = ?", bot, rowType).
		Count(&count).Error)
	return count
}

func TestSaveWritesDeltaAndFlattened(t *testing.T) {
	svc, stream, tx, bot := newTestTracker(t)
	ctx := context.Background()
	base := float64(time.Now().Unix())

	snap := conversationSnapshot("alice", base)
	require.NoError(t, svc.Save(ctx, bot, snap))

	assert.EqualValues(t, 5, countRows(t, tx, bot, domain.ConversationTypeBot))
	assert.EqualValues(t, 1, countRows(t, tx, bot, domain.ConversationTypeFlattened))
	require.Len(t, stream.subjects, 1)
	assert.Equal(t, "tracker."+bot.String(), stream.subjects[0])

	var flattened domain.ConversationEvent
	require.NoError(t, tx.Where("bot = ? AND type = ?", bot, domain.ConversationTypeFlattened).
		First(&flattened).Error)
	turn := flattened.Data.Data
	assert.Equal(t, "Hi", turn.UserInput)
	assert.Equal(t, "greet", turn.Intent)
	require.NotNil(t, turn.Confidence)
	assert.InDelta(t, 0.92, *turn.Confidence, 1e-9)
	assert.Equal(t, []string{"action_listen", "utter_greet"}, turn.Action)
	require.Len(t, turn.BotResponse, 1)
	assert.Equal(t, "utter_greet", turn.BotResponse[0].UtterAction)
}

func TestSaveIdempotentUnderRedelivery(t *testing.T) {
	svc, _, tx, bot := newTestTracker(t)
	ctx := context.Background()
	snap := conversationSnapshot("alice", float64(time.Now().Unix()))

	require.NoError(t, svc.Save(ctx, bot, snap))
	require.NoError(t, svc.Save(ctx, bot, snap))

	assert.EqualValues(t, 5, countRows(t, tx, bot, domain.ConversationTypeBot))
	assert.EqualValues(t, 1, countRows(t, tx, bot, domain.ConversationTypeFlattened))
}

func TestSaveAppendsOnlyNewEvents(t *testing.T) {
	svc, _, tx, bot := newTestTracker(t)
	ctx := context.Background()
	base := float64(time.Now().Unix())
	snap := conversationSnapshot("alice", base)
	require.NoError(t, svc.Save(ctx, bot, snap))

	extended := conversationSnapshot("alice", base)
	extended.Events = append(extended.Events,
		domain.EventEntry{
			Event:     domain.EventUser,
			Text:      "bye",
			Timestamp: base + 5,
			Intent:    map[string]interface{}{"name": "goodbye", "confidence": 0.8},
		},
		domain.EventEntry{Event: domain.EventAction, Name: "utter_goodbye", Timestamp: base + 6},
	)
	require.NoError(t, svc.Save(ctx, bot, extended))

	assert.EqualValues(t, 7, countRows(t, tx, bot, domain.ConversationTypeBot))
	assert.EqualValues(t, 2, countRows(t, tx, bot, domain.ConversationTypeFlattened))
}

func TestRetrieveSessionScope(t *testing.T) {
	svc, _, _, bot := newTestTracker(t)
	ctx := context.Background()
	base := float64(time.Now().Unix())

	first := conversationSnapshot("alice", base)
	require.NoError(t, svc.Save(ctx, bot, first))

	// A session restart saves with the refreshed tracker: prior session
	// events plus the new session's, so the delta is the new session only.
	second := conversationSnapshot("alice", base)
	second.Events = append(second.Events, conversationSnapshot("alice", base+100).Events...)
	require.NoError(t, svc.Save(ctx, bot, second))

	current, err := svc.Retrieve(ctx, bot, "alice", false)
	require.NoError(t, err)
	assert.Len(t, current, 5)
	assert.Equal(t, domain.EventSessionStarted, current[0].Event)
	assert.Equal(t, base+100, current[0].Timestamp)

	all, err := svc.Retrieve(ctx, bot, "alice", true)
	require.NoError(t, err)
	assert.Len(t, all, 10)
}

func TestRetrieveNormalizesLegacySender(t *testing.T) {
	svc, _, tx, bot := newTestTracker(t)
	ctx := context.Background()
	base := float64(time.Now().Unix())

	legacy := &domain.ConversationEvent{
		ID:        uuid.New(),
		Bot:       bot,
		SenderID:  "42.0",
		Type:      domain.ConversationTypeBot,
		Tag:       domain.TrackerStoreTag,
		Event:     domain.Object(domain.EventEntry{Event: domain.EventUser, Text: "Hi", Timestamp: base}),
		Timestamp: base,
	}
	require.NoError(t, tx.Create(legacy).Error)

	events, err := svc.Retrieve(ctx, bot, "42", true)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "Hi", events[0].Text)

	var count int64
	require.NoError(t, tx.Model(&domain.ConversationEvent{}).
		Where("bot = ? AND sender_id = ?", bot, "42.0").
		Count(&count).Error)
	assert.Zero(t, count)
}

func TestSaveRejectsEmptySender(t *testing.T) {
	svc, _, _, bot := newTestTracker(t)
	require.Error(t, svc.Save(context.Background(), bot, &Snapshot{SenderID: "  "}))
}
