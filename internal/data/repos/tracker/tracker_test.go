package tracker

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/kairon-labs/kairon-backend/internal/data/repos/testutil"
	"github.com/kairon-labs/kairon-backend/internal/domain"
	"github.com/kairon-labs/kairon-backend/internal/pkg/dbctx"
)

func botEvent(bot uuid.UUID, sender string, eventType string, ts float64) *domain.ConversationEvent {
	return &domain.ConversationEvent{
		ID:        uuid.New(),
		Bot:       bot,
		SenderID:  sender,
		Type:      domain.ConversationTypeBot,
		Tag:       domain.TrackerStoreTag,
		Event:     domain.Object(domain.EventEntry{Event: eventType, Timestamp: ts}),
		Timestamp: ts,
		CreatedAt: time.Now().UTC(),
	}
}

func TestTrackerRepoSessionBoundary(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.WithTx(context.Background(), tx)

	bot := testutil.SeedBot(t, tx)
	repo := NewTrackerRepo(db, testutil.Logger(t))

	sender := "sender-1"
	batch := []*domain.ConversationEvent{
		botEvent(bot, sender, domain.EventSessionStarted, 100),
		botEvent(bot, sender, domain.EventUser, 101),
		botEvent(bot, sender, domain.EventBot, 102),
		botEvent(bot, sender, domain.EventSessionStarted, 200),
		botEvent(bot, sender, domain.EventUser, 201),
	}
	if err := repo.AppendBatch(dbc, batch); err != nil {
		t.Fatalf("AppendBatch: %v", err)
	}

	start, err := repo.LatestSessionStart(dbc, bot, sender)
	if err != nil {
		t.Fatalf("LatestSessionStart: %v", err)
	}
	if start != 200 {
		t.Fatalf("LatestSessionStart: expected 200, got %v", start)
	}

	count, err := repo.CountBotEventsSince(dbc, bot, sender, start)
	if err != nil {
		t.Fatalf("CountBotEventsSince: %v", err)
	}
	if count != 2 {
		t.Fatalf("CountBotEventsSince: expected 2, got %d", count)
	}

	// current session only
	current, err := repo.ListBotEvents(dbc, bot, sender, start)
	if err != nil || len(current) != 2 {
		t.Fatalf("ListBotEvents(current): err=%v len=%d", err, len(current))
	}
	// full history
	all, err := repo.ListBotEvents(dbc, bot, sender, 0)
	if err != nil || len(all) != 5 {
		t.Fatalf("ListBotEvents(all): err=%v len=%d", err, len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i].Timestamp < all[i-1].Timestamp {
			t.Fatalf("ListBotEvents: rows out of order at %d", i)
		}
	}

	// no boundary yet for an unknown sender
	start, err = repo.LatestSessionStart(dbc, bot, "never-seen")
	if err != nil || start != 0 {
		t.Fatalf("LatestSessionStart(unknown): start=%v err=%v", start, err)
	}
}

func TestTrackerRepoNormalizeSenderID(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.WithTx(context.Background(), tx)

	bot := testutil.SeedBot(t, tx)
	repo := NewTrackerRepo(db, testutil.Logger(t))

	// legacy rows keyed by the bare integer form
	if err := repo.AppendBatch(dbc, []*domain.ConversationEvent{
		botEvent(bot, "12345", domain.EventSessionStarted, 10),
		botEvent(bot, "12345", domain.EventUser, 11),
	}); err != nil {
		t.Fatalf("AppendBatch: %v", err)
	}

	if err := repo.NormalizeSenderID(dbc, bot, "12345", "user-12345"); err != nil {
		t.Fatalf("NormalizeSenderID: %v", err)
	}

	rows, err := repo.ListBotEvents(dbc, bot, "user-12345", 0)
	if err != nil || len(rows) != 2 {
		t.Fatalf("ListBotEvents after normalize: err=%v len=%d", err, len(rows))
	}
	rows, err = repo.ListBotEvents(dbc, bot, "12345", 0)
	if err != nil || len(rows) != 0 {
		t.Fatalf("ListBotEvents legacy key: err=%v len=%d", err, len(rows))
	}
}

func TestTrackerRepoDelete(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.WithTx(context.Background(), tx)

	bot := testutil.SeedBot(t, tx)
	repo := NewTrackerRepo(db, testutil.Logger(t))

	if err := repo.AppendBatch(dbc, []*domain.ConversationEvent{
		botEvent(bot, "s1", domain.EventUser, 10),
		botEvent(bot, "s1", domain.EventUser, 20),
		botEvent(bot, "s2", domain.EventUser, 30),
	}); err != nil {
		t.Fatalf("AppendBatch: %v", err)
	}

	n, err := repo.DeleteForSender(dbc, bot, "s1", 15)
	if err != nil || n != 1 {
		t.Fatalf("DeleteForSender: n=%d err=%v", n, err)
	}

	n, err = repo.DeleteForBot(dbc, bot, 0)
	if err != nil || n != 2 {
		t.Fatalf("DeleteForBot: n=%d err=%v", n, err)
	}
}
