package tracker

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/google/uuid"

	corpusrepo "github.com/kairon-labs/kairon-backend/internal/data/repos/corpus"
	trackerrepo "github.com/kairon-labs/kairon-backend/internal/data/repos/tracker"
	"github.com/kairon-labs/kairon-backend/internal/domain"
	"github.com/kairon-labs/kairon-backend/internal/pkg/apperr"
	"github.com/kairon-labs/kairon-backend/internal/pkg/dbctx"
	"github.com/kairon-labs/kairon-backend/internal/platform/logger"
)

// Stream receives a copy of every saved event before it is persisted.
// Publishing is best effort; the save never fails because of the stream.
type Stream interface {
	Publish(subject string, payload []byte) error
}

// Snapshot is the dialogue engine's view of one conversation at save time:
// the full in-memory event list since the current session started.
type Snapshot struct {
	SenderID       string              `json:"sender_id"`
	ConversationID string              `json:"conversation_id,omitempty"`
	Events         []domain.EventEntry `json:"events"`
}

// Service implements the conversation log write and read protocols on top of
// the row-level tracker repo.
type Service struct {
	repo     trackerrepo.TrackerRepo
	examples corpusrepo.TrainingExampleRepo
	stream   Stream
	log      *logger.Logger
}

func NewService(repo trackerrepo.TrackerRepo, examples corpusrepo.TrainingExampleRepo, stream Stream, baseLog *logger.Logger) *Service {
	return &Service{
		repo:     repo,
		examples: examples,
		stream:   stream,
		log:      baseLog.With("service", "TrackerService"),
	}
}

// Save appends the events the store has not seen yet. The persisted count is
// recomputed from the last session boundary on every call, so redelivering
// the same snapshot writes nothing the second time. Each save that carries
// new events also writes exactly one flattened per-turn row.
func (s *Service) Save(ctx context.Context, bot uuid.UUID, snap *Snapshot) error {
	if snap == nil || strings.TrimSpace(snap.SenderID) == "" {
		return apperr.Validation("Sender id cannot be empty")
	}
	s.publish(bot, snap)

	dbc := dbctx.New(ctx)
	since, err := s.repo.LatestSessionStart(dbc, bot, snap.SenderID)
	if err != nil {
		return err
	}
	persisted, err := s.repo.CountBotEventsSince(dbc, bot, snap.SenderID, since)
	if err != nil {
		return err
	}
	if int(persisted) >= len(snap.Events) {
		return nil
	}
	additional := snap.Events[persisted:]

	rows := make([]*domain.ConversationEvent, 0, len(additional)+1)
	for _, ev := range additional {
		rows = append(rows, &domain.ConversationEvent{
			ID:             uuid.New(),
			Bot:            bot,
			SenderID:       snap.SenderID,
			ConversationID: snap.ConversationID,
			Type:           domain.ConversationTypeBot,
			Tag:            domain.TrackerStoreTag,
			Event:          domain.Object(ev),
			Timestamp:      ev.Timestamp,
		})
	}
	turn, ts := flattenTurn(additional)
	rows = append(rows, &domain.ConversationEvent{
		ID:             uuid.New(),
		Bot:            bot,
		SenderID:       snap.SenderID,
		ConversationID: snap.ConversationID,
		Type:           domain.ConversationTypeFlattened,
		Tag:            domain.TrackerStoreTag,
		Data:           domain.Object(turn),
		Timestamp:      ts,
	})
	return s.repo.AppendBatch(dbc, rows)
}

// Retrieve returns the sender's events in time order: the current session
// only, or the full history when allSessions is set. Rows persisted under
// the legacy numeric sender form are rewritten to the canonical string key
// before reading.
func (s *Service) Retrieve(ctx context.Context, bot uuid.UUID, senderID string, allSessions bool) ([]domain.EventEntry, error) {
	if strings.TrimSpace(senderID) == "" {
		return nil, apperr.Validation("Sender id cannot be empty")
	}
	dbc := dbctx.New(ctx)
	if err := s.normalizeLegacySender(dbc, bot, senderID); err != nil {
		return nil, err
	}
	var since float64
	if !allSessions {
		boundary, err := s.repo.LatestSessionStart(dbc, bot, senderID)
		if err != nil {
			return nil, err
		}
		since = boundary
	}
	rows, err := s.repo.ListBotEvents(dbc, bot, senderID, since)
	if err != nil {
		return nil, err
	}
	out := make([]domain.EventEntry, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.Event.Data)
	}
	return out, nil
}

// DeleteForSender removes the sender's log up to an optional cutoff and
// reports how many rows went away. Used by the delete_history event.
func (s *Service) DeleteForSender(ctx context.Context, bot uuid.UUID, senderID string, until float64) (int64, error) {
	if strings.TrimSpace(senderID) == "" {
		return 0, apperr.Validation("Sender id cannot be empty")
	}
	return s.repo.DeleteForSender(dbctx.New(ctx), bot, senderID, until)
}

// DeleteForBot removes the whole conversation log of a bot up to an optional
// cutoff.
func (s *Service) DeleteForBot(ctx context.Context, bot uuid.UUID, until float64) (int64, error) {
	return s.repo.DeleteForBot(dbctx.New(ctx), bot, until)
}

// publish streams the snapshot's events to the configured broker subject.
func (s *Service) publish(bot uuid.UUID, snap *Snapshot) {
	if s.stream == nil {
		return
	}
	payload, err := json.Marshal(snap)
	if err != nil {
		s.log.Warn("Failed to encode tracker snapshot for stream", "error", err)
		return
	}
	if err := s.stream.Publish("tracker."+bot.String(), payload); err != nil {
		s.log.Warn("Failed to stream tracker events", "bot", bot.String(), "error", err)
	}
}

// normalizeLegacySender rewrites rows stored under the numeric legacy key
// ("42.0") to the canonical string form ("42").
func (s *Service) normalizeLegacySender(dbc dbctx.Context, bot uuid.UUID, senderID string) error {
	n, err := strconv.Atoi(senderID)
	if err != nil {
		return nil
	}
	legacy := strconv.FormatFloat(float64(n), 'f', 1, 64)
	return s.repo.NormalizeSenderID(dbc, bot, legacy, senderID)
}

// flattenTurn collapses one save's worth of events into the analytics
// projection. The row timestamp is the latest event timestamp in the batch.
func flattenTurn(events []domain.EventEntry) (domain.FlattenedTurn, float64) {
	turn := domain.FlattenedTurn{}
	var ts float64
	for _, ev := range events {
		if ev.Timestamp > ts {
			ts = ev.Timestamp
		}
		switch ev.Event {
		case domain.EventUser:
			turn.UserInput = ev.Text
			turn.Metadata = ev.Metadata
			if name, confidence, ok := intentOf(ev); ok {
				turn.Intent = name
				turn.Confidence = confidence
			}
		case domain.EventAction:
			turn.Action = append(turn.Action, ev.Name)
		case domain.EventBot:
			reply := domain.BotReply{Text: ev.Text}
			if ev.Data != nil {
				reply.Data = ev.Data
				if utter, ok := ev.Data["utter_action"].(string); ok {
					reply.UtterAction = utter
				}
			}
			turn.BotResponse = append(turn.BotResponse, reply)
		}
	}
	return turn, ts
}

func intentOf(ev domain.EventEntry) (string, *float64, bool) {
	source := ev.Intent
	if source == nil {
		if parsed, ok := ev.ParseData["intent"].(map[string]interface{}); ok {
			source = parsed
		}
	}
	if source == nil {
		return "", nil, false
	}
	name, _ := source["name"].(string)
	var confidence *float64
	if c, ok := source["confidence"].(float64); ok {
		confidence = &c
	}
	return name, confidence, name != ""
}
