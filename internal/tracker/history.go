package tracker

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kairon-labs/kairon-backend/internal/domain"
	"github.com/kairon-labs/kairon-backend/internal/pkg/dbctx"
)

const maxHistoryMonths = 6

// Actions that mark a turn as a fallback hit.
var fallbackActions = map[string]bool{
	"action_default_fallback": true,
	"utter_please_rephrase":   true,
	"utter_default":           true,
}

// HistoryTurn is one reconstructed user turn of a conversation, annotated
// with whether the user text already exists as a training example.
type HistoryTurn struct {
	SenderID          string            `json:"sender_id"`
	UserInput         string            `json:"user_input"`
	Intent            string            `json:"intent,omitempty"`
	Confidence        *float64          `json:"confidence,omitempty"`
	Action            []string          `json:"action,omitempty"`
	BotResponse       []domain.BotReply `json:"bot_response,omitempty"`
	Timestamp         float64           `json:"timestamp"`
	IsTrainingExample bool              `json:"is_training_example"`
}

type UserMetric struct {
	SenderID string `json:"sender_id"`
	Steps    int    `json:"steps"`
}

type UserTime struct {
	SenderID  string  `json:"sender_id"`
	TimeSpent float64 `json:"time_spent"`
}

type UserMetrics struct {
	SenderID  string  `json:"sender_id"`
	Steps     int     `json:"steps"`
	TimeSpent float64 `json:"time_spent"`
}

type FallbackMetrics struct {
	FallbackCount int `json:"fallback_count"`
	TotalCount    int `json:"total_count"`
}

// FetchChatHistory reconstructs the sender's turns inside the month window.
// Like every history query it absorbs failures: the second return value
// carries the error message and the result is empty.
func (s *Service) FetchChatHistory(ctx context.Context, bot uuid.UUID, senderID string, month int) ([]HistoryTurn, string) {
	rows, message := s.flattenedWindow(ctx, bot, month)
	if message != "" {
		return nil, message
	}
	dbc := dbctx.New(ctx)
	var out []HistoryTurn
	for _, row := range rows {
		if row.SenderID != senderID {
			continue
		}
		turn := row.Data.Data
		known, err := s.examples.ExistsByText(dbc, bot, turn.UserInput)
		if err != nil {
			s.log.Warn("Failed to annotate chat history", "bot", bot.String(), "error", err)
			return nil, err.Error()
		}
		out = append(out, HistoryTurn{
			SenderID:          row.SenderID,
			UserInput:         turn.UserInput,
			Intent:            turn.Intent,
			Confidence:        turn.Confidence,
			Action:            turn.Action,
			BotResponse:       turn.BotResponse,
			Timestamp:         row.Timestamp,
			IsTrainingExample: known,
		})
	}
	return out, ""
}

// FetchChatUsers lists the distinct senders seen inside the window.
func (s *Service) FetchChatUsers(ctx context.Context, bot uuid.UUID, month int) ([]string, string) {
	rows, message := s.flattenedWindow(ctx, bot, month)
	if message != "" {
		return nil, message
	}
	seen := map[string]bool{}
	var users []string
	for _, row := range rows {
		if !seen[row.SenderID] {
			seen[row.SenderID] = true
			users = append(users, row.SenderID)
		}
	}
	sort.Strings(users)
	return users, ""
}

// VisitorHitFallback counts turns that ran a fallback action against the
// total turn count of the window.
func (s *Service) VisitorHitFallback(ctx context.Context, bot uuid.UUID, month int) (FallbackMetrics, string) {
	rows, message := s.flattenedWindow(ctx, bot, month)
	if message != "" {
		return FallbackMetrics{}, message
	}
	metrics := FallbackMetrics{TotalCount: len(rows)}
	for _, row := range rows {
		if turnHitFallback(row.Data.Data) {
			metrics.FallbackCount++
		}
	}
	return metrics, ""
}

// ConversationSteps reports per-sender turn counts for the window.
func (s *Service) ConversationSteps(ctx context.Context, bot uuid.UUID, month int) ([]UserMetric, string) {
	rows, message := s.flattenedWindow(ctx, bot, month)
	if message != "" {
		return nil, message
	}
	return stepsPerSender(rows), ""
}

// ConversationTime reports per-sender elapsed seconds between their first
// and last turn of the window.
func (s *Service) ConversationTime(ctx context.Context, bot uuid.UUID, month int) ([]UserTime, string) {
	rows, message := s.flattenedWindow(ctx, bot, month)
	if message != "" {
		return nil, message
	}
	return timePerSender(rows), ""
}

// EngagedUsers counts senders with at least minSteps turns in the window.
func (s *Service) EngagedUsers(ctx context.Context, bot uuid.UUID, month, minSteps int) (int, string) {
	steps, message := s.ConversationSteps(ctx, bot, month)
	if message != "" {
		return 0, message
	}
	engaged := 0
	for _, metric := range steps {
		if metric.Steps >= minSteps {
			engaged++
		}
	}
	return engaged, ""
}

// NewUsers counts senders whose very first turn falls inside the window.
func (s *Service) NewUsers(ctx context.Context, bot uuid.UUID, month int) (int, string) {
	since, message := s.windowStart(month)
	if message != "" {
		return 0, message
	}
	all, err := s.repo.ListFlattenedInWindow(dbctx.New(ctx), bot, 0)
	if err != nil {
		s.log.Warn("History query failed", "bot", bot.String(), "error", err)
		return 0, err.Error()
	}
	firstSeen := map[string]float64{}
	for _, row := range all {
		if ts, ok := firstSeen[row.SenderID]; !ok || row.Timestamp < ts {
			firstSeen[row.SenderID] = row.Timestamp
		}
	}
	count := 0
	for _, ts := range firstSeen {
		if ts >= since {
			count++
		}
	}
	return count, ""
}

// SuccessfulConversations counts senders who never hit a fallback action in
// the window.
func (s *Service) SuccessfulConversations(ctx context.Context, bot uuid.UUID, month int) (int, string) {
	rows, message := s.flattenedWindow(ctx, bot, month)
	if message != "" {
		return 0, message
	}
	hit := map[string]bool{}
	for _, row := range rows {
		if turnHitFallback(row.Data.Data) {
			hit[row.SenderID] = true
		} else if _, seen := hit[row.SenderID]; !seen {
			hit[row.SenderID] = false
		}
	}
	successful := 0
	for _, fell := range hit {
		if !fell {
			successful++
		}
	}
	return successful, ""
}

// UserRetention reports the percentage of the window's senders who were
// already active before the window started.
func (s *Service) UserRetention(ctx context.Context, bot uuid.UUID, month int) (float64, string) {
	since, message := s.windowStart(month)
	if message != "" {
		return 0, message
	}
	all, err := s.repo.ListFlattenedInWindow(dbctx.New(ctx), bot, 0)
	if err != nil {
		s.log.Warn("History query failed", "bot", bot.String(), "error", err)
		return 0, err.Error()
	}
	inWindow := map[string]bool{}
	before := map[string]bool{}
	for _, row := range all {
		if row.Timestamp >= since {
			inWindow[row.SenderID] = true
		} else {
			before[row.SenderID] = true
		}
	}
	if len(inWindow) == 0 {
		return 0, ""
	}
	returning := 0
	for sender := range inWindow {
		if before[sender] {
			returning++
		}
	}
	return float64(returning) / float64(len(inWindow)) * 100, ""
}

// UserWithMetrics joins per-sender steps and time for the window. The two
// aggregations run concurrently.
func (s *Service) UserWithMetrics(ctx context.Context, bot uuid.UUID, month int) ([]UserMetrics, string) {
	rows, message := s.flattenedWindow(ctx, bot, month)
	if message != "" {
		return nil, message
	}
	var (
		steps []UserMetric
		times []UserTime
	)
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		steps = stepsPerSender(rows)
		return nil
	})
	g.Go(func() error {
		times = timePerSender(rows)
		return nil
	})
	_ = g.Wait()

	timeBySender := make(map[string]float64, len(times))
	for _, t := range times {
		timeBySender[t.SenderID] = t.TimeSpent
	}
	out := make([]UserMetrics, 0, len(steps))
	for _, metric := range steps {
		out = append(out, UserMetrics{
			SenderID:  metric.SenderID,
			Steps:     metric.Steps,
			TimeSpent: timeBySender[metric.SenderID],
		})
	}
	return out, ""
}

// flattenedWindow fetches the flattened rows of the month window, absorbing
// repo failures into a message.
func (s *Service) flattenedWindow(ctx context.Context, bot uuid.UUID, month int) ([]*domain.ConversationEvent, string) {
	since, message := s.windowStart(month)
	if message != "" {
		return nil, message
	}
	rows, err := s.repo.ListFlattenedInWindow(dbctx.New(ctx), bot, since)
	if err != nil {
		s.log.Warn("History query failed", "bot", bot.String(), "error", err)
		return nil, err.Error()
	}
	return rows, ""
}

func (s *Service) windowStart(month int) (float64, string) {
	if month < 1 || month > maxHistoryMonths {
		return 0, "Month should be between 1 and 6"
	}
	return float64(time.Now().UTC().AddDate(0, -month, 0).Unix()), ""
}

func turnHitFallback(turn domain.FlattenedTurn) bool {
	for _, action := range turn.Action {
		if fallbackActions[action] {
			return true
		}
	}
	return false
}

func stepsPerSender(rows []*domain.ConversationEvent) []UserMetric {
	counts := map[string]int{}
	for _, row := range rows {
		counts[row.SenderID]++
	}
	out := make([]UserMetric, 0, len(counts))
	for sender, count := range counts {
		out = append(out, UserMetric{SenderID: sender, Steps: count})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SenderID < out[j].SenderID })
	return out
}

func timePerSender(rows []*domain.ConversationEvent) []UserTime {
	first := map[string]float64{}
	last := map[string]float64{}
	for _, row := range rows {
		if ts, ok := first[row.SenderID]; !ok || row.Timestamp < ts {
			first[row.SenderID] = row.Timestamp
		}
		if row.Timestamp > last[row.SenderID] {
			last[row.SenderID] = row.Timestamp
		}
	}
	out := make([]UserTime, 0, len(first))
	for sender, start := range first {
		out = append(out, UserTime{SenderID: sender, TimeSpent: last[sender] - start})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SenderID < out[j].SenderID })
	return out
}
