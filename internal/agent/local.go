package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/kairon-labs/kairon-backend/internal/channels"
	"github.com/kairon-labs/kairon-backend/internal/domain"
	"github.com/kairon-labs/kairon-backend/internal/pkg/apperr"
	"github.com/kairon-labs/kairon-backend/internal/platform/logger"
)

const (
	fallbackIntent   = "nlu_fallback"
	fallbackAction   = "action_default_fallback"
	fallbackUtter    = "utter_please_rephrase"
	fallbackMinScore = 0.4
)

// localEngine is the in-process model runtime. A "model" is a manifest
// distilled from the training files: intent examples for nearest-match NLU
// and the response map for action selection.
type localEngine struct {
	modelRoot string
	log       *logger.Logger
}

func NewLocalEngine(modelRoot string, log *logger.Logger) TrainingEngine {
	return &localEngine{modelRoot: modelRoot, log: log.With("component", "local_engine")}
}

type modelManifest struct {
	Bot       string              `json:"bot"`
	TrainedAt time.Time           `json:"trained_at"`
	Intents   map[string][]string `json:"intents"`
	Responses map[string][]string `json:"responses"`
}

type nluFile struct {
	NLU []struct {
		Intent   string `yaml:"intent"`
		Examples string `yaml:"examples"`
	} `yaml:"nlu"`
}

type domainFile struct {
	Responses map[string][]struct {
		Text string `yaml:"text"`
	} `yaml:"responses"`
}

// Train distills the training files under dataDir into a timestamped manifest
// and returns its path.
func (e *localEngine) Train(ctx context.Context, bot uuid.UUID, dataDir string) (string, error) {
	manifest := modelManifest{
		Bot:       bot.String(),
		TrainedAt: time.Now().UTC(),
		Intents:   map[string][]string{},
		Responses: map[string][]string{},
	}

	raw, err := os.ReadFile(filepath.Join(dataDir, "data", "nlu.yml"))
	if err != nil {
		return "", apperr.Internal("read nlu training file", err)
	}
	var nlu nluFile
	if err := yaml.Unmarshal(raw, &nlu); err != nil {
		return "", apperr.Internal("parse nlu training file", err)
	}
	for _, block := range nlu.NLU {
		if block.Intent == "" {
			continue
		}
		for _, line := range strings.Split(block.Examples, "\n") {
			line = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "-"))
			if line != "" {
				manifest.Intents[block.Intent] = append(manifest.Intents[block.Intent], stripEntityMarkup(line))
			}
		}
	}
	if len(manifest.Intents) == 0 {
		return "", apperr.Validation("Training data has no examples!")
	}

	raw, err = os.ReadFile(filepath.Join(dataDir, "domain.yml"))
	if err != nil {
		return "", apperr.Internal("read domain file", err)
	}
	var dom domainFile
	if err := yaml.Unmarshal(raw, &dom); err != nil {
		return "", apperr.Internal("parse domain file", err)
	}
	for name, variants := range dom.Responses {
		for _, v := range variants {
			if v.Text != "" {
				manifest.Responses[name] = append(manifest.Responses[name], v.Text)
			}
		}
	}

	dir := filepath.Join(e.modelRoot, bot.String())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", apperr.Internal("create model dir", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("%d.model.json", time.Now().UnixNano()))
	encoded, err := json.Marshal(manifest)
	if err != nil {
		return "", apperr.Internal("encode model manifest", err)
	}
	if err := os.WriteFile(path, encoded, 0o644); err != nil {
		return "", apperr.Internal("write model manifest", err)
	}
	e.log.Info("Model trained", "bot", bot.String(), "model", path)
	return path, nil
}

func (e *localEngine) Load(ctx context.Context, modelPath string) (Agent, error) {
	raw, err := os.ReadFile(modelPath)
	if err != nil {
		return nil, apperr.NotFound(apperr.MsgBotNotTrained)
	}
	var manifest modelManifest
	if err := json.Unmarshal(raw, &manifest); err != nil {
		return nil, apperr.Internal("decode model manifest", err)
	}
	return &localAgent{manifest: manifest, path: modelPath}, nil
}

// LatestModelPath picks the newest manifest for the bot; no artifact means
// the bot has never been trained.
func (e *localEngine) LatestModelPath(bot uuid.UUID) (string, error) {
	matches, err := filepath.Glob(filepath.Join(e.modelRoot, bot.String(), "*.model.json"))
	if err != nil || len(matches) == 0 {
		return "", apperr.NotFound(apperr.MsgBotNotTrained)
	}
	sort.Strings(matches)
	return matches[len(matches)-1], nil
}

type localAgent struct {
	manifest modelManifest
	path     string
}

func (a *localAgent) ModelPath() string { return a.path }

func (a *localAgent) HandleMessage(ctx context.Context, msg channels.UserMessage) (*Prediction, error) {
	intent, confidence := a.classify(msg.Text)
	action := "utter_" + intent
	if intent == fallbackIntent {
		action = fallbackAction
	}

	var responses []map[string]interface{}
	variants := a.manifest.Responses[action]
	if intent == fallbackIntent {
		variants = a.manifest.Responses[fallbackUtter]
		if len(variants) == 0 {
			variants = []string{"I didn't quite get that. Can you rephrase?"}
		}
	}
	for _, text := range variants {
		responses = append(responses, map[string]interface{}{"text": text})
		break
	}

	now := float64(time.Now().UnixNano()) / float64(time.Second)
	events := []domain.EventEntry{
		{
			Event:     domain.EventUser,
			Text:      msg.Text,
			Timestamp: now,
			Intent:    map[string]interface{}{"name": intent, "confidence": confidence},
			Metadata:  msg.Metadata,
		},
		{Event: domain.EventAction, Name: action, Timestamp: now},
	}
	for _, r := range responses {
		events = append(events, domain.EventEntry{
			Event:     domain.EventBot,
			Text:      fmt.Sprintf("%v", r["text"]),
			Timestamp: now,
			Data:      map[string]interface{}{"utter_action": action},
		})
	}

	return &Prediction{
		NLU: map[string]interface{}{
			"intent": map[string]interface{}{"name": intent, "confidence": confidence},
			"text":   msg.Text,
		},
		Actions:   []string{action},
		Responses: responses,
		Slots:     map[string]interface{}{},
		Events:    events,
	}, nil
}

// classify scores the message against every stored example by token overlap;
// exact matches win outright.
func (a *localAgent) classify(text string) (string, float64) {
	normalized := strings.ToLower(strings.TrimSpace(text))
	bestIntent, bestScore := fallbackIntent, 0.0
	for intent, examples := range a.manifest.Intents {
		for _, example := range examples {
			candidate := strings.ToLower(strings.TrimSpace(example))
			if candidate == normalized {
				return intent, 1.0
			}
			score := tokenOverlap(normalized, candidate)
			if score > bestScore {
				bestIntent, bestScore = intent, score
			}
		}
	}
	if bestScore < fallbackMinScore {
		return fallbackIntent, bestScore
	}
	return bestIntent, bestScore
}

func tokenOverlap(a, b string) float64 {
	at := strings.Fields(a)
	bt := strings.Fields(b)
	if len(at) == 0 || len(bt) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(at))
	for _, t := range at {
		set[t] = struct{}{}
	}
	shared := 0
	for _, t := range bt {
		if _, ok := set[t]; ok {
			shared++
		}
	}
	union := len(at) + len(bt) - shared
	return float64(shared) / float64(union)
}

// stripEntityMarkup removes [value](entity) annotations from an example.
func stripEntityMarkup(s string) string {
	var out strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '[' {
			close := strings.IndexByte(s[i:], ']')
			if close > 0 && i+close+1 < len(s) && s[i+close+1] == '(' {
				end := strings.IndexByte(s[i+close+1:], ')')
				if end > 0 {
					out.WriteString(s[i+1 : i+close])
					i += close + 1 + end
					continue
				}
			}
		}
		out.WriteByte(s[i])
	}
	return out.String()
}
